package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stanstork/campus-api/internal/models"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
)

// ErrUnknownUser is returned when a notification references a user id that
// does not exist.
var ErrUnknownUser = errors.New("unknown user")

type NotificationRepository interface {
	Create(ctx context.Context, params CreateNotificationParams) (string, error)
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	MarkRead(ctx context.Context, notificationID, recipientID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}

type CreateNotificationParams struct {
	SenderID    *string
	RecipientID string
	Type        string
	Title       string
	Message     string
	Payload     json.RawMessage
}

type notificationRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db, now: time.Now}
}

// NewNotificationRepositoryWithClock is used where creation timestamps must be
// controlled, e.g. pagination tests.
func NewNotificationRepositoryWithClock(db *sqlx.DB, now func() time.Time) NotificationRepository {
	return &notificationRepository{db: db, now: now}
}

func (r *notificationRepository) Create(ctx context.Context, params CreateNotificationParams) (string, error) {
	query := r.db.Rebind(`
		INSERT INTO notifications (id, sender_id, recipient_id, type, title, message, payload, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	var senderID sql.NullString
	if params.SenderID != nil && strings.TrimSpace(*params.SenderID) != "" {
		senderID = sql.NullString{String: strings.TrimSpace(*params.SenderID), Valid: true}
	}

	var payload sql.NullString
	if len(params.Payload) > 0 {
		payload = sql.NullString{String: string(params.Payload), Valid: true}
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, query,
		id,
		senderID,
		params.RecipientID,
		params.Type,
		params.Title,
		params.Message,
		payload,
		false,
		r.now().UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return "", errors.Wrapf(ErrUnknownUser, "creating notification for recipient %s: %v", params.RecipientID, err)
		}
		return "", errors.Wrapf(err, "creating notification for recipient %s", params.RecipientID)
	}
	return id, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.Rebind(`
		SELECT n.id, n.sender_id, TRIM(u.first_name || ' ' || u.last_name) AS sender_name,
		       n.recipient_id, n.type, n.title, n.message, n.payload, n.is_read, n.created_at, n.read_at
		FROM notifications n
		LEFT JOIN users u ON u.id = n.sender_id
		WHERE n.recipient_id = ?
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT ? OFFSET ?`)

	rows, err := r.db.QueryContext(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "listing notifications")
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0, limit)
	for rows.Next() {
		notif, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notif)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating notifications")
	}
	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	query := r.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = ?`)
	if err := r.db.GetContext(ctx, &count, query, recipientID, false); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

// MarkRead flips a single unread notification owned by recipientID. The
// ownership and unread checks live in the WHERE clause so concurrent callers
// cannot both observe the row as unread.
func (r *notificationRepository) MarkRead(ctx context.Context, notificationID, recipientID string) (bool, error) {
	query := r.db.Rebind(`
		UPDATE notifications
		SET is_read = ?, read_at = ?
		WHERE id = ? AND recipient_id = ? AND is_read = ?`)

	result, err := r.db.ExecContext(ctx, query, true, r.now().UTC(), notificationID, recipientID, false)
	if err != nil {
		return false, errors.Wrapf(err, "marking notification %s as read", notificationID)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "reading affected rows")
	}
	return affected == 1, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	query := r.db.Rebind(`
		UPDATE notifications
		SET is_read = ?, read_at = ?
		WHERE recipient_id = ? AND is_read = ?`)

	result, err := r.db.ExecContext(ctx, query, true, r.now().UTC(), recipientID, false)
	if err != nil {
		return 0, errors.Wrap(err, "marking all notifications as read")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "reading affected rows")
	}
	return affected, nil
}

func scanNotification(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Notification, error) {
	var (
		notif      models.Notification
		senderID   sql.NullString
		senderName sql.NullString
		payload    []byte
		readAt     sql.NullTime
	)

	if err := scanner.Scan(
		&notif.ID,
		&senderID,
		&senderName,
		&notif.RecipientID,
		&notif.Type,
		&notif.Title,
		&notif.Message,
		&payload,
		&notif.Read,
		&notif.CreatedAt,
		&readAt,
	); err != nil {
		return models.Notification{}, errors.Wrap(err, "scanning notification row")
	}

	if senderID.Valid {
		val := senderID.String
		notif.SenderID = &val
	}
	if senderName.Valid && senderName.String != "" {
		val := senderName.String
		notif.SenderName = &val
	}
	if len(payload) > 0 {
		notif.Payload = json.RawMessage(payload)
	}
	if readAt.Valid {
		t := readAt.Time
		notif.ReadAt = &t
	}
	notif.CreatedAt = notif.CreatedAt.UTC()

	return notif, nil
}
