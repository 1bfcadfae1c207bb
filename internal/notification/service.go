package notification

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/campus-api/internal/models"
)

// Page is one page of a recipient's notifications together with the total
// number of unread ones.
type Page struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
}

type Service interface {
	Dispatch(ctx context.Context, senderID *string, spec models.AudienceSpec, content models.Content) (models.DispatchResult, error)
	RetryFailed(ctx context.Context, senderID *string, previous *PartialDispatchError, content models.Content) (models.DispatchResult, error)
	List(ctx context.Context, recipientID string, limit, offset int) (Page, error)
	MarkRead(ctx context.Context, notificationID, recipientID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}

type service struct {
	dispatcher *Dispatcher
	store      Store
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewService wires the dispatch and read paths. A positive timeout bounds
// each dispatch; creates already made when it expires are kept.
func NewService(dispatcher *Dispatcher, store Store, timeout time.Duration, logger zerolog.Logger) Service {
	return &service{
		dispatcher: dispatcher,
		store:      store,
		timeout:    timeout,
		logger:     logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *service) Dispatch(ctx context.Context, senderID *string, spec models.AudienceSpec, content models.Content) (models.DispatchResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.dispatcher.Dispatch(ctx, senderID, spec, content)
}

func (s *service) RetryFailed(ctx context.Context, senderID *string, previous *PartialDispatchError, content models.Content) (models.DispatchResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.dispatcher.RetryFailed(ctx, senderID, previous, content)
}

func (s *service) List(ctx context.Context, recipientID string, limit, offset int) (Page, error) {
	if strings.TrimSpace(recipientID) == "" {
		return Page{}, validationErrorf("recipient_id", "must not be blank")
	}
	notifications, err := s.store.ListByRecipient(ctx, recipientID, limit, offset)
	if err != nil {
		return Page{}, &StoreError{Op: "list", Err: err}
	}
	unread, err := s.store.CountUnread(ctx, recipientID)
	if err != nil {
		return Page{}, &StoreError{Op: "count unread", Err: err}
	}
	return Page{Notifications: notifications, Unread: unread}, nil
}

// MarkRead reports false, not an error, when the notification does not
// exist, belongs to someone else, or was already read.
func (s *service) MarkRead(ctx context.Context, notificationID, recipientID string) (bool, error) {
	updated, err := s.store.MarkRead(ctx, notificationID, recipientID)
	if err != nil {
		s.logger.Error().Err(err).Str("notification_id", notificationID).Msg("failed to mark notification read")
		return false, &StoreError{Op: "mark read", Err: err}
	}
	return updated, nil
}

func (s *service) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	updated, err := s.store.MarkAllRead(ctx, recipientID)
	if err != nil {
		s.logger.Error().Err(err).Str("recipient_id", recipientID).Msg("failed to mark notifications read")
		return 0, &StoreError{Op: "mark all read", Err: err}
	}
	return updated, nil
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
