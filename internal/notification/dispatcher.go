package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/campus-api/internal/models"
	"github.com/stanstork/campus-api/internal/repository"
	"golang.org/x/sync/errgroup"
)

const defaultDispatchWorkers = 8

// Store persists notifications and their per-recipient read state.
type Store interface {
	Create(ctx context.Context, params repository.CreateNotificationParams) (string, error)
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	MarkRead(ctx context.Context, notificationID, recipientID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}

// Dispatcher resolves an audience once and creates one notification per
// recipient with at most workers creates in flight.
type Dispatcher struct {
	resolver *Resolver
	store    Store
	workers  int
	logger   zerolog.Logger
}

func NewDispatcher(resolver *Resolver, store Store, workers int, logger zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}
	return &Dispatcher{
		resolver: resolver,
		store:    store,
		workers:  workers,
		logger:   logger.With().Str("component", "dispatch_coordinator").Logger(),
	}
}

// Dispatch sends content to every member of spec.
//
// Errors: *ValidationError before anything is resolved, *DirectoryError when
// resolution fails, ErrNoRecipients for an empty audience, and
// *PartialDispatchError when at least one create fails. Creates that
// succeeded are kept in every case.
func (d *Dispatcher) Dispatch(ctx context.Context, senderID *string, spec models.AudienceSpec, content models.Content) (models.DispatchResult, error) {
	start := time.Now()
	defer func() { DispatchDuration.Observe(time.Since(start).Seconds()) }()

	if err := validateContent(content); err != nil {
		recordDispatch(outcomeInvalid)
		return models.DispatchResult{}, err
	}

	recipients, err := d.resolver.Resolve(ctx, spec)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			recordDispatch(outcomeInvalid)
		} else {
			recordDispatch(outcomeDirectory)
			d.logger.Error().Err(err).Str("audience", spec.String()).Msg("audience resolution failed")
		}
		return models.DispatchResult{}, err
	}
	if len(recipients) == 0 {
		recordDispatch(outcomeNoRecipients)
		d.logger.Info().Str("audience", spec.String()).Msg("audience resolved to no recipients")
		return models.DispatchResult{}, ErrNoRecipients
	}

	DispatchRecipients.Observe(float64(len(recipients)))
	return d.fanOut(ctx, senderID, spec.String(), recipients, content)
}

// RetryFailed re-sends content to exactly the recipients that failed in a
// previous dispatch. The audience is not resolved again.
func (d *Dispatcher) RetryFailed(ctx context.Context, senderID *string, previous *PartialDispatchError, content models.Content) (models.DispatchResult, error) {
	if err := validateContent(content); err != nil {
		return models.DispatchResult{}, err
	}
	if previous == nil {
		return models.DispatchResult{}, ErrNoRecipients
	}

	set := newRecipientSet(len(previous.Failed))
	for _, id := range previous.FailedRecipients() {
		set.add(id)
	}
	if set.len() == 0 {
		return models.DispatchResult{}, ErrNoRecipients
	}
	return d.fanOut(ctx, senderID, "retry", set.sorted(), content)
}

func (d *Dispatcher) fanOut(ctx context.Context, senderID *string, audience string, recipients []string, content models.Content) (models.DispatchResult, error) {
	var sender *string
	if senderID != nil && strings.TrimSpace(*senderID) != "" {
		trimmed := strings.TrimSpace(*senderID)
		sender = &trimmed
	}

	ids := make([]string, len(recipients))
	errs := make([]error, len(recipients))

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, recipientID := range recipients {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(recipients); j++ {
				errs[j] = &StoreError{Op: "create", Err: err}
			}
			break
		}
		i, recipientID := i, recipientID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = &StoreError{Op: "create", Err: err}
				return nil
			}
			id, err := d.store.Create(ctx, repository.CreateNotificationParams{
				SenderID:    sender,
				RecipientID: recipientID,
				Type:        content.Type,
				Title:       content.Title,
				Message:     content.Message,
				Payload:     content.Payload,
			})
			recordCreate(err)
			if err != nil {
				errs[i] = &StoreError{Op: "create", Err: err}
				return nil
			}
			ids[i] = id
			return nil
		})
	}
	_ = g.Wait()

	var (
		succeeded []Delivery
		failed    []FailedDelivery
	)
	for i, recipientID := range recipients {
		if errs[i] != nil {
			failed = append(failed, FailedDelivery{RecipientID: recipientID, Err: errs[i]})
			continue
		}
		succeeded = append(succeeded, Delivery{RecipientID: recipientID, NotificationID: ids[i]})
	}

	if len(failed) > 0 {
		recordDispatch(outcomePartial)
		d.logger.Warn().
			Err(failed[0].Err).
			Str("audience", audience).
			Int("succeeded", len(succeeded)).
			Int("failed", len(failed)).
			Msg("dispatch partially failed")
		return models.DispatchResult{}, &PartialDispatchError{Succeeded: succeeded, Failed: failed}
	}

	recordDispatch(outcomeSucceeded)
	d.logger.Info().
		Str("audience", audience).
		Str("type", content.Type).
		Int("recipients", len(recipients)).
		Msg("dispatch completed")
	return models.DispatchResult{RecipientCount: len(ids), NotificationIDs: ids}, nil
}

func validateContent(content models.Content) error {
	if strings.TrimSpace(content.Type) == "" {
		return validationErrorf("type", "must not be blank")
	}
	if strings.TrimSpace(content.Title) == "" {
		return validationErrorf("title", "must not be blank")
	}
	if strings.TrimSpace(content.Message) == "" {
		return validationErrorf("message", "must not be blank")
	}
	if len(content.Payload) > 0 && !json.Valid(content.Payload) {
		return validationErrorf("payload", "must be valid JSON")
	}
	return nil
}
