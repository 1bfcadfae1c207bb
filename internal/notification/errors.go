package notification

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRecipients is returned by Dispatch when the audience resolved to an
// empty set. Nothing was created.
var ErrNoRecipients = errors.New("audience resolved to no recipients")

// ValidationError rejects a dispatch request before resolution.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DirectoryError means a membership query could not be answered. Resolution
// has no side effects, so the whole dispatch can be retried.
type DirectoryError struct {
	Op  string
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
}

func (e *DirectoryError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure for a single create or read-state
// update.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

type Delivery struct {
	RecipientID    string `json:"recipient_id"`
	NotificationID string `json:"notification_id"`
}

type FailedDelivery struct {
	RecipientID string `json:"recipient_id"`
	Err         error  `json:"-"`
}

// PartialDispatchError reports a fan-out where at least one create failed.
// Succeeded creates are not rolled back; callers retry only Failed.
type PartialDispatchError struct {
	Succeeded []Delivery
	Failed    []FailedDelivery
}

func (e *PartialDispatchError) Error() string {
	msg := fmt.Sprintf("dispatch partially failed: %d succeeded, %d failed", len(e.Succeeded), len(e.Failed))
	if len(e.Failed) > 0 && e.Failed[0].Err != nil {
		msg += ": " + e.Failed[0].Err.Error()
	}
	return msg
}

// Unwrap exposes the per-recipient causes to errors.Is / errors.As.
func (e *PartialDispatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// FailedRecipients returns the ids that should be retried.
func (e *PartialDispatchError) FailedRecipients() []string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.RecipientID)
	}
	return ids
}

func validationErrorf(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: strings.TrimSpace(fmt.Sprintf(format, args...))}
}
