package provider

import (
	"errors"
	"fmt"

	"fundihub.org/internal/auth"
)

var (
	ErrNotFound = errors.New("provider: application not found")
	ErrExists   = errors.New("provider: application already exists")
)

// ErrInvalidTransition is the sentinel matched by errors.Is for any rejected
// lifecycle transition.
var ErrInvalidTransition = errors.New("provider: invalid transition")

// Event names a lifecycle transition attempt.
type Event string

const (
	EventSubmit         Event = "submit"
	EventApprove        Event = "approve"
	EventReject         Event = "reject"
	EventResubmit       Event = "resubmit"
	EventRecordDocument Event = "record_document"
	EventVerifyDocument Event = "verify_document"
)

// InvalidTransitionError carries the attempted event and the state the
// application was in when the attempt was rejected, so callers can
// self-correct.
type InvalidTransitionError struct {
	Event  Event
	Status auth.ProviderStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("provider: cannot %s while %s: %s", e.Event, e.Status, e.Reason)
	}
	return fmt.Sprintf("provider: cannot %s while %s", e.Event, e.Status)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

func invalidTransition(event Event, status auth.ProviderStatus, reason string) error {
	return &InvalidTransitionError{Event: event, Status: status, Reason: reason}
}
