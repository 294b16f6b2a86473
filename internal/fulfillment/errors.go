package fulfillment

import (
	"errors"
	"fmt"
)

var (
	ErrUnhandledEvent = errors.New("unhandled event type")
	ErrInvalidEvent   = errors.New("checkout session is missing required data")
	ErrInProgress     = errors.New("fulfillment already in progress")
	ErrNoProgress     = errors.New("no fulfillment progress")
)

// StepError is a failed step together with the identifiers needed to
// reconcile the session by hand.
type StepError struct {
	Step      Step
	EventID   string
	SessionID string
	UserID    string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("fulfillment %s failed at %s: %v", e.SessionID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
