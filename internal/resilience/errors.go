package resilience

import (
	"context"
	"errors"
)

// TransientError wraps a failure expected to clear on a later attempt, such
// as an anti-bot interstitial served instead of the page.
type TransientError struct {
	Err    error
	Reason string
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional reason.
func NewTransientError(err error, reason string) *TransientError {
	return &TransientError{Err: err, Reason: reason}
}

// TransientReason returns the reason of the first TransientError in err's
// chain, or "" when there is none.
func TransientReason(err error) string {
	var te *TransientError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}

// IsCanceled reports whether err stems from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
