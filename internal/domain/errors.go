package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrMalformedMessage is returned when a queue message fails validation.
	// Malformed messages are never retried by the consumer itself; they are
	// left to the queue's redrive ceiling and end up in the dead-letter queue.
	ErrMalformedMessage = errors.New("malformed queue message")

	// ErrInvalidTransition is returned when a job status change would skip
	// states or leave a terminal state
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrCircuitOpen is returned by the consumer when the consecutive-failure
	// threshold has been exceeded; the process must exit
	ErrCircuitOpen = errors.New("circuit breaker open: too many consecutive failures")
)

// TransientError wraps infrastructure errors (queue/network timeouts,
// downstream unavailable) that should be retried via message redelivery
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// IsTransient reports whether err is a transient infrastructure error
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// FieldError reports a missing or invalid field on an inbound message.
// It unwraps to ErrMalformedMessage so callers can switch on the kind.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q %s", ErrMalformedMessage.Error(), e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrMalformedMessage
}
