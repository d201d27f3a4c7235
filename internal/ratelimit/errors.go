package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels matched by RetryError.Is, one per terminal reason.
var (
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrNonRetryable     = errors.New("non-retryable error")
	ErrUnclassified     = errors.New("unclassified error")
	ErrCanceled         = errors.New("retry canceled")
)

// RetryError is returned when an operation ends without success. Err is the
// last error the operation itself returned; Cause is set when the wait was
// interrupted by the context.
type RetryError struct {
	Op              string
	Attempts        int
	CumulativeDelay time.Duration
	Reason          Reason
	Err             error
	Cause           error
}

func (e *RetryError) Error() string {
	msg := fmt.Sprintf("%s: %s after %d attempt(s)", e.Op, e.Reason, e.Attempts)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap exposes both the context error and the last operation error.
func (e *RetryError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Is matches the sentinel for the error's reason.
func (e *RetryError) Is(target error) bool {
	switch target {
	case ErrRetriesExhausted:
		return e.Reason == ReasonMaxRetriesExceeded
	case ErrNonRetryable:
		return e.Reason == ReasonNonRetryable
	case ErrUnclassified:
		return e.Reason == ReasonUnclassified
	case ErrCanceled:
		return e.Reason == ReasonCanceled
	}
	return false
}

// HeaderCarrier is implemented by errors that carry the failed response's headers.
type HeaderCarrier interface {
	ResponseHeaders() map[string]string
}

// StateFromError parses rate-limit signals from the first HeaderCarrier in err's chain.
func StateFromError(err error) *State {
	var carrier HeaderCarrier
	if !errors.As(err, &carrier) {
		return nil
	}
	return ParseState(carrier.ResponseHeaders())
}
