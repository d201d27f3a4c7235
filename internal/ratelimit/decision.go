package ratelimit

import (
	"fmt"
	"time"
)

// Reason explains why a retry was refused.
type Reason string

const (
	ReasonMaxRetriesExceeded Reason = "max retries exceeded"
	ReasonNonRetryable       Reason = "non-retryable error"
	ReasonUnclassified       Reason = "unclassified error"
	// ReasonCanceled is only produced by the retry driver, never by ShouldRetry.
	ReasonCanceled Reason = "canceled"
)

// Decision is the outcome of a retry check. It is implemented only by Wait and
// Reject, so a type switch over those two cases is exhaustive.
type Decision interface {
	fmt.Stringer
	isDecision()
}

// Wait tells the driver to sleep for Delay and try again.
type Wait struct {
	Delay time.Duration
}

// Reject ends the operation.
type Reject struct {
	Reason Reason
}

func (Wait) isDecision()   {}
func (Reject) isDecision() {}

func (w Wait) String() string {
	return fmt.Sprintf("wait(%s)", w.Delay)
}

func (r Reject) String() string {
	return fmt.Sprintf("reject(%s)", r.Reason)
}
