package ratelimit

import "time"

// Attempt is the cumulative retry state of one logical operation. It is a value
// type; Next returns an updated copy and never changes the receiver.
type Attempt struct {
	number          int
	lastErr         error
	cumulativeDelay time.Duration
}

// InitialAttempt returns the state before the operation has run.
func InitialAttempt() Attempt {
	return Attempt{}
}

// Number is how many attempts have been recorded so far.
func (a Attempt) Number() int { return a.number }

// LastError is the error of the most recent recorded attempt.
func (a Attempt) LastError() error { return a.lastErr }

// CumulativeDelay is the total time spent waiting between attempts.
func (a Attempt) CumulativeDelay() time.Duration { return a.cumulativeDelay }

// Next records a failed attempt and the delay waited before it.
func (a Attempt) Next(err error, waited time.Duration) Attempt {
	if waited < 0 {
		waited = 0
	}
	return Attempt{
		number:          a.number + 1,
		lastErr:         err,
		cumulativeDelay: a.cumulativeDelay + waited,
	}
}
