package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Operation is one attempt of a logical operation.
type Operation[T any] func(ctx context.Context) (T, error)

// Observer receives retry events. Implementations must be safe for concurrent use.
type Observer interface {
	// ObserveWait is called before the driver sleeps ahead of another attempt.
	ObserveWait(op string, attempt Attempt, delay time.Duration)
	// ObserveOutcome is called once per logical operation; err is nil on success.
	ObserveOutcome(op string, attempts int, cumulativeDelay time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveWait(string, Attempt, time.Duration)       {}
func (nopObserver) ObserveOutcome(string, int, time.Duration, error) {}

// SleepFunc suspends for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier drives logical operations through the retry loop. One Retrier can
// serve any number of concurrent operations; each call to Do keeps its own
// Attempt and shares nothing else that is mutable.
type Retrier struct {
	calculator *Calculator
	logger     zerolog.Logger
	observer   Observer
	sleep      SleepFunc
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithObserver registers an Observer for retry events.
func WithObserver(observer Observer) RetrierOption {
	return func(r *Retrier) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// WithSleep replaces the context-aware sleep used between attempts.
func WithSleep(sleep SleepFunc) RetrierOption {
	return func(r *Retrier) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// NewRetrier creates a new retry driver
func NewRetrier(calculator *Calculator, logger zerolog.Logger, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		calculator: calculator,
		logger:     logger.With().Str("component", "Retrier").Logger(),
		observer:   nopObserver{},
		sleep:      SleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Calculator returns the decision engine used by the retrier.
func (r *Retrier) Calculator() *Calculator {
	return r.calculator
}

// Run is Do for operations without a result value.
func (r *Retrier) Run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, r, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do executes fn until it succeeds or the calculator rejects another attempt.
// On failure the returned error is a *RetryError wrapping the last error fn
// returned. Cancelling ctx while waiting stops the loop immediately.
func Do[T any](ctx context.Context, r *Retrier, op string, fn Operation[T]) (T, error) {
	var zero T

	logger := r.logger.With().Str("op", op).Str("op_id", uuid.NewString()).Logger()
	attempt := InitialAttempt()
	var lastWait time.Duration

	for {
		if err := ctx.Err(); err != nil {
			return zero, r.finish(logger, op, attempt, &RetryError{
				Op:              op,
				Attempts:        attempt.Number(),
				CumulativeDelay: attempt.CumulativeDelay() + lastWait,
				Reason:          ReasonCanceled,
				Err:             attempt.LastError(),
				Cause:           err,
			})
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt.Number() > 0 {
				logger.Info().
					Int("attempts", attempt.Number()+1).
					Dur("cumulative_delay", attempt.CumulativeDelay()+lastWait).
					Msg("Operation succeeded after retry")
			}
			r.observer.ObserveOutcome(op, attempt.Number()+1, attempt.CumulativeDelay()+lastWait, nil)
			return result, nil
		}

		attempt = attempt.Next(err, lastWait)
		state := StateFromError(err)

		switch decision := r.calculator.ShouldRetry(attempt, err, state).(type) {
		case Wait:
			event := logger.Warn().
				Err(err).
				Int("attempt", attempt.Number()).
				Int("max_retries", r.calculator.config.MaxRetries).
				Dur("delay", decision.Delay).
				Str("class", r.calculator.Classify(err).String())
			if state != nil && state.RetryAfterSeconds != nil {
				event = event.Int("retry_after_secs", *state.RetryAfterSeconds)
			}
			event.Msg("Attempt failed, waiting before retry")

			r.observer.ObserveWait(op, attempt, decision.Delay)
			if sleepErr := r.sleep(ctx, decision.Delay); sleepErr != nil {
				return zero, r.finish(logger, op, attempt, &RetryError{
					Op:              op,
					Attempts:        attempt.Number(),
					CumulativeDelay: attempt.CumulativeDelay(),
					Reason:          ReasonCanceled,
					Err:             err,
					Cause:           sleepErr,
				})
			}
			lastWait = decision.Delay

		case Reject:
			return zero, r.finish(logger, op, attempt, &RetryError{
				Op:              op,
				Attempts:        attempt.Number(),
				CumulativeDelay: attempt.CumulativeDelay(),
				Reason:          decision.Reason,
				Err:             err,
			})

		default:
			return zero, r.finish(logger, op, attempt, &RetryError{
				Op:              op,
				Attempts:        attempt.Number(),
				CumulativeDelay: attempt.CumulativeDelay(),
				Reason:          ReasonUnclassified,
				Err:             err,
			})
		}
	}
}

func (r *Retrier) finish(logger zerolog.Logger, op string, attempt Attempt, rerr *RetryError) error {
	logger.Error().
		Err(rerr.Err).
		Str("reason", string(rerr.Reason)).
		Int("attempts", rerr.Attempts).
		Dur("cumulative_delay", rerr.CumulativeDelay).
		Msg("Operation failed")
	r.observer.ObserveOutcome(op, attempt.Number(), rerr.CumulativeDelay, rerr)
	return rerr
}

// SleepContext waits for d unless ctx is done first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
