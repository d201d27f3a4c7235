package ratelimit

import (
	"math/rand"
	"time"
)

// maxShift is the largest exponent for which 1<<n still fits a time.Duration.
const maxShift = 62

// Calculator turns an attempt, the configuration and the latest rate-limit
// signals into a retry decision. It holds no mutable state and is safe for
// concurrent use.
type Calculator struct {
	config     Config
	classifier Classifier
	random     func() float64
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithClassifier replaces the default StatusClassifier.
func WithClassifier(classifier Classifier) CalculatorOption {
	return func(c *Calculator) {
		if classifier != nil {
			c.classifier = classifier
		}
	}
}

// WithRandom replaces the jitter source. fn must return values in [0,1).
func WithRandom(fn func() float64) CalculatorOption {
	return func(c *Calculator) {
		if fn != nil {
			c.random = fn
		}
	}
}

// NewCalculator validates cfg and creates a Calculator.
func NewCalculator(cfg Config, opts ...CalculatorOption) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Calculator{
		config:     cfg,
		classifier: NewStatusClassifier(),
		random:     rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns a copy of the configuration in use.
func (c *Calculator) Config() Config {
	return c.config
}

// Classify exposes the calculator's retryability predicate.
func (c *Calculator) Classify(err error) Class {
	return c.classifier.Classify(err)
}

// CalculateDelay returns how long to wait before the next attempt. A server
// supplied Retry-After takes precedence when the configuration respects it;
// otherwise the delay grows exponentially with the attempt number and is
// scaled by the strategy. Jitter is applied last and the result never exceeds
// MaxDelay.
func (c *Calculator) CalculateDelay(attempt Attempt, state *State) time.Duration {
	var delay float64
	if c.config.RespectRetryAfter && state != nil && state.RetryAfterSeconds != nil {
		delay = float64(time.Duration(*state.RetryAfterSeconds) * time.Second)
		if c.config.ScaleServerDelay {
			delay *= c.config.Strategy.Multiplier()
		}
	} else {
		delay = float64(c.exponentialDelay(attempt.Number())) * c.config.Strategy.Multiplier()
	}

	return c.clamp(c.applyJitter(delay))
}

// ShouldRetry decides whether the operation gets another attempt.
func (c *Calculator) ShouldRetry(attempt Attempt, err error, state *State) Decision {
	if attempt.Number() > c.config.MaxRetries {
		return Reject{Reason: ReasonMaxRetriesExceeded}
	}

	switch class := c.classifier.Classify(err); {
	case class == ClassFatal:
		return Reject{Reason: ReasonNonRetryable}
	case class.Retryable():
		return Wait{Delay: c.CalculateDelay(attempt, state)}
	default:
		return Reject{Reason: ReasonUnclassified}
	}
}

// exponentialDelay returns BaseDelay * 2^n capped at MaxDelay, saturating instead of overflowing.
func (c *Calculator) exponentialDelay(n int) time.Duration {
	base, ceiling := c.config.BaseDelay, c.config.MaxDelay
	if n < 0 {
		n = 0
	}
	if n > maxShift || base > ceiling>>uint(n) {
		return ceiling
	}
	return min(base<<uint(n), ceiling)
}

func (c *Calculator) applyJitter(delay float64) float64 {
	if c.config.JitterFactor == 0 {
		return delay
	}
	// u is uniform in [-1, 1)
	u := 2*c.random() - 1
	return delay * (1 + c.config.JitterFactor*u)
}

func (c *Calculator) clamp(delay float64) time.Duration {
	if delay <= 0 {
		return 0
	}
	if delay >= float64(c.config.MaxDelay) {
		return c.config.MaxDelay
	}
	return time.Duration(delay)
}
