// Package observability exposes retry activity as Prometheus metrics.
package observability

import (
	"errors"
	"time"

	"github.com/aleister1102/ratekeeper/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for the operations counter.
const (
	OutcomeSucceeded          = "succeeded"
	OutcomeMaxRetriesExceeded = "max_retries_exceeded"
	OutcomeNonRetryable       = "non_retryable"
	OutcomeUnclassified       = "unclassified"
	OutcomeCanceled           = "canceled"
	OutcomeFailed             = "failed"
)

// RetryMetrics implements ratelimit.Observer on top of Prometheus collectors.
type RetryMetrics struct {
	waits      prometheus.Counter
	waitTime   prometheus.Histogram
	operations *prometheus.CounterVec
	attempts   prometheus.Histogram
}

var _ ratelimit.Observer = (*RetryMetrics)(nil)

// NewRetryMetrics creates the retry collectors and registers them with reg.
func NewRetryMetrics(reg prometheus.Registerer, namespace string) (*RetryMetrics, error) {
	m := &RetryMetrics{
		waits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_waits_total",
			Help:      "Number of waits scheduled before a retry attempt.",
		}),
		waitTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_wait_seconds",
			Help:      "Delay chosen before a retry attempt.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 120},
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Logical operations by terminal outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_attempts",
			Help:      "Attempts made per logical operation.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
	}

	for _, c := range []prometheus.Collector{m.waits, m.waitTime, m.operations, m.attempts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveWait implements ratelimit.Observer.
func (m *RetryMetrics) ObserveWait(_ string, _ ratelimit.Attempt, delay time.Duration) {
	m.waits.Inc()
	m.waitTime.Observe(delay.Seconds())
}

// ObserveOutcome implements ratelimit.Observer.
func (m *RetryMetrics) ObserveOutcome(_ string, attempts int, _ time.Duration, err error) {
	m.operations.WithLabelValues(OutcomeLabel(err)).Inc()
	m.attempts.Observe(float64(attempts))
}

// OutcomeLabel maps a terminal error to its outcome label.
func OutcomeLabel(err error) string {
	switch {
	case err == nil:
		return OutcomeSucceeded
	case errors.Is(err, ratelimit.ErrRetriesExhausted):
		return OutcomeMaxRetriesExceeded
	case errors.Is(err, ratelimit.ErrNonRetryable):
		return OutcomeNonRetryable
	case errors.Is(err, ratelimit.ErrUnclassified):
		return OutcomeUnclassified
	case errors.Is(err, ratelimit.ErrCanceled):
		return OutcomeCanceled
	default:
		return OutcomeFailed
	}
}
