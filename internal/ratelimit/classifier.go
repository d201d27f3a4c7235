package ratelimit

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Class is the retryability category of a failed attempt.
type Class int

const (
	ClassUnknown Class = iota
	ClassRateLimited
	ClassTransient
	ClassFatal
)

// String returns string representation of Class
func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Retryable reports whether the class allows another attempt.
func (c Class) Retryable() bool {
	return c == ClassRateLimited || c == ClassTransient
}

// Classifier decides how a failed attempt should be treated.
type Classifier interface {
	Classify(err error) Class
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(err error) Class

// Classify calls f(err).
func (f ClassifierFunc) Classify(err error) Class { return f(err) }

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatusCode() int
}

var (
	defaultRateLimitCodes = []int{http.StatusTooManyRequests}
	defaultTransientCodes = []int{
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
)

// StatusClassifier classifies errors by HTTP status code. Rate-limit and
// transient codes are retryable, any other 4xx is fatal and everything it
// does not recognize is unknown.
type StatusClassifier struct {
	rateLimitCodes       map[int]bool
	transientCodes       map[int]bool
	retryNetworkTimeouts bool
}

// StatusClassifierOption configures a StatusClassifier.
type StatusClassifierOption func(*StatusClassifier)

// WithRateLimitCodes replaces the set of status codes treated as throttling.
func WithRateLimitCodes(codes ...int) StatusClassifierOption {
	return func(c *StatusClassifier) { c.rateLimitCodes = codeSet(codes) }
}

// WithTransientCodes replaces the set of status codes treated as transient server conditions.
func WithTransientCodes(codes ...int) StatusClassifierOption {
	return func(c *StatusClassifier) { c.transientCodes = codeSet(codes) }
}

// WithNetworkTimeouts sets whether net.Error timeouts are retried.
func WithNetworkTimeouts(retry bool) StatusClassifierOption {
	return func(c *StatusClassifier) { c.retryNetworkTimeouts = retry }
}

// NewStatusClassifier creates a classifier with 429 as throttling and 500/502/503/504 as transient.
func NewStatusClassifier(opts ...StatusClassifierOption) *StatusClassifier {
	c := &StatusClassifier{
		rateLimitCodes:       codeSet(defaultRateLimitCodes),
		transientCodes:       codeSet(defaultTransientCodes),
		retryNetworkTimeouts: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify implements Classifier.
func (c *StatusClassifier) Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	// Cancellation must never turn into another attempt.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}

	var marked *markedError
	if errors.As(err, &marked) {
		return marked.class
	}

	var coder StatusCoder
	if errors.As(err, &coder) {
		return c.classifyStatus(coder.HTTPStatusCode())
	}

	var netErr net.Error
	if c.retryNetworkTimeouts && errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	return ClassUnknown
}

func (c *StatusClassifier) classifyStatus(code int) Class {
	switch {
	case c.rateLimitCodes[code]:
		return ClassRateLimited
	case c.transientCodes[code]:
		return ClassTransient
	case code >= 400 && code < 500:
		return ClassFatal
	default:
		return ClassUnknown
	}
}

func codeSet(codes []int) map[int]bool {
	set := make(map[int]bool, len(codes))
	for _, code := range codes {
		set[code] = true
	}
	return set
}

type markedError struct {
	err   error
	class Class
}

func (e *markedError) Error() string { return e.err.Error() }
func (e *markedError) Unwrap() error { return e.err }

// MarkRetryable tags err as transient for classifiers in this package.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, class: ClassTransient}
}

// MarkPermanent tags err as fatal for classifiers in this package.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, class: ClassFatal}
}
