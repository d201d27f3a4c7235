package httpclient

import "github.com/aleister1102/ratekeeper/internal/ratelimit"

// HTTPRequest represents an HTTP request. Body is held as bytes so the
// request can be replayed on every attempt.
type HTTPRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// HTTPResponse represents an HTTP response
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	// RateLimit holds the quota signals of this response, nil when none were sent.
	RateLimit *ratelimit.State
	// Attempts is how many times the request was sent before this response.
	Attempts int
}
