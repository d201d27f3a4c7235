package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// approachingLimitRatio is the remaining/limit fraction below which a window is considered nearly spent.
const approachingLimitRatio = 0.20

// Recognized header names, lower-cased. The first present name in each list wins.
var (
	limitHeaders      = []string{"x-ratelimit-limit", "ratelimit-limit", "x-rate-limit-limit"}
	remainingHeaders  = []string{"x-ratelimit-remaining", "ratelimit-remaining", "x-rate-limit-remaining"}
	resetHeaders      = []string{"x-ratelimit-reset", "ratelimit-reset", "x-rate-limit-reset"}
	retryAfterHeaders = []string{"retry-after"}
)

// State is a snapshot of the quota signals carried by one HTTP response.
// Nil fields were either absent or malformed.
type State struct {
	Limit             *int   `json:"limit,omitempty"`
	Remaining         *int   `json:"remaining,omitempty"`
	ResetTimeUnix     *int64 `json:"reset_time_unix,omitempty"`
	RetryAfterSeconds *int   `json:"retry_after_seconds,omitempty"`
}

// ParseState builds a State from response headers. Header names are matched
// case-insensitively. It returns nil when none of the recognized headers carry
// a usable value.
func ParseState(headers map[string]string) *State {
	if len(headers) == 0 {
		return nil
	}

	normalized := make(map[string]string, len(headers))
	for key, value := range headers {
		normalized[strings.ToLower(strings.TrimSpace(key))] = value
	}

	state := &State{
		Limit:             lookupInt(normalized, limitHeaders),
		Remaining:         lookupInt(normalized, remainingHeaders),
		RetryAfterSeconds: lookupInt(normalized, retryAfterHeaders),
	}
	if reset, ok := lookupInt64(normalized, resetHeaders); ok {
		state.ResetTimeUnix = &reset
	}

	if state.isEmpty() {
		return nil
	}
	return state
}

// ParseHTTPHeader is ParseState for a net/http header set. Only the first value of each key is used.
func ParseHTTPHeader(header http.Header) *State {
	flat := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	return ParseState(flat)
}

// IsRateLimited reports whether the window has no requests left.
func (s *State) IsRateLimited() bool {
	return s != nil && s.Remaining != nil && *s.Remaining == 0
}

// IsApproachingLimit reports whether fewer than 20% of the window's requests remain.
func (s *State) IsApproachingLimit() bool {
	if s == nil || s.Limit == nil || s.Remaining == nil || *s.Limit <= 0 {
		return false
	}
	return float64(*s.Remaining)/float64(*s.Limit) < approachingLimitRatio
}

// SuggestedDelay returns the wait the server asked for. Retry-After wins; otherwise
// the time left until the window resets is used. The boolean is false when the
// response carried neither.
func (s *State) SuggestedDelay(now time.Time) (time.Duration, bool) {
	if s == nil {
		return 0, false
	}
	if s.RetryAfterSeconds != nil {
		return time.Duration(*s.RetryAfterSeconds) * time.Second, true
	}
	if s.ResetTimeUnix != nil {
		until := time.Unix(*s.ResetTimeUnix, 0).Sub(now)
		if until < 0 {
			until = 0
		}
		return until, true
	}
	return 0, false
}

func (s *State) isEmpty() bool {
	return s.Limit == nil && s.Remaining == nil && s.ResetTimeUnix == nil && s.RetryAfterSeconds == nil
}

func lookupInt(headers map[string]string, names []string) *int {
	v, ok := lookupInt64(headers, names)
	if !ok || v > int64(^uint32(0)>>1) {
		return nil
	}
	n := int(v)
	return &n
}

// lookupInt64 returns the first recognized header that parses as a non-negative integer.
func lookupInt64(headers map[string]string, names []string) (int64, bool) {
	for _, name := range names {
		raw, ok := headers[name]
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || v < 0 {
			continue
		}
		return v, true
	}
	return 0, false
}
