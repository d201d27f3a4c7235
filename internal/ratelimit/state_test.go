package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	headers := map[string]string{
		"X-RateLimit-Limit":     "100",
		"X-RateLimit-Remaining": "5",
		"X-RateLimit-Reset":     "1700000000",
		"Retry-After":           "30",
	}

	state := ParseState(headers)
	require.NotNil(t, state)
	assert.Equal(t, 100, *state.Limit)
	assert.Equal(t, 5, *state.Remaining)
	assert.Equal(t, int64(1700000000), *state.ResetTimeUnix)
	assert.Equal(t, 30, *state.RetryAfterSeconds)
}

func TestParseState_CaseInsensitiveAndAlternateNames(t *testing.T) {
	state := ParseState(map[string]string{
		"ratelimit-limit":        "60",
		"X-RATE-LIMIT-REMAINING": " 0 ",
	})
	require.NotNil(t, state)
	assert.Equal(t, 60, *state.Limit)
	assert.Equal(t, 0, *state.Remaining)
	assert.Nil(t, state.ResetTimeUnix)
	assert.Nil(t, state.RetryAfterSeconds)
}

func TestParseState_NoRecognizedHeaders(t *testing.T) {
	assert.Nil(t, ParseState(nil))
	assert.Nil(t, ParseState(map[string]string{}))
	assert.Nil(t, ParseState(map[string]string{"Content-Type": "application/json"}))
}

func TestParseState_MalformedValues(t *testing.T) {
	t.Run("all malformed", func(t *testing.T) {
		assert.Nil(t, ParseState(map[string]string{
			"X-RateLimit-Limit": "abc",
			"Retry-After":       "Wed, 21 Oct 2015 07:28:00 GMT",
		}))
	})

	t.Run("negative ignored", func(t *testing.T) {
		assert.Nil(t, ParseState(map[string]string{"Retry-After": "-5"}))
	})

	t.Run("partial", func(t *testing.T) {
		state := ParseState(map[string]string{
			"X-RateLimit-Limit":     "oops",
			"X-RateLimit-Remaining": "7",
		})
		require.NotNil(t, state)
		assert.Nil(t, state.Limit)
		assert.Equal(t, 7, *state.Remaining)
	})

	t.Run("falls through to next name", func(t *testing.T) {
		state := ParseState(map[string]string{
			"X-RateLimit-Limit": "bad",
			"RateLimit-Limit":   "50",
		})
		require.NotNil(t, state)
		assert.Equal(t, 50, *state.Limit)
	})
}

func TestParseState_Idempotent(t *testing.T) {
	headers := map[string]string{"X-RateLimit-Limit": "10", "Retry-After": "3"}
	assert.Equal(t, ParseState(headers), ParseState(headers))
}

func TestParseHTTPHeader(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "12")
	header.Add("X-RateLimit-Remaining", "4")
	header.Add("X-RateLimit-Remaining", "99")

	state := ParseHTTPHeader(header)
	require.NotNil(t, state)
	assert.Equal(t, 12, *state.RetryAfterSeconds)
	assert.Equal(t, 4, *state.Remaining)
}

func TestState_IsRateLimited(t *testing.T) {
	var nilState *State
	assert.False(t, nilState.IsRateLimited())
	assert.True(t, ParseState(map[string]string{"X-RateLimit-Remaining": "0"}).IsRateLimited())
	assert.False(t, ParseState(map[string]string{"X-RateLimit-Remaining": "1"}).IsRateLimited())
	assert.False(t, ParseState(map[string]string{"Retry-After": "1"}).IsRateLimited())
}

func TestState_IsApproachingLimit(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		approach bool
	}{
		{"below threshold", map[string]string{"X-RateLimit-Limit": "100", "X-RateLimit-Remaining": "19"}, true},
		{"at threshold", map[string]string{"X-RateLimit-Limit": "100", "X-RateLimit-Remaining": "20"}, false},
		{"plenty left", map[string]string{"X-RateLimit-Limit": "100", "X-RateLimit-Remaining": "80"}, false},
		{"missing limit", map[string]string{"X-RateLimit-Remaining": "1"}, false},
		{"zero limit", map[string]string{"X-RateLimit-Limit": "0", "X-RateLimit-Remaining": "0"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.approach, ParseState(tt.headers).IsApproachingLimit())
		})
	}
}

func TestState_SuggestedDelay(t *testing.T) {
	now := time.Unix(1700000000, 0)

	delay, ok := ParseState(map[string]string{"Retry-After": "15", "X-RateLimit-Reset": "1700000100"}).SuggestedDelay(now)
	assert.True(t, ok)
	assert.Equal(t, 15*time.Second, delay)

	delay, ok = ParseState(map[string]string{"X-RateLimit-Reset": "1700000042"}).SuggestedDelay(now)
	assert.True(t, ok)
	assert.Equal(t, 42*time.Second, delay)

	delay, ok = ParseState(map[string]string{"X-RateLimit-Reset": "1600000000"}).SuggestedDelay(now)
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), delay)

	_, ok = ParseState(map[string]string{"X-RateLimit-Limit": "10"}).SuggestedDelay(now)
	assert.False(t, ok)
}
