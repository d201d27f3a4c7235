package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aleister1102/ratekeeper/internal/ratelimit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetryConfig keeps retry waits in the millisecond range.
func fastRetryConfig(t *testing.T, maxRetries int) ratelimit.Config {
	t.Helper()
	cfg, err := ratelimit.NewConfigBuilder().
		WithMaxRetries(maxRetries).
		WithBaseDelay(time.Millisecond).
		WithMaxDelay(10 * time.Millisecond).
		WithJitterFactor(0).
		Build()
	require.NoError(t, err)
	return cfg
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func TestHTTPClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-value", r.Header.Get("X-Test-Header"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RateLimit-Limit", "100")
		w.Header().Set("X-RateLimit-Remaining", "99")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	logger := zerolog.Nop()
	client, err := NewHTTPClientBuilder(logger).WithUserAgent("test-agent").Build()
	require.NoError(t, err)

	req := &HTTPRequest{
		URL:    server.URL,
		Method: "GET",
		Headers: map[string]string{
			"X-Test-Header": "test-value",
		},
	}

	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"status":"ok"}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, 1, resp.Attempts)
	require.NotNil(t, resp.RateLimit)
	assert.Equal(t, 99, *resp.RateLimit.Remaining)
}

func TestHTTPClient_Do_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, `{"key":"value"}`, string(body))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	defer server.Close()

	logger := zerolog.Nop()
	client, err := NewHTTPClientBuilder(logger).Build()
	require.NoError(t, err)

	req := &HTTPRequest{
		URL:    server.URL,
		Method: "POST",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: []byte(`{"key":"value"}`),
	}

	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"received":true}`, string(resp.Body))
	assert.Nil(t, resp.RateLimit)
}

func TestHTTPClient_Do_RequiresURL(t *testing.T) {
	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	_, err = client.Do(context.Background(), &HTTPRequest{Method: "GET"})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestHTTPClient_Redirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/final", http.StatusFound)
		} else if r.URL.Path == "/final" {
			fmt.Fprint(w, "ok")
		}
	}))
	defer ts.Close()

	logger := zerolog.Nop()

	clientFollow, err := NewHTTPClientBuilder(logger).WithFollowRedirects(true).Build()
	require.NoError(t, err)
	req := &HTTPRequest{URL: ts.URL + "/redirect", Method: "GET"}
	resp, err := clientFollow.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(resp.Body))

	clientNoFollow, err := NewHTTPClientBuilder(logger).WithFollowRedirects(false).Build()
	require.NoError(t, err)
	resp, err = clientNoFollow.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestHTTPClient_RetriesThrottledRequests(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := atomic.AddInt32(&requestCount, 1)
		if count <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).WithRetryConfig(fastRetryConfig(t, 3)).Build()
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &HTTPRequest{URL: server.URL, Method: "GET"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
}

func TestHTTPClient_HonorsRetryAfter(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requestCount, 1) == 1 {
			w.Header().Set("Retry-After", "15")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	recorder := &sleepRecorder{}
	cfg, err := ratelimit.NewConfigBuilder().WithJitterFactor(0).Build()
	require.NoError(t, err)

	client, err := NewHTTPClientBuilder(zerolog.Nop()).
		WithRetryConfig(cfg).
		WithSleep(recorder.sleep).
		Build()
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &HTTPRequest{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, []time.Duration{15 * time.Second}, recorder.delays)
}

func TestHTTPClient_MaxRetriesExceeded(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down for maintenance"))
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).WithRetryConfig(fastRetryConfig(t, 2)).Build()
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &HTTPRequest{URL: server.URL, Method: "GET"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requestCount))
	assert.ErrorIs(t, err, ratelimit.ErrRetriesExhausted)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "down for maintenance", httpErr.Body)
}

func TestHTTPClient_DoesNotRetryClientErrors(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).WithRetryConfig(fastRetryConfig(t, 3)).Build()
	require.NoError(t, err)

	_, err = client.Do(context.Background(), &HTTPRequest{URL: server.URL, Method: "GET"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	assert.ErrorIs(t, err, ratelimit.ErrNonRetryable)
}

func TestHTTPClient_CustomClassifier(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requestCount, 1) == 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	classifier := ratelimit.NewStatusClassifier(ratelimit.WithTransientCodes(http.StatusConflict))
	client, err := NewHTTPClientBuilder(zerolog.Nop()).
		WithRetryConfig(fastRetryConfig(t, 1)).
		WithClassifier(classifier).
		Build()
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &HTTPRequest{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
}

func TestHTTPClient_CancelDuringBackoff(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.Do(ctx, &HTTPRequest{URL: server.URL})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
}

func TestHTTPClient_Pacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).WithRateLimit(20, 1).Build()
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Do(context.Background(), &HTTPRequest{URL: server.URL})
		require.NoError(t, err)
	}
	// 3 requests at 20 rps with burst 1 need at least two 50ms intervals.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestHTTPClient_FetchContent_Simple(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("ETag", "v1")
		_, _ = w.Write([]byte("some content"))
	}))
	defer server.Close()

	logger := zerolog.Nop()
	client, err := NewHTTPClientBuilder(logger).Build()
	require.NoError(t, err)

	input := FetchContentInput{
		URL: server.URL,
	}

	result, err := client.FetchContent(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.HTTPStatusCode)
	assert.Equal(t, "some content", string(result.Content))
	assert.Equal(t, "text/plain", result.ContentType)
	assert.Equal(t, "v1", result.ETag)
	assert.Equal(t, 1, result.Attempts)
}

func TestHTTPClient_FetchContent_NotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		etag := r.Header.Get("If-None-Match")
		if etag == "v1" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", "v1")
		_, _ = w.Write([]byte("some content"))
	}))
	defer server.Close()

	logger := zerolog.Nop()
	client, err := NewHTTPClientBuilder(logger).Build()
	require.NoError(t, err)

	input := FetchContentInput{
		URL:          server.URL,
		PreviousETag: "v1",
	}

	result, err := client.FetchContent(context.Background(), input)
	require.ErrorIs(t, err, ErrNotModified)
	assert.Equal(t, http.StatusNotModified, result.HTTPStatusCode)
}

func TestHTTPClient_FetchContent_MaxSize(t *testing.T) {
	longContent := "this is some very long content"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(longContent))
	}))
	defer server.Close()

	logger := zerolog.Nop()
	client, err := NewHTTPClientBuilder(logger).WithMaxContentSize(10).Build()
	require.NoError(t, err)

	input := FetchContentInput{
		URL: server.URL,
	}

	result, err := client.FetchContent(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.HTTPStatusCode)
	assert.Equal(t, "this is so", string(result.Content)) // Truncated to 10 bytes
	assert.Len(t, result.Content, 10)
}

func TestHTTPClient_FetchContent_BypassCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "no-cache", r.Header.Get("Pragma"))
		assert.Equal(t, "no-cache, no-store, must-revalidate", r.Header.Get("Cache-Control"))
		assert.Empty(t, r.Header.Get("If-None-Match"))
		_, _ = w.Write([]byte("fresh content"))
	}))
	defer server.Close()

	logger := zerolog.Nop()
	client, err := NewHTTPClientBuilder(logger).Build()
	require.NoError(t, err)

	input := FetchContentInput{
		URL:          server.URL,
		PreviousETag: "v1",
		BypassCache:  true,
	}

	result, err := client.FetchContent(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "fresh content", string(result.Content))
}

func TestHTTPClient_FetchContent_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("nope"))
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	result, err := client.FetchContent(context.Background(), FetchContentInput{URL: server.URL})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusForbidden, result.HTTPStatusCode)
	assert.Equal(t, "nope", string(result.Content))
	assert.Equal(t, 1, result.Attempts)
}

func TestHTTPError_ExposesStatusAndHeaders(t *testing.T) {
	err := error(&HTTPError{StatusCode: 429, Headers: map[string]string{"Retry-After": "3"}})

	var coder ratelimit.StatusCoder
	require.ErrorAs(t, err, &coder)
	assert.Equal(t, 429, coder.HTTPStatusCode())

	state := ratelimit.StateFromError(fmt.Errorf("wrapped: %w", err))
	require.NotNil(t, state)
	assert.Equal(t, 3, *state.RetryAfterSeconds)
}
