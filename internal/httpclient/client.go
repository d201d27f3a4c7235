package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/aleister1102/ratekeeper/internal/ratelimit"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

// ErrNotModified is returned when content has not been modified (HTTP 304).
var ErrNotModified = NewError("content not modified")

// HTTPClient wraps net/http.Client. Every request goes through the rate-limit
// aware retrier, and optionally through a token bucket shared by all callers.
type HTTPClient struct {
	client     *http.Client
	config     HTTPClientConfig
	logger     zerolog.Logger
	retrier    *ratelimit.Retrier
	limiter    *rate.Limiter
	bufferPool sync.Pool
}

// NewHTTPClient creates a new HTTP client with the given configuration using net/http
func NewHTTPClient(config HTTPClientConfig, retrier *ratelimit.Retrier, logger zerolog.Logger) (*HTTPClient, error) {
	if retrier == nil {
		return nil, NewValidationError("retrier", nil, "retrier is required")
	}
	if config.RequestsPerSecond < 0 {
		return nil, NewValidationError("RequestsPerSecond", config.RequestsPerSecond, "must not be negative")
	}

	logger = logger.With().Str("component", "HTTPClient").Logger()

	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn().Err(err).Msg("Failed to configure HTTP/2, falling back to HTTP/1.1")
		} else {
			logger.Debug().Msg("HTTP/2 support enabled")
		}
	}

	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, WrapError(err, "failed to parse proxy URL")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		logger.Info().Str("proxy", config.Proxy).Msg("HTTP client configured with proxy")
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	if !config.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if config.MaxRedirects > 0 {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", config.MaxRedirects)
			}
			return nil
		}
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	logger.Debug().
		Dur("timeout", config.Timeout).
		Bool("insecure_skip_verify", config.InsecureSkipVerify).
		Bool("follow_redirects", config.FollowRedirects).
		Int("max_redirects", config.MaxRedirects).
		Bool("http2_enabled", config.EnableHTTP2).
		Float64("requests_per_second", config.RequestsPerSecond).
		Msg("HTTP client created")

	return &HTTPClient{
		client:  client,
		config:  config,
		logger:  logger,
		retrier: retrier,
		limiter: limiter,
		bufferPool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, 32*1024)
				return &b
			},
		},
	}, nil
}

// Do performs an HTTP request, retrying throttled and transient failures.
// A status >= 400 that is not retried, or still fails after the last retry,
// is returned as a *ratelimit.RetryError wrapping an *HTTPError.
func (c *HTTPClient) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	if req == nil || req.URL == "" {
		return nil, NewValidationError("URL", "", "request URL is required")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var attempts atomic.Int32
	resp, err := ratelimit.Do(ctx, c.retrier, method+" "+req.URL, func(ctx context.Context) (*HTTPResponse, error) {
		attempts.Add(1)
		return c.do(ctx, method, req)
	})
	if err != nil {
		return nil, err
	}

	resp.Attempts = int(attempts.Load())
	return resp, nil
}

// do performs a single attempt.
func (c *HTTPClient) do(ctx context.Context, method string, req *HTTPRequest) (*HTTPResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, WrapError(err, "rate limiter wait failed")
		}
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, ratelimit.MarkPermanent(WrapError(err, "failed to create HTTP request"))
	}

	// Set custom headers from config first (default headers)
	for key, value := range c.config.CustomHeaders {
		httpReq.Header.Set(key, value)
	}

	// Set request-specific headers (these can override defaults)
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if c.config.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "*/*")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, NewNetworkError(req.URL, "HTTP request failed", err)
	}
	defer resp.Body.Close()

	// Use a buffer from the pool to read the response body
	bufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(bufPtr)
	buf := bytes.NewBuffer((*bufPtr)[:0])

	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, NewNetworkError(req.URL, "failed to read response body", err)
	}

	bodyBytes := make([]byte, buf.Len())
	copy(bodyBytes, buf.Bytes())

	httpResp := &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    make(map[string]string, len(resp.Header)),
		Body:       bodyBytes,
		RateLimit:  ratelimit.ParseHTTPHeader(resp.Header),
	}

	for key, values := range resp.Header {
		if len(values) > 0 {
			httpResp.Headers[key] = values[0] // Take first value if multiple
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newHTTPError(httpResp, req.URL)
	}

	if httpResp.RateLimit.IsApproachingLimit() {
		c.logger.Warn().
			Str("url", req.URL).
			Int("limit", *httpResp.RateLimit.Limit).
			Int("remaining", *httpResp.RateLimit.Remaining).
			Msg("Approaching rate limit")
	}

	return httpResp, nil
}

// FetchContentInput holds parameters for FetchContent.
type FetchContentInput struct {
	URL                  string
	PreviousETag         string
	PreviousLastModified string
	BypassCache          bool // When true, skips conditional headers to force fresh content
}

// FetchContentResult holds results from FetchContent.
type FetchContentResult struct {
	Content        []byte
	ContentType    string
	ETag           string
	LastModified   string
	HTTPStatusCode int
	Attempts       int
	RateLimit      *ratelimit.State
}

// FetchContent fetches the content at the given URL with support for conditional GETs.
func (c *HTTPClient) FetchContent(ctx context.Context, input FetchContentInput) (*FetchContentResult, error) {
	headers := make(map[string]string)

	if !input.BypassCache {
		if input.PreviousETag != "" {
			headers["If-None-Match"] = input.PreviousETag
		}
		if input.PreviousLastModified != "" {
			headers["If-Modified-Since"] = input.PreviousLastModified
		}
	} else {
		headers["Cache-Control"] = "no-cache, no-store, must-revalidate"
		headers["Pragma"] = "no-cache"
		headers["Expires"] = "0"
	}

	req := &HTTPRequest{
		URL:     input.URL,
		Method:  http.MethodGet,
		Headers: headers,
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", input.URL).Msg("Failed to execute HTTP request")

		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			result := &FetchContentResult{
				Content:        []byte(httpErr.Body),
				HTTPStatusCode: httpErr.StatusCode,
				RateLimit:      ratelimit.ParseState(httpErr.Headers),
			}
			var retryErr *ratelimit.RetryError
			if errors.As(err, &retryErr) {
				result.Attempts = retryErr.Attempts
			}
			return result, err
		}
		return nil, err
	}

	result := &FetchContentResult{
		ETag:           resp.Headers["Etag"],
		LastModified:   resp.Headers["Last-Modified"],
		ContentType:    resp.Headers["Content-Type"],
		HTTPStatusCode: resp.StatusCode,
		Attempts:       resp.Attempts,
		RateLimit:      resp.RateLimit,
	}

	if resp.StatusCode == http.StatusNotModified {
		c.logger.Debug().Str("url", input.URL).Msg("Content not modified (304)")
		return result, ErrNotModified
	}

	if c.config.MaxContentSize > 0 && len(resp.Body) > c.config.MaxContentSize {
		c.logger.Warn().
			Str("url", input.URL).
			Int("content_size", len(resp.Body)).
			Int("max_content_size", c.config.MaxContentSize).
			Msg("Content size exceeds limit, truncating")
		result.Content = resp.Body[:c.config.MaxContentSize]
	} else {
		result.Content = resp.Body
	}

	c.logger.Debug().
		Str("url", input.URL).
		Int("content_size", len(result.Content)).
		Str("content_type", result.ContentType).
		Int("attempts", result.Attempts).
		Msg("Successfully fetched content")

	return result, nil
}

// Retrier returns the retry driver used by the client.
func (c *HTTPClient) Retrier() *ratelimit.Retrier {
	return c.retrier
}
