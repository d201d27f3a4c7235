package httpclient

import (
	"time"

	"github.com/aleister1102/ratekeeper/internal/ratelimit"
	"github.com/rs/zerolog"
)

// HTTPClientBuilder builds HTTP clients with fluent interface
type HTTPClientBuilder struct {
	config      HTTPClientConfig
	retryConfig ratelimit.Config
	classifier  ratelimit.Classifier
	observer    ratelimit.Observer
	sleep       ratelimit.SleepFunc
	logger      zerolog.Logger
}

// NewHTTPClientBuilder creates a new HTTPClientBuilder with default configuration
func NewHTTPClientBuilder(logger zerolog.Logger) *HTTPClientBuilder {
	return &HTTPClientBuilder{
		config:      DefaultHTTPClientConfig(),
		retryConfig: ratelimit.DefaultConfig(),
		logger:      logger,
	}
}

// WithConfig replaces the whole transport configuration
func (b *HTTPClientBuilder) WithConfig(config HTTPClientConfig) *HTTPClientBuilder {
	b.config = config
	return b
}

// WithTimeout sets the per-attempt request timeout
func (b *HTTPClientBuilder) WithTimeout(timeout time.Duration) *HTTPClientBuilder {
	b.config.Timeout = timeout
	return b
}

// WithInsecureSkipVerify sets whether to skip TLS verification
func (b *HTTPClientBuilder) WithInsecureSkipVerify(skip bool) *HTTPClientBuilder {
	b.config.InsecureSkipVerify = skip
	return b
}

// WithFollowRedirects sets whether to follow redirects
func (b *HTTPClientBuilder) WithFollowRedirects(follow bool) *HTTPClientBuilder {
	b.config.FollowRedirects = follow
	return b
}

// WithMaxRedirects sets the maximum number of redirects to follow
func (b *HTTPClientBuilder) WithMaxRedirects(max int) *HTTPClientBuilder {
	b.config.MaxRedirects = max
	return b
}

// WithUserAgent sets the User-Agent header
func (b *HTTPClientBuilder) WithUserAgent(userAgent string) *HTTPClientBuilder {
	b.config.UserAgent = userAgent
	return b
}

// WithCustomHeaders sets headers added to every request
func (b *HTTPClientBuilder) WithCustomHeaders(headers map[string]string) *HTTPClientBuilder {
	b.config.CustomHeaders = headers
	return b
}

// WithProxy sets the proxy URL
func (b *HTTPClientBuilder) WithProxy(proxy string) *HTTPClientBuilder {
	b.config.Proxy = proxy
	return b
}

// WithMaxContentSize sets the maximum content size to fetch in bytes (0 for no limit)
func (b *HTTPClientBuilder) WithMaxContentSize(size int) *HTTPClientBuilder {
	b.config.MaxContentSize = size
	return b
}

// WithConnectionPooling sets connection pooling parameters
func (b *HTTPClientBuilder) WithConnectionPooling(maxIdle, maxIdlePerHost, maxPerHost int) *HTTPClientBuilder {
	b.config.MaxIdleConns = maxIdle
	b.config.MaxIdleConnsPerHost = maxIdlePerHost
	b.config.MaxConnsPerHost = maxPerHost
	return b
}

// WithHTTP2 enables or disables HTTP/2 support
func (b *HTTPClientBuilder) WithHTTP2(enabled bool) *HTTPClientBuilder {
	b.config.EnableHTTP2 = enabled
	return b
}

// WithRateLimit paces outgoing requests to rps with the given burst (rps 0 disables pacing)
func (b *HTTPClientBuilder) WithRateLimit(rps float64, burst int) *HTTPClientBuilder {
	b.config.RequestsPerSecond = rps
	b.config.Burst = burst
	return b
}

// WithRetryConfig sets the retry tuning used for every request
func (b *HTTPClientBuilder) WithRetryConfig(config ratelimit.Config) *HTTPClientBuilder {
	b.retryConfig = config
	return b
}

// WithClassifier overrides which failures are retried
func (b *HTTPClientBuilder) WithClassifier(classifier ratelimit.Classifier) *HTTPClientBuilder {
	b.classifier = classifier
	return b
}

// WithObserver registers a retry event observer, typically metrics
func (b *HTTPClientBuilder) WithObserver(observer ratelimit.Observer) *HTTPClientBuilder {
	b.observer = observer
	return b
}

// WithSleep replaces the wait between attempts. Mostly useful in tests.
func (b *HTTPClientBuilder) WithSleep(sleep ratelimit.SleepFunc) *HTTPClientBuilder {
	b.sleep = sleep
	return b
}

// Build creates and returns a new HTTPClient
func (b *HTTPClientBuilder) Build() (*HTTPClient, error) {
	var calcOpts []ratelimit.CalculatorOption
	if b.classifier != nil {
		calcOpts = append(calcOpts, ratelimit.WithClassifier(b.classifier))
	}

	calculator, err := ratelimit.NewCalculator(b.retryConfig, calcOpts...)
	if err != nil {
		return nil, WrapError(err, "invalid retry configuration")
	}

	var retrierOpts []ratelimit.RetrierOption
	if b.observer != nil {
		retrierOpts = append(retrierOpts, ratelimit.WithObserver(b.observer))
	}
	if b.sleep != nil {
		retrierOpts = append(retrierOpts, ratelimit.WithSleep(b.sleep))
	}

	retrier := ratelimit.NewRetrier(calculator, b.logger, retrierOpts...)
	return NewHTTPClient(b.config, retrier, b.logger)
}
