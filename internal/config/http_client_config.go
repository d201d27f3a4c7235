package config

import (
	"time"

	"github.com/aleister1102/ratekeeper/internal/httpclient"
)

// HTTPClientConfig defines the transport settings exposed in the config file
type HTTPClientConfig struct {
	TimeoutSecs         int               `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"omitempty,min=1"`
	UserAgent           string            `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	InsecureSkipVerify  bool              `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
	FollowRedirects     *bool             `json:"follow_redirects,omitempty" yaml:"follow_redirects,omitempty"`
	MaxRedirects        int               `json:"max_redirects,omitempty" yaml:"max_redirects,omitempty" validate:"omitempty,min=0"`
	Proxy               string            `json:"proxy,omitempty" yaml:"proxy,omitempty" validate:"omitempty,url"`
	CustomHeaders       map[string]string `json:"custom_headers,omitempty" yaml:"custom_headers,omitempty"`
	MaxContentSizeBytes int               `json:"max_content_size_bytes,omitempty" yaml:"max_content_size_bytes,omitempty" validate:"omitempty,min=0"`
	MaxIdleConns        int               `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty" validate:"omitempty,min=0"`
	MaxConnsPerHost     int               `json:"max_conns_per_host,omitempty" yaml:"max_conns_per_host,omitempty" validate:"omitempty,min=0"`
	DisableHTTP2        bool              `json:"disable_http2,omitempty" yaml:"disable_http2,omitempty"`
	// Client-side pacing shared by every request (0 disables)
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty" validate:"omitempty,min=0"`
	Burst             int     `json:"burst,omitempty" yaml:"burst,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultHTTPClientConfig creates default HTTP client configuration
func NewDefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		TimeoutSecs:  DefaultHTTPTimeoutSecs,
		UserAgent:    DefaultHTTPUserAgent,
		MaxRedirects: DefaultHTTPMaxRedirects,
	}
}

// ToHTTPClientConfig overlays the file settings on the transport defaults.
func (hc HTTPClientConfig) ToHTTPClientConfig() httpclient.HTTPClientConfig {
	cfg := httpclient.DefaultHTTPClientConfig()

	if hc.TimeoutSecs > 0 {
		cfg.Timeout = time.Duration(hc.TimeoutSecs) * time.Second
	}
	if hc.UserAgent != "" {
		cfg.UserAgent = hc.UserAgent
	}
	cfg.InsecureSkipVerify = hc.InsecureSkipVerify
	if hc.FollowRedirects != nil {
		cfg.FollowRedirects = *hc.FollowRedirects
	}
	if hc.MaxRedirects > 0 {
		cfg.MaxRedirects = hc.MaxRedirects
	}
	cfg.Proxy = hc.Proxy
	for k, v := range hc.CustomHeaders {
		cfg.CustomHeaders[k] = v
	}
	cfg.MaxContentSize = hc.MaxContentSizeBytes
	if hc.MaxIdleConns > 0 {
		cfg.MaxIdleConns = hc.MaxIdleConns
	}
	cfg.MaxConnsPerHost = hc.MaxConnsPerHost
	cfg.EnableHTTP2 = !hc.DisableHTTP2
	cfg.RequestsPerSecond = hc.RequestsPerSecond
	if hc.Burst > 0 {
		cfg.Burst = hc.Burst
	}

	return cfg
}
