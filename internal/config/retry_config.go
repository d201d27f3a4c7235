package config

import (
	"time"

	"github.com/aleister1102/ratekeeper/internal/common/errorwrapper"
	"github.com/aleister1102/ratekeeper/internal/ratelimit"
)

// RetryConfig selects a retry preset and optionally overrides its fields.
// Pointer fields distinguish "not set" from an explicit zero.
type RetryConfig struct {
	Preset            string   `json:"preset,omitempty" yaml:"preset,omitempty" validate:"omitempty,preset"`
	MaxRetries        *int     `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"omitempty,min=0,max=100"`
	BaseDelayMs       int      `json:"base_delay_ms,omitempty" yaml:"base_delay_ms,omitempty" validate:"omitempty,min=1"`
	MaxDelayMs        int      `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty" validate:"omitempty,min=1"`
	JitterFactor      *float64 `json:"jitter_factor,omitempty" yaml:"jitter_factor,omitempty" validate:"omitempty,min=0,max=1"`
	Strategy          string   `json:"strategy,omitempty" yaml:"strategy,omitempty" validate:"omitempty,strategy"`
	RespectRetryAfter *bool    `json:"respect_retry_after,omitempty" yaml:"respect_retry_after,omitempty"`
	ScaleServerDelay  bool     `json:"scale_server_delay,omitempty" yaml:"scale_server_delay,omitempty"`
	// Status codes treated as throttling (default: [429])
	RateLimitStatusCodes []int `json:"rate_limit_status_codes,omitempty" yaml:"rate_limit_status_codes,omitempty" validate:"omitempty,dive,min=100,max=599"`
	// Status codes treated as transient server failures (default: [500, 502, 503, 504])
	TransientStatusCodes []int `json:"transient_status_codes,omitempty" yaml:"transient_status_codes,omitempty" validate:"omitempty,dive,min=100,max=599"`
	RetryNetworkTimeouts *bool `json:"retry_network_timeouts,omitempty" yaml:"retry_network_timeouts,omitempty"`
}

// NewDefaultRetryConfig creates default retry configuration
func NewDefaultRetryConfig() RetryConfig {
	return RetryConfig{Preset: DefaultRetryPreset}
}

// ToRateLimitConfig resolves the preset and applies overrides.
func (rc RetryConfig) ToRateLimitConfig() (ratelimit.Config, error) {
	preset := rc.Preset
	if preset == "" {
		preset = DefaultRetryPreset
	}
	base, err := ratelimit.PresetConfig(preset)
	if err != nil {
		return ratelimit.Config{}, errorwrapper.WrapError(err, "invalid retry preset")
	}

	b := ratelimit.NewConfigBuilderFrom(base).WithScaleServerDelay(rc.ScaleServerDelay)
	if rc.MaxRetries != nil {
		b.WithMaxRetries(*rc.MaxRetries)
	}
	if rc.BaseDelayMs > 0 {
		b.WithBaseDelay(time.Duration(rc.BaseDelayMs) * time.Millisecond)
	}
	if rc.MaxDelayMs > 0 {
		b.WithMaxDelay(time.Duration(rc.MaxDelayMs) * time.Millisecond)
	}
	if rc.JitterFactor != nil {
		b.WithJitterFactor(*rc.JitterFactor)
	}
	if rc.Strategy != "" {
		strategy, err := ratelimit.ParseStrategy(rc.Strategy)
		if err != nil {
			return ratelimit.Config{}, errorwrapper.WrapError(err, "invalid retry strategy")
		}
		b.WithStrategy(strategy)
	}
	if rc.RespectRetryAfter != nil {
		b.WithRespectRetryAfter(*rc.RespectRetryAfter)
	}

	cfg, err := b.Build()
	if err != nil {
		return ratelimit.Config{}, errorwrapper.WrapError(err, "invalid retry configuration")
	}
	return cfg, nil
}

// NewClassifier builds the status classifier described by the configured code sets.
func (rc RetryConfig) NewClassifier() ratelimit.Classifier {
	var opts []ratelimit.StatusClassifierOption
	if len(rc.RateLimitStatusCodes) > 0 {
		opts = append(opts, ratelimit.WithRateLimitCodes(rc.RateLimitStatusCodes...))
	}
	if len(rc.TransientStatusCodes) > 0 {
		opts = append(opts, ratelimit.WithTransientCodes(rc.TransientStatusCodes...))
	}
	if rc.RetryNetworkTimeouts != nil {
		opts = append(opts, ratelimit.WithNetworkTimeouts(*rc.RetryNetworkTimeouts))
	}
	return ratelimit.NewStatusClassifier(opts...)
}
