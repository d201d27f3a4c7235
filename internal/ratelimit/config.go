package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Strategy selects how aggressively computed backoff delays are scaled.
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyBalanced     Strategy = "balanced"
	StrategyAggressive   Strategy = "aggressive"
)

// Multiplier returns the factor applied to exponential backoff delays.
func (s Strategy) Multiplier() float64 {
	switch s {
	case StrategyConservative:
		return 1.5
	case StrategyAggressive:
		return 0.7
	default:
		return 1.0
	}
}

// ParseStrategy converts a case-insensitive name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategyConservative, StrategyBalanced, StrategyAggressive:
		return s, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", name)
	}
}

// Config holds the retry tuning knobs. It is treated as immutable once handed
// to a Calculator and may be shared by any number of concurrent operations.
type Config struct {
	MaxRetries        int           `json:"max_retries" yaml:"max_retries" validate:"gte=0"`
	BaseDelay         time.Duration `json:"base_delay" yaml:"base_delay" validate:"gt=0"`
	MaxDelay          time.Duration `json:"max_delay" yaml:"max_delay" validate:"gtefield=BaseDelay"`
	JitterFactor      float64       `json:"jitter_factor" yaml:"jitter_factor" validate:"gte=0,lte=1"`
	Strategy          Strategy      `json:"strategy" yaml:"strategy" validate:"oneof=conservative balanced aggressive"`
	RespectRetryAfter bool          `json:"respect_retry_after" yaml:"respect_retry_after"`
	// ScaleServerDelay applies the strategy multiplier to Retry-After delays as well.
	ScaleServerDelay bool `json:"scale_server_delay" yaml:"scale_server_delay"`
}

var configValidator = validator.New()

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("retry config validation error: %w", err)
	}

	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := fmt.Sprintf("field '%s' failed rule '%s'", e.Field(), e.Tag())
		if e.Param() != "" {
			msg += fmt.Sprintf(" (%s)", e.Param())
		}
		messages = append(messages, msg)
	}
	return &ConfigError{Problems: messages}
}

// ConfigError lists every invariant a Config violates.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid retry config: " + strings.Join(e.Problems, "; ")
}

// ConservativeConfig retries patiently: more attempts and longer, scaled-up waits.
func ConservativeConfig() Config {
	return Config{
		MaxRetries:        5,
		BaseDelay:         2 * time.Second,
		MaxDelay:          2 * time.Minute,
		JitterFactor:      0.2,
		Strategy:          StrategyConservative,
		RespectRetryAfter: true,
	}
}

// BalancedConfig is the default preset.
func BalancedConfig() Config {
	return Config{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          time.Minute,
		JitterFactor:      0.1,
		Strategy:          StrategyBalanced,
		RespectRetryAfter: true,
	}
}

// AggressiveConfig favors latency: few attempts and short waits.
func AggressiveConfig() Config {
	return Config{
		MaxRetries:        2,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		JitterFactor:      0.1,
		Strategy:          StrategyAggressive,
		RespectRetryAfter: true,
	}
}

// DefaultConfig returns the balanced preset.
func DefaultConfig() Config {
	return BalancedConfig()
}

// PresetConfig returns the preset named after a strategy.
func PresetConfig(name string) (Config, error) {
	strategy, err := ParseStrategy(name)
	if err != nil {
		return Config{}, fmt.Errorf("unknown preset %q", name)
	}
	switch strategy {
	case StrategyConservative:
		return ConservativeConfig(), nil
	case StrategyAggressive:
		return AggressiveConfig(), nil
	default:
		return BalancedConfig(), nil
	}
}

// ConfigBuilder builds a validated Config with a fluent interface.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder starts from the balanced preset.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: BalancedConfig()}
}

// NewConfigBuilderFrom starts from an existing configuration, typically a preset.
func NewConfigBuilderFrom(base Config) *ConfigBuilder {
	return &ConfigBuilder{config: base}
}

// WithMaxRetries sets how many retries follow the first attempt
func (b *ConfigBuilder) WithMaxRetries(n int) *ConfigBuilder {
	b.config.MaxRetries = n
	return b
}

// WithBaseDelay sets the exponential backoff base
func (b *ConfigBuilder) WithBaseDelay(d time.Duration) *ConfigBuilder {
	b.config.BaseDelay = d
	return b
}

// WithMaxDelay sets the upper bound of any computed delay
func (b *ConfigBuilder) WithMaxDelay(d time.Duration) *ConfigBuilder {
	b.config.MaxDelay = d
	return b
}

// WithJitterFactor sets the jitter fraction in [0,1]
func (b *ConfigBuilder) WithJitterFactor(f float64) *ConfigBuilder {
	b.config.JitterFactor = f
	return b
}

// WithStrategy sets the delay multiplier strategy
func (b *ConfigBuilder) WithStrategy(s Strategy) *ConfigBuilder {
	b.config.Strategy = s
	return b
}

// WithRespectRetryAfter sets whether Retry-After overrides computed backoff
func (b *ConfigBuilder) WithRespectRetryAfter(respect bool) *ConfigBuilder {
	b.config.RespectRetryAfter = respect
	return b
}

// WithScaleServerDelay sets whether the strategy multiplier also scales Retry-After
func (b *ConfigBuilder) WithScaleServerDelay(scale bool) *ConfigBuilder {
	b.config.ScaleServerDelay = scale
	return b
}

// Build validates and returns the configuration.
func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.config.Validate(); err != nil {
		return Config{}, err
	}
	return b.config, nil
}
