package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	for _, cfg := range []Config{ConservativeConfig(), BalancedConfig(), AggressiveConfig()} {
		t.Run(string(cfg.Strategy), func(t *testing.T) {
			require.NoError(t, cfg.Validate())
			assert.True(t, cfg.RespectRetryAfter)
			assert.GreaterOrEqual(t, cfg.MaxDelay, 30*time.Second)
		})
	}

	assert.Equal(t, BalancedConfig(), DefaultConfig())
	assert.Greater(t, ConservativeConfig().MaxRetries, BalancedConfig().MaxRetries)
	assert.Greater(t, BalancedConfig().MaxRetries, AggressiveConfig().MaxRetries)
}

func TestPresetConfig(t *testing.T) {
	cfg, err := PresetConfig("Conservative")
	require.NoError(t, err)
	assert.Equal(t, ConservativeConfig(), cfg)

	cfg, err = PresetConfig("aggressive")
	require.NoError(t, err)
	assert.Equal(t, AggressiveConfig(), cfg)

	_, err = PresetConfig("reckless")
	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" BALANCED ")
	require.NoError(t, err)
	assert.Equal(t, StrategyBalanced, s)

	_, err = ParseStrategy("")
	assert.Error(t, err)
}

func TestStrategy_Multiplier(t *testing.T) {
	assert.Equal(t, 1.5, StrategyConservative.Multiplier())
	assert.Equal(t, 1.0, StrategyBalanced.Multiplier())
	assert.Equal(t, 0.7, StrategyAggressive.Multiplier())
}

func TestConfigBuilder(t *testing.T) {
	cfg, err := NewConfigBuilder().
		WithMaxRetries(7).
		WithBaseDelay(250 * time.Millisecond).
		WithMaxDelay(10 * time.Second).
		WithJitterFactor(0).
		WithStrategy(StrategyAggressive).
		WithRespectRetryAfter(false).
		WithScaleServerDelay(true).
		Build()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.MaxDelay)
	assert.Zero(t, cfg.JitterFactor)
	assert.Equal(t, StrategyAggressive, cfg.Strategy)
	assert.False(t, cfg.RespectRetryAfter)
	assert.True(t, cfg.ScaleServerDelay)
}

func TestConfigBuilder_FromPreset(t *testing.T) {
	cfg, err := NewConfigBuilderFrom(ConservativeConfig()).WithMaxRetries(1).Build()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, StrategyConservative, cfg.Strategy)
	assert.Equal(t, 2*time.Second, cfg.BaseDelay)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConfigBuilder)
		field  string
	}{
		{"negative retries", func(b *ConfigBuilder) { b.WithMaxRetries(-1) }, "MaxRetries"},
		{"zero base delay", func(b *ConfigBuilder) { b.WithBaseDelay(0) }, "BaseDelay"},
		{"max below base", func(b *ConfigBuilder) { b.WithBaseDelay(time.Minute).WithMaxDelay(time.Second) }, "MaxDelay"},
		{"jitter above one", func(b *ConfigBuilder) { b.WithJitterFactor(1.5) }, "JitterFactor"},
		{"negative jitter", func(b *ConfigBuilder) { b.WithJitterFactor(-0.1) }, "JitterFactor"},
		{"unknown strategy", func(b *ConfigBuilder) { b.WithStrategy("yolo") }, "Strategy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewConfigBuilder()
			tt.mutate(b)
			_, err := b.Build()
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, cfgErr.Error(), tt.field)
		})
	}
}

func TestConfig_ValidateEdgeValues(t *testing.T) {
	cfg, err := NewConfigBuilder().
		WithMaxRetries(0).
		WithBaseDelay(time.Second).
		WithMaxDelay(time.Second).
		WithJitterFactor(1).
		Build()
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseDelay, cfg.MaxDelay)
}
