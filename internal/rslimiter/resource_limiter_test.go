package rslimiter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceLimiter_New(t *testing.T) {
	config := DefaultResourceLimiterConfig()
	rl := NewResourceLimiter(config, zerolog.Nop())

	require.NotNil(t, rl)
	assert.Equal(t, config, rl.config)

	rl = NewResourceLimiter(ResourceLimiterConfig{}, zerolog.Nop())
	assert.Equal(t, 30*time.Second, rl.config.CheckInterval)
}

func TestResourceLimiter_StartAndStop(t *testing.T) {
	rl := NewResourceLimiter(DefaultResourceLimiterConfig(), zerolog.Nop())

	rl.Start(context.Background())
	assert.True(t, rl.IsRunning())
	rl.Start(context.Background())
	assert.True(t, rl.IsRunning())

	rl.Stop()
	assert.False(t, rl.IsRunning())
	assert.NotPanics(t, rl.Stop)
}

func TestResourceLimiter_CheckLimits(t *testing.T) {
	rl := NewResourceLimiter(ResourceLimiterConfig{
		MaxMemoryMB:        100,
		MaxGoroutines:      50,
		SystemMemThreshold: 0.9,
		CPUThreshold:       0.8,
	}, zerolog.Nop())

	tests := []struct {
		name       string
		usage      ResourceUsage
		exceeded   bool
		wantReason string
	}{
		{"within limits", ResourceUsage{AllocMB: 10, Goroutines: 5, SystemMemUsedPercent: 40, CPUUsagePercent: 20}, false, ""},
		{"heap", ResourceUsage{AllocMB: 101}, true, "memory limit exceeded"},
		{"goroutines", ResourceUsage{Goroutines: 51}, true, "goroutine limit exceeded"},
		{"system memory", ResourceUsage{SystemMemUsedPercent: 95}, true, "system memory"},
		{"cpu", ResourceUsage{CPUUsagePercent: 85}, true, "CPU usage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exceeded, reason := rl.CheckLimits(tt.usage)
			assert.Equal(t, tt.exceeded, exceeded)
			assert.Contains(t, reason, tt.wantReason)
		})
	}

	unlimited := NewResourceLimiter(ResourceLimiterConfig{}, zerolog.Nop())
	exceeded, _ := unlimited.CheckLimits(ResourceUsage{AllocMB: 1 << 20, Goroutines: 1 << 20, SystemMemUsedPercent: 100, CPUUsagePercent: 100})
	assert.False(t, exceeded)
}

func TestResourceLimiter_TriggersShutdownOnce(t *testing.T) {
	config := ResourceLimiterConfig{
		MaxGoroutines:      1,
		CheckInterval:      5 * time.Millisecond,
		EnableAutoShutdown: true,
	}
	rl := NewResourceLimiter(config, zerolog.Nop())
	rl.sample = func() ResourceUsage { return ResourceUsage{Goroutines: 10} }

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	rl.SetShutdownCallback(func() {
		calls.Add(1)
		cancel()
	})

	rl.Start(context.Background())
	defer rl.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("shutdown callback was not called")
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResourceLimiter_WarnOnlyWithoutAutoShutdown(t *testing.T) {
	rl := NewResourceLimiter(ResourceLimiterConfig{MaxGoroutines: 1}, zerolog.Nop())
	rl.sample = func() ResourceUsage { return ResourceUsage{Goroutines: 10} }

	called := false
	rl.SetShutdownCallback(func() { called = true })
	rl.checkAndLogResourceUsage()

	assert.False(t, called)
}

func TestResourceLimiter_ShutdownNoCallback(t *testing.T) {
	rl := NewResourceLimiter(DefaultResourceLimiterConfig(), zerolog.Nop())
	assert.NotPanics(t, rl.triggerGracefulShutdown)
}

func TestGetResourceUsage(t *testing.T) {
	usage := GetResourceUsage(0)

	assert.NotZero(t, usage.SysMB)
	assert.NotZero(t, usage.Goroutines)
	assert.Zero(t, usage.CPUUsagePercent)
}
