// Package rslimiter watches process and host resources during a run and
// asks the owner to stop when configured limits are crossed.
package rslimiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ResourceLimiterConfig holds configuration for the resource limiter.
// Zero limits are not checked.
type ResourceLimiterConfig struct {
	MaxMemoryMB        int64         // Heap allocation limit
	MaxGoroutines      int           // Goroutine count limit
	CheckInterval      time.Duration // How often to sample
	CPUSampleWindow    time.Duration // Window for CPU sampling, 0 disables CPU checks
	SystemMemThreshold float64       // Fraction of host memory in use (0.9 = 90%)
	CPUThreshold       float64       // Fraction of host CPU in use
	EnableAutoShutdown bool          // Invoke the shutdown callback when a limit is exceeded
}

// DefaultResourceLimiterConfig returns default configuration
func DefaultResourceLimiterConfig() ResourceLimiterConfig {
	return ResourceLimiterConfig{
		MaxMemoryMB:        1024,
		MaxGoroutines:      10000,
		CheckInterval:      30 * time.Second,
		CPUSampleWindow:    100 * time.Millisecond,
		SystemMemThreshold: 0.9,
		CPUThreshold:       0.95,
		EnableAutoShutdown: true,
	}
}

// ResourceLimiter periodically samples resource usage. When a limit is
// exceeded it logs the reason and calls the shutdown callback once.
type ResourceLimiter struct {
	config ResourceLimiterConfig
	logger zerolog.Logger
	sample func() ResourceUsage

	mu               sync.Mutex
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	shutdownCallback func()
	shutdownOnce     sync.Once
}

// NewResourceLimiter creates a new resource limiter
func NewResourceLimiter(config ResourceLimiterConfig, logger zerolog.Logger) *ResourceLimiter {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 30 * time.Second
	}

	rl := &ResourceLimiter{
		config: config,
		logger: logger.With().Str("component", "ResourceLimiter").Logger(),
	}
	rl.sample = func() ResourceUsage { return GetResourceUsage(rl.config.CPUSampleWindow) }
	return rl
}

// SetShutdownCallback sets the function called when a limit is exceeded,
// typically the cancel function of the run context.
func (rl *ResourceLimiter) SetShutdownCallback(callback func()) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.shutdownCallback = callback
}

// Start begins monitoring until ctx is done or Stop is called. Calling Start
// on a running limiter is a no-op.
func (rl *ResourceLimiter) Start(ctx context.Context) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.cancel != nil {
		return
	}

	ctx, rl.cancel = context.WithCancel(ctx)
	rl.wg.Add(1)
	go rl.monitorResources(ctx)

	rl.logger.Debug().
		Int64("max_memory_mb", rl.config.MaxMemoryMB).
		Int("max_goroutines", rl.config.MaxGoroutines).
		Dur("check_interval", rl.config.CheckInterval).
		Bool("auto_shutdown_enabled", rl.config.EnableAutoShutdown).
		Msg("Resource limiter started")
}

// Stop stops the monitor and waits for it to exit.
func (rl *ResourceLimiter) Stop() {
	rl.mu.Lock()
	cancel := rl.cancel
	rl.cancel = nil
	rl.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	rl.wg.Wait()
}

// IsRunning reports whether the monitor goroutine is active.
func (rl *ResourceLimiter) IsRunning() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.cancel != nil
}

// CheckLimits returns the first exceeded limit for usage, if any.
func (rl *ResourceLimiter) CheckLimits(usage ResourceUsage) (bool, string) {
	switch {
	case rl.config.MaxMemoryMB > 0 && usage.AllocMB > rl.config.MaxMemoryMB:
		return true, fmt.Sprintf("memory limit exceeded: current %dMB > limit %dMB", usage.AllocMB, rl.config.MaxMemoryMB)
	case rl.config.MaxGoroutines > 0 && usage.Goroutines > rl.config.MaxGoroutines:
		return true, fmt.Sprintf("goroutine limit exceeded: current %d > limit %d", usage.Goroutines, rl.config.MaxGoroutines)
	case rl.config.SystemMemThreshold > 0 && usage.SystemMemUsedPercent/100 > rl.config.SystemMemThreshold:
		return true, fmt.Sprintf("system memory threshold exceeded: %.1f%%", usage.SystemMemUsedPercent)
	case rl.config.CPUThreshold > 0 && usage.CPUUsagePercent/100 > rl.config.CPUThreshold:
		return true, fmt.Sprintf("CPU usage threshold exceeded: %.1f%%", usage.CPUUsagePercent)
	}
	return false, ""
}

func (rl *ResourceLimiter) monitorResources(ctx context.Context) {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.checkAndLogResourceUsage()
		}
	}
}

func (rl *ResourceLimiter) checkAndLogResourceUsage() {
	usage := rl.sample()

	rl.logger.Debug().
		Int64("alloc_mb", usage.AllocMB).
		Int64("sys_mb", usage.SysMB).
		Int("goroutines", usage.Goroutines).
		Float64("system_mem_percent", usage.SystemMemUsedPercent).
		Float64("cpu_percent", usage.CPUUsagePercent).
		Msg("Current resource usage")

	exceeded, reason := rl.CheckLimits(usage)
	if !exceeded {
		return
	}

	if !rl.config.EnableAutoShutdown {
		rl.logger.Warn().Str("reason", reason).Msg("Resource limit exceeded")
		return
	}

	rl.logger.Error().Str("reason", reason).Msg("Resource limits exceeded, triggering graceful shutdown")
	rl.triggerGracefulShutdown()
}

func (rl *ResourceLimiter) triggerGracefulShutdown() {
	rl.mu.Lock()
	callback := rl.shutdownCallback
	rl.mu.Unlock()

	if callback == nil {
		rl.logger.Warn().Msg("No shutdown callback set, cannot trigger graceful shutdown")
		return
	}
	rl.shutdownOnce.Do(callback)
}
