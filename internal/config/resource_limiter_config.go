package config

import (
	"time"

	"github.com/aleister1102/ratekeeper/internal/rslimiter"
)

// ResourceLimiterConfig stops a run when the process or host runs hot
type ResourceLimiterConfig struct {
	Enabled            bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	MaxMemoryMB        int64   `json:"max_memory_mb,omitempty" yaml:"max_memory_mb,omitempty" validate:"omitempty,min=1"`
	MaxGoroutines      int     `json:"max_goroutines,omitempty" yaml:"max_goroutines,omitempty" validate:"omitempty,min=1"`
	CheckIntervalSecs  int     `json:"check_interval_secs,omitempty" yaml:"check_interval_secs,omitempty" validate:"omitempty,min=1"`
	SystemMemThreshold float64 `json:"system_mem_threshold,omitempty" yaml:"system_mem_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	CPUThreshold       float64 `json:"cpu_threshold,omitempty" yaml:"cpu_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	EnableAutoShutdown *bool   `json:"enable_auto_shutdown,omitempty" yaml:"enable_auto_shutdown,omitempty"`
}

// NewDefaultResourceLimiterConfig creates default resource limiter configuration
func NewDefaultResourceLimiterConfig() ResourceLimiterConfig {
	defaults := rslimiter.DefaultResourceLimiterConfig()
	return ResourceLimiterConfig{
		MaxMemoryMB:        defaults.MaxMemoryMB,
		MaxGoroutines:      defaults.MaxGoroutines,
		CheckIntervalSecs:  int(defaults.CheckInterval / time.Second),
		SystemMemThreshold: defaults.SystemMemThreshold,
		CPUThreshold:       defaults.CPUThreshold,
	}
}

// ToResourceLimiterConfig overlays the file settings on the limiter defaults
func (rc ResourceLimiterConfig) ToResourceLimiterConfig() rslimiter.ResourceLimiterConfig {
	cfg := rslimiter.DefaultResourceLimiterConfig()
	if rc.MaxMemoryMB > 0 {
		cfg.MaxMemoryMB = rc.MaxMemoryMB
	}
	if rc.MaxGoroutines > 0 {
		cfg.MaxGoroutines = rc.MaxGoroutines
	}
	if rc.CheckIntervalSecs > 0 {
		cfg.CheckInterval = time.Duration(rc.CheckIntervalSecs) * time.Second
	}
	if rc.SystemMemThreshold > 0 {
		cfg.SystemMemThreshold = rc.SystemMemThreshold
	}
	if rc.CPUThreshold > 0 {
		cfg.CPUThreshold = rc.CPUThreshold
	}
	if rc.EnableAutoShutdown != nil {
		cfg.EnableAutoShutdown = *rc.EnableAutoShutdown
	}
	return cfg
}
