package rslimiter

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceUsage represents current system resource usage
type ResourceUsage struct {
	AllocMB              int64   // Currently allocated memory by application
	SysMB                int64   // System memory used by Go runtime
	Goroutines           int     // Number of goroutines
	SystemMemUsedPercent float64 // 0 when unavailable
	CPUUsagePercent      float64 // 0 when unavailable
}

// GetResourceUsage samples runtime and host statistics. CPU sampling blocks
// for cpuWindow; pass 0 to skip it.
func GetResourceUsage(cpuWindow time.Duration) ResourceUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usage := ResourceUsage{
		AllocMB:    int64(m.Alloc / 1024 / 1024),
		SysMB:      int64(m.Sys / 1024 / 1024),
		Goroutines: runtime.NumGoroutine(),
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemUsedPercent = vmStat.UsedPercent
	}

	if cpuWindow > 0 {
		if cpuPercents, err := cpu.Percent(cpuWindow, false); err == nil && len(cpuPercents) > 0 {
			usage.CPUUsagePercent = cpuPercents[0]
		}
	}

	return usage
}
