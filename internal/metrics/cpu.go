package metrics

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	goprocess "github.com/shirou/gopsutil/v4/process"

	"perfhud/internal/profiler"
)

// CPUCollector reads total CPU utilization since the previous scrape.
// Params: none.
// Returns: Internal/"CPU Usage" collector.
type CPUCollector struct {
	read func(ctx context.Context) ([]float64, error)
}

// NewCPUCollector creates a total CPU collector.
// Params: none.
// Returns: collector backed by gopsutil.
func NewCPUCollector() *CPUCollector {
	return &CPUCollector{
		read: func(ctx context.Context) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 0, false)
		},
	}
}

// Descriptor returns the counter identity.
// Params: none.
// Returns: descriptor.
func (c *CPUCollector) Descriptor() profiler.Descriptor {
	return profiler.Descriptor{Category: profiler.CategoryInternal, Name: CPUUsage, Unit: profiler.UnitPercent}
}

// Scrape reads total CPU percent rounded to an integer.
// Params: ctx for cancellation.
// Returns: percent 0..100 or read error.
func (c *CPUCollector) Scrape(ctx context.Context) (int64, error) {
	total, err := c.read(ctx)
	if err != nil {
		return 0, fmt.Errorf("read total CPU percent: %w", err)
	}
	if len(total) == 0 {
		return 0, fmt.Errorf("read total CPU percent: empty result")
	}
	return percentSample(total[0]), nil
}

// ProcessCPUCollector reads CPU utilization of the current process.
// Params: none.
// Returns: Internal/"Process CPU Usage" collector.
type ProcessCPUCollector struct {
	pid int32

	mu   sync.Mutex
	proc *goprocess.Process
}

// NewProcessCPUCollector creates a collector for the running process.
// Params: none.
// Returns: collector backed by gopsutil process.
func NewProcessCPUCollector() *ProcessCPUCollector {
	return &ProcessCPUCollector{pid: int32(os.Getpid())}
}

// Descriptor returns the counter identity.
// Params: none.
// Returns: descriptor.
func (c *ProcessCPUCollector) Descriptor() profiler.Descriptor {
	return profiler.Descriptor{Category: profiler.CategoryInternal, Name: ProcessCPUUsage, Unit: profiler.UnitPercent}
}

// Scrape reads process CPU percent since the previous call.
// Params: ctx for cancellation.
// Returns: percent (may exceed 100 on multi-core) or read error.
func (c *ProcessCPUCollector) Scrape(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.proc == nil {
		proc, err := goprocess.NewProcessWithContext(ctx, c.pid)
		if err != nil {
			return 0, fmt.Errorf("open process %d: %w", c.pid, err)
		}
		c.proc = proc
	}

	util, err := c.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("read process CPU percent: %w", err)
	}
	return int64(math.Round(math.Max(util, 0))), nil
}

// ProcessMemory reads the resident set size of the current process.
// Params: ctx for cancellation.
// Returns: RSS bytes or read error.
func ProcessMemory(ctx context.Context) (int64, error) {
	proc, err := goprocess.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("open current process: %w", err)
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read process memory: %w", err)
	}
	return clampInt64(info.RSS), nil
}

func percentSample(raw float64) int64 {
	switch {
	case raw < 0:
		return 0
	case raw > 100:
		return 100
	default:
		return int64(math.Round(raw))
	}
}
