package metrics

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"

	"perfhud/internal/profiler"
)

// SystemMemoryCollector reads used system memory.
// Params: none.
// Returns: Memory/"System Used Memory" collector.
type SystemMemoryCollector struct {
	read func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewSystemMemoryCollector creates a system memory collector.
// Params: none.
// Returns: collector backed by gopsutil.
func NewSystemMemoryCollector() *SystemMemoryCollector {
	return &SystemMemoryCollector{read: mem.VirtualMemoryWithContext}
}

// Descriptor returns the counter identity.
// Params: none.
// Returns: descriptor.
func (c *SystemMemoryCollector) Descriptor() profiler.Descriptor {
	return profiler.Descriptor{Category: profiler.CategoryMemory, Name: SystemUsedMemory, Unit: profiler.UnitBytes}
}

// Scrape reads used system memory in bytes.
// Params: ctx for cancellation.
// Returns: used bytes or read error.
func (c *SystemMemoryCollector) Scrape(ctx context.Context) (int64, error) {
	vm, err := c.read(ctx)
	if err != nil {
		return 0, fmt.Errorf("read virtual memory: %w", err)
	}
	return clampInt64(vm.Used), nil
}

// clampInt64 converts an unsigned counter into the int64 sample domain.
// Params: value raw unsigned counter.
// Returns: value saturated at MaxInt64.
func clampInt64(value uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if value > maxInt64 {
		return maxInt64
	}
	return int64(value)
}
