package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"perfhud/internal/profiler"
)

// memStatsMaxAge bounds how often ReadMemStats stops the world when
// several runtime counters are polled in the same frame.
const memStatsMaxAge = 5 * time.Millisecond

type memStatsCache struct {
	mu    sync.Mutex
	at    time.Time
	stats runtime.MemStats
	now   func() time.Time
	read  func(*runtime.MemStats)
}

func (c *memStatsCache) get() runtime.MemStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.at.IsZero() || now.Sub(c.at) >= memStatsMaxAge {
		c.read(&c.stats)
		c.at = now
	}
	return c.stats
}

type runtimeCollector struct {
	desc  profiler.Descriptor
	cache *memStatsCache
	pick  func(runtime.MemStats) uint64
}

func (c *runtimeCollector) Descriptor() profiler.Descriptor {
	return c.desc
}

func (c *runtimeCollector) Scrape(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return clampInt64(c.pick(c.cache.get())), nil
}

type goroutineCollector struct{}

func (goroutineCollector) Descriptor() profiler.Descriptor {
	return profiler.Descriptor{Category: profiler.CategoryScripts, Name: GoroutineCount, Unit: profiler.UnitCount}
}

func (goroutineCollector) Scrape(context.Context) (int64, error) {
	return int64(runtime.NumGoroutine()), nil
}

// NewRuntimeCollectors creates Go runtime heap, GC, and goroutine counters.
// Params: none.
// Returns: collectors sharing one MemStats snapshot per frame.
func NewRuntimeCollectors() []Collector {
	cache := &memStatsCache{now: time.Now, read: runtime.ReadMemStats}
	return newRuntimeCollectors(cache)
}

func newRuntimeCollectors(cache *memStatsCache) []Collector {
	memory := func(name string, pick func(runtime.MemStats) uint64) Collector {
		return &runtimeCollector{
			desc:  profiler.Descriptor{Category: profiler.CategoryMemory, Name: name, Unit: profiler.UnitBytes},
			cache: cache,
			pick:  pick,
		}
	}

	return []Collector{
		memory(TotalUsedMemory, func(ms runtime.MemStats) uint64 { return ms.Sys }),
		memory(GCUsedMemory, func(ms runtime.MemStats) uint64 { return ms.HeapAlloc }),
		memory(GCReservedMemory, func(ms runtime.MemStats) uint64 { return ms.HeapSys }),
		&runtimeCollector{
			desc:  profiler.Descriptor{Category: profiler.CategoryGc, Name: GCCount, Unit: profiler.UnitCount},
			cache: cache,
			pick:  func(ms runtime.MemStats) uint64 { return uint64(ms.NumGC) },
		},
		goroutineCollector{},
	}
}

// GCTotalMemory returns the Go heap bytes currently allocated.
// Params: none.
// Returns: HeapAlloc from a fresh MemStats read.
func GCTotalMemory() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return clampInt64(ms.HeapAlloc)
}
