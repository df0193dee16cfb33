package metrics

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"perfhud/internal/profiler"
)

const procStatPath = "/proc/stat"

type kernelCounters struct {
	ctxt         uint64
	procsRunning uint64
}

// kernelStat reads /proc/stat once per frame for the kernel collectors and
// keeps the previous context-switch total for rate calculation.
type kernelStat struct {
	readFile func(string) ([]byte, error)
	now      func() time.Time

	mu       sync.Mutex
	prevAt   time.Time
	prevCtxt uint64
	lastAt   time.Time
	last     kernelCounters
	rate     uint64
}

func (k *kernelStat) refresh() (kernelCounters, uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if !k.lastAt.IsZero() && now.Sub(k.lastAt) < memStatsMaxAge {
		return k.last, k.rate, nil
	}

	payload, err := k.readFile(procStatPath)
	if err != nil {
		return kernelCounters{}, 0, fmt.Errorf("read %s: %w", procStatPath, err)
	}
	counters, err := parseKernelCounters(payload)
	if err != nil {
		return kernelCounters{}, 0, fmt.Errorf("parse %s: %w", procStatPath, err)
	}

	rate := uint64(0)
	if !k.prevAt.IsZero() {
		rate = ratePerSecond(positiveDelta(counters.ctxt, k.prevCtxt), now.Sub(k.prevAt).Seconds())
	}
	k.prevAt = now
	k.prevCtxt = counters.ctxt
	k.lastAt = now
	k.last = counters
	k.rate = rate

	return counters, rate, nil
}

type kernelCollector struct {
	desc profiler.Descriptor
	stat *kernelStat
	pick func(kernelCounters, uint64) uint64
}

func (c *kernelCollector) Descriptor() profiler.Descriptor {
	return c.desc
}

func (c *kernelCollector) Scrape(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	counters, rate, err := c.stat.refresh()
	if err != nil {
		return 0, err
	}
	return clampInt64(c.pick(counters, rate)), nil
}

// NewKernelCollectors creates procfs run-queue and context-switch rate counters.
// Params: none.
// Returns: collectors sharing one /proc/stat read per frame.
func NewKernelCollectors() []Collector {
	return newKernelCollectors(&kernelStat{readFile: os.ReadFile, now: time.Now})
}

func newKernelCollectors(stat *kernelStat) []Collector {
	return []Collector{
		&kernelCollector{
			desc: profiler.Descriptor{Category: profiler.CategoryInternal, Name: RunQueue, Unit: profiler.UnitCount},
			stat: stat,
			pick: func(c kernelCounters, _ uint64) uint64 { return c.procsRunning },
		},
		&kernelCollector{
			desc: profiler.Descriptor{Category: profiler.CategoryInternal, Name: ContextSwitches, Unit: profiler.UnitCount},
			stat: stat,
			pick: func(_ kernelCounters, rate uint64) uint64 { return rate },
		},
	}
}

// parseKernelCounters parses ctxt and procs_running from /proc/stat.
// Params: payload is /proc/stat file body.
// Returns: parsed counters or error when a field is missing.
func parseKernelCounters(payload []byte) (kernelCounters, error) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))

	var (
		counters    kernelCounters
		seenCtxt    bool
		seenRunning bool
	)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "ctxt":
			value, err := parseKernelUintField(fields, "ctxt")
			if err != nil {
				return kernelCounters{}, err
			}
			counters.ctxt = value
			seenCtxt = true
		case "procs_running":
			value, err := parseKernelUintField(fields, "procs_running")
			if err != nil {
				return kernelCounters{}, err
			}
			counters.procsRunning = value
			seenRunning = true
		}
	}
	if err := scanner.Err(); err != nil {
		return kernelCounters{}, fmt.Errorf("scan %s: %w", procStatPath, err)
	}

	if !seenCtxt {
		return kernelCounters{}, fmt.Errorf("missing ctxt field")
	}
	if !seenRunning {
		return kernelCounters{}, fmt.Errorf("missing procs_running field")
	}
	return counters, nil
}

func parseKernelUintField(fields []string, name string) (uint64, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("%s field has no value", name)
	}
	value, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}

// positiveDelta returns current-previous, or 0 after a counter reset.
func positiveDelta(current, previous uint64) uint64 {
	if current < previous {
		return 0
	}
	return current - previous
}

// ratePerSecond converts a delta over elapsed seconds into a per-second rate.
func ratePerSecond(delta uint64, seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(float64(delta) / seconds)
}
