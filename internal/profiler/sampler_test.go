package profiler

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// newTestHub builds a hub with one pushed counter.
// Params: t test handle; desc counter to register.
// Returns: hub with the counter registered.
func newTestHub(t *testing.T, desc Descriptor) *Hub {
	t.Helper()

	hub := NewHub(nil)
	if err := hub.Register(desc, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	return hub
}

// TestSampler_AverageOfIdenticalValues verifies the average of N identical samples is the sample.
// Params: testing.T for assertions.
// Returns: none.
func TestSampler_AverageOfIdenticalValues(t *testing.T) {
	hub := newTestHub(t, Descriptor{Category: CategoryInternal, Name: "Main Thread", Unit: UnitTimeNanoseconds})

	for _, capacity := range []int{1, 2, 7, 15, 64} {
		sampler, err := Open(hub, CategoryInternal, "Main Thread", capacity)
		if err != nil {
			t.Fatalf("open capacity=%d: %v", capacity, err)
		}
		for i := 0; i < capacity*3; i++ {
			sampler.Record(16_600_000)
		}

		avg, err := sampler.WindowedAverage()
		if err != nil {
			t.Fatalf("average: %v", err)
		}
		if avg != 16_600_000 {
			t.Fatalf("capacity=%d: unexpected average %v", capacity, avg)
		}
		sampler.Close()
	}
}

// TestSampler_EmptyReadsAreZero verifies empty-window reads return zero without error.
// Params: testing.T for assertions.
// Returns: none.
func TestSampler_EmptyReadsAreZero(t *testing.T) {
	hub := newTestHub(t, Descriptor{Category: CategoryRender, Name: "GPU Frame Time", Unit: UnitTimeNanoseconds})

	sampler, err := Open(hub, CategoryRender, "GPU Frame Time", 15)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sampler.Close()

	avg, err := sampler.WindowedAverage()
	if err != nil || avg != 0 {
		t.Fatalf("expected empty average 0, got %v (err=%v)", avg, err)
	}
	last, err := sampler.Latest()
	if err != nil || last != 0 {
		t.Fatalf("expected empty latest 0, got %d (err=%v)", last, err)
	}
}

// TestSampler_WindowKeepsNewestSamples verifies ring overwrite and partial-window averaging.
// Params: testing.T for assertions.
// Returns: none.
func TestSampler_WindowKeepsNewestSamples(t *testing.T) {
	hub := newTestHub(t, Descriptor{Category: CategoryInternal, Name: "Main Thread", Unit: UnitTimeNanoseconds})

	sampler, err := Open(hub, CategoryInternal, "Main Thread", 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sampler.Close()

	if err := hub.Push(CategoryInternal, "Main Thread", 10); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := hub.Push(CategoryInternal, "Main Thread", 20); err != nil {
		t.Fatalf("push: %v", err)
	}

	// Partial window averages only recorded samples.
	if avg, _ := sampler.WindowedAverage(); avg != 15 {
		t.Fatalf("unexpected partial average: %v", avg)
	}

	for _, v := range []int64{30, 40, 50} {
		if err := hub.Push(CategoryInternal, "Main Thread", v); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	if avg, _ := sampler.WindowedAverage(); avg != 40 {
		t.Fatalf("unexpected full-window average: %v", avg)
	}
	if last, _ := sampler.Latest(); last != 50 {
		t.Fatalf("unexpected latest: %d", last)
	}
	if got := sampler.Count(); got != 3 {
		t.Fatalf("unexpected count: %d", got)
	}
}

// TestOpen_UnknownCounter verifies ErrCounterUnavailable for unregistered counters.
// Params: testing.T for assertions.
// Returns: none.
func TestOpen_UnknownCounter(t *testing.T) {
	hub := NewHub(nil)

	_, err := Open(hub, CategoryRender, "GPU Frame Time", 15)
	if !errors.Is(err, ErrCounterUnavailable) {
		t.Fatalf("expected ErrCounterUnavailable, got %v", err)
	}
}

// TestSampler_ReadAfterClose verifies closed samplers return a defined error and Close is idempotent.
// Params: testing.T for assertions.
// Returns: none.
func TestSampler_ReadAfterClose(t *testing.T) {
	hub := newTestHub(t, Descriptor{Category: CategoryMemory, Name: "GC Used Memory", Unit: UnitBytes})

	sampler, err := Open(hub, CategoryMemory, "GC Used Memory", 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sampler.Record(42)
	sampler.Close()
	sampler.Close()

	if _, err := sampler.Latest(); !errors.Is(err, ErrSamplerClosed) {
		t.Fatalf("expected ErrSamplerClosed from Latest, got %v", err)
	}
	if _, err := sampler.WindowedAverage(); !errors.Is(err, ErrSamplerClosed) {
		t.Fatalf("expected ErrSamplerClosed from WindowedAverage, got %v", err)
	}

	// Detached samplers no longer receive pushed values.
	if err := hub.Push(CategoryMemory, "GC Used Memory", 7); err != nil {
		t.Fatalf("push after close: %v", err)
	}
	if got := sampler.Count(); got != 0 {
		t.Fatalf("expected no samples after close, got %d", got)
	}
}

// TestOpen_ClampsCapacity verifies capacity < 1 opens a last-value sampler.
// Params: testing.T for assertions.
// Returns: none.
func TestOpen_ClampsCapacity(t *testing.T) {
	hub := newTestHub(t, Descriptor{Category: CategoryMemory, Name: "GC Used Memory", Unit: UnitBytes})

	sampler, err := Open(hub, CategoryMemory, "GC Used Memory", 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sampler.Close()

	if got := sampler.Capacity(); got != 1 {
		t.Fatalf("unexpected capacity: %d", got)
	}
}

// TestSampler_ConcurrentRecordAndAverage verifies consistent reads while the host records.
// Params: testing.T for assertions.
// Returns: none.
func TestSampler_ConcurrentRecordAndAverage(t *testing.T) {
	hub := newTestHub(t, Descriptor{Category: CategoryInternal, Name: "Main Thread", Unit: UnitTimeNanoseconds})

	sampler, err := Open(hub, CategoryInternal, "Main Thread", 8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sampler.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10_000; i++ {
			sampler.Record(100)
		}
	}()

	for i := 0; i < 1_000; i++ {
		avg, err := sampler.WindowedAverage()
		if err != nil {
			t.Fatalf("average: %v", err)
		}
		if avg != 0 && avg != 100 {
			t.Fatalf("observed torn window average: %v", avg)
		}
	}
	wg.Wait()
}

// TestHub_SamplePollsAttachedProbes verifies probe fan-out and skipping of failing probes.
// Params: testing.T for assertions.
// Returns: none.
func TestHub_SamplePollsAttachedProbes(t *testing.T) {
	hub := NewHub(nil)
	calls := 0
	if err := hub.Register(
		Descriptor{Category: CategoryMemory, Name: "System Used Memory", Unit: UnitBytes},
		func(context.Context) (int64, error) {
			calls++
			return 1 << 20, nil
		},
	); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := hub.Register(
		Descriptor{Category: CategoryInternal, Name: "CPU Usage", Unit: UnitPercent},
		func(context.Context) (int64, error) {
			return 0, errors.New("boom")
		},
	); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Probes without recorders are not polled.
	if got := hub.Sample(context.Background()); got != 0 || calls != 0 {
		t.Fatalf("expected no polling without samplers, sampled=%d calls=%d", got, calls)
	}

	mem, err := Open(hub, CategoryMemory, "System Used Memory", 1)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer mem.Close()
	cpu, err := Open(hub, CategoryInternal, "CPU Usage", 1)
	if err != nil {
		t.Fatalf("open cpu: %v", err)
	}
	defer cpu.Close()

	if got := hub.Sample(context.Background()); got != 1 {
		t.Fatalf("expected one successful sample, got %d", got)
	}
	if last, _ := mem.Latest(); last != 1<<20 {
		t.Fatalf("unexpected memory sample: %d", last)
	}
	if got := cpu.Count(); got != 0 {
		t.Fatalf("failing probe must not record, got %d samples", got)
	}
}

// TestHub_RegisterRejectsDuplicates verifies (category, name) uniqueness.
// Params: testing.T for assertions.
// Returns: none.
func TestHub_RegisterRejectsDuplicates(t *testing.T) {
	hub := newTestHub(t, Descriptor{Category: CategoryRender, Name: "Draw Calls Count", Unit: UnitCount})

	err := hub.Register(Descriptor{Category: CategoryRender, Name: "Draw Calls Count", Unit: UnitCount}, nil)
	if !errors.Is(err, ErrCounterExists) {
		t.Fatalf("expected ErrCounterExists, got %v", err)
	}

	// Same name in another category is a distinct counter.
	if err := hub.Register(Descriptor{Category: CategoryMemory, Name: "Draw Calls Count", Unit: UnitCount}, nil); err != nil {
		t.Fatalf("unexpected error for distinct category: %v", err)
	}

	if !hub.Unregister(CategoryRender, "Draw Calls Count") {
		t.Fatalf("expected unregister to report existing counter")
	}
	if got := len(hub.Available()); got != 1 {
		t.Fatalf("unexpected available count after unregister: %d", got)
	}
}
