package profiler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Source exposes counters and feeds their samples to attached recorders.
// Params: none.
// Returns: counter catalogue and attach/detach hooks.
type Source interface {
	Available() []Descriptor
	Attach(category Category, name string, recorder Recorder) (detach func(), err error)
}

// Probe reads the current value of a polled counter.
// Params: ctx for cancellation.
// Returns: sample value or read error.
type Probe func(ctx context.Context) (int64, error)

type counter struct {
	desc      Descriptor
	probe     Probe
	recorders map[uint64]Recorder
}

// Hub is the host-side counter source: it owns the counter catalogue,
// polls probes once per frame, and accepts values pushed by the host.
// Params: created with NewHub.
// Returns: Source implementation shared by samplers, aggregator, and exporter.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	counters map[string]*counter
	order    []string
	nextID   uint64
}

// NewHub creates an empty counter hub.
// Params: logger receives probe failures at debug level (nil discards).
// Returns: hub instance.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		logger:   logger,
		counters: make(map[string]*counter),
	}
}

// Register adds one counter to the catalogue.
// Params: desc counter identity; probe polled by Sample (nil for host-pushed counters).
// Returns: ErrCounterExists on duplicate key or validation error.
func (h *Hub) Register(desc Descriptor, probe Probe) error {
	if strings.TrimSpace(desc.Name) == "" {
		return fmt.Errorf("register counter: name is required")
	}

	key := desc.Key()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.counters[key]; exists {
		return fmt.Errorf("register %s: %w", key, ErrCounterExists)
	}
	h.counters[key] = &counter{
		desc:      desc,
		probe:     probe,
		recorders: make(map[uint64]Recorder),
	}
	h.order = append(h.order, key)
	return nil
}

// Unregister removes one counter; attached recorders stop receiving samples.
// Params: category/name identify the counter.
// Returns: true when the counter existed.
func (h *Hub) Unregister(category Category, name string) bool {
	key := counterKey(category, name)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.counters[key]; !exists {
		return false
	}
	delete(h.counters, key)
	for idx, candidate := range h.order {
		if candidate == key {
			h.order = append(h.order[:idx], h.order[idx+1:]...)
			break
		}
	}
	return true
}

// Available returns a snapshot of registered counters in registration order.
// Params: none.
// Returns: descriptor copy safe for the caller to keep.
func (h *Hub) Available() []Descriptor {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Descriptor, 0, len(h.order))
	for _, key := range h.order {
		out = append(out, h.counters[key].desc)
	}
	return out
}

// Attach subscribes recorder to the samples of one counter.
// Params: category/name identify the counter; recorder receives samples.
// Returns: detach function (idempotent) or ErrCounterUnavailable.
func (h *Hub) Attach(category Category, name string, recorder Recorder) (func(), error) {
	if recorder == nil {
		return nil, fmt.Errorf("attach %s: recorder is nil", counterKey(category, name))
	}
	key := counterKey(category, name)

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.counters[key]
	if !ok {
		return nil, fmt.Errorf("attach %s: %w", key, ErrCounterUnavailable)
	}
	h.nextID++
	id := h.nextID
	c.recorders[id] = recorder

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if current, exists := h.counters[key]; exists {
				delete(current.recorders, id)
			}
		})
	}, nil
}

// Push delivers one host-measured value to every recorder of a counter.
// Params: category/name identify the counter; value is the sample.
// Returns: ErrCounterUnavailable when the counter is not registered.
func (h *Hub) Push(category Category, name string, value int64) error {
	key := counterKey(category, name)

	h.mu.RLock()
	c, ok := h.counters[key]
	var recorders []Recorder
	if ok {
		recorders = collectRecorders(c)
	}
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("push %s: %w", key, ErrCounterUnavailable)
	}
	for _, recorder := range recorders {
		recorder.Record(value)
	}
	return nil
}

// Sample polls every probed counter that has at least one recorder attached.
// Params: ctx for probe cancellation.
// Returns: number of counters successfully sampled.
func (h *Hub) Sample(ctx context.Context) int {
	type pending struct {
		desc      Descriptor
		probe     Probe
		recorders []Recorder
	}

	h.mu.RLock()
	work := make([]pending, 0, len(h.order))
	for _, key := range h.order {
		c := h.counters[key]
		if c.probe == nil || len(c.recorders) == 0 {
			continue
		}
		work = append(work, pending{desc: c.desc, probe: c.probe, recorders: collectRecorders(c)})
	}
	h.mu.RUnlock()

	sampled := 0
	for _, item := range work {
		if ctx.Err() != nil {
			return sampled
		}
		value, err := item.probe(ctx)
		if err != nil {
			h.logger.Debug(
				"counter probe failed",
				slog.String("counter", item.desc.Key()),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, recorder := range item.recorders {
			recorder.Record(value)
		}
		sampled++
	}
	return sampled
}

func collectRecorders(c *counter) []Recorder {
	out := make([]Recorder, 0, len(c.recorders))
	for _, recorder := range c.recorders {
		out = append(out, recorder)
	}
	return out
}
