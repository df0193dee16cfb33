package profiler

import (
	"fmt"
	"sync"
)

// Recorder receives samples for one counter from a Source.
// Params: value is one raw counter sample.
// Returns: none.
type Recorder interface {
	Record(value int64)
}

// Sampler keeps a bounded rolling window of samples for one counter.
// Params: opened through Open with a fixed capacity.
// Returns: last-value and windowed-average reads until Close.
type Sampler struct {
	desc Descriptor

	mu     sync.Mutex
	buf    []int64
	next   int
	count  int
	closed bool
	detach func()
}

// Open attaches a new sampler to the named counter of source.
// Params: source exposes counters; category/name select the counter; capacity is window size (<1 means 1).
// Returns: attached sampler or ErrCounterUnavailable.
func Open(source Source, category Category, name string, capacity int) (*Sampler, error) {
	if source == nil {
		return nil, fmt.Errorf("open %s: source is nil", counterKey(category, name))
	}
	if capacity < 1 {
		capacity = 1
	}

	desc, ok := findDescriptor(source.Available(), category, name)
	if !ok {
		return nil, fmt.Errorf("open %s: %w", counterKey(category, name), ErrCounterUnavailable)
	}

	s := &Sampler{
		desc: desc,
		buf:  make([]int64, capacity),
	}

	detach, err := source.Attach(category, name, s)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", desc.Key(), err)
	}
	s.detach = detach

	return s, nil
}

// Descriptor returns the sampled counter description.
// Params: none.
// Returns: counter descriptor.
func (s *Sampler) Descriptor() Descriptor {
	return s.desc
}

// Capacity returns the fixed window size.
// Params: none.
// Returns: ring buffer capacity.
func (s *Sampler) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Count returns how many samples the window currently holds.
// Params: none.
// Returns: buffered sample count (0..Capacity).
func (s *Sampler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Record stores one sample, overwriting the oldest when the window is full.
// Params: value is raw counter sample.
// Returns: none.
func (s *Sampler) Record(value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.buf[s.next] = value
	s.next = (s.next + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	}
}

// Latest returns the most recently recorded sample.
// Params: none.
// Returns: last sample (0 when nothing was recorded) or ErrSamplerClosed.
func (s *Sampler) Latest() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("read %s: %w", s.desc.Key(), ErrSamplerClosed)
	}
	if s.count == 0 {
		return 0, nil
	}

	idx := s.next - 1
	if idx < 0 {
		idx = len(s.buf) - 1
	}
	return s.buf[idx], nil
}

// WindowedAverage returns the mean of the samples currently in the window.
// Params: none.
// Returns: arithmetic mean (0 when empty) or ErrSamplerClosed.
func (s *Sampler) WindowedAverage() (float64, error) {
	samples, err := s.snapshot()
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return 0, nil
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample)
	}
	return sum / float64(len(samples)), nil
}

// snapshot copies buffered samples, oldest first, under the sampler lock.
// Params: none.
// Returns: sample copy or ErrSamplerClosed.
func (s *Sampler) snapshot() ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("read %s: %w", s.desc.Key(), ErrSamplerClosed)
	}

	out := make([]int64, s.count)
	start := s.next - s.count
	if start < 0 {
		start += len(s.buf)
	}
	for i := 0; i < s.count; i++ {
		out[i] = s.buf[(start+i)%len(s.buf)]
	}
	return out, nil
}

// Close detaches the sampler and releases its window. Safe to call more than once.
// Params: none.
// Returns: none.
func (s *Sampler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.buf = nil
	s.count = 0
	s.next = 0
	detach := s.detach
	s.detach = nil
	s.mu.Unlock()

	if detach != nil {
		detach()
	}
}

func findDescriptor(available []Descriptor, category Category, name string) (Descriptor, bool) {
	for _, desc := range available {
		if desc.Category == category && desc.Name == name {
			return desc, true
		}
	}
	return Descriptor{}, false
}
