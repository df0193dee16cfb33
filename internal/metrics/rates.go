package metrics

import (
	"context"
	"sync"
	"time"

	"perfhud/internal/profiler"
)

// rateSource turns a pair of monotonically increasing totals into per-second
// rates. One read is shared by both collectors within memStatsMaxAge.
type rateSource struct {
	read func(ctx context.Context) (uint64, uint64, error)
	now  func() time.Time

	mu      sync.Mutex
	prevAt  time.Time
	prevA   uint64
	prevB   uint64
	lastAt  time.Time
	rateA   uint64
	rateB   uint64
	lastErr error
}

func newRateSource(read func(ctx context.Context) (uint64, uint64, error)) *rateSource {
	return &rateSource{read: read, now: time.Now}
}

func (s *rateSource) refresh(ctx context.Context) (uint64, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastAt.IsZero() && now.Sub(s.lastAt) < memStatsMaxAge {
		return s.rateA, s.rateB, s.lastErr
	}
	s.lastAt = now

	a, b, err := s.read(ctx)
	if err != nil {
		s.lastErr = err
		return 0, 0, err
	}
	s.lastErr = nil

	if s.prevAt.IsZero() {
		s.rateA, s.rateB = 0, 0
	} else {
		seconds := now.Sub(s.prevAt).Seconds()
		s.rateA = ratePerSecond(positiveDelta(a, s.prevA), seconds)
		s.rateB = ratePerSecond(positiveDelta(b, s.prevB), seconds)
	}
	s.prevAt = now
	s.prevA = a
	s.prevB = b

	return s.rateA, s.rateB, nil
}

func (s *rateSource) collectors(first, second profiler.Descriptor) []Collector {
	return []Collector{
		&rateCollector{desc: first, source: s},
		&rateCollector{desc: second, source: s, second: true},
	}
}

type rateCollector struct {
	desc   profiler.Descriptor
	source *rateSource
	second bool
}

func (c *rateCollector) Descriptor() profiler.Descriptor {
	return c.desc
}

func (c *rateCollector) Scrape(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a, b, err := c.source.refresh(ctx)
	if err != nil {
		return 0, err
	}
	if c.second {
		return clampInt64(b), nil
	}
	return clampInt64(a), nil
}
