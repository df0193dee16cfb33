// Package pipeline drives the per-frame loop: sample counters, build the report,
// draw it, and hand it to report sinks such as Prometheus remote write.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"perfhud/internal/metrics"
	"perfhud/internal/profiler"
	"perfhud/internal/stats"
)

const (
	defaultFPS = 10
	maxFPS     = 240
)

// CounterHub is the subset of profiler.Hub the engine drives.
type CounterHub interface {
	Sample(ctx context.Context) int
	Push(category profiler.Category, name string, value int64) error
}

// ReportBuilder builds one report per frame.
type ReportBuilder interface {
	Tick(ctx context.Context) *stats.Report
}

// Drawer draws one report (nil clears).
type Drawer interface {
	Draw(report *stats.Report)
}

// LatestReader exposes the most recent sample of one counter.
type LatestReader interface {
	Latest() (int64, error)
	Count() int
}

// Runner is a background component started and stopped with the engine.
type Runner interface {
	Run(ctx context.Context) error
}

// EngineConfig wires the engine collaborators.
// Params: Hub and Aggregator are required; other members are optional.
// GPUTime reads the renderer-pushed GPU frame time; nil marks frames as having no GPU time.
// Returns: engine construction input.
type EngineConfig struct {
	FPS        int
	Hub        CounterHub
	Aggregator ReportBuilder
	Renderer   Drawer
	Frames     *stats.FrameTimer
	GPUTime    LatestReader
	Sink       Sink
	Runners    []Runner
	Logger     *slog.Logger
}

// Engine owns the frame loop and background runners lifecycle.
// Params: created with NewEngine.
// Returns: pipeline runtime engine.
type Engine struct {
	cfg      EngineConfig
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	latest    atomic.Pointer[stats.Report]
	running   atomic.Bool
	frames    int64
	lastStart time.Time
}

// NewEngine validates collaborators and builds an engine.
// Params: cfg engine wiring.
// Returns: engine or error when a required collaborator is missing.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Hub == nil {
		return nil, fmt.Errorf("counter hub is required")
	}
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if cfg.FPS <= 0 {
		cfg.FPS = defaultFPS
	}
	if cfg.FPS > maxFPS {
		cfg.FPS = maxFPS
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		cfg:      cfg,
		interval: time.Second / time.Duration(cfg.FPS),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Interval returns the frame period.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Latest returns the most recent report (nil before the first frame).
func (e *Engine) Latest() *stats.Report {
	return e.latest.Load()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run starts background runners and ticks frames until context cancellation.
// Params: ctx lifecycle context.
// Returns: nil on graceful stop.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	var wg sync.WaitGroup
	wg.Add(len(e.cfg.Runners))
	for _, r := range e.cfg.Runners {
		go func(activeRunner Runner) {
			defer wg.Done()
			if err := activeRunner.Run(ctx); err != nil {
				e.logger.Error("runner stopped with error", slog.String("error", err.Error()))
			}
		}(r)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.Step(ctx)
	for {
		select {
		case <-ctx.Done():
			if e.cfg.Renderer != nil {
				e.cfg.Renderer.Draw(nil)
			}
			wg.Wait()
			return nil
		case <-ticker.C:
			e.Step(ctx)
		}
	}
}

// Step runs one frame: sample, aggregate, draw, publish, and record frame time.
// Params: ctx bounds sampling and platform queries.
// Returns: the frame report.
func (e *Engine) Step(ctx context.Context) *stats.Report {
	start := e.now()

	e.cfg.Hub.Sample(ctx)
	report := e.cfg.Aggregator.Tick(ctx)
	if e.cfg.Renderer != nil {
		e.cfg.Renderer.Draw(report)
	}
	e.latest.Store(report)
	if e.cfg.Sink != nil {
		if err := e.cfg.Sink.Consume(ctx, report); err != nil {
			e.logger.Warn("report sink failed", slog.String("error", err.Error()))
		}
	}

	cpu := e.now().Sub(start)
	e.frames++
	e.push(metrics.MainThread, cpu.Nanoseconds())
	e.push(metrics.FrameCount, e.frames)

	if e.cfg.Frames != nil {
		frame := cpu
		if !e.lastStart.IsZero() {
			frame = start.Sub(e.lastStart)
		}
		timing := stats.FrameTiming{Frame: frame, CPU: cpu}
		timing.GPU, timing.HasGPU = e.gpuTime()
		e.cfg.Frames.Capture(timing)
	}
	e.lastStart = start

	return report
}

// gpuTime reads the latest renderer GPU frame time.
// Params: none.
// Returns: duration and false when no renderer has pushed a sample.
func (e *Engine) gpuTime() (time.Duration, bool) {
	if e.cfg.GPUTime == nil || e.cfg.GPUTime.Count() == 0 {
		return 0, false
	}
	ns, err := e.cfg.GPUTime.Latest()
	if err != nil {
		return 0, false
	}
	return time.Duration(ns), true
}

func (e *Engine) push(name string, value int64) {
	if err := e.cfg.Hub.Push(profiler.CategoryInternal, name, value); err != nil {
		e.logger.Debug("frame counter push failed", slog.String("counter", name), slog.String("error", err.Error()))
	}
}
