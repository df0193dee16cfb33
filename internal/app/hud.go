package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"perfhud/internal/config"
	"perfhud/internal/connection"
	"perfhud/internal/export"
	"perfhud/internal/metrics"
	"perfhud/internal/overlay"
	"perfhud/internal/pipeline"
	"perfhud/internal/platform"
	"perfhud/internal/profiler"
	"perfhud/internal/stats"
)

// hud is one fully wired runtime: counters, aggregator, frame engine and runners.
type hud struct {
	aggregator *stats.Aggregator
	engine     *pipeline.Engine
	gpuTime    *profiler.Sampler
	logger     *slog.Logger
}

// Run opens the recorders, drives the frame loop, and releases recorders on stop.
// Params: ctx lifecycle context.
// Returns: engine error or nil on graceful stop.
func (h *hud) Run(ctx context.Context) error {
	h.aggregator.Open()
	defer h.aggregator.Close()
	if h.gpuTime != nil {
		defer h.gpuTime.Close()
	}

	if !h.aggregator.SupportsGPURecorder() {
		h.logger.Debug("gpu recorder not supported on this host")
	}
	return h.engine.Run(ctx)
}

// newHub creates a counter hub with the built-in host counters.
// Params: cfg sampler options; logger root logger.
// Returns: hub or registration error.
func newHub(cfg *config.Config, logger *slog.Logger) (*profiler.Hub, error) {
	hub := profiler.NewHub(logger)
	err := metrics.RegisterHost(hub, metrics.HostOptions{
		Render: cfg.Sampler.Render,
		Kernel: cfg.Sampler.Kernel,
		IO:     cfg.Sampler.IO,
	})
	if err != nil {
		return nil, fmt.Errorf("register host counters: %w", err)
	}
	return hub, nil
}

// ExportCounters writes the available-counter catalogue without starting the frame loop.
// Params: cfg export and sampler sections; logger root logger.
// Returns: registration or write error.
func ExportCounters(cfg *config.Config, logger *slog.Logger) error {
	hub, err := newHub(cfg, logger)
	if err != nil {
		return err
	}
	return exportCatalogue(hub, cfg.Export, logger)
}

func exportCatalogue(hub *profiler.Hub, cfg config.ExportConfig, logger *slog.Logger) error {
	registry := profiler.NewRegistry(hub)
	if err := export.ExportFiltered(registry, cfg.TextPath, cfg.JSONPath, cfg.Include); err != nil {
		return fmt.Errorf("export counters: %w", err)
	}
	logger.Info(
		"available counters exported",
		slog.String("text", cfg.TextPath),
		slog.String("json", cfg.JSONPath),
		slog.Int("counters", len(registry.ListAvailable())),
	)
	return nil
}

// hudBuilder wires HUD runtimes; out receives the overlay escape sequences.
type hudBuilder struct {
	out io.Writer
}

// build wires every runtime component from validated config.
// Params: ctx build context; cfg validated config; logger root logger.
// Returns: runnable HUD or wiring error.
func (b hudBuilder) build(_ context.Context, cfg *config.Config, logger *slog.Logger) (engineRunner, error) {
	hub, err := newHub(cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Export.OnStart {
		if err := exportCatalogue(hub, cfg.Export, logger); err != nil {
			logger.Warn("counter export failed", slog.String("error", err.Error()))
		}
	}

	memory, err := platform.NewMemoryProvider(cfg.Platform.Memory, cfg.Platform.LowMemoryThreshold)
	if err != nil {
		return nil, fmt.Errorf("memory provider: %w", err)
	}

	frames := stats.NewFrameTimer(cfg.Sampler.FrameHistory)
	deps := stats.Deps{
		Source:        hub,
		Frames:        frames,
		Adaptive:      stats.NewHostAdaptivePerformance(cfg.Platform.AdaptivePerformance, frames, platform.NewHostThermal()),
		System:        platform.NewHostSystemInfo(cfg.Platform.GraphicsMemory),
		Memory:        memory,
		ProcessMemory: metrics.ProcessMemory,
		GCTotalMemory: metrics.GCTotalMemory,
		Logger:        logger,
	}
	if cfg.Platform.IncludeMeminfo {
		deps.Meminfo = platform.NewMeminfoReader(cfg.Platform.MeminfoPath)
	}
	aggregator := stats.New(deps, stats.Options{Window: cfg.Sampler.Window})

	sinks := []pipeline.Sink{pipeline.NewLogSink(logger)}
	var runners []pipeline.Runner

	if cfg.RemoteWrite.Enabled {
		remote, err := pipeline.NewRemoteWriteSink(pipeline.RemoteWriteConfig{
			URL:         cfg.RemoteWrite.URL,
			SendEvery:   cfg.RemoteWrite.Send.Duration,
			Timeout:     cfg.RemoteWrite.Timeout.Duration,
			Percentiles: cfg.RemoteWrite.Percentiles,
			Prefix:      cfg.RemoteWrite.Prefix,
			Host:        cfg.Global.Host,
			Labels:      cfg.RemoteWrite.Labels,
			Filter:      cfg.RemoteWrite.Filter,
			Drop:        cfg.RemoteWrite.Drop,
			DropWindow:  cfg.RemoteWrite.DropWindow,
			MaxPending:  cfg.RemoteWrite.MaxPending,
		}, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("remote write: %w", err)
		}
		sinks = append(sinks, remote)
		runners = append(runners, remote)
	}

	engineCfg := pipeline.EngineConfig{
		FPS:        cfg.Overlay.FPS,
		Hub:        hub,
		Aggregator: aggregator,
		Frames:     frames,
		Sink:       pipeline.NewMultiSink(sinks...),
		Logger:     logger,
	}
	if cfg.Overlay.Enabled {
		renderer := overlay.NewRenderer(b.out, overlay.Rect{
			Column: cfg.Overlay.Column,
			Row:    cfg.Overlay.Row,
			Width:  cfg.Overlay.Width,
			Height: cfg.Overlay.Height,
		}, logger)
		renderer.ScrollBy(cfg.Overlay.Scroll)
		engineCfg.Renderer = renderer
	}

	var gpuTime *profiler.Sampler
	if cfg.Sampler.Render {
		gpuTime, err = profiler.Open(hub, profiler.CategoryRender, metrics.GPUFrameTime, 1)
		if err != nil {
			return nil, fmt.Errorf("gpu frame time: %w", err)
		}
		engineCfg.GPUTime = gpuTime
	}

	var (
		engine   *pipeline.Engine
		listener *connection.Listener
	)
	if cfg.Connection.Enabled {
		server := connection.NewServer(func() *stats.Report { return engine.Latest() }, logger)
		listener, err = connection.Listen(cfg.Connection.Listen, server, logger)
		if err != nil {
			return nil, fmt.Errorf("connection: %w", err)
		}
		runners = append(runners, listener)
	}
	engineCfg.Runners = runners

	engine, err = pipeline.NewEngine(engineCfg)
	if err != nil {
		if listener != nil {
			listener.Close()
		}
		if gpuTime != nil {
			gpuTime.Close()
		}
		return nil, fmt.Errorf("frame engine: %w", err)
	}

	return &hud{aggregator: aggregator, engine: engine, gpuTime: gpuTime, logger: logger}, nil
}
