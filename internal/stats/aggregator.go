// Package stats turns sampled counters, frame timings and platform queries into
// the per-frame text report shown by the overlay.
package stats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"perfhud/internal/metrics"
	"perfhud/internal/platform"
	"perfhud/internal/profiler"
)

// DefaultWindow is the averaging window of the frame-time recorders.
const DefaultWindow = 15

// unavailable is the value shown for counters the source does not expose.
const unavailable = "unavailable"

type section uint8

const (
	sectionRecorder section = iota
	sectionMemory
	sectionDrawing
)

type valueFormat uint8

const (
	formatMillis valueFormat = iota
	formatBytes
	formatCount
)

type recorderSpec struct {
	kind     Kind
	section  section
	category profiler.Category
	name     string
	label    string
	format   valueFormat
	windowed bool
}

var recorderTable = []recorderSpec{
	{KindMainThreadTime, sectionRecorder, profiler.CategoryInternal, metrics.MainThread, "Main Thread Time", formatMillis, true},
	{KindGPUTime, sectionRecorder, profiler.CategoryRender, metrics.GPUFrameTime, "GPU Time", formatMillis, true},

	{KindGCMemory, sectionMemory, profiler.CategoryMemory, metrics.GCUsedMemory, "GC Memory", formatBytes, false},
	{KindSystemMemory, sectionMemory, profiler.CategoryMemory, metrics.SystemUsedMemory, "System Memory", formatBytes, false},
	{KindRenderTexturesMemory, sectionMemory, profiler.CategoryRender, metrics.RenderTexturesSize, "Render Textures memory", formatBytes, false},
	{KindBuffersMemory, sectionMemory, profiler.CategoryRender, metrics.UsedBuffersSize, "Buffers memory", formatBytes, false},
	{KindTexturesMemory, sectionMemory, profiler.CategoryRender, metrics.UsedTexturesSize, "Textures memory", formatBytes, false},
	{KindGfxMemory, sectionMemory, profiler.CategoryMemory, metrics.GfxUsedMemory, "Gfx Memory", formatBytes, false},
	{KindTextureMemory, sectionMemory, profiler.CategoryMemory, metrics.TextureMemory, "Textures Memory", formatBytes, false},
	{KindMeshMemory, sectionMemory, profiler.CategoryMemory, metrics.MeshMemory, "Meshes Memory", formatBytes, false},
	{KindMaterialMemory, sectionMemory, profiler.CategoryMemory, metrics.MaterialMemory, "Materials Memory", formatBytes, false},

	{KindDrawCalls, sectionDrawing, profiler.CategoryRender, metrics.DrawCallsCount, "Draw Calls", formatCount, false},
	{KindSetPassCalls, sectionDrawing, profiler.CategoryRender, metrics.SetPassCallsCount, "Set Pass Calls", formatCount, false},
	{KindBatches, sectionDrawing, profiler.CategoryRender, metrics.TotalBatchesCount, "Batches", formatCount, false},
}

// MeminfoSource dumps the kernel memory summary.
type MeminfoSource interface {
	Read() (string, error)
}

// Deps are the collaborators queried each frame. Nil members disable their lines.
type Deps struct {
	Source        profiler.Source
	Frames        *FrameTimer
	Adaptive      AdaptivePerformance
	System        platform.SystemInfoReader
	Memory        platform.MemoryProvider
	Meminfo       MeminfoSource
	ProcessMemory func(ctx context.Context) (int64, error)
	GCTotalMemory func() int64
	Logger        *slog.Logger
}

// Options tune the aggregator.
type Options struct {
	// Window is the sample capacity of the frame-time recorders.
	Window int
}

// Aggregator builds one Report per frame.
// Params: created with New, opened once, ticked every frame, closed once.
// Returns: report builder owning its samplers.
type Aggregator struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	samplers map[Kind]*profiler.Sampler
	frame    uint64
	opened   bool

	memoryErr string
}

// New creates an aggregator.
// Params: deps collaborators; opts tuning (zero values use defaults).
// Returns: aggregator instance; call Open before Tick.
func New(deps Deps, opts Options) *Aggregator {
	if opts.Window < 1 {
		opts.Window = DefaultWindow
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.GCTotalMemory == nil {
		deps.GCTotalMemory = metrics.GCTotalMemory
	}
	return &Aggregator{
		deps:     deps,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		samplers: make(map[Kind]*profiler.Sampler, len(recorderTable)),
	}
}

// Open opens every recorder of the fixed table.
// Params: none.
// Returns: none; unavailable counters are logged once and rendered as unavailable.
func (a *Aggregator) Open() {
	if a.opened {
		return
	}
	a.opened = true
	if a.deps.Source == nil {
		a.logger.Warn("no counter source configured, recorder lines are unavailable")
		return
	}

	for _, spec := range recorderTable {
		capacity := 1
		if spec.windowed {
			capacity = a.opts.Window
		}
		sampler, err := profiler.Open(a.deps.Source, spec.category, spec.name, capacity)
		if err != nil {
			a.logger.Warn(
				"counter unavailable",
				slog.String("counter", spec.category.String()+"/"+spec.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.samplers[spec.kind] = sampler
	}
}

// Close closes every sampler. Safe to call more than once.
// Params: none.
// Returns: none.
func (a *Aggregator) Close() {
	for kind, sampler := range a.samplers {
		sampler.Close()
		delete(a.samplers, kind)
	}
}

// SupportsGPURecorder reports whether the GPU frame-time counter is attached.
func (a *Aggregator) SupportsGPURecorder() bool {
	_, ok := a.samplers[KindGPUTime]
	return ok
}

// Tick builds the report for the current frame.
// Params: ctx bounds platform queries.
// Returns: freshly built report; never nil.
func (a *Aggregator) Tick(ctx context.Context) *Report {
	a.frame++
	b := &reportBuilder{lines: make([]Line, 0, 64)}

	a.adaptiveSection(ctx, b)
	a.frameTimingSection(b)

	b.header("=== Profiler Recorder ===")
	a.recorderSection(b, sectionRecorder)
	b.header("--- Memory ---")
	a.recorderSection(b, sectionMemory)
	b.header("--- Drawing ---")
	a.recorderSection(b, sectionDrawing)

	a.systemInfoSection(ctx, b)
	a.processSection(ctx, b)
	a.memoryInfoSection(ctx, b)

	return &Report{Frame: a.frame, At: a.now(), Lines: b.lines}
}

func (a *Aggregator) adaptiveSection(ctx context.Context, b *reportBuilder) {
	if a.deps.Adaptive == nil || !a.deps.Adaptive.Active() {
		b.diagnostic("[AP ClusterInfo] Adaptive Performance not active.")
		return
	}
	status, err := a.deps.Adaptive.Status(ctx)
	if err != nil {
		a.logger.Debug("adaptive performance status failed", slog.String("error", err.Error()))
		b.diagnostic("[AP ClusterInfo] Adaptive Performance not active.")
		return
	}

	b.header("=== Adaptive Performance ===")
	millis(b, KindAPFrameTime, "Frame Time", status.Frames.Current.Frame)
	millis(b, KindAPCPUTime, "CPU Time", status.Frames.Current.CPU)
	gpuMillis(b, KindAPGPUTime, "GPU Time", status.Frames.Current)
	millis(b, KindAPAverageFrameTime, "Average Frame Time", status.Frames.Average.Frame)
	millis(b, KindAPAverageCPUTime, "Average CPU Time", status.Frames.Average.CPU)
	gpuMillis(b, KindAPAverageGPUTime, "Average GPU Time", status.Frames.Average)

	thermal := status.Thermal
	b.number(KindTemperatureLevel, "Temperature Level", strconv.FormatFloat(thermal.TemperatureLevel, 'f', 2, 64), thermal.TemperatureLevel)
	b.number(KindTemperatureTrend, "Temperature Trend", strconv.FormatFloat(thermal.TemperatureTrend, 'f', 2, 64), thermal.TemperatureTrend)
	b.number(KindTemperatureWarning, "Temperature Warning Level", thermal.WarningLevel.String(), float64(thermal.WarningLevel))
}

func (a *Aggregator) frameTimingSection(b *reportBuilder) {
	b.header("=== FrameTimingManager ===")
	if a.deps.Frames == nil {
		b.diagnostic("No frames read")
		return
	}
	timing, ok := a.deps.Frames.Latest()
	if !ok {
		b.diagnostic("No frames read")
		return
	}
	millis(b, KindCPUFrameTime, "CPU Time", timing.CPU)
	gpuMillis(b, KindGPUFrameTime, "GPU Time", timing)
}

func (a *Aggregator) recorderSection(b *reportBuilder, sec section) {
	for _, spec := range recorderTable {
		if spec.section != sec {
			continue
		}
		a.recorderLine(b, spec)
	}
}

func (a *Aggregator) recorderLine(b *reportBuilder, spec recorderSpec) {
	sampler, ok := a.samplers[spec.kind]
	if !ok {
		b.text(spec.kind, spec.label, unavailable)
		return
	}

	var value float64
	if spec.windowed {
		avg, err := sampler.WindowedAverage()
		if err != nil {
			b.text(spec.kind, spec.label, unavailable)
			return
		}
		value = avg
	} else {
		latest, err := sampler.Latest()
		if err != nil {
			b.text(spec.kind, spec.label, unavailable)
			return
		}
		value = float64(latest)
	}

	switch spec.format {
	case formatMillis:
		ms := NanosToMillis(value)
		b.number(spec.kind, spec.label, FormatMillis(ms), ms)
	case formatBytes:
		b.number(spec.kind, spec.label, FormatBytes(int64(value)), value)
	default:
		b.number(spec.kind, spec.label, strconv.FormatInt(int64(value), 10), value)
	}
}

func (a *Aggregator) systemInfoSection(ctx context.Context, b *reportBuilder) {
	b.header("=== SystemInfo ===")
	if a.deps.System != nil {
		info := a.deps.System.SystemInfo(ctx)
		bytesLine(b, KindTotalSystemMemory, "Total system memory", info.SystemMemorySize)
		bytesLine(b, KindTotalGPUMemory, "Total GPU memory", info.GraphicsMemorySize)
		b.number(KindBatteryLevel, "Battery level",
			strconv.FormatFloat(info.BatteryLevel, 'f', -1, 64)+" "+info.BatteryStatus.String(),
			info.BatteryLevel)
	}
	supported := a.SupportsGPURecorder()
	b.number(KindSupportsGPURecorder, "supportsGpuRecorder", strconv.FormatBool(supported), boolValue(supported))
}

func (a *Aggregator) processSection(ctx context.Context, b *reportBuilder) {
	b.header("=== Process ===")
	if a.deps.ProcessMemory != nil {
		rss, err := a.deps.ProcessMemory(ctx)
		if err != nil {
			a.logger.Debug("process memory read failed", slog.String("error", err.Error()))
			b.text(KindProcessMemory, "Process memory", unavailable)
		} else {
			bytesLine(b, KindProcessMemory, "Process memory", rss)
		}
	}
	bytesLine(b, KindGCTotalMemory, "GC total memory", a.deps.GCTotalMemory())
}

func (a *Aggregator) memoryInfoSection(ctx context.Context, b *reportBuilder) {
	b.header("=== MemoryInfo ===")
	if a.deps.Memory == nil {
		b.diagnostic("Not available")
	} else {
		info, err := a.deps.Memory.MemoryInfo(ctx)
		var linkErr *platform.UnavailableError
		switch {
		case err == nil:
			b.number(KindAvailableMemory, "Available Memory", FormatMB(info.Available), float64(info.Available))
			b.number(KindTotalMemory, "Total Memory", FormatMB(info.Total), float64(info.Total))
			b.number(KindLowMemory, "Low Memory Warning", strconv.FormatBool(info.LowMemory), boolValue(info.LowMemory))
		case errors.Is(err, platform.ErrUnsupported):
			b.diagnostic("Not available")
		case errors.As(err, &linkErr):
			b.diagnostic(linkErr.Error())
		default:
			a.logMemoryError(err)
			b.text(KindDiagnostic, "Memory info", unavailable)
		}
	}

	if a.deps.Meminfo == nil {
		return
	}
	dump, err := a.deps.Meminfo.Read()
	if err != nil {
		a.logger.Debug("meminfo read failed", slog.String("error", err.Error()))
		return
	}
	b.text(KindMeminfo, "Meminfo", "\n"+strings.TrimSpace(dump))
}

// logMemoryError logs a memory provider error when it differs from the previous one.
func (a *Aggregator) logMemoryError(err error) {
	msg := err.Error()
	if msg == a.memoryErr {
		return
	}
	a.memoryErr = msg
	a.logger.Warn("memory info query failed", slog.String("error", msg))
}

func millis(b *reportBuilder, kind Kind, label string, d time.Duration) {
	ms := DurationMillis(d)
	b.number(kind, label, FormatMillis(ms), ms)
}

// gpuMillis renders the GPU time of timing, or unavailable when no renderer reported one.
func gpuMillis(b *reportBuilder, kind Kind, label string, timing FrameTiming) {
	if !timing.HasGPU {
		b.text(kind, label, unavailable)
		return
	}
	millis(b, kind, label, timing.GPU)
}

func bytesLine(b *reportBuilder, kind Kind, label string, bytes int64) {
	b.number(kind, label, FormatBytes(bytes), float64(bytes))
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
