package stats

import (
	"strings"
	"time"
)

// Kind identifies what one report line measures.
type Kind uint8

const (
	KindHeader Kind = iota
	KindDiagnostic

	KindAPFrameTime
	KindAPCPUTime
	KindAPGPUTime
	KindAPAverageFrameTime
	KindAPAverageCPUTime
	KindAPAverageGPUTime
	KindTemperatureLevel
	KindTemperatureTrend
	KindTemperatureWarning

	KindCPUFrameTime
	KindGPUFrameTime

	KindMainThreadTime
	KindGPUTime

	KindGCMemory
	KindSystemMemory
	KindRenderTexturesMemory
	KindBuffersMemory
	KindTexturesMemory
	KindGfxMemory
	KindTextureMemory
	KindMeshMemory
	KindMaterialMemory

	KindDrawCalls
	KindSetPassCalls
	KindBatches

	KindTotalSystemMemory
	KindTotalGPUMemory
	KindBatteryLevel
	KindSupportsGPURecorder

	KindProcessMemory
	KindGCTotalMemory

	KindAvailableMemory
	KindTotalMemory
	KindLowMemory
	KindMeminfo
)

var kindMetricNames = map[Kind]string{
	KindAPFrameTime:          "ap_frame_time_ms",
	KindAPCPUTime:            "ap_cpu_time_ms",
	KindAPGPUTime:            "ap_gpu_time_ms",
	KindAPAverageFrameTime:   "ap_average_frame_time_ms",
	KindAPAverageCPUTime:     "ap_average_cpu_time_ms",
	KindAPAverageGPUTime:     "ap_average_gpu_time_ms",
	KindTemperatureLevel:     "temperature_level",
	KindTemperatureTrend:     "temperature_trend",
	KindTemperatureWarning:   "temperature_warning_level",
	KindCPUFrameTime:         "cpu_frame_time_ms",
	KindGPUFrameTime:         "gpu_frame_time_ms",
	KindMainThreadTime:       "main_thread_time_ms",
	KindGPUTime:              "gpu_time_ms",
	KindGCMemory:             "gc_memory_bytes",
	KindSystemMemory:         "system_memory_bytes",
	KindRenderTexturesMemory: "render_textures_memory_bytes",
	KindBuffersMemory:        "buffers_memory_bytes",
	KindTexturesMemory:       "textures_memory_bytes",
	KindGfxMemory:            "gfx_memory_bytes",
	KindTextureMemory:        "texture_memory_bytes",
	KindMeshMemory:           "mesh_memory_bytes",
	KindMaterialMemory:       "material_memory_bytes",
	KindDrawCalls:            "draw_calls",
	KindSetPassCalls:         "set_pass_calls",
	KindBatches:              "batches",
	KindTotalSystemMemory:    "total_system_memory_bytes",
	KindTotalGPUMemory:       "total_gpu_memory_bytes",
	KindBatteryLevel:         "battery_level",
	KindSupportsGPURecorder:  "supports_gpu_recorder",
	KindProcessMemory:        "process_memory_bytes",
	KindGCTotalMemory:        "gc_total_memory_bytes",
	KindAvailableMemory:      "available_memory_bytes",
	KindTotalMemory:          "total_memory_bytes",
	KindLowMemory:            "low_memory",
}

// MetricName returns the snake_case series name for numeric kinds.
// Params: none.
// Returns: name and false for headers, diagnostics, and text-only kinds.
func (k Kind) MetricName() (string, bool) {
	name, ok := kindMetricNames[k]
	return name, ok
}

// Line is one (label, formatted value) pair of a report.
// Params: Kind selects the metric; Numeric carries the raw value when HasNumeric.
// Returns: one rendered report row.
type Line struct {
	Kind       Kind    `json:"kind"`
	Label      string  `json:"label"`
	Value      string  `json:"value,omitempty"`
	Numeric    float64 `json:"numeric,omitempty"`
	HasNumeric bool    `json:"has_numeric,omitempty"`
}

// String renders "Label: Value", or the bare label for headers and placeholders.
func (l Line) String() string {
	if l.Value == "" {
		return l.Label
	}
	return l.Label + ": " + l.Value
}

// Report is the text snapshot of one frame.
// Params: frame index, capture time, and ordered lines.
// Returns: immutable per-frame report.
type Report struct {
	Frame uint64    `json:"frame"`
	At    time.Time `json:"at"`
	Lines []Line    `json:"lines"`
}

// String renders every line followed by a newline.
// Params: none.
// Returns: overlay text (empty for a nil report).
func (r *Report) String() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	b.Grow(len(r.Lines) * 32)
	for _, line := range r.Lines {
		b.WriteString(line.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Find returns the first line of the given kind.
// Params: kind to search.
// Returns: line and false when absent.
func (r *Report) Find(kind Kind) (Line, bool) {
	if r == nil {
		return Line{}, false
	}
	for _, line := range r.Lines {
		if line.Kind == kind {
			return line, true
		}
	}
	return Line{}, false
}

type reportBuilder struct {
	lines []Line
}

func (b *reportBuilder) header(label string) {
	b.lines = append(b.lines, Line{Kind: KindHeader, Label: label})
}

func (b *reportBuilder) diagnostic(label string) {
	b.lines = append(b.lines, Line{Kind: KindDiagnostic, Label: label})
}

func (b *reportBuilder) text(kind Kind, label, value string) {
	b.lines = append(b.lines, Line{Kind: kind, Label: label, Value: value})
}

func (b *reportBuilder) number(kind Kind, label, value string, numeric float64) {
	b.lines = append(b.lines, Line{Kind: kind, Label: label, Value: value, Numeric: numeric, HasNumeric: true})
}
