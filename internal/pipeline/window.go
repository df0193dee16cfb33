package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/eryajf/promwrite"

	"perfhud/internal/match"
	"perfhud/internal/stats"
)

// sample is one numeric report line keyed by its series name.
type sample struct {
	name  string
	value float64
}

// reportSamples extracts the numeric lines of a report.
// Params: report frame snapshot.
// Returns: samples for every line with a metric name and numeric value.
func reportSamples(report *stats.Report) []sample {
	if report == nil {
		return nil
	}
	out := make([]sample, 0, len(report.Lines))
	for _, line := range report.Lines {
		if !line.HasNumeric {
			continue
		}
		name, ok := line.Kind.MetricName()
		if !ok {
			continue
		}
		out = append(out, sample{name: name, value: line.Numeric})
	}
	return out
}

type windowConfig struct {
	Prefix      string
	Host        string
	Labels      map[string]string
	Percentiles []int
	Filter      []string
	Drop        []string
	DropWindow  []DropCondition
}

// window buffers report samples between remote-write sends.
type window struct {
	cfg    windowConfig
	buffer map[string][]float64

	filterPatterns []match.Pattern
	dropPatterns   []match.Pattern
}

func newWindow(cfg windowConfig) *window {
	return &window{
		cfg:            cfg,
		buffer:         make(map[string][]float64),
		filterPatterns: match.CompileAll(cfg.Filter),
		dropPatterns:   match.CompileAll(cfg.Drop),
	}
}

// appendSamples adds allowed samples to the window.
// Params: samples from one report.
// Returns: true when at least one sample was kept.
func (w *window) appendSamples(samples []sample) bool {
	appended := false
	for _, s := range samples {
		if !isMetricAllowed(s.name, w.filterPatterns, w.dropPatterns) {
			continue
		}
		w.buffer[s.name] = append(w.buffer[s.name], s.value)
		appended = true
	}
	return appended
}

// emit aggregates the window into remote-write series and resets it.
// Params: at sample timestamp.
// Returns: series sorted by name then stat (nil when empty or dropped).
func (w *window) emit(at time.Time) []promwrite.TimeSeries {
	if len(w.buffer) == 0 {
		return nil
	}

	data := make(map[string]map[string]float64, len(w.buffer))
	for name, values := range w.buffer {
		data[name] = aggregateSeries(values, w.cfg.Percentiles)
	}
	w.buffer = make(map[string][]float64)

	if shouldDropWindow(w.cfg.DropWindow, WindowEvalContext{Host: w.cfg.Host, Data: data}) {
		return nil
	}

	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]promwrite.TimeSeries, 0, len(names)*(len(w.cfg.Percentiles)+1))
	for _, name := range names {
		statsByKey := data[name]
		keys := make([]string, 0, len(statsByKey))
		for key := range statsByKey {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			out = append(out, promwrite.TimeSeries{
				Labels: w.labels(name, key),
				Sample: promwrite.Sample{Time: at, Value: statsByKey[key]},
			})
		}
	}
	return out
}

// labels builds the sorted label set of one series.
func (w *window) labels(metric, stat string) []promwrite.Label {
	labels := make([]promwrite.Label, 0, 3+len(w.cfg.Labels))
	labels = append(labels,
		promwrite.Label{Name: "__name__", Value: seriesName(w.cfg.Prefix, metric)},
		promwrite.Label{Name: "stat", Value: stat},
	)
	if w.cfg.Host != "" {
		labels = append(labels, promwrite.Label{Name: "host", Value: w.cfg.Host})
	}
	for name, value := range w.cfg.Labels {
		if name == "__name__" || name == "stat" || name == "host" {
			continue
		}
		labels = append(labels, promwrite.Label{Name: name, Value: value})
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	return labels
}

func seriesName(prefix, metric string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "_")
	if prefix == "" {
		return metric
	}
	return prefix + "_" + metric
}

// isMetricAllowed applies filter/drop masks to a metric name.
// Params: name metric name; filter compiled keep masks; drop compiled drop masks.
// Returns: true when the metric is forwarded.
func isMetricAllowed(name string, filter, drop []match.Pattern) bool {
	if len(filter) > 0 && !match.Any(filter, name) {
		return false
	}
	return !match.Any(drop, name)
}
