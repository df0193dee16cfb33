package pipeline

import (
	"testing"

	"perfhud/internal/match"
)

// TestIsMetricAllowed_FilterAndDrop verifies filter/drop precedence.
// Params: testing.T for assertions.
// Returns: none.
func TestIsMetricAllowed_FilterAndDrop(t *testing.T) {
	filter := match.CompileAll([]string{"*_memory_bytes"})
	drop := match.CompileAll([]string{"gfx_*"})

	if !isMetricAllowed("gc_memory_bytes", filter, drop) {
		t.Fatalf("expected gc_memory_bytes to pass filter")
	}
	if isMetricAllowed("gfx_memory_bytes", filter, drop) {
		t.Fatalf("expected gfx_memory_bytes to be dropped")
	}
	if isMetricAllowed("draw_calls", filter, nil) {
		t.Fatalf("expected draw_calls to be rejected by filter")
	}
	if !isMetricAllowed("draw_calls", nil, nil) {
		t.Fatalf("expected empty masks to allow everything")
	}
}

// TestDropCondition_HostWildcard verifies wildcard evaluation on host.
// Params: testing.T for assertions.
// Returns: none.
func TestDropCondition_HostWildcard(t *testing.T) {
	condition, err := parseDropCondition("host!=build-*")
	if err != nil {
		t.Fatalf("parse condition: %v", err)
	}

	drop := shouldDropWindow([]DropCondition{condition}, WindowEvalContext{
		Host: "laptop",
		Data: map[string]map[string]float64{"draw_calls": {"last": 20}},
	})
	if !drop {
		t.Fatalf("expected drop for host laptop with host!=build-*")
	}
}

// TestDropCondition_NumericAndMetric verifies numeric and metric-name conditions.
// Params: testing.T for assertions.
// Returns: none.
func TestDropCondition_NumericAndMetric(t *testing.T) {
	numeric, err := parseDropCondition("main_thread_time_ms>100")
	if err != nil {
		t.Fatalf("parse numeric condition: %v", err)
	}
	metric, err := parseDropCondition("metric=gfx_*")
	if err != nil {
		t.Fatalf("parse metric condition: %v", err)
	}

	data := map[string]map[string]float64{
		"main_thread_time_ms": {"last": 150},
		"gfx_memory_bytes":    {"last": 1},
	}

	if !shouldDropWindow([]DropCondition{numeric}, WindowEvalContext{Data: data}) {
		t.Fatalf("expected numeric condition to drop window")
	}
	if !shouldDropWindow([]DropCondition{metric}, WindowEvalContext{Data: data}) {
		t.Fatalf("expected metric condition to drop window")
	}
	if shouldDropWindow([]DropCondition{numeric}, WindowEvalContext{Data: map[string]map[string]float64{}}) {
		t.Fatalf("missing metric must not drop window")
	}
}

// TestParseDropCondition_Invalid verifies malformed expressions are rejected.
// Params: testing.T for assertions.
// Returns: none.
func TestParseDropCondition_Invalid(t *testing.T) {
	for _, expression := range []string{"", "   ", "no_operator", "=5", "field="} {
		if _, err := parseDropCondition(expression); err == nil {
			t.Fatalf("expected parse error for %q", expression)
		}
	}
	if _, err := compileDropConditions([]string{"a>1", "bad"}); err == nil {
		t.Fatalf("expected compile error for bad expression")
	}
}
