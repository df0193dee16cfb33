package pipeline

import (
	"testing"
)

// TestAggregateSeries_PercentilesNeedAtLeastFourSamples verifies pXX gate logic.
// Params: testing.T for assertions.
// Returns: none.
func TestAggregateSeries_PercentilesNeedAtLeastFourSamples(t *testing.T) {
	out := aggregateSeries([]float64{1, 2, 3}, []int{50, 90})

	if got := out["last"]; got != 3 {
		t.Fatalf("unexpected last: %v", got)
	}
	if _, exists := out["p50"]; exists {
		t.Fatalf("did not expect p50 below four samples: %v", out)
	}
}

// TestAggregateSeries_NearestRank verifies nearest-rank selection over unsorted input.
// Params: testing.T for assertions.
// Returns: none.
func TestAggregateSeries_NearestRank(t *testing.T) {
	out := aggregateSeries([]float64{10, 20, 150, 90}, []int{50, 99})

	if got := out["last"]; got != 90 {
		t.Fatalf("unexpected last: %v", got)
	}
	// Sorted values are 10,20,90,150 -> nearest rank p50 index 2 => 20.
	if got := out["p50"]; got != 20 {
		t.Fatalf("unexpected p50: %v", got)
	}
	if got := out["p99"]; got != 150 {
		t.Fatalf("unexpected p99: %v", got)
	}
}

// TestAggregateSeries_ZeroSampleIsValid verifies that zero participates in percentile.
// Params: testing.T for assertions.
// Returns: none.
func TestAggregateSeries_ZeroSampleIsValid(t *testing.T) {
	out := aggregateSeries([]float64{0, 10, 20, 30}, []int{25})

	// nearest rank p25 with n=4 -> rank 1 -> first sorted value 0.
	if got, ok := out["p25"]; !ok || got != 0 {
		t.Fatalf("unexpected p25: %v (present=%v)", got, ok)
	}
}

// TestAggregateSeries_WithoutPercentiles verifies last-only aggregation mode.
// Params: testing.T for assertions.
// Returns: none.
func TestAggregateSeries_WithoutPercentiles(t *testing.T) {
	out := aggregateSeries([]float64{1, 2, 3, 4}, nil)

	if len(out) != 1 || out["last"] != 4 {
		t.Fatalf("expected only last aggregate, got %v", out)
	}
	if empty := aggregateSeries(nil, []int{50}); len(empty) != 0 {
		t.Fatalf("expected no stats for an empty series, got %v", empty)
	}
}

// TestNormalizePercentiles verifies range and duplicate filtering.
// Params: testing.T for assertions.
// Returns: none.
func TestNormalizePercentiles(t *testing.T) {
	got := normalizePercentiles([]int{0, 50, 90, 50, 101, 99})
	want := []int{50, 90, 99}
	if len(got) != len(want) {
		t.Fatalf("unexpected percentiles: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected percentiles: %v", got)
		}
	}
}
