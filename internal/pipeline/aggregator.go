package pipeline

import (
	"math"
	"sort"
	"strconv"
	"sync"
)

// minPercentileSamples is the smallest window that yields percentile series.
const minPercentileSamples = 4

var percentileSortBufferPool = sync.Pool{
	New: func() any {
		return make([]float64, 0, 64)
	},
}

// aggregateSeries computes `last` and configured percentiles for one series.
// Params: values window samples in arrival order and percentile list.
// Returns: stat map with `last` and `pXX`; percentiles are omitted below four samples.
func aggregateSeries(values []float64, percentiles []int) map[string]float64 {
	aggregated := make(map[string]float64, len(percentiles)+1)
	if len(values) == 0 {
		return aggregated
	}

	aggregated["last"] = values[len(values)-1]
	if len(values) < minPercentileSamples {
		return aggregated
	}

	sortedValues := borrowSortBuffer(len(values))
	copy(sortedValues, values)
	sort.Float64s(sortedValues)

	for _, p := range percentiles {
		aggregated[percentileKey(p)] = nearestRankPercentile(sortedValues, p)
	}
	releaseSortBuffer(sortedValues)

	return aggregated
}

// borrowSortBuffer returns reusable float buffer for percentile sorting.
// Params: required size.
// Returns: slice with requested length.
func borrowSortBuffer(size int) []float64 {
	buffer := percentileSortBufferPool.Get().([]float64)
	if cap(buffer) < size {
		return make([]float64, size)
	}
	return buffer[:size]
}

// releaseSortBuffer returns float buffer into pool with capacity guard.
// Params: buffer previously borrowed for sorting.
// Returns: none.
func releaseSortBuffer(buffer []float64) {
	const maxPooledCapacity = 1 << 16
	if cap(buffer) > maxPooledCapacity {
		return
	}
	percentileSortBufferPool.Put(buffer[:0])
}

// nearestRankPercentile calculates nearest-rank percentile over sorted values.
// Params: sortedValues sample set sorted ascending and percentile in range 1..100.
// Returns: percentile value.
func nearestRankPercentile(sortedValues []float64, percentile int) float64 {
	rank := int(math.Ceil(float64(percentile) / 100 * float64(len(sortedValues))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sortedValues) {
		rank = len(sortedValues)
	}
	return sortedValues[rank-1]
}

// normalizePercentiles drops out-of-range entries and duplicates, keeping order.
// Params: raw configured percentiles.
// Returns: percentiles in 1..100.
func normalizePercentiles(raw []int) []int {
	seen := make(map[int]struct{}, len(raw))
	out := make([]int, 0, len(raw))
	for _, p := range raw {
		if p < 1 || p > 100 {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// percentileKey renders percentile key name used in stat labels.
// Params: percentile integer value.
// Returns: key like p90.
func percentileKey(percentile int) string {
	return "p" + strconv.Itoa(percentile)
}
