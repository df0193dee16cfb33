package stats

import (
	"strconv"
	"time"
)

// BytesPerMB is the byte-to-megabyte divisor used throughout the report.
const BytesPerMB = 1024 * 1024

// BytesToMB converts bytes to whole megabytes by integer division.
// Params: bytes raw byte count.
// Returns: truncated megabytes.
func BytesToMB(bytes int64) int64 {
	return bytes / BytesPerMB
}

// FormatBytes renders "N Bytes / M MB".
func FormatBytes(bytes int64) string {
	return strconv.FormatInt(bytes, 10) + " Bytes / " + strconv.FormatInt(BytesToMB(bytes), 10) + " MB"
}

// FormatMB renders "M MB".
func FormatMB(bytes int64) string {
	return strconv.FormatInt(BytesToMB(bytes), 10) + " MB"
}

// NanosToMillis scales a nanosecond value to milliseconds.
func NanosToMillis(nanos float64) float64 {
	return nanos * 1e-6
}

// FormatMillis renders milliseconds with one decimal, e.g. "16.7 ms".
func FormatMillis(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 1, 64) + " ms"
}

// DurationMillis converts a duration to fractional milliseconds.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
