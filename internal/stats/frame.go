package stats

import (
	"sync"
	"time"
)

// DefaultFrameHistory is the number of frames the timer keeps for averages.
const DefaultFrameHistory = 60

// FrameTiming is one captured frame.
// Params: Frame is wall time since the previous frame, CPU the work time, GPU the
// renderer-reported time; HasGPU is false when no renderer pushed a GPU sample.
// Returns: timing record.
type FrameTiming struct {
	Frame  time.Duration
	CPU    time.Duration
	GPU    time.Duration
	HasGPU bool
}

// FrameStats is the current frame plus history averages.
type FrameStats struct {
	Current FrameTiming
	Average FrameTiming
	Frames  int
}

// FrameTimer keeps a short history of captured frame timings.
// Params: created with NewFrameTimer.
// Returns: thread-safe capture/read buffer.
type FrameTimer struct {
	mu     sync.Mutex
	frames []FrameTiming
	next   int
	count  int
}

// NewFrameTimer creates a frame timer.
// Params: history number of frames to keep (values below 1 use DefaultFrameHistory).
// Returns: timer instance.
func NewFrameTimer(history int) *FrameTimer {
	if history < 1 {
		history = DefaultFrameHistory
	}
	return &FrameTimer{frames: make([]FrameTiming, history)}
}

// Capture stores one frame timing.
// Params: timing measured by the frame engine.
// Returns: none.
func (t *FrameTimer) Capture(timing FrameTiming) {
	t.mu.Lock()
	t.frames[t.next] = timing
	t.next = (t.next + 1) % len(t.frames)
	if t.count < len(t.frames) {
		t.count++
	}
	t.mu.Unlock()
}

// Latest returns the most recent captured frame.
// Params: none.
// Returns: timing and false when nothing was captured.
func (t *FrameTimer) Latest() (FrameTiming, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return FrameTiming{}, false
	}
	return t.frames[(t.next-1+len(t.frames))%len(t.frames)], true
}

// Stats returns the latest frame and the history averages.
// Params: none.
// Returns: stats and false when nothing was captured.
func (t *FrameTimer) Stats() (FrameStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return FrameStats{}, false
	}

	var frame, cpu, gpu time.Duration
	gpuFrames := 0
	for i := 0; i < t.count; i++ {
		f := t.frames[i]
		frame += f.Frame
		cpu += f.CPU
		if f.HasGPU {
			gpu += f.GPU
			gpuFrames++
		}
	}
	n := time.Duration(t.count)
	average := FrameTiming{Frame: frame / n, CPU: cpu / n}
	if gpuFrames > 0 {
		average.GPU = gpu / time.Duration(gpuFrames)
		average.HasGPU = true
	}
	return FrameStats{
		Current: t.frames[(t.next-1+len(t.frames))%len(t.frames)],
		Average: average,
		Frames:  t.count,
	}, true
}
