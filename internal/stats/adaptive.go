package stats

import (
	"context"
	"errors"
	"fmt"

	"perfhud/internal/platform"
)

// ErrNoFrames reports that no frame has been captured yet.
var ErrNoFrames = errors.New("no frames captured")

// PerformanceStatus is one adaptive performance snapshot.
type PerformanceStatus struct {
	Frames  FrameStats
	Thermal platform.ThermalMetrics
}

// AdaptivePerformance reports frame and thermal status when active.
type AdaptivePerformance interface {
	Active() bool
	Status(ctx context.Context) (PerformanceStatus, error)
}

// HostAdaptivePerformance combines the frame timer with a thermal reader.
// Params: created with NewHostAdaptivePerformance.
// Returns: AdaptivePerformance implementation.
type HostAdaptivePerformance struct {
	frames  *FrameTimer
	thermal platform.ThermalReader
	enabled bool
}

// NewHostAdaptivePerformance creates an adaptive performance provider.
// Params: enabled gates the section; frames and thermal back the readings.
// Returns: provider instance.
func NewHostAdaptivePerformance(enabled bool, frames *FrameTimer, thermal platform.ThermalReader) *HostAdaptivePerformance {
	return &HostAdaptivePerformance{frames: frames, thermal: thermal, enabled: enabled}
}

// Active reports whether both frame timing and thermal readings are wired.
func (a *HostAdaptivePerformance) Active() bool {
	return a != nil && a.enabled && a.frames != nil && a.thermal != nil
}

// Status reads the current frame averages and thermal state.
// Params: ctx for cancellation.
// Returns: status, ErrNoFrames before the first captured frame, or thermal read error.
func (a *HostAdaptivePerformance) Status(ctx context.Context) (PerformanceStatus, error) {
	if !a.Active() {
		return PerformanceStatus{}, fmt.Errorf("adaptive performance not active")
	}
	frames, ok := a.frames.Stats()
	if !ok {
		return PerformanceStatus{}, ErrNoFrames
	}
	thermal, err := a.thermal.Thermal(ctx)
	if err != nil {
		return PerformanceStatus{}, err
	}
	return PerformanceStatus{Frames: frames, Thermal: thermal}, nil
}
