package platform

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/shirou/gopsutil/v4/sensors"
)

// WarningLevel is the thermal warning state.
type WarningLevel uint8

const (
	NoWarning WarningLevel = iota
	ThrottlingImminent
	Throttling
)

// String returns the warning display name.
func (w WarningLevel) String() string {
	switch w {
	case ThrottlingImminent:
		return "ThrottlingImminent"
	case Throttling:
		return "Throttling"
	default:
		return "NoWarning"
	}
}

const (
	throttlingImminentLevel = 0.8
	throttlingLevel         = 0.95
	fallbackCriticalCelsius = 100.0
)

// ThermalMetrics describes device heat relative to its critical temperature.
// Params: level 0..1, trend -1..1 (positive = heating), warning state.
// Returns: one thermal snapshot.
type ThermalMetrics struct {
	TemperatureLevel float64
	TemperatureTrend float64
	WarningLevel     WarningLevel
}

// ThermalReader answers thermal queries.
type ThermalReader interface {
	Thermal(ctx context.Context) (ThermalMetrics, error)
}

// HostThermal derives thermal metrics from hardware temperature sensors.
// Params: created with NewHostThermal.
// Returns: ThermalReader backed by gopsutil sensors.
type HostThermal struct {
	read func(ctx context.Context) ([]sensors.TemperatureStat, error)

	mu        sync.Mutex
	prevLevel float64
	hasPrev   bool
}

// NewHostThermal creates a sensor-backed thermal reader.
// Params: none.
// Returns: reader instance.
func NewHostThermal() *HostThermal {
	return &HostThermal{read: sensors.TemperaturesWithContext}
}

// Thermal returns the hottest sensor level and its trend since the last call.
// Params: ctx for cancellation.
// Returns: metrics or error when no sensor is readable.
func (h *HostThermal) Thermal(ctx context.Context) (ThermalMetrics, error) {
	temps, err := h.read(ctx)
	if len(temps) == 0 {
		if err == nil {
			err = fmt.Errorf("no temperature sensors")
		}
		return ThermalMetrics{}, fmt.Errorf("read temperatures: %w", err)
	}

	level := 0.0
	for _, t := range temps {
		limit := t.Critical
		if limit <= 0 {
			limit = t.High
		}
		if limit <= 0 {
			limit = fallbackCriticalCelsius
		}
		level = math.Max(level, t.Temperature/limit)
	}
	level = math.Min(math.Max(level, 0), 1)

	h.mu.Lock()
	trend := 0.0
	if h.hasPrev {
		trend = math.Min(math.Max((level-h.prevLevel)*10, -1), 1)
	}
	h.prevLevel = level
	h.hasPrev = true
	h.mu.Unlock()

	return ThermalMetrics{
		TemperatureLevel: level,
		TemperatureTrend: trend,
		WarningLevel:     warningFor(level),
	}, nil
}

func warningFor(level float64) WarningLevel {
	switch {
	case level >= throttlingLevel:
		return Throttling
	case level >= throttlingImminentLevel:
		return ThrottlingImminent
	default:
		return NoWarning
	}
}
