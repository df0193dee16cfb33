package platform

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/mem"
)

const defaultPowerSupplyDir = "/sys/class/power_supply"

// BatteryStatus is the charging state reported by the power supply.
type BatteryStatus uint8

const (
	BatteryUnknown BatteryStatus = iota
	BatteryCharging
	BatteryDischarging
	BatteryNotCharging
	BatteryFull
)

// String returns the display name of the battery status.
func (s BatteryStatus) String() string {
	switch s {
	case BatteryCharging:
		return "Charging"
	case BatteryDischarging:
		return "Discharging"
	case BatteryNotCharging:
		return "NotCharging"
	case BatteryFull:
		return "Full"
	default:
		return "Unknown"
	}
}

// SystemInfo is the static-ish device description shown in the report.
// Params: memory sizes in bytes, battery level 0..1 (-1 when unknown).
// Returns: one system info snapshot.
type SystemInfo struct {
	SystemMemorySize   int64
	GraphicsMemorySize int64
	BatteryLevel       float64
	BatteryStatus      BatteryStatus
}

// SystemInfoReader answers system info queries.
type SystemInfoReader interface {
	SystemInfo(ctx context.Context) SystemInfo
}

// HostSystemInfo reads system info from gopsutil and sysfs.
// Params: created with NewHostSystemInfo.
// Returns: SystemInfoReader for Linux-like hosts.
type HostSystemInfo struct {
	graphicsMemory int64
	powerSupplyDir string

	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	readFile      func(string) ([]byte, error)
	glob          func(string) ([]string, error)
}

// NewHostSystemInfo creates a host system info reader.
// Params: graphicsMemory is the configured GPU memory size in bytes (0 when unknown).
// Returns: reader instance.
func NewHostSystemInfo(graphicsMemory int64) *HostSystemInfo {
	return &HostSystemInfo{
		graphicsMemory: graphicsMemory,
		powerSupplyDir: defaultPowerSupplyDir,
		virtualMemory:  mem.VirtualMemoryWithContext,
		readFile:       os.ReadFile,
		glob:           filepath.Glob,
	}
}

// SystemInfo returns total memory, graphics memory, and battery state.
// Params: ctx for cancellation.
// Returns: snapshot; unreadable fields keep their zero/unknown values.
func (h *HostSystemInfo) SystemInfo(ctx context.Context) SystemInfo {
	info := SystemInfo{
		GraphicsMemorySize: h.graphicsMemory,
		BatteryLevel:       -1,
	}

	if vm, err := h.virtualMemory(ctx); err == nil && vm != nil {
		info.SystemMemorySize = toInt64(vm.Total)
	}

	info.BatteryLevel, info.BatteryStatus = h.battery()
	return info
}

// battery finds the first power supply of type Battery.
// Params: none.
// Returns: level 0..1 (-1 without battery) and status.
func (h *HostSystemInfo) battery() (float64, BatteryStatus) {
	dirs, err := h.glob(filepath.Join(h.powerSupplyDir, "*"))
	if err != nil {
		return -1, BatteryUnknown
	}

	for _, dir := range dirs {
		kind, err := h.readFile(filepath.Join(dir, "type"))
		if err != nil || strings.TrimSpace(string(kind)) != "Battery" {
			continue
		}

		level := -1.0
		if raw, err := h.readFile(filepath.Join(dir, "capacity")); err == nil {
			if capacity, err := strconv.Atoi(strings.TrimSpace(string(raw))); err == nil {
				level = float64(min(max(capacity, 0), 100)) / 100
			}
		}

		status := BatteryUnknown
		if raw, err := h.readFile(filepath.Join(dir, "status")); err == nil {
			status = parseBatteryStatus(string(raw))
		}
		return level, status
	}

	return -1, BatteryUnknown
}

func parseBatteryStatus(raw string) BatteryStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "charging":
		return BatteryCharging
	case "discharging":
		return BatteryDischarging
	case "not charging":
		return BatteryNotCharging
	case "full":
		return BatteryFull
	default:
		return BatteryUnknown
	}
}
