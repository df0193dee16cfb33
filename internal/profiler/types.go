package profiler

import (
	"fmt"
	"strings"
)

// Category groups counters by the subsystem that produces them.
// Params: none.
// Returns: enum value with a stable display name.
type Category uint8

const (
	CategoryRender Category = iota
	CategoryScripts
	CategoryGui
	CategoryPhysics
	CategoryAnimation
	CategoryAi
	CategoryAudio
	CategoryVideo
	CategoryParticles
	CategoryLighting
	CategoryNetwork
	CategoryLoading
	CategoryVr
	CategoryInput
	CategoryMemory
	CategoryVirtualTexturing
	CategoryGc
	CategoryFileIo
	CategoryInternal
)

var categoryNames = [...]string{
	CategoryRender:           "Render",
	CategoryScripts:          "Scripts",
	CategoryGui:              "Gui",
	CategoryPhysics:          "Physics",
	CategoryAnimation:        "Animation",
	CategoryAi:               "Ai",
	CategoryAudio:            "Audio",
	CategoryVideo:            "Video",
	CategoryParticles:        "Particles",
	CategoryLighting:         "Lighting",
	CategoryNetwork:          "Network",
	CategoryLoading:          "Loading",
	CategoryVr:               "Vr",
	CategoryInput:            "Input",
	CategoryMemory:           "Memory",
	CategoryVirtualTexturing: "VirtualTexturing",
	CategoryGc:               "Gc",
	CategoryFileIo:           "FileIo",
	CategoryInternal:         "Internal",
}

// String returns the display name used for sorting and exports.
// Params: none.
// Returns: category name or Category(N) for unknown values.
func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// ParseCategory resolves a category by display name (case-insensitive).
// Params: name is category display name.
// Returns: category and false when the name is unknown.
func ParseCategory(name string) (Category, bool) {
	trimmed := strings.TrimSpace(name)
	for idx, candidate := range categoryNames {
		if strings.EqualFold(candidate, trimmed) {
			return Category(idx), true
		}
	}
	return 0, false
}

// Unit describes how counter samples must be interpreted.
// Params: none.
// Returns: enum value with a stable display name.
type Unit uint8

const (
	UnitUndefined Unit = iota
	UnitTimeNanoseconds
	UnitBytes
	UnitCount
	UnitPercent
	UnitFrequencyHz
)

var unitNames = [...]string{
	UnitUndefined:       "Undefined",
	UnitTimeNanoseconds: "TimeNanoseconds",
	UnitBytes:           "Bytes",
	UnitCount:           "Count",
	UnitPercent:         "Percent",
	UnitFrequencyHz:     "FrequencyHz",
}

// String returns the unit display name.
// Params: none.
// Returns: unit name or Unit(N) for unknown values.
func (u Unit) String() string {
	if int(u) < len(unitNames) {
		return unitNames[u]
	}
	return fmt.Sprintf("Unit(%d)", uint8(u))
}

// Descriptor identifies one counter exposed by a Source.
// Params: category, counter name, and sample unit.
// Returns: immutable counter description keyed by (Category, Name).
type Descriptor struct {
	Category Category
	Name     string
	Unit     Unit
}

// Key returns the "Category/Name" identity used for lookups and pattern filters.
// Params: none.
// Returns: counter key string.
func (d Descriptor) Key() string {
	return counterKey(d.Category, d.Name)
}

func counterKey(category Category, name string) string {
	return category.String() + "/" + name
}
