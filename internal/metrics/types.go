// Package metrics registers the counters a plain Go host can measure on its own:
// system and process memory, Go runtime heap, CPU usage, procfs kernel state,
// and disk/network byte rates.
// Render counters are declared here too, but only an embedding renderer can feed them.
package metrics

import (
	"context"
	"fmt"

	"perfhud/internal/profiler"
)

// Counter names shared by host registration and the aggregator recorder table.
const (
	MainThread         = "Main Thread"
	FrameCount         = "Frame Count"
	CPUUsage           = "CPU Usage"
	ProcessCPUUsage    = "Process CPU Usage"
	RunQueue           = "Processes Running"
	ContextSwitches    = "Context Switches Per Second"
	SystemUsedMemory   = "System Used Memory"
	TotalUsedMemory    = "Total Used Memory"
	GCUsedMemory       = "GC Used Memory"
	GCReservedMemory   = "GC Reserved Memory"
	GCCount            = "GC Count"
	GoroutineCount     = "Goroutine Count"
	GPUFrameTime       = "GPU Frame Time"
	DrawCallsCount     = "Draw Calls Count"
	SetPassCallsCount  = "SetPass Calls Count"
	TotalBatchesCount  = "Total Batches Count"
	RenderTexturesSize = "Render Textures Bytes"
	UsedBuffersSize    = "Used Buffers Bytes"
	UsedTexturesSize   = "Used Textures Bytes"
	GfxUsedMemory      = "Gfx Used Memory"
	TextureMemory      = "Texture Memory"
	MeshMemory         = "Mesh Memory"
	MaterialMemory     = "Material Memory"
)

// Collector reads one host counter value.
// Params: none.
// Returns: counter descriptor and sampling probe.
type Collector interface {
	Descriptor() profiler.Descriptor
	Scrape(ctx context.Context) (int64, error)
}

// Registrar is the subset of profiler.Hub used to register counters.
type Registrar interface {
	Register(desc profiler.Descriptor, probe profiler.Probe) error
}

// RegisterCollectors registers every collector as a polled hub counter.
// Params: hub receives counters; collectors provide descriptor and probe.
// Returns: first registration error.
func RegisterCollectors(hub Registrar, collectors ...Collector) error {
	for _, c := range collectors {
		if c == nil {
			continue
		}
		if err := hub.Register(c.Descriptor(), c.Scrape); err != nil {
			return fmt.Errorf("register host counter: %w", err)
		}
	}
	return nil
}

// RegisterPushed registers counters whose values are pushed by the host each frame.
// Params: hub receives counters; descs counters without probes.
// Returns: first registration error.
func RegisterPushed(hub Registrar, descs ...profiler.Descriptor) error {
	for _, desc := range descs {
		if err := hub.Register(desc, nil); err != nil {
			return fmt.Errorf("register pushed counter: %w", err)
		}
	}
	return nil
}

// RenderCounters lists the counters a renderer feeds through Hub.Push.
// Params: none.
// Returns: render and graphics-memory descriptors.
func RenderCounters() []profiler.Descriptor {
	return []profiler.Descriptor{
		{Category: profiler.CategoryRender, Name: GPUFrameTime, Unit: profiler.UnitTimeNanoseconds},
		{Category: profiler.CategoryRender, Name: DrawCallsCount, Unit: profiler.UnitCount},
		{Category: profiler.CategoryRender, Name: SetPassCallsCount, Unit: profiler.UnitCount},
		{Category: profiler.CategoryRender, Name: TotalBatchesCount, Unit: profiler.UnitCount},
		{Category: profiler.CategoryRender, Name: RenderTexturesSize, Unit: profiler.UnitBytes},
		{Category: profiler.CategoryRender, Name: UsedBuffersSize, Unit: profiler.UnitBytes},
		{Category: profiler.CategoryRender, Name: UsedTexturesSize, Unit: profiler.UnitBytes},
		{Category: profiler.CategoryMemory, Name: GfxUsedMemory, Unit: profiler.UnitBytes},
		{Category: profiler.CategoryMemory, Name: TextureMemory, Unit: profiler.UnitBytes},
		{Category: profiler.CategoryMemory, Name: MeshMemory, Unit: profiler.UnitBytes},
		{Category: profiler.CategoryMemory, Name: MaterialMemory, Unit: profiler.UnitBytes},
	}
}

// FrameCounters lists the counters the frame engine pushes every frame.
// Params: none.
// Returns: frame timing descriptors.
func FrameCounters() []profiler.Descriptor {
	return []profiler.Descriptor{
		{Category: profiler.CategoryInternal, Name: MainThread, Unit: profiler.UnitTimeNanoseconds},
		{Category: profiler.CategoryInternal, Name: FrameCount, Unit: profiler.UnitCount},
	}
}

// HostOptions selects optional host counters.
type HostOptions struct {
	// Render registers RenderCounters for an embedding renderer to push into.
	Render bool
	// Kernel registers procfs run-queue and context-switch counters.
	Kernel bool
	// IO registers disk and network byte-rate counters.
	IO bool
}

// RegisterHost registers the built-in host counters.
// Params: hub receives counters; opts selects optional groups.
// Returns: first registration error.
func RegisterHost(hub Registrar, opts HostOptions) error {
	if err := RegisterPushed(hub, FrameCounters()...); err != nil {
		return err
	}

	collectors := []Collector{
		NewSystemMemoryCollector(),
		NewCPUCollector(),
		NewProcessCPUCollector(),
	}
	collectors = append(collectors, NewRuntimeCollectors()...)
	if opts.Kernel {
		collectors = append(collectors, NewKernelCollectors()...)
	}
	if opts.IO {
		collectors = append(collectors, NewDiskCollectors()...)
		collectors = append(collectors, NewNetworkCollectors()...)
	}
	if err := RegisterCollectors(hub, collectors...); err != nil {
		return err
	}

	if opts.Render {
		return RegisterPushed(hub, RenderCounters()...)
	}
	return nil
}
