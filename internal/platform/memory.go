// Package platform answers the per-frame questions only the OS can: how much
// memory the device has left, whether it is under memory pressure, battery and
// thermal state. Memory info is obtained through a provider chosen once at startup.
package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrUnsupported reports that the platform exposes no memory-info service.
var ErrUnsupported = errors.New("platform memory info not available")

// Link names one step of the memory-info handle chain.
type Link string

const (
	LinkActivity        Link = "activity"
	LinkActivityManager Link = "activityManager"
	LinkMemoryInfo      Link = "memoryInfo"
)

// UnavailableError reports that one link of the handle chain resolved to nothing.
// Params: Link is the missing step.
// Returns: error rendered as "<link> null".
type UnavailableError struct {
	Link Link
}

// Error implements error.
func (e *UnavailableError) Error() string {
	return string(e.Link) + " null"
}

// MemoryInfo is one device memory snapshot.
// Params: byte totals, low-memory threshold, and pressure flag.
// Returns: memory record copied out of the handle chain.
type MemoryInfo struct {
	Total     int64
	Available int64
	Threshold int64
	LowMemory bool
}

// MemoryProvider reads device memory info.
// Params: ctx for cancellation.
// Returns: snapshot, ErrUnsupported, or *UnavailableError for a missing chain link.
type MemoryProvider interface {
	MemoryInfo(ctx context.Context) (MemoryInfo, error)
}

// Unsupported is the provider for platforms without a memory-info service.
type Unsupported struct{}

// MemoryInfo always reports ErrUnsupported.
func (Unsupported) MemoryInfo(context.Context) (MemoryInfo, error) {
	return MemoryInfo{}, ErrUnsupported
}

// Handle is a scoped OS object reference that must be released on every path.
type Handle interface {
	Close() error
}

// Application is the root of the handle chain.
// Params: ctx for cancellation.
// Returns: current activity, or nil when none is attached.
type Application interface {
	CurrentActivity(ctx context.Context) (Activity, error)
}

// Activity resolves named system services.
// Params: ctx and service name (e.g. "activity").
// Returns: service handle, or nil when the service is not present.
type Activity interface {
	Handle
	SystemService(ctx context.Context, name string) (Service, error)
}

// Service fills a memory-info record.
// Params: ctx for cancellation.
// Returns: record handle, or nil when allocation failed.
type Service interface {
	Handle
	MemoryInfo(ctx context.Context) (MemoryRecord, error)
}

// MemoryRecord exposes the fields of one memory-info object.
type MemoryRecord interface {
	Handle
	TotalMem() int64
	AvailMem() int64
	Threshold() int64
	LowMemory() bool
}

// activityService is the service name resolved from the current activity.
const activityService = "activity"

// Chain walks application -> activity -> system service -> memory record.
// Params: app is the chain root.
// Returns: MemoryProvider for handle-chain platforms.
type Chain struct {
	app Application
}

// NewChain creates a handle-chain provider.
// Params: app chain root.
// Returns: provider instance.
func NewChain(app Application) *Chain {
	return &Chain{app: app}
}

// MemoryInfo resolves the chain, releasing each acquired handle before returning.
// Params: ctx for cancellation.
// Returns: memory snapshot or the first failing link.
func (c *Chain) MemoryInfo(ctx context.Context) (info MemoryInfo, err error) {
	if c.app == nil {
		return MemoryInfo{}, &UnavailableError{Link: LinkActivity}
	}

	activity, err := c.app.CurrentActivity(ctx)
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("resolve %s: %w", LinkActivity, err)
	}
	if activity == nil {
		return MemoryInfo{}, &UnavailableError{Link: LinkActivity}
	}
	defer release(activity, LinkActivity, &err)

	service, err := activity.SystemService(ctx, activityService)
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("resolve %s: %w", LinkActivityManager, err)
	}
	if service == nil {
		return MemoryInfo{}, &UnavailableError{Link: LinkActivityManager}
	}
	defer release(service, LinkActivityManager, &err)

	record, err := service.MemoryInfo(ctx)
	if err != nil {
		return MemoryInfo{}, fmt.Errorf("resolve %s: %w", LinkMemoryInfo, err)
	}
	if record == nil {
		return MemoryInfo{}, &UnavailableError{Link: LinkMemoryInfo}
	}
	defer release(record, LinkMemoryInfo, &err)

	return MemoryInfo{
		Total:     record.TotalMem(),
		Available: record.AvailMem(),
		Threshold: record.Threshold(),
		LowMemory: record.LowMemory(),
	}, nil
}

func release(h Handle, link Link, err *error) {
	if closeErr := h.Close(); closeErr != nil {
		*err = errors.Join(*err, fmt.Errorf("release %s: %w", link, closeErr))
	}
}

// Memory provider modes accepted by NewMemoryProvider.
const (
	ModeAuto        = "auto"
	ModeChain       = "chain"
	ModeUnsupported = "unsupported"
)

// NewMemoryProvider selects the memory provider once at startup.
// Params: mode is auto|chain|unsupported; lowMemoryThreshold in bytes for the host chain.
// Returns: provider or error for unknown mode.
func NewMemoryProvider(mode string, lowMemoryThreshold int64) (MemoryProvider, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeUnsupported:
		return Unsupported{}, nil
	case ModeChain:
		return NewChain(NewHostApplication(lowMemoryThreshold)), nil
	case "", ModeAuto:
		if hasHandleChain(runtime.GOOS) {
			return NewChain(NewHostApplication(lowMemoryThreshold)), nil
		}
		return Unsupported{}, nil
	default:
		return nil, fmt.Errorf("unsupported memory provider mode %q", mode)
	}
}

func hasHandleChain(goos string) bool {
	return goos == "android" || goos == "linux"
}
