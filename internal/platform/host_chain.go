package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/mem"
	goprocess "github.com/shirou/gopsutil/v4/process"
)

// defaultLowMemoryThreshold mirrors the typical mobile low-memory watermark.
const defaultLowMemoryThreshold = 256 << 20

// HostApplication roots the handle chain at the running process.
// Params: created with NewHostApplication.
// Returns: Application backed by gopsutil process and memory APIs.
type HostApplication struct {
	pid       int32
	threshold int64

	openProcess   func(ctx context.Context, pid int32) (*goprocess.Process, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewHostApplication creates the host chain root for the current process.
// Params: threshold is the low-memory watermark in bytes (<=0 uses 256 MiB).
// Returns: application handle.
func NewHostApplication(threshold int64) *HostApplication {
	if threshold <= 0 {
		threshold = defaultLowMemoryThreshold
	}
	return &HostApplication{
		pid:           int32(os.Getpid()),
		threshold:     threshold,
		openProcess:   goprocess.NewProcessWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
	}
}

// CurrentActivity opens the current process handle.
// Params: ctx for cancellation.
// Returns: activity, nil when the process is gone, or lookup error.
func (a *HostApplication) CurrentActivity(ctx context.Context) (Activity, error) {
	proc, err := a.openProcess(ctx, a.pid)
	if errors.Is(err, goprocess.ErrorProcessNotRunning) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open process %d: %w", a.pid, err)
	}
	return &hostActivity{app: a, proc: proc}, nil
}

type hostActivity struct {
	app *HostApplication

	mu   sync.Mutex
	proc *goprocess.Process
}

// SystemService resolves the memory service; other names are not present on the host.
func (a *hostActivity) SystemService(ctx context.Context, name string) (Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.proc == nil {
		return nil, fmt.Errorf("activity already released")
	}
	if name != activityService && name != "memory" {
		return nil, nil
	}
	running, err := a.proc.IsRunningWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("check process state: %w", err)
	}
	if !running {
		return nil, nil
	}
	return &hostService{app: a.app}, nil
}

func (a *hostActivity) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.proc = nil
	return nil
}

type hostService struct {
	app      *HostApplication
	released bool
}

// MemoryInfo allocates a memory record filled from the kernel.
func (s *hostService) MemoryInfo(ctx context.Context) (MemoryRecord, error) {
	if s.released {
		return nil, fmt.Errorf("service already released")
	}
	vm, err := s.app.virtualMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("read virtual memory: %w", err)
	}
	if vm == nil {
		return nil, nil
	}
	total := toInt64(vm.Total)
	avail := toInt64(vm.Available)
	return &hostRecord{
		total:     total,
		avail:     avail,
		threshold: s.app.threshold,
		low:       avail < s.app.threshold,
	}, nil
}

func (s *hostService) Close() error {
	s.released = true
	return nil
}

type hostRecord struct {
	total     int64
	avail     int64
	threshold int64
	low       bool
}

func (r *hostRecord) TotalMem() int64  { return r.total }
func (r *hostRecord) AvailMem() int64  { return r.avail }
func (r *hostRecord) Threshold() int64 { return r.threshold }
func (r *hostRecord) LowMemory() bool  { return r.low }
func (r *hostRecord) Close() error     { return nil }

func toInt64(value uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if value > maxInt64 {
		return maxInt64
	}
	return int64(value)
}
