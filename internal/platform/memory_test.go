package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/mem"
)

type fakeHandle struct {
	name   string
	closed *[]string
	err    error
}

// Close records the release order.
// Params: none.
// Returns: configured close error.
func (h fakeHandle) Close() error {
	*h.closed = append(*h.closed, h.name)
	return h.err
}

type fakeApp struct {
	activity Activity
	err      error
}

// CurrentActivity returns the configured activity.
// Params: ctx is unused.
// Returns: configured activity and error.
func (a fakeApp) CurrentActivity(context.Context) (Activity, error) {
	return a.activity, a.err
}

type fakeActivity struct {
	fakeHandle
	service Service
	asked   *string
}

// SystemService returns the configured service and records the requested name.
// Params: ctx is unused; name requested service.
// Returns: configured service.
func (a fakeActivity) SystemService(_ context.Context, name string) (Service, error) {
	*a.asked = name
	return a.service, nil
}

type fakeService struct {
	fakeHandle
	record MemoryRecord
}

// MemoryInfo returns the configured record.
// Params: ctx is unused.
// Returns: configured record.
func (s fakeService) MemoryInfo(context.Context) (MemoryRecord, error) {
	return s.record, nil
}

type fakeRecord struct {
	fakeHandle
	total, avail int64
	low          bool
}

func (r fakeRecord) TotalMem() int64  { return r.total }
func (r fakeRecord) AvailMem() int64  { return r.avail }
func (r fakeRecord) Threshold() int64 { return 0 }
func (r fakeRecord) LowMemory() bool  { return r.low }

// TestChain_ResolvesAndReleasesAllHandles verifies a full chain read and reverse release order.
// Params: testing.T for assertions.
// Returns: none.
func TestChain_ResolvesAndReleasesAllHandles(t *testing.T) {
	var closed []string
	var asked string

	record := fakeRecord{fakeHandle: fakeHandle{name: "record", closed: &closed}, total: 4 << 30, avail: 1 << 30, low: true}
	service := fakeService{fakeHandle: fakeHandle{name: "service", closed: &closed}, record: record}
	activity := fakeActivity{fakeHandle: fakeHandle{name: "activity", closed: &closed}, service: service, asked: &asked}

	info, err := NewChain(fakeApp{activity: activity}).MemoryInfo(context.Background())
	if err != nil {
		t.Fatalf("memory info: %v", err)
	}
	if info.Total != 4<<30 || info.Available != 1<<30 || !info.LowMemory {
		t.Fatalf("unexpected memory info: %+v", info)
	}
	if asked != "activity" {
		t.Fatalf("unexpected service name: %q", asked)
	}
	if len(closed) != 3 || closed[0] != "record" || closed[1] != "service" || closed[2] != "activity" {
		t.Fatalf("unexpected release order: %v", closed)
	}
}

// TestChain_MissingLinksDegrade verifies each nil link yields its labeled error and releases acquired handles.
// Params: testing.T for assertions.
// Returns: none.
func TestChain_MissingLinksDegrade(t *testing.T) {
	var closed []string
	var asked string

	_, err := NewChain(fakeApp{}).MemoryInfo(context.Background())
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) || unavailable.Link != LinkActivity {
		t.Fatalf("expected activity null, got %v", err)
	}
	if err.Error() != "activity null" {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	activity := fakeActivity{fakeHandle: fakeHandle{name: "activity", closed: &closed}, asked: &asked}
	_, err = NewChain(fakeApp{activity: activity}).MemoryInfo(context.Background())
	if !errors.As(err, &unavailable) || unavailable.Link != LinkActivityManager {
		t.Fatalf("expected activityManager null, got %v", err)
	}
	if len(closed) != 1 || closed[0] != "activity" {
		t.Fatalf("expected activity release on early return, got %v", closed)
	}

	closed = nil
	service := fakeService{fakeHandle: fakeHandle{name: "service", closed: &closed}}
	activity.service = service
	_, err = NewChain(fakeApp{activity: activity}).MemoryInfo(context.Background())
	if !errors.As(err, &unavailable) || unavailable.Link != LinkMemoryInfo {
		t.Fatalf("expected memoryInfo null, got %v", err)
	}
	if len(closed) != 2 {
		t.Fatalf("expected service and activity release, got %v", closed)
	}
}

// TestChain_ReleaseErrorIsReported verifies close failures are joined into the result error.
// Params: testing.T for assertions.
// Returns: none.
func TestChain_ReleaseErrorIsReported(t *testing.T) {
	var closed []string
	var asked string
	boom := errors.New("boom")

	record := fakeRecord{fakeHandle: fakeHandle{name: "record", closed: &closed}}
	service := fakeService{fakeHandle: fakeHandle{name: "service", closed: &closed, err: boom}, record: record}
	activity := fakeActivity{fakeHandle: fakeHandle{name: "activity", closed: &closed}, service: service, asked: &asked}

	_, err := NewChain(fakeApp{activity: activity}).MemoryInfo(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected release error, got %v", err)
	}
}

// TestUnsupported verifies the unsupported variant.
// Params: testing.T for assertions.
// Returns: none.
func TestUnsupported(t *testing.T) {
	if _, err := (Unsupported{}).MemoryInfo(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

// TestNewMemoryProvider_Modes verifies provider selection.
// Params: testing.T for assertions.
// Returns: none.
func TestNewMemoryProvider_Modes(t *testing.T) {
	p, err := NewMemoryProvider("unsupported", 0)
	if err != nil {
		t.Fatalf("unsupported mode: %v", err)
	}
	if _, ok := p.(Unsupported); !ok {
		t.Fatalf("expected Unsupported, got %T", p)
	}

	p, err = NewMemoryProvider(" Chain ", 0)
	if err != nil {
		t.Fatalf("chain mode: %v", err)
	}
	if _, ok := p.(*Chain); !ok {
		t.Fatalf("expected *Chain, got %T", p)
	}

	if _, err := NewMemoryProvider("bogus", 0); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if !hasHandleChain("android") || hasHandleChain("windows") {
		t.Fatalf("unexpected platform mapping")
	}
}

// TestHostApplication_LowMemoryFlag verifies the host chain threshold logic.
// Params: testing.T for assertions.
// Returns: none.
func TestHostApplication_LowMemoryFlag(t *testing.T) {
	app := NewHostApplication(512 << 20)
	app.virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 8 << 30, Available: 100 << 20}, nil
	}

	info, err := NewChain(app).MemoryInfo(context.Background())
	if err != nil {
		t.Fatalf("memory info: %v", err)
	}
	if info.Total != 8<<30 || info.Available != 100<<20 {
		t.Fatalf("unexpected totals: %+v", info)
	}
	if !info.LowMemory || info.Threshold != 512<<20 {
		t.Fatalf("expected low memory below threshold: %+v", info)
	}
}
