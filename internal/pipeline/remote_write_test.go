package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eryajf/promwrite"

	"perfhud/internal/stats"
)

type fakeRemoteWriter struct {
	mu       sync.Mutex
	requests []*promwrite.WriteRequest
	err      error
}

// Write records the request for assertions.
// Params: ctx ignored; req remote-write payload.
// Returns: configured error.
func (w *fakeRemoteWriter) Write(_ context.Context, req *promwrite.WriteRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests = append(w.requests, req)
	return w.err
}

func (w *fakeRemoteWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.requests)
}

// frameReport builds a report with one draw-call line and one header.
// Params: drawCalls numeric value.
// Returns: report instance.
func frameReport(drawCalls float64) *stats.Report {
	return &stats.Report{Lines: []stats.Line{
		{Kind: stats.KindHeader, Label: "--- Drawing ---"},
		{Kind: stats.KindDrawCalls, Label: "Draw Calls", Value: "x", Numeric: drawCalls, HasNumeric: true},
		{Kind: stats.KindGfxMemory, Label: "Gfx Memory", Value: "unavailable"},
	}}
}

// labelValue returns one label of a series.
// Params: series labels and label name.
// Returns: label value or empty string.
func labelValue(labels []promwrite.Label, name string) string {
	for _, label := range labels {
		if label.Name == name {
			return label.Value
		}
	}
	return ""
}

// TestWindow_EmitLastAndPercentiles verifies series naming, stat labels, and reset.
// Params: testing.T for assertions.
// Returns: none.
func TestWindow_EmitLastAndPercentiles(t *testing.T) {
	w := newWindow(windowConfig{
		Prefix:      "perfhud",
		Host:        "dev-box",
		Labels:      map[string]string{"env": "test", "host": "ignored"},
		Percentiles: []int{50},
	})
	for _, v := range []float64{4, 1, 3, 2} {
		if !w.appendSamples(reportSamples(frameReport(v))) {
			t.Fatalf("expected sample to be appended")
		}
	}

	at := time.Unix(1700000000, 0)
	series := w.emit(at)
	if len(series) != 2 {
		t.Fatalf("expected last+p50 series, got %d", len(series))
	}

	last, p50 := series[0], series[1]
	if labelValue(last.Labels, "__name__") != "perfhud_draw_calls" || labelValue(last.Labels, "stat") != "last" {
		t.Fatalf("unexpected last labels: %+v", last.Labels)
	}
	if last.Sample.Value != 2 || !last.Sample.Time.Equal(at) {
		t.Fatalf("unexpected last sample: %+v", last.Sample)
	}
	if labelValue(p50.Labels, "stat") != "p50" || p50.Sample.Value != 2 {
		t.Fatalf("unexpected p50 series: %+v", p50)
	}
	if labelValue(last.Labels, "host") != "dev-box" || labelValue(last.Labels, "env") != "test" {
		t.Fatalf("unexpected static labels: %+v", last.Labels)
	}
	for i := 1; i < len(last.Labels); i++ {
		if last.Labels[i-1].Name > last.Labels[i].Name {
			t.Fatalf("labels must be sorted: %+v", last.Labels)
		}
	}

	if again := w.emit(at); again != nil {
		t.Fatalf("expected empty window after emit, got %d series", len(again))
	}
}

// TestWindow_DropWindow verifies drop conditions suppress a whole window.
// Params: testing.T for assertions.
// Returns: none.
func TestWindow_DropWindow(t *testing.T) {
	conditions, err := compileDropConditions([]string{"draw_calls>10"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	w := newWindow(windowConfig{DropWindow: conditions})
	w.appendSamples(reportSamples(frameReport(50)))

	if series := w.emit(time.Now()); series != nil {
		t.Fatalf("expected dropped window, got %d series", len(series))
	}
}

// TestRemoteWriteSink_DropNewWhenFull verifies Consume never blocks and counts drops.
// Params: testing.T for assertions.
// Returns: none.
func TestRemoteWriteSink_DropNewWhenFull(t *testing.T) {
	sink, err := NewRemoteWriteSink(RemoteWriteConfig{MaxPending: 1}, &fakeRemoteWriter{}, nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := sink.Consume(context.Background(), frameReport(1)); err != nil {
			t.Fatalf("consume: %v", err)
		}
	}
	if err := sink.Consume(context.Background(), &stats.Report{}); err != nil {
		t.Fatalf("consume empty: %v", err)
	}
	if got := sink.Dropped(); got != 2 {
		t.Fatalf("expected 2 dropped reports, got %d", got)
	}
}

// TestRemoteWriteSink_FlushesOnStop verifies queued reports are written on shutdown.
// Params: testing.T for assertions.
// Returns: none.
func TestRemoteWriteSink_FlushesOnStop(t *testing.T) {
	writer := &fakeRemoteWriter{}
	sink, err := NewRemoteWriteSink(RemoteWriteConfig{SendEvery: time.Hour, Host: "h1"}, writer, nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	_ = sink.Consume(context.Background(), frameReport(7))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sink.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sink did not stop")
	}

	if writer.count() != 1 {
		t.Fatalf("expected one write on stop, got %d", writer.count())
	}
	if sink.Sent() != 1 {
		t.Fatalf("expected one series sent, got %d", sink.Sent())
	}
}

// TestRemoteWriteSink_WriteErrorIsLogged verifies failed writes do not count as sent.
// Params: testing.T for assertions.
// Returns: none.
func TestRemoteWriteSink_WriteErrorIsLogged(t *testing.T) {
	writer := &fakeRemoteWriter{err: errors.New("503")}
	sink, err := NewRemoteWriteSink(RemoteWriteConfig{}, writer, nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	sink.window.appendSamples(reportSamples(frameReport(1)))
	sink.flush(context.Background())

	if writer.count() != 1 || sink.Sent() != 0 {
		t.Fatalf("unexpected write state: writes=%d sent=%d", writer.count(), sink.Sent())
	}
}

// TestNewRemoteWriteSink_Validation verifies URL and drop_window validation.
// Params: testing.T for assertions.
// Returns: none.
func TestNewRemoteWriteSink_Validation(t *testing.T) {
	if _, err := NewRemoteWriteSink(RemoteWriteConfig{}, nil, nil); err == nil {
		t.Fatalf("expected error without url and writer")
	}
	if _, err := NewRemoteWriteSink(RemoteWriteConfig{DropWindow: []string{"bad"}}, &fakeRemoteWriter{}, nil); err == nil {
		t.Fatalf("expected error for invalid drop_window")
	}
	if _, err := NewRemoteWriteSink(RemoteWriteConfig{URL: "http://127.0.0.1:9090/api/v1/write"}, nil, nil); err != nil {
		t.Fatalf("expected promwrite client from url: %v", err)
	}
}
