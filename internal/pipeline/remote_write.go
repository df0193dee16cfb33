package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/eryajf/promwrite"

	"perfhud/internal/stats"
)

const (
	defaultRemoteWriteEvery   = 15 * time.Second
	defaultRemoteWriteTimeout = 10 * time.Second
	defaultRemoteWritePending = 1024
	defaultSeriesPrefix       = "perfhud"
)

// RemoteWriter delivers one remote-write request.
type RemoteWriter interface {
	Write(ctx context.Context, req *promwrite.WriteRequest) error
}

type promwriteClient struct {
	client *promwrite.Client
}

func (c promwriteClient) Write(ctx context.Context, req *promwrite.WriteRequest) error {
	_, err := c.client.Write(ctx, req)
	return err
}

// NewPromwriteClient creates a RemoteWriter posting to a Prometheus remote-write URL.
// Params: url remote-write endpoint.
// Returns: writer backed by promwrite.
func NewPromwriteClient(url string) RemoteWriter {
	return promwriteClient{client: promwrite.NewClient(url)}
}

// RemoteWriteConfig defines the remote-write sink runtime.
// Params: endpoint, send schedule, aggregation options, and queue size.
// Returns: sink configuration.
type RemoteWriteConfig struct {
	URL         string
	SendEvery   time.Duration
	Timeout     time.Duration
	Percentiles []int
	Prefix      string
	Host        string
	Labels      map[string]string
	Filter      []string
	Drop        []string
	DropWindow  []string
	MaxPending  int
}

// RemoteWriteSink aggregates report lines over a send window and ships them as
// Prometheus remote-write series.
// Params: created with NewRemoteWriteSink; Run must be started for delivery.
// Returns: Sink and Runner implementation.
type RemoteWriteSink struct {
	cfg      RemoteWriteConfig
	writer   RemoteWriter
	window   *window
	incoming chan []sample
	logger   *slog.Logger
	now      func() time.Time

	dropped atomic.Uint64
	sent    atomic.Uint64
}

// NewRemoteWriteSink builds a remote-write sink.
// Params: cfg runtime settings; writer delivery client (nil uses promwrite on cfg.URL); logger root logger.
// Returns: sink instance or validation error.
func NewRemoteWriteSink(cfg RemoteWriteConfig, writer RemoteWriter, logger *slog.Logger) (*RemoteWriteSink, error) {
	if writer == nil {
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("remote_write.url is required")
		}
		writer = NewPromwriteClient(cfg.URL)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.SendEvery <= 0 {
		cfg.SendEvery = defaultRemoteWriteEvery
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRemoteWriteTimeout
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultRemoteWritePending
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultSeriesPrefix
	}

	conditions, err := compileDropConditions(cfg.DropWindow)
	if err != nil {
		return nil, err
	}

	return &RemoteWriteSink{
		cfg:    cfg,
		writer: writer,
		window: newWindow(windowConfig{
			Prefix:      cfg.Prefix,
			Host:        cfg.Host,
			Labels:      cfg.Labels,
			Percentiles: normalizePercentiles(cfg.Percentiles),
			Filter:      cfg.Filter,
			Drop:        cfg.Drop,
			DropWindow:  conditions,
		}),
		incoming: make(chan []sample, cfg.MaxPending),
		logger:   logger.With(slog.String("sink", "remote_write")),
		now:      time.Now,
	}, nil
}

// Consume enqueues the numeric lines of one report.
// Params: ctx is unused; report frame snapshot.
// Returns: nil; a full queue drops the report (drop-new policy).
func (s *RemoteWriteSink) Consume(_ context.Context, report *stats.Report) error {
	samples := reportSamples(report)
	if len(samples) == 0 {
		return nil
	}

	select {
	case s.incoming <- samples:
	default:
		if s.dropped.Add(1) == 1 {
			s.logger.Warn("remote write queue full, dropping reports", slog.Int("max_pending", s.cfg.MaxPending))
		}
	}
	return nil
}

// Dropped returns how many reports were dropped because the queue was full.
func (s *RemoteWriteSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Sent returns how many series were delivered.
func (s *RemoteWriteSink) Sent() uint64 {
	return s.sent.Load()
}

// Run executes ingest/send loops until context cancellation.
// Params: ctx controls lifecycle.
// Returns: nil on graceful stop.
func (s *RemoteWriteSink) Run(ctx context.Context) error {
	sendTicker := time.NewTicker(s.cfg.SendEvery)
	defer sendTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			s.flush(context.WithoutCancel(ctx))
			return nil
		case samples := <-s.incoming:
			s.window.appendSamples(samples)
		case <-sendTicker.C:
			s.flush(ctx)
		}
	}
}

// drain moves every queued report into the window.
func (s *RemoteWriteSink) drain() {
	for {
		select {
		case samples := <-s.incoming:
			s.window.appendSamples(samples)
		default:
			return
		}
	}
}

// flush aggregates the current window and writes it.
// Params: ctx parent context for the write timeout.
// Returns: none; write errors are logged.
func (s *RemoteWriteSink) flush(ctx context.Context) {
	series := s.window.emit(s.now())
	if len(series) == 0 {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.writer.Write(writeCtx, &promwrite.WriteRequest{TimeSeries: series}); err != nil {
		s.logger.Error(
			"remote write failed",
			slog.Int("series", len(series)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.sent.Add(uint64(len(series)))
	s.logger.Debug("remote write sent", slog.Int("series", len(series)))
}
