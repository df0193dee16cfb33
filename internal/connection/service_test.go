package connection

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"perfhud/internal/stats"
)

// startPlayer serves a player on an in-memory listener and dials it.
// Params: t test handle; server player service.
// Returns: connected client and stop func.
func startPlayer(t *testing.T, server *Server) (*Client, func()) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	listener := NewListener(lis, server, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	client, err := Dial(context.Background(), "bufnet", 5*time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}

	return client, func() {
		_ = client.Close()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("listener run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("listener did not stop")
		}
	}
}

// TestPlayer_SendDispatchesByMessageType verifies UUID routing over gRPC.
// Params: testing.T for assertions.
// Returns: none.
func TestPlayer_SendDispatchesByMessageType(t *testing.T) {
	server := NewServer(nil, nil)
	custom := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	var received atomic.Value
	if err := server.Register(custom, func(_ context.Context, payload []byte) error {
		received.Store(string(payload))
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	client, stop := startPlayer(t, server)
	defer stop()

	ctx := context.Background()
	if err := client.Send(ctx, PerformanceStatsMessage, []byte("stats")); err != nil {
		t.Fatalf("default message: %v", err)
	}
	if err := client.Send(ctx, custom, []byte("hello")); err != nil {
		t.Fatalf("custom message: %v", err)
	}
	if got, _ := received.Load().(string); got != "hello" {
		t.Fatalf("unexpected payload: %q", got)
	}

	err := client.Send(ctx, uuid.New(), nil)
	if status.Code(errors.Unwrap(err)) != codes.NotFound {
		t.Fatalf("expected NotFound for unknown type, got %v", err)
	}

	serving, err := client.Health(ctx)
	if err != nil || serving != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v err=%v", serving, err)
	}
}

// TestPlayer_LatestReport verifies the latest report is served as a Struct.
// Params: testing.T for assertions.
// Returns: none.
func TestPlayer_LatestReport(t *testing.T) {
	var latest atomic.Pointer[stats.Report]
	server := NewServer(latest.Load, nil)

	client, stop := startPlayer(t, server)
	defer stop()

	ctx := context.Background()
	if _, err := client.Latest(ctx); status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("expected Unavailable before first frame, got %v", err)
	}

	latest.Store(&stats.Report{
		Frame: 7,
		At:    time.Unix(1700000000, 0),
		Lines: []stats.Line{
			{Kind: stats.KindHeader, Label: "--- Drawing ---"},
			{Kind: stats.KindDrawCalls, Label: "Draw Calls", Value: "42", Numeric: 42, HasNumeric: true},
		},
	})

	out, err := client.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	fields := out.GetFields()
	if fields["frame"].GetNumberValue() != 7 {
		t.Fatalf("unexpected frame: %v", fields["frame"])
	}
	if fields["text"].GetStringValue() != "--- Drawing ---\nDraw Calls: 42\n" {
		t.Fatalf("unexpected text: %q", fields["text"].GetStringValue())
	}
	lines := fields["lines"].GetListValue().GetValues()
	if len(lines) != 2 {
		t.Fatalf("unexpected lines: %v", lines)
	}
	draw := lines[1].GetStructValue().GetFields()
	if draw["metric"].GetStringValue() != "draw_calls" || draw["numeric"].GetNumberValue() != 42 {
		t.Fatalf("unexpected draw line: %v", draw)
	}
}

// TestServer_SendValidation verifies metadata parsing and handler errors without transport.
// Params: testing.T for assertions.
// Returns: none.
func TestServer_SendValidation(t *testing.T) {
	server := NewServer(nil, nil)

	bad := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MessageTypeKey, "not-a-uuid"))
	if _, err := server.Send(bad, wrapperspb.Bytes(nil)); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	if _, err := server.Send(context.Background(), wrapperspb.Bytes([]byte("x"))); err != nil {
		t.Fatalf("missing metadata must use the default type: %v", err)
	}

	failing := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	if err := server.Register(failing, func(context.Context, []byte) error { return errors.New("boom") }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := server.Register(failing, func(context.Context, []byte) error { return nil }); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MessageTypeKey, failing.String()))
	if _, err := server.Send(ctx, wrapperspb.Bytes(nil)); status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}

	if !server.Unregister(failing) || server.Unregister(failing) {
		t.Fatalf("unexpected unregister result")
	}
}

// TestServer_DefaultHandlerLogsMessage verifies the statistics handler logs the editor message text.
// Params: testing.T for assertions.
// Returns: none.
func TestServer_DefaultHandlerLogsMessage(t *testing.T) {
	var out bytes.Buffer
	server := NewServer(nil, slog.New(slog.NewTextHandler(&out, nil)))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MessageTypeKey, PerformanceStatsMessage.String()))
	if _, err := server.Send(ctx, wrapperspb.Bytes([]byte("capture started"))); err != nil {
		t.Fatalf("send: %v", err)
	}

	logged := out.String()
	if !strings.Contains(logged, `msg="message received from the editor"`) {
		t.Fatalf("missing log record: %q", logged)
	}
	if !strings.Contains(logged, `message="capture started"`) {
		t.Fatalf("message body not logged: %q", logged)
	}
}
