// Package connection exposes the running HUD to an editor over gRPC: the editor
// sends typed messages identified by UUID and can pull the latest frame report.
package connection

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"perfhud/internal/stats"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "perfhud.connection.Player"
	// MessageTypeKey is the metadata key carrying the message-type UUID of Send.
	MessageTypeKey = "x-perfhud-message-type"

	sendMethod   = "/" + ServiceName + "/Send"
	latestMethod = "/" + ServiceName + "/Latest"
)

// PerformanceStatsMessage is the message type sent by the editor to request statistics.
var PerformanceStatsMessage = uuid.MustParse("3f2504e0-4f89-11d3-9a0c-0305e82c3301")

// Handler processes one editor message payload.
type Handler func(ctx context.Context, payload []byte) error

// PlayerServer is the server API of the player service.
type PlayerServer interface {
	Send(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Latest(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

// PlayerServiceDesc describes the player service for grpc.Server registration.
var PlayerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlayerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: sendHandler},
		{MethodName: "Latest", Handler: latestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "perfhud/connection/player",
}

// RegisterPlayerServer registers srv on a gRPC service registrar.
// Params: registrar grpc server; srv implementation.
// Returns: none.
func RegisterPlayerServer(registrar grpc.ServiceRegistrar, srv PlayerServer) {
	registrar.RegisterService(&PlayerServiceDesc, srv)
}

func sendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlayerServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlayerServer).Send(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func latestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlayerServer).Latest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: latestMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlayerServer).Latest(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Server dispatches editor messages to handlers registered by message type.
// Params: created with NewServer.
// Returns: PlayerServer implementation.
type Server struct {
	latest func() *stats.Report
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[uuid.UUID]Handler
}

// NewServer creates a player service with the default statistics handler.
// Params: latest returns the most recent report (nil allowed); logger for message logs.
// Returns: server instance.
func NewServer(latest func() *stats.Report, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		latest:   latest,
		logger:   logger,
		handlers: make(map[uuid.UUID]Handler),
	}
	s.handlers[PerformanceStatsMessage] = func(_ context.Context, payload []byte) error {
		s.logger.Info(
			"message received from the editor",
			slog.String("message", string(payload)),
			slog.Int("bytes", len(payload)),
		)
		return nil
	}
	return s
}

// Register binds a handler to a message type.
// Params: messageType UUID; handler callback.
// Returns: error when the type already has a handler or handler is nil.
func (s *Server) Register(messageType uuid.UUID, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler for %s is nil", messageType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handlers[messageType]; exists {
		return fmt.Errorf("handler for %s already registered", messageType)
	}
	s.handlers[messageType] = handler
	return nil
}

// Unregister removes the handler of a message type.
// Params: messageType UUID.
// Returns: true when a handler was removed.
func (s *Server) Unregister(messageType uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.handlers[messageType]; !exists {
		return false
	}
	delete(s.handlers, messageType)
	return true
}

// Send dispatches one message to the handler of its metadata message type.
// Params: ctx carries MessageTypeKey metadata (default PerformanceStatsMessage); in payload.
// Returns: empty response or gRPC status error.
func (s *Server) Send(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	messageType, err := messageTypeFrom(ctx)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.mu.RLock()
	handler, ok := s.handlers[messageType]
	s.mu.RUnlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no handler for message type %s", messageType)
	}

	if err := handler(ctx, in.GetValue()); err != nil {
		return nil, status.Errorf(codes.Internal, "handle message %s: %v", messageType, err)
	}
	return &emptypb.Empty{}, nil
}

// Latest returns the most recent frame report.
// Params: ctx request context; in unused.
// Returns: report struct or Unavailable before the first frame.
func (s *Server) Latest(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	var report *stats.Report
	if s.latest != nil {
		report = s.latest()
	}
	if report == nil {
		return nil, status.Error(codes.Unavailable, "no frame report yet")
	}

	out, err := ReportStruct(report)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode report: %v", err)
	}
	return out, nil
}

// ReportStruct converts a report into a protobuf Struct.
// Params: report frame snapshot.
// Returns: struct with frame, at, text, and lines fields.
func ReportStruct(report *stats.Report) (*structpb.Struct, error) {
	lines := make([]any, 0, len(report.Lines))
	for _, line := range report.Lines {
		entry := map[string]any{
			"label": line.Label,
			"value": line.Value,
		}
		if name, ok := line.Kind.MetricName(); ok {
			entry["metric"] = name
		}
		if line.HasNumeric {
			entry["numeric"] = line.Numeric
		}
		lines = append(lines, entry)
	}

	return structpb.NewStruct(map[string]any{
		"frame": float64(report.Frame),
		"at":    report.At.UTC().Format(time.RFC3339Nano),
		"text":  report.String(),
		"lines": lines,
	})
}

// messageTypeFrom reads the message type from incoming metadata.
func messageTypeFrom(ctx context.Context) (uuid.UUID, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return PerformanceStatsMessage, nil
	}
	values := md.Get(MessageTypeKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return PerformanceStatsMessage, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(values[0]))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse message type: %w", err)
	}
	return id, nil
}
