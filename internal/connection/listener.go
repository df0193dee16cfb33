package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Listener serves the player service and gRPC health on one listener.
// Params: created with NewListener.
// Returns: background runner for the frame engine.
type Listener struct {
	lis    net.Listener
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// Listen binds addr and prepares the gRPC server.
// Params: addr host:port; server player service; logger root logger.
// Returns: listener or bind error.
func Listen(addr string, server *Server, logger *slog.Logger) (*Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return NewListener(lis, server, logger), nil
}

// NewListener wraps an already bound listener.
// Params: lis network listener; server player service; logger root logger.
// Returns: listener instance.
func NewListener(lis net.Listener, server *Server, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	grpcServer := grpc.NewServer()
	RegisterPlayerServer(grpcServer, server)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &Listener{
		lis:    lis,
		grpc:   grpcServer,
		health: healthServer,
		logger: logger.With(slog.String("component", "connection")),
	}
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.lis.Addr()
}

// Close stops a listener that was never run.
func (l *Listener) Close() {
	l.health.Shutdown()
	l.grpc.Stop()
	_ = l.lis.Close()
}

// Run serves until ctx is cancelled, reporting SERVING while active.
// Params: ctx lifecycle context.
// Returns: serve error other than a graceful stop.
func (l *Listener) Run(ctx context.Context) error {
	l.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	l.logger.Info("player connection listening", slog.String("addr", l.lis.Addr().String()))

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		l.health.Shutdown()
		l.grpc.GracefulStop()
	}()

	if err := l.grpc.Serve(l.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		l.health.Shutdown()
		return fmt.Errorf("serve player connection: %w", err)
	}
	<-stopped
	return nil
}
