package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	pprofhttp "net/http/pprof"
	"sync"
	"time"

	"perfhud/internal/config"
)

const (
	debugShutdownTimeout   = 3 * time.Second
	debugReadHeaderTimeout = 2 * time.Second
)

// pprofProfiles are the named runtime profiles served under /debug/pprof/.
var pprofProfiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

// startPprofServer starts the optional pprof endpoint.
// Params: ctx controls lifecycle; cfg provides enabled/listen options; logger reports runtime events.
// Returns: stop function (idempotent) and listen error.
func startPprofServer(ctx context.Context, cfg config.PprofConfig, logger *slog.Logger) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}
	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", cfg.Listen, err)
	}
	return serveDebugHTTP(ctx, "pprof", lis, pprofMux(), logger), nil
}

// pprofMux routes the pprof index, the special endpoints, and every named profile.
func pprofMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprofhttp.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprofhttp.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprofhttp.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprofhttp.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprofhttp.Trace)
	for _, name := range pprofProfiles {
		mux.Handle("/debug/pprof/"+name, pprofhttp.Handler(name))
	}
	return mux
}

// serveDebugHTTP serves handler on lis until ctx ends or the returned stop is called.
// Params: ctx lifecycle; name server label for logs; lis bound listener; handler routes; logger runtime events.
// Returns: idempotent stop function that shuts the server down gracefully.
func serveDebugHTTP(ctx context.Context, name string, lis net.Listener, handler http.Handler, logger *slog.Logger) func() {
	addr := lis.Addr().String()
	logger = logger.With(slog.String("server", name), slog.String("addr", addr))
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: debugReadHeaderTimeout,
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), debugShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("debug server shutdown error", slog.String("error", err.Error()))
			}
		})
	}
	context.AfterFunc(ctx, stop)

	go func() {
		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("debug server failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("debug server started")
	return stop
}
