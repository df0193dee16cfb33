package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"perfhud/internal/config"
	"perfhud/internal/logging"
)

// errRunnerExited reports a frame loop that returned while its context was still live.
var errRunnerExited = errors.New("runner exited without context cancellation")

// Runtime defines runtime inputs required to start the HUD.
// Params: ConfigPath points to the TOML configuration file or directory; Reload triggers hot reload.
// Returns: Runtime value used by Run.
type Runtime struct {
	ConfigPath string
	Reload     <-chan struct{}
}

type engineRunner interface {
	Run(context.Context) error
}

// debugServer is an optional side server started before the HUD and stopped after it.
type debugServer struct {
	name  string
	start func(context.Context, *config.Config, *slog.Logger) (func(), error)
}

type runDeps struct {
	loadConfig func(string) (*config.Config, error)
	newLogger  func(config.LogConfig) (*slog.Logger, func(), error)
	servers    []debugServer
	newHUD     func(context.Context, *config.Config, *slog.Logger) (engineRunner, error)
}

// logSession is one logger with its sink resources.
type logSession struct {
	logger *slog.Logger
	close  func()
}

// release closes the sink resources once.
func (s *logSession) release() {
	if s != nil && s.close != nil {
		s.close()
		s.close = nil
	}
}

// activeRuntime is one running HUD with its debug servers.
type activeRuntime struct {
	cfg     *config.Config
	session *logSession
	cancel  context.CancelFunc
	done    chan error
	stops   []func()
}

// Run loads configuration, starts runtime, and supports hot reload via Runtime.Reload.
// Params: ctx controls lifecycle; rt provides runtime inputs and optional reload trigger channel.
// Returns: error on startup/reload failure without rollback, nil on graceful stop.
func Run(ctx context.Context, rt Runtime) error {
	return runWithDeps(ctx, rt, defaultRunDeps())
}

// defaultRunDeps provides production runtime dependencies.
// Params: none.
// Returns: dependency set used by Run.
func defaultRunDeps() runDeps {
	return runDeps{
		loadConfig: config.Load,
		newLogger:  logging.New,
		servers: []debugServer{
			{name: "pprof", start: func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func(), error) {
				return startPprofServer(ctx, cfg.Pprof, logger)
			}},
			{name: "statsview", start: func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func(), error) {
				return startStatsviewServer(ctx, cfg.Statsview, logger)
			}},
		},
		newHUD: hudBuilder{out: os.Stdout}.build,
	}
}

// runWithDeps executes runtime lifecycle using injectable dependencies.
// Params: ctx controls lifecycle; rt runtime inputs; deps start/reload dependencies.
// Returns: runtime error or nil on graceful stop.
func runWithDeps(ctx context.Context, rt Runtime, deps runDeps) error {
	if strings.TrimSpace(rt.ConfigPath) == "" {
		return fmt.Errorf("config path is required")
	}

	cfg, err := deps.loadConfig(rt.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	active, err := startRuntime(ctx, cfg, deps, nil)
	if err != nil {
		return err
	}

	reloadCh := rt.Reload
	for {
		select {
		case runErr := <-active.done:
			active.done = nil
			return active.finish(ctx, runErr)
		case <-ctx.Done():
			return active.finish(ctx, nil)
		case _, ok := <-reloadCh:
			if !ok {
				reloadCh = nil
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			next, reloadErr := active.reload(ctx, rt.ConfigPath, deps)
			if next == nil {
				return reloadErr
			}
			active = next
		}
	}
}

// startRuntime starts debug servers and the HUD for cfg.
// Params: ctx root lifecycle context; cfg validated config; deps dependency set;
// session logger to reuse (nil opens and owns a new one).
// Returns: active runtime, or startup error after unwinding everything started so far.
func startRuntime(ctx context.Context, cfg *config.Config, deps runDeps, session *logSession) (_ *activeRuntime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("runtime context canceled: %w", ctx.Err())
	}

	owned := session == nil
	if owned {
		session, err = openLogSession(cfg, deps)
		if err != nil {
			return nil, err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &activeRuntime{cfg: cfg, session: session, cancel: cancel}
	defer func() {
		if err == nil {
			return
		}
		r.halt()
		if owned {
			session.release()
		}
	}()

	for _, server := range deps.servers {
		stop, startErr := server.start(runCtx, cfg, session.logger)
		if startErr != nil {
			return nil, fmt.Errorf("start %s: %w", server.name, startErr)
		}
		r.stops = append(r.stops, stop)
	}

	runner, err := deps.newHUD(runCtx, cfg, session.logger)
	if err != nil {
		return nil, fmt.Errorf("build hud: %w", err)
	}

	r.done = make(chan error, 1)
	go func() {
		r.done <- runner.Run(runCtx)
	}()

	logStartup(session.logger, cfg)
	return r, nil
}

// openLogSession builds the logger configured by cfg.
// Params: cfg config carrying the log section; deps logger factory.
// Returns: session or logger init error.
func openLogSession(cfg *config.Config, deps runDeps) (*logSession, error) {
	logger, closeFn, err := deps.newLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &logSession{logger: logger, close: closeFn}, nil
}

// reload swaps r for a runtime built from the config at path.
// A config that fails to load leaves r running; one that fails to start is rolled back to r's config.
// Params: ctx root lifecycle context; path config path; deps dependency set.
// Returns: runtime to keep (nil when rollback failed) and the reload error, if any.
func (r *activeRuntime) reload(ctx context.Context, path string, deps runDeps) (*activeRuntime, error) {
	logger := r.session.logger
	logger.Info("config reload requested")

	nextCfg, err := deps.loadConfig(path)
	if err != nil {
		logger.Error("config reload validation failed", slog.String("error", err.Error()))
		return r, fmt.Errorf("reload config: %w", err)
	}
	nextSession, err := openLogSession(nextCfg, deps)
	if err != nil {
		logger.Error("config reload logger init failed", slog.String("error", err.Error()))
		return r, fmt.Errorf("reload: %w", err)
	}

	r.halt()
	next, startErr := startRuntime(ctx, nextCfg, deps, nextSession)
	if startErr == nil {
		r.session.release()
		nextSession.logger.Info("config reload applied")
		return next, nil
	}
	nextSession.release()

	if ctx.Err() != nil {
		logger.Info("config reload interrupted by shutdown")
		return r, nil
	}

	logger.Error("config reload apply failed, restoring previous runtime", slog.String("error", startErr.Error()))
	restored, rollbackErr := startRuntime(ctx, r.cfg, deps, r.session)
	if rollbackErr != nil {
		r.session.release()
		return nil, fmt.Errorf("apply reload: %w; rollback failed: %w", startErr, rollbackErr)
	}
	logger.Warn("config reload rejected, previous runtime restored", slog.String("error", startErr.Error()))
	return restored, fmt.Errorf("apply reload: %w", startErr)
}

// finish halts the runtime, releases its logger, and maps the stop cause to Run's result.
// Params: ctx root lifecycle context; runErr frame loop result (nil when stopping on ctx).
// Returns: nil on shutdown, wrapped loop error otherwise.
func (r *activeRuntime) finish(ctx context.Context, runErr error) error {
	r.halt()
	defer r.session.release()

	if ctx.Err() != nil {
		r.session.logger.Info("hud stopped", slog.String("reason", ctx.Err().Error()))
		return nil
	}
	if runErr == nil {
		runErr = errRunnerExited
	}
	r.session.logger.Error("frame loop stopped unexpectedly", slog.String("error", runErr.Error()))
	return fmt.Errorf("run hud: %w", runErr)
}

// halt stops the HUD, then the debug servers in reverse start order. The logger stays open.
func (r *activeRuntime) halt() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.done != nil {
		<-r.done
		r.done = nil
	}
	for i := len(r.stops) - 1; i >= 0; i-- {
		r.stops[i]()
	}
	r.stops = nil
}

// logStartup emits initial startup metadata.
// Params: logger is initialized slog logger; cfg is validated runtime config.
// Returns: none.
func logStartup(logger *slog.Logger, cfg *config.Config) {
	logger.Info(
		"hud started",
		slog.String("host", cfg.Global.Host),
		slog.Bool("overlay", cfg.Overlay.Enabled),
		slog.Int("fps", cfg.Overlay.FPS),
		slog.Bool("remote_write", cfg.RemoteWrite.Enabled),
		slog.Bool("connection", cfg.Connection.Enabled),
		slog.Bool("pprof", cfg.Pprof.Enabled),
		slog.Bool("statsview", cfg.Statsview.Enabled),
	)
}
