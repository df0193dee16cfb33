package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"

	"perfhud/internal/config"
)

const statsviewPath = "/debug/statsview"

// startStatsviewServer starts the optional runtime charts dashboard.
// Params: ctx controls lifecycle; cfg provides enabled/listen options; logger reports runtime events.
// Returns: stop function (idempotent) and startup error.
func startStatsviewServer(ctx context.Context, cfg config.StatsviewConfig, logger *slog.Logger) (func(), error) {
	if !cfg.Enabled {
		return func() {}, nil
	}

	viewer.SetConfiguration(viewer.WithAddr(cfg.Listen))
	mgr := statsview.New()

	var once sync.Once
	stop := func() {
		once.Do(mgr.Stop)
	}

	context.AfterFunc(ctx, stop)

	go func() {
		if err := mgr.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("statsview server failed", slog.String("addr", cfg.Listen), slog.String("error", err.Error()))
		}
	}()

	logger.Info("statsview server started", slog.String("addr", cfg.Listen), slog.String("path", statsviewPath))
	return stop, nil
}
