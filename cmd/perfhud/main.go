package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"perfhud/internal/app"
	"perfhud/internal/config"
	"perfhud/internal/logging"
)

const (
	exitCodeFailure = 1
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// run starts the HUD process.
// Params: none.
// Returns: process exit code.
func run() int {
	var (
		configPath string
		showInfo   bool
		exportOnly bool
	)

	flag.StringVar(&configPath, "config", "config.toml", "path to TOML config file or directory")
	flag.BoolVar(&showInfo, "v", false, "show build information")
	flag.BoolVar(&showInfo, "version", false, "show build information")
	flag.BoolVar(&exportOnly, "export", false, "write the available counter catalogue and exit")
	flag.Parse()

	if showInfo {
		fmt.Printf("perfhud version=%s commit=%s date=%s\n", version, commit, date)
		return 0
	}

	if exportOnly {
		return runExport(configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reloadSignal := make(chan os.Signal, 1)
	signal.Notify(reloadSignal, syscall.SIGHUP)
	defer signal.Stop(reloadSignal)

	reload := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reloadSignal:
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		}
	}()

	if err := app.Run(ctx, app.Runtime{ConfigPath: configPath, Reload: reload}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCodeFailure
	}

	return 0
}

// runExport writes the counter catalogue using the export section of the config.
// Params: configPath config file or directory; a missing default file falls back to built-in defaults.
// Returns: process exit code.
func runExport(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil && configPath == "config.toml" && errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		return exitCodeFailure
	}

	logger, closeLogger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: init logger: %v\n", err)
		return exitCodeFailure
	}
	defer closeLogger()

	if err := app.ExportCounters(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCodeFailure
	}
	return 0
}

func main() {
	os.Exit(run())
}
