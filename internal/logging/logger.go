package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"perfhud/internal/config"
)

const (
	ansiReset   = "\x1b[0m"
	ansiGray    = "\x1b[90m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"

	// LevelPanic sits above error; slog has no native panic level.
	LevelPanic = slog.LevelError + 4
)

var (
	quotedPattern = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	ipPattern     = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b`)
	numberPattern = regexp.MustCompile(`\b-?\d+(?:\.\d+)?(?:ns|us|µs|ms|s|m|h)?\b`)
)

// New builds the process logger from console and file sinks.
// Params: cfg logging section with per-sink level and format.
// Returns: logger, close callback for file resources, and init error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	handlers := make([]slog.Handler, 0, 2)
	closers := make([]io.Closer, 0, 1)

	if cfg.Console.Enabled {
		handler, err := newHandler(os.Stderr, cfg.Console, true)
		if err != nil {
			return nil, nil, fmt.Errorf("log.console: %w", err)
		}
		handlers = append(handlers, handler)
	}

	if cfg.File.Enabled {
		if dir := filepath.Dir(cfg.File.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create log dir %q: %w", dir, err)
			}
		}
		file, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", cfg.File.Path, err)
		}
		handler, err := newHandler(file, cfg.File, false)
		if err != nil {
			_ = file.Close()
			return nil, nil, fmt.Errorf("log.file: %w", err)
		}
		handlers = append(handlers, handler)
		closers = append(closers, file)
	}

	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			for _, closer := range closers {
				_ = closer.Close()
			}
		})
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closeFn, nil
	case 1:
		return slog.New(handlers[0]), closeFn, nil
	default:
		return slog.New(&fanoutHandler{handlers: handlers}), closeFn, nil
	}
}

// newHandler creates one sink handler.
// Params: dst output; sink options; colored enables ANSI colors for line format.
// Returns: slog handler or config error.
func newHandler(dst io.Writer, sink config.LogSinkConfig, colored bool) (slog.Handler, error) {
	level, err := parseLevel(sink.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "json":
		return slog.NewJSONHandler(dst, opts), nil
	case "", "line":
		if colored {
			dst = &colorLineWriter{dst: dst}
		}
		return slog.NewTextHandler(dst, opts), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", sink.Format)
	}
}

// parseLevel maps config level names to slog levels.
// Params: level lower-case name.
// Returns: slog level or error for unknown names.
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "panic":
		return LevelPanic, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported level %q", level)
	}
}

// fanoutHandler forwards each record to every enabled handler.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

// colorLineWriter colors text-handler lines by level and highlights value tokens.
// Params: dst receives colored output.
// Returns: io.Writer implementation.
type colorLineWriter struct {
	mu  sync.Mutex
	dst io.Writer
}

// Write colors each line of p; lines without a known level pass through unchanged.
// Params: p one or more log lines.
// Returns: len(p) on success or the destination write error.
func (w *colorLineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out bytes.Buffer
	rest := p
	for len(rest) > 0 {
		line := rest
		newline := false
		if idx := bytes.IndexByte(rest, '\n'); idx >= 0 {
			line = rest[:idx]
			rest = rest[idx+1:]
			newline = true
		} else {
			rest = nil
		}

		base := levelColor(line)
		if base == "" {
			out.Write(line)
		} else {
			out.WriteString(base)
			out.WriteString(colorize(string(line), base))
			out.WriteString(ansiReset)
		}
		if newline {
			out.WriteByte('\n')
		}
	}

	if _, err := w.dst.Write(out.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// levelColor picks the base color from the level attribute.
func levelColor(line []byte) string {
	switch {
	case bytes.Contains(line, []byte("level=DEBUG")):
		return ansiGray
	case bytes.Contains(line, []byte("level=INFO")):
		return ansiBlue
	case bytes.Contains(line, []byte("level=WARN")):
		return ansiMagenta
	case bytes.Contains(line, []byte("level=ERROR")):
		return ansiRed
	default:
		return ""
	}
}

// colorize highlights quoted strings, IPs, and numbers outside quotes.
func colorize(line, base string) string {
	var builder strings.Builder
	last := 0
	for _, loc := range quotedPattern.FindAllStringIndex(line, -1) {
		builder.WriteString(colorizeBare(line[last:loc[0]], base))
		builder.WriteString(ansiGreen + line[loc[0]:loc[1]] + ansiReset + base)
		last = loc[1]
	}
	builder.WriteString(colorizeBare(line[last:], base))
	return builder.String()
}

// colorizeBare highlights IPs first, then numbers in the remaining text.
func colorizeBare(text, base string) string {
	var builder strings.Builder
	last := 0
	for _, loc := range ipPattern.FindAllStringIndex(text, -1) {
		builder.WriteString(colorizeNumbers(text[last:loc[0]], base))
		builder.WriteString(ansiCyan + text[loc[0]:loc[1]] + ansiReset + base)
		last = loc[1]
	}
	builder.WriteString(colorizeNumbers(text[last:], base))
	return builder.String()
}

func colorizeNumbers(text, base string) string {
	return numberPattern.ReplaceAllStringFunc(text, func(token string) string {
		return ansiYellow + token + ansiReset + base
	})
}
