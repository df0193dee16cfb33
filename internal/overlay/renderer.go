// Package overlay draws the per-frame report into a fixed terminal region.
package overlay

import (
	"bytes"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"perfhud/internal/stats"
)

const (
	escSaveCursor    = "\x1b7"
	escRestoreCursor = "\x1b8"
	escBold          = "\x1b[1m"
	escReset         = "\x1b[0m"
)

// Rect is the drawing region in terminal cells, zero-based.
type Rect struct {
	Column int
	Row    int
	Width  int
	Height int
}

// DefaultRect is the region used when the configured one is empty.
var DefaultRect = Rect{Column: 0, Row: 0, Width: 80, Height: 40}

// Renderer draws reports with ANSI cursor addressing.
// Params: created with NewRenderer.
// Returns: frame-loop renderer; Draw never fails.
type Renderer struct {
	out    io.Writer
	rect   Rect
	logger *slog.Logger

	mu        sync.Mutex
	offset    int
	lines     int
	drawn     bool
	writeErrs int
	buf       bytes.Buffer
}

// NewRenderer creates a renderer.
// Params: out terminal writer; rect region (non-positive size uses DefaultRect); logger for write errors.
// Returns: renderer instance.
func NewRenderer(out io.Writer, rect Rect, logger *slog.Logger) *Renderer {
	if rect.Width <= 0 || rect.Height <= 0 {
		rect = DefaultRect
	}
	rect.Column = max(rect.Column, 0)
	rect.Row = max(rect.Row, 0)
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renderer{out: out, rect: rect, logger: logger}
}

// Rect returns the drawing region.
func (r *Renderer) Rect() Rect {
	return r.rect
}

// ScrollBy moves the first visible line by delta, clamped to the report length.
// Before the first report only the lower bound applies; the next Draw clamps the rest.
// Params: delta lines (negative scrolls up).
// Returns: none.
func (r *Renderer) ScrollBy(delta int) {
	r.mu.Lock()
	if r.drawn {
		r.offset = clampOffset(r.offset+delta, r.lines, r.rect.Height)
	} else {
		r.offset = max(r.offset+delta, 0)
	}
	r.mu.Unlock()
}

// Offset returns the current scroll offset.
func (r *Renderer) Offset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}

// WriteErrors returns how many frames failed to write.
func (r *Renderer) WriteErrors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeErrs
}

// Draw paints report into the region; a nil report clears it.
// Params: report frame snapshot or nil.
// Returns: none; write failures are counted and logged once.
func (r *Renderer) Draw(report *stats.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lines []string
	if report != nil {
		lines = strings.Split(strings.TrimRight(report.String(), "\n"), "\n")
	}
	r.lines = len(lines)
	r.drawn = true
	r.offset = clampOffset(r.offset, r.lines, r.rect.Height)

	r.buf.Reset()
	r.buf.WriteString(escSaveCursor)
	for i := 0; i < r.rect.Height; i++ {
		text := ""
		if idx := r.offset + i; idx < len(lines) {
			text = lines[idx]
		}
		r.writeRow(i, text)
	}
	r.buf.WriteString(escRestoreCursor)

	if _, err := r.out.Write(r.buf.Bytes()); err != nil {
		r.writeErrs++
		if r.writeErrs == 1 {
			r.logger.Warn("overlay write failed", slog.String("error", err.Error()))
		}
	}
}

func (r *Renderer) writeRow(i int, text string) {
	r.buf.WriteString("\x1b[")
	r.buf.WriteString(strconv.Itoa(r.rect.Row + i + 1))
	r.buf.WriteByte(';')
	r.buf.WriteString(strconv.Itoa(r.rect.Column + 1))
	r.buf.WriteByte('H')

	text = fit(strings.ReplaceAll(text, "\t", " "), r.rect.Width)
	if strings.TrimSpace(text) != "" {
		r.buf.WriteString(escBold)
		r.buf.WriteString(text)
		r.buf.WriteString(escReset)
		return
	}
	r.buf.WriteString(text)
}

// fit clips or pads text to exactly width runes.
func fit(text string, width int) string {
	n := utf8.RuneCountInString(text)
	if n == width {
		return text
	}
	if n < width {
		return text + strings.Repeat(" ", width-n)
	}
	cut := 0
	for i := 0; i < width; i++ {
		_, size := utf8.DecodeRuneInString(text[cut:])
		cut += size
	}
	return text[:cut]
}

func clampOffset(offset, lines, height int) int {
	limit := max(lines-height, 0)
	return min(max(offset, 0), limit)
}
