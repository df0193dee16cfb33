package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultLogLevel          = "info"
	defaultLogFormat         = "line"
	defaultPprofListen       = "127.0.0.1:6060"
	defaultStatsviewListen   = "127.0.0.1:18066"
	defaultConnectionListen  = "127.0.0.1:34999"
	defaultOverlayFPS        = 10
	defaultOverlayWidth      = 80
	defaultOverlayHeight     = 40
	defaultSamplerWindow     = 15
	defaultFrameHistory      = 60
	defaultMemoryMode        = "auto"
	defaultMeminfoPath       = "/proc/meminfo"
	defaultExportTextPath    = "available_stats.txt"
	defaultExportJSONPath    = "available_stats.json"
	defaultRemoteWriteSend   = 15 * time.Second
	defaultRemoteWriteTO     = 10 * time.Second
	defaultRemoteWritePrefix = "perfhud"
	defaultRemoteWriteQueue  = 1024

	maxOverlayFPS = 240
)

// Duration wraps time.Duration for TOML parsing.
// Params: text duration string (e.g. "5s", "1m").
// Returns: parse error on invalid duration.
type Duration struct {
	time.Duration
}

// UnmarshalText parses TOML duration values.
// Params: text is raw duration bytes from TOML.
// Returns: error when value is not a valid Go duration.
func (d *Duration) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		d.Duration = 0
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value, err)
	}

	d.Duration = parsed
	return nil
}

// Config represents the root HUD configuration.
// Params: TOML document sections.
// Returns: validated runtime configuration.
type Config struct {
	Global      GlobalConfig      `toml:"global"`
	Log         LogConfig         `toml:"log"`
	Pprof       PprofConfig       `toml:"pprof"`
	Statsview   StatsviewConfig   `toml:"statsview"`
	Overlay     OverlayConfig     `toml:"overlay"`
	Sampler     SamplerConfig     `toml:"sampler"`
	Platform    PlatformConfig    `toml:"platform"`
	Export      ExportConfig      `toml:"export"`
	RemoteWrite RemoteWriteConfig `toml:"remote_write"`
	Connection  ConnectionConfig  `toml:"connection"`
}

// GlobalConfig contains shared identity tags.
// Params: configured host name (hostname when empty).
// Returns: global settings.
type GlobalConfig struct {
	Host string `toml:"host"`
}

// LogConfig contains console/file logging configuration.
// Params: console and file sink options.
// Returns: logger sink settings.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink options from TOML.
// Returns: sink setup.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// PprofConfig defines optional runtime pprof HTTP endpoint.
// Params: enabled flag and listen address in host:port format.
// Returns: pprof runtime settings.
type PprofConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// StatsviewConfig defines the optional runtime charts dashboard.
// Params: enabled flag and listen address in host:port format.
// Returns: dashboard settings.
type StatsviewConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// OverlayConfig positions the on-screen text area.
// Params: frame rate, terminal cell rectangle, and the first visible report line.
// Returns: overlay settings.
type OverlayConfig struct {
	Enabled bool `toml:"enabled"`
	FPS     int  `toml:"fps"`
	Column  int  `toml:"column"`
	Row     int  `toml:"row"`
	Width   int  `toml:"width"`
	Height  int  `toml:"height"`
	Scroll  int  `toml:"scroll"`
}

// SamplerConfig controls counter sampling.
// Params: moving-average window, frame-timing history, optional counter groups.
// Returns: sampler settings.
type SamplerConfig struct {
	Window       int  `toml:"window"`
	FrameHistory int  `toml:"frame_history"`
	Render       bool `toml:"render"`
	Kernel       bool `toml:"kernel"`
	IO           bool `toml:"io"`
}

// PlatformConfig selects platform providers.
// Params: memory provider mode and optional platform readings.
// Returns: platform settings.
type PlatformConfig struct {
	Memory              string `toml:"memory"`
	LowMemoryThreshold  int64  `toml:"low_memory_threshold"`
	IncludeMeminfo      bool   `toml:"include_meminfo"`
	MeminfoPath         string `toml:"meminfo_path"`
	GraphicsMemory      int64  `toml:"graphics_memory"`
	AdaptivePerformance bool   `toml:"adaptive_performance"`
}

// ExportConfig controls the available-counter export files.
// Params: output paths, startup export flag, optional name filter.
// Returns: export settings.
type ExportConfig struct {
	TextPath string   `toml:"text_path"`
	JSONPath string   `toml:"json_path"`
	OnStart  bool     `toml:"on_start"`
	Include  []string `toml:"include"`
}

// RemoteWriteConfig controls the Prometheus remote-write sink.
// Params: endpoint, schedule, aggregation and filtering options.
// Returns: remote-write settings.
type RemoteWriteConfig struct {
	Enabled     bool              `toml:"enabled"`
	URL         string            `toml:"url"`
	Send        Duration          `toml:"send"`
	Timeout     Duration          `toml:"timeout"`
	Percentiles []int             `toml:"percentiles"`
	Prefix      string            `toml:"prefix"`
	Labels      map[string]string `toml:"labels"`
	Filter      []string          `toml:"filter"`
	Drop        []string          `toml:"drop"`
	DropWindow  []string          `toml:"drop_window"`
	MaxPending  int               `toml:"max_pending"`
}

// ConnectionConfig controls the editor connection listener.
// Params: enabled flag and listen address in host:port format.
// Returns: connection settings.
type ConnectionConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Load reads TOML config, expands env vars, applies defaults, and validates.
// Params: path to TOML file or directory with *.toml files.
// Returns: parsed config or error.
func Load(path string) (*Config, error) {
	raw, err := readConfigSource(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("decode TOML %q: %w", path, err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a validated configuration without reading any file.
// Params: none.
// Returns: default config or hostname resolution error.
func Default() (*Config, error) {
	var cfg Config
	cfg.Overlay.Enabled = true
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readConfigSource reads one config file or merges a config directory.
// Params: path to file or directory.
// Returns: raw TOML bytes or read error.
func readConfigSource(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %q: %w", path, err)
	}

	if !info.IsDir() {
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", path, readErr)
		}
		return raw, nil
	}

	return readConfigDir(path)
}

// readConfigDir concatenates *.toml files of a directory in name order.
// Params: path to config directory.
// Returns: merged TOML bytes or error when no files match.
func readConfigDir(path string) ([]byte, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %q: %w", path, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".toml") {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("read config dir %q: no *.toml files", path)
	}

	var builder strings.Builder
	for _, name := range files {
		filePath := filepath.Join(path, name)
		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("read config %q: %w", filePath, readErr)
		}
		builder.Write(raw)
		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			builder.WriteByte('\n')
		}
		builder.WriteByte('\n')
	}

	return []byte(builder.String()), nil
}

// applyDefaults fills optional fields.
// Params: receiver config pointer.
// Returns: error when hostname cannot be resolved.
func (c *Config) applyDefaults() error {
	c.Log.Console.Level = lowerOrDefault(c.Log.Console.Level, defaultLogLevel)
	c.Log.Console.Format = lowerOrDefault(c.Log.Console.Format, defaultLogFormat)
	c.Log.File.Level = lowerOrDefault(c.Log.File.Level, defaultLogLevel)
	c.Log.File.Format = lowerOrDefault(c.Log.File.Format, "json")

	if !c.Log.Console.Enabled && !c.Log.File.Enabled {
		c.Log.Console.Enabled = true
	}

	if strings.TrimSpace(c.Global.Host) == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
		c.Global.Host = host
	}

	if c.Pprof.Enabled && strings.TrimSpace(c.Pprof.Listen) == "" {
		c.Pprof.Listen = defaultPprofListen
	}
	if c.Statsview.Enabled && strings.TrimSpace(c.Statsview.Listen) == "" {
		c.Statsview.Listen = defaultStatsviewListen
	}
	if c.Connection.Enabled && strings.TrimSpace(c.Connection.Listen) == "" {
		c.Connection.Listen = defaultConnectionListen
	}

	if c.Overlay.FPS == 0 {
		c.Overlay.FPS = defaultOverlayFPS
	}
	if c.Overlay.Width == 0 {
		c.Overlay.Width = defaultOverlayWidth
	}
	if c.Overlay.Height == 0 {
		c.Overlay.Height = defaultOverlayHeight
	}

	if c.Sampler.Window == 0 {
		c.Sampler.Window = defaultSamplerWindow
	}
	if c.Sampler.FrameHistory == 0 {
		c.Sampler.FrameHistory = defaultFrameHistory
	}

	c.Platform.Memory = lowerOrDefault(c.Platform.Memory, defaultMemoryMode)
	if strings.TrimSpace(c.Platform.MeminfoPath) == "" {
		c.Platform.MeminfoPath = defaultMeminfoPath
	}

	if strings.TrimSpace(c.Export.TextPath) == "" {
		c.Export.TextPath = defaultExportTextPath
	}
	if strings.TrimSpace(c.Export.JSONPath) == "" {
		c.Export.JSONPath = defaultExportJSONPath
	}

	if c.RemoteWrite.Send.Duration == 0 {
		c.RemoteWrite.Send.Duration = defaultRemoteWriteSend
	}
	if c.RemoteWrite.Timeout.Duration == 0 {
		c.RemoteWrite.Timeout.Duration = defaultRemoteWriteTO
	}
	if strings.TrimSpace(c.RemoteWrite.Prefix) == "" {
		c.RemoteWrite.Prefix = defaultRemoteWritePrefix
	}
	if c.RemoteWrite.MaxPending == 0 {
		c.RemoteWrite.MaxPending = defaultRemoteWriteQueue
	}

	return nil
}

// validate checks config consistency and required fields.
// Params: receiver config pointer.
// Returns: validation error for invalid or incomplete config.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Global.Host) == "" {
		return fmt.Errorf("global.host resolved to empty value")
	}

	if err := validateSink("log.console", c.Log.Console, false); err != nil {
		return err
	}
	if err := validateSink("log.file", c.Log.File, true); err != nil {
		return err
	}
	if err := validateListen("pprof", c.Pprof.Enabled, c.Pprof.Listen); err != nil {
		return err
	}
	if err := validateListen("statsview", c.Statsview.Enabled, c.Statsview.Listen); err != nil {
		return err
	}
	if err := validateListen("connection", c.Connection.Enabled, c.Connection.Listen); err != nil {
		return err
	}
	if err := validateOverlay("overlay", c.Overlay); err != nil {
		return err
	}

	if c.Sampler.Window < 1 {
		return fmt.Errorf("sampler.window must be > 0")
	}
	if c.Sampler.FrameHistory < 1 {
		return fmt.Errorf("sampler.frame_history must be > 0")
	}

	switch c.Platform.Memory {
	case "auto", "chain", "unsupported":
	default:
		return fmt.Errorf("platform.memory: unsupported value %q", c.Platform.Memory)
	}
	if c.Platform.LowMemoryThreshold < 0 {
		return fmt.Errorf("platform.low_memory_threshold cannot be negative")
	}
	if c.Platform.GraphicsMemory < 0 {
		return fmt.Errorf("platform.graphics_memory cannot be negative")
	}

	if err := validateRemoteWrite("remote_write", c.RemoteWrite); err != nil {
		return err
	}

	return nil
}

// validateSink validates one logging sink configuration.
// Params: name is sink path for errors; sink is sink config; requirePath means path required when enabled.
// Returns: validation error or nil.
func validateSink(name string, sink LogSinkConfig, requirePath bool) error {
	if sink.Enabled && requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required when sink is enabled", name)
	}

	if err := validateLogLevel(sink.Level); err != nil {
		return fmt.Errorf("%s.level: %w", name, err)
	}
	if err := validateLogFormat(sink.Format); err != nil {
		return fmt.Errorf("%s.format: %w", name, err)
	}

	return nil
}

// validateLogLevel validates known log levels.
// Params: level is lower-case level name.
// Returns: error when level is unsupported.
func validateLogLevel(level string) error {
	switch strings.TrimSpace(strings.ToLower(level)) {
	case "info", "warn", "error", "panic", "debug":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", level)
	}
}

// validateLogFormat validates supported sink formats.
// Params: format is lower-case format name.
// Returns: error when format is unsupported.
func validateLogFormat(format string) error {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "line", "json":
		return nil
	default:
		return fmt.Errorf("unsupported value %q", format)
	}
}

// validateListen validates an optional host:port listener.
// Params: path is config path prefix; enabled section flag; listen address.
// Returns: validation error for invalid listen endpoint.
func validateListen(path string, enabled bool, listen string) error {
	if !enabled {
		return nil
	}
	if strings.TrimSpace(listen) == "" {
		return fmt.Errorf("%s.listen cannot be empty when enabled", path)
	}
	if _, _, err := net.SplitHostPort(listen); err != nil {
		return fmt.Errorf("%s.listen must be host:port: %w", path, err)
	}
	return nil
}

// validateOverlay checks frame rate and rectangle bounds.
// Params: path is config path prefix; cfg overlay section.
// Returns: validation error or nil.
func validateOverlay(path string, cfg OverlayConfig) error {
	if cfg.FPS < 1 || cfg.FPS > maxOverlayFPS {
		return fmt.Errorf("%s.fps must be 1..%d", path, maxOverlayFPS)
	}
	if cfg.Column < 0 || cfg.Row < 0 {
		return fmt.Errorf("%s.column and %s.row cannot be negative", path, path)
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return fmt.Errorf("%s.width and %s.height must be > 0", path, path)
	}
	if cfg.Scroll < 0 {
		return fmt.Errorf("%s.scroll cannot be negative", path)
	}
	return nil
}

// validateRemoteWrite checks the remote-write section when enabled.
// Params: path is config path prefix; cfg remote-write section.
// Returns: validation error or nil.
func validateRemoteWrite(path string, cfg RemoteWriteConfig) error {
	if err := validatePercentilesField(path+".percentiles", cfg.Percentiles); err != nil {
		return err
	}
	if cfg.Send.Duration < 0 {
		return fmt.Errorf("%s.send cannot be negative", path)
	}
	if cfg.Timeout.Duration < 0 {
		return fmt.Errorf("%s.timeout cannot be negative", path)
	}
	if cfg.MaxPending < 0 {
		return fmt.Errorf("%s.max_pending cannot be negative", path)
	}
	if !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return fmt.Errorf("%s.url is required when enabled", path)
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s.url must be an absolute URL", path)
	}
	return nil
}

// validatePercentilesField validates percentile list values in range 1..100.
// Params: fieldPath full config field path; values percentile list.
// Returns: validation error or nil.
func validatePercentilesField(fieldPath string, values []int) error {
	for _, p := range values {
		if p <= 0 || p > 100 {
			return fmt.Errorf("%s contains invalid value %d (must be 1..100)", fieldPath, p)
		}
	}
	return nil
}

// lowerOrDefault returns a trimmed lower-case value or default fallback.
// Params: value to normalize; fallback value when empty.
// Returns: normalized value.
func lowerOrDefault(value, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return fallback
	}
	return normalized
}
