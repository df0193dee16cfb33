package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"perfhud/internal/config"
)

// TestLoad_ExpandsEnvAndAppliesDefaults verifies env expansion and defaulting.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_HUD_HOST", "device-7")

	path := writeConfig(t, `
[global]
host = "${TEST_HUD_HOST}"
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Global.Host != "device-7" {
		t.Fatalf("unexpected host: %q", cfg.Global.Host)
	}
	if !cfg.Log.Console.Enabled {
		t.Fatalf("expected console logging to be enabled by default")
	}
	if cfg.Log.Console.Format != "line" || cfg.Log.File.Format != "json" {
		t.Fatalf("unexpected log formats: %q/%q", cfg.Log.Console.Format, cfg.Log.File.Format)
	}
	if got := cfg.Overlay.FPS; got != 10 {
		t.Fatalf("unexpected overlay.fps default: %d", got)
	}
	if cfg.Overlay.Width != 80 || cfg.Overlay.Height != 40 {
		t.Fatalf("unexpected overlay size default: %dx%d", cfg.Overlay.Width, cfg.Overlay.Height)
	}
	if got := cfg.Sampler.Window; got != 15 {
		t.Fatalf("unexpected sampler.window default: %d", got)
	}
	if got := cfg.Sampler.FrameHistory; got != 60 {
		t.Fatalf("unexpected sampler.frame_history default: %d", got)
	}
	if got := cfg.Platform.Memory; got != "auto" {
		t.Fatalf("unexpected platform.memory default: %q", got)
	}
	if got := cfg.Platform.MeminfoPath; got != "/proc/meminfo" {
		t.Fatalf("unexpected platform.meminfo_path default: %q", got)
	}
	if cfg.Export.TextPath != "available_stats.txt" || cfg.Export.JSONPath != "available_stats.json" {
		t.Fatalf("unexpected export paths: %q %q", cfg.Export.TextPath, cfg.Export.JSONPath)
	}
	if got := cfg.RemoteWrite.Send.Duration; got != 15*time.Second {
		t.Fatalf("unexpected remote_write.send default: %v", got)
	}
	if got := cfg.RemoteWrite.Prefix; got != "perfhud" {
		t.Fatalf("unexpected remote_write.prefix default: %q", got)
	}
	if cfg.Connection.Enabled || cfg.Connection.Listen != "" {
		t.Fatalf("connection must stay disabled without listen default")
	}
}

// TestLoad_EmptyHostUsesHostname verifies host fallback to the OS hostname.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_EmptyHostUsesHostname(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "[overlay]\nenabled = true\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Global.Host == "" {
		t.Fatalf("expected host default")
	}
	if !cfg.Overlay.Enabled {
		t.Fatalf("expected overlay enabled")
	}
}

// TestLoad_ConfigDirMergesTomlFiles verifies config directory loading and file-order merge.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ConfigDirMergesTomlFiles(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"00-global.toml": `
[global]
host = "device-1"
`,
		"10-remote.toml": `
[remote_write]
enabled = true
url = "http://127.0.0.1:9090/api/v1/write"
percentiles = [50, 99]

[remote_write.labels]
build = "nightly"
`,
		"20-overlay.toml": `
[overlay]
enabled = true
fps = 30
`,
	})

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load config dir: %v", err)
	}

	if cfg.Global.Host != "device-1" {
		t.Fatalf("unexpected host: %q", cfg.Global.Host)
	}
	if !cfg.RemoteWrite.Enabled || cfg.RemoteWrite.Labels["build"] != "nightly" {
		t.Fatalf("unexpected remote_write: %+v", cfg.RemoteWrite)
	}
	if len(cfg.RemoteWrite.Percentiles) != 2 {
		t.Fatalf("unexpected percentiles: %v", cfg.RemoteWrite.Percentiles)
	}
	if cfg.Overlay.FPS != 30 {
		t.Fatalf("unexpected fps: %d", cfg.Overlay.FPS)
	}
}

// TestLoad_ConfigDirRejectsWithoutToml verifies config dir validation on empty/non-toml-only directories.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ConfigDirRejectsWithoutToml(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a config"), 0o644); err != nil {
		t.Fatalf("write non-toml file: %v", err)
	}

	_, err := config.Load(dir)
	if err == nil {
		t.Fatalf("expected error for config dir without *.toml")
	}
	if !strings.Contains(err.Error(), "no *.toml files") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestLoad_ConfigDirIgnoresNonToml verifies non-toml files are ignored when valid toml files exist.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ConfigDirIgnoresNonToml(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"00-global.toml": `
[global]
host = "device-1"
`,
		"notes.md": `
this file should be ignored by config loader
`,
	})

	if _, err := config.Load(dir); err != nil {
		t.Fatalf("expected config dir with non-toml extras to load: %v", err)
	}
}

// TestLoad_RejectsInvalidValues verifies validation of out-of-range settings.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"overlay.fps":                    "[overlay]\nfps = 500\n",
		"overlay.width":                  "[overlay]\nwidth = -1\n",
		"overlay.scroll":                 "[overlay]\nscroll = -2\n",
		"sampler.window":                 "[sampler]\nwindow = -3\n",
		"platform.memory":                "[platform]\nmemory = \"jni\"\n",
		"platform.low_memory_threshold":  "[platform]\nlow_memory_threshold = -1\n",
		"remote_write.url":               "[remote_write]\nenabled = true\n",
		"remote_write.percentiles":       "[remote_write]\npercentiles = [0]\n",
		"log.console.level":              "[log.console]\nlevel = \"trace\"\n",
		"log.file.path":                  "[log.file]\nenabled = true\n",
		"connection.listen must be host": "[connection]\nenabled = true\nlisten = \"invalid\"\n",
		"statsview.listen must be host":  "[statsview]\nenabled = true\nlisten = \"nope\"\n",
	}

	for want, body := range cases {
		_, err := config.Load(writeConfig(t, body))
		if err == nil {
			t.Fatalf("expected validation error for %q", want)
		}
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}

// TestLoad_RejectsBadDuration verifies duration parse errors surface.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_RejectsBadDuration(t *testing.T) {
	_, err := config.Load(writeConfig(t, "[remote_write]\nsend = \"soon\"\n"))
	if err == nil {
		t.Fatalf("expected duration parse error")
	}
}

// TestLoad_ParsesListenerDefaults verifies listen defaults for debug and connection servers.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_ParsesListenerDefaults(t *testing.T) {
	path := writeConfig(t, `
[pprof]
enabled = true

[statsview]
enabled = true

[connection]
enabled = true
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if got := cfg.Pprof.Listen; got != "127.0.0.1:6060" {
		t.Fatalf("unexpected pprof.listen default: %q", got)
	}
	if got := cfg.Statsview.Listen; got != "127.0.0.1:18066" {
		t.Fatalf("unexpected statsview.listen default: %q", got)
	}
	if got := cfg.Connection.Listen; got != "127.0.0.1:34999" {
		t.Fatalf("unexpected connection.listen default: %q", got)
	}
}

// TestLoad_RejectsInvalidPprofListen verifies pprof listen validation.
// Params: testing.T for assertions.
// Returns: none.
func TestLoad_RejectsInvalidPprofListen(t *testing.T) {
	path := writeConfig(t, `
[pprof]
enabled = true
listen = "invalid"
`)

	_, err := config.Load(path)
	if err == nil {
		t.Fatalf("expected validation error for invalid pprof.listen")
	}
}

// TestDefault_IsValid verifies the built-in configuration enables the overlay.
// Params: testing.T for assertions.
// Returns: none.
func TestDefault_IsValid(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if !cfg.Overlay.Enabled || cfg.RemoteWrite.Enabled {
		t.Fatalf("unexpected default sections: overlay=%v remote_write=%v", cfg.Overlay.Enabled, cfg.RemoteWrite.Enabled)
	}
}

// writeConfig creates a temp TOML config for tests.
// Params: t test handle; body TOML content.
// Returns: absolute path to temp config.
func writeConfig(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return path
}

// writeConfigDir creates a temp config directory populated with provided files.
// Params: t test handle; files map[name]body.
// Returns: absolute directory path.
func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write config file %q: %v", name, err)
		}
	}

	return dir
}
