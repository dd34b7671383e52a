package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sigplay/sigplay/internal/spectrum"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SIGPLAY_MUSIC_DIR", "")
	t.Setenv("SIGPLAY_CAPTURE", "")
	t.Setenv("SIGPLAY_AGENT_SCRIPT", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	vc, err := cfg.VisualizerConfig()
	if err != nil {
		t.Fatalf("VisualizerConfig returned error: %v", err)
	}
	if diff := cmp.Diff(spectrum.DefaultVisualizerConfig(), vc); diff != "" {
		t.Fatalf("unexpected visualizer config (-want +got):\n%s", diff)
	}
	if cfg.Capture.Source != CaptureTap {
		t.Fatalf("expected tap capture by default, got %q", cfg.Capture.Source)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
music_dir = "/srv/music"
log_level = "debug"

[capture]
source = "none"
timeout_ms = 40

[visualizer]
fps = 30
bar_count = 80
smoothing = 0.5

[agent]
runner = "python3"
timeout_sec = 60
`)
	t.Setenv("SIGPLAY_MUSIC_DIR", "/mnt/other")
	t.Setenv("SIGPLAY_CAPTURE", "LOOPBACK")
	t.Setenv("SIGPLAY_AGENT_SCRIPT", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MusicDir != "/mnt/other" {
		t.Fatalf("expected env to override music dir, got %q", cfg.MusicDir)
	}
	if cfg.Capture.Source != CaptureLoopback {
		t.Fatalf("expected env capture source, got %q", cfg.Capture.Source)
	}
	if cfg.LogLevel != "debug" || cfg.Visualizer.FPS != 30 || cfg.Visualizer.BarCount != 80 {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.Visualizer.MaxBarHeight != 20 {
		t.Fatalf("expected unset keys to keep defaults, got %d", cfg.Visualizer.MaxBarHeight)
	}
	if got := cfg.AnalyzerOptions().CaptureTimeout; got != 40*time.Millisecond {
		t.Fatalf("expected 40ms capture timeout, got %v", got)
	}
	if diff := cmp.Diff([]string{"python3"}, cfg.AgentCommand()); diff != "" {
		t.Fatalf("unexpected agent command (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SIGPLAY_CAPTURE", "")
	cases := map[string]string{
		"fps":     "[visualizer]\nfps = 60\n",
		"bars":    "[visualizer]\nbar_count = 5\n",
		"gap":     "[visualizer]\nmid_range = [300.0, 4000.0]\n",
		"source":  "[capture]\nsource = \"mic\"\n",
		"unknown": "colour = \"red\"\n",
		"syntax":  "music_dir = \n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	_, err := Load(writeConfig(t, "[visualizer]\nsmoothing = 0.0\n"))
	if !errors.Is(err, spectrum.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/Music"); got != filepath.Join(home, "Music") {
		t.Fatalf("expected expanded path, got %q", got)
	}
	if got := expandHome("/abs"); got != "/abs" {
		t.Fatalf("expected absolute path unchanged, got %q", got)
	}
}
