// Package config loads sigplay settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sigplay/sigplay/internal/djagent"
	"github.com/sigplay/sigplay/internal/spectrum"
)

// Capture sources.
const (
	CaptureTap      = "tap"
	CaptureLoopback = "loopback"
	CaptureNone     = "none"
)

type Config struct {
	MusicDir   string     `toml:"music_dir"`
	LogFile    string     `toml:"log_file"`
	LogLevel   string     `toml:"log_level"`
	Capture    Capture    `toml:"capture"`
	Visualizer Visualizer `toml:"visualizer"`
	Agent      Agent      `toml:"agent"`
}

type Capture struct {
	Source     string `toml:"source"`
	Device     string `toml:"device"`
	SampleRate int    `toml:"sample_rate"`
	BufferSize int    `toml:"buffer_size"`
	TimeoutMS  int    `toml:"timeout_ms"`
}

type Visualizer struct {
	FPS          int        `toml:"fps"`
	BarCount     int        `toml:"bar_count"`
	MaxBarHeight int        `toml:"max_bar_height"`
	BassRange    [2]float64 `toml:"bass_range"`
	MidRange     [2]float64 `toml:"mid_range"`
	HighRange    [2]float64 `toml:"high_range"`
	Smoothing    float64    `toml:"smoothing"`
}

type Agent struct {
	Runner     string `toml:"runner"`
	Script     string `toml:"script"`
	TimeoutSec int    `toml:"timeout_sec"`
	OutputDir  string `toml:"output_dir"`
}

// Default returns the built-in settings.
func Default() Config {
	vc := spectrum.DefaultVisualizerConfig()
	return Config{
		MusicDir: defaultMusicDir(),
		LogFile:  defaultLogFile(),
		LogLevel: "info",
		Capture: Capture{
			Source:     CaptureTap,
			SampleRate: spectrum.DefaultSampleRate,
			BufferSize: spectrum.DefaultBufferSize,
			TimeoutMS:  int(spectrum.DefaultCaptureTimeout / time.Millisecond),
		},
		Visualizer: Visualizer{
			FPS:          vc.UpdateRateFPS,
			BarCount:     vc.BarCount,
			MaxBarHeight: vc.MaxBarHeight,
			BassRange:    [2]float64{vc.BassRange.Lo, vc.BassRange.Hi},
			MidRange:     [2]float64{vc.MidRange.Lo, vc.MidRange.Hi},
			HighRange:    [2]float64{vc.HighRange.Lo, vc.HighRange.Hi},
			Smoothing:    vc.SmoothingFactor,
		},
		Agent: Agent{
			Runner:     djagent.DefaultRunner + " run",
			Script:     "floppy_mix_agent.py",
			TimeoutSec: int(djagent.DefaultTimeout / time.Second),
			OutputDir:  djagent.DefaultOutputDir(),
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/sigplay/config.toml or the platform
// equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sigplay", "config.toml")
}

// Load applies the TOML file at path (if it exists) and then environment
// overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if keys := md.Undecoded(); len(keys) > 0 {
				return Config{}, fmt.Errorf("config %s: unknown keys %v", path, keys)
			}
		}
	}
	cfg.applyEnv()
	cfg.MusicDir = expandHome(cfg.MusicDir)
	cfg.LogFile = expandHome(cfg.LogFile)
	cfg.Agent.Script = expandHome(cfg.Agent.Script)
	cfg.Agent.OutputDir = expandHome(cfg.Agent.OutputDir)
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SIGPLAY_MUSIC_DIR"); v != "" {
		c.MusicDir = v
	}
	if v := os.Getenv("SIGPLAY_CAPTURE"); v != "" {
		c.Capture.Source = strings.ToLower(v)
	}
	if v := os.Getenv("SIGPLAY_AGENT_SCRIPT"); v != "" {
		c.Agent.Script = v
	}
}

func (c Config) validate() error {
	switch c.Capture.Source {
	case CaptureTap, CaptureLoopback, CaptureNone:
	default:
		return fmt.Errorf("capture.source must be %q, %q or %q, got %q", CaptureTap, CaptureLoopback, CaptureNone, c.Capture.Source)
	}
	if c.Capture.SampleRate <= 0 || c.Capture.BufferSize <= 0 {
		return fmt.Errorf("%w: capture sample_rate and buffer_size must be positive", spectrum.ErrInvalidConfig)
	}
	_, err := c.VisualizerConfig()
	return err
}

// VisualizerConfig builds and validates the analyzer settings.
func (c Config) VisualizerConfig() (spectrum.VisualizerConfig, error) {
	v := c.Visualizer
	vc := spectrum.VisualizerConfig{
		UpdateRateFPS:   v.FPS,
		BarCount:        v.BarCount,
		MaxBarHeight:    v.MaxBarHeight,
		BassRange:       spectrum.FreqRange{Lo: v.BassRange[0], Hi: v.BassRange[1]},
		MidRange:        spectrum.FreqRange{Lo: v.MidRange[0], Hi: v.MidRange[1]},
		HighRange:       spectrum.FreqRange{Lo: v.HighRange[0], Hi: v.HighRange[1]},
		SmoothingFactor: v.Smoothing,
	}
	if err := vc.Validate(); err != nil {
		return spectrum.VisualizerConfig{}, err
	}
	return vc, nil
}

// AnalyzerOptions maps the capture section onto analyzer options.
func (c Config) AnalyzerOptions() spectrum.AnalyzerOptions {
	return spectrum.AnalyzerOptions{
		SampleRate:     c.Capture.SampleRate,
		BufferSize:     c.Capture.BufferSize,
		CaptureTimeout: time.Duration(c.Capture.TimeoutMS) * time.Millisecond,
	}
}

// AgentCommand splits the runner into program and arguments.
func (c Config) AgentCommand() []string {
	return strings.Fields(c.Agent.Runner)
}

func defaultMusicDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Music"
	}
	return filepath.Join(home, "Music")
}

func defaultLogFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "sigplay", "sigplay.log")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sigplay.log")
	}
	return filepath.Join(home, ".local", "state", "sigplay", "sigplay.log")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
