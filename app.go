package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sigplay/sigplay/internal/capture"
	"github.com/sigplay/sigplay/internal/config"
	"github.com/sigplay/sigplay/internal/djagent"
	"github.com/sigplay/sigplay/internal/library"
	"github.com/sigplay/sigplay/internal/player"
	"github.com/sigplay/sigplay/internal/spectrum"
	"github.com/sigplay/sigplay/internal/ui"
)

// app owns the long-lived pieces behind the UI.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	vizCfg   spectrum.VisualizerConfig
	library  *library.Library
	changes  <-chan struct{}
	tap      *capture.Tap
	meter    *capture.Meter
	analyzer *spectrum.Analyzer
	agent    *djagent.Client
	cancel   context.CancelFunc
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	vizCfg, err := cfg.VisualizerConfig()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	a := &app{
		cfg:     cfg,
		log:     logger,
		vizCfg:  vizCfg,
		library: library.New(cfg.MusicDir, &logger),
		meter:   capture.NewMeter(),
		cancel:  cancel,
	}

	src := a.captureSource()
	opts := cfg.AnalyzerOptions()
	opts.Logger = &a.log
	a.analyzer, err = spectrum.NewAnalyzer(vizCfg, src, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}

	if changes, err := a.library.Watch(ctx, library.DefaultDebounce); err != nil {
		logger.Warn().Err(err).Str("dir", cfg.MusicDir).Msg("not watching music directory")
	} else {
		a.changes = changes
	}

	a.agent = a.newAgent()
	return a, nil
}

// captureSource picks what the visualizer listens to. A loopback request
// in a build without PortAudio falls back to the player tap.
func (a *app) captureSource() spectrum.Source {
	capacity := max(a.cfg.Capture.BufferSize*2, capture.DefaultTapCapacity)
	switch a.cfg.Capture.Source {
	case config.CaptureNone:
		return nil
	case config.CaptureLoopback:
		if capture.LoopbackAvailable {
			return capture.NewLoopback(a.cfg.Capture.Device, capacity, a.log)
		}
		a.log.Warn().Msg("loopback capture not compiled in, using the player tap")
	}
	a.tap = capture.NewTap(capacity)
	return a.tap
}

func (a *app) newAgent() *djagent.Client {
	if err := os.MkdirAll(a.cfg.Agent.OutputDir, 0o755); err != nil {
		a.log.Warn().Err(err).Str("dir", a.cfg.Agent.OutputDir).Msg("AI DJ disabled")
		return nil
	}
	client, err := djagent.NewClient(a.cfg.Agent.Script, djagent.Options{
		Command: a.cfg.AgentCommand(),
		Timeout: time.Duration(a.cfg.Agent.TimeoutSec) * time.Second,
		Logger:  &a.log,
	})
	if err != nil {
		a.log.Info().Err(err).Msg("AI DJ disabled")
		return nil
	}
	return client
}

func (a *app) openPlayer(path string) (ui.Player, error) {
	opts := player.Options{Logger: &a.log, Tap: a.meter}
	if a.tap != nil {
		opts.Tap = capture.Tee(a.tap, a.meter)
	}
	p, err := player.New(path, opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a *app) deps() ui.Deps {
	d := ui.Deps{
		LoadLibrary: func(ctx context.Context) ([]library.Track, error) {
			return a.library.Refresh(ctx, library.Options{})
		},
		LibraryChanges: a.changes,
		OpenPlayer:     a.openPlayer,
		Analyzer:       a.analyzer,
		Visualizer:     a.vizCfg,
		Meter:          a.meter,
		MixOutputDir:   a.cfg.Agent.OutputDir,
		MusicDir:       a.cfg.MusicDir,
		Logger:         &a.log,
	}
	if a.agent != nil {
		d.Agent = a.agent
	}
	return d
}

// Close stops capture and the directory watcher.
func (a *app) Close() {
	a.analyzer.Stop()
	a.cancel()
}
