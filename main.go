package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sigplay/sigplay/internal/config"
	"github.com/sigplay/sigplay/internal/library"
	"github.com/sigplay/sigplay/internal/ui"
	"github.com/sigplay/sigplay/internal/util"
)

var version = "dev"

type flags struct {
	configPath string
	musicDir   string
	logFile    string
	logLevel   string
	capture    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "sigplay",
		Short:         "Terminal music player with a live spectrum visualizer",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			closeLog, err := setupFileLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()
			return runPlayer(cmd.Context(), cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", config.DefaultPath(), "config file")
	pf.StringVarP(&f.musicDir, "music-dir", "m", "", "music directory (overrides config)")
	pf.StringVar(&f.logFile, "log-file", "", "log file (overrides config)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.Flags().StringVar(&f.capture, "capture", "", "visualizer audio source: tap, loopback or none")

	root.AddCommand(newScanCmd(&f))
	return root
}

func newScanCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the music directory and list what would be played",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *f)
			if err != nil {
				return err
			}
			logger, err := consoleLogger(cfg)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), cfg, &logger)
		},
	}
}

// consoleLogger is the human-readable stderr logger used outside the TUI.
func consoleLogger(cfg config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger(), nil
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("music-dir") {
		cfg.MusicDir = f.musicDir
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if f.capture != "" {
		switch c := strings.ToLower(f.capture); c {
		case config.CaptureTap, config.CaptureLoopback, config.CaptureNone:
			cfg.Capture.Source = c
		default:
			return cfg, fmt.Errorf("--capture must be %q, %q or %q", config.CaptureTap, config.CaptureLoopback, config.CaptureNone)
		}
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	return cfg, nil
}

// setupFileLogger points the global logger at the log file; the terminal
// belongs to the UI.
func setupFileLogger(cfg config.Config) (func(), error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.LogFile == "" {
		log.Logger = zerolog.Nop()
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	log.Logger = zerolog.New(file).Level(level).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)
	return func() { file.Close() }, nil
}

func runPlayer(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	app, err := newApp(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	log.Info().
		Str("music_dir", cfg.MusicDir).
		Str("capture", cfg.Capture.Source).
		Bool("ai_dj", app.agent != nil).
		Msg("starting")

	program := tea.NewProgram(ui.New(app.deps()), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runScan(ctx context.Context, cfg config.Config, logger *zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	tracks, err := library.Scan(ctx, cfg.MusicDir, library.Options{
		Logger: logger,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Scanning"),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Set(done)
		},
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	for _, t := range tracks {
		fmt.Printf("%-8s %-5s %s - %s (%s)\n", util.FormatDuration(t.Duration), t.Format.Codec, t.Artist, t.Title, t.Album)
	}
	logger.Info().Int("tracks", len(tracks)).Str("dir", cfg.MusicDir).Msg("scan complete")
	return nil
}
