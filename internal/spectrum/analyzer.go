package spectrum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSampleRate     = 44100
	DefaultBufferSize     = 2048
	DefaultCaptureTimeout = 25 * time.Millisecond

	minInterval = 15 * time.Millisecond
	maxInterval = 50 * time.Millisecond
)

// ErrCaptureUnavailable is returned by Start when no capture path can be
// opened. The analyzer keeps serving zeroed snapshots in that case.
var ErrCaptureUnavailable = errors.New("audio capture unavailable")

// Source delivers mono audio representative of what is currently playing.
type Source interface {
	// Start opens the capture resource and reports its sample rate
	// (0 if unknown).
	Start() (sampleRate int, err error)
	// Read fills dst with the newest samples, oldest first, in [-1, 1].
	// It must return once ctx is done.
	Read(ctx context.Context, dst []float64) (sampleRate int, err error)
	// Stop releases the capture resource. It may be called while a Read
	// is in flight.
	Stop() error
}

// AnalyzerOptions tunes an Analyzer. Zero fields take defaults.
type AnalyzerOptions struct {
	SampleRate     int
	BufferSize     int
	CaptureTimeout time.Duration
	// Interval between analysis cycles. Defaults to the duration of one
	// buffer, clamped to 15-50ms.
	Interval time.Duration
	Logger   *zerolog.Logger
}

// Analyzer turns a live Source into smoothed, normalized FrequencyBands on
// its own goroutine. Consumers poll FrequencyBands, which never blocks.
type Analyzer struct {
	cfg  VisualizerConfig
	opts AnalyzerOptions
	src  Source
	log  zerolog.Logger

	mu         sync.Mutex // serializes Start, Stop and publish
	cancel     context.CancelFunc
	sampleRate int
	bins       BinMap
	reported   bool

	running  atomic.Bool
	degraded atomic.Bool
	gen      atomic.Uint64
	latest   atomic.Pointer[FrequencyBands]
}

// NewAnalyzer validates the configuration. src may be nil, in which case
// Start reports ErrCaptureUnavailable and the analyzer stays zeroed.
func NewAnalyzer(cfg VisualizerConfig, src Source, opts AnalyzerOptions) (*Analyzer, error) {
	if opts.SampleRate == 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = DefaultCaptureTimeout
	}

	bins, err := NewBinMap(opts.SampleRate, opts.BufferSize, cfg)
	if err != nil {
		return nil, err
	}

	if opts.Interval <= 0 {
		opts.Interval = time.Duration(float64(opts.BufferSize) / float64(opts.SampleRate) * float64(time.Second))
	}
	opts.Interval = min(max(opts.Interval, minInterval), maxInterval)

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	a := &Analyzer{
		cfg:        cfg,
		opts:       opts,
		src:        src,
		log:        logger.With().Str("component", "spectrum").Logger(),
		sampleRate: opts.SampleRate,
		bins:       bins,
	}
	zero := bins.Zero(Now())
	a.latest.Store(&zero)
	return a, nil
}

// Start begins capture and analysis. It is a no-op while running. When the
// source cannot be opened the failure is logged once, the analyzer stays
// inactive and ErrCaptureUnavailable is returned; polling keeps working.
func (a *Analyzer) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running.Load() {
		return nil
	}

	if a.src == nil {
		return a.unavailable(errors.New("no capture source configured"))
	}
	rate, err := a.src.Start()
	if err != nil {
		return a.unavailable(err)
	}

	if rate > 0 && rate != a.sampleRate {
		a.log.Warn().
			Int("configured", a.sampleRate).
			Int("device", rate).
			Msg("capture sample rate differs from configuration, using device rate")
		a.sampleRate = rate
	}

	pipe, err := NewPipeline(a.cfg, a.sampleRate, a.opts.BufferSize, a.log)
	if err != nil {
		_ = a.src.Stop()
		return err
	}
	a.bins = pipe.BinMap()

	ctx, cancel := context.WithCancel(context.Background())
	gen := a.gen.Add(1)
	a.cancel = cancel
	a.degraded.Store(false)
	a.running.Store(true)

	go a.run(ctx, gen, pipe)

	a.log.Info().
		Int("sample_rate", a.sampleRate).
		Int("buffer_size", a.opts.BufferSize).
		Dur("interval", a.opts.Interval).
		Msg("spectrum analyzer started")
	return nil
}

func (a *Analyzer) unavailable(cause error) error {
	a.degraded.Store(true)
	if !a.reported {
		a.reported = true
		a.log.Error().Err(cause).Msg("audio capture unavailable, visualizer will show a baseline")
	} else {
		a.log.Debug().Err(cause).Msg("audio capture still unavailable")
	}
	return fmt.Errorf("%w: %w", ErrCaptureUnavailable, cause)
}

// Stop releases the capture resource without waiting for an in-flight
// cycle; that cycle is abandoned and never published. Stop is idempotent.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	if !a.running.Load() {
		a.mu.Unlock()
		return
	}
	a.running.Store(false)
	a.gen.Add(1)
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	cancel()
	if err := a.src.Stop(); err != nil {
		a.log.Warn().Err(err).Msg("closing capture source")
	}
	a.log.Info().Msg("spectrum analyzer stopped")
}

// FrequencyBands returns the latest published snapshot. Before the first
// cycle, and in degraded mode, it is all zeros.
func (a *Analyzer) FrequencyBands() FrequencyBands {
	return *a.latest.Load()
}

// IsActive reports whether the analyzer is running.
func (a *Analyzer) IsActive() bool {
	return a.running.Load()
}

// Degraded reports whether the last Start failed to open capture.
func (a *Analyzer) Degraded() bool {
	return a.degraded.Load()
}

// SampleRate is the rate the bin mapping currently assumes.
func (a *Analyzer) SampleRate() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sampleRate
}

// BinMap is the bin assignment for the current sample rate.
func (a *Analyzer) BinMap() BinMap {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bins
}

// Config returns the configuration the analyzer was built with.
func (a *Analyzer) Config() VisualizerConfig {
	return a.cfg
}

func (a *Analyzer) run(ctx context.Context, gen uint64, pipe *Pipeline) {
	buf := make([]float64, a.opts.BufferSize)
	ticker := time.NewTicker(a.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rate := a.capture(ctx, buf)
		bands := pipe.Process(buf, rate)
		if ctx.Err() != nil {
			return
		}
		a.publish(gen, bands, pipe.BinMap())
	}
}

// capture reads one buffer, substituting silence on error or timeout.
func (a *Analyzer) capture(ctx context.Context, buf []float64) int {
	readCtx, cancel := context.WithTimeout(ctx, a.opts.CaptureTimeout)
	defer cancel()

	rate, err := a.src.Read(readCtx, buf)
	if err != nil {
		clear(buf)
		if ctx.Err() == nil {
			a.log.Debug().Err(err).Msg("capture read failed, using silence for this cycle")
		}
		return 0
	}
	return rate
}

// publish swaps in b unless the run was stopped or a newer snapshot is
// already visible. Holding mu makes the generation check and the store one
// step with respect to Stop. A remap inside the pipeline is mirrored into
// the analyzer so BinMap and SampleRate describe the published snapshot.
func (a *Analyzer) publish(gen uint64, b FrequencyBands, bins BinMap) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen.Load() != gen {
		return
	}
	if old := a.latest.Load(); old != nil && b.Timestamp < old.Timestamp {
		return
	}
	if bins != a.bins {
		a.bins = bins
		a.sampleRate = bins.SampleRate
	}
	a.latest.Store(&b)
}
