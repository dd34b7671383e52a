package spectrum

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSource struct {
	mu       sync.Mutex
	rate     int
	startErr error
	samples  []float64
	block    bool
	starts   atomic.Int32
	stops    atomic.Int32
}

func (s *fakeSource) Start() (int, error) {
	s.starts.Add(1)
	if s.startErr != nil {
		return 0, s.startErr
	}
	return s.rate, nil
}

func (s *fakeSource) Read(ctx context.Context, dst []float64) (int, error) {
	if s.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(dst)
	copy(dst, s.samples)
	return s.rate, nil
}

func (s *fakeSource) Stop() error {
	s.stops.Add(1)
	return nil
}

func newTestAnalyzer(t *testing.T, src Source) *Analyzer {
	t.Helper()
	nop := zerolog.Nop()
	a, err := NewAnalyzer(DefaultVisualizerConfig(), src, AnalyzerOptions{Logger: &nop})
	if err != nil {
		t.Fatalf("NewAnalyzer returned error: %v", err)
	}
	t.Cleanup(a.Stop)
	return a
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewAnalyzerRejectsMisconfiguration(t *testing.T) {
	cfg := DefaultVisualizerConfig()
	cfg.MidRange.Lo = 300
	if _, err := NewAnalyzer(cfg, nil, AnalyzerOptions{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewAnalyzer(DefaultVisualizerConfig(), nil, AnalyzerOptions{SampleRate: -1}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for negative rate, got %v", err)
	}
	if _, err := NewAnalyzer(DefaultVisualizerConfig(), nil, AnalyzerOptions{BufferSize: -2048}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for negative buffer, got %v", err)
	}
}

func TestAnalyzerWithoutSourceServesZeros(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	err := a.Start()
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
	if a.IsActive() {
		t.Fatal("expected analyzer to stay inactive")
	}
	if !a.Degraded() {
		t.Fatal("expected degraded mode")
	}

	bands := a.FrequencyBands()
	if len(bands.Bass) != 11 || len(bands.Mid) != 174 || len(bands.High) != 743 {
		t.Fatalf("unexpected zero snapshot shape %d/%d/%d", len(bands.Bass), len(bands.Mid), len(bands.High))
	}
	if bands.Peak() != 0 {
		t.Fatalf("expected zeroed snapshot, got peak %g", bands.Peak())
	}
}

func TestAnalyzerFailingSourceIsNonFatal(t *testing.T) {
	src := &fakeSource{startErr: errors.New("no loopback device")}
	a := newTestAnalyzer(t, src)

	if err := a.Start(); !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
	if err := a.Start(); !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected repeated start to keep failing softly, got %v", err)
	}
	a.Stop()
	if got := a.FrequencyBands().Peak(); got != 0 {
		t.Fatalf("expected zeroed snapshot, got peak %g", got)
	}
}

func TestAnalyzerPublishesSineSnapshot(t *testing.T) {
	src := &fakeSource{rate: 44100, samples: sine(100, 44100, 2048, 0.8)}
	a := newTestAnalyzer(t, src)

	if err := a.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}
	if got := src.starts.Load(); got != 1 {
		t.Fatalf("expected one source start, got %d", got)
	}
	if !a.IsActive() {
		t.Fatal("expected analyzer to be active")
	}

	waitFor(t, func() bool { return a.FrequencyBands().Peak() > 0 })

	bands := a.FrequencyBands()
	bassPeak := maxOf(bands.Bass)
	other := max(maxOf(bands.Mid), maxOf(bands.High))
	if bassPeak < 5*other {
		t.Fatalf("expected bass to dominate, bass %g other %g", bassPeak, other)
	}

	a.Stop()
	a.Stop()
	if a.IsActive() {
		t.Fatal("expected analyzer to be inactive after stop")
	}
	if got := src.stops.Load(); got != 1 {
		t.Fatalf("expected one source stop, got %d", got)
	}
	if got := a.FrequencyBands(); got.Peak() == 0 {
		t.Fatal("expected last snapshot to remain available after stop")
	}
}

func TestAnalyzerSnapshotsAreMonotonic(t *testing.T) {
	src := &fakeSource{rate: 44100, samples: sine(440, 44100, 2048, 0.5)}
	a := newTestAnalyzer(t, src)
	if err := a.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	last := a.FrequencyBands().Timestamp
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		ts := a.FrequencyBands().Timestamp
		if ts < last {
			t.Fatalf("snapshot went back in time: %g after %g", ts, last)
		}
		last = ts
	}
}

func TestAnalyzerCaptureTimeoutYieldsSilence(t *testing.T) {
	src := &fakeSource{rate: 44100, block: true}
	a := newTestAnalyzer(t, src)
	if err := a.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	first := a.FrequencyBands().Timestamp
	waitFor(t, func() bool { return a.FrequencyBands().Timestamp > first })
	if peak := a.FrequencyBands().Peak(); peak != 0 {
		t.Fatalf("expected silent snapshot after capture timeout, got %g", peak)
	}
}

func TestAnalyzerUsesDeviceSampleRate(t *testing.T) {
	src := &fakeSource{rate: 48000}
	a := newTestAnalyzer(t, src)
	if err := a.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if got := a.SampleRate(); got != 48000 {
		t.Fatalf("expected device rate 48000, got %d", got)
	}
	if got := a.BinMap().SampleRate; got != 48000 {
		t.Fatalf("expected bin map at 48000, got %d", got)
	}
}

func TestAnalyzerStopDoesNotWaitForBlockedRead(t *testing.T) {
	src := &fakeSource{rate: 44100, block: true}
	nop := zerolog.Nop()
	a, err := NewAnalyzer(DefaultVisualizerConfig(), src, AnalyzerOptions{
		Logger:         &nop,
		CaptureTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewAnalyzer returned error: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		a.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Stop to return promptly")
	}
}

func TestAnalyzerStoppedRunCannotPublish(t *testing.T) {
	src := &fakeSource{rate: 44100, samples: sine(100, 44100, 2048, 0.8)}
	a := newTestAnalyzer(t, src)
	if err := a.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	gen := a.gen.Load()
	a.Stop()

	before := a.FrequencyBands()
	late := a.BinMap().Zero(Now() + 10)
	late.Bass[0] = 1
	a.publish(gen, late, a.BinMap())

	if got := a.FrequencyBands(); got.Timestamp != before.Timestamp {
		t.Fatalf("expected snapshot from stopped run to be dropped, got timestamp %g", got.Timestamp)
	}
}

func TestAnalyzerFollowsSampleRateChangeMidRun(t *testing.T) {
	src := &fakeSource{samples: sine(100, 48000, 2048, 0.8)}
	a := newTestAnalyzer(t, src)
	if err := a.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if got := a.BinMap().SampleRate; got != 44100 {
		t.Fatalf("expected configured rate before the first read, got %d", got)
	}

	src.mu.Lock()
	src.rate = 48000
	src.mu.Unlock()

	waitFor(t, func() bool { return a.BinMap().SampleRate == 48000 })
	if got := a.SampleRate(); got != 48000 {
		t.Fatalf("expected sample rate 48000, got %d", got)
	}
	want, err := NewBinMap(48000, DefaultBufferSize, DefaultVisualizerConfig())
	if err != nil {
		t.Fatalf("NewBinMap returned error: %v", err)
	}
	if got := a.BinMap(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	waitFor(t, func() bool {
		b := a.FrequencyBands()
		return len(b.Bass) == want.Bass.Len() && len(b.High) == want.High.Len()
	})
}
