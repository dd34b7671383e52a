package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sigplay/sigplay/internal/spectrum"
	"github.com/sigplay/sigplay/internal/visualizer"
)

type fakeAnalyzer struct {
	starts   int
	stops    int
	active   bool
	startErr error
	bands    spectrum.FrequencyBands
}

func (a *fakeAnalyzer) Start() error {
	a.starts++
	if a.startErr != nil {
		return a.startErr
	}
	a.active = true
	return nil
}

func (a *fakeAnalyzer) Stop() {
	a.stops++
	a.active = false
}

func (a *fakeAnalyzer) IsActive() bool                           { return a.active }
func (a *fakeAnalyzer) FrequencyBands() spectrum.FrequencyBands { return a.bands }

func loudBands(ts float64) spectrum.FrequencyBands {
	full := func(n int) []float64 {
		s := make([]float64, n)
		for i := range s {
			s[i] = 1
		}
		return s
	}
	return spectrum.FrequencyBands{Bass: full(4), Mid: full(8), High: full(8), Timestamp: ts}
}

func maxHeight(g visualizer.Grid) int {
	m := 0
	for _, h := range g.Heights {
		m = max(m, h)
	}
	return m
}

func newTestVisualizer(a *fakeAnalyzer, playing *bool) VisualizerView {
	return NewVisualizerView(a, spectrum.DefaultVisualizerConfig(), func() bool { return *playing })
}

func TestVisualizerActivateStartsAndDeactivateStops(t *testing.T) {
	a := &fakeAnalyzer{}
	playing := false
	v := newTestVisualizer(a, &playing)

	v, cmd := v.Activate()
	if !v.Active() || a.starts != 1 {
		t.Fatalf("expected active view with one start, got active=%v starts=%d", v.Active(), a.starts)
	}
	if cmd == nil {
		t.Fatal("expected frame command after activation")
	}
	v, cmd = v.Activate()
	if a.starts != 1 || cmd != nil {
		t.Fatalf("expected second activate to be a no-op, got starts=%d", a.starts)
	}

	v = v.Deactivate()
	if v.Active() || a.stops != 1 {
		t.Fatalf("expected inactive view with one stop, got active=%v stops=%d", v.Active(), a.stops)
	}
	v = v.Deactivate()
	if a.stops != 1 {
		t.Fatalf("expected second deactivate to be a no-op, got stops=%d", a.stops)
	}
}

func TestVisualizerRendersFreshBandsWhilePlaying(t *testing.T) {
	a := &fakeAnalyzer{bands: loudBands(spectrum.Now())}
	playing := true
	v := newTestVisualizer(a, &playing)

	v, _ = v.Activate()
	if got := maxHeight(v.Grid()); got != spectrum.DefaultMaxBarHeight {
		t.Fatalf("expected full-height bars, got %d", got)
	}
	if len(v.Grid().Heights) != spectrum.DefaultBarCount {
		t.Fatalf("expected %d bars, got %d", spectrum.DefaultBarCount, len(v.Grid().Heights))
	}
}

func TestVisualizerShowsBaselineForStaleBands(t *testing.T) {
	a := &fakeAnalyzer{bands: loudBands(spectrum.Now() - 2*staleAfter.Seconds())}
	playing := true
	v := newTestVisualizer(a, &playing)

	v, _ = v.Activate()
	if got := maxHeight(v.Grid()); got != 0 {
		t.Fatalf("expected baseline for stale snapshot, got height %d", got)
	}
}

func TestVisualizerShowsBaselineWhenNotPlaying(t *testing.T) {
	a := &fakeAnalyzer{bands: loudBands(spectrum.Now())}
	playing := false
	v := newTestVisualizer(a, &playing)

	v, _ = v.Activate()
	if got := maxHeight(v.Grid()); got != 0 {
		t.Fatalf("expected baseline while paused, got height %d", got)
	}

	playing = true
	v, _ = v.Update(frameMsg{gen: v.gen})
	if got := maxHeight(v.Grid()); got == 0 {
		t.Fatal("expected bars once playback resumes")
	}
}

func TestVisualizerSkipsUnchangedFrames(t *testing.T) {
	a := &fakeAnalyzer{bands: loudBands(spectrum.Now())}
	playing := true
	v := newTestVisualizer(a, &playing)

	v, _ = v.Activate()
	frames := v.Frames()
	v, _ = v.Update(frameMsg{gen: v.gen})
	if v.Frames() != frames {
		t.Fatalf("expected unchanged snapshot to skip rendering, got %d frames after %d", v.Frames(), frames)
	}

	a.bands = loudBands(spectrum.Now())
	a.bands.Timestamp += 0.001
	v, _ = v.Update(frameMsg{gen: v.gen})
	if v.Frames() != frames+1 {
		t.Fatalf("expected new snapshot to render, got %d frames", v.Frames())
	}
}

func TestVisualizerDropsFramesFromEarlierActivation(t *testing.T) {
	a := &fakeAnalyzer{}
	playing := false
	v := newTestVisualizer(a, &playing)

	v, _ = v.Activate()
	old := v.gen
	v = v.Deactivate()
	if _, cmd := v.Update(frameMsg{gen: old}); cmd != nil {
		t.Fatal("expected no frame loop while inactive")
	}

	v, _ = v.Activate()
	if _, cmd := v.Update(frameMsg{gen: old}); cmd != nil {
		t.Fatal("expected stale generation to be dropped")
	}
	if _, cmd := v.Update(frameMsg{gen: v.gen}); cmd == nil {
		t.Fatal("expected current generation to schedule the next frame")
	}
}

func TestVisualizerResizeDoesNotRestartCapture(t *testing.T) {
	a := &fakeAnalyzer{bands: loudBands(spectrum.Now())}
	playing := true
	v := newTestVisualizer(a, &playing)
	v, _ = v.Activate()

	v, _ = v.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	if v.BarCount() != 100-2*vizMargin {
		t.Fatalf("expected %d bars, got %d", 100-2*vizMargin, v.BarCount())
	}
	v, _ = v.Update(tea.WindowSizeMsg{Width: 20, Height: 40})
	if v.BarCount() != spectrum.MinBarCount {
		t.Fatalf("expected bar count floor %d, got %d", spectrum.MinBarCount, v.BarCount())
	}
	if a.starts != 1 || a.stops != 0 {
		t.Fatalf("expected resize to leave capture running, got starts=%d stops=%d", a.starts, a.stops)
	}
	if !strings.Contains(v.View(), "widen the terminal") {
		t.Fatalf("expected narrow-terminal note, got %q", v.View())
	}
}

func TestVisualizerClampsHeightToTerminal(t *testing.T) {
	a := &fakeAnalyzer{bands: loudBands(spectrum.Now())}
	playing := true
	v := newTestVisualizer(a, &playing)
	v, _ = v.Activate()

	v, _ = v.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	if got := maxHeight(v.Grid()); got != 12-vizChrome {
		t.Fatalf("expected bars clamped to %d rows, got %d", 12-vizChrome, got)
	}
}

func TestVisualizerAdaptsFrameRate(t *testing.T) {
	playing := false
	v := newTestVisualizer(&fakeAnalyzer{}, &playing)
	cfg := spectrum.DefaultVisualizerConfig()

	for range 100 {
		v = v.adapt(v.frameInterval())
	}
	if v.FPS() != spectrum.MinUpdateRateFPS {
		t.Fatalf("expected fps to fall to %d under load, got %d", spectrum.MinUpdateRateFPS, v.FPS())
	}

	for range 100 {
		v = v.adapt(0)
	}
	if v.FPS() != cfg.UpdateRateFPS {
		t.Fatalf("expected fps to recover to %d, got %d", cfg.UpdateRateFPS, v.FPS())
	}
}

func TestVisualizerKeepsRunningWhenCaptureFails(t *testing.T) {
	a := &fakeAnalyzer{startErr: errors.New("no device")}
	playing := true
	v := newTestVisualizer(a, &playing)

	v, cmd := v.Activate()
	if cmd == nil || !v.Active() {
		t.Fatal("expected frame loop despite capture failure")
	}
	if v.CaptureError() == nil {
		t.Fatal("expected capture error to be kept")
	}
	if !strings.Contains(v.View(), "audio capture unavailable") {
		t.Fatalf("expected capture hint, got %q", v.View())
	}
}
