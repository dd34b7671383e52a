package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sigplay/sigplay/internal/spectrum"
	"github.com/sigplay/sigplay/internal/visualizer"
)

const (
	// staleAfter is how old a snapshot may be before the view falls back
	// to the baseline.
	staleAfter = 500 * time.Millisecond

	// Share of the frame budget spent polling and rendering above which
	// the view lowers its frame rate, and below which it raises it again.
	loadHigh = 0.20
	loadLow  = 0.10

	loadSmoothing = 0.2
	// Columns kept free left and right of the bars.
	vizMargin = 2
	// Rows used by the header, status and help around the bars.
	vizChrome = 7
)

// Analyzer is what the view needs from the spectrum analyzer.
type Analyzer interface {
	Start() error
	Stop()
	IsActive() bool
	FrequencyBands() spectrum.FrequencyBands
}

// frameKey identifies what is on screen; an unchanged key skips rendering.
type frameKey struct {
	live      bool
	timestamp float64
	bars      int
	height    int
}

// VisualizerView polls the analyzer while the visualizer tab is shown and
// renders bars, or a flat baseline when nothing fresh is playing.
type VisualizerView struct {
	analyzer  Analyzer
	cfg       spectrum.VisualizerConfig
	isPlaying func() bool

	active   bool
	gen      int
	startErr error

	width    int
	height   int
	barCount int
	fps      int
	load     float64

	last     frameKey
	grid     visualizer.Grid
	rendered string
	styles   *barStyles
	frames   int

	now func() time.Time
}

// NewVisualizerView creates an inactive view. isPlaying reports whether the
// player is currently producing audio.
func NewVisualizerView(a Analyzer, cfg spectrum.VisualizerConfig, isPlaying func() bool) VisualizerView {
	return VisualizerView{
		analyzer:  a,
		cfg:       cfg,
		isPlaying: isPlaying,
		barCount:  cfg.BarCount,
		fps:       cfg.UpdateRateFPS,
		now:       time.Now,
	}
}

// Activate starts the analyzer and the frame loop. A capture failure is kept
// for a hint; the view still runs and shows the baseline.
func (v VisualizerView) Activate() (VisualizerView, tea.Cmd) {
	if v.active {
		return v, nil
	}
	v.active = true
	v.gen++
	v.last = frameKey{}
	v.startErr = nil
	if v.analyzer != nil {
		v.startErr = v.analyzer.Start()
	}
	v = v.render()
	return v, v.nextFrame()
}

// Deactivate stops the analyzer. Pending frames are ignored.
func (v VisualizerView) Deactivate() VisualizerView {
	if !v.active {
		return v
	}
	v.active = false
	v.gen++
	if v.analyzer != nil {
		v.analyzer.Stop()
	}
	return v
}

// Active reports whether the view is polling.
func (v VisualizerView) Active() bool { return v.active }

// FPS is the current poll rate after load adaptation.
func (v VisualizerView) FPS() int { return v.fps }

// BarCount is the number of columns currently rendered.
func (v VisualizerView) BarCount() int { return v.barCount }

// Frames counts renders that produced a new grid.
func (v VisualizerView) Frames() int { return v.frames }

// Grid returns the last rendered grid.
func (v VisualizerView) Grid() visualizer.Grid { return v.grid }

// CaptureError is the error from the last Start, if any.
func (v VisualizerView) CaptureError() error { return v.startErr }

func (v VisualizerView) frameInterval() time.Duration {
	return time.Second / time.Duration(max(v.fps, 1))
}

func (v VisualizerView) nextFrame() tea.Cmd {
	gen := v.gen
	return tea.Tick(v.frameInterval(), func(time.Time) tea.Msg {
		return frameMsg{gen: gen}
	})
}

func (v VisualizerView) Update(msg tea.Msg) (VisualizerView, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		if !v.active || msg.gen != v.gen {
			return v, nil
		}
		start := v.now()
		v = v.render()
		v = v.adapt(v.now().Sub(start))
		return v, v.nextFrame()

	case tea.WindowSizeMsg:
		v.width, v.height = msg.Width, msg.Height
		v.barCount = visualizer.BarCountForWidth(msg.Width-2*vizMargin, spectrum.MinBarCount)
		return v.render(), nil
	}
	return v, nil
}

func (v VisualizerView) maxBarHeight() int {
	h := v.cfg.MaxBarHeight
	if v.height > 0 {
		h = min(h, max(v.height-vizChrome, 1))
	}
	return h
}

// render polls the analyzer and redraws when the frame changed.
func (v VisualizerView) render() VisualizerView {
	key := frameKey{bars: v.barCount, height: v.maxBarHeight()}
	var bands spectrum.FrequencyBands
	if v.active && v.isPlaying != nil && v.isPlaying() && v.analyzer != nil && v.analyzer.IsActive() {
		bands = v.analyzer.FrequencyBands()
		age := spectrum.Now() - bands.Timestamp
		if age <= staleAfter.Seconds() {
			key.live = true
			key.timestamp = bands.Timestamp
		}
	}
	if key == v.last && v.rendered != "" {
		return v
	}

	if key.live {
		v.grid = visualizer.RenderBars(bands, key.bars, key.height)
	} else {
		v.grid = visualizer.RenderBaselineOnly(key.bars, key.height)
	}
	if v.styles == nil || v.styles.height != key.height {
		v.styles = newBarStyles(key.height)
	}
	v.rendered = v.paint(v.grid)
	v.last = key
	v.frames++
	return v
}

// adapt feeds the time spent on this frame into a smoothed load figure and
// steps the frame rate between the configured rate and the floor.
func (v VisualizerView) adapt(spent time.Duration) VisualizerView {
	frac := spent.Seconds() / v.frameInterval().Seconds()
	v.load = (1-loadSmoothing)*v.load + loadSmoothing*frac
	switch {
	case v.load > loadHigh && v.fps > spectrum.MinUpdateRateFPS:
		v.fps--
	case v.load < loadLow && v.fps < v.cfg.UpdateRateFPS:
		v.fps++
	}
	return v
}

// paint colours filled cells by band class and row.
func (v VisualizerView) paint(g visualizer.Grid) string {
	bars := g.BarRows()
	var b strings.Builder
	for i, row := range bars {
		r := len(bars) - i
		b.WriteString(spaces(vizMargin))
		col := 0
		for _, ch := range row {
			if ch == visualizer.FillChar {
				b.WriteString(v.styles.cell(g.Classes[col], r).Render(string(ch)))
			} else {
				b.WriteRune(ch)
			}
			col++
		}
		b.WriteByte('\n')
	}
	b.WriteString(spaces(vizMargin))
	b.WriteString(baselineStyle.Render(g.Baseline()))
	return b.String()
}

func (v VisualizerView) View() string {
	if v.width > 0 && v.width < spectrum.MinDisplayWidth {
		return "  " + helpStyle.Render("widen the terminal to see the visualizer")
	}
	s := v.rendered
	if v.startErr != nil {
		s += "\n  " + helpStyle.Render("audio capture unavailable")
	}
	return s
}
