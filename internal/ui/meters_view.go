package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sigplay/sigplay/internal/capture"
	"github.com/sigplay/sigplay/internal/spectrum"
)

const (
	meterFPS   = 60
	meterLines = 6
	// Lines scrolled per frame.
	meterScroll = 2
)

// LevelMeter reports levels of the audio being played. *capture.Meter
// satisfies it.
type LevelMeter interface {
	Levels() capture.Levels
}

// meterFrameMsg drives the meters view; stale generations are dropped.
type meterFrameMsg struct{ gen int }

// MetersView shows the raw PCM stream as scrolling hex with peak and RMS
// statistics while its tab is on screen.
type MetersView struct {
	meter     LevelMeter
	isPlaying func() bool

	active bool
	gen    int
	width  int

	live   bool
	levels capture.Levels
	offset int
}

func NewMetersView(m LevelMeter, isPlaying func() bool) MetersView {
	return MetersView{meter: m, isPlaying: isPlaying}
}

// Activate starts the frame loop.
func (v MetersView) Activate() (MetersView, tea.Cmd) {
	if v.active {
		return v, nil
	}
	v.active = true
	v.gen++
	v = v.refresh()
	return v, v.nextFrame()
}

// Deactivate stops the frame loop. Pending frames are ignored.
func (v MetersView) Deactivate() MetersView {
	if !v.active {
		return v
	}
	v.active = false
	v.gen++
	return v
}

func (v MetersView) Active() bool { return v.active }

func (v MetersView) nextFrame() tea.Cmd {
	gen := v.gen
	return tea.Tick(time.Second/meterFPS, func(time.Time) tea.Msg {
		return meterFrameMsg{gen: gen}
	})
}

func (v MetersView) Update(msg tea.Msg) (MetersView, tea.Cmd) {
	switch msg := msg.(type) {
	case meterFrameMsg:
		if !v.active || msg.gen != v.gen {
			return v, nil
		}
		return v.refresh(), v.nextFrame()
	case tea.WindowSizeMsg:
		v.width = msg.Width
	}
	return v, nil
}

func (v MetersView) displayWidth() int {
	return max(spectrum.MinDisplayWidth, v.width-6)
}

// refresh samples the meter. Nothing playing clears the display and the
// scroll position.
func (v MetersView) refresh() MetersView {
	if v.meter == nil || v.isPlaying == nil || !v.isPlaying() {
		v.live = false
		v.levels = capture.Levels{}
		v.offset = 0
		return v
	}
	v.levels = v.meter.Levels()
	v.live = v.levels.Samples > 0 && len(v.levels.Recent) > 0
	if v.live {
		v.offset = (v.offset + v.displayWidth()/3*meterScroll) % len(v.levels.Recent)
	}
	return v
}

func (v MetersView) View() string {
	if !v.live {
		return "\n  " + meterDimStyle.Render("[ NO AUDIO DATA ]") + "\n  " +
			helpStyle.Render("Waiting for playback...") + "\n"
	}
	l := v.levels
	width := v.displayWidth()

	var b strings.Builder
	b.WriteString("\n")
	offset := fmt.Sprintf("Offset: %08X", l.Bytes)
	format := fmt.Sprintf("%dHz %dch", l.SampleRate, l.Channels)
	rate := fmt.Sprintf("%d B/s", l.BytesPerSecond())
	pad := max(width-len(offset)-len(format)-len(rate)-5, 1)
	b.WriteString("  " + timeStyle.Render(offset) + meterDimStyle.Render("  │  ") +
		meterLowStyle.Render(format) + spaces(pad) + meterMidStyle.Render(rate) + "\n")

	peak := fmt.Sprintf("Peak: %5d", l.Peak)
	rms := fmt.Sprintf("RMS: %+.1fdB", l.DB())
	buf := fmt.Sprintf("Buffer: %d samples", l.Samples)
	pad = max(width-len(peak)-len(rms)-len(buf)-5, 1)
	b.WriteString("  " + meterHighStyle.Render(peak) + meterDimStyle.Render("  │  ") +
		meterMidStyle.Render(rms) + spaces(pad) + meterLowStyle.Render(buf) + "\n")

	b.WriteString("  " + meterLowStyle.Render(strings.Repeat("─", width)) + "\n")

	perLine := width / 3
	for line := range meterLines {
		b.WriteString("  ")
		for i := range perLine {
			c := l.Recent[(v.offset+line*perLine+i)%len(l.Recent)]
			b.WriteString(hexStyle(c).Render(fmt.Sprintf("%02X", c)) + " ")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func hexStyle(c byte) lipgloss.Style {
	switch i := float64(c) / 255; {
	case i > 0.7:
		return meterHighStyle
	case i > 0.4:
		return meterMidStyle
	}
	return meterLowStyle
}
