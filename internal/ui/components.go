package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
)

// progressSpring eases the progress bar towards the playback position so
// seeks glide instead of jumping.
type progressSpring struct {
	spring harmonica.Spring
	pos    float64
	vel    float64
}

func newProgressSpring() *progressSpring {
	return &progressSpring{
		spring: harmonica.NewSpring(harmonica.FPS(int(time.Second/statusTick)), 8.0, 1.0),
	}
}

// step advances one status tick towards target and returns the eased ratio.
func (s *progressSpring) step(target float64) float64 {
	s.pos, s.vel = s.spring.Update(s.pos, s.vel, clamp01(target))
	s.pos = clamp01(s.pos)
	return s.pos
}

// snap jumps straight to target, used when a new track starts.
func (s *progressSpring) snap(target float64) {
	s.pos, s.vel = clamp01(target), 0
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}

func renderProgressBar(ratio float64, width int) string {
	width = max(width, 10)
	filled := int(clamp01(ratio) * float64(width))
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

func renderVolumePercent(vol float64) string {
	return fmt.Sprintf("vol %d%%", int(vol*100+0.5))
}

func spaces(n int) string {
	return strings.Repeat(" ", max(n, 0))
}
