package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sigplay/sigplay/internal/visualizer"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"})

	artistStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#AAAAAA"})

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#888888", Dark: "#888888"})

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BBBBBB"})

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"})

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#888888"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B00020", Dark: "#FF6E6E"})

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1A1A1A"}).
			Background(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#FF6E28"})

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.AdaptiveColor{Light: "#777777", Dark: "#888888"})

	baselineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(visualizer.BaselineColor))

	meterHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C00"))
	meterMidStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB347"))
	meterLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CC5500"))
	meterDimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
)

// barStyles caches one style per class and row so a frame does not build
// thousands of styles.
type barStyles struct {
	height int
	rows   [3][]lipgloss.Style
}

func newBarStyles(maxBarHeight int) *barStyles {
	s := &barStyles{height: maxBarHeight}
	for c := range s.rows {
		s.rows[c] = make([]lipgloss.Style, maxBarHeight+1)
		for r := 1; r <= maxBarHeight; r++ {
			color := visualizer.CellColor(visualizer.ColorClass(c), r, maxBarHeight)
			s.rows[c][r] = lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		}
	}
	return s
}

func (s *barStyles) cell(c visualizer.ColorClass, row int) lipgloss.Style {
	return s.rows[min(int(c), 2)][row]
}
