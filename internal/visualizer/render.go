// Package visualizer turns spectrum snapshots into fixed-size bar grids.
// Everything here is pure: the same inputs always give the same grid.
package visualizer

import (
	"math"
	"strings"

	"github.com/sigplay/sigplay/internal/spectrum"
)

const (
	FillChar     = '█'
	EmptyChar    = ' '
	BaselineChar = '─'
)

// Grid is a rendered frame: MaxBarHeight bar rows top to bottom followed by
// one baseline row.
type Grid struct {
	Heights []int
	Classes []ColorClass
	Rows    []string
}

// String joins all rows, baseline last.
func (g Grid) String() string {
	return strings.Join(g.Rows, "\n")
}

// BarRows returns the rows above the baseline.
func (g Grid) BarRows() []string {
	if len(g.Rows) == 0 {
		return nil
	}
	return g.Rows[:len(g.Rows)-1]
}

// Baseline returns the last row.
func (g Grid) Baseline() string {
	if len(g.Rows) == 0 {
		return ""
	}
	return g.Rows[len(g.Rows)-1]
}

// Width is the number of columns.
func (g Grid) Width() int {
	return len(g.Heights)
}

// RenderBars resamples bass ++ mid ++ high to barCount columns and draws
// them maxBarHeight rows tall. Column colours follow the snapshot's
// original band proportions.
func RenderBars(bands spectrum.FrequencyBands, barCount, maxBarHeight int) Grid {
	barCount = max(barCount, 1)
	maxBarHeight = max(maxBarHeight, 0)

	amps := Resample(bands.AllBands(), barCount)
	heights := make([]int, barCount)
	for i, a := range amps {
		heights[i] = Height(a, maxBarHeight)
	}

	bass, mid, high := bands.BandCounts()
	return Grid{
		Heights: heights,
		Classes: ColumnClasses(bass, mid, high, barCount),
		Rows:    drawRows(heights, maxBarHeight),
	}
}

// RenderBaselineOnly draws an empty frame of the same shape as RenderBars,
// used while nothing is playing or no fresh data is available.
func RenderBaselineOnly(barCount, maxBarHeight int) Grid {
	barCount = max(barCount, 1)
	maxBarHeight = max(maxBarHeight, 0)

	heights := make([]int, barCount)
	return Grid{
		Heights: heights,
		Classes: ColumnClasses(0, 0, 0, barCount),
		Rows:    drawRows(heights, maxBarHeight),
	}
}

// Height maps an amplitude in [0,1] to a bar height using floor. Values
// outside the range are clamped and NaN maps to 0.
func Height(a float64, maxBarHeight int) int {
	if math.IsNaN(a) || a <= 0 || maxBarHeight <= 0 {
		return 0
	}
	if a >= 1 {
		return maxBarHeight
	}
	return int(math.Floor(a * float64(maxBarHeight)))
}

// Resample linearly interpolates src over index position to exactly n
// values. The first and last outputs sit on the first and last inputs.
func Resample(src []float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	out := make([]float64, n)
	switch len(src) {
	case 0:
		return out
	case 1:
		for i := range out {
			out[i] = src[0]
		}
		return out
	}

	last := len(src) - 1
	for i := range out {
		x := 0.0
		if n > 1 {
			x = float64(i) * float64(last) / float64(n-1)
		}
		lo := int(math.Floor(x))
		if lo >= last {
			out[i] = src[last]
			continue
		}
		frac := x - float64(lo)
		out[i] = src[lo] + (src[lo+1]-src[lo])*frac
	}
	return out
}

func drawRows(heights []int, maxBarHeight int) []string {
	rows := make([]string, 0, maxBarHeight+1)
	var line strings.Builder
	for r := maxBarHeight; r >= 1; r-- {
		line.Reset()
		for _, h := range heights {
			if h >= r {
				line.WriteRune(FillChar)
			} else {
				line.WriteRune(EmptyChar)
			}
		}
		rows = append(rows, line.String())
	}
	return append(rows, strings.Repeat(string(BaselineChar), len(heights)))
}

// BarCountForWidth picks a bar count for the available columns, never
// going below minBars.
func BarCountForWidth(width, minBars int) int {
	return max(width, minBars, 1)
}
