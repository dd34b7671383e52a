package visualizer

import (
	"fmt"
	"math"
)

// ColorClass tags an output column with the band it mostly shows.
type ColorClass uint8

const (
	ClassBass ColorClass = iota
	ClassMid
	ClassHigh
)

func (c ColorClass) String() string {
	switch c {
	case ClassBass:
		return "bass"
	case ClassMid:
		return "mid"
	default:
		return "high"
	}
}

// ColumnClasses splits barCount columns between bass, mid and high in
// proportion to the number of bins each band had before resampling. With
// no bins at all the columns are split evenly.
func ColumnClasses(bass, mid, high, barCount int) []ColorClass {
	if barCount < 1 {
		return nil
	}
	bass, mid, high = max(bass, 0), max(mid, 0), max(high, 0)
	if bass+mid+high == 0 {
		bass, mid, high = 1, 1, 1
	}
	total := float64(bass + mid + high)
	bassEnd := int(math.Round(float64(barCount) * float64(bass) / total))
	midEnd := int(math.Round(float64(barCount) * float64(bass+mid) / total))

	out := make([]ColorClass, barCount)
	for i := range out {
		switch {
		case i < bassEnd:
			out[i] = ClassBass
		case i < midEnd:
			out[i] = ClassMid
		default:
			out[i] = ClassHigh
		}
	}
	return out
}

type colorRGB struct {
	R uint8
	G uint8
	B uint8
}

func (c colorRGB) hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Bar gradients run from the base colour at the bottom of a column to the
// tip colour at full height.
var classGradients = [...][2]colorRGB{
	ClassBass: {{R: 120, G: 30, B: 10}, {R: 255, G: 110, B: 40}},
	ClassMid:  {{R: 110, G: 90, B: 0}, {R: 255, G: 220, B: 70}},
	ClassHigh: {{R: 0, G: 90, B: 110}, {R: 80, G: 230, B: 255}},
}

// BaselineColor is the hex colour of the baseline row.
const BaselineColor = "#555555"

// CellColor returns the hex colour for a filled cell of class c at row
// (1-indexed from the bottom) in a grid maxBarHeight rows tall.
func CellColor(c ColorClass, row, maxBarHeight int) string {
	g := classGradients[ClassHigh]
	if int(c) < len(classGradients) {
		g = classGradients[c]
	}
	t := 1.0
	if maxBarHeight > 1 {
		t = float64(row-1) / float64(maxBarHeight-1)
	}
	return lerpColor(g[0], g[1], t).hex()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerpColor(a, b colorRGB, t float64) colorRGB {
	t = clamp01(t)
	return colorRGB{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
	}
}
