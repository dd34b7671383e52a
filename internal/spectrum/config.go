package spectrum

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultUpdateRateFPS   = 20
	MinUpdateRateFPS       = 15
	MaxUpdateRateFPS       = 30
	DefaultBarCount        = 60
	MinBarCount            = 20
	MinDisplayWidth        = 40
	DefaultMaxBarHeight    = 20
	DefaultSmoothingFactor = 0.3
)

// ErrInvalidConfig is returned when a VisualizerConfig or analyzer option
// would produce a wrong frequency mapping.
var ErrInvalidConfig = errors.New("invalid visualizer config")

// FreqRange is a half-open frequency interval [Lo, Hi) in Hz.
type FreqRange struct {
	Lo float64
	Hi float64
}

// Contains reports whether f falls inside the range.
func (r FreqRange) Contains(f float64) bool {
	return f >= r.Lo && f < r.Hi
}

func (r FreqRange) String() string {
	return fmt.Sprintf("%g-%g Hz", r.Lo, r.Hi)
}

// VisualizerConfig holds the tunables shared by the analyzer and the
// renderer. It is built once and treated as read-only afterwards.
type VisualizerConfig struct {
	UpdateRateFPS   int
	BarCount        int
	MaxBarHeight    int
	BassRange       FreqRange
	MidRange        FreqRange
	HighRange       FreqRange
	SmoothingFactor float64
}

// DefaultVisualizerConfig returns the stock configuration.
func DefaultVisualizerConfig() VisualizerConfig {
	return VisualizerConfig{
		UpdateRateFPS:   DefaultUpdateRateFPS,
		BarCount:        DefaultBarCount,
		MaxBarHeight:    DefaultMaxBarHeight,
		BassRange:       FreqRange{Lo: 20, Hi: 250},
		MidRange:        FreqRange{Lo: 250, Hi: 4000},
		HighRange:       FreqRange{Lo: 4000, Hi: 20000},
		SmoothingFactor: DefaultSmoothingFactor,
	}
}

// Validate checks every field and the contiguity of the three ranges.
func (c VisualizerConfig) Validate() error {
	if c.UpdateRateFPS < MinUpdateRateFPS || c.UpdateRateFPS > MaxUpdateRateFPS {
		return fmt.Errorf("%w: update rate %d fps outside %d-%d", ErrInvalidConfig, c.UpdateRateFPS, MinUpdateRateFPS, MaxUpdateRateFPS)
	}
	if c.BarCount < MinBarCount {
		return fmt.Errorf("%w: bar count %d below minimum %d", ErrInvalidConfig, c.BarCount, MinBarCount)
	}
	if c.MaxBarHeight < 1 {
		return fmt.Errorf("%w: max bar height %d must be positive", ErrInvalidConfig, c.MaxBarHeight)
	}
	if !(c.SmoothingFactor > 0 && c.SmoothingFactor <= 1) {
		return fmt.Errorf("%w: smoothing factor %g outside (0,1]", ErrInvalidConfig, c.SmoothingFactor)
	}
	if c.BassRange.Lo < 0 {
		return fmt.Errorf("%w: bass range %s starts below 0 Hz", ErrInvalidConfig, c.BassRange)
	}
	for _, r := range []struct {
		name string
		rng  FreqRange
	}{{"bass", c.BassRange}, {"mid", c.MidRange}, {"high", c.HighRange}} {
		if !(r.rng.Lo < r.rng.Hi) {
			return fmt.Errorf("%w: %s range %s is empty", ErrInvalidConfig, r.name, r.rng)
		}
	}
	if c.BassRange.Hi != c.MidRange.Lo || c.MidRange.Hi != c.HighRange.Lo {
		return fmt.Errorf("%w: ranges %s, %s, %s are not contiguous", ErrInvalidConfig, c.BassRange, c.MidRange, c.HighRange)
	}
	return nil
}

// FrameInterval is the consumer poll interval for UpdateRateFPS.
func (c VisualizerConfig) FrameInterval() time.Duration {
	fps := c.UpdateRateFPS
	if fps <= 0 {
		fps = DefaultUpdateRateFPS
	}
	return time.Second / time.Duration(fps)
}
