package spectrum

import (
	"fmt"
	"math"
)

// BinRange is a half-open range of FFT bin indices.
type BinRange struct {
	Start int
	End   int
}

// Len returns the number of bins in the range.
func (r BinRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// BinMap assigns rfft bins to the bass, mid and high bands. Each band edge
// is the bin int(edge/resolution), and a band covers [lo edge, hi edge). At
// 44100 Hz and 2048 samples that is bass [0,11), mid [11,185) and high
// [185,928), so the DC bin counts as bass and the 19982 Hz bin is dropped.
type BinMap struct {
	SampleRate int
	BufferSize int
	Bass       BinRange
	Mid        BinRange
	High       BinRange
}

// NewBinMap computes the bin assignment for the given rate and FFT size.
func NewBinMap(sampleRate, bufferSize int, cfg VisualizerConfig) (BinMap, error) {
	if sampleRate <= 0 {
		return BinMap{}, fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidConfig, sampleRate)
	}
	if bufferSize <= 0 {
		return BinMap{}, fmt.Errorf("%w: buffer size %d must be positive", ErrInvalidConfig, bufferSize)
	}
	if err := cfg.Validate(); err != nil {
		return BinMap{}, err
	}

	m := BinMap{SampleRate: sampleRate, BufferSize: bufferSize}
	edges := [4]int{
		m.edge(cfg.BassRange.Lo),
		m.edge(cfg.MidRange.Lo),
		m.edge(cfg.HighRange.Lo),
		m.edge(cfg.HighRange.Hi),
	}
	m.Bass = BinRange{Start: edges[0], End: edges[1]}
	m.Mid = BinRange{Start: edges[1], End: edges[2]}
	m.High = BinRange{Start: edges[2], End: edges[3]}
	return m, nil
}

// NumBins is the rfft output length, bufferSize/2 + 1.
func (m BinMap) NumBins() int {
	return m.BufferSize/2 + 1
}

// Resolution is the width of one bin in Hz.
func (m BinMap) Resolution() float64 {
	return float64(m.SampleRate) / float64(m.BufferSize)
}

// Frequency returns the centre frequency of bin i.
func (m BinMap) Frequency(i int) float64 {
	return float64(i) * float64(m.SampleRate) / float64(m.BufferSize)
}

// Zero returns an all-zero snapshot shaped like this mapping.
func (m BinMap) Zero(ts float64) FrequencyBands {
	return ZeroBands(m.Bass.Len(), m.Mid.Len(), m.High.Len(), ts)
}

// edge returns the bin holding frequency f, int(f/resolution), clamped to
// NumBins.
func (m BinMap) edge(f float64) int {
	i := int(math.Floor(f / m.Resolution()))
	return min(max(i, 0), m.NumBins())
}
