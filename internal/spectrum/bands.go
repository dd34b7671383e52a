package spectrum

import "time"

// epsilon is the smallest peak Normalized will divide by.
const epsilon = 1e-12

var epoch = time.Now()

// Now returns seconds elapsed on the process monotonic clock.
func Now() float64 {
	return time.Since(epoch).Seconds()
}

// FrequencyBands is one analysis frame split into bass, mid and high
// amplitudes, each in ascending frequency order. Values are never modified
// once a snapshot has been built.
type FrequencyBands struct {
	Bass      []float64
	Mid       []float64
	High      []float64
	Timestamp float64
}

// ZeroBands returns an all-zero snapshot with the given band lengths.
func ZeroBands(bass, mid, high int, ts float64) FrequencyBands {
	return FrequencyBands{
		Bass:      make([]float64, bass),
		Mid:       make([]float64, mid),
		High:      make([]float64, high),
		Timestamp: ts,
	}
}

// AllBands returns bass ++ mid ++ high as a new slice.
func (b FrequencyBands) AllBands() []float64 {
	out := make([]float64, 0, b.Len())
	out = append(out, b.Bass...)
	out = append(out, b.Mid...)
	return append(out, b.High...)
}

// Len is the total number of amplitudes across all three bands.
func (b FrequencyBands) Len() int {
	return len(b.Bass) + len(b.Mid) + len(b.High)
}

// BandCounts returns the number of bins in each band.
func (b FrequencyBands) BandCounts() (bass, mid, high int) {
	return len(b.Bass), len(b.Mid), len(b.High)
}

// Peak is the largest amplitude in the snapshot, or 0 when empty.
func (b FrequencyBands) Peak() float64 {
	peak := 0.0
	for _, band := range [][]float64{b.Bass, b.Mid, b.High} {
		for _, v := range band {
			if v > peak {
				peak = v
			}
		}
	}
	return peak
}

// Normalized scales every amplitude by one common factor so the global peak
// becomes maxValue. An all-zero snapshot is returned as is.
func (b FrequencyBands) Normalized(maxValue float64) FrequencyBands {
	peak := b.Peak()
	if peak <= epsilon {
		return b
	}
	scale := func(src []float64) []float64 {
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = v / peak * maxValue
		}
		return out
	}
	return FrequencyBands{
		Bass:      scale(b.Bass),
		Mid:       scale(b.Mid),
		High:      scale(b.High),
		Timestamp: b.Timestamp,
	}
}
