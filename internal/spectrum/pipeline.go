package spectrum

import (
	"math"
	"math/cmplx"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// SilenceFloor is the smoothed peak magnitude below which normalization is
// skipped, so an idle input stays at the baseline instead of amplifying
// dither or noise to full height.
const SilenceFloor = 0.01

// Pipeline runs one analysis cycle: window, real FFT, magnitudes, band
// mapping, per-bin EMA smoothing and global normalization. A Pipeline keeps
// smoothing history and scratch buffers and must be used from one goroutine.
type Pipeline struct {
	cfg        VisualizerConfig
	bufferSize int
	bins       BinMap
	fft        *fourier.FFT
	window     []float64
	frame      []float64
	coeffs     []complex128
	smoothed   []float64
	log        zerolog.Logger
}

// NewPipeline validates the configuration and prepares the FFT plan.
func NewPipeline(cfg VisualizerConfig, sampleRate, bufferSize int, logger zerolog.Logger) (*Pipeline, error) {
	bins, err := NewBinMap(sampleRate, bufferSize, cfg)
	if err != nil {
		return nil, err
	}

	win := make([]float64, bufferSize)
	for i := range win {
		win[i] = 1
	}
	window.Hann(win)

	return &Pipeline{
		cfg:        cfg,
		bufferSize: bufferSize,
		bins:       bins,
		fft:        fourier.NewFFT(bufferSize),
		window:     win,
		frame:      make([]float64, bufferSize),
		coeffs:     make([]complex128, bins.NumBins()),
		smoothed:   make([]float64, bins.NumBins()),
		log:        logger,
	}, nil
}

// BinMap returns the mapping currently in use.
func (p *Pipeline) BinMap() BinMap {
	return p.bins
}

// Reset clears smoothing history.
func (p *Pipeline) Reset() {
	clear(p.smoothed)
}

// Process analyzes the newest bufferSize samples (mono, oldest first) taken
// at sampleRate and returns a fresh snapshot. Shorter input is zero padded
// at the front. A sampleRate that differs from the current mapping rebuilds
// the mapping so reported frequencies stay correct; sampleRate <= 0 keeps
// the current one.
func (p *Pipeline) Process(samples []float64, sampleRate int) FrequencyBands {
	if sampleRate > 0 && sampleRate != p.bins.SampleRate {
		p.remap(sampleRate)
	}

	clear(p.frame)
	if n := len(samples); n >= p.bufferSize {
		copy(p.frame, samples[n-p.bufferSize:])
	} else {
		copy(p.frame[p.bufferSize-n:], samples)
	}
	for i := range p.frame {
		p.frame[i] *= p.window[i]
	}

	p.coeffs = p.fft.Coefficients(p.coeffs, p.frame)

	alpha := p.cfg.SmoothingFactor
	lo, hi := p.bins.Bass.Start, p.bins.High.End
	invalid := 0
	peak := 0.0
	for i := lo; i < hi; i++ {
		mag := cmplx.Abs(p.coeffs[i])
		if !finite(mag) {
			mag = 0
			invalid++
		}
		s := (1-alpha)*p.smoothed[i] + alpha*mag
		if !finite(s) {
			s = 0
			invalid++
		}
		p.smoothed[i] = s
		if s > peak {
			peak = s
		}
	}

	norm := peak > SilenceFloor

	slice := func(r BinRange) []float64 {
		out := make([]float64, r.Len())
		for j := range out {
			v := p.smoothed[r.Start+j]
			if norm {
				v /= peak
			}
			if !finite(v) {
				v = 0
				invalid++
			}
			out[j] = v
		}
		return out
	}
	bands := FrequencyBands{
		Bass:      slice(p.bins.Bass),
		Mid:       slice(p.bins.Mid),
		High:      slice(p.bins.High),
		Timestamp: Now(),
	}
	if invalid > 0 {
		p.log.Debug().Int("values", invalid).Msg("zeroed non-finite spectrum values")
	}
	return bands
}

func (p *Pipeline) remap(sampleRate int) {
	bins, err := NewBinMap(sampleRate, p.bufferSize, p.cfg)
	if err != nil {
		p.log.Debug().Err(err).Int("sample_rate", sampleRate).Msg("ignoring sample rate")
		return
	}
	p.log.Debug().
		Int("from", p.bins.SampleRate).
		Int("to", sampleRate).
		Msg("remapping spectrum bins for new sample rate")
	p.bins = bins
	p.Reset()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
