package capture

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"time"
)

// RecentBytes is how much of the newest PCM a Levels snapshot keeps for the
// hex display.
const RecentBytes = 512

// Levels summarizes the newest chunk of PCM handed to the audio device.
type Levels struct {
	SampleRate int
	Channels   int
	// Bytes is the total streamed since the current track started.
	Bytes int64
	// Peak is the largest absolute 16-bit sample value in the chunk.
	Peak int
	// RMS is the root mean square of the chunk in 16-bit units.
	RMS float64
	// Samples is the number of samples in the chunk.
	Samples int
	// Recent holds up to RecentBytes of the chunk's tail.
	Recent []byte
	At     time.Time
}

// DB returns RMS relative to full scale, floored at -60 dB.
func (l Levels) DB() float64 {
	if l.RMS <= 0 {
		return -60
	}
	return max(20*math.Log10(l.RMS/32768), -60)
}

// BytesPerSecond is the stream's data rate.
func (l Levels) BytesPerSecond() int {
	return l.SampleRate * l.Channels * 2
}

// Meter is a PCM tap that measures what the player sends to the device.
// Each Write publishes a fresh Levels snapshot; no lock is shared with the
// reader.
type Meter struct {
	rate     atomic.Int64
	channels atomic.Int64
	total    atomic.Int64
	latest   atomic.Pointer[Levels]
}

// NewMeter returns a meter with no data.
func NewMeter() *Meter {
	m := &Meter{}
	m.channels.Store(2)
	m.latest.Store(&Levels{})
	return m
}

// SetFormat starts a new track: counters and the last snapshot are reset.
func (m *Meter) SetFormat(sampleRate, channels int) {
	m.rate.Store(int64(sampleRate))
	m.channels.Store(int64(max(channels, 1)))
	m.total.Store(0)
	m.latest.Store(&Levels{SampleRate: sampleRate, Channels: max(channels, 1)})
}

// Reset keeps the byte count; a seek continues the same track.
func (m *Meter) Reset() {}

// Write implements io.Writer. It never fails.
func (m *Meter) Write(p []byte) (int, error) {
	total := m.total.Add(int64(len(p)))
	n := len(p) / 2
	if n == 0 {
		return len(p), nil
	}
	peak := 0
	sum := 0.0
	for i := range n {
		v := int(int16(binary.LittleEndian.Uint16(p[2*i:])))
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
		sum += float64(v) * float64(v)
	}
	recent := p[max(len(p)-RecentBytes, 0):]
	m.latest.Store(&Levels{
		SampleRate: int(m.rate.Load()),
		Channels:   int(m.channels.Load()),
		Bytes:      total,
		Peak:       peak,
		RMS:        math.Sqrt(sum / float64(n)),
		Samples:    n,
		Recent:     append([]byte(nil), recent...),
		At:         time.Now(),
	})
	return len(p), nil
}

// Levels returns the newest snapshot.
func (m *Meter) Levels() Levels {
	return *m.latest.Load()
}

// PCMTap is what the player feeds: the bytes sent to the device plus format
// and seek notifications.
type PCMTap interface {
	Write(p []byte) (int, error)
	SetFormat(sampleRate, channels int)
	Reset()
}

type tee []PCMTap

// Tee fans one PCM stream out to several taps. Nil taps are skipped.
func Tee(taps ...PCMTap) PCMTap {
	out := make(tee, 0, len(taps))
	for _, t := range taps {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (t tee) Write(p []byte) (int, error) {
	for _, w := range t {
		w.Write(p)
	}
	return len(p), nil
}

func (t tee) SetFormat(sampleRate, channels int) {
	for _, w := range t {
		w.SetFormat(sampleRate, channels)
	}
}

func (t tee) Reset() {
	for _, w := range t {
		w.Reset()
	}
}
