// Package capture provides audio sources for the spectrum analyzer: a tap
// on the player's PCM output and, when built with the portaudio tag, a
// loopback input stream.
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrUnavailable is returned by sources that cannot capture on this build
// or machine.
var ErrUnavailable = errors.New("capture source unavailable")

// DefaultTapCapacity holds a little under 100ms of mono audio at 44.1kHz.
const DefaultTapCapacity = 4096

// Tap receives the interleaved signed 16-bit little-endian PCM the player
// hands to the audio device and keeps a mono copy of the newest samples.
// Writes are dropped while the tap is stopped so an idle visualizer costs
// playback nothing.
//
// The write side never waits for the analyzer: decoding happens under wmu,
// which only playback-side calls take, and the decoded samples enter the
// ring only if mu can be taken without blocking. A chunk that meets a Read
// in progress is skipped.
type Tap struct {
	wmu      sync.Mutex // playback side: partial, channels, scratch
	channels int
	partial  []byte
	scratch  []float64

	mu   sync.Mutex // ring
	ring *ringBuffer

	rate   atomic.Int64
	active atomic.Bool
}

// NewTap creates a tap keeping capacity mono samples.
func NewTap(capacity int) *Tap {
	if capacity <= 0 {
		capacity = DefaultTapCapacity
	}
	return &Tap{ring: newRingBuffer(capacity), channels: 2}
}

// SetFormat declares the layout of subsequent writes and drops buffered
// audio from the previous track.
func (t *Tap) SetFormat(sampleRate, channels int) {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	t.rate.Store(int64(sampleRate))
	t.channels = max(channels, 1)
	t.partial = t.partial[:0]
	t.clearRing()
}

// Write implements io.Writer so it can sit behind an io.TeeReader in the
// playback path. It never fails. Frame alignment is tracked even while
// stopped so capture can resume mid-stream.
func (t *Tap) Write(p []byte) (int, error) {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	frame := 2 * t.channels
	data := p
	if len(t.partial) > 0 {
		data = append(t.partial, p...)
	}
	whole := len(data) - len(data)%frame
	if t.active.Load() {
		t.push(data[:whole], frame)
	}
	t.partial = append(t.partial[:0], data[whole:]...)
	return len(p), nil
}

// push downmixes whole frames into scratch and hands them to the ring.
// The caller holds wmu.
func (t *Tap) push(data []byte, frame int) {
	t.scratch = t.scratch[:0]
	for off := 0; off < len(data); off += frame {
		sum := 0.0
		for ch := range t.channels {
			sum += float64(int16(binary.LittleEndian.Uint16(data[off+2*ch:])))
		}
		t.scratch = append(t.scratch, sum/float64(t.channels)/32768.0)
	}
	if len(t.scratch) == 0 || !t.mu.TryLock() {
		return
	}
	for _, v := range t.scratch {
		t.ring.write(v)
	}
	t.mu.Unlock()
}

func (t *Tap) clearRing() {
	t.mu.Lock()
	t.ring.clear()
	t.mu.Unlock()
}

// Reset drops buffered audio, e.g. after a seek.
func (t *Tap) Reset() {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	t.partial = t.partial[:0]
	t.clearRing()
}

// Start enables capture and reports the current sample rate (0 before the
// first track).
func (t *Tap) Start() (int, error) {
	t.active.Store(true)
	return int(t.rate.Load()), nil
}

// Read copies the newest samples into dst. It never blocks on playback.
func (t *Tap) Read(ctx context.Context, dst []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.mu.Lock()
	t.ring.latest(dst)
	t.mu.Unlock()
	return int(t.rate.Load()), nil
}

// Stop disables capture and clears the buffer.
func (t *Tap) Stop() error {
	t.active.Store(false)
	t.clearRing()
	return nil
}
