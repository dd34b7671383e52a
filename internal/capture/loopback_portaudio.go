//go:build portaudio

package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// Name fragments of devices that usually carry system output.
var loopbackHints = []string{"monitor", "blackhole", "stereo mix", "loopback", "what u hear"}

// Loopback captures from a system input device through PortAudio.
type Loopback struct {
	device string
	log    zerolog.Logger

	mu     sync.Mutex
	ring   *ringBuffer
	stream *portaudio.Stream
	rate   int
}

// NewLoopback returns a source reading from the named input device. An empty
// name picks the first monitor-like device, then the default input.
func NewLoopback(device string, capacity int, logger zerolog.Logger) *Loopback {
	if capacity <= 0 {
		capacity = DefaultTapCapacity
	}
	return &Loopback{
		device: device,
		ring:   newRingBuffer(capacity),
		log:    logger.With().Str("component", "loopback").Logger(),
	}
}

func (l *Loopback) selectDevice() (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	want := strings.ToLower(l.device)
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		name := strings.ToLower(d.Name)
		if want != "" {
			if strings.Contains(name, want) {
				return d, nil
			}
			continue
		}
		for _, hint := range loopbackHints {
			if strings.Contains(name, hint) {
				return d, nil
			}
		}
	}
	if want != "" {
		return nil, fmt.Errorf("%w: no input device matching %q", ErrUnavailable, l.device)
	}
	d, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	l.log.Warn().Str("device", d.Name).Msg("no monitor device found, using default input")
	return d, nil
}

// Start opens and starts the input stream. It returns the device's sample
// rate.
func (l *Loopback) Start() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stream != nil {
		return l.rate, nil
	}
	if err := portaudio.Initialize(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	dev, err := l.selectDevice()
	if err != nil {
		portaudio.Terminate()
		return 0, err
	}

	channels := min(dev.MaxInputChannels, 2)
	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = channels
	rate := int(dev.DefaultSampleRate)

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i := 0; i+channels <= len(in); i += channels {
			sum := float32(0)
			for ch := range channels {
				sum += in[i+ch]
			}
			l.ring.write(float64(sum) / float64(channels))
		}
	})
	if err != nil {
		portaudio.Terminate()
		return 0, fmt.Errorf("%w: open stream: %w", ErrUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return 0, fmt.Errorf("%w: start stream: %w", ErrUnavailable, err)
	}

	l.stream = stream
	l.rate = rate
	l.ring.clear()
	l.log.Info().Str("device", dev.Name).Int("rate", rate).Int("channels", channels).Msg("loopback capture started")
	return rate, nil
}

// Read copies the newest samples into dst.
func (l *Loopback) Read(ctx context.Context, dst []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stream == nil {
		return 0, ErrUnavailable
	}
	l.ring.latest(dst)
	return l.rate, nil
}

// Stop closes the stream and releases PortAudio.
func (l *Loopback) Stop() error {
	l.mu.Lock()
	stream := l.stream
	l.stream = nil
	l.mu.Unlock()
	if stream == nil {
		return nil
	}
	// Stop waits for the callback, which takes l.mu.
	if err := stream.Stop(); err != nil {
		l.log.Debug().Err(err).Msg("stop stream")
	}
	if err := stream.Close(); err != nil {
		l.log.Debug().Err(err).Msg("close stream")
	}
	return portaudio.Terminate()
}

// LoopbackAvailable reports whether this build includes PortAudio support.
const LoopbackAvailable = true
