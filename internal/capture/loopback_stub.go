//go:build !portaudio

package capture

import (
	"context"

	"github.com/rs/zerolog"
)

// Loopback is unavailable without the portaudio build tag.
type Loopback struct {
	log zerolog.Logger
}

// NewLoopback returns a source whose Start always fails with ErrUnavailable.
// The arguments are accepted so callers build the same way with or without
// the tag.
func NewLoopback(device string, capacity int, logger zerolog.Logger) *Loopback {
	return &Loopback{log: logger.With().Str("component", "loopback").Logger()}
}

// Start reports ErrUnavailable.
func (l *Loopback) Start() (int, error) {
	l.log.Debug().Msg("built without portaudio")
	return 0, ErrUnavailable
}

// Read reports ErrUnavailable.
func (l *Loopback) Read(ctx context.Context, dst []float64) (int, error) {
	return 0, ErrUnavailable
}

// Stop is a no-op.
func (l *Loopback) Stop() error { return nil }

// LoopbackAvailable reports whether this build includes PortAudio support.
const LoopbackAvailable = false
