package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func pcm(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestTapDropsWritesWhileStopped(t *testing.T) {
	tap := NewTap(8)
	tap.SetFormat(44100, 1)
	if n, err := tap.Write(pcm(1000, 2000)); err != nil || n != 4 {
		t.Fatalf("expected write to succeed, got n=%d err=%v", n, err)
	}
	dst := make([]float64, 4)
	if _, err := tap.Read(context.Background(), dst); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("expected zero at %d while stopped, got %g", i, v)
		}
	}
}

func TestTapDownmixesStereo(t *testing.T) {
	tap := NewTap(8)
	tap.SetFormat(48000, 2)
	rate, err := tap.Start()
	if err != nil || rate != 48000 {
		t.Fatalf("expected rate 48000, got %d err=%v", rate, err)
	}
	tap.Write(pcm(16384, 0, -32768, -32768))

	dst := make([]float64, 3)
	rate, err = tap.Read(context.Background(), dst)
	if err != nil || rate != 48000 {
		t.Fatalf("expected rate 48000, got %d err=%v", rate, err)
	}
	want := []float64{0, 0.25, -1}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-9 {
			t.Fatalf("sample %d: expected %g, got %g", i, want[i], dst[i])
		}
	}
}

func TestTapKeepsPartialFrames(t *testing.T) {
	tap := NewTap(8)
	tap.SetFormat(44100, 2)
	tap.Start()
	frame := pcm(3276, 3276)
	tap.Write(frame[:3])
	tap.Write(frame[3:])

	dst := make([]float64, 1)
	tap.Read(context.Background(), dst)
	if math.Abs(dst[0]-0.1) > 1e-3 {
		t.Fatalf("expected split frame to decode to ~0.1, got %g", dst[0])
	}
}

func TestTapReturnsNewestSamples(t *testing.T) {
	tap := NewTap(4)
	tap.SetFormat(8000, 1)
	tap.Start()
	tap.Write(pcm(1, 2, 3, 4, 5, 6))

	dst := make([]float64, 6)
	tap.Read(context.Background(), dst)
	want := []float64{0, 0, 3, 4, 5, 6}
	for i := range want {
		if got := dst[i] * 32768; math.Abs(got-want[i]) > 1e-9 {
			t.Fatalf("sample %d: expected %g, got %g", i, want[i], got)
		}
	}
}

func TestTapStopClears(t *testing.T) {
	tap := NewTap(4)
	tap.SetFormat(8000, 1)
	tap.Start()
	tap.Write(pcm(100, 100))
	tap.Stop()
	tap.Start()

	dst := []float64{9, 9}
	tap.Read(context.Background(), dst)
	if dst[0] != 0 || dst[1] != 0 {
		t.Fatalf("expected cleared buffer after restart, got %v", dst)
	}
}

func TestTapReadHonoursContext(t *testing.T) {
	tap := NewTap(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tap.Read(ctx, make([]float64, 2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoopbackStubOrStart(t *testing.T) {
	if LoopbackAvailable {
		t.Skip("portaudio build")
	}
	l := NewLoopback("", 0, zerolog.Nop())
	if _, err := l.Start(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("expected nil stop error, got %v", err)
	}
}

func TestTapWriteDoesNotWaitForReader(t *testing.T) {
	tap := NewTap(8)
	tap.SetFormat(8000, 1)
	tap.Start()
	tap.Write(pcm(100))

	// Hold the ring as a Read in progress would.
	tap.mu.Lock()
	done := make(chan struct{})
	go func() {
		tap.Write(pcm(200, 300))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		tap.mu.Unlock()
		t.Fatal("expected Write to return while the ring is locked")
	}
	tap.mu.Unlock()

	tap.Write(pcm(400))
	dst := make([]float64, 2)
	tap.Read(context.Background(), dst)
	want := []float64{100, 400}
	for i := range want {
		if got := dst[i] * 32768; math.Abs(got-want[i]) > 1e-9 {
			t.Fatalf("sample %d: expected %g, got %g", i, want[i], got)
		}
	}
}

func TestTapStaysFrameAlignedWhileStopped(t *testing.T) {
	tap := NewTap(8)
	tap.SetFormat(44100, 2)
	frame := pcm(3276, 3276)
	tap.Write(frame[:1])
	tap.Start()
	tap.Write(frame[1:])

	dst := make([]float64, 1)
	tap.Read(context.Background(), dst)
	if math.Abs(dst[0]-0.1) > 1e-3 {
		t.Fatalf("expected frame split across start to decode to ~0.1, got %g", dst[0])
	}
}
