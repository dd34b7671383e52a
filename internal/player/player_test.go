package player

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes a 16-bit sine tone and returns its path.
func writeWAV(t *testing.T, rate, channels int, secs float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	frames := int(float64(rate) * secs)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           make([]int, frames*channels),
	}
	for i := range frames {
		v := int(16000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for ch := range channels {
			buf.Data[i*channels+ch] = v
		}
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	return path
}

type fakeSink struct {
	mu      sync.Mutex
	r       io.Reader
	playing bool
	volume  float64
	closed  bool
}

func (s *fakeSink) Play()               { s.mu.Lock(); s.playing = true; s.mu.Unlock() }
func (s *fakeSink) Pause()              { s.mu.Lock(); s.playing = false; s.mu.Unlock() }
func (s *fakeSink) SetVolume(v float64) { s.mu.Lock(); s.volume = v; s.mu.Unlock() }
func (s *fakeSink) Close() error        { s.mu.Lock(); s.closed = true; s.mu.Unlock(); return nil }

// drain reads everything the player would hand to the device.
func (s *fakeSink) drain(t *testing.T) []byte {
	t.Helper()
	data, err := io.ReadAll(s.r)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	return data
}

func useFakeSinks(t *testing.T) *[]*fakeSink {
	t.Helper()
	var sinks []*fakeSink
	orig := openSink
	openSink = func(r io.Reader) (sink, error) {
		s := &fakeSink{r: r}
		sinks = append(sinks, s)
		return s, nil
	}
	t.Cleanup(func() { openSink = orig })
	return &sinks
}

type recordingTap struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	rate     int
	channels int
	resets   int
}

func (r *recordingTap) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *recordingTap) SetFormat(rate, channels int) {
	r.rate, r.channels = rate, channels
}

func (r *recordingTap) Reset() {
	r.mu.Lock()
	r.resets++
	r.mu.Unlock()
}

func TestNewReportsFormatAndDuration(t *testing.T) {
	useFakeSinks(t)
	p, err := New(writeWAV(t, 22050, 1, 1), Options{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer p.Close()

	want := Format{Codec: "wav", SampleRate: 22050, Channels: 1}
	if p.Format() != want {
		t.Fatalf("expected format %v, got %v", want, p.Format())
	}
	if d := p.Duration(); d < 990*time.Millisecond || d > 1010*time.Millisecond {
		t.Fatalf("expected ~1s duration, got %v", d)
	}
	if !p.IsPlaying() {
		t.Fatal("expected new player to be playing")
	}
	if p.Volume() != defaultVolume {
		t.Fatalf("expected default volume %g, got %g", defaultVolume, p.Volume())
	}
}

func TestPlaybackFeedsTapAndFinishes(t *testing.T) {
	sinks := useFakeSinks(t)
	tap := &recordingTap{}
	p, err := New(writeWAV(t, 44100, 2, 0.25), Options{Tap: tap})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer p.Close()

	if tap.rate != 44100 || tap.channels != 2 {
		t.Fatalf("expected tap format 44100/2, got %d/%d", tap.rate, tap.channels)
	}
	played := (*sinks)[0].drain(t)
	if !bytes.Equal(played, tap.buf.Bytes()) {
		t.Fatalf("expected tap to see the device bytes, got %d vs %d", tap.buf.Len(), len(played))
	}
	if int64(len(played)) != p.length {
		t.Fatalf("expected %d bytes, got %d", p.length, len(played))
	}

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected Done to close after the track was drained")
	}
	if p.IsPlaying() {
		t.Fatal("expected finished player to report not playing")
	}
}

func TestResampledOutputLength(t *testing.T) {
	sinks := useFakeSinks(t)
	p, err := New(writeWAV(t, 22050, 1, 0.5), Options{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer p.Close()

	played := (*sinks)[0].drain(t)
	wantFrames := 22050 / 2 * 2
	if got := len(played) / outputFrameSize; got != wantFrames {
		t.Fatalf("expected %d output frames, got %d", wantFrames, got)
	}
}

func TestSeekOffsetClampsAndAligns(t *testing.T) {
	if got := seekOffset(0, -time.Second, 1000); got != 0 {
		t.Fatalf("expected negative seek to clamp to 0, got %d", got)
	}
	if got := seekOffset(0, time.Hour, 1003); got != 1000 {
		t.Fatalf("expected clamp to aligned end 1000, got %d", got)
	}
	if got := seekOffset(400, 0, 1000); got%outputFrameSize != 0 {
		t.Fatalf("expected frame aligned offset, got %d", got)
	}
}

func TestSeekKeepsPauseStateAndResetsTap(t *testing.T) {
	sinks := useFakeSinks(t)
	tap := &recordingTap{}
	p, err := New(writeWAV(t, 44100, 2, 2), Options{Tap: tap})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer p.Close()

	p.TogglePause()
	if err := p.SeekTo(time.Second); err != nil {
		t.Fatalf("SeekTo returned error: %v", err)
	}
	if !p.Paused() {
		t.Fatal("expected seek to keep paused state")
	}
	if got := p.Position(); got != time.Second {
		t.Fatalf("expected position 1s, got %v", got)
	}
	if tap.resets != 1 {
		t.Fatalf("expected one tap reset, got %d", tap.resets)
	}
	if len(*sinks) != 2 || !(*sinks)[0].closed {
		t.Fatalf("expected seek to replace the device player, got %d sinks", len(*sinks))
	}

	if err := p.Seek(-5 * time.Second); err != nil {
		t.Fatalf("Seek returned error: %v", err)
	}
	if p.Position() != 0 {
		t.Fatalf("expected seek past start to clamp to 0, got %v", p.Position())
	}
}

func TestVolumeClamps(t *testing.T) {
	sinks := useFakeSinks(t)
	p, err := New(writeWAV(t, 44100, 2, 0.1), Options{Volume: 0.5})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer p.Close()

	p.AdjustVolume(0.7)
	if p.Volume() != 1 {
		t.Fatalf("expected volume to clamp at 1, got %g", p.Volume())
	}
	p.SetVolume(-3)
	if p.Volume() != 0 || (*sinks)[0].volume != 0 {
		t.Fatalf("expected volume 0 on player and device, got %g/%g", p.Volume(), (*sinks)[0].volume)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	useFakeSinks(t)
	p, err := New(writeWAV(t, 44100, 2, 0.1), Options{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	p.Close()
	p.Close()
	if p.IsPlaying() {
		t.Fatal("expected closed player to report not playing")
	}
}

func TestUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(path, []byte("hello"), 0o644)
	if _, _, err := Probe(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if SupportedExt(".TXT") || !SupportedExt(".FLAC") {
		t.Fatal("unexpected SupportedExt result")
	}
}

func TestProbeAndMetadataFallback(t *testing.T) {
	path := writeWAV(t, 8000, 1, 0.5)
	d, f, err := Probe(path)
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if f.SampleRate != 8000 || d < 490*time.Millisecond || d > 510*time.Millisecond {
		t.Fatalf("unexpected probe result %v %v", d, f)
	}
	if m := ReadMetadata(path); m.Title != "tone" {
		t.Fatalf("expected filename title fallback, got %q", m.Title)
	}
}
