package player

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// SeekStep and VolumeStep are the increments used by the key bindings.
	SeekStep   = 5 * time.Second
	VolumeStep = 0.05

	defaultVolume = 0.8
)

// PCMTap observes the exact bytes handed to the audio device.
type PCMTap interface {
	io.Writer
	SetFormat(sampleRate, channels int)
	Reset()
}

// Format describes the file being played.
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
}

func (f Format) String() string {
	return fmt.Sprintf("%s %d Hz %dch", f.Codec, f.SampleRate, f.Channels)
}

// Options configure a Player. The zero value plays without a tap at the
// default volume.
type Options struct {
	Tap    PCMTap
	Volume float64
	Logger *zerolog.Logger
}

// sink is the audio device side of playback. *oto.Player satisfies it.
type sink interface {
	Play()
	Pause()
	SetVolume(float64)
	Close() error
}

// countingReader tracks how many output bytes the device has pulled.
type countingReader struct {
	reader io.Reader
	pos    int64
	mu     sync.Mutex
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.mu.Lock()
	cr.pos += int64(n)
	cr.mu.Unlock()
	return n, err
}

func (cr *countingReader) Pos() int64 {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.pos
}

func (cr *countingReader) SetPos(pos int64) {
	cr.mu.Lock()
	cr.pos = pos
	cr.mu.Unlock()
}

var (
	otoCtx     *oto.Context
	otoOnce    sync.Once
	otoInitErr error
)

func initOto() (*oto.Context, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   outputSampleRate,
			ChannelCount: outputChannels,
			Format:       oto.FormatSignedInt16LE,
		})
		if otoInitErr == nil {
			<-ready
		}
	})
	return otoCtx, otoInitErr
}

// openSink is replaced in tests.
var openSink = func(r io.Reader) (sink, error) {
	ctx, err := initOto()
	if err != nil {
		return nil, fmt.Errorf("opening audio device: %w", err)
	}
	return ctx.NewPlayer(r), nil
}

// Player plays one file.
type Player struct {
	file    *os.File
	decoder io.ReadSeeker
	length  int64
	counter *countingReader
	tap     PCMTap
	out     sink
	format  Format
	log     zerolog.Logger

	duration time.Duration
	volume   float64
	paused   bool
	closed   bool
	done     chan struct{}
	stopMon  chan struct{}
	mu       sync.Mutex
}

// New opens path and starts playing it.
func New(path string, opts Options) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, codec, err := newDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	conv, err := newConverter(dec)
	if err != nil {
		f.Close()
		return nil, err
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	vol := opts.Volume
	if vol <= 0 {
		vol = defaultVolume
	}

	p := &Player{
		file:     f,
		decoder:  conv,
		length:   conv.Length(),
		tap:      opts.Tap,
		duration: bytesToDuration(conv.Length()),
		volume:   clampVolume(vol),
		format:   Format{Codec: codec, SampleRate: dec.SampleRate(), Channels: dec.ChannelCount()},
		log:      logger.With().Str("component", "player").Str("file", path).Logger(),
	}
	p.counter = &countingReader{reader: conv}
	if p.tap != nil {
		p.tap.SetFormat(outputSampleRate, outputChannels)
	}
	if err := p.restartOutput(true); err != nil {
		f.Close()
		return nil, err
	}
	p.log.Info().Stringer("format", p.format).Dur("duration", p.duration).Msg("playing")
	return p, nil
}

func bytesToDuration(n int64) time.Duration {
	return time.Duration(float64(n) / bytesPerSec * float64(time.Second))
}

func clampVolume(v float64) float64 {
	return max(0, min(v, 1))
}

// source is what the device reads: counted bytes, copied into the tap.
func (p *Player) source() io.Reader {
	if p.tap == nil {
		return p.counter
	}
	return io.TeeReader(p.counter, p.tap)
}

// restartOutput replaces the device player so buffered audio from before a
// seek is not heard. The caller holds p.mu, except during construction.
func (p *Player) restartOutput(play bool) error {
	if p.out != nil {
		p.out.Pause()
		p.out.Close()
	}
	out, err := openSink(p.source())
	if err != nil {
		return err
	}
	p.out = out
	p.out.SetVolume(p.volume)
	if p.stopMon == nil || isClosed(p.done) {
		if p.stopMon != nil {
			close(p.stopMon)
		}
		p.done = make(chan struct{})
		p.stopMon = make(chan struct{})
		go p.monitor(p.done, p.stopMon)
	}
	if play {
		p.out.Play()
		p.paused = false
	} else {
		p.paused = true
	}
	return nil
}

func (p *Player) monitor(done, stop chan struct{}) {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		if p.counter.Pos() >= p.length {
			close(done)
			return
		}
	}
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Done closes when the track has been fully handed to the device.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Format reports the source file's codec, rate and channels.
func (p *Player) Format() Format {
	return p.format
}

// Restart seeks to the start and resumes, resetting Done.
func (p *Player) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if p.stopMon != nil {
		close(p.stopMon)
		p.stopMon = nil
	}
	if err := p.seekLocked(0); err != nil {
		return err
	}
	return p.restartOutput(true)
}

// TogglePause toggles between play and pause.
func (p *Player) TogglePause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.paused {
		p.out.Play()
	} else {
		p.out.Pause()
	}
	p.paused = !p.paused
}

// Pause pauses playback without toggling.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out != nil {
		p.out.Pause()
	}
	p.paused = true
}

// Paused returns whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// IsPlaying is true while audio is being produced: not paused, not closed
// and not past the end of the track.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && !p.paused && p.counter.Pos() < p.length
}

// Position returns the current playback position.
func (p *Player) Position() time.Duration {
	return bytesToDuration(p.counter.Pos())
}

// Duration returns the total duration of the track.
func (p *Player) Duration() time.Duration {
	return p.duration
}

// seekOffset clamps cur+delta to [0,total] and aligns it to a frame.
func seekOffset(cur int64, delta time.Duration, total int64) int64 {
	next := cur + int64(delta.Seconds()*bytesPerSec)
	next = max(0, min(next, total))
	return next - next%outputFrameSize
}

// Seek moves playback by delta from the current position.
func (p *Player) Seek(delta time.Duration) error {
	return p.SeekTo(p.Position() + delta)
}

// SeekTo moves playback to an absolute position, keeping the pause state.
func (p *Player) SeekTo(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if err := p.seekLocked(seekOffset(0, pos, p.length)); err != nil {
		return err
	}
	return p.restartOutput(!p.paused)
}

func (p *Player) seekLocked(off int64) error {
	if _, err := p.decoder.Seek(off, io.SeekStart); err != nil {
		p.log.Warn().Err(err).Int64("offset", off).Msg("seek failed")
		return fmt.Errorf("seek: %w", err)
	}
	p.counter.SetPos(off)
	if p.tap != nil {
		p.tap.Reset()
	}
	return nil
}

// Volume returns the current volume in [0,1].
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetVolume sets the volume, clamped to [0,1].
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = clampVolume(v)
	if p.out != nil {
		p.out.SetVolume(p.volume)
	}
}

// AdjustVolume changes the volume by delta.
func (p *Player) AdjustVolume(delta float64) {
	p.mu.Lock()
	v := p.volume + delta
	p.mu.Unlock()
	p.SetVolume(v)
}

// Close stops playback and releases the file. Safe to call twice.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.stopMon != nil {
		close(p.stopMon)
		p.stopMon = nil
	}
	if p.out != nil {
		p.out.Pause()
		p.out.Close()
	}
	if p.file != nil {
		p.file.Close()
	}
}
