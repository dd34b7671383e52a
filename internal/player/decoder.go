package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// ErrUnsupportedFormat is returned for files no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// audioDecoder yields interleaved s16le PCM at the file's own sample rate
// and channel count. Offsets passed to Seek are in those output bytes.
type audioDecoder interface {
	io.ReadSeeker
	Length() int64
	SampleRate() int
	ChannelCount() int
}

// SupportedExt reports whether files with extension ext can be played.
func SupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".wav", ".flac", ".ogg":
		return true
	}
	return false
}

func newDecoder(f *os.File) (audioDecoder, string, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	var (
		dec audioDecoder
		err error
	)
	switch ext {
	case ".mp3":
		dec, err = newMP3Decoder(f)
	case ".wav":
		dec, err = newWAVDecoder(f)
	case ".flac":
		dec, err = newFLACDecoder(f)
	case ".ogg":
		dec, err = newOGGDecoder(f)
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, "", err
	}
	if dec.SampleRate() <= 0 || dec.ChannelCount() < 1 {
		return nil, "", fmt.Errorf("%w: %d Hz, %d channels", ErrUnsupportedFormat, dec.SampleRate(), dec.ChannelCount())
	}
	return dec, strings.TrimPrefix(ext, "."), nil
}

// pcmState is the bookkeeping shared by the frame-based decoders: a
// carry-over of converted bytes, the output position and the output length.
type pcmState struct {
	pending []byte
	pos     int64
	total   int64
	frame   int64
}

// drain copies carried-over bytes into p.
func (s *pcmState) drain(p []byte) int {
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	s.pos += int64(n)
	return n
}

// emit copies raw into p and carries the rest.
func (s *pcmState) emit(p, raw []byte) int {
	n := copy(p, raw)
	s.pending = raw[n:]
	s.pos += int64(n)
	return n
}

// target resolves a Seek request to a frame-aligned output offset.
func (s *pcmState) target(offset int64, whence int) int64 {
	var next int64
	switch whence {
	case io.SeekCurrent:
		next = s.pos + offset
	case io.SeekEnd:
		next = s.total + offset
	default:
		next = offset
	}
	next = max(0, min(next, s.total))
	return next - next%s.frame
}

func (s *pcmState) landed(pos int64) {
	s.pending = nil
	s.pos = pos
}

func putSample(dst []byte, v int) {
	v = max(-32768, min(v, 32767))
	binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
}

// mp3

type mp3Decoder struct {
	*mp3.Decoder
}

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	return &mp3Decoder{dec}, nil
}

// go-mp3 always produces 16-bit stereo.
func (d *mp3Decoder) ChannelCount() int { return 2 }

// wav

type wavDecoder struct {
	pcmState
	file     *os.File
	dataAt   int64
	channels int
	rate     int
	depth    int
	scratch  []byte
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("decoding WAV: invalid file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("decoding WAV: %w", err)
	}
	depth := int(dec.BitDepth)
	switch depth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, depth)
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: WAV format tag %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
	dataAt, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("decoding WAV: %w", err)
	}

	channels := int(dec.NumChans)
	srcFrame := int64(channels * depth / 8)
	frames := dec.PCMLen() / srcFrame
	return &wavDecoder{
		pcmState: pcmState{total: frames * int64(channels) * 2, frame: int64(channels) * 2},
		file:     f,
		dataAt:   dataAt,
		channels: channels,
		rate:     int(dec.SampleRate),
		depth:    depth,
	}, nil
}

func (d *wavDecoder) sample(b []byte) int {
	switch d.depth {
	case 8:
		return (int(b[0]) - 128) << 8
	case 16:
		return int(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return int(v >> 8)
	default:
		return int(int32(binary.LittleEndian.Uint32(b)) >> 16)
	}
}

func (d *wavDecoder) Read(p []byte) (int, error) {
	if len(d.pending) > 0 {
		return d.drain(p), nil
	}
	if d.pos >= d.total {
		return 0, io.EOF
	}

	width := d.depth / 8
	samples := max(len(p)/2, 1)
	samples = min(samples, int(d.total-d.pos)/2)
	need := samples * width
	if cap(d.scratch) < need {
		d.scratch = make([]byte, need)
	}
	src := d.scratch[:need]
	n, err := io.ReadFull(d.file, src)
	got := n / width
	if got == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return 0, err
	}

	raw := make([]byte, got*2)
	for i := range got {
		putSample(raw[2*i:], d.sample(src[i*width:]))
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return d.emit(p, raw), err
}

func (d *wavDecoder) Seek(offset int64, whence int) (int64, error) {
	next := d.target(offset, whence)
	srcAt := next / d.frame * int64(d.channels*d.depth/8)
	if _, err := d.file.Seek(d.dataAt+srcAt, io.SeekStart); err != nil {
		return d.pos, err
	}
	d.landed(next)
	return next, nil
}

func (d *wavDecoder) Length() int64     { return d.total }
func (d *wavDecoder) SampleRate() int   { return d.rate }
func (d *wavDecoder) ChannelCount() int { return d.channels }

// flac

type flacDecoder struct {
	pcmState
	stream   *flac.Stream
	rate     int
	channels int
	shift    int
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.NewSeek(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	channels := int(info.NChannels)
	return &flacDecoder{
		pcmState: pcmState{total: int64(info.NSamples) * int64(channels) * 2, frame: int64(channels) * 2},
		stream:   stream,
		rate:     int(info.SampleRate),
		channels: channels,
		shift:    int(info.BitsPerSample) - 16,
	}, nil
}

func (d *flacDecoder) Read(p []byte) (int, error) {
	if len(d.pending) > 0 {
		return d.drain(p), nil
	}
	frame, err := d.stream.ParseNext()
	if err != nil {
		return 0, err
	}

	n := int(frame.Subframes[0].NSamples)
	raw := make([]byte, n*d.channels*2)
	for i := range n {
		for ch := range d.channels {
			v := int(frame.Subframes[ch].Samples[i])
			if d.shift > 0 {
				v >>= d.shift
			} else {
				v <<= -d.shift
			}
			putSample(raw[(i*d.channels+ch)*2:], v)
		}
	}
	return d.emit(p, raw), nil
}

func (d *flacDecoder) Seek(offset int64, whence int) (int64, error) {
	next := d.target(offset, whence)
	if _, err := d.stream.Seek(uint64(next / d.frame)); err != nil {
		return d.pos, err
	}
	d.landed(next)
	return next, nil
}

func (d *flacDecoder) Length() int64     { return d.total }
func (d *flacDecoder) SampleRate() int   { return d.rate }
func (d *flacDecoder) ChannelCount() int { return d.channels }

// ogg vorbis

type oggDecoder struct {
	pcmState
	reader  *oggvorbis.Reader
	scratch []float32
}

func newOGGDecoder(f *os.File) (*oggDecoder, error) {
	r, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	channels := int64(r.Channels())
	return &oggDecoder{
		pcmState: pcmState{total: r.Length() * channels * 2, frame: channels * 2},
		reader:   r,
	}, nil
}

func (d *oggDecoder) Read(p []byte) (int, error) {
	if len(d.pending) > 0 {
		return d.drain(p), nil
	}
	want := max(len(p)/2, d.reader.Channels())
	if cap(d.scratch) < want {
		d.scratch = make([]float32, want)
	}
	n, err := d.reader.Read(d.scratch[:want])
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	raw := make([]byte, n*2)
	for i, s := range d.scratch[:n] {
		putSample(raw[2*i:], int(s*32767))
	}
	return d.emit(p, raw), err
}

func (d *oggDecoder) Seek(offset int64, whence int) (int64, error) {
	next := d.target(offset, whence)
	if err := d.reader.SetPosition(next / d.frame); err != nil {
		return d.pos, err
	}
	d.landed(next)
	return next, nil
}

func (d *oggDecoder) Length() int64     { return d.total }
func (d *oggDecoder) SampleRate() int   { return d.reader.SampleRate() }
func (d *oggDecoder) ChannelCount() int { return d.reader.Channels() }
