package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	outputSampleRate = 44100
	outputChannels   = 2
	outputFrameSize  = outputChannels * 2
	bytesPerSec      = outputSampleRate * outputFrameSize
)

// converter presents any decoder as 44.1 kHz stereo s16le, which is what
// the shared oto context was opened with. Mono is duplicated into both
// channels and other rates are linearly interpolated.
type converter struct {
	src      audioDecoder
	direct   bool
	srcRate  int
	srcChans int
	step     float64 // source frames per output frame

	length    int64 // output bytes
	outFrames int64
	outPos    int64 // output frames emitted

	srcBuf  []byte
	srcHead int
	srcEOF  bool

	prev, cur [outputChannels]int
	phase     float64
	primed    bool
}

func newConverter(src audioDecoder) (*converter, error) {
	rate, chans := src.SampleRate(), src.ChannelCount()
	if rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, rate)
	}
	if chans < 1 || chans > outputChannels {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, chans)
	}

	srcFrames := src.Length() / int64(chans*2)
	c := &converter{
		src:      src,
		direct:   rate == outputSampleRate && chans == outputChannels,
		srcRate:  rate,
		srcChans: chans,
		step:     float64(rate) / outputSampleRate,
	}
	c.outFrames = srcFrames * outputSampleRate / int64(rate)
	if c.direct {
		c.outFrames = srcFrames
	}
	c.length = c.outFrames * outputFrameSize
	return c, nil
}

func (c *converter) Length() int64 { return c.length }

func (c *converter) Read(p []byte) (int, error) {
	if c.direct {
		return c.src.Read(p)
	}
	if c.outPos >= c.outFrames {
		return 0, io.EOF
	}
	if !c.primed {
		if err := c.prime(); err != nil {
			return 0, err
		}
	}

	frames := min(int64(len(p)/outputFrameSize), c.outFrames-c.outPos)
	if frames == 0 {
		return 0, io.ErrShortBuffer
	}
	for i := range int(frames) {
		for c.phase >= 1 {
			c.advance()
			c.phase--
		}
		off := i * outputFrameSize
		for ch := range outputChannels {
			v := float64(c.prev[ch]) + float64(c.cur[ch]-c.prev[ch])*c.phase
			putSample(p[off+2*ch:], int(v))
		}
		c.phase += c.step
	}
	c.outPos += frames
	return int(frames) * outputFrameSize, nil
}

func (c *converter) prime() error {
	f, err := c.nextFrame()
	if err != nil {
		return err
	}
	c.prev = f
	c.cur = f
	c.advance()
	c.primed = true
	return nil
}

// advance shifts the interpolation window by one source frame, holding the
// last frame once the source is exhausted.
func (c *converter) advance() {
	c.prev = c.cur
	if f, err := c.nextFrame(); err == nil {
		c.cur = f
	}
}

func (c *converter) nextFrame() ([outputChannels]int, error) {
	var out [outputChannels]int
	size := c.srcChans * 2
	if len(c.srcBuf)-c.srcHead < size {
		if err := c.fill(size); err != nil {
			return out, err
		}
	}
	b := c.srcBuf[c.srcHead:]
	for ch := range outputChannels {
		in := min(ch, c.srcChans-1)
		out[ch] = int(int16(binary.LittleEndian.Uint16(b[2*in:])))
	}
	c.srcHead += size
	return out, nil
}

func (c *converter) fill(size int) error {
	if c.srcEOF {
		return io.EOF
	}
	var rest int
	remain := c.srcBuf[c.srcHead:]
	if want := max(4096, size); cap(c.srcBuf) < want {
		buf := make([]byte, want)
		rest = copy(buf, remain)
		c.srcBuf = buf
	} else {
		c.srcBuf = c.srcBuf[:cap(c.srcBuf)]
		rest = copy(c.srcBuf, remain)
	}
	c.srcHead = 0
	for rest < size {
		n, err := c.src.Read(c.srcBuf[rest:])
		rest += n
		if err != nil {
			c.srcBuf = c.srcBuf[:rest]
			if errors.Is(err, io.EOF) {
				c.srcEOF = true
				if rest >= size {
					return nil
				}
				return io.EOF
			}
			return err
		}
		if n == 0 {
			break
		}
	}
	c.srcBuf = c.srcBuf[:rest]
	if rest < size {
		return io.EOF
	}
	return nil
}

// Seek takes an offset in output bytes.
func (c *converter) Seek(offset int64, whence int) (int64, error) {
	if c.direct {
		return c.src.Seek(offset, whence)
	}
	var next int64
	switch whence {
	case io.SeekCurrent:
		next = c.outPos*outputFrameSize + offset
	case io.SeekEnd:
		next = c.length + offset
	default:
		next = offset
	}
	next = max(0, min(next, c.length))
	frame := next / outputFrameSize

	srcFrame := frame * int64(c.srcRate) / outputSampleRate
	if _, err := c.src.Seek(srcFrame*int64(c.srcChans*2), io.SeekStart); err != nil {
		return c.outPos * outputFrameSize, err
	}
	c.outPos = frame
	c.srcBuf = c.srcBuf[:0]
	c.srcHead = 0
	c.srcEOF = false
	c.primed = false
	c.phase = 0
	return frame * outputFrameSize, nil
}
