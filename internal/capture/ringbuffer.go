package capture

// ringBuffer is a fixed-capacity circular buffer of mono samples. It is not
// safe for concurrent use; callers hold their own lock.
type ringBuffer struct {
	buf  []float64
	size int
	w    int // write position
	len  int // current fill level
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		buf:  make([]float64, size),
		size: size,
	}
}

// write appends one sample, overwriting the oldest when full.
func (rb *ringBuffer) write(v float64) {
	rb.buf[rb.w] = v
	rb.w = (rb.w + 1) % rb.size
	if rb.len < rb.size {
		rb.len++
	}
}

// latest copies the newest len(dst) samples into dst, oldest first. When
// fewer samples are buffered the front of dst is zeroed.
func (rb *ringBuffer) latest(dst []float64) {
	n := min(len(dst), rb.len)
	pad := len(dst) - n
	clear(dst[:pad])
	start := (rb.w - n + rb.size) % rb.size
	for i := range n {
		dst[pad+i] = rb.buf[(start+i)%rb.size]
	}
}

// clear resets the buffer.
func (rb *ringBuffer) clear() {
	rb.w = 0
	rb.len = 0
}
