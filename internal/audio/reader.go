package audio

import "sync"

// BlockReader adapts a fixed-size float32 block generator to io.Reader,
// serving little-endian float32 bytes in whatever sizes the caller asks
// for. Pull-style players (oto) read from it.
type BlockReader struct {
	mu      sync.Mutex
	fn      func([]float32)
	block   []float32
	pos     int // next unread sample in block
	stopped bool
}

// NewBlockReader calls fn to refill a block of size samples whenever the
// previous one has been read.
func NewBlockReader(size int, fn func([]float32)) *BlockReader {
	return &BlockReader{fn: fn, block: make([]float32, size), pos: size}
}

// Read fills p with whole samples. After Halt it returns silence and fn is
// no longer called.
func (r *BlockReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p) / 4 * 4
	if r.stopped {
		clear(p[:n])
		return n, nil
	}
	for off := 0; off < n; {
		if r.pos == len(r.block) {
			r.fn(r.block)
			r.pos = 0
		}
		k := min(len(r.block)-r.pos, (n-off)/4)
		Float32ToBytesInto(r.block[r.pos:r.pos+k], p[off:])
		r.pos += k
		off += k * 4
	}
	return n, nil
}

// Halt stops further calls to fn. A Read in progress finishes first.
func (r *BlockReader) Halt() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}
