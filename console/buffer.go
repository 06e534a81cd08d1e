package console

// fifo is a circular byte buffer between the serial reader and the frame
// parser. One slot is kept free to tell full from empty.
type fifo struct {
	buf   []byte
	read  int
	write int
	size  int
}

func newFifo(capacity int) *fifo {
	return &fifo{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data and returns the number of bytes stored.
func (f *fifo) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// Pop removes the oldest byte.
func (f *fifo) Pop() (byte, bool) {
	if f.read == f.write {
		return 0, false
	}
	b := f.buf[f.read]
	f.read = (f.read + 1) % f.size
	return b, true
}

// Available returns the number of bytes waiting to be read.
func (f *fifo) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes that can still be written.
func (f *fifo) Free() int {
	return f.size - f.Available() - 1
}

func (f *fifo) Reset() {
	f.read = 0
	f.write = 0
}
