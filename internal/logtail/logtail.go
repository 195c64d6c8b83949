package logtail

// DefaultCapacity is the line buffer size used when none is given.
const DefaultCapacity = 4096

// Terminator ends a log line.
const Terminator = '\n'

// Assembler turns a byte-at-a-time stream into bounded lines.
//
// Push must be called from a single goroutine. The slice handed to emit
// aliases the internal buffer and is only valid for the duration of the call.
type Assembler struct {
	buf  []byte
	emit func(line []byte)
}

// NewAssembler returns an Assembler that flushes to emit whenever a
// terminator arrives or capacity bytes are buffered.
func NewAssembler(capacity int, emit func(line []byte)) *Assembler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if emit == nil {
		emit = func([]byte) {}
	}
	return &Assembler{
		buf:  make([]byte, 0, capacity),
		emit: emit,
	}
}

// Push appends b and flushes when b is a terminator or the buffer is full.
func (a *Assembler) Push(b byte) {
	a.buf = append(a.buf, b)
	if b == Terminator || len(a.buf) >= cap(a.buf) {
		a.emit(a.buf)
		a.buf = a.buf[:0]
	}
}

// Write pushes every byte of p in order. It never fails.
func (a *Assembler) Write(p []byte) (int, error) {
	for _, b := range p {
		a.Push(b)
	}
	return len(p), nil
}

// Len reports how many bytes are waiting for a terminator.
func (a *Assembler) Len() int {
	return len(a.buf)
}

// Cap reports the line capacity.
func (a *Assembler) Cap() int {
	return cap(a.buf)
}

// Discard drops any partial line and returns the number of bytes dropped.
func (a *Assembler) Discard() int {
	n := len(a.buf)
	a.buf = a.buf[:0]
	return n
}
