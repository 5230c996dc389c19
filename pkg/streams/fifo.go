// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streams

// Fifo is a fixed-capacity ring buffer of bytes.
//
// The backing array is allocated once by NewFifo and never resized. Writes to
// a full queue are rejected rather than overwriting old bytes. A Fifo is safe
// for one producer and one consumer running concurrently.
type Fifo struct {
	cs    criticalSection
	buf   []byte
	read  int // Next position to read
	write int // Next position to write
	size  int // Occupied count
}

// NewFifo creates a Fifo holding at most capacity bytes.
// Panics if capacity is not positive.
func NewFifo(capacity int) *Fifo {
	if capacity <= 0 {
		panic("streams: fifo capacity must be positive")
	}
	return &Fifo{buf: make([]byte, capacity)}
}

// Cap returns the fixed capacity of the queue
func (f *Fifo) Cap() int {
	return len(f.buf)
}

// Size returns the number of occupied bytes
func (f *Fifo) Size() int {
	f.cs.enter()
	defer f.cs.exit()
	return f.size
}

// Free returns the number of bytes that can still be written
func (f *Fifo) Free() int {
	f.cs.enter()
	defer f.cs.exit()
	return len(f.buf) - f.size
}

// IsEmpty returns true if no bytes are buffered
func (f *Fifo) IsEmpty() bool {
	return f.Size() == 0
}

// IsFull returns true if no more bytes can be written
func (f *Fifo) IsFull() bool {
	return f.Free() == 0
}

// WriteByte appends b, or returns ErrQueueFull without modifying the queue.
func (f *Fifo) WriteByte(b byte) error {
	f.cs.enter()
	defer f.cs.exit()
	if f.size == len(f.buf) {
		return ErrQueueFull
	}
	f.push(b)
	return nil
}

// Write appends as many bytes of p as fit. If not all of p fits, the number
// of bytes written is returned together with ErrQueueFull.
func (f *Fifo) Write(p []byte) (int, error) {
	f.cs.enter()
	defer f.cs.exit()
	n := 0
	for _, b := range p {
		if f.size == len(f.buf) {
			return n, ErrQueueFull
		}
		f.push(b)
		n++
	}
	return n, nil
}

// WriteString is like Write but takes a string.
func (f *Fifo) WriteString(s string) (int, error) {
	f.cs.enter()
	defer f.cs.exit()
	for i := 0; i < len(s); i++ {
		if f.size == len(f.buf) {
			return i, ErrQueueFull
		}
		f.push(s[i])
	}
	return len(s), nil
}

// ReadByte removes and returns the oldest byte, or ErrQueueEmpty.
func (f *Fifo) ReadByte() (byte, error) {
	f.cs.enter()
	defer f.cs.exit()
	if f.size == 0 {
		return 0, ErrQueueEmpty
	}
	return f.pop(), nil
}

// Read removes up to len(p) bytes into p. It returns ErrQueueEmpty when
// nothing is buffered.
func (f *Fifo) Read(p []byte) (int, error) {
	f.cs.enter()
	defer f.cs.exit()
	if f.size == 0 && len(p) > 0 {
		return 0, ErrQueueEmpty
	}
	n := 0
	for n < len(p) && f.size > 0 {
		p[n] = f.pop()
		n++
	}
	return n, nil
}

// Peek returns the byte at offset from the head without removing it.
func (f *Fifo) Peek(offset int) (byte, error) {
	f.cs.enter()
	defer f.cs.exit()
	if offset < 0 || offset >= f.size {
		return 0, ErrOutOfRange
	}
	return f.buf[f.index(offset)], nil
}

// Discard removes up to n bytes from the head and returns how many were
// removed. If fewer than n bytes were buffered, ErrQueueEmpty is returned
// alongside the count. A non-positive n removes nothing.
func (f *Fifo) Discard(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	f.cs.enter()
	defer f.cs.exit()
	if n <= f.size {
		f.skip(n)
		return n, nil
	}
	discarded := f.size
	f.skip(discarded)
	return discarded, ErrQueueEmpty
}

// Reset empties the queue
func (f *Fifo) Reset() {
	f.cs.enter()
	defer f.cs.exit()
	f.read = 0
	f.write = 0
	f.size = 0
}

// AppendTo appends the buffered bytes, oldest first, to dst without
// consuming them.
func (f *Fifo) AppendTo(dst []byte) []byte {
	f.cs.enter()
	defer f.cs.exit()
	for i := 0; i < f.size; i++ {
		dst = append(dst, f.buf[f.index(i)])
	}
	return dst
}

// push, pop, skip and index must be called inside the critical section.

func (f *Fifo) push(b byte) {
	f.buf[f.write] = b
	f.write++
	if f.write == len(f.buf) {
		f.write = 0
	}
	f.size++
}

func (f *Fifo) pop() byte {
	b := f.buf[f.read]
	f.skip(1)
	return b
}

func (f *Fifo) skip(n int) {
	if n <= 0 {
		return
	}
	f.read = (f.read + n) % len(f.buf)
	f.size -= n
}

func (f *Fifo) index(offset int) int {
	i := f.read + offset
	if i >= len(f.buf) {
		i -= len(f.buf)
	}
	return i
}
