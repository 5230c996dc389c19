// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streams

import "io"

// ChunkedFifo stores variable-length records in an existing Fifo.
//
// Each record is a one-byte length followed by that many payload bytes. The
// ChunkedFifo does not own the Fifo; it is a view that keeps records whole.
type ChunkedFifo struct {
	fifo *Fifo
}

// NewChunkedFifo creates a record view over f.
func NewChunkedFifo(f *Fifo) *ChunkedFifo {
	return &ChunkedFifo{fifo: f}
}

// Fifo returns the underlying byte queue
func (c *ChunkedFifo) Fifo() *Fifo {
	return c.fifo
}

// Size returns the occupied bytes of the underlying Fifo, length bytes
// included.
func (c *ChunkedFifo) Size() int {
	return c.fifo.Size()
}

// IsEmpty returns true if no records are buffered
func (c *ChunkedFifo) IsEmpty() bool {
	return c.fifo.IsEmpty()
}

// Fits reports whether a record with an n-byte payload can be written now.
func (c *ChunkedFifo) Fits(n int) bool {
	if n < 0 || n > MaxRecordLength {
		return false
	}
	return 1+n <= c.fifo.Free()
}

// Write stores p as one record. The record is written whole or not at all:
// if it does not fit, ErrChunkOversize is returned and the queue is left
// unchanged.
func (c *ChunkedFifo) Write(p []byte) (int, error) {
	f := c.fifo
	f.cs.enter()
	defer f.cs.exit()
	if len(p) > MaxRecordLength || 1+len(p) > len(f.buf)-f.size {
		return 0, ErrChunkOversize
	}
	f.push(byte(len(p)))
	for _, b := range p {
		f.push(b)
	}
	return len(p), nil
}

// RecordLen returns the payload length of the next record without removing it.
func (c *ChunkedFifo) RecordLen() (int, error) {
	f := c.fifo
	f.cs.enter()
	defer f.cs.exit()
	if f.size == 0 {
		return 0, ErrNoRecord
	}
	return int(f.buf[f.read]), nil
}

// Read removes the next record and copies its payload into p, returning the
// payload length. If p is too small, io.ErrShortBuffer is returned and the
// record stays buffered.
func (c *ChunkedFifo) Read(p []byte) (int, error) {
	f := c.fifo
	f.cs.enter()
	defer f.cs.exit()
	if f.size == 0 {
		return 0, ErrNoRecord
	}
	n := int(f.buf[f.read])
	if 1+n > f.size {
		// Only reachable if someone wrote to the Fifo directly.
		return 0, ErrNoRecord
	}
	if len(p) < n {
		return 0, io.ErrShortBuffer
	}
	f.skip(1)
	for i := 0; i < n; i++ {
		p[i] = f.pop()
	}
	return n, nil
}

// Records returns the number of complete records buffered
func (c *ChunkedFifo) Records() int {
	f := c.fifo
	f.cs.enter()
	defer f.cs.exit()
	count := 0
	for offset := 0; offset < f.size; {
		n := int(f.buf[f.index(offset)])
		if offset+1+n > f.size {
			break
		}
		offset += 1 + n
		count++
	}
	return count
}
