// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streams

import "encoding/binary"

// maxScalarSize bounds the scratch space used to decode a Scalar field
const maxScalarSize = 64

// Matcher is one element of a Format.
//
// The set of matchers is closed: Token, TokenBytes, Scalar, ScalarOrder,
// Chunk and Format itself. A matcher is walked twice per match: match
// classifies the bytes without side effects, apply repeats the same walk
// and populates the bound fields once the whole format is known to match.
type Matcher interface {
	match(c *cursor) Outcome
	apply(c *cursor, r *Result)
}

// cursor walks the queue from its head without consuming anything.
// avail is the occupied count when the walk started, so bytes appended by a
// producer mid-walk are only seen by the next Scan.
type cursor struct {
	src   *Fifo
	pos   int
	avail int
}

func (c *cursor) peek() (byte, bool) {
	if c.pos >= c.avail {
		return 0, false
	}
	b, err := c.src.Peek(c.pos)
	if err != nil {
		return 0, false
	}
	return b, true
}

func (c *cursor) next() (byte, bool) {
	b, ok := c.peek()
	if ok {
		c.pos++
	}
	return b, ok
}

func (c *cursor) remaining() int {
	return c.avail - c.pos
}

//////////////////////////////////////////////////////////////
// Token
//////////////////////////////////////////////////////////////

type token struct {
	lit []byte
}

// Token matches the exact literal byte sequence lit.
// Panics if lit is empty.
func Token(lit string) Matcher {
	return TokenBytes([]byte(lit)...)
}

// TokenBytes matches the exact literal bytes lit.
// Panics if lit is empty.
func TokenBytes(lit ...byte) Matcher {
	if len(lit) == 0 {
		panic("streams: empty token")
	}
	return token{lit: append([]byte(nil), lit...)}
}

func (t token) match(c *cursor) Outcome {
	for _, want := range t.lit {
		b, ok := c.peek()
		if !ok {
			return Pending
		}
		if b != want {
			return Failed
		}
		c.pos++
	}
	return Matched
}

func (t token) apply(c *cursor, _ *Result) {
	c.pos += len(t.lit)
}

//////////////////////////////////////////////////////////////
// Scalar
//////////////////////////////////////////////////////////////

type scalar[T any] struct {
	dst   *T
	size  int
	order binary.ByteOrder
}

// Scalar copies the next binary.Size(T) bytes into *dst, little-endian,
// without validating them. T must be a fixed-size type.
func Scalar[T any](dst *T) Matcher {
	return ScalarOrder(dst, binary.LittleEndian)
}

// ScalarOrder is like Scalar with an explicit byte order.
func ScalarOrder[T any](dst *T, order binary.ByteOrder) Matcher {
	if dst == nil {
		panic("streams: nil scalar destination")
	}
	size := binary.Size(dst)
	if size <= 0 || size > maxScalarSize {
		panic("streams: scalar destination must be a fixed-size type")
	}
	return scalar[T]{dst: dst, size: size, order: order}
}

func (s scalar[T]) match(c *cursor) Outcome {
	if c.remaining() < s.size {
		c.pos = c.avail
		return Pending
	}
	c.pos += s.size
	return Matched
}

func (s scalar[T]) apply(c *cursor, _ *Result) {
	var scratch [maxScalarSize]byte
	for i := 0; i < s.size; i++ {
		scratch[i], _ = c.next()
	}
	// Cannot fail: the size was checked against binary.Size at construction.
	_, _ = binary.Decode(scratch[:s.size], s.order, s.dst)
}

//////////////////////////////////////////////////////////////
// Chunk
//////////////////////////////////////////////////////////////

type chunk struct {
	dst *ChunkedFifo
	sep Matcher
}

// Chunk matches a decimal ASCII length, the separator sep, then that many
// raw payload bytes, which are stored as one record into dst. A nil sep means
// the payload follows the length directly.
//
// If the record does not fit dst, the payload is still consumed from the
// source so framing stays intact, dst is left unchanged and the match
// reports it in Result.Oversize.
func Chunk(dst *ChunkedFifo, sep Matcher) Matcher {
	if dst == nil {
		panic("streams: nil chunk destination")
	}
	return chunk{dst: dst, sep: sep}
}

// readLength consumes the decimal length digits. It stops at the first
// non-digit without consuming it and needs at least one digit.
func readLength(c *cursor) (int, Outcome) {
	value := 0
	digits := 0
	for {
		b, ok := c.peek()
		if !ok {
			return 0, Pending
		}
		if b < '0' || b > '9' {
			break
		}
		c.pos++
		digits++
		value = value*10 + int(b-'0')
		if value > MaxChunkLength {
			return 0, Failed
		}
	}
	if digits == 0 {
		return 0, Failed
	}
	return value, Matched
}

func (ch chunk) match(c *cursor) Outcome {
	length, o := readLength(c)
	if o != Matched {
		return o
	}
	if ch.sep != nil {
		if o := ch.sep.match(c); o != Matched {
			return o
		}
	}
	if c.remaining() < length {
		c.pos = c.avail
		return Pending
	}
	c.pos += length
	return Matched
}

func (ch chunk) apply(c *cursor, r *Result) {
	length, _ := readLength(c)
	if ch.sep != nil {
		ch.sep.apply(c, r)
	}
	if !ch.dst.Fits(length) {
		c.pos += length
		r.Oversize++
		return
	}
	var scratch [MaxRecordLength]byte
	for i := 0; i < length; i++ {
		scratch[i], _ = c.next()
	}
	if _, err := ch.dst.Write(scratch[:length]); err != nil {
		r.Oversize++
	}
}

//////////////////////////////////////////////////////////////
// Format
//////////////////////////////////////////////////////////////

// Format is an immutable, ordered list of matchers describing one complete
// message shape. A Format is itself a Matcher, so it can be used as a Chunk
// separator.
type Format struct {
	matchers []Matcher
}

// NewFormat composes matchers into a Format.
// Panics if no matchers are given or one of them is nil.
func NewFormat(matchers ...Matcher) Format {
	if len(matchers) == 0 {
		panic("streams: empty format")
	}
	for _, m := range matchers {
		if m == nil {
			panic("streams: nil matcher in format")
		}
	}
	return Format{matchers: append([]Matcher(nil), matchers...)}
}

// Len returns the number of matchers in the format
func (f Format) Len() int {
	return len(f.matchers)
}

// Probe classifies the format against the head of src without consuming
// bytes or touching bound fields. It returns the outcome and the number of
// bytes walked: the match length for Matched, the bytes accepted before the
// mismatch for Failed, or the bytes available for Pending.
func (f Format) Probe(src *Fifo) (Outcome, int) {
	c := cursor{src: src, avail: src.Size()}
	o := f.match(&c)
	return o, c.pos
}

func (f Format) match(c *cursor) Outcome {
	for _, m := range f.matchers {
		if o := m.match(c); o != Matched {
			return o
		}
	}
	return Matched
}

func (f Format) apply(c *cursor, r *Result) {
	for _, m := range f.matchers {
		m.apply(c, r)
	}
}
