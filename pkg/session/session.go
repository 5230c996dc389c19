// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session runs a scan profile against a live byte stream.
package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/framescan/pkg/logging"
	"github.com/Thermoquad/framescan/pkg/profile"
	"github.com/Thermoquad/framescan/pkg/streams"
)

// readBufferSize is the transport read size used by Run
const readBufferSize = 128

// field is a typed scalar bound into a format
type field struct {
	name  string
	value func() any
}

// alternative is the compiled form of a profile alternative
type alternative struct {
	name    string
	fields  []field
	targets []string
}

// Session owns the source queue, the chunk targets and the scalar fields of
// one profile. Feed may be called from a producer goroutine while another
// goroutine calls Poll; Poll itself is not reentrant.
type Session struct {
	profile *profile.Profile
	src     *streams.Fifo
	chunks  map[string]*streams.ChunkedFifo
	alts    []alternative
	scanner *streams.Scanner
	stats   *Statistics
	now     func() time.Time

	// current collects the callback's view of the last match
	current Event
	// skipped counts discards since the last match
	skipped int
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithStatistics shares a Statistics tracker, e.g. across reconnects.
func WithStatistics(stats *Statistics) Option {
	return func(s *Session) {
		s.stats = stats
	}
}

// New compiles p into a Session.
func New(p *profile.Profile, opts ...Option) (*Session, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		profile: p,
		src:     streams.NewFifo(p.Buffer),
		chunks:  make(map[string]*streams.ChunkedFifo, len(p.Chunks)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stats == nil {
		s.stats = NewStatistics()
	}
	for target, capacity := range p.Chunks {
		s.chunks[target] = streams.NewChunkedFifo(streams.NewFifo(capacity))
	}

	alts := make([]streams.Alternative, 0, len(p.Alternatives))
	for i, pa := range p.Alternatives {
		alt := alternative{name: pa.Name}
		matchers, err := s.compile(pa.Format, &alt)
		if err != nil {
			return nil, fmt.Errorf("alternative %q: %w", pa.Name, err)
		}
		s.alts = append(s.alts, alt)
		index := i
		alts = append(alts, streams.On(streams.NewFormat(matchers...), func() { s.capture(index) }))
	}
	s.scanner = streams.NewScanner(alts...)

	logging.LogDebug(logging.ComponentSession, "session created",
		"profile", p.Name, "buffer", p.Buffer, "alternatives", len(s.alts))
	return s, nil
}

func (s *Session) compile(elements []profile.Element, alt *alternative) ([]streams.Matcher, error) {
	matchers := make([]streams.Matcher, 0, len(elements))
	for _, e := range elements {
		switch e.Kind() {
		case profile.KindToken, profile.KindHex:
			lit, err := e.Literal()
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, streams.TokenBytes(lit...))
		case profile.KindScalar:
			m, f, err := bindScalar(e.Scalar)
			if err != nil {
				return nil, err
			}
			alt.fields = append(alt.fields, f)
			matchers = append(matchers, m)
		case profile.KindChunk:
			var sep streams.Matcher
			if len(e.Chunk.Separator) > 0 {
				inner, err := s.compile(e.Chunk.Separator, alt)
				if err != nil {
					return nil, err
				}
				sep = streams.NewFormat(inner...)
			}
			alt.targets = append(alt.targets, e.Chunk.Target)
			matchers = append(matchers, streams.Chunk(s.chunks[e.Chunk.Target], sep))
		}
	}
	return matchers, nil
}

func bindScalar(sc *profile.Scalar) (streams.Matcher, field, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if sc.Order == "big" {
		order = binary.BigEndian
	}
	switch sc.Type {
	case "uint8":
		return bind[uint8](sc.Field, order)
	case "int8":
		return bind[int8](sc.Field, order)
	case "uint16":
		return bind[uint16](sc.Field, order)
	case "int16":
		return bind[int16](sc.Field, order)
	case "uint32":
		return bind[uint32](sc.Field, order)
	case "int32":
		return bind[int32](sc.Field, order)
	case "uint64":
		return bind[uint64](sc.Field, order)
	case "int64":
		return bind[int64](sc.Field, order)
	case "float32":
		return bind[float32](sc.Field, order)
	case "float64":
		return bind[float64](sc.Field, order)
	default:
		return nil, field{}, fmt.Errorf("%w: %q", profile.ErrUnknownType, sc.Type)
	}
}

func bind[T any](name string, order binary.ByteOrder) (streams.Matcher, field, error) {
	v := new(T)
	return streams.ScalarOrder(v, order), field{name: name, value: func() any { return *v }}, nil
}

// capture runs as the match callback: fields are populated and the matched
// bytes are gone from the source.
func (s *Session) capture(index int) {
	alt := &s.alts[index]
	ev := Event{
		Time:        s.now(),
		Alternative: alt.name,
		Index:       index,
	}
	if len(alt.fields) > 0 {
		ev.Fields = make(map[string]any, len(alt.fields))
		for _, f := range alt.fields {
			ev.Fields[f.name] = f.value()
		}
	}
	for _, target := range alt.targets {
		records := s.drain(target)
		if len(records) == 0 {
			continue
		}
		if ev.Chunks == nil {
			ev.Chunks = make(map[string][][]byte)
		}
		ev.Chunks[target] = append(ev.Chunks[target], records...)
	}
	s.current = ev
}

// drain removes every buffered record from a chunk target
func (s *Session) drain(target string) [][]byte {
	c := s.chunks[target]
	var records [][]byte
	for !c.IsEmpty() {
		n, err := c.RecordLen()
		if err == nil {
			record := make([]byte, n)
			if _, err = c.Read(record); err == nil {
				records = append(records, record)
			}
		}
		if err != nil {
			logging.LogWarn(logging.ComponentSession, "dropping corrupt chunk target",
				"target", target, "error", err)
			c.Fifo().Reset()
			break
		}
	}
	return records
}

// Profile returns the profile the session was built from
func (s *Session) Profile() *profile.Profile {
	return s.profile
}

// Stats returns the session statistics
func (s *Session) Stats() *Statistics {
	return s.stats
}

// Buffered returns the number of bytes waiting in the source queue
func (s *Session) Buffered() int {
	return s.src.Size()
}

// Free returns the free space in the source queue
func (s *Session) Free() int {
	return s.src.Free()
}

// Feed appends as much of p as fits into the source queue and returns the
// number of bytes accepted.
func (s *Session) Feed(p []byte) int {
	n, _ := s.src.Write(p)
	s.stats.fed(n)
	return n
}

// Poll scans until no alternative matches and returns the matches in order.
func (s *Session) Poll() []Event {
	var events []Event
	for {
		res := s.scanner.Scan(s.src)
		s.stats.update(res, s.alts)

		if res.Discarded > 0 {
			logging.LogDebug(logging.ComponentSession, "discarded bytes", "count", res.Discarded)
		}
		if res.Oversize > 0 {
			logging.LogWarn(logging.ComponentSession, "chunk too large for target, dropped",
				"count", res.Oversize)
		}
		if !res.OK() {
			s.skipped += res.Discarded
			return events
		}

		ev := s.current
		ev.Consumed = res.Consumed
		ev.Discarded = s.skipped + res.Discarded
		s.skipped = 0
		ev.Oversize = res.Oversize
		events = append(events, ev)
		s.current = Event{}
	}
}

// Run reads r into the source queue on a producer goroutine and hands every
// match to handle from the calling goroutine. When the queue is full the
// producer waits for the scanner to make room.
//
// Run returns nil when r reports io.EOF, the read error otherwise, or the
// context error on cancellation. A read blocked in r is only released by
// closing r.
func (s *Session) Run(ctx context.Context, r io.Reader, handle func(Event)) error {
	ready := make(chan struct{}, 1)
	space := make(chan struct{}, 1)
	done := make(chan error, 1)

	go func() {
		buf := make([]byte, readBufferSize)
		for {
			n, err := r.Read(buf)
			if n > 0 && !s.feedAll(ctx, buf[:n], ready, space) {
				done <- ctx.Err()
				return
			}
			if err != nil {
				done <- err
				return
			}
		}
	}()

	poll := func() {
		for _, ev := range s.Poll() {
			handle(ev)
		}
		signal(space)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
			poll()
		case err := <-done:
			poll()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// feedAll feeds p completely, waiting for space when the queue is full.
// It returns false if ctx ends first.
func (s *Session) feedAll(ctx context.Context, p []byte, ready, space chan struct{}) bool {
	for {
		n := s.Feed(p)
		p = p[n:]
		signal(ready)
		if len(p) == 0 {
			return true
		}
		s.stats.waited()
		logging.LogDebug(logging.ComponentSession, "source queue full, waiting", "pending", len(p))
		select {
		case <-space:
		case <-ctx.Done():
			return false
		}
	}
}

// signal performs a non-blocking send on a one-slot channel
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
