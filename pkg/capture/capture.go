// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw link traffic as a CBOR stream so it can be
// replayed through a scan profile later.
//
// A capture is one Header item followed by one Frame item per transport read.
package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/framescan/pkg/logging"
	"github.com/Thermoquad/framescan/pkg/profile"
)

// Version is the capture format version written by this package
const Version = 1

// Errors
var (
	ErrBadVersion = errors.New("unsupported capture version")
	ErrNoHeader   = errors.New("capture has no header")
)

// Header describes a capture
type Header struct {
	Version uint             `cbor:"1,keyasint"`
	Profile *profile.Profile `cbor:"2,keyasint,omitempty"`
	Started time.Time        `cbor:"3,keyasint"`
	Source  string           `cbor:"4,keyasint,omitempty"`
}

// Frame is the data returned by one transport read
type Frame struct {
	// Offset is the stream position of Data[0]
	Offset uint64 `cbor:"1,keyasint"`
	// Elapsed is the time since Header.Started
	Elapsed time.Duration `cbor:"2,keyasint"`
	Data    []byte        `cbor:"3,keyasint"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Writer appends frames to a capture
type Writer struct {
	enc     *cbor.Encoder
	started time.Time
	offset  uint64
	frames  uint64
	now     func() time.Time
}

// NewWriter writes the capture header to w. p and source are informational
// and may be empty.
func NewWriter(w io.Writer, p *profile.Profile, source string) (*Writer, error) {
	cw := &Writer{
		enc: encMode.NewEncoder(w),
		now: time.Now,
	}
	cw.started = cw.now()
	h := Header{Version: Version, Profile: p, Started: cw.started, Source: source}
	if err := cw.enc.Encode(h); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return cw, nil
}

// Write records p as one frame.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	f := Frame{Offset: w.offset, Elapsed: w.now().Sub(w.started), Data: p}
	if err := w.enc.Encode(f); err != nil {
		return 0, fmt.Errorf("failed to write capture frame: %w", err)
	}
	w.offset += uint64(len(p))
	w.frames++
	return len(p), nil
}

// Bytes returns the number of payload bytes recorded
func (w *Writer) Bytes() uint64 {
	return w.offset
}

// Frames returns the number of frames recorded
func (w *Writer) Frames() uint64 {
	return w.frames
}

// Reader reads frames back from a capture
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the capture header.
func NewReader(r io.Reader) (*Reader, error) {
	cr := &Reader{dec: cbor.NewDecoder(r)}
	if err := cr.dec.Decode(&cr.header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}
	if cr.header.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, cr.header.Version)
	}
	logging.LogDebug(logging.ComponentCapture, "opened capture",
		"started", cr.header.Started, "source", cr.header.Source)
	return cr, nil
}

// Header returns the capture header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (Frame, error) {
	var f Frame
	if err := r.dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("failed to read capture frame: %w", err)
	}
	return f, nil
}

// Stream returns an io.Reader over the concatenated frame data.
func (r *Reader) Stream() io.Reader {
	return &streamReader{r: r}
}

type streamReader struct {
	r    *Reader
	data []byte
}

func (s *streamReader) Read(p []byte) (int, error) {
	for len(s.data) == 0 {
		f, err := s.r.Next()
		if err != nil {
			return 0, err
		}
		s.data = f.Data
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}
