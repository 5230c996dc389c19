// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streams

// Alternative pairs a Format with the callback invoked when it matches.
type Alternative struct {
	format Format
	fn     func()
}

// On declares an alternative. fn may be nil.
// Panics if format has no matchers.
func On(format Format, fn func()) Alternative {
	if format.Len() == 0 {
		panic("streams: alternative with empty format")
	}
	return Alternative{format: format, fn: fn}
}

// Format returns the alternative's format
func (a Alternative) Format() Format {
	return a.format
}

// Result describes what one Scan call did.
type Result struct {
	// Matched is the index of the alternative whose callback fired, or NoMatch.
	Matched int
	// Consumed is the number of bytes removed by the match.
	Consumed int
	// Discarded is the number of bytes dropped because no alternative could
	// start at them.
	Discarded int
	// Pending is true if Scan stopped to wait for more bytes.
	Pending bool
	// Oversize counts chunks that were drained from the source without being
	// stored because the destination could not hold them.
	Oversize int
}

// OK returns true if an alternative matched
func (r Result) OK() bool {
	return r.Matched != NoMatch
}

// Scan evaluates alts in declaration order against the head of src.
//
// If an alternative matches, its fields are populated, exactly the matched
// bytes are removed from src, its callback is invoked and Scan returns. If no
// alternative matches but at least one is pending, Scan returns without
// consuming anything. If every alternative fails, the head byte is discarded
// and the evaluation repeats on the shorter queue until something matches or
// is pending, or the queue is empty.
//
// A pending alternative on a full queue can never complete, so it counts as
// failed there. This keeps a Fifo from stalling on garbage that looks like the
// start of a frame too large to ever fit.
func Scan(src *Fifo, alts ...Alternative) Result {
	res := Result{Matched: NoMatch}
	for {
		avail := src.Size()
		if avail == 0 {
			return res
		}
		saturated := avail == src.Cap()
		pending := false

		for i := range alts {
			alt := &alts[i]
			c := cursor{src: src, avail: avail}
			switch alt.format.match(&c) {
			case Matched:
				c = cursor{src: src, avail: avail}
				alt.format.apply(&c, &res)
				src.Discard(c.pos)
				res.Matched = i
				res.Consumed = c.pos
				if alt.fn != nil {
					alt.fn()
				}
				return res
			case Pending:
				if !saturated {
					pending = true
				}
			}
		}

		if pending {
			res.Pending = true
			return res
		}
		src.Discard(1)
		res.Discarded++
	}
}

// Scanner holds a fixed list of alternatives for repeated scanning.
type Scanner struct {
	alts []Alternative
}

// NewScanner creates a Scanner over alts, evaluated in the given order.
func NewScanner(alts ...Alternative) *Scanner {
	return &Scanner{alts: append([]Alternative(nil), alts...)}
}

// Scan runs one Scan call over src with the scanner's alternatives.
func (s *Scanner) Scan(src *Fifo) Result {
	return Scan(src, s.alts...)
}

// Len returns the number of alternatives
func (s *Scanner) Len() int {
	return len(s.alts)
}
