// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package streams provides fixed-capacity byte queues and an incremental
// scanner that matches framed message formats against them.
//
// Bytes arrive piecemeal into a Fifo (typically from a UART receive handler).
// The owner of the Fifo declares a finite list of alternatives, each a Format
// built from Token, Scalar and Chunk matchers, and calls Scan whenever new
// bytes may have arrived. Scan never blocks and never drops a byte that could
// still be the start of a match.
//
// Wire example: the bytes "DATA5:abcde" match
//
//	NewFormat(Token("DATA"), Chunk(records, NewFormat(Token(":"))))
//
// and store the record "abcde" into the records ChunkedFifo.
package streams

// Record limits
const (
	// MaxRecordLength is the largest payload a ChunkedFifo record can hold,
	// bounded by its one-byte length prefix.
	MaxRecordLength = 255

	// MaxChunkLength bounds the decimal length of a Chunk. Longer lengths
	// fail the match instead of overflowing.
	MaxChunkLength = 1 << 16
)

// NoMatch is the Result.Matched value when no alternative matched.
const NoMatch = -1
