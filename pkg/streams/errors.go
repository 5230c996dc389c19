// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streams

import "errors"

// Queue errors.
var (
	// ErrQueueFull indicates a write was rejected because the queue is full.
	ErrQueueFull = errors.New("queue full")

	// ErrQueueEmpty indicates a read from an empty queue.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrOutOfRange indicates a peek beyond the occupied part of the queue.
	ErrOutOfRange = errors.New("offset out of range")

	// ErrChunkOversize indicates a record does not fit the remaining capacity
	// of a ChunkedFifo. Nothing was written.
	ErrChunkOversize = errors.New("chunk too large for destination")

	// ErrNoRecord indicates a read from a ChunkedFifo with no buffered record.
	ErrNoRecord = errors.New("no record available")
)
