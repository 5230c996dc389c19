// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streams

// Outcome is the result of attempting one format against the queue head.
type Outcome uint8

// Outcome values
const (
	// Matched means every matcher of the format succeeded.
	Matched Outcome = iota
	// Failed means a byte mismatched. More data cannot change this for the
	// same starting position.
	Failed
	// Pending means the format matched every available byte and needs more.
	Pending
)

// String returns a string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Failed:
		return "failed"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}
