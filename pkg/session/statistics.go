// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/Thermoquad/framescan/pkg/streams"
)

// Counters is a point-in-time copy of Statistics
type Counters struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Scans          uint64
	Matches        uint64
	PendingScans   uint64
	Discarded      uint64
	Oversize       uint64
	BytesFed       uint64
	BackPressure   uint64
	PerAlternative map[string]uint64

	// Rates (calculated)
	MatchRate   float64 // matches/sec
	DiscardRate float64 // bytes/sec
}

// Statistics tracks scan results and rates. It is safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	s := &Statistics{}
	s.Reset()
	return s
}

// update records one Scan result
func (s *Statistics) update(res streams.Result, alts []alternative) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.Scans++
	s.c.Discarded += uint64(res.Discarded)
	s.c.Oversize += uint64(res.Oversize)
	if res.Pending {
		s.c.PendingScans++
	}
	if res.OK() {
		s.c.Matches++
		if res.Matched < len(alts) {
			s.c.PerAlternative[alts[res.Matched].name]++
		}
	}
	s.c.LastUpdateTime = time.Now()
}

func (s *Statistics) fed(n int) {
	s.mu.Lock()
	s.c.BytesFed += uint64(n)
	s.mu.Unlock()
}

func (s *Statistics) waited() {
	s.mu.Lock()
	s.c.BackPressure++
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.c.StartTime).Seconds()
	if elapsed > 0 {
		s.c.MatchRate = float64(s.c.Matches) / elapsed
		s.c.DiscardRate = float64(s.c.Discarded) / elapsed
	}

	snap := s.c
	snap.PerAlternative = maps.Clone(s.c.PerAlternative)
	return snap
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var discardPercent float64
	if snap.BytesFed > 0 {
		discardPercent = float64(snap.Discarded) * 100.0 / float64(snap.BytesFed)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Bytes Received:  %8d\n", snap.BytesFed)
	result += fmt.Sprintf("Matches:         %8d\n", snap.Matches)
	for _, name := range sortedKeys(snap.PerAlternative) {
		result += fmt.Sprintf("  %-16s %5d\n", name+":", snap.PerAlternative[name])
	}
	result += fmt.Sprintf("Discarded Bytes: %8d (%.1f%%)\n", snap.Discarded, discardPercent)
	if snap.Oversize > 0 {
		result += fmt.Sprintf("Oversize Chunks: %8d\n", snap.Oversize)
	}
	if snap.BackPressure > 0 {
		result += fmt.Sprintf("Queue Full:      %8d\n", snap.BackPressure)
	}
	result += fmt.Sprintf("Match Rate:      %8.1f matches/sec\n", snap.MatchRate)
	result += fmt.Sprintf("Discard Rate:    %8.1f bytes/sec\n", snap.DiscardRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.c = Counters{
		StartTime:      now,
		LastUpdateTime: now,
		PerAlternative: make(map[string]uint64),
	}
}
