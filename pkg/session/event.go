// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Event is one completed match.
type Event struct {
	Time        time.Time
	Alternative string
	// Index is the alternative's position in the profile
	Index int
	// Consumed is the number of bytes the match removed
	Consumed int
	// Discarded is the number of garbage bytes dropped since the previous match
	Discarded int
	// Fields holds the scalar values of the alternative by field name
	Fields map[string]any
	// Chunks holds the records stored by the match, by chunk target
	Chunks map[string][][]byte
	// Oversize counts chunks dropped because their target was full
	Oversize int
}

// FormatEvent formats an event into a human-readable string
func FormatEvent(e Event) string {
	timestamp := e.Time.Format("15:04:05.000")

	result := fmt.Sprintf("[%s] %s (#%d) len=%d", timestamp, e.Alternative, e.Index, e.Consumed)
	if e.Discarded > 0 {
		result += fmt.Sprintf(" skipped=%d", e.Discarded)
	}
	if e.Oversize > 0 {
		result += fmt.Sprintf(" oversize=%d", e.Oversize)
	}
	result += "\n"

	for _, name := range sortedKeys(e.Fields) {
		result += fmt.Sprintf("  %s: %s\n", name, formatValue(e.Fields[name]))
	}
	for _, target := range sortedKeys(e.Chunks) {
		for _, record := range e.Chunks[target] {
			result += fmt.Sprintf("  %s: %d bytes\n", target, len(record))
			result += FormatHexDump(record, "    ")
		}
	}
	return result
}

func formatValue(v any) string {
	switch x := v.(type) {
	case uint8:
		return fmt.Sprintf("%d (0x%02X)", x, x)
	case uint16:
		return fmt.Sprintf("%d (0x%04X)", x, x)
	case uint32:
		return fmt.Sprintf("%d (0x%08X)", x, x)
	case uint64:
		return fmt.Sprintf("%d (0x%016X)", x, x)
	case float32, float64:
		return fmt.Sprintf("%.4f", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// FormatHexDump renders data as 16-byte rows of hex and printable ASCII,
// each row prefixed with indent.
func FormatHexDump(data []byte, indent string) string {
	var b strings.Builder
	for offset := 0; offset < len(data); offset += 16 {
		end := min(offset+16, len(data))
		row := data[offset:end]

		fmt.Fprintf(&b, "%s%04X  ", indent, offset)
		for i := 0; i < 16; i++ {
			if i < len(row) {
				fmt.Fprintf(&b, "%02X ", row[i])
			} else {
				b.WriteString("   ")
			}
			if i == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range row {
			if c >= 0x20 && c < 0x7F {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
