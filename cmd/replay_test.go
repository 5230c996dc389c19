// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/framescan/pkg/capture"
	"github.com/Thermoquad/framescan/pkg/profile"
	"github.com/Thermoquad/framescan/pkg/session"
	"github.com/Thermoquad/framescan/pkg/streams"
)

// buildCapture records reads as capture frames
func buildCapture(t *testing.T, p *profile.Profile, reads ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := capture.NewWriter(&buf, p, "test")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, r := range reads {
		if _, err := w.Write([]byte(r)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	return buf.Bytes()
}

func replayString(t *testing.T, data []byte, byteByByte, quiet bool) string {
	t.Helper()
	r, err := capture.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, err := session.New(profile.Default(), session.WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	var out bytes.Buffer
	if err := replay(s, r, byteByByte, quiet, &out); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	return out.String()
}

// ============================================================
// Replay Tests
// ============================================================

func TestReplay_PrintsEvents(t *testing.T) {
	frame := string(streams.AppendFrame(nil, "DATA", ":", []byte("hello")))
	data := buildCapture(t, nil, "noise"+frame[:4], frame[4:])

	out := replayString(t, data, false, false)
	if !strings.Contains(out, "data (#0)") {
		t.Errorf("Expected data match in output:\n%s", out)
	}
	if !strings.Contains(out, "skipped=5") {
		t.Errorf("Expected 5 skipped bytes in output:\n%s", out)
	}
	if !strings.Contains(out, "records: 5 bytes") {
		t.Errorf("Expected 5 byte record in output:\n%s", out)
	}
}

func TestReplay_ByteByByteMatchesWhole(t *testing.T) {
	var reads []string
	for i, payload := range []string{"a", "bb", "", "longer payload"} {
		reads = append(reads, strings.Repeat("#", i)+string(streams.AppendFrame(nil, "DATA", ":", []byte(payload))))
	}
	data := buildCapture(t, nil, reads...)

	whole := replayString(t, data, false, false)
	single := replayString(t, data, true, false)
	if whole != single {
		t.Errorf("Byte-by-byte replay differs\nwhole:\n%s\nsingle:\n%s", whole, single)
	}
	if strings.Count(whole, "data (#0)") != 4 {
		t.Errorf("Expected 4 matches, got:\n%s", whole)
	}
}

func TestReplay_Quiet(t *testing.T) {
	data := buildCapture(t, nil, "DATA1:x")
	for _, byteByByte := range []bool{false, true} {
		if out := replayString(t, data, byteByByte, true); out != "" {
			t.Errorf("Expected no output when quiet (byte-by-byte %v), got %q", byteByByte, out)
		}
	}
}

func TestReplayProfile_Precedence(t *testing.T) {
	setFlag(t, &profilePath, "")

	if p, err := replayProfile(capture.Header{}); err != nil || p.Name != profile.Default().Name {
		t.Errorf("Expected default profile, got %v, %v", p, err)
	}

	embedded := profile.Default()
	embedded.Name = "embedded"
	p, err := replayProfile(capture.Header{Profile: embedded})
	if err != nil || p.Name != "embedded" {
		t.Errorf("Expected embedded profile, got %v, %v", p, err)
	}

	broken := &profile.Profile{Name: "broken"}
	if _, err := replayProfile(capture.Header{Profile: broken}); err == nil {
		t.Error("Expected invalid embedded profile to be rejected")
	}
}
