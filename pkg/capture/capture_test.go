// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/Thermoquad/framescan/pkg/profile"
)

func TestCapture_WriteRead(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, profile.Default(), "Serial: /dev/ttyUSB0 @ 115200 baud")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, chunk := range []string{"+++DA", "TA5:abc", "de+++"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if w.Frames() != 3 || w.Bytes() != 17 {
		t.Errorf("Expected 3 frames / 17 bytes, got %d / %d", w.Frames(), w.Bytes())
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	h := r.Header()
	if h.Version != Version {
		t.Errorf("Expected version %d, got %d", Version, h.Version)
	}
	if h.Profile == nil || h.Profile.Name != "data" {
		t.Errorf("Expected embedded default profile, got %+v", h.Profile)
	}
	if h.Source == "" {
		t.Error("Expected source to survive")
	}

	wantOffsets := []uint64{0, 5, 12}
	for i, want := range wantOffsets {
		f, err := r.Next()
		if err != nil {
			t.Fatalf("Frame %d: %v", i, err)
		}
		if f.Offset != want {
			t.Errorf("Frame %d: expected offset %d, got %d", i, want, f.Offset)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestCapture_Stream(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, nil, "")
	w.Write([]byte("hello, "))
	w.Write(nil)
	w.Write([]byte("world"))

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(r.Stream())
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("Expected \"hello, world\", got %q", data)
	}
}

func TestCapture_EmptyInput(t *testing.T) {
	if _, err := NewReader(bytes.NewReader(nil)); !errors.Is(err, ErrNoHeader) {
		t.Errorf("Expected ErrNoHeader, got %v", err)
	}
}

func TestCapture_BadVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := encMode.NewEncoder(&buf).Encode(Header{Version: 99}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReader(&buf); !errors.Is(err, ErrBadVersion) {
		t.Errorf("Expected ErrBadVersion, got %v", err)
	}
}

func TestCapture_Truncated(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, nil, "")
	w.Write([]byte("0123456789"))
	data := buf.Bytes()[:buf.Len()-3]

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Errorf("Expected decode error for truncated frame, got %v", err)
	}
}
