// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streams

import (
	"errors"
	"sync"
	"testing"
)

// fifoWith creates a Fifo of the given capacity holding s
func fifoWith(t *testing.T, capacity int, s string) *Fifo {
	t.Helper()
	f := NewFifo(capacity)
	if _, err := f.WriteString(s); err != nil {
		t.Fatalf("WriteString(%q) into fifo of %d: %v", s, capacity, err)
	}
	return f
}

// ============================================================
// Fifo Tests
// ============================================================

func TestFifo_New(t *testing.T) {
	f := NewFifo(10)
	if !f.IsEmpty() {
		t.Error("New fifo should be empty")
	}
	if f.IsFull() {
		t.Error("New fifo should not be full")
	}
	if f.Cap() != 10 {
		t.Errorf("Expected capacity 10, got %d", f.Cap())
	}
	if f.Free() != 10 {
		t.Errorf("Expected 10 free, got %d", f.Free())
	}
}

func TestFifo_NewPanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for zero capacity")
		}
	}()
	NewFifo(0)
}

func TestFifo_WriteReadByte(t *testing.T) {
	f := NewFifo(4)
	for _, b := range []byte{1, 2, 3} {
		if err := f.WriteByte(b); err != nil {
			t.Fatalf("WriteByte(%d) failed: %v", b, err)
		}
	}
	if f.Size() != 3 {
		t.Errorf("Expected size 3, got %d", f.Size())
	}
	for _, want := range []byte{1, 2, 3} {
		got, err := f.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte failed: %v", err)
		}
		if got != want {
			t.Errorf("Expected %d, got %d", want, got)
		}
	}
	if !f.IsEmpty() {
		t.Error("Fifo should be empty after reading everything")
	}
}

func TestFifo_WriteRejectedWhenFull(t *testing.T) {
	f := fifoWith(t, 3, "abc")
	if !f.IsFull() {
		t.Fatal("Fifo should be full")
	}
	if err := f.WriteByte('d'); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	// Nothing was overwritten
	b, _ := f.Peek(0)
	if b != 'a' {
		t.Errorf("Expected head 'a' to survive, got %q", b)
	}
}

func TestFifo_ShortWrite(t *testing.T) {
	f := NewFifo(4)
	n, err := f.Write([]byte("abcdef"))
	if n != 4 {
		t.Errorf("Expected 4 bytes written, got %d", n)
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	f.Reset()
	n, err = f.WriteString("xyz12")
	if n != 4 || !errors.Is(err, ErrQueueFull) {
		t.Errorf("WriteString = %d, %v; want 4, ErrQueueFull", n, err)
	}
}

func TestFifo_ReadRejectedWhenEmpty(t *testing.T) {
	f := NewFifo(4)
	if _, err := f.ReadByte(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Expected ErrQueueEmpty from ReadByte, got %v", err)
	}
	buf := make([]byte, 2)
	if _, err := f.Read(buf); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Expected ErrQueueEmpty from Read, got %v", err)
	}
}

func TestFifo_Read(t *testing.T) {
	f := fifoWith(t, 8, "hello")
	buf := make([]byte, 3)
	n, err := f.Read(buf)
	if err != nil || n != 3 || string(buf) != "hel" {
		t.Errorf("Read = %d, %v, %q; want 3, nil, \"hel\"", n, err, buf)
	}
	n, err = f.Read(buf)
	if err != nil || n != 2 || string(buf[:n]) != "lo" {
		t.Errorf("Read = %d, %v, %q; want 2, nil, \"lo\"", n, err, buf[:n])
	}
}

func TestFifo_Peek(t *testing.T) {
	f := fifoWith(t, 8, "xyz")
	tests := []struct {
		offset int
		want   byte
		err    error
	}{
		{0, 'x', nil},
		{2, 'z', nil},
		{3, 0, ErrOutOfRange},
		{-1, 0, ErrOutOfRange},
	}
	for _, tt := range tests {
		got, err := f.Peek(tt.offset)
		if !errors.Is(err, tt.err) {
			t.Errorf("Peek(%d) error = %v, want %v", tt.offset, err, tt.err)
		}
		if got != tt.want {
			t.Errorf("Peek(%d) = %q, want %q", tt.offset, got, tt.want)
		}
	}
	if f.Size() != 3 {
		t.Errorf("Peek must not consume, size is %d", f.Size())
	}
}

func TestFifo_WrapAround(t *testing.T) {
	f := fifoWith(t, 5, "1234")
	buf := make([]byte, 3)
	f.Read(buf)

	// Write across the end of the backing array
	if n, err := f.WriteString("5678"); n != 4 || err != nil {
		t.Fatalf("WriteString across wrap = %d, %v", n, err)
	}
	if !f.IsFull() {
		t.Error("Fifo should be full after wrapping")
	}
	got := string(f.AppendTo(nil))
	if got != "45678" {
		t.Errorf("Expected \"45678\", got %q", got)
	}
	for i, want := range []byte("45678") {
		b, err := f.Peek(i)
		if err != nil || b != want {
			t.Errorf("Peek(%d) = %q, %v; want %q", i, b, err, want)
		}
	}
}

func TestFifo_Discard(t *testing.T) {
	f := fifoWith(t, 8, "abcdef")
	n, err := f.Discard(2)
	if n != 2 || err != nil {
		t.Errorf("Discard(2) = %d, %v", n, err)
	}
	if b, _ := f.Peek(0); b != 'c' {
		t.Errorf("Expected head 'c' after discard, got %q", b)
	}

	n, err = f.Discard(10)
	if n != 4 || !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Discard(10) = %d, %v; want 4, ErrQueueEmpty", n, err)
	}
	if !f.IsEmpty() {
		t.Error("Fifo should be empty")
	}
}

func TestFifo_DiscardNonPositive(t *testing.T) {
	f := fifoWith(t, 8, "abc")
	for _, n := range []int{0, -2} {
		got, err := f.Discard(n)
		if got != 0 || err != nil {
			t.Errorf("Discard(%d) = %d, %v; want 0, nil", n, got, err)
		}
	}
	if f.Size() != 3 {
		t.Errorf("Expected size 3 after non-positive discards, got %d", f.Size())
	}
	if b, _ := f.Peek(0); b != 'a' {
		t.Errorf("Expected head 'a', got %q", b)
	}
}

func TestFifo_Reset(t *testing.T) {
	f := fifoWith(t, 4, "abcd")
	f.Reset()
	if !f.IsEmpty() || f.Free() != 4 {
		t.Errorf("Reset fifo: size=%d free=%d", f.Size(), f.Free())
	}
}

func TestFifo_ConcurrentProducerConsumer(t *testing.T) {
	const total = 10000
	f := NewFifo(16)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if err := f.WriteByte(byte(i)); err == nil {
				i++
			}
		}
	}()

	for i := 0; i < total; {
		b, err := f.ReadByte()
		if err != nil {
			continue
		}
		if b != byte(i) {
			t.Fatalf("Byte %d out of order: got %d", i, b)
		}
		i++
	}
	wg.Wait()
}
