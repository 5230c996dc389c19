// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streams

import (
	"encoding/binary"
	"testing"
)

// readRecord pops the next record from c as a string
func readRecord(t *testing.T, c *ChunkedFifo) string {
	t.Helper()
	buf := make([]byte, MaxRecordLength)
	n, err := c.Read(buf)
	if err != nil {
		t.Fatalf("Expected a stored record: %v", err)
	}
	return string(buf[:n])
}

// dataFormat is the usual DATA<len>:<payload> frame
func dataFormat(storage *ChunkedFifo) Format {
	return NewFormat(Token("DATA"), Chunk(storage, NewFormat(Token(":"))))
}

// ============================================================
// Token Search Tests
// ============================================================

func TestScan_FindsTokenInFifo(t *testing.T) {
	var ch uint8
	invoked := false
	f := fifoWith(t, 16, "abcdef")

	res := Scan(f,
		On(NewFormat(Token("abd")), func() { t.Error("abd should not match") }),
		On(NewFormat(Token("cde"), Scalar(&ch)), func() {
			invoked = true
			if ch != 'f' {
				t.Errorf("Expected field 'f' inside callback, got %q", ch)
			}
		}),
		On(NewFormat(Token("e")), func() { t.Error("e should not match") }),
	)

	if !invoked {
		t.Fatal("Expected cde alternative to fire")
	}
	if res.Matched != 1 {
		t.Errorf("Expected alternative 1, got %d", res.Matched)
	}
	if res.Discarded != 2 {
		t.Errorf("Expected 2 discarded bytes, got %d", res.Discarded)
	}
	if res.Consumed != 4 {
		t.Errorf("Expected 4 consumed bytes, got %d", res.Consumed)
	}
	if !f.IsEmpty() {
		t.Errorf("Expected empty fifo, size %d", f.Size())
	}
}

func TestScan_EmptyQueue(t *testing.T) {
	f := NewFifo(4)
	res := Scan(f, On(NewFormat(Token("x")), nil))
	if res.OK() || res.Pending || res.Discarded != 0 {
		t.Errorf("Empty queue should do nothing, got %+v", res)
	}
}

func TestScan_NoAlternativesDrainsQueue(t *testing.T) {
	f := fifoWith(t, 8, "abc")
	res := Scan(f)
	if res.Discarded != 3 || !f.IsEmpty() {
		t.Errorf("Expected everything discarded, got %+v size=%d", res, f.Size())
	}
}

// ============================================================
// Chunk Tests
// ============================================================

func TestScan_SingleDigitChunk(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(40))
	f := fifoWith(t, 40, "+++DATA5:abcde+++")
	invoked := false

	Scan(f, On(dataFormat(storage), func() { invoked = true }))

	if !invoked {
		t.Fatal("Expected chunk alternative to fire")
	}
	if storage.Size() != 6 {
		t.Errorf("Expected storage size 6, got %d", storage.Size())
	}
	if f.Size() != 3 {
		t.Errorf("Expected trailing 3 bytes, got %d", f.Size())
	}
	if got := readRecord(t, storage); got != "abcde" {
		t.Errorf("Expected record \"abcde\", got %q", got)
	}
}

func TestScan_TwoDigitChunk(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(40))
	f := fifoWith(t, 40, "+++DATA10:abcdefghij+++")
	invoked := false

	Scan(f, On(dataFormat(storage), func() { invoked = true }))

	if !invoked {
		t.Fatal("Expected chunk alternative to fire")
	}
	if storage.Size() != 11 {
		t.Errorf("Expected storage size 11, got %d", storage.Size())
	}
	if f.Size() != 3 {
		t.Errorf("Expected trailing 3 bytes, got %d", f.Size())
	}
	if got := readRecord(t, storage); got != "abcdefghij" {
		t.Errorf("Expected record \"abcdefghij\", got %q", got)
	}
}

func TestScan_OversizeChunkIsDrained(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(40))
	f := NewFifo(254)
	f.WriteString("DATA240:")
	for i := 0; i < 240; i++ {
		f.WriteByte(byte(i))
	}
	invoked := false

	res := Scan(f, On(dataFormat(storage), func() { invoked = true }))

	if !invoked {
		t.Fatal("Oversize chunk should still match")
	}
	if res.Oversize != 1 {
		t.Errorf("Expected Oversize 1, got %d", res.Oversize)
	}
	if res.Consumed != 248 {
		t.Errorf("Expected 248 consumed, got %d", res.Consumed)
	}
	if !storage.IsEmpty() {
		t.Errorf("Storage should be untouched, size %d", storage.Size())
	}
	if !f.IsEmpty() {
		t.Errorf("Source should be drained, size %d", f.Size())
	}
}

func TestScan_WrongSeparator(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(40))
	f := fifoWith(t, 40, "+++DATA5_abcde+++")

	res := Scan(f, On(dataFormat(storage), func() { t.Error("Wrong separator should not match") }))

	if res.OK() {
		t.Errorf("Expected no match, got alternative %d", res.Matched)
	}
	if !storage.IsEmpty() {
		t.Errorf("Storage should be empty, size %d", storage.Size())
	}
	if res.Discarded != 17 || !f.IsEmpty() {
		t.Errorf("Expected all 17 bytes discarded, got %d (size %d)", res.Discarded, f.Size())
	}
}

func TestScan_ChunkWithoutSeparator(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(16))
	f := fifoWith(t, 16, "#3abc")

	res := Scan(f, On(NewFormat(Token("#"), Chunk(storage, nil)), nil))

	if !res.OK() || res.Consumed != 5 {
		t.Errorf("Expected 5-byte match, got %+v", res)
	}
	if got := readRecord(t, storage); got != "abc" {
		t.Errorf("Expected \"abc\", got %q", got)
	}
}

func TestScan_ZeroLengthChunk(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(16))
	f := fifoWith(t, 16, "DATA0:x")

	res := Scan(f, On(dataFormat(storage), nil))

	if !res.OK() || res.Consumed != 6 {
		t.Errorf("Expected 6-byte match, got %+v", res)
	}
	if storage.Size() != 1 || storage.Records() != 1 {
		t.Errorf("Expected one empty record, size=%d", storage.Size())
	}
}

func TestScan_MissingLengthDigits(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(16))
	f := fifoWith(t, 16, "DATA:abc")

	res := Scan(f, On(dataFormat(storage), nil))

	if res.OK() || res.Pending {
		t.Errorf("Length without digits should fail, got %+v", res)
	}
	if !f.IsEmpty() {
		t.Errorf("Expected queue drained, size %d", f.Size())
	}
}

func TestScan_LengthOverflowFails(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(16))
	f := fifoWith(t, 32, "DATA9999999:")

	res := Scan(f, On(dataFormat(storage), nil))

	if res.OK() || res.Pending {
		t.Errorf("Length over MaxChunkLength should fail, got %+v", res)
	}
}

// ============================================================
// Incremental Delivery Tests
// ============================================================

func TestScan_IncompleteChunk(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(40))
	f := NewFifo(40)
	alt := On(dataFormat(storage), nil)

	f.WriteString("+++DA")
	res := Scan(f, alt)
	if !res.Pending || f.Size() != 2 {
		t.Errorf("After \"+++DA\": pending=%v size=%d; want true, 2", res.Pending, f.Size())
	}

	f.WriteString("TA5:abc")
	res = Scan(f, alt)
	if !res.Pending || f.Size() != 9 {
		t.Errorf("After \"TA5:abc\": pending=%v size=%d; want true, 9", res.Pending, f.Size())
	}
	if !storage.IsEmpty() {
		t.Error("Pending chunk must not store anything")
	}

	f.WriteString("de+++")
	res = Scan(f, alt)
	if !res.OK() {
		t.Fatal("Expected chunk to complete")
	}
	if f.Size() != 3 {
		t.Errorf("Expected trailing 3 bytes, got %d", f.Size())
	}
	if storage.Size() != 6 {
		t.Errorf("Expected storage size 6, got %d", storage.Size())
	}
}

func TestScan_ByteByByte(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(40))
	f := NewFifo(40)
	invoked := 0
	alt := On(dataFormat(storage), func() { invoked++ })

	input := "+DATA3:abc"
	wantSizes := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 0}
	for i := 0; i < len(input); i++ {
		f.WriteByte(input[i])
		Scan(f, alt)
		if f.Size() != wantSizes[i] {
			t.Errorf("After %q: expected size %d, got %d", input[:i+1], wantSizes[i], f.Size())
		}
	}
	if invoked != 1 {
		t.Errorf("Expected exactly one callback, got %d", invoked)
	}
	if storage.Size() != 4 {
		t.Errorf("Expected storage size 4, got %d", storage.Size())
	}
}

func TestScan_KeepsPrefixOfToken(t *testing.T) {
	f := NewFifo(16)
	invoked := false
	alt := On(NewFormat(Token("DATA")), func() { invoked = true })

	f.WriteString("+DA")
	Scan(f, alt)
	if f.Size() != 2 {
		t.Errorf("Expected \"DA\" kept, size %d", f.Size())
	}

	f.WriteString("TA")
	Scan(f, alt)
	if !invoked {
		t.Error("Expected DATA to match once completed")
	}
	if !f.IsEmpty() {
		t.Errorf("Expected empty fifo, size %d", f.Size())
	}
}

func TestScan_PendingScalarLeavesField(t *testing.T) {
	var v uint16 = 7
	f := fifoWith(t, 8, "T\x34")

	res := Scan(f, On(NewFormat(Token("T"), Scalar(&v)), nil))

	if !res.Pending {
		t.Error("Expected pending on a partial scalar")
	}
	if v != 7 {
		t.Errorf("Pending match must not write the field, got %d", v)
	}
	if f.Size() != 2 {
		t.Errorf("Expected nothing consumed, size %d", f.Size())
	}
}

// ============================================================
// Alternative Ordering Tests
// ============================================================

func TestScan_FirstAlternativeWins(t *testing.T) {
	for _, input := range []string{"+DATA", "+BOOHOO"} {
		f := fifoWith(t, 16, input)
		var fired []int

		Scan(f,
			On(NewFormat(Token("DATA")), func() { fired = append(fired, 0) }),
			On(NewFormat(Token("BOOHOO")), func() { fired = append(fired, 1) }),
		)

		if len(fired) != 1 {
			t.Errorf("%q: expected one callback, got %v", input, fired)
		}
		if !f.IsEmpty() {
			t.Errorf("%q: expected empty fifo, size %d", input, f.Size())
		}
	}
}

func TestScan_EarlierMatchBeatsLaterMatch(t *testing.T) {
	f := fifoWith(t, 16, "ABCD")
	res := Scan(f,
		On(NewFormat(Token("AB")), nil),
		On(NewFormat(Token("ABCD")), nil),
	)
	if res.Matched != 0 {
		t.Errorf("Expected alternative 0, got %d", res.Matched)
	}
	if f.Size() != 2 {
		t.Errorf("Expected \"CD\" left, size %d", f.Size())
	}
}

func TestScan_EarlierPendingDoesNotBlockLaterMatch(t *testing.T) {
	f := fifoWith(t, 16, "AB")
	res := Scan(f,
		On(NewFormat(Token("ABCD")), nil),
		On(NewFormat(Token("AB")), nil),
	)
	if res.Matched != 1 {
		t.Errorf("Expected alternative 1, got %d", res.Matched)
	}
}

func TestScan_FailedAlternativeLeavesFields(t *testing.T) {
	var a, b uint8
	f := fifoWith(t, 16, "X1?Y2")

	res := Scan(f,
		On(NewFormat(Token("X"), Scalar(&a), Token("!")), nil),
		On(NewFormat(Token("Y"), Scalar(&b)), nil),
	)

	if res.Matched != 1 {
		t.Fatalf("Expected alternative 1, got %d", res.Matched)
	}
	if a != 0 {
		t.Errorf("Failed alternative wrote its field: %q", a)
	}
	if b != '2' {
		t.Errorf("Expected b='2', got %q", b)
	}
}

func TestScan_CallbackSeesUpdatedQueue(t *testing.T) {
	f := fifoWith(t, 16, "GO!rest")
	Scan(f, On(NewFormat(Token("GO!")), func() {
		if got := string(f.AppendTo(nil)); got != "rest" {
			t.Errorf("Callback should see \"rest\", got %q", got)
		}
	}))
}

// ============================================================
// Minimal Discard Tests
// ============================================================

func TestScan_DoesNotDiscardPossibleFrameStart(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(40))
	f := fifoWith(t, 40, "DATA12:abc")

	res := Scan(f, On(dataFormat(storage), nil))

	if !res.Pending || res.Discarded != 0 {
		t.Errorf("Expected pending with nothing discarded, got %+v", res)
	}
	if f.Size() != 10 {
		t.Errorf("Expected all 10 bytes kept, size %d", f.Size())
	}
}

func TestScan_SaturatedQueueDoesNotStall(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(40))
	f := fifoWith(t, 8, "DATA99:x")

	res := Scan(f, On(dataFormat(storage), func() { t.Error("Frame cannot fit and should not match") }))

	if res.Pending {
		t.Error("A full queue must not stay pending")
	}
	if res.Discarded != 8 || !f.IsEmpty() {
		t.Errorf("Expected the queue drained, discarded=%d size=%d", res.Discarded, f.Size())
	}
}

// ============================================================
// Scalar Tests
// ============================================================

func TestScan_MultiByteScalars(t *testing.T) {
	var le int16
	var be uint32
	f := NewFifo(16)
	f.WriteString("T")
	f.Write([]byte{0x34, 0x12})
	f.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})

	res := Scan(f, On(NewFormat(Token("T"), Scalar(&le), ScalarOrder(&be, binary.BigEndian)), nil))

	if !res.OK() || res.Consumed != 7 {
		t.Fatalf("Expected 7-byte match, got %+v", res)
	}
	if le != 0x1234 {
		t.Errorf("Expected 0x1234, got %#x", le)
	}
	if be != 0xDEADBEEF {
		t.Errorf("Expected 0xDEADBEEF, got %#x", be)
	}
}

func TestScan_StructScalar(t *testing.T) {
	type reading struct {
		Channel uint8
		Value   uint16
	}
	var r reading
	f := NewFifo(8)
	f.Write([]byte{'R', 3, 0x10, 0x00})

	Scan(f, On(NewFormat(Token("R"), Scalar(&r)), nil))

	if r.Channel != 3 || r.Value != 16 {
		t.Errorf("Expected {3 16}, got %+v", r)
	}
}

// ============================================================
// Construction Tests
// ============================================================

func TestConstruction_Panics(t *testing.T) {
	var s string
	tests := []struct {
		name string
		fn   func()
	}{
		{"empty token", func() { Token("") }},
		{"empty format", func() { NewFormat() }},
		{"nil matcher", func() { NewFormat(nil) }},
		{"nil chunk destination", func() { Chunk(nil, nil) }},
		{"variable-size scalar", func() { Scalar(&s) }},
		{"empty alternative", func() { On(Format{}, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("Expected panic for %s", tt.name)
				}
			}()
			tt.fn()
		})
	}
}

// ============================================================
// Probe Tests
// ============================================================

func TestFormat_Probe(t *testing.T) {
	format := NewFormat(Token("DATA"))
	tests := []struct {
		input string
		want  Outcome
		n     int
	}{
		{"DATAx", Matched, 4},
		{"DA", Pending, 2},
		{"DAX", Failed, 2},
		{"x", Failed, 0},
	}
	for _, tt := range tests {
		f := fifoWith(t, 8, tt.input)
		got, n := format.Probe(f)
		if got != tt.want || n != tt.n {
			t.Errorf("Probe(%q) = %v, %d; want %v, %d", tt.input, got, n, tt.want, tt.n)
		}
		if f.Size() != len(tt.input) {
			t.Errorf("Probe(%q) consumed bytes", tt.input)
		}
	}
}

func TestOutcome_String(t *testing.T) {
	tests := map[Outcome]string{
		Matched:     "matched",
		Failed:      "failed",
		Pending:     "pending",
		Outcome(99): "unknown",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}

// ============================================================
// Scanner Tests
// ============================================================

func TestScanner_RepeatedScans(t *testing.T) {
	storage := NewChunkedFifo(NewFifo(64))
	var frames int
	s := NewScanner(On(dataFormat(storage), func() { frames++ }))
	if s.Len() != 1 {
		t.Errorf("Expected 1 alternative, got %d", s.Len())
	}

	f := fifoWith(t, 64, "DATA1:aDATA2:bbxxDATA3:ccc")
	for s.Scan(f).OK() {
	}

	if frames != 3 {
		t.Errorf("Expected 3 frames, got %d", frames)
	}
	if storage.Records() != 3 {
		t.Errorf("Expected 3 records, got %d", storage.Records())
	}
}

func TestAppendFrame_RoundTrip(t *testing.T) {
	payload := []byte("hello, world")
	frame := AppendFrame(nil, "DATA", ":", payload)
	if string(frame) != "DATA12:hello, world" {
		t.Errorf("Unexpected frame %q", frame)
	}

	storage := NewChunkedFifo(NewFifo(64))
	f := NewFifo(64)
	f.Write(frame)
	Scan(f, On(dataFormat(storage), nil))

	if got := readRecord(t, storage); got != string(payload) {
		t.Errorf("Round trip: expected %q, got %q", payload, got)
	}
}
