package iobuf

import (
	"bytes"
	"math"
	"reflect"
	"testing"

	"github.com/wippyai/hyphen/errors"
)

func TestBuffer_ScalarLayout(t *testing.T) {
	tests := []struct {
		put  func(b *Buffer) error
		name string
		want []byte
	}{
		{func(b *Buffer) error { return b.PutBool(true) }, "bool", []byte{1}},
		{func(b *Buffer) error { return b.PutInt8(-1) }, "i8", []byte{0xff}},
		{func(b *Buffer) error { return b.PutUint16(0x0102) }, "u16", []byte{0x02, 0x01}},
		{func(b *Buffer) error { return b.PutInt32(5) }, "i32", []byte{5, 0, 0, 0}},
		{func(b *Buffer) error { return b.PutUint64(1) }, "u64", []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		{func(b *Buffer) error { return b.PutFloat32(1) }, "f32", []byte{0, 0, 0x80, 0x3f}},
		{func(b *Buffer) error { return b.PutString("hi") }, "string", []byte{2, 0, 0, 0, 'h', 'i'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewArray(0)
			if err := tt.put(b); err != nil {
				t.Fatalf("put: %v", err)
			}
			if got := b.Bytes(); !bytes.Equal(got, tt.want) {
				t.Errorf("bytes = %v, want %v", got, tt.want)
			}
			if b.Position() != len(tt.want) {
				t.Errorf("Position = %d, want %d", b.Position(), len(tt.want))
			}
		})
	}
}

func TestBuffer_ScalarRoundTrip(t *testing.T) {
	b := NewArray(16)
	if err := b.PutBool(false); err != nil {
		t.Fatal(err)
	}
	if err := b.PutInt16(-300); err != nil {
		t.Fatal(err)
	}
	if err := b.PutUint32(math.MaxUint32); err != nil {
		t.Fatal(err)
	}
	if err := b.PutInt64(math.MinInt64); err != nil {
		t.Fatal(err)
	}
	if err := b.PutFloat64(math.Pi); err != nil {
		t.Fatal(err)
	}
	if err := b.PutString("héllo"); err != nil {
		t.Fatal(err)
	}

	b.Rewind()

	if v, err := b.GetBool(); err != nil || v {
		t.Errorf("GetBool = %v, %v", v, err)
	}
	if v, err := b.GetInt16(); err != nil || v != -300 {
		t.Errorf("GetInt16 = %v, %v", v, err)
	}
	if v, err := b.GetUint32(); err != nil || v != math.MaxUint32 {
		t.Errorf("GetUint32 = %v, %v", v, err)
	}
	if v, err := b.GetInt64(); err != nil || v != math.MinInt64 {
		t.Errorf("GetInt64 = %v, %v", v, err)
	}
	if v, err := b.GetFloat64(); err != nil || v != math.Pi {
		t.Errorf("GetFloat64 = %v, %v", v, err)
	}
	if v, err := b.GetString(); err != nil || v != "héllo" {
		t.Errorf("GetString = %q, %v", v, err)
	}
}

func TestBuffer_BoolOnlyOneIsTrue(t *testing.T) {
	b := Wrap([]byte{2})
	v, err := b.GetBool()
	if err != nil {
		t.Fatal(err)
	}
	if v {
		t.Error("byte 2 should decode as false")
	}
}

func TestBuffer_Arrays(t *testing.T) {
	b := NewArray(0)
	ints := []int32{1, 2, 3}
	strs := []string{"a", "", "ccc"}
	floats := []float64{0.5, -1}

	if err := b.PutInt32Array(ints); err != nil {
		t.Fatal(err)
	}
	if err := b.PutStringArray(strs); err != nil {
		t.Fatal(err)
	}
	if err := b.PutFloat64Array(floats); err != nil {
		t.Fatal(err)
	}
	if err := b.PutUint8Array([]byte{9, 8}); err != nil {
		t.Fatal(err)
	}

	want := 12 + (4 + 1) + 4 + (4 + 3) + 16 + 2
	if b.Len() != want {
		t.Fatalf("Len = %d, want %d", b.Len(), want)
	}

	b.Rewind()
	gotInts, err := b.GetInt32Array(3)
	if err != nil || !reflect.DeepEqual(gotInts, ints) {
		t.Errorf("GetInt32Array = %v, %v", gotInts, err)
	}
	gotStrs, err := b.GetStringArray(3)
	if err != nil || !reflect.DeepEqual(gotStrs, strs) {
		t.Errorf("GetStringArray = %v, %v", gotStrs, err)
	}
	gotFloats, err := b.GetFloat64Array(2)
	if err != nil || !reflect.DeepEqual(gotFloats, floats) {
		t.Errorf("GetFloat64Array = %v, %v", gotFloats, err)
	}
	gotBytes, err := b.GetUint8Array(2)
	if err != nil || !bytes.Equal(gotBytes, []byte{9, 8}) {
		t.Errorf("GetUint8Array = %v, %v", gotBytes, err)
	}
}

func TestBuffer_HeapIsFixed(t *testing.T) {
	b := NewHeap(4)
	if err := b.PutInt32(7); err != nil {
		t.Fatalf("first put: %v", err)
	}
	err := b.PutUint8(1)
	if err == nil {
		t.Fatal("expected out-of-bounds on full heap buffer")
	}
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseIO, Kind: errors.KindOutOfBounds}) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuffer_ReadPastEnd(t *testing.T) {
	b := Wrap([]byte{1, 0})
	if _, err := b.GetInt32(); err == nil {
		t.Fatal("expected error reading 4 bytes from 2")
	}
	if b.Position() != 0 {
		t.Errorf("failed read moved position to %d", b.Position())
	}
}

func TestBuffer_StringLengthValidation(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"negative length", []byte{0xff, 0xff, 0xff, 0xff}},
		{"truncated body", []byte{5, 0, 0, 0, 'a'}},
		{"invalid utf8", []byte{1, 0, 0, 0, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Wrap(tt.data).GetString(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuffer_PutStringRejectsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name string
		put  func(b *Buffer) error
	}{
		{"string", func(b *Buffer) error { return b.PutString("a\xffb") }},
		{"string array", func(b *Buffer) error { return b.PutStringArray([]string{"ok", "\xc3"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewArray(16)
			err := tt.put(b)
			var e *errors.Error
			if !errors.As(err, &e) || e.Kind != errors.KindInvalidData {
				t.Fatalf("err = %v, want invalid_data", err)
			}
		})
	}
}

func TestBuffer_NegativeArrayLength(t *testing.T) {
	if _, err := Wrap(nil).GetInt64Array(-1); err == nil {
		t.Error("expected error for negative length")
	}
}

func TestBuffer_Close(t *testing.T) {
	b := NewArray(8)
	if err := b.PutInt32(1); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	err := b.PutInt32(2)
	if !errors.Is(err, &errors.Error{Phase: errors.PhaseIO, Kind: errors.KindClosed}) {
		t.Errorf("put after close = %v, want closed error", err)
	}
	if b.Bytes() != nil {
		t.Error("Bytes after close should be nil")
	}
}

func TestBuffer_RewindOverwrites(t *testing.T) {
	b := NewArray(0)
	_ = b.PutInt32(1)
	_ = b.PutInt32(2)
	b.Rewind()
	_ = b.PutInt32(9)

	if b.Len() != 8 {
		t.Errorf("Len = %d, want high-water mark 8", b.Len())
	}
	b.Rewind()
	first, _ := b.GetInt32()
	second, _ := b.GetInt32()
	if first != 9 || second != 2 {
		t.Errorf("got %d, %d", first, second)
	}
}

func TestBuffer_ImplementsIO(t *testing.T) {
	var _ IO = NewHeap(0)
}
