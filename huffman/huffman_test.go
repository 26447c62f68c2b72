package huffman

import (
	"bytes"
	"testing"

	"github.com/uyjulian/zbspac/bitstream"
)

func TestEncodeTwoSymbolTree(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		if i%2 == 0 {
			data[i] = 0x41
		} else {
			data[i] = 0x42
		}
	}

	enc, err := Encode("alt", data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	bs := bitstream.New(enc)
	wantTreeBits := []byte{1, 0}
	for _, b := range wantTreeBits[:1] {
		got, err := bs.NextBit()
		if err != nil || got != b {
			t.Fatalf("tree bit = %d, %v, want %d", got, err, b)
		}
	}
	bit, _ := bs.NextBit()
	if bit != 0 {
		t.Fatalf("expected leaf bit 0, got %d", bit)
	}
	lit, _ := bs.NextByte()
	if lit != 0x41 {
		t.Fatalf("first leaf literal = %#x, want 0x41", lit)
	}
	bit, _ = bs.NextBit()
	if bit != 0 {
		t.Fatalf("expected leaf bit 0, got %d", bit)
	}
	lit, _ = bs.NextByte()
	if lit != 0x42 {
		t.Fatalf("second leaf literal = %#x, want 0x42", lit)
	}

	for i, want := range data {
		got, err := bs.NextBit()
		if err != nil {
			t.Fatalf("symbol bit %d: %v", i, err)
		}
		var wantBit byte
		if want == 0x42 {
			wantBit = 1
		}
		if got != wantBit {
			t.Fatalf("symbol bit %d = %d, want %d", i, got, wantBit)
		}
	}

	out, err := Decode("alt", enc, len(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestRoundTripVariedAlphabet(t *testing.T) {
	var data []byte
	for i := 0; i < 2000; i++ {
		data = append(data, byte((i*37+i*i)%251))
	}

	enc, err := Encode("varied", data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := Decode("varied", enc, len(data))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(out), len(data))
	}
}

func TestSingleDistinctByteRejectedOnDecode(t *testing.T) {
	data := bytes.Repeat([]byte{0x7F}, 64)

	enc, err := Encode("mono", data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := Decode("mono", enc, len(data)); err == nil {
		t.Fatalf("Decode of a single-distinct-byte stream succeeded; want corruption error")
	}
}

func TestEncodeEmptyInput(t *testing.T) {
	if _, err := Encode("empty", nil); err == nil {
		t.Fatalf("Encode(nil) succeeded; want error")
	}
}
