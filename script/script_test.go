package script

import (
	"bytes"
	"encoding/binary"
	"testing"

	"golang.org/x/text/encoding/unicode"

	"github.com/uyjulian/zbspac/textconv"
)

func buildCompiled(t *testing.T, n uint64, texts []string, extraNulls []int, tail []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var head [8]byte
	binary.LittleEndian.PutUint64(head[:], n)
	buf.Write(head[:])
	for i := uint64(8); i < (n+1)*8; i++ {
		buf.WriteByte(0)
	}
	for i, text := range texts {
		raw, err := textconv.ToShiftJIS(text)
		if err != nil {
			t.Fatalf("ToShiftJIS: %v", err)
		}
		buf.Write(raw)
		buf.WriteByte(0)
		for k := 0; k < extraNulls[i]; k++ {
			buf.WriteByte(0)
		}
	}
	buf.Write(tail)
	return buf.Bytes()
}

func TestSplitJoinRoundTrip(t *testing.T) {
	texts := []string{"hello", "world", "ABC.bin"}
	extra := []int{0, 2, 0}
	tail := []byte{0xFF, 0x01, 0x02}

	compiled := buildCompiled(t, 0, texts, extra, tail)

	head, segments, gotTail, err := Split(compiled)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(segments) != len(texts) {
		t.Fatalf("got %d segments, want %d", len(segments), len(texts))
	}
	for i, want := range texts {
		if segments[i].Text != want || segments[i].Original != want {
			t.Errorf("segment %d text = %q/%q, want %q", i, segments[i].Original, segments[i].Text, want)
		}
		if segments[i].NullCount != extra[i] {
			t.Errorf("segment %d null count = %d, want %d", i, segments[i].NullCount, extra[i])
		}
	}
	if !segments[2].NotText {
		t.Errorf("segment 2 (%q) should be classified NOT-TEXT", segments[2].Text)
	}
	if segments[0].NotText {
		t.Errorf("segment 0 (%q) should not be classified NOT-TEXT", segments[0].Text)
	}
	if !bytes.Equal(gotTail, tail) {
		t.Errorf("tail = %v, want %v", gotTail, tail)
	}

	rejoined, err := Join(head, segments, gotTail)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !bytes.Equal(rejoined, compiled) {
		t.Errorf("Join(Split(x)) != x")
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	segments := []Segment{
		{Index: 0, NullCount: 0, RawLen: len("hello"), Original: "hello", Text: "hello, translated"},
		{Index: 1, NullCount: 3, NotText: true, RawLen: len("EVENT01.bin"), Original: "EVENT01.bin", Text: "EVENT01.bin"},
	}

	data, err := WriteTranscript(segments)
	if err != nil {
		t.Fatalf("WriteTranscript: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xFE {
		t.Fatalf("transcript missing UTF-16LE BOM, got first bytes %v", data[:2])
	}

	got, err := ReadTranscript(data)
	if err != nil {
		t.Fatalf("ReadTranscript: %v", err)
	}
	if len(got) != len(segments) {
		t.Fatalf("got %d segments, want %d", len(got), len(segments))
	}
	for i := range segments {
		if got[i] != segments[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got[i], segments[i])
		}
	}
}

func TestTranscriptCountFieldAtFixedOffset(t *testing.T) {
	segments := []Segment{
		{Index: 0, RawLen: len("x"), Original: "x", Text: "x"},
	}
	data, err := WriteTranscript(segments)
	if err != nil {
		t.Fatalf("WriteTranscript: %v", err)
	}

	wantField := data[countFieldByteOffset : countFieldByteOffset+countFieldWidth*2]
	dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	decoded, derr := dec.Bytes(append([]byte{0xFF, 0xFE}, wantField...))
	if derr != nil {
		t.Fatalf("decode count field: %v", derr)
	}
	if string(decoded) != "    1" {
		t.Errorf("count field at offset %d = %q, want %q", countFieldByteOffset, decoded, "    1")
	}
}

func TestSplitRejectsShortHeader(t *testing.T) {
	if _, _, _, err := Split([]byte{1, 2, 3}); err == nil {
		t.Fatalf("Split of a too-short input succeeded")
	}
}
