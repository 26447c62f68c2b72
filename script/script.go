// Package script implements extraction and reinjection of the text
// embedded in a NeXaS compiled script, plus the plain-text transcript
// format used to edit that text outside the engine.
//
// A compiled script begins with a little-endian uint64 n identifying the
// size of a pointer table; the text section begins immediately after that
// table, at byte offset (n+1)*8, and ends at the first byte that cannot
// begin another segment: one below 32, or 0xFF.
package script

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/uyjulian/zbspac/internal/xerr"
	"github.com/uyjulian/zbspac/textconv"
)

// Segment is one NUL-terminated string pulled from a script's text
// section, along with enough bookkeeping to reproduce its exact byte
// layout on reinjection and to render its transcript block.
type Segment struct {
	Index int
	// NullCount is the number of extra NUL bytes found after the
	// segment's own terminator and before the next segment (or the text
	// section's end), a padding quirk of the original format.
	NullCount int
	// NotText marks a segment whose bytes are not narrative dialogue -
	// an identifier or embedded filename - identified by the heuristics
	// in classify.
	NotText bool
	// RawLen is the length, in bytes, of the segment's Shift-JIS
	// encoding as extracted, before any translation. It sizes the
	// transcript's dash separator line.
	RawLen int
	// Original is the text as extracted, never modified by a round trip
	// through the transcript.
	Original string
	// Text is the text to reinject; it starts out equal to Original and
	// is the line a translator edits in the transcript file.
	Text string
}

// headerPrefix, the fixed encoding name, and the count field's width are
// chosen so that the COUNT value always begins at byte offset 88 in the
// UTF-16LE-with-BOM transcript: 2 BOM bytes plus 43 UTF-16 code units (86
// bytes) of fixed header text before it.
const (
	headerPrefix           = "ZBSPAC-TRANSLATION ENCODING "
	transcriptEncodingName = "SHIFTJIS"
	headerCountLabel       = " COUNT "
	countFieldWidth        = 5
	countFieldByteOffset   = 88
)

// Split divides a compiled script into its pointer-table head, its text
// section's segments, and the trailing bytes following the text section.
func Split(compiled []byte) (head []byte, segments []Segment, tail []byte, err error) {
	if len(compiled) < 8 {
		return nil, nil, nil, xerr.New(xerr.FormatMismatch, "compiled script shorter than its pointer-table header")
	}
	n := binary.LittleEndian.Uint64(compiled[:8])
	textStart := (n + 1) * 8
	if textStart > uint64(len(compiled)) {
		return nil, nil, nil, xerr.New(xerr.CorruptInput, "pointer table runs past end of file")
	}
	head = append([]byte(nil), compiled[:textStart]...)

	cursor := int(textStart)
	idx := 0
	for {
		if cursor >= len(compiled) || compiled[cursor] < 32 || compiled[cursor] == 0xFF {
			break
		}
		nul := bytes.IndexByte(compiled[cursor:], 0)
		if nul < 0 {
			return nil, nil, nil, xerr.New(xerr.CorruptInput, "unterminated segment in text section")
		}
		raw := compiled[cursor : cursor+nul]
		end := cursor + nul + 1

		extra := 0
		for end+extra < len(compiled) && compiled[end+extra] == 0 {
			extra++
		}

		text, decErr := textconv.FromShiftJIS(raw)
		if decErr != nil {
			return nil, nil, nil, xerr.Wrap(xerr.TranscodeFailure, fmt.Sprintf("segment %d", idx), decErr)
		}

		segments = append(segments, Segment{
			Index:     idx,
			NullCount: extra,
			NotText:   classify(raw, text),
			RawLen:    len(raw),
			Original:  text,
			Text:      text,
		})

		cursor = end + extra
		idx++
	}
	tail = append([]byte(nil), compiled[cursor:]...)
	return head, segments, tail, nil
}

// classify reports whether a segment holds something other than narrative
// text: an identifier or filename rather than dialogue. Flagged when the
// first byte is an ASCII digit or uppercase letter, or the decoded text
// ends in ".bin".
func classify(raw []byte, text string) bool {
	if len(raw) > 0 {
		c := raw[0]
		if ('0' <= c && c <= '9') || ('A' <= c && c <= 'Z') {
			return true
		}
	}
	return strings.HasSuffix(text, ".bin")
}

// Join reassembles a compiled script from a head, a set of (possibly
// edited) segments, and a tail, all as returned by Split. The pointer
// table in head is carried through unmodified; this format addresses
// segments by sequential scan, not by byte offset, so edits that change a
// segment's length do not require patching head.
func Join(head []byte, segments []Segment, tail []byte) ([]byte, error) {
	var out bytes.Buffer
	out.Write(head)
	for _, s := range segments {
		raw, err := textconv.ToShiftJIS(s.Text)
		if err != nil {
			return nil, xerr.Wrap(xerr.TranscodeFailure, fmt.Sprintf("segment %d", s.Index), err)
		}
		out.Write(raw)
		out.WriteByte(0)
		for i := 0; i < s.NullCount; i++ {
			out.WriteByte(0)
		}
	}
	out.Write(tail)
	return out.Bytes(), nil
}

// WriteTranscript renders segments as a UTF-16LE, BOM-prefixed, CRLF
// transcript suitable for hand translation: a header line naming the
// source encoding and segment count, then for each segment a metadata
// line, the original text, a dash separator sized to the original's raw
// byte length, and a translated line (initially a copy of the original)
// that a translator edits in place.
func WriteTranscript(segments []Segment) ([]byte, error) {
	header := fmt.Sprintf("%s%s%s%*d", headerPrefix, transcriptEncodingName, headerCountLabel, countFieldWidth, len(segments))

	var lines []string
	lines = append(lines, header, "")
	for _, s := range segments {
		meta := fmt.Sprintf("SEG %d NULL %d", s.Index, s.NullCount)
		if s.NotText {
			meta += " NOT-TEXT"
		}
		lines = append(lines, meta, s.Original, strings.Repeat("-", s.RawLen), s.Text, "")
	}

	plain := strings.Join(lines, "\r\n")
	enc := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewEncoder()
	out, err := enc.Bytes([]byte(plain))
	if err != nil {
		return nil, xerr.Wrap(xerr.TranscodeFailure, "transcript", err)
	}
	return out, nil
}

// ReadTranscript parses a transcript produced by WriteTranscript, returning
// its segments in order. The translated line of each block becomes the
// segment's Text.
func ReadTranscript(data []byte) ([]Segment, error) {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	plain, err := dec.Bytes(data)
	if err != nil {
		return nil, xerr.Wrap(xerr.TranscodeFailure, "transcript", err)
	}

	text := strings.ReplaceAll(string(plain), "\r\n", "\n")
	// WriteTranscript ends the last block with a line break; drop it so the
	// last block splits into the same four lines as the others.
	text = strings.TrimSuffix(text, "\n")
	blocks := strings.Split(text, "\n\n")
	if len(blocks) == 0 {
		return nil, xerr.New(xerr.CorruptInput, "empty transcript")
	}
	if !strings.HasPrefix(blocks[0], headerPrefix) {
		return nil, xerr.New(xerr.FormatMismatch, "missing transcript header")
	}

	countIdx := strings.LastIndex(blocks[0], headerCountLabel)
	if countIdx < 0 {
		return nil, xerr.New(xerr.FormatMismatch, "transcript header missing segment count")
	}
	count, err := strconv.Atoi(strings.TrimSpace(blocks[0][countIdx+len(headerCountLabel):]))
	if err != nil {
		return nil, xerr.Wrap(xerr.FormatMismatch, "transcript header segment count", err)
	}

	body := blocks[1:]
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	if len(body) != count {
		return nil, xerr.New(xerr.CorruptInput, fmt.Sprintf("transcript declares %d segments but has %d blocks", count, len(body)))
	}

	segments := make([]Segment, count)
	for i, block := range body {
		blockLines := strings.Split(block, "\n")
		if len(blockLines) != 4 {
			return nil, xerr.New(xerr.CorruptInput, fmt.Sprintf("segment block %d has %d lines, want 4", i, len(blockLines)))
		}
		meta, original, _, translated := blockLines[0], blockLines[1], blockLines[2], blockLines[3]

		fields := strings.Fields(meta)
		if len(fields) < 4 || fields[0] != "SEG" || fields[2] != "NULL" {
			return nil, xerr.New(xerr.CorruptInput, fmt.Sprintf("malformed segment metadata line %q", meta))
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, xerr.Wrap(xerr.CorruptInput, "segment index", err)
		}
		nullCount, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, xerr.Wrap(xerr.CorruptInput, "segment null count", err)
		}
		notText := len(fields) >= 5 && fields[4] == "NOT-TEXT"

		rawLen, err := rawShiftJISLen(original)
		if err != nil {
			return nil, err
		}

		segments[i] = Segment{
			Index:     idx,
			NullCount: nullCount,
			NotText:   notText,
			RawLen:    rawLen,
			Original:  original,
			Text:      translated,
		}
	}
	return segments, nil
}

func rawShiftJISLen(s string) (int, error) {
	raw, err := textconv.ToShiftJIS(s)
	if err != nil {
		return 0, xerr.Wrap(xerr.TranscodeFailure, "segment original text", err)
	}
	return len(raw), nil
}
