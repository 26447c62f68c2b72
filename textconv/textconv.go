// Package textconv bridges Go's UTF-8 strings and the Shift-JIS encoding
// NeXaS archives use for entry names and script transcripts. Every
// conversion here is a stand-in for the original tool's practice of
// switching the process locale to Shift-JIS before a conversion and
// restoring the native locale afterward on every exit path; encoding.Encoder
// and encoding.Decoder give the same guarantee without global state.
package textconv

import (
	"bytes"

	"golang.org/x/text/encoding/japanese"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "textconv: " + string(e) }

// NameFieldSize is the fixed width, in bytes, of a PAC index record's name
// field, including its NUL terminator.
const NameFieldSize = 64

// ToShiftJIS encodes s (UTF-8) to Shift-JIS bytes.
func ToShiftJIS(s string) ([]byte, error) {
	b, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, Error("transcode to Shift-JIS failed: " + err.Error())
	}
	return b, nil
}

// FromShiftJIS decodes Shift-JIS bytes to a UTF-8 string.
func FromShiftJIS(b []byte) (string, error) {
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(b)
	if err != nil {
		return "", Error("transcode from Shift-JIS failed: " + err.Error())
	}
	return string(out), nil
}

// EncodeName packs name into a NameFieldSize-byte NUL-padded Shift-JIS
// field suitable for a PAC index record. It reports NameTooLong (via
// Error) if the Shift-JIS encoding, including its terminator, does not fit.
func EncodeName(name string) ([NameFieldSize]byte, error) {
	var field [NameFieldSize]byte
	enc, err := ToShiftJIS(name)
	if err != nil {
		return field, err
	}
	if len(enc) > NameFieldSize-1 {
		return field, Error("name too long: " + name)
	}
	copy(field[:], enc)
	return field, nil
}

// DecodeName unpacks a NameFieldSize-byte NUL-padded Shift-JIS field back
// into a UTF-8 string.
func DecodeName(field [NameFieldSize]byte) (string, error) {
	n := bytes.IndexByte(field[:], 0)
	if n < 0 {
		n = NameFieldSize
	}
	return FromShiftJIS(field[:n])
}
