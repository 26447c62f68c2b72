// Package pac implements the NeXaS PAC archive container: a fixed header,
// a 76-byte-per-entry index, and a payload section whose entries may be
// stored verbatim, LZSS-compressed, Huffman-compressed, or DEFLATE-compressed,
// depending on the archive's variant.
package pac

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/uyjulian/zbspac/huffman"
	"github.com/uyjulian/zbspac/internal/xerr"
	"github.com/uyjulian/zbspac/lzss"
	"github.com/uyjulian/zbspac/textconv"
)

const (
	headerSize = 12
	indexSize  = 76
	nameSize   = textconv.NameFieldSize

	tag = "PAC"
	// formatByte is the fixed fourth header byte following the "PAC" tag,
	// present in every archive this package has seen.
	formatByte = 0x00
)

// Variant selects how an archive's index is located and how its payload
// entries are compressed.
type Variant uint32

const (
	VariantStored      Variant = 0 // payloads stored verbatim, plain index
	VariantLZSS        Variant = 1 // payloads LZSS-compressed, plain index
	VariantHuffman     Variant = 2 // payloads Huffman-compressed, plain index
	VariantDeflate     Variant = 3 // payloads DEFLATE-compressed, plain index
	VariantMaybeDeflate Variant = 4 // payloads per-entry stored-or-DEFLATE, index trails payloads, Huffman-compressed and XOR-obfuscated
)

// Entry is one file packed into (or unpacked from) an archive.
type Entry struct {
	Name string
	Data []byte
}

// indexRecord is the on-disk 76-byte per-entry index structure.
type indexRecord struct {
	name          [nameSize]byte
	offset        uint32
	decodedLength uint32
	encodedLength uint32
}

func (r *indexRecord) marshal() []byte {
	buf := make([]byte, indexSize)
	copy(buf[:nameSize], r.name[:])
	binary.LittleEndian.PutUint32(buf[nameSize:], r.offset)
	binary.LittleEndian.PutUint32(buf[nameSize+4:], r.decodedLength)
	binary.LittleEndian.PutUint32(buf[nameSize+8:], r.encodedLength)
	return buf
}

func unmarshalIndexRecord(buf []byte) indexRecord {
	var r indexRecord
	copy(r.name[:], buf[:nameSize])
	r.offset = binary.LittleEndian.Uint32(buf[nameSize:])
	r.decodedLength = binary.LittleEndian.Uint32(buf[nameSize+4:])
	r.encodedLength = binary.LittleEndian.Uint32(buf[nameSize+8:])
	return r
}

// Pack writes entries into a variant-4 archive: payloads immediately after
// the header, followed by a Huffman-compressed, XOR-0xFF-obfuscated index
// and a trailing 4-byte little-endian length of that index blob.
//
// Every entry whose name does not end in ".ogg" is compressed with DEFLATE;
// the deflated result is kept only when it is strictly smaller than the
// input, otherwise the entry is stored verbatim. Unpack relies on this:
// it inflates an entry exactly when its decoded length exceeds its encoded
// length.
func Pack(entries []Entry) ([]byte, error) {
	var out bytes.Buffer
	if err := writeHeader(&out, len(entries), VariantMaybeDeflate); err != nil {
		return nil, err
	}

	records := make([]indexRecord, len(entries))
	for i, e := range entries {
		name, err := textconv.EncodeName(e.Name)
		if err != nil {
			return nil, xerr.Wrap(xerr.NameTooLong, e.Name, err)
		}

		offset := out.Len()
		encoded := e.Data
		if !hasSuffixFold(e.Name, ".ogg") {
			if deflated := deflateBytes(e.Data); len(deflated) < len(e.Data) {
				encoded = deflated
			}
		}
		out.Write(encoded)

		records[i] = indexRecord{
			name:          name,
			offset:        uint32(offset),
			decodedLength: uint32(len(e.Data)),
			encodedLength: uint32(len(encoded)),
		}
	}

	var rawIndex bytes.Buffer
	for _, r := range records {
		rawIndex.Write(r.marshal())
	}

	var obfuscated []byte
	if rawIndex.Len() > 0 {
		huffIndex, err := huffman.Encode("index", rawIndex.Bytes())
		if err != nil {
			return nil, xerr.Wrap(xerr.EncodingOverflow, "index", err)
		}
		obfuscated = make([]byte, len(huffIndex))
		for i, b := range huffIndex {
			obfuscated[i] = b ^ 0xFF
		}
	}
	out.Write(obfuscated)

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], uint32(len(obfuscated)))
	out.Write(trailer[:])

	return out.Bytes(), nil
}

// PackPlain writes entries into a plain-index archive of the given variant
// (Stored, LZSS, Huffman, or Deflate): the index sits directly after the header, and
// every payload uses the same codec.
func PackPlain(entries []Entry, variant Variant) ([]byte, error) {
	if variant == VariantMaybeDeflate {
		return nil, xerr.New(xerr.FormatMismatch, "PackPlain does not accept VariantMaybeDeflate")
	}

	records := make([]indexRecord, len(entries))
	payloadOffset := headerSize + len(entries)*indexSize
	var payloads bytes.Buffer

	for i, e := range entries {
		name, err := textconv.EncodeName(e.Name)
		if err != nil {
			return nil, xerr.Wrap(xerr.NameTooLong, e.Name, err)
		}

		var encoded []byte
		switch variant {
		case VariantStored:
			encoded = e.Data
		case VariantLZSS:
			encoded = lzss.Encode(e.Data)
		case VariantHuffman:
			if len(e.Data) == 0 {
				encoded = nil
			} else {
				encoded, err = huffman.Encode(e.Name, e.Data)
				if err != nil {
					return nil, xerr.Wrap(xerr.EncodingOverflow, e.Name, err)
				}
			}
		case VariantDeflate:
			encoded = deflateBytes(e.Data)
		default:
			return nil, xerr.New(xerr.FormatMismatch, "unsupported plain-index variant")
		}

		records[i] = indexRecord{
			name:          name,
			offset:        uint32(payloadOffset + payloads.Len()),
			decodedLength: uint32(len(e.Data)),
			encodedLength: uint32(len(encoded)),
		}
		payloads.Write(encoded)
	}

	var out bytes.Buffer
	if err := writeHeader(&out, len(entries), variant); err != nil {
		return nil, err
	}
	for _, r := range records {
		out.Write(r.marshal())
	}
	out.Write(payloads.Bytes())
	return out.Bytes(), nil
}

func writeHeader(w io.Writer, entryCount int, variant Variant) error {
	var buf [headerSize]byte
	copy(buf[:3], tag)
	buf[3] = formatByte
	binary.LittleEndian.PutUint32(buf[4:8], uint32(entryCount))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(variant))
	_, err := w.Write(buf[:])
	if err != nil {
		return xerr.Wrap(xerr.IO, "write header", err)
	}
	return nil
}

func hasSuffixFold(name, suffix string) bool {
	if len(name) < len(suffix) {
		return false
	}
	tail := name[len(name)-len(suffix):]
	if len(tail) != len(suffix) {
		return false
	}
	for i := range tail {
		a, b := tail[i], suffix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

func deflateBytes(data []byte) []byte {
	var buf bytes.Buffer
	zw, _ := flate.NewWriter(&buf, flate.DefaultCompression)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

func inflateBytes(data []byte, decodedLen int) ([]byte, error) {
	zr := flate.NewReader(bytes.NewReader(data))
	defer zr.Close()
	out := make([]byte, decodedLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, xerr.Wrap(xerr.CorruptInput, "inflate payload", err)
	}
	return out, nil
}

// Unpack reads an archive of any variant this package writes (or, for
// variants 0-3, any archive using a plain trailing-after-header index with
// a uniform per-entry codec) and returns its entries in index order.
func Unpack(data []byte) ([]Entry, error) {
	if len(data) < headerSize {
		return nil, xerr.New(xerr.FormatMismatch, "file too small for a PAC header")
	}
	if string(data[:3]) != tag {
		return nil, xerr.New(xerr.FormatMismatch, "missing PAC tag")
	}
	entryCount := int(binary.LittleEndian.Uint32(data[4:8]))
	variant := Variant(binary.LittleEndian.Uint32(data[8:12]))

	var records []indexRecord
	var err error
	switch variant {
	case VariantMaybeDeflate:
		records, err = readTrailingIndex(data, entryCount)
	default:
		records, err = readPlainIndex(data, entryCount)
	}
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, entryCount)
	for i, r := range records {
		name, err := textconv.DecodeName(r.name)
		if err != nil {
			return nil, xerr.Wrap(xerr.TranscodeFailure, "entry name", err)
		}
		if int(r.offset)+int(r.encodedLength) > len(data) {
			return nil, xerr.New(xerr.CorruptInput, "entry payload runs past end of file: "+name)
		}
		raw := data[r.offset : r.offset+r.encodedLength]

		decoded, err := decodePayload(variant, raw, int(r.decodedLength), int(r.encodedLength))
		if err != nil {
			return nil, xerr.Wrap(xerr.CorruptInput, name, err)
		}
		entries[i] = Entry{Name: name, Data: decoded}
	}
	return entries, nil
}

func decodePayload(variant Variant, raw []byte, decodedLen, encodedLen int) ([]byte, error) {
	switch variant {
	case VariantStored:
		return append([]byte(nil), raw...), nil
	case VariantLZSS:
		return lzss.Decode(raw, decodedLen)
	case VariantHuffman:
		if decodedLen == 0 {
			return nil, nil
		}
		return huffman.Decode("entry", raw, decodedLen)
	case VariantDeflate:
		return inflateBytes(raw, decodedLen)
	case VariantMaybeDeflate:
		if decodedLen > encodedLen {
			return inflateBytes(raw, decodedLen)
		}
		return append([]byte(nil), raw...), nil
	default:
		return nil, xerr.New(xerr.FormatMismatch, "unknown variant")
	}
}

func readPlainIndex(data []byte, entryCount int) ([]indexRecord, error) {
	want := headerSize + entryCount*indexSize
	if len(data) < want {
		return nil, xerr.New(xerr.CorruptInput, "file too small for index")
	}
	records := make([]indexRecord, entryCount)
	for i := 0; i < entryCount; i++ {
		off := headerSize + i*indexSize
		records[i] = unmarshalIndexRecord(data[off : off+indexSize])
	}
	if entryCount > 0 && int(records[0].offset) != want {
		return nil, xerr.New(xerr.CorruptInput, "first entry offset does not follow the index")
	}
	return records, nil
}

func readTrailingIndex(data []byte, entryCount int) ([]indexRecord, error) {
	if entryCount == 0 {
		return nil, nil
	}
	if len(data) < 4 {
		return nil, xerr.New(xerr.CorruptInput, "file too small for index trailer")
	}
	trailerLen := binary.LittleEndian.Uint32(data[len(data)-4:])
	blobEnd := len(data) - 4
	blobStart := blobEnd - int(trailerLen)
	if blobStart < headerSize || blobStart > blobEnd {
		return nil, xerr.New(xerr.CorruptInput, "invalid index trailer length")
	}

	obfuscated := data[blobStart:blobEnd]
	huffIndex := make([]byte, len(obfuscated))
	for i, b := range obfuscated {
		huffIndex[i] = b ^ 0xFF
	}

	raw, err := huffman.Decode("index", huffIndex, entryCount*indexSize)
	if err != nil {
		return nil, xerr.Wrap(xerr.CorruptInput, "index", err)
	}

	records := make([]indexRecord, entryCount)
	for i := 0; i < entryCount; i++ {
		off := i * indexSize
		records[i] = unmarshalIndexRecord(raw[off : off+indexSize])
	}
	return records, nil
}
