// Package huffman implements the NeXaS-flavored Huffman codec used to
// compress a PAC archive's index. Unlike DEFLATE's canonical codes, the
// serialized form here is a preorder traversal of the literal tree itself:
// a 1 bit introduces an internal node and recurses into both children, a 0
// bit introduces a leaf followed by its 8-bit byte value. There is no
// length-limiting or canonicalization step.
package huffman

import (
	"github.com/uyjulian/zbspac/bitstream"
	"github.com/uyjulian/zbspac/pqueue"
)

// Error is the wrapper type for errors specific to this package.
type Error string

func (e Error) Error() string { return "huffman: " + string(e) }

const (
	// maxEncodeNodes holds 256 leaves plus up to 255 internal nodes; 512
	// leaves a round number, matching the original encoder's arena.
	maxEncodeNodes = 512
	// maxDecodeNodes is the largest a decoded tree's internal-node table
	// can be: at most 255 internal nodes (the root among them) for a
	// 256-leaf alphabet, rounded up to 256.
	maxDecodeNodes = 256
	// leafBase is added to a literal byte value to distinguish a leaf
	// reference from an internal node index in the compact decode tree.
	leafBase = 1024
)

// encNode is a node in the encoder's working tree. The first 256 slots are
// reserved for byte-literal leaves (used or not, depending on the input);
// internal nodes are appended starting at index 256.
type encNode struct {
	weight  uint32
	parent  uint16
	isRight bool
	left    uint16
	right   uint16
}

func buildEncodeTree(data []byte) (tree [maxEncodeNodes]encNode, root uint16, err error) {
	var freq [256]uint32
	for _, b := range data {
		freq[b]++
	}

	q := pqueue.New(256)
	for b := 0; b < 256; b++ {
		if freq[b] > 0 {
			tree[b].weight = freq[b]
			q.Insert(uint32(b), freq[b])
		}
	}
	if q.Len() == 0 {
		return tree, 0, Error("no data to encode")
	}

	next := uint16(256)
	for q.Len() > 1 {
		pa, wa, _ := q.PopMin()
		pb, wb, _ := q.PopMin()
		idx := next
		next++
		tree[idx].left = uint16(pa)
		tree[idx].right = uint16(pb)
		tree[idx].weight = wa + wb
		tree[pa].parent = idx
		tree[pa].isRight = false
		tree[pb].parent = idx
		tree[pb].isRight = true
		q.Insert(uint32(idx), wa+wb)
	}

	rootPayload, _, _ := q.PopMin()
	return tree, uint16(rootPayload), nil
}

func encodeTreePreorder(bs *bitstream.Stream, tree *[maxEncodeNodes]encNode, node uint16) error {
	if node < 256 {
		if err := bs.SetNextBit(0); err != nil {
			return err
		}
		return bs.SetNextByte(byte(node))
	}
	if err := bs.SetNextBit(1); err != nil {
		return err
	}
	if err := encodeTreePreorder(bs, tree, tree[node].left); err != nil {
		return err
	}
	return encodeTreePreorder(bs, tree, tree[node].right)
}

// encodeData writes the prefix code for every byte of data. Per-symbol codes
// are collected by walking from the leaf up to the root, which yields the
// bits in reverse; codeLen therefore indexes down from its last bit using a
// signed counter so a (theoretical) zero-length code - the root itself being
// a leaf - never underflows.
func encodeData(bs *bitstream.Stream, tree *[maxEncodeNodes]encNode, root uint16, data []byte) error {
	var codeLen [256]int
	var code [256][256]byte

	for b := 0; b < 256; b++ {
		if tree[b].weight == 0 {
			continue
		}
		idx := uint16(b)
		n := 0
		for idx != root {
			if tree[idx].isRight {
				code[b][n] = 1
			}
			n++
			idx = tree[idx].parent
		}
		codeLen[b] = n
	}

	for _, b := range data {
		thisCode := &code[b]
		for j := codeLen[b] - 1; j >= 0; j-- {
			if err := bs.SetNextBit(thisCode[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Encode compresses data into a self-describing bitstream: the tree used to
// produce it, followed by the per-byte codes. name identifies the stream in
// error messages only. The scratch buffer is bounded at 2*len(data) bytes;
// exceeding that bound indicates a construction error and is reported as
// EncodingOverflow.
func Encode(name string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, Error(name + ": no data to encode")
	}

	tree, root, err := buildEncodeTree(data)
	if err != nil {
		return nil, Error(name + ": " + err.Error())
	}

	scratch := make([]byte, 2*len(data))
	bs := bitstream.New(scratch)
	if err := encodeTreePreorder(bs, &tree, root); err != nil {
		return nil, Error(name + ": encoding overflow while writing tree")
	}
	if err := encodeData(bs, &tree, root, data); err != nil {
		return nil, Error(name + ": encoding overflow while writing data")
	}

	n := bs.ByteIndex() + 1
	if n > len(scratch) {
		return nil, Error(name + ": encoding overflow")
	}
	out := make([]byte, n)
	copy(out, scratch[:n])
	return out, nil
}

// decNode is a node in the compact decode tree. A child value below 256 is
// the index of another internal node; a child value at or above 1024 is
// 1024 plus a literal byte value.
type decNode struct {
	left, right uint16
}

func buildDecodeSubtree(bs *bitstream.Stream, tree *[maxDecodeNodes]decNode, free *int) (uint16, error) {
	bit, err := bs.NextBit()
	if err != nil {
		return 0, Error("encoded data exhausted while building tree")
	}
	if bit == 0 {
		b, err := bs.NextByte()
		if err != nil {
			return 0, Error("encoded data exhausted while building tree")
		}
		return uint16(b) + leafBase, nil
	}

	idx := *free
	if idx == maxDecodeNodes {
		return 0, Error("tree capacity exceeded")
	}
	*free++

	left, err := buildDecodeSubtree(bs, tree, free)
	if err != nil {
		return 0, err
	}
	tree[idx].left = left

	right, err := buildDecodeSubtree(bs, tree, free)
	if err != nil {
		return 0, err
	}
	tree[idx].right = right

	return uint16(idx), nil
}

// Decode reconstructs decodedLen bytes from encoded, which must have been
// produced by Encode from an input of that length. name is used only for
// diagnostics.
//
// A tree whose root is not node 0 - the signature of a single-symbol
// alphabet, where the lone leaf serializes directly as the "root" - is
// rejected as corrupt. Real NeXaS archives are assumed never to compress a
// single repeated byte through this codec; TestSingleDistinctByteRejectedOnDecode
// covers this case.
func Decode(name string, encoded []byte, decodedLen int) ([]byte, error) {
	bs := bitstream.New(encoded)

	var tree [maxDecodeNodes]decNode
	free := 0
	root, err := buildDecodeSubtree(bs, &tree, &free)
	if err != nil {
		return nil, Error(name + ": " + err.Error())
	}
	if root != 0 {
		return nil, Error(name + ": encoded data corrupted (degenerate tree)")
	}

	out := make([]byte, decodedLen)
	var idx uint16
	for produced := 0; produced < decodedLen; {
		bit, err := bs.NextBit()
		if err != nil {
			return nil, Error(name + ": encoded data exhausted while decoding")
		}
		var next uint16
		if bit == 1 {
			next = tree[idx].right
		} else {
			next = tree[idx].left
		}
		if next >= leafBase {
			out[produced] = byte(next - leafBase)
			produced++
			idx = 0
		} else {
			idx = next
		}
	}
	return out, nil
}
