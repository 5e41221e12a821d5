// File: snapconfig/encode.go
package snapconfig

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"unicode/utf8"
)

// Archive layout, all integers little-endian:
//
//	0   magic "SNAP" (4 bytes)
//	4   format version (uint16)
//	6   reserved (uint16, zero)
//	8   CRC32-IEEE of everything after this field (uint32)
//	12  node count (uint32)
//	16  root flag (uint32, 1 when a root index follows)
//	20  root index (uint32)
//	24  node offset table: count x uint32, relative to the body start
//	    node records
//
// A record is a tag byte followed by a kind-specific payload:
//
//	null    -
//	bool    1 byte (0 or 1)
//	int     8 bytes (two's complement)
//	float   8 bytes (IEEE 754)
//	string  uint32 length + bytes
//	array   uint32 count + count x uint32 child indices
//	object  uint32 count + count x (keyOff, keyLen, childIdx as uint32)
//	        + key byte blob; keyOff is relative to the blob start
//
// Object entries are fixed width so the i-th entry is addressable in O(1),
// which is what makes binary search over the sorted keys possible directly
// on the mapped bytes. No field in the format is a memory address: every
// reference is an arena index or a buffer-relative offset, so the buffer
// can be mapped at any address and read in place.
const (
	archiveMagic   = "SNAP"
	archiveVersion = 1
	headerSize     = 24

	objectEntrySize = 12
)

// Encode serializes a tree into a self-contained archive buffer. Encoding
// is deterministic: the same tree always yields identical bytes.
func Encode(t *Tree) ([]byte, error) {
	if uint64(len(t.nodes)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: tree has %d nodes, exceeds uint32 index space", ErrSerialize, len(t.nodes))
	}
	count := uint32(len(t.nodes))

	offsets := make([]uint32, count)
	var body []byte
	for i := range t.nodes {
		if uint64(len(body)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: archive body exceeds uint32 offset space", ErrSerialize)
		}
		offsets[i] = uint32(len(body))
		var err error
		body, err = appendNode(body, &t.nodes[i])
		if err != nil {
			return nil, err
		}
	}

	buf := make([]byte, headerSize, headerSize+4*int(count)+len(body))
	copy(buf[0:4], archiveMagic)
	binary.LittleEndian.PutUint16(buf[4:6], archiveVersion)
	binary.LittleEndian.PutUint32(buf[12:16], count)
	if root, ok := t.Root(); ok {
		binary.LittleEndian.PutUint32(buf[16:20], 1)
		binary.LittleEndian.PutUint32(buf[20:24], root)
	}
	for _, off := range offsets {
		buf = binary.LittleEndian.AppendUint32(buf, off)
	}
	buf = append(buf, body...)

	binary.LittleEndian.PutUint32(buf[8:12], crc32.ChecksumIEEE(buf[12:]))
	return buf, nil
}

func appendNode(body []byte, n *Node) ([]byte, error) {
	body = append(body, byte(n.Kind))

	switch n.Kind {
	case KindNull:
		// No payload.
	case KindBool:
		if n.Bool {
			body = append(body, 1)
		} else {
			body = append(body, 0)
		}
	case KindInt:
		body = binary.LittleEndian.AppendUint64(body, uint64(n.Int))
	case KindFloat:
		body = binary.LittleEndian.AppendUint64(body, math.Float64bits(n.Float))
	case KindString:
		if !utf8.ValidString(n.Str) {
			return nil, fmt.Errorf("%w: string value is not valid UTF-8", ErrSerialize)
		}
		if uint64(len(n.Str)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: string value of %d bytes exceeds uint32 length", ErrSerialize, len(n.Str))
		}
		body = binary.LittleEndian.AppendUint32(body, uint32(len(n.Str)))
		body = append(body, n.Str...)
	case KindArray:
		if uint64(len(n.Elems)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: array of %d elements exceeds uint32 length", ErrSerialize, len(n.Elems))
		}
		body = binary.LittleEndian.AppendUint32(body, uint32(len(n.Elems)))
		for _, child := range n.Elems {
			body = binary.LittleEndian.AppendUint32(body, child)
		}
	case KindObject:
		if uint64(len(n.Pairs)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: object of %d entries exceeds uint32 length", ErrSerialize, len(n.Pairs))
		}
		body = binary.LittleEndian.AppendUint32(body, uint32(len(n.Pairs)))
		var blobLen uint64
		for _, p := range n.Pairs {
			if !utf8.ValidString(p.Key) {
				return nil, fmt.Errorf("%w: object key is not valid UTF-8", ErrSerialize)
			}
			blobLen += uint64(len(p.Key))
		}
		if blobLen > math.MaxUint32 {
			return nil, fmt.Errorf("%w: object key data of %d bytes exceeds uint32 offset space", ErrSerialize, blobLen)
		}
		var keyOff uint32
		for _, p := range n.Pairs {
			body = binary.LittleEndian.AppendUint32(body, keyOff)
			body = binary.LittleEndian.AppendUint32(body, uint32(len(p.Key)))
			body = binary.LittleEndian.AppendUint32(body, p.Child)
			keyOff += uint32(len(p.Key))
		}
		for _, p := range n.Pairs {
			body = append(body, p.Key...)
		}
	default:
		return nil, fmt.Errorf("%w: unknown node kind %d", ErrSerialize, n.Kind)
	}

	return body, nil
}
