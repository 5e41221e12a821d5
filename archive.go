// File: snapconfig/archive.go
package snapconfig

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Archive is a read-only view over an encoded buffer, typically a mapped
// cache file. OpenArchive validates the buffer exactly once; after that,
// accessors trust the structure and perform only the checks a specific
// traversal needs (e.g. array bounds). An Archive borrows its buffer and
// must not outlive the mapping that owns it.
type Archive struct {
	buf     []byte
	toc     []uint32 // absolute offset of each node record in buf
	root    uint32
	hasRoot bool
}

// OpenArchive validates buf and returns a traversable view of it. Any
// structural defect (empty buffer, bad magic or version, checksum
// mismatch, unrecognized tag, out-of-bounds offset or index) is reported
// as ErrInvalidCache and no view is returned.
func OpenArchive(buf []byte) (*Archive, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("%w: archive is empty", ErrInvalidCache)
	}
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: archive of %d bytes is shorter than the %d-byte header", ErrInvalidCache, len(buf), headerSize)
	}
	if string(buf[0:4]) != archiveMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidCache, buf[0:4])
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != archiveVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d (want %d)", ErrInvalidCache, v, archiveVersion)
	}
	if want, got := binary.LittleEndian.Uint32(buf[8:12]), crc32.ChecksumIEEE(buf[12:]); want != got {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidCache)
	}

	count := binary.LittleEndian.Uint32(buf[12:16])
	bodyStart := uint64(headerSize) + 4*uint64(count)
	if bodyStart > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: node table for %d nodes exceeds archive size", ErrInvalidCache, count)
	}

	a := &Archive{
		buf: buf,
		toc: make([]uint32, count),
	}
	for i := uint32(0); i < count; i++ {
		off := uint64(binary.LittleEndian.Uint32(buf[headerSize+4*i:])) + bodyStart
		if off > math.MaxUint32 {
			return nil, fmt.Errorf("%w: node %d offset exceeds archive size", ErrInvalidCache, i)
		}
		a.toc[i] = uint32(off)
	}
	for i := uint32(0); i < count; i++ {
		if err := a.validateNode(i, count); err != nil {
			return nil, err
		}
	}

	if binary.LittleEndian.Uint32(buf[16:20]) == 1 {
		root := binary.LittleEndian.Uint32(buf[20:24])
		if root >= count {
			return nil, fmt.Errorf("%w: root index %d out of bounds (%d nodes)", ErrInvalidCache, root, count)
		}
		a.root = root
		a.hasRoot = true
	}

	return a, nil
}

// validateNode checks that node i's record lies entirely within the
// buffer, its tag is recognized, and every child index it references is
// below count. Key sortedness is a producer obligation and is not
// re-checked here.
func (a *Archive) validateNode(i, count uint32) error {
	end := uint64(len(a.buf))
	off := uint64(a.toc[i])
	if off >= end {
		return fmt.Errorf("%w: node %d offset %d out of bounds", ErrInvalidCache, i, off)
	}

	switch Kind(a.buf[off]) {
	case KindNull:
		// Tag only.
	case KindBool:
		if off+2 > end {
			return fmt.Errorf("%w: node %d truncated", ErrInvalidCache, i)
		}
		if b := a.buf[off+1]; b > 1 {
			return fmt.Errorf("%w: node %d has bool payload %d", ErrInvalidCache, i, b)
		}
	case KindInt, KindFloat:
		if off+9 > end {
			return fmt.Errorf("%w: node %d truncated", ErrInvalidCache, i)
		}
	case KindString:
		if off+5 > end {
			return fmt.Errorf("%w: node %d truncated", ErrInvalidCache, i)
		}
		l := uint64(binary.LittleEndian.Uint32(a.buf[off+1:]))
		if off+5+l > end {
			return fmt.Errorf("%w: node %d string data out of bounds", ErrInvalidCache, i)
		}
	case KindArray:
		if off+5 > end {
			return fmt.Errorf("%w: node %d truncated", ErrInvalidCache, i)
		}
		n := uint64(binary.LittleEndian.Uint32(a.buf[off+1:]))
		if off+5+4*n > end {
			return fmt.Errorf("%w: node %d array data out of bounds", ErrInvalidCache, i)
		}
		for j := uint64(0); j < n; j++ {
			if child := binary.LittleEndian.Uint32(a.buf[off+5+4*j:]); child >= count {
				return fmt.Errorf("%w: node %d references node %d, out of bounds (%d nodes)", ErrInvalidCache, i, child, count)
			}
		}
	case KindObject:
		if off+5 > end {
			return fmt.Errorf("%w: node %d truncated", ErrInvalidCache, i)
		}
		n := uint64(binary.LittleEndian.Uint32(a.buf[off+1:]))
		blobStart := off + 5 + objectEntrySize*n
		if blobStart > end {
			return fmt.Errorf("%w: node %d object entries out of bounds", ErrInvalidCache, i)
		}
		for j := uint64(0); j < n; j++ {
			entry := off + 5 + objectEntrySize*j
			keyOff := uint64(binary.LittleEndian.Uint32(a.buf[entry:]))
			keyLen := uint64(binary.LittleEndian.Uint32(a.buf[entry+4:]))
			child := binary.LittleEndian.Uint32(a.buf[entry+8:])
			if blobStart+keyOff+keyLen > end {
				return fmt.Errorf("%w: node %d key data out of bounds", ErrInvalidCache, i)
			}
			if child >= count {
				return fmt.Errorf("%w: node %d references node %d, out of bounds (%d nodes)", ErrInvalidCache, i, child, count)
			}
		}
	default:
		return fmt.Errorf("%w: node %d has unrecognized tag %d", ErrInvalidCache, i, a.buf[off])
	}
	return nil
}

// Root returns the archive's root index, if the producer declared one.
func (a *Archive) Root() (uint32, bool) {
	return a.root, a.hasRoot
}

// NumNodes returns the number of nodes in the archive.
func (a *Archive) NumNodes() int {
	return len(a.toc)
}

// Kind returns the variant tag of the node at idx.
func (a *Archive) Kind(idx uint32) Kind {
	return Kind(a.buf[a.toc[idx]])
}

func (a *Archive) boolAt(idx uint32) bool {
	return a.buf[a.toc[idx]+1] == 1
}

func (a *Archive) intAt(idx uint32) int64 {
	return int64(binary.LittleEndian.Uint64(a.buf[a.toc[idx]+1:]))
}

func (a *Archive) floatAt(idx uint32) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(a.buf[a.toc[idx]+1:]))
}

// stringAt returns the string payload as a view into the archive buffer.
func (a *Archive) stringAt(idx uint32) []byte {
	off := a.toc[idx]
	l := binary.LittleEndian.Uint32(a.buf[off+1:])
	return a.buf[off+5 : uint64(off)+5+uint64(l)]
}

// seqLen returns the element or entry count of an array or object node.
func (a *Archive) seqLen(idx uint32) int {
	return int(binary.LittleEndian.Uint32(a.buf[a.toc[idx]+1:]))
}

func (a *Archive) arrayElem(idx uint32, i int) uint32 {
	return binary.LittleEndian.Uint32(a.buf[uint64(a.toc[idx])+5+4*uint64(i):])
}

// pairAt returns the i-th (key, child) entry of an object node. The key
// is a view into the archive buffer.
func (a *Archive) pairAt(idx uint32, i int) ([]byte, uint32) {
	off := uint64(a.toc[idx])
	n := uint64(binary.LittleEndian.Uint32(a.buf[off+1:]))
	entry := off + 5 + objectEntrySize*uint64(i)
	keyOff := uint64(binary.LittleEndian.Uint32(a.buf[entry:]))
	keyLen := uint64(binary.LittleEndian.Uint32(a.buf[entry+4:]))
	child := binary.LittleEndian.Uint32(a.buf[entry+8:])
	blobStart := off + 5 + objectEntrySize*n
	return a.buf[blobStart+keyOff : blobStart+keyOff+keyLen], child
}

// compareKey compares a raw key view against s, as bytes.
func compareKey(key []byte, s string) int {
	for i := 0; i < len(key) && i < len(s); i++ {
		if key[i] != s[i] {
			if key[i] < s[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(key) < len(s):
		return -1
	case len(key) > len(s):
		return 1
	default:
		return 0
	}
}

// Lookup resolves key within the object node at idx by binary search over
// its sorted entries and returns the child index. The result for a key
// that appears more than once is unspecified: any one of the duplicate
// entries may be returned. Fails with ErrTypeMismatch on non-object nodes
// and ErrKeyNotFound when the key is absent.
func (a *Archive) Lookup(idx uint32, key string) (uint32, error) {
	if k := a.Kind(idx); k != KindObject {
		return 0, fmt.Errorf("%w: cannot look up key in %s", ErrTypeMismatch, k)
	}
	n := a.seqLen(idx)
	i := sort.Search(n, func(i int) bool {
		k, _ := a.pairAt(idx, i)
		return compareKey(k, key) >= 0
	})
	if i < n {
		if k, child := a.pairAt(idx, i); compareKey(k, key) == 0 {
			return child, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

// Index resolves element i of the array node at idx.
func (a *Archive) Index(idx uint32, i int) (uint32, error) {
	if k := a.Kind(idx); k != KindArray {
		return 0, fmt.Errorf("%w: cannot index into %s", ErrTypeMismatch, k)
	}
	n := a.seqLen(idx)
	if i < 0 || i >= n {
		return 0, fmt.Errorf("%w: %d (array length %d)", ErrIndexOutOfBounds, i, n)
	}
	return a.arrayElem(idx, i), nil
}

// Path resolves a dot-separated path starting from the node at idx.
// Object nodes resolve segments by key, array nodes by non-negative
// decimal index. An empty path returns idx unchanged.
func (a *Archive) Path(idx uint32, path string) (uint32, error) {
	if path == "" {
		return idx, nil
	}
	current := idx
	for _, segment := range strings.Split(path, ".") {
		switch k := a.Kind(current); k {
		case KindObject:
			child, err := a.Lookup(current, segment)
			if err != nil {
				return 0, err
			}
			current = child
		case KindArray:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 {
				return 0, fmt.Errorf("%w: cannot index array with non-integer segment %q", ErrTypeMismatch, segment)
			}
			child, err := a.Index(current, i)
			if err != nil {
				return 0, err
			}
			current = child
		default:
			return 0, fmt.Errorf("%w: cannot traverse into %s at segment %q", ErrTypeMismatch, k, segment)
		}
	}
	return current, nil
}

// Keys returns the ordered key strings of the object node at idx.
func (a *Archive) Keys(idx uint32) ([]string, error) {
	if k := a.Kind(idx); k != KindObject {
		return nil, fmt.Errorf("%w: keys requested on %s", ErrTypeMismatch, k)
	}
	n := a.seqLen(idx)
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		k, _ := a.pairAt(idx, i)
		keys[i] = string(k)
	}
	return keys, nil
}

// Len returns the entry count of an object node or the element count of
// an array node. Scalars have no length.
func (a *Archive) Len(idx uint32) (int, error) {
	switch k := a.Kind(idx); k {
	case KindObject, KindArray:
		return a.seqLen(idx), nil
	default:
		return 0, fmt.Errorf("%w: %s has no length", ErrTypeMismatch, k)
	}
}

// Contains reports whether the object node at idx has an entry for key.
func (a *Archive) Contains(idx uint32, key string) (bool, error) {
	if k := a.Kind(idx); k != KindObject {
		return false, fmt.Errorf("%w: membership test on %s", ErrTypeMismatch, k)
	}
	if _, err := a.Lookup(idx, key); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Materialize converts the subtree rooted at idx into fully owned Go
// values independent of the underlying buffer: nil, bool, int64, float64,
// string, []any, and map[string]any. When an object carries duplicate
// keys the last occurrence wins in the map.
func (a *Archive) Materialize(idx uint32) any {
	switch a.Kind(idx) {
	case KindNull:
		return nil
	case KindBool:
		return a.boolAt(idx)
	case KindInt:
		return a.intAt(idx)
	case KindFloat:
		return a.floatAt(idx)
	case KindString:
		return string(a.stringAt(idx))
	case KindArray:
		n := a.seqLen(idx)
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = a.Materialize(a.arrayElem(idx, i))
		}
		return out
	case KindObject:
		n := a.seqLen(idx)
		out := make(map[string]any, n)
		for i := 0; i < n; i++ {
			k, child := a.pairAt(idx, i)
			out[string(k)] = a.Materialize(child)
		}
		return out
	default:
		return nil
	}
}
