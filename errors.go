// File: snapconfig/errors.go
package snapconfig

import "errors"

// Load-time errors.
var (
	// ErrNotFound indicates a missing source file when a (re)compile is
	// required.
	ErrNotFound = errors.New("file not found")

	// ErrUnknownFormat indicates an unrecognized source format name.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrInvalidCache indicates a cache file that failed structural
	// validation: empty file, bad magic or version, checksum mismatch,
	// out-of-bounds references, or a missing root.
	ErrInvalidCache = errors.New("invalid cache")

	// ErrSerialize indicates a tree that cannot be encoded, e.g. one too
	// large to index or containing invalid text data.
	ErrSerialize = errors.New("serialization failed")
)

// Traversal errors. These are local to a single call and never invalidate
// the Snapshot they were produced by.
var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrIndexOutOfBounds = errors.New("index out of bounds")
	ErrTypeMismatch     = errors.New("type mismatch")
)

// errMissingRoot is reported when a tree is materialized before any
// adapter set its root.
var errMissingRoot = errors.New("tree has no root node")
