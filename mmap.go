// File: snapconfig/mmap.go
package snapconfig

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapping owns the bytes backing an Archive. The bytes come from a
// read-only memory map when the platform allows it, otherwise from a
// plain read of the file. Either way the data is an immutable snapshot:
// a later rename over the file path does not affect an open mapping.
type mapping struct {
	data   []byte
	mapped bool
}

// mapFile opens path and maps (or reads) its contents.
func mapFile(path string) (*mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat cache file '%s': %w", path, err)
	}
	size := fi.Size()
	if size == 0 {
		// Zero-length regions cannot be mapped; validation rejects the
		// empty buffer with a precise error.
		return &mapping{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		// Fall back to a heap copy, e.g. on filesystems without mmap.
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read cache file '%s': %w", path, rerr)
		}
		return &mapping{data: data}, nil
	}
	return &mapping{data: data, mapped: true}, nil
}

// Close releases the mapped region. Safe to call on a fallback mapping.
func (m *mapping) Close() error {
	if !m.mapped {
		m.data = nil
		return nil
	}
	data := m.data
	m.data = nil
	m.mapped = false
	return unix.Munmap(data)
}
