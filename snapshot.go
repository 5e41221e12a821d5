// File: snapconfig/snapshot.go
package snapconfig

import (
	"fmt"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Snapshot is a loaded cache handle: an immutable, validated view over
// the mapped archive bytes plus the resolved root. Traversal errors are
// local to the failing call and never invalidate the handle. Close
// releases the underlying mapping; the Snapshot must not be used after.
type Snapshot struct {
	arc        *Archive
	m          *mapping
	root       uint32
	cachePath  string
	sourcePath string
}

// CachePath returns the path of the archive backing this snapshot.
func (s *Snapshot) CachePath() string {
	return s.cachePath
}

// SourcePath returns the source file path, when it existed at load time.
func (s *Snapshot) SourcePath() string {
	return s.sourcePath
}

// RootKind returns the kind of the root node.
func (s *Snapshot) RootKind() Kind {
	return s.arc.Kind(s.root)
}

// Archive exposes the validated view for low-level traversal. The view
// is only valid until Close.
func (s *Snapshot) Archive() (*Archive, uint32) {
	return s.arc, s.root
}

// Close releases the mapping. Idempotent.
func (s *Snapshot) Close() error {
	if s.m == nil {
		return nil
	}
	m := s.m
	s.m = nil
	return m.Close()
}

// Get resolves a dot-separated path from the root and returns the
// materialized value there. Object segments resolve by key, array
// segments by non-negative decimal index. An empty path returns the
// whole root.
func (s *Snapshot) Get(path string) (any, error) {
	idx, err := s.arc.Path(s.root, path)
	if err != nil {
		return nil, err
	}
	return s.arc.Materialize(idx), nil
}

// Keys returns the ordered keys of the object root.
func (s *Snapshot) Keys() ([]string, error) {
	return s.arc.Keys(s.root)
}

// Len returns the entry count of an object root or the element count of
// an array root.
func (s *Snapshot) Len() (int, error) {
	return s.arc.Len(s.root)
}

// Contains reports whether the object root has an entry for key.
func (s *Snapshot) Contains(key string) (bool, error) {
	return s.arc.Contains(s.root, key)
}

// ToMap materializes the entire snapshot into plain Go values, losing
// the zero-copy property but outliving the mapping.
func (s *Snapshot) ToMap() any {
	return s.arc.Materialize(s.root)
}

// String retrieves a string value at the path, converting scalars of
// other kinds. Null yields the empty string.
func (s *Snapshot) String(path string) (string, error) {
	val, err := s.Get(path)
	if err != nil {
		return "", err
	}
	if val == nil {
		return "", nil // Treat null as empty string for convenience
	}

	switch v := val.(type) {
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("cannot convert type %T to string for path %s", val, path)
	}
}

// Int64 retrieves an int64 value at the path. Floats truncate, parsable
// strings convert, booleans map to 0/1.
func (s *Snapshot) Int64(path string) (int64, error) {
	val, err := s.Get(path)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, fmt.Errorf("value for path %s is null, cannot convert to int64", path)
	}

	switch v := val.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil // Truncate float to int
	case string:
		if i, err := strconv.ParseInt(v, 0, 64); err == nil { // Base 0 for auto-detection (e.g., "0xFF")
			return i, nil
		} else if f, ferr := strconv.ParseFloat(v, 64); ferr == nil {
			return int64(f), nil // Truncate
		} else {
			return 0, fmt.Errorf("cannot convert string %q to int64 for path %s: %w", v, path, err)
		}
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot convert type %T to int64 for path %s", val, path)
	}
}

// Bool retrieves a boolean value at the path. Numbers are false at zero,
// parsable strings convert.
func (s *Snapshot) Bool(path string) (bool, error) {
	val, err := s.Get(path)
	if err != nil {
		return false, err
	}
	if val == nil {
		return false, fmt.Errorf("value for path %s is null, cannot convert to bool", path)
	}

	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to bool for path %s: %w", v, path, err)
		}
		return b, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert type %T to bool for path %s", val, path)
	}
}

// Float64 retrieves a float64 value at the path, converting integers,
// parsable strings, and booleans.
func (s *Snapshot) Float64(path string) (float64, error) {
	val, err := s.Get(path)
	if err != nil {
		return 0.0, err
	}
	if val == nil {
		return 0.0, fmt.Errorf("value for path %s is null, cannot convert to float64", path)
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0.0, fmt.Errorf("cannot convert string %q to float64 for path %s: %w", v, path, err)
		}
		return f, nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return 0.0, fmt.Errorf("cannot convert type %T to float64 for path %s", val, path)
	}
}

// Scan decodes the subtree at basePath into the target struct or map.
// The target must be a non-nil pointer. Fields map through the "config"
// struct tag. An empty basePath scans the whole root.
func (s *Snapshot) Scan(basePath string, target any) error {
	val, err := s.Get(basePath)
	if err != nil {
		return err
	}

	sectionMap, ok := val.(map[string]any)
	if !ok {
		return fmt.Errorf("configuration path %q does not refer to a scannable section (map), but to type %T", basePath, val)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "config",
		WeaklyTypedInput: true, // Allow conversions (e.g., int to string if needed by target)
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(sectionMap); err != nil {
		return fmt.Errorf("failed to scan section %q into %T: %w", basePath, target, err)
	}
	return nil
}
