// File: snapconfig/env.go
package snapconfig

import (
	"fmt"
	"os"
	"strconv"
)

// ExportEnv copies the scalar entries of an object-rooted snapshot into
// the process environment. Variables already present are skipped unless
// override is set. Values are written as text: strings as-is, integers
// and floats in decimal, booleans as "true"/"false", null as the empty
// string. Array and object values are skipped, not recursed into. The
// return value is the number of variables written. A non-object root is
// a no-op, not an error.
func (s *Snapshot) ExportEnv(override bool) (int, error) {
	if s.arc.Kind(s.root) != KindObject {
		return 0, nil
	}

	count := 0
	n := s.arc.seqLen(s.root)
	for i := 0; i < n; i++ {
		rawKey, child := s.arc.pairAt(s.root, i)
		key := string(rawKey)

		if _, exists := os.LookupEnv(key); exists && !override {
			continue
		}

		var value string
		switch s.arc.Kind(child) {
		case KindString:
			value = string(s.arc.stringAt(child))
		case KindInt:
			value = strconv.FormatInt(s.arc.intAt(child), 10)
		case KindFloat:
			value = strconv.FormatFloat(s.arc.floatAt(child), 'f', -1, 64)
		case KindBool:
			value = strconv.FormatBool(s.arc.boolAt(child))
		case KindNull:
			value = ""
		default:
			continue // Arrays and objects have no environment representation
		}

		if err := os.Setenv(key, value); err != nil {
			return count, fmt.Errorf("failed to set environment variable %s: %w", key, err)
		}
		count++
	}
	return count, nil
}

// LoadDotenv loads a dotenv file through the cache (an empty path
// defaults to ".env") and projects it into the process environment,
// returning the number of variables written.
func LoadDotenv(path string, override bool) (int, error) {
	snap, err := LoadEnv(path)
	if err != nil {
		return 0, err
	}
	defer snap.Close()
	return snap.ExportEnv(override)
}
