// File: snapconfig/archive_test.go
package snapconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustArchive parses content as JSON, encodes it, and opens the result.
func mustArchive(t *testing.T, content string) *Archive {
	t.Helper()
	tree, err := parseJSON(content)
	require.NoError(t, err)
	buf, err := Encode(tree)
	require.NoError(t, err)
	arc, err := OpenArchive(buf)
	require.NoError(t, err)
	return arc
}

func TestEncodeDeterministic(t *testing.T) {
	content := `{"b": [1, 2.5, null], "a": {"x": true, "y": "str"}}`

	// Parsing the same content twice yields byte-identical archives, not
	// just equivalent ones.
	first, err := parseJSON(content)
	require.NoError(t, err)
	second, err := parseJSON(content)
	require.NoError(t, err)

	bufA, err := Encode(first)
	require.NoError(t, err)
	bufB, err := Encode(second)
	require.NoError(t, err)
	assert.Equal(t, bufA, bufB)
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	tree := NewTree()
	tree.SetRoot(tree.Append(stringNode("bad\xff")))
	_, err := Encode(tree)
	assert.ErrorIs(t, err, ErrSerialize)
}

func TestArchiveRoundTrip(t *testing.T) {
	cases := []string{
		`null`,
		`true`,
		`42`,
		`-3.75`,
		`"hello"`,
		`[]`,
		`{}`,
		`[1, "two", [3, [4]]]`,
		`{"outer": {"inner": {"leaf": [null, false, 1.5]}}, "z": "last"}`,
	}
	for _, content := range cases {
		t.Run(content, func(t *testing.T) {
			tree, err := parseJSON(content)
			require.NoError(t, err)
			want, err := tree.MaterializeRoot()
			require.NoError(t, err)

			buf, err := Encode(tree)
			require.NoError(t, err)
			arc, err := OpenArchive(buf)
			require.NoError(t, err)

			root, ok := arc.Root()
			require.True(t, ok)
			assert.Equal(t, want, arc.Materialize(root))
		})
	}
}

func TestOpenArchiveRejects(t *testing.T) {
	valid, err := Encode(NewTree())
	require.NoError(t, err)

	t.Run("Empty", func(t *testing.T) {
		_, err := OpenArchive(nil)
		assert.ErrorIs(t, err, ErrInvalidCache)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := OpenArchive(valid[:headerSize-1])
		assert.ErrorIs(t, err, ErrInvalidCache)
	})

	t.Run("BadMagic", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		buf[0] = 'X'
		_, err := OpenArchive(buf)
		assert.ErrorIs(t, err, ErrInvalidCache)
	})

	t.Run("BadVersion", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		buf[4] = archiveVersion + 1
		_, err := OpenArchive(buf)
		assert.ErrorIs(t, err, ErrInvalidCache)
	})

	t.Run("CorruptedBody", func(t *testing.T) {
		tree, err := parseJSON(`{"key": "value"}`)
		require.NoError(t, err)
		buf, err := Encode(tree)
		require.NoError(t, err)
		buf[len(buf)-1] ^= 0xFF
		_, err = OpenArchive(buf)
		assert.ErrorIs(t, err, ErrInvalidCache)
	})
}

func TestArchiveLookup(t *testing.T) {
	arc := mustArchive(t, `{"alpha": 1, "beta": "two", "gamma": [true], "delta": null}`)
	root, _ := arc.Root()

	t.Run("Hit", func(t *testing.T) {
		idx, err := arc.Lookup(root, "beta")
		require.NoError(t, err)
		assert.Equal(t, KindString, arc.Kind(idx))
		assert.Equal(t, "two", arc.Materialize(idx))
	})

	t.Run("EveryKeyResolvable", func(t *testing.T) {
		keys, err := arc.Keys(root)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "beta", "delta", "gamma"}, keys)
		for _, key := range keys {
			_, err := arc.Lookup(root, key)
			assert.NoError(t, err, "key %q", key)
		}
	})

	t.Run("Miss", func(t *testing.T) {
		_, err := arc.Lookup(root, "epsilon")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("NonObject", func(t *testing.T) {
		idx, err := arc.Lookup(root, "alpha")
		require.NoError(t, err)
		_, err = arc.Lookup(idx, "anything")
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}

// Binary search must agree with a linear scan over the raw entries for
// every present key, and both must miss absent keys.
func TestLookupMatchesLinearScan(t *testing.T) {
	arc := mustArchive(t, `{
		"apple": 1, "Apple": 2, "banana": 3, "cherry": 4, "date": 5,
		"elderberry": 6, "fig": 7, "grape": 8, "kiwi": 9, "lemon": 10,
		"mango": 11, "nectarine": 12, "orange": 13, "papaya": 14
	}`)
	root, _ := arc.Root()

	linearScan := func(key string) (uint32, bool) {
		for i := 0; i < arc.seqLen(root); i++ {
			k, child := arc.pairAt(root, i)
			if compareKey(k, key) == 0 {
				return child, true
			}
		}
		return 0, false
	}

	keys, err := arc.Keys(root)
	require.NoError(t, err)
	for _, key := range append(keys, "absent", "", "zzz") {
		wantChild, wantFound := linearScan(key)
		gotChild, err := arc.Lookup(root, key)
		if wantFound {
			require.NoError(t, err, "key %q", key)
			assert.Equal(t, wantChild, gotChild, "key %q", key)
		} else {
			assert.ErrorIs(t, err, ErrKeyNotFound, "key %q", key)
		}
	}
}

func TestArchiveIndex(t *testing.T) {
	arc := mustArchive(t, `["zero", "one", "two"]`)
	root, _ := arc.Root()

	idx, err := arc.Index(root, 2)
	require.NoError(t, err)
	assert.Equal(t, "two", arc.Materialize(idx))

	_, err = arc.Index(root, 3)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
	_, err = arc.Index(root, -1)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)

	scalar, err := arc.Index(root, 0)
	require.NoError(t, err)
	_, err = arc.Index(scalar, 0)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestArchivePath(t *testing.T) {
	arc := mustArchive(t, `{"a": {"b": {"c": 1}}, "list": [10, 20, 30], "leaf": "x"}`)
	root, _ := arc.Root()

	t.Run("Nested", func(t *testing.T) {
		idx, err := arc.Path(root, "a.b.c")
		require.NoError(t, err)
		assert.Equal(t, int64(1), arc.Materialize(idx))
	})

	t.Run("ArraySegment", func(t *testing.T) {
		idx, err := arc.Path(root, "list.2")
		require.NoError(t, err)
		assert.Equal(t, int64(30), arc.Materialize(idx))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		idx, err := arc.Path(root, "")
		require.NoError(t, err)
		assert.Equal(t, root, idx)
	})

	t.Run("MissingKey", func(t *testing.T) {
		_, err := arc.Path(root, "a.missing")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("NonIntegerArraySegment", func(t *testing.T) {
		_, err := arc.Path(root, "list.first")
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("TraverseIntoScalar", func(t *testing.T) {
		_, err := arc.Path(root, "leaf.deeper")
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})
}

func TestArchiveLenContains(t *testing.T) {
	arc := mustArchive(t, `{"obj": {"a": 1, "b": 2}, "arr": [1, 2, 3]}`)
	root, _ := arc.Root()

	n, err := arc.Len(root)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	arrIdx, err := arc.Lookup(root, "arr")
	require.NoError(t, err)
	n, err = arc.Len(arrIdx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	scalarIdx, err := arc.Path(root, "obj.a")
	require.NoError(t, err)
	_, err = arc.Len(scalarIdx)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	ok, err := arc.Contains(root, "obj")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = arc.Contains(root, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = arc.Contains(arrIdx, "x")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestArchiveDuplicateKeys(t *testing.T) {
	tree := NewTree()
	first := tree.Append(intNode(1))
	second := tree.Append(intNode(2))
	root := tree.Append(objectNode([]Pair{
		{Key: "dup", Child: first},
		{Key: "dup", Child: second},
	}))
	tree.SetRoot(root)

	buf, err := Encode(tree)
	require.NoError(t, err)
	arc, err := OpenArchive(buf)
	require.NoError(t, err)

	rootIdx, _ := arc.Root()
	// Membership and resolvability hold; which duplicate wins is
	// unspecified.
	ok, err := arc.Contains(rootIdx, "dup")
	require.NoError(t, err)
	assert.True(t, ok)

	idx, err := arc.Lookup(rootIdx, "dup")
	require.NoError(t, err)
	assert.Equal(t, KindInt, arc.Kind(idx))

	// Materialize keeps the last occurrence.
	assert.Equal(t, map[string]any{"dup": int64(2)}, arc.Materialize(rootIdx))
}

func TestArchiveNoRoot(t *testing.T) {
	buf, err := Encode(NewTree())
	require.NoError(t, err)
	arc, err := OpenArchive(buf)
	require.NoError(t, err)

	_, ok := arc.Root()
	assert.False(t, ok)
	assert.Equal(t, 0, arc.NumNodes())
}
