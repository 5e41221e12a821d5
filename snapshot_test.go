// File: snapconfig/snapshot_test.go
package snapconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadFixture compiles and loads a JSON source, closing the snapshot when
// the test ends.
func loadFixture(t *testing.T, content string) *Snapshot {
	t.Helper()
	source := writeSource(t, "fixture.json", content)
	snap, err := Load(source)
	require.NoError(t, err)
	t.Cleanup(func() { snap.Close() })
	return snap
}

func TestSnapshotGet(t *testing.T) {
	snap := loadFixture(t, `{
		"server": {"host": "example.com", "port": 8080},
		"tags": ["a", "b"],
		"debug": true
	}`)

	assert.Equal(t, KindObject, snap.RootKind())

	val, err := snap.Get("server.host")
	require.NoError(t, err)
	assert.Equal(t, "example.com", val)

	val, err = snap.Get("tags.1")
	require.NoError(t, err)
	assert.Equal(t, "b", val)

	val, err = snap.Get("server")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"host": "example.com", "port": int64(8080)}, val)

	_, err = snap.Get("server.missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	whole, err := snap.Get("")
	require.NoError(t, err)
	assert.Equal(t, snap.ToMap(), whole)
}

func TestSnapshotIntrospection(t *testing.T) {
	snap := loadFixture(t, `{"a": 1, "b": 2, "c": 3}`)

	keys, err := snap.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	n, err := snap.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ok, err := snap.Contains("b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = snap.Contains("z")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotTypedGetters(t *testing.T) {
	snap := loadFixture(t, `{
		"str": "hello",
		"num": 42,
		"pi": 3.5,
		"flag": true,
		"none": null,
		"numStr": "0x10",
		"floatStr": "2.75",
		"boolStr": "true"
	}`)

	t.Run("String", func(t *testing.T) {
		for path, want := range map[string]string{
			"str":  "hello",
			"num":  "42",
			"pi":   "3.5",
			"flag": "true",
			"none": "",
		} {
			got, err := snap.String(path)
			require.NoError(t, err, path)
			assert.Equal(t, want, got, path)
		}
		_, err := snap.String("missing")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Int64", func(t *testing.T) {
		for path, want := range map[string]int64{
			"num":      42,
			"pi":       3, // Truncated
			"flag":     1,
			"numStr":   16, // Base auto-detection
			"floatStr": 2,  // Parsed as float, truncated
		} {
			got, err := snap.Int64(path)
			require.NoError(t, err, path)
			assert.Equal(t, want, got, path)
		}
		_, err := snap.Int64("str")
		assert.Error(t, err)
		_, err = snap.Int64("none")
		assert.Error(t, err)
	})

	t.Run("Bool", func(t *testing.T) {
		got, err := snap.Bool("flag")
		require.NoError(t, err)
		assert.True(t, got)

		got, err = snap.Bool("boolStr")
		require.NoError(t, err)
		assert.True(t, got)

		got, err = snap.Bool("num")
		require.NoError(t, err)
		assert.True(t, got)

		_, err = snap.Bool("str")
		assert.Error(t, err)
	})

	t.Run("Float64", func(t *testing.T) {
		got, err := snap.Float64("pi")
		require.NoError(t, err)
		assert.Equal(t, 3.5, got)

		got, err = snap.Float64("num")
		require.NoError(t, err)
		assert.Equal(t, 42.0, got)

		got, err = snap.Float64("floatStr")
		require.NoError(t, err)
		assert.Equal(t, 2.75, got)

		_, err = snap.Float64("none")
		assert.Error(t, err)
	})
}

func TestSnapshotScan(t *testing.T) {
	snap := loadFixture(t, `{
		"server": {
			"host": "example.com",
			"port": 8080,
			"timeout": "30s",
			"origins": "a.com,b.com",
			"debug": true
		}
	}`)

	type serverConfig struct {
		Host    string        `config:"host"`
		Port    int           `config:"port"`
		Timeout time.Duration `config:"timeout"`
		Origins []string      `config:"origins"`
		Debug   bool          `config:"debug"`
	}

	var cfg serverConfig
	require.NoError(t, snap.Scan("server", &cfg))
	assert.Equal(t, "example.com", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"a.com", "b.com"}, cfg.Origins)
	assert.True(t, cfg.Debug)

	t.Run("WholeRoot", func(t *testing.T) {
		var all map[string]any
		require.NoError(t, snap.Scan("", &all))
		assert.Contains(t, all, "server")
	})

	t.Run("NonSection", func(t *testing.T) {
		var out struct{}
		err := snap.Scan("server.host", &out)
		assert.Error(t, err)
	})
}

func TestSnapshotCloseIdempotent(t *testing.T) {
	source := writeSource(t, "app.json", `{"v": 1}`)
	snap, err := Load(source)
	require.NoError(t, err)

	assert.NoError(t, snap.Close())
	assert.NoError(t, snap.Close())
}

func TestSnapshotArrayRoot(t *testing.T) {
	snap := loadFixture(t, `[10, 20, 30]`)

	assert.Equal(t, KindArray, snap.RootKind())

	n, err := snap.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	v, err := snap.Int64("1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)

	_, err = snap.Keys()
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSnapshotLowLevelArchive(t *testing.T) {
	snap := loadFixture(t, `{"k": "v"}`)
	arc, root := snap.Archive()
	require.NotNil(t, arc)

	idx, err := arc.Lookup(root, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", arc.Materialize(idx))
}
