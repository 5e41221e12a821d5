// File: snapconfig/loader.go
package snapconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// CacheSuffix is appended to a source path to derive its default cache
// path.
const CacheSuffix = ".snapconfig"

// defaultCachePath derives the cache location for a source file.
func defaultCachePath(sourcePath string) string {
	return sourcePath + CacheSuffix
}

// LoadOptions configures staleness-aware loading.
type LoadOptions struct {
	// CachePath overrides the default cache location (source + ".snapconfig").
	CachePath string

	// ForceRecompile rebuilds the cache even when it is fresh.
	ForceRecompile bool
}

// Compile parses the source file, encodes it, and atomically writes the
// archive to cachePath (or the default cache path when cachePath is
// empty). It returns the path the archive was written to.
func Compile(sourcePath, cachePath string) (string, error) {
	if cachePath == "" {
		cachePath = defaultCachePath(sourcePath)
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, sourcePath)
		}
		return "", fmt.Errorf("failed to read source file '%s': %w", sourcePath, err)
	}

	tree, err := parseContent(string(data), DetectFormat(sourcePath))
	if err != nil {
		return "", err
	}

	buf, err := Encode(tree)
	if err != nil {
		return "", err
	}

	if err := atomicWriteFile(cachePath, buf); err != nil {
		return "", err
	}
	return cachePath, nil
}

// Load opens the cache for path, recompiling it first when it is missing
// or stale. The cache is stale when the source's mtime is strictly newer
// than the cache's.
func Load(path string) (*Snapshot, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions is Load with an explicit cache path and force flag.
func LoadWithOptions(path string, opts LoadOptions) (*Snapshot, error) {
	cachePath := opts.CachePath
	if cachePath == "" {
		cachePath = defaultCachePath(path)
	}

	sourceExists := fileExists(path)
	cacheExists := fileExists(cachePath)

	needsCompile := opts.ForceRecompile || !cacheExists ||
		(sourceExists && sourceNewer(path, cachePath))

	if needsCompile {
		if !sourceExists {
			if !cacheExists {
				return nil, fmt.Errorf("%w: %s (and no cache exists)", ErrNotFound, path)
			}
			return nil, fmt.Errorf("%w: %s (stale cache retained at '%s')", ErrNotFound, path, cachePath)
		}
		if _, err := Compile(path, cachePath); err != nil {
			return nil, err
		}
	}

	sourcePath := ""
	if sourceExists {
		sourcePath = path
	}
	return LoadCompiled(cachePath, sourcePath)
}

// LoadCompiled opens an existing archive with no freshness check. The
// optional sourcePath is recorded on the handle for diagnostics only.
func LoadCompiled(cachePath, sourcePath string) (*Snapshot, error) {
	m, err := mapFile(cachePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, cachePath)
		}
		return nil, err
	}

	arc, err := OpenArchive(m.data)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("cache file '%s': %w", cachePath, err)
	}

	root, ok := arc.Root()
	if !ok {
		m.Close()
		return nil, fmt.Errorf("%w: cache file '%s' declares no root node", ErrInvalidCache, cachePath)
	}

	return &Snapshot{
		arc:        arc,
		m:          m,
		root:       root,
		cachePath:  cachePath,
		sourcePath: sourcePath,
	}, nil
}

// Parse parses content in the named format directly to plain Go values,
// with no caching and no archive.
func Parse(content string, format Format) (any, error) {
	tree, err := parseContent(content, format)
	if err != nil {
		return nil, err
	}
	return tree.MaterializeRoot()
}

// ParseEnv parses dotenv content directly to plain Go values.
func ParseEnv(content string) (any, error) {
	return parseEnv(content).MaterializeRoot()
}

// LoadEnv is Load specialized to dotenv sources. An empty path defaults
// to ".env".
func LoadEnv(path string) (*Snapshot, error) {
	if path == "" {
		path = ".env"
	}
	return Load(path)
}

// Info describes the state of a source/cache pair.
type Info struct {
	SourceExists bool
	CacheExists  bool
	CachePath    string
	SourceSize   int64
	CacheSize    int64

	// Fresh is true when the cache's mtime is at least the source's.
	// Only meaningful when both files exist.
	Fresh bool
}

// CacheInfo reports existence, sizes, and freshness for the source file
// and its derived cache.
func CacheInfo(sourcePath string) Info {
	info := Info{CachePath: defaultCachePath(sourcePath)}

	sourceStat, sourceErr := os.Stat(sourcePath)
	if sourceErr == nil {
		info.SourceExists = true
		info.SourceSize = sourceStat.Size()
	}

	cacheStat, cacheErr := os.Stat(info.CachePath)
	if cacheErr == nil {
		info.CacheExists = true
		info.CacheSize = cacheStat.Size()
	}

	if sourceErr == nil && cacheErr == nil {
		info.Fresh = !cacheStat.ModTime().Before(sourceStat.ModTime())
	}
	return info
}

// ClearCache deletes the derived cache file for sourcePath. It returns
// true when a cache file was removed and false when none existed.
func ClearCache(sourcePath string) (bool, error) {
	cachePath := defaultCachePath(sourcePath)
	if err := os.Remove(cachePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove cache file '%s': %w", cachePath, err)
	}
	return true, nil
}

func fileExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && !stat.IsDir()
}

// sourceNewer reports whether source's mtime is strictly newer than
// cache's. Both files are assumed to exist.
func sourceNewer(sourcePath, cachePath string) bool {
	sourceStat, err := os.Stat(sourcePath)
	if err != nil {
		return false
	}
	cacheStat, err := os.Stat(cachePath)
	if err != nil {
		return true
	}
	return sourceStat.ModTime().After(cacheStat.ModTime())
}

// atomicWriteFile writes data to path via a temporary file in the same
// directory followed by a rename, so a reader of path observes either the
// previous complete file or the new one, never a partial write.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // Clean up on any error

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
