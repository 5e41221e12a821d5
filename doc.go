// File: snapconfig/doc.go

// Package snapconfig provides fast configuration file loading through a
// compiled binary cache. A source file (JSON, YAML, TOML, INI, or dotenv)
// is parsed once into a flat, index-based value tree, serialized into a
// position-independent archive next to the source, and on subsequent loads
// memory-mapped and traversed in place without re-parsing.
//
// Features:
//   - Five source formats with detection by filename suffix
//   - Zero-copy reads: the cache file is mapped read-only and validated
//     once at open time; key lookups are binary searches over sorted keys
//   - Freshness-aware loading: the cache is rebuilt only when the source
//     file is newer, the cache is missing, or a rebuild is forced
//   - Atomic cache writes (temp file + rename), safe under concurrent
//     rebuilds by independent processes
//   - Struct scanning via mapstructure and typed getters at dot paths
//   - Optional source watching with automatic recompilation
//
// Quick Start:
//
//	snap, err := snapconfig.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer snap.Close()
//
//	host, _ := snap.String("database.host")
//	port, _ := snap.Int64("database.port")
//
//	var db struct {
//	    Host string `config:"host"`
//	    Port int    `config:"port"`
//	}
//	_ = snap.Scan("database", &db)
//
// dotenv files can additionally be projected into the process environment:
//
//	n, err := snapconfig.LoadDotenv(".env", false)
//
// Concurrency:
// All operations are synchronous. A Snapshot is an immutable view of the
// mapped cache bytes and is safe for concurrent readers; it never observes
// a rewrite of the underlying file after opening. Close releases the
// mapping and must not race with in-flight reads.
package snapconfig
