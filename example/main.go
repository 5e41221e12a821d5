// FILE: snapconfig/example/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"snapconfig"
)

// ServerConfig is the typed target for the scan demonstration.
type ServerConfig struct {
	Host    string        `config:"host"`
	Port    int           `config:"port"`
	Timeout time.Duration `config:"timeout"`
	Debug   bool          `config:"debug"`
}

const configFilePath = "app.json"
const dotenvFilePath = "app.env"

func main() {
	// =========================================================================
	// PART 1: INITIAL SETUP
	// Write a config file and a dotenv file for the program to work with.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 1: Creating configuration files...")

	defer func() {
		log.Println("---")
		log.Println("🧹 Cleaning up...")
		os.Remove(configFilePath)
		os.Remove(configFilePath + snapconfig.CacheSuffix)
		os.Remove(dotenvFilePath)
		os.Remove(dotenvFilePath + snapconfig.CacheSuffix)
		os.Unsetenv("APP_MODE")
	}()

	initial := `{
  "server": {"host": "localhost", "port": 8080, "timeout": "30s", "debug": false},
  "version": 1
}`
	if err := os.WriteFile(configFilePath, []byte(initial), 0644); err != nil {
		log.Fatalf("❌ Failed to write %s: %v", configFilePath, err)
	}
	if err := os.WriteFile(dotenvFilePath, []byte("APP_MODE=production\n"), 0644); err != nil {
		log.Fatalf("❌ Failed to write %s: %v", dotenvFilePath, err)
	}
	log.Printf("✅ Wrote %s and %s.", configFilePath, dotenvFilePath)

	// =========================================================================
	// PART 2: LOADING THROUGH THE CACHE
	// The first Load compiles app.json into app.json.snapconfig; later loads
	// map the cache directly as long as the source is unchanged.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 2: Loading (compiles the cache on first use)...")

	snap, err := snapconfig.Load(configFilePath)
	if err != nil {
		log.Fatalf("❌ Load failed: %v", err)
	}

	host, _ := snap.String("server.host")
	port, _ := snap.Int64("server.port")
	version, _ := snap.Int64("version")
	log.Printf("✅ Loaded: host=%s port=%d version=%d", host, port, version)

	info := snapconfig.CacheInfo(configFilePath)
	log.Printf("   Cache at %s: %d bytes, fresh=%v", info.CachePath, info.CacheSize, info.Fresh)

	// Decode a whole section into a typed struct.
	var server ServerConfig
	if err := snap.Scan("server", &server); err != nil {
		log.Fatalf("❌ Scan failed: %v", err)
	}
	fmt.Println("   --------------------------------------------------")
	fmt.Printf("     Host:    %s\n", server.Host)
	fmt.Printf("     Port:    %d\n", server.Port)
	fmt.Printf("     Timeout: %s\n", server.Timeout)
	fmt.Printf("     Debug:   %v\n", server.Debug)
	fmt.Println("   --------------------------------------------------")
	snap.Close()

	// =========================================================================
	// PART 3: STALENESS
	// Rewriting the source makes the cache stale; the next Load recompiles.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 3: Modifying the source to trigger a recompile...")

	time.Sleep(10 * time.Millisecond) // Ensure the source mtime advances
	updated := `{
  "server": {"host": "localhost", "port": 9090, "timeout": "30s", "debug": true},
  "version": 2
}`
	if err := os.WriteFile(configFilePath, []byte(updated), 0644); err != nil {
		log.Fatalf("❌ Failed to rewrite %s: %v", configFilePath, err)
	}

	snap, err = snapconfig.Load(configFilePath)
	if err != nil {
		log.Fatalf("❌ Reload failed: %v", err)
	}
	version, _ = snap.Int64("version")
	port, _ = snap.Int64("server.port")
	if version != 2 || port != 9090 {
		log.Fatalf("❌ VERIFICATION FAILED: expected version=2 port=9090, got version=%d port=%d", version, port)
	}
	log.Printf("✅ Recompiled and reloaded: version=%d port=%d", version, port)
	snap.Close()

	// =========================================================================
	// PART 4: DOTENV PROJECTION
	// Load a dotenv file through the same cache pipeline and project it into
	// the process environment.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 4: Projecting a dotenv file into the environment...")

	count, err := snapconfig.LoadDotenv(dotenvFilePath, false)
	if err != nil {
		log.Fatalf("❌ LoadDotenv failed: %v", err)
	}
	log.Printf("✅ Exported %d variable(s); APP_MODE=%s", count, os.Getenv("APP_MODE"))

	// =========================================================================
	// PART 5: WATCHING
	// A watcher recompiles on change and delivers fresh snapshots.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 5: Watching the source for changes...")

	watcher, err := snapconfig.NewWatcher(configFilePath, snapconfig.WatchOptions{
		PollInterval: 250 * time.Millisecond,
		Debounce:     100 * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("❌ NewWatcher failed: %v", err)
	}
	defer watcher.Stop()

	go func() {
		time.Sleep(time.Second)
		log.Println("   (Modifier goroutine: changing file on disk...)")
		final := `{
  "server": {"host": "localhost", "port": 9090, "timeout": "30s", "debug": true},
  "version": 3
}`
		if err := os.WriteFile(configFilePath, []byte(final), 0644); err != nil {
			log.Printf("❌ Modifier failed: %v", err)
		}
	}()

	log.Println("   (Waiting for watcher notification...)")
	select {
	case fresh := <-watcher.Updates():
		defer fresh.Close()
		version, _ = fresh.Int64("version")
		if version != 3 {
			log.Fatalf("❌ VERIFICATION FAILED: expected version=3, got %d", version)
		}
		log.Printf("✅ Watcher delivered a fresh snapshot: version=%d", version)
	case <-time.After(5 * time.Second):
		log.Fatalf("❌ TEST FAILED: Timed out waiting for watcher notification.")
	}
}
