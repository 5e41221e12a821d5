// File: snapconfig/watch.go
package snapconfig

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// WatchOptions configures source file watching.
type WatchOptions struct {
	// PollInterval for file stat checks (minimum 100ms)
	PollInterval time.Duration

	// Debounce duration to avoid rapid recompiles while the source is
	// still being written
	Debounce time.Duration

	// CachePath overrides the default cache location, as in LoadOptions
	CachePath string
}

// DefaultWatchOptions returns sensible defaults for source watching.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		PollInterval: DefaultPollInterval,
		Debounce:     DefaultDebounce,
	}
}

// Watcher polls a source file and recompiles its cache whenever the file
// changes, delivering each fresh snapshot on Updates. The receiver owns
// every delivered snapshot and must Close it. An undelivered snapshot is
// replaced (and closed) when a newer one arrives before the receiver
// catches up.
type Watcher struct {
	sourcePath string
	opts       WatchOptions
	ctx        context.Context
	cancel     context.CancelFunc
	updates    chan *Snapshot
	watching   atomic.Bool

	lastModTime time.Time
	lastSize    int64
}

// NewWatcher starts watching sourcePath. The source must exist.
func NewWatcher(sourcePath string, opts WatchOptions) (*Watcher, error) {
	if opts.PollInterval < MinPollInterval {
		opts.PollInterval = MinPollInterval
	}

	stat, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("cannot watch source file '%s': %w", sourcePath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		sourcePath:  sourcePath,
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		updates:     make(chan *Snapshot, 1),
		lastModTime: stat.ModTime(),
		lastSize:    stat.Size(),
	}
	w.watching.Store(true)

	go w.loop()
	return w, nil
}

// Updates delivers freshly compiled snapshots.
func (w *Watcher) Updates() <-chan *Snapshot {
	return w.updates
}

// Stop terminates watching and closes the update channel. A pending
// undelivered snapshot is closed.
func (w *Watcher) Stop() {
	if !w.watching.CompareAndSwap(true, false) {
		return
	}
	w.cancel()
}

func (w *Watcher) loop() {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	defer func() {
		// Drain a pending snapshot so its mapping is released.
		select {
		case snap := <-w.updates:
			snap.Close()
		default:
		}
		close(w.updates)
	}()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if !w.changed() {
				continue
			}
			if w.opts.Debounce > 0 && !w.settle() {
				return
			}
			w.reload()
		}
	}
}

// changed polls the source and records its new stat when it differs.
func (w *Watcher) changed() bool {
	stat, err := os.Stat(w.sourcePath)
	if err != nil {
		// Source temporarily missing (e.g. editor rename-in-place);
		// keep polling.
		return false
	}
	if stat.ModTime().Equal(w.lastModTime) && stat.Size() == w.lastSize {
		return false
	}
	w.lastModTime = stat.ModTime()
	w.lastSize = stat.Size()
	return true
}

// settle waits out the debounce window, extending it while the file is
// still changing. Returns false when the watcher is stopped meanwhile.
func (w *Watcher) settle() bool {
	for {
		select {
		case <-w.ctx.Done():
			return false
		case <-time.After(w.opts.Debounce):
		}
		if !w.changed() {
			return true
		}
	}
}

func (w *Watcher) reload() {
	snap, err := LoadWithOptions(w.sourcePath, LoadOptions{
		CachePath:      w.opts.CachePath,
		ForceRecompile: true,
	})
	if err != nil {
		// A transient parse or IO failure leaves the previous cache in
		// place; the next change triggers another attempt.
		return
	}

	// Replace an undelivered snapshot rather than blocking the loop.
	select {
	case old := <-w.updates:
		old.Close()
	default:
	}
	select {
	case w.updates <- snap:
	case <-w.ctx.Done():
		snap.Close()
	}
}
