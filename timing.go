// File: snapconfig/timing.go
package snapconfig

import "time"

// Core timing constants for source watching.
const (
	MinPollInterval     = 100 * time.Millisecond // Hard floor for file stat polling
	DefaultPollInterval = time.Second            // Standard file monitoring frequency
	DefaultDebounce     = 500 * time.Millisecond // File change coalescence period
)
