// Package dedupe defines the interface for upload idempotency tracking.
package dedupe

// Option applies a configuration option to the inMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of upload ids to keep in memory.
// maxSize > 0 enables FIFO eviction; maxSize <= 0 keeps everything.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
