package dedupe

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of claims kept in memory.
// If maxSize > 0 the oldest claim is evicted once the bound is reached.
// If maxSize <= 0 claims are never evicted.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
