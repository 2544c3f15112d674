package dedupe

import "time"

// Option configures a window deduper.
type Option func(*windowDeduper)

// WithWindow sets how long a recorded key suppresses repeats. Zero or
// negative disables suppression.
func WithWindow(w time.Duration) Option {
	return func(d *windowDeduper) {
		d.window = w
	}
}

// WithMaxSize caps the number of remembered keys. Zero or negative means
// unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *windowDeduper) {
		d.maxSize = maxSize
	}
}
