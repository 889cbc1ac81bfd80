package context

import (
	"context"
	"time"
)

// Deadlines for work that runs outside a request
const (
	// StoreTimeout bounds one unit of background work against the
	// database or object store, e.g. processing a single media item
	StoreTimeout = 30 * time.Second

	// SweepTimeout bounds one pass of a periodic sweeper
	SweepTimeout = time.Minute
)

// WithStoreTimeout derives a context that expires after StoreTimeout
func WithStoreTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, StoreTimeout)
}

// WithSweepTimeout derives a context that expires after SweepTimeout, or
// after interval when that is shorter so passes never overlap.
func WithSweepTimeout(parent context.Context, interval time.Duration) (context.Context, context.CancelFunc) {
	timeout := SweepTimeout
	if interval > 0 && interval < timeout {
		timeout = interval
	}
	return context.WithTimeout(parent, timeout)
}
