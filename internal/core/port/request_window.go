package port

import (
	"context"
	"time"
)

// WindowUsage describes a caller's sliding window right after an admission attempt.
type WindowUsage struct {
	// Admitted is false when the window was already full; the request was then not recorded.
	Admitted bool
	// Count is the number of requests inside the window, including an admitted one.
	Count int
	// Oldest is the earliest request still inside the window, zero when the window is empty.
	Oldest time.Time
}

// RequestWindowStore counts API requests per caller over a sliding window.
type RequestWindowStore interface {
	// Admit drops entries older than window and records the request at now when fewer than limit
	// remain. The trim, count and record steps are atomic per key.
	Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (WindowUsage, error)
}
