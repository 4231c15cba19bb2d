package gps

import (
	"context"
	"time"
)

// Provider is the interface for location sources.
type Provider interface {
	Name() string
	Connect() error
	Close() error
	// Locate returns a single fix honoring opts. It blocks until a fix is
	// available, opts.Timeout elapses or ctx is done. Failures are returned
	// as *PositionError.
	Locate(ctx context.Context, opts Options) (Fix, error)
}

// Options controls a single Locate request.
type Options struct {
	HighAccuracy bool          // Require a fix with a horizontal accuracy estimate
	Timeout      time.Duration // Upper bound on the wait, 0 = no bound
	MaximumAge   time.Duration // Oldest cached fix that may be returned, 0 = fresh only
}

// DefaultOptions returns the options used by the tracker: high accuracy,
// a 10 second wait and no reuse of cached fixes.
func DefaultOptions() Options {
	return Options{
		HighAccuracy: true,
		Timeout:      10 * time.Second,
		MaximumAge:   0,
	}
}

// Fix holds a single position sample.
type Fix struct {
	Latitude   float64   `json:"latitude"`   // Decimal degrees
	Longitude  float64   `json:"longitude"`  // Decimal degrees
	Accuracy   float64   `json:"accuracy"`   // Meters, horizontal
	CapturedAt time.Time `json:"capturedAt"` // Time of the fix
}

func withTimeout(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	if opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, opts.Timeout)
}
