package gps

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// DemoGPS generates simulated fixes for testing.
type DemoGPS struct {
	mu  sync.Mutex
	t   float64
	now func() time.Time
}

func NewDemoGPS() *DemoGPS { return &DemoGPS{now: time.Now} }

func (d *DemoGPS) Name() string   { return "Demo GPS (Simulated)" }
func (d *DemoGPS) Connect() error { return nil }
func (d *DemoGPS) Close() error   { return nil }

func (d *DemoGPS) Locate(ctx context.Context, opts Options) (Fix, error) {
	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Fix{}, &PositionError{Code: Timeout, Err: err}
		}
		return Fix{}, &PositionError{Code: Unknown, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.t += 0.1

	// Walk a slow circle around a point
	centerLat := 37.7749 // San Francisco
	centerLon := -122.4194
	radius := 0.002 // ~200m

	return Fix{
		Latitude:   centerLat + radius*math.Sin(d.t*0.1),
		Longitude:  centerLon + radius*math.Cos(d.t*0.1),
		Accuracy:   4 + rand.Float64()*4,
		CapturedAt: d.now(),
	}, nil
}
