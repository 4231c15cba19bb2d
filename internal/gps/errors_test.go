package gps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"position error", &PositionError{Code: PermissionDenied}, PermissionDenied},
		{"wrapped position error", fmt.Errorf("capture: %w", &PositionError{Code: Timeout}), Timeout},
		{"deadline", context.DeadlineExceeded, Timeout},
		{"permission", fmt.Errorf("open: %w", fs.ErrPermission), PermissionDenied},
		{"not connected", ErrNotConnected, PositionUnavailable},
		{"other", errors.New("boom"), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDemoGPSHonorsCancelledContext(t *testing.T) {
	d := NewDemoGPS()
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	if _, err := d.Locate(ctx, DefaultOptions()); Classify(err) != Timeout {
		t.Fatalf("expected timeout, got %v", err)
	}

	fix, err := d.Locate(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if fix.Accuracy <= 0 || fix.CapturedAt.IsZero() {
		t.Errorf("unexpected demo fix %+v", fix)
	}
}
