package gps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const (
	ggaBody     = "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"
	rmcBody     = "GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"
	rmcVoidBody = "GPRMC,123519,V,,,,,,,230394,,"
)

// sentence frames body with the leading $ and its checksum.
func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, sum)
}

// feed writes bodies to the provider in a loop, like a receiver emitting
// one epoch every few milliseconds, until the test ends.
func feed(t *testing.T, p *NMEAProvider, bodies ...string) {
	t.Helper()
	p.attach(receiver(t, bodies...))
	t.Cleanup(func() { _ = p.Close() })
}

// receiver returns a stream that repeats bodies until the test ends.
func receiver(t *testing.T, bodies ...string) io.ReadCloser {
	t.Helper()

	pr, pw := io.Pipe()
	stop := make(chan struct{})
	go func() {
		for {
			for _, b := range bodies {
				if _, err := io.WriteString(pw, sentence(b)); err != nil {
					return
				}
			}
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		_ = pw.Close()
	})
	return pr
}

type unpluggedPort struct{}

func (unpluggedPort) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }
func (unpluggedPort) Close() error             { return nil }

func TestLocateReturnsFreshFix(t *testing.T) {
	p := NewNMEA(NMEAConfig{PortPath: "/dev/null"}, zerolog.Nop())
	feed(t, p, ggaBody, rmcBody)

	fix, err := p.Locate(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if math.Abs(fix.Latitude-48.1173) > 1e-9 {
		t.Errorf("latitude = %v, want 48.1173", fix.Latitude)
	}
	if math.Abs(fix.Longitude-(11+31.0/60)) > 1e-9 {
		t.Errorf("longitude = %v, want %v", fix.Longitude, 11+31.0/60)
	}
	if math.Abs(fix.Accuracy-4.5) > 1e-9 {
		t.Errorf("accuracy = %v, want 4.5", fix.Accuracy)
	}
	want := time.Date(1994, 3, 23, 12, 35, 19, 0, time.UTC)
	if !fix.CapturedAt.Equal(want) {
		t.Errorf("captured at = %v, want %v", fix.CapturedAt, want)
	}
}

func TestLocateVoidFixIsUnavailable(t *testing.T) {
	p := NewNMEA(NMEAConfig{PortPath: "/dev/null"}, zerolog.Nop())
	feed(t, p, rmcVoidBody)

	_, err := p.Locate(context.Background(), DefaultOptions())
	if got := Classify(err); got != PositionUnavailable {
		t.Fatalf("Classify(%v) = %v, want %v", err, got, PositionUnavailable)
	}
}

func TestLocateTimesOut(t *testing.T) {
	p := NewNMEA(NMEAConfig{PortPath: "/dev/null"}, zerolog.Nop())
	pr, pw := io.Pipe()
	p.attach(pr)
	defer func() {
		_ = pw.Close()
		_ = p.Close()
	}()

	_, err := p.Locate(context.Background(), Options{HighAccuracy: true, Timeout: 30 * time.Millisecond})
	if got := Classify(err); got != Timeout {
		t.Fatalf("Classify(%v) = %v, want %v", err, got, Timeout)
	}
}

func TestLocateHighAccuracyNeedsGGA(t *testing.T) {
	p := NewNMEA(NMEAConfig{PortPath: "/dev/null"}, zerolog.Nop())
	feed(t, p, rmcBody)

	_, err := p.Locate(context.Background(), Options{HighAccuracy: true, Timeout: 50 * time.Millisecond})
	if got := Classify(err); got != Timeout {
		t.Fatalf("high accuracy without GGA: Classify = %v, want %v", got, Timeout)
	}

	fix, err := p.Locate(context.Background(), Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("low accuracy locate: %v", err)
	}
	if fix.Accuracy != 0 {
		t.Errorf("accuracy = %v, want 0 without GGA", fix.Accuracy)
	}
}

func TestLocateNotConnected(t *testing.T) {
	p := NewNMEA(NMEAConfig{PortPath: "/dev/ttyMissing"}, zerolog.Nop())
	p.open = func() (io.ReadCloser, error) { return nil, errors.New("no such device") }

	_, err := p.Locate(context.Background(), DefaultOptions())
	if got := Classify(err); got != PositionUnavailable {
		t.Fatalf("Classify(%v) = %v, want %v", err, got, PositionUnavailable)
	}
}

func TestLocateAfterCloseDoesNotReopen(t *testing.T) {
	p := NewNMEA(NMEAConfig{PortPath: "/dev/ttyGPS"}, zerolog.Nop())
	opens := 0
	p.open = func() (io.ReadCloser, error) {
		opens++
		return receiver(t, ggaBody, rmcBody), nil
	}
	if err := p.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err := p.Locate(context.Background(), DefaultOptions())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after Close, got %v", err)
	}
	if opens != 1 {
		t.Fatalf("opens = %d, want 1", opens)
	}
}

func TestLocateReopensAfterReadError(t *testing.T) {
	p := NewNMEA(NMEAConfig{PortPath: "/dev/ttyGPS"}, zerolog.Nop())
	ports := []io.ReadCloser{unpluggedPort{}, receiver(t, ggaBody, rmcBody)}
	var opens int
	p.open = func() (io.ReadCloser, error) {
		if opens >= len(ports) {
			return nil, errors.New("no more ports")
		}
		rc := ports[opens]
		opens++
		return rc, nil
	}
	t.Cleanup(func() { _ = p.Close() })

	if err := p.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		p.mu.Lock()
		dropped := p.port == nil
		p.mu.Unlock()
		if dropped {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("failed port was never dropped")
		}
		time.Sleep(time.Millisecond)
	}

	fix, err := p.Locate(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("locate after read error: %v", err)
	}
	if math.Abs(fix.Latitude-48.1173) > 1e-9 {
		t.Errorf("latitude = %v, want 48.1173", fix.Latitude)
	}
	if opens != 2 {
		t.Fatalf("opens = %d, want 2", opens)
	}
}

func TestLocateGivesUpWhenReopenedPortFails(t *testing.T) {
	p := NewNMEA(NMEAConfig{PortPath: "/dev/ttyGPS"}, zerolog.Nop())
	p.open = func() (io.ReadCloser, error) { return unpluggedPort{}, nil }
	t.Cleanup(func() { _ = p.Close() })

	_, err := p.Locate(context.Background(), Options{Timeout: time.Second})
	if got := Classify(err); got != PositionUnavailable {
		t.Fatalf("Classify(%v) = %v, want %v", err, got, PositionUnavailable)
	}
}

func TestParseNMEACoord(t *testing.T) {
	tests := []struct {
		raw, dir string
		want     float64
	}{
		{"4807.038", "N", 48.1173},
		{"4807.038", "S", -48.1173},
		{"01131.000", "W", -(11 + 31.0/60)},
		{"", "N", 0},
		{"abc", "E", 0},
	}
	for _, tt := range tests {
		got := parseNMEACoord(tt.raw, tt.dir)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("parseNMEACoord(%q, %q) = %v, want %v", tt.raw, tt.dir, got, tt.want)
		}
	}
}

func TestValidateNMEAChecksum(t *testing.T) {
	good := sentence(ggaBody)
	if !validateNMEAChecksum(good[:len(good)-2]) {
		t.Errorf("expected %q to validate", good)
	}
	if validateNMEAChecksum("$" + ggaBody + "*00") {
		t.Errorf("expected bad checksum to fail")
	}
	if validateNMEAChecksum("$" + ggaBody) {
		t.Errorf("expected missing checksum to fail")
	}
}

func TestParseNMEATimeFraction(t *testing.T) {
	fallback := time.Unix(0, 0)
	got := parseNMEATime("230394", "123519.50", fallback)
	want := time.Date(1994, 3, 23, 12, 35, 19, 500_000_000, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseNMEATime = %v, want %v", got, want)
	}
	if got := parseNMEATime("", "123519", fallback); !got.Equal(fallback) {
		t.Errorf("missing date should fall back, got %v", got)
	}
}
