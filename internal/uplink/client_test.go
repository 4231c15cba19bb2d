package uplink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaunagostinho/geotrack/internal/gps"
)

func TestSendPostsExactPayload(t *testing.T) {
	var (
		gotBody   []byte
		gotType   string
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fix := gps.Fix{
		Latitude:   37.7749,
		Longitude:  -122.4194,
		Accuracy:   5.0,
		CapturedAt: time.Date(2024, 5, 1, 12, 30, 45, 123_000_000, time.UTC),
	}
	c := New(srv.URL+"/location", time.Second)
	if err := c.Send(context.Background(), fix); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s", gotMethod)
	}
	if gotType != "application/json" {
		t.Errorf("content type = %q", gotType)
	}

	var body map[string]any
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["latitude"] != 37.7749 || body["longitude"] != -122.4194 || body["accuracy"] != 5.0 {
		t.Errorf("coordinates changed in transit: %s", gotBody)
	}
	ts, ok := body["timestamp"].(string)
	if !ok {
		t.Fatalf("timestamp missing: %s", gotBody)
	}
	if ts != "2024-05-01T12:30:45.123Z" {
		t.Errorf("timestamp = %q", ts)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp is not ISO-8601: %v", err)
	}
	if len(body) != 4 {
		t.Errorf("unexpected extra fields: %s", gotBody)
	}
}

func TestSendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing field", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := New(srv.URL+"/location", time.Second).Send(context.Background(), gps.Fix{CapturedAt: time.Now()})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusBadRequest || se.Body != "missing field" {
		t.Errorf("unexpected status error %+v", se)
	}
}

func TestSendNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/location"
	srv.Close()

	if err := New(url, time.Second).Send(context.Background(), gps.Fix{}); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

func TestProbe(t *testing.T) {
	var probedPath string
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probedPath = r.URL.Path
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"running"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/location", time.Second)
	if h, err := c.Probe(context.Background()); h != HealthUp || err != nil {
		t.Fatalf("Probe() = %v, %v; want up", h, err)
	}
	if probedPath != "/status" {
		t.Errorf("probed %q, want /status", probedPath)
	}

	healthy = false
	if h, err := c.Probe(context.Background()); h != HealthDegraded || err == nil {
		t.Fatalf("Probe() = %v, %v; want degraded", h, err)
	}

	srv.Close()
	if h, err := c.Probe(context.Background()); h != HealthDown || err == nil {
		t.Fatalf("Probe() = %v, %v; want down", h, err)
	}
}
