// Package uplink talks to the tracking server: it posts position samples
// and probes the server's status endpoint.
package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaunagostinho/geotrack/internal/endpoint"
	"github.com/shaunagostinho/geotrack/internal/gps"
)

// timestampLayout matches the ISO-8601 form browsers emit (UTC, millis).
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Payload is the JSON body posted for every sample.
type Payload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp string  `json:"timestamp"`
}

// NewPayload copies fix into the wire form.
func NewPayload(fix gps.Fix) Payload {
	return Payload{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Accuracy:  fix.Accuracy,
		Timestamp: fix.CapturedAt.UTC().Format(timestampLayout),
	}
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Health is the outcome of a status probe.
type Health int

const (
	HealthDown Health = iota
	HealthDegraded
	HealthUp
)

func (h Health) String() string {
	switch h {
	case HealthUp:
		return "up"
	case HealthDegraded:
		return "degraded"
	default:
		return "down"
	}
}

// Client posts samples to one endpoint.
type Client struct {
	endpoint  string
	statusURL string
	http      *http.Client
}

// New creates a Client for endpoint. Each request is bounded by timeout.
func New(endpointURL string, timeout time.Duration) *Client {
	return &Client{
		endpoint:  endpointURL,
		statusURL: endpoint.StatusURL(endpointURL),
		http:      &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the URL samples are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// StatusURL returns the URL probed for health.
func (c *Client) StatusURL() string { return c.statusURL }

// Send posts one sample. It does not retry.
func (c *Client) Send(ctx context.Context, fix gps.Fix) error {
	body, err := json.Marshal(NewPayload(fix))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Probe issues a GET against the status URL.
func (c *Client) Probe(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL, nil)
	if err != nil {
		return HealthDown, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return HealthDown, fmt.Errorf("get %s: %w", c.statusURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return HealthDegraded, &StatusError{StatusCode: resp.StatusCode}
	}
	return HealthUp, nil
}
