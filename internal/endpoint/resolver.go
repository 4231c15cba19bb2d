// Package endpoint decides which tracking server URL the client talks to.
package endpoint

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shaunagostinho/geotrack/internal/config"
	"github.com/shaunagostinho/geotrack/internal/storage"
)

// LocalDefault is the compiled-in endpoint used for local development.
const LocalDefault = "http://localhost:8000/location"

// Prompter asks the user for an endpoint URL. ok is false when the user
// declines or no interactive user is present.
type Prompter interface {
	PromptURL(ctx context.Context, message string) (value string, ok bool)
}

// Resolver picks the endpoint URL at startup.
type Resolver struct {
	store       storage.Store
	prompter    Prompter
	host        string
	defaultURL  string
	staticHosts []string
	logger      zerolog.Logger
}

// Config holds the resolver inputs taken from configuration.
type Config struct {
	Host        string   // Host the client runs under
	DefaultURL  string   // Fallback endpoint, LocalDefault when empty
	StaticHosts []string // Domain suffixes of static hosting services
}

// NewResolver creates a Resolver. prompter may be nil.
func NewResolver(cfg Config, store storage.Store, prompter Prompter, logger zerolog.Logger) *Resolver {
	if cfg.DefaultURL == "" {
		cfg.DefaultURL = LocalDefault
	}
	return &Resolver{
		store:       store,
		prompter:    prompter,
		host:        strings.ToLower(strings.TrimSpace(cfg.Host)),
		defaultURL:  cfg.DefaultURL,
		staticHosts: cfg.StaticHosts,
		logger:      logger.With().Str("component", "endpoint").Logger(),
	}
}

// Resolve returns the endpoint to use. It always returns a usable URL:
// the stored override, then (for static hosting) a prompted URL, then the
// default. A valid prompted URL is persisted.
func (r *Resolver) Resolve(ctx context.Context) string {
	if override, ok := r.Stored(ctx); ok {
		r.logger.Debug().Str("url", override).Msg("using stored override")
		return override
	}

	if IsLocalHost(r.host) {
		return r.defaultURL
	}

	if r.isStaticHost() && r.prompter != nil {
		value, ok := r.prompter.PromptURL(ctx, "Enter your tracking server URL (e.g. https://your-server.example.com/location):")
		value = strings.TrimSpace(value)
		if ok && value != "" {
			if err := config.ValidateURL(value); err != nil {
				r.logger.Warn().Err(err).Msg("ignoring entered endpoint, using default")
				return r.defaultURL
			}
			if err := r.store.Set(ctx, storage.KeyEndpointURL, value); err != nil {
				r.logger.Error().Err(err).Msg("failed to persist prompted endpoint")
			}
			return value
		}
		r.logger.Info().Msg("no endpoint entered, using default")
	}

	return r.defaultURL
}

// Stored returns the persisted override, if any. Store errors count as
// absent.
func (r *Resolver) Stored(ctx context.Context) (string, bool) {
	if r.store == nil {
		return "", false
	}
	value, found, err := r.store.Get(ctx, storage.KeyEndpointURL)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to read stored endpoint")
		return "", false
	}
	if !found || value == "" {
		return "", false
	}
	return value, true
}

func (r *Resolver) isStaticHost() bool {
	for _, suffix := range r.staticHosts {
		suffix = strings.ToLower(strings.TrimPrefix(suffix, "."))
		if r.host == suffix || strings.HasSuffix(r.host, "."+suffix) {
			return true
		}
	}
	return false
}

// IsLocalHost reports whether host names a local development machine.
func IsLocalHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(strings.ToLower(host), "[]")
	switch host {
	case "", "localhost", "0.0.0.0":
		return true
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// Configure validates raw and persists it as the endpoint override. The
// new value takes effect the next time the client starts.
func Configure(ctx context.Context, store storage.Store, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if err := config.ValidateURL(raw); err != nil {
		return "", err
	}
	if err := store.Set(ctx, storage.KeyEndpointURL, raw); err != nil {
		return "", fmt.Errorf("save endpoint: %w", err)
	}
	return raw, nil
}

// StatusURL derives the health check URL from the endpoint by replacing a
// trailing /location path segment with /status.
func StatusURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return strings.TrimSuffix(endpoint, "/location") + "/status"
	}
	path := strings.TrimSuffix(u.Path, "/")
	path = strings.TrimSuffix(path, "/location")
	u.Path = path + "/status"
	u.RawPath = ""
	return u.String()
}
