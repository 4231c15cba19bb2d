package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shaunagostinho/geotrack/internal/config"
	"github.com/shaunagostinho/geotrack/internal/gps"
	"github.com/shaunagostinho/geotrack/internal/storage"
	"github.com/shaunagostinho/geotrack/internal/storage/bolt"
	"github.com/shaunagostinho/geotrack/internal/storage/redis"
)

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "bolt":
		s, err := bolt.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := redis.Open(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// newProvider returns nil when location capture is disabled.
func newProvider(cfg config.GPSConfig, logger zerolog.Logger) gps.Provider {
	switch cfg.Type {
	case "nmea":
		return gps.NewNMEA(gps.NMEAConfig{
			PortPath: cfg.PortPath,
			BaudRate: cfg.BaudRate,
		}, logger)
	case "disabled":
		return nil
	default:
		return gps.NewDemoGPS()
	}
}

// connectable is satisfied by gps.Provider.
type connectable interface {
	Name() string
	Connect() error
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, logs each of the first
// maxAttempts failures at warn level then continues quietly at the max
// interval.
func connectWithRetry(ctx context.Context, c connectable, maxAttempts int, logger zerolog.Logger) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0
	log := logger.With().Str("component", "gps").Str("provider", c.Name()).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.Connect()
		if err == nil {
			log.Info().Int("attempt", attempt+1).Msg("connected")
			return
		}

		attempt++
		event := log.Warn()
		if attempt > maxAttempts {
			event = log.Debug()
		}
		event.Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("connect failed")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
