package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shaunagostinho/geotrack/internal/config"
	"github.com/shaunagostinho/geotrack/internal/console"
	"github.com/shaunagostinho/geotrack/internal/endpoint"
	"github.com/shaunagostinho/geotrack/internal/logger"
	"github.com/shaunagostinho/geotrack/internal/tracker"
	"github.com/shaunagostinho/geotrack/internal/uplink"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture and send a single position",
	Long:  `Take one fix from the configured GPS receiver, print it and post it to the tracking server.`,
	RunE:  runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logger.New(cfg.Logging)

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resolver := endpoint.NewResolver(endpoint.Config{
		Host:        cfg.Client.Host,
		DefaultURL:  cfg.Endpoint.DefaultURL,
		StaticHosts: cfg.Endpoint.StaticHosts,
	}, store, console.NewPrompter(), logger)
	client := uplink.New(resolver.Resolve(ctx), cfg.Tracking.SendTimeout)

	var locator tracker.Locator
	if provider := newProvider(cfg.GPS, logger); provider != nil {
		if err := provider.Connect(); err != nil {
			logger.Warn().Err(err).Str("provider", provider.Name()).Msg("connect failed")
		}
		defer provider.Close()
		locator = provider
	}

	tr := tracker.New(tracker.Config{
		Interval:       cfg.Tracking.Interval,
		CaptureTimeout: cfg.Tracking.CaptureTimeout,
	}, locator, client, console.NewDisplay(os.Stdout), logger)

	if _, err := tr.CaptureOnce(ctx); err != nil {
		return err
	}
	if s := tr.Status(); s.Category == tracker.CategoryError {
		return fmt.Errorf("%s (%s)", s.Message, client.Endpoint())
	}
	return nil
}
