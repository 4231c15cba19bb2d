package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shaunagostinho/geotrack/internal/config"
	"github.com/shaunagostinho/geotrack/internal/console"
	"github.com/shaunagostinho/geotrack/internal/endpoint"
	"github.com/shaunagostinho/geotrack/internal/logger"
	"github.com/shaunagostinho/geotrack/internal/server"
	"github.com/shaunagostinho/geotrack/internal/systemd"
	"github.com/shaunagostinho/geotrack/internal/tracker"
	"github.com/shaunagostinho/geotrack/internal/uplink"
	"github.com/shaunagostinho/geotrack/web"
	"github.com/spf13/cobra"
)

// shutdownGrace bounds how long in-flight captures may run after stop.
const shutdownGrace = 5 * time.Second

var autoStart bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracking agent",
	Long:  `Resolve the tracking server, probe it, and serve the control panel until interrupted.`,
	RunE:  runAgent,
}

func init() {
	runCmd.Flags().BoolVar(&autoStart, "start", false, "Start a tracking session immediately")
	rootCmd.Flags().BoolVar(&autoStart, "start", false, "Start a tracking session immediately")
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logger.New(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting geotrack")

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return err
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()
	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	resolver := endpoint.NewResolver(endpoint.Config{
		Host:        cfg.Client.Host,
		DefaultURL:  cfg.Endpoint.DefaultURL,
		StaticHosts: cfg.Endpoint.StaticHosts,
	}, store, console.NewPrompter(), logger)
	endpointURL := resolver.Resolve(ctx)
	client := uplink.New(endpointURL, cfg.Tracking.SendTimeout)
	logger.Info().
		Str("endpoint", client.Endpoint()).
		Str("status_url", client.StatusURL()).
		Msg("Tracking server resolved")

	// Start GPS connection in the background; the panel works regardless
	provider := newProvider(cfg.GPS, logger)
	var locator tracker.Locator
	if provider != nil {
		locator = provider
		go connectWithRetry(ctx, provider, 10, logger)
	} else {
		logger.Warn().Msg("Location capture disabled")
	}

	hub := server.NewHub(logger)
	displays := tracker.Displays{console.NewDisplay(os.Stdout), hub}
	tr := tracker.New(tracker.Config{
		Interval:       cfg.Tracking.Interval,
		CaptureTimeout: cfg.Tracking.CaptureTimeout,
	}, locator, client, displays, logger)

	displays.ShowStatus(tr.Status())
	go tr.Probe(ctx)

	var srvErr chan error
	if cfg.Server.ListenAddr != "" || sdListeners.Panel != nil {
		srv := server.New(server.Config{
			ListenAddr: cfg.Server.ListenAddr,
			Endpoint:   endpointURL,
		}, tr, hub, store, web.FS, logger)
		srvErr = make(chan error, 1)
		go func() { srvErr <- srv.Run(ctx, sdListeners.Panel) }()
	}

	if autoStart {
		tr.Start(ctx)
	}

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}
	logger.Info().Msg("geotrack startup complete")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received, gracefully stopping...")
	case err := <-srvErr:
		if err != nil {
			logger.Error().Err(err).Msg("Panel server failed")
			runErr = fmt.Errorf("panel server: %w", err)
		}
		srvErr = nil
	}
	cancel()

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	tr.Stop()
	done := make(chan struct{})
	go func() {
		tr.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		logger.Warn().Dur("grace", shutdownGrace).Msg("Captures still in flight at shutdown")
	}

	if provider != nil {
		if err := provider.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close GPS provider")
		}
	}
	if srvErr != nil {
		if err := <-srvErr; err != nil {
			logger.Error().Err(err).Msg("Panel server failed")
		}
	}

	logger.Info().Msg("geotrack stopped")
	return runErr
}
