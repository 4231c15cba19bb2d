package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/shaunagostinho/geotrack/internal/config"
	"github.com/shaunagostinho/geotrack/internal/endpoint"
	"github.com/shaunagostinho/geotrack/internal/logger"
	"github.com/shaunagostinho/geotrack/internal/tracker"
	"github.com/shaunagostinho/geotrack/internal/uplink"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the tracking server is reachable",
	Long:  `Send one GET to the tracking server's status URL. Exits non-zero unless the server answers 2xx.`,
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
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
	}, store, nil, logger)
	client := uplink.New(resolver.Resolve(ctx), cfg.Tracking.SendTimeout)

	health, probeErr := client.Probe(ctx)
	status := tracker.HealthStatus(health)

	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintf(os.Stdout, "Status URL: %s\n", client.StatusURL())

	switch health {
	case uplink.HealthUp:
		_, _ = color.New(color.FgGreen, color.Bold).Fprintf(os.Stdout, "✅ %s\n", status.Message)
		return nil
	case uplink.HealthDegraded:
		_, _ = color.New(color.FgYellow, color.Bold).Fprintf(os.Stdout, "⚠️  %s\n", status.Message)
	default:
		_, _ = color.New(color.FgRed, color.Bold).Fprintf(os.Stdout, "❌ %s\n", status.Message)
	}
	return fmt.Errorf("server %s: %w", health, probeErr)
}
