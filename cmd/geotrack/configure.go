package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/shaunagostinho/geotrack/internal/config"
	"github.com/shaunagostinho/geotrack/internal/console"
	"github.com/shaunagostinho/geotrack/internal/endpoint"
	"github.com/shaunagostinho/geotrack/internal/storage"
	"github.com/spf13/cobra"
)

var configureURL string

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set the tracking server URL",
	Long: `Store a tracking server URL that overrides the configured default.
Without --url the URL is asked for on the terminal. The new URL is used the
next time the agent starts.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureURL, "url", "", "Tracking server URL (e.g. https://your-server.example.com/location)")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	raw := configureURL
	if raw == "" {
		current, found, err := store.Get(ctx, storage.KeyEndpointURL)
		if err != nil {
			return fmt.Errorf("failed to read stored URL: %w", err)
		}
		if !found {
			current = cfg.Endpoint.DefaultURL
		}
		value, ok := console.NewPrompter().PromptURL(ctx,
			fmt.Sprintf("Enter your tracking server URL [%s]:", current))
		if !ok {
			return fmt.Errorf("no URL given (use --url when not on a terminal)")
		}
		raw = value
	}

	saved, err := endpoint.Configure(ctx, store, raw)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen, color.Bold)
	_, _ = green.Fprintf(os.Stdout, "✅ Tracking server URL saved: %s\n", saved)
	_, _ = fmt.Fprintf(os.Stdout, "   Health checks will use %s\n", endpoint.StatusURL(saved))
	_, _ = fmt.Fprintln(os.Stdout, "   Restart geotrack for the change to take effect.")
	return nil
}
