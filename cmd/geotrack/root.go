package main

import (
	"fmt"
	"os"

	"github.com/shaunagostinho/geotrack/internal/config"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "geotrack",
	Short: "geotrack - periodic device location reporter",
	Long: `geotrack reads the device position from a GPS receiver and posts it to a
tracking server while a tracking session is active. Sessions are started and
stopped from the local control panel.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to run command when no subcommand is provided
		return runAgent(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
