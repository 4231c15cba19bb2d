package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/shaunagostinho/geotrack/internal/config"
	"github.com/spf13/cobra"
)

var initForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := config.Write(configPath, config.Default()); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration written: %s\n", configPath)
	return nil
}
