// Package main is the entry point for the hibikido CLI.
package main

import (
	"fmt"
	"os"

	"github.com/hibikido/hibikido/internal/config"
	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hibikido",
		Short: "Hibikidō sound invocation server",
		Long: `Hibikidō answers free-text incantations over OSC: it searches a
semantically indexed catalog of recording segments and effect presets and
manifests the matches that fit into free time-frequency niches.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(downloadModelCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads the optional .env file, then the optional config file,
// then HIBIKIDO_* environment overrides.
func loadConfig(envFile, configFile string) (config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
