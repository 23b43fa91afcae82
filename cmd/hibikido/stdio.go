package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hibikido/hibikido"
	"github.com/hibikido/hibikido/internal/log"
	"github.com/hibikido/hibikido/internal/mcp"
	"github.com/spf13/cobra"
)

func stdioCmd() *cobra.Command {
	var (
		envFile    string
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants search the sound catalog and read its stats. The OSC
surface stays down; only the catalog and the vector index are opened.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(envFile, configFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")

	return cmd
}

func runStdio(envFile, configFile string) error {
	cfg, err := loadConfig(envFile, configFile)
	if err != nil {
		return err
	}

	// stdout carries the MCP protocol, so the logger writes to stderr.
	logger := log.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	logger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("database", cfg.Database.URL),
	)

	srv, err := hibikido.New(cfg, hibikido.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("failed to close server", slog.Any("error", err))
		}
	}()

	mcpServer := mcp.NewServer(srv.Engine, srv.Engine, srv.Orchestrator, cfg.Search, version, logger)
	return mcpServer.ServeStdio()
}
