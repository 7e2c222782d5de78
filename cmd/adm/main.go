// Package main provides the entry point for the bug tracker admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"bugtracker/cmd/adm/commands"
	"bugtracker/internal/config"
	"bugtracker/internal/database"
	"bugtracker/internal/di"
	"bugtracker/internal/observability"

	"github.com/spf13/cobra"
)

const serviceName = "bugtracker-adm"

func main() {
	ctx := context.Background()

	// Find a config file when none is named explicitly
	if os.Getenv(config.ConfigFileEnv) == "" {
		for _, path := range []string{"config.yaml", "../config.yaml", "../../config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv(config.ConfigFileEnv, path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set %s: %v\n", config.ConfigFileEnv, err)
					os.Exit(1)
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The admin tool talks only to the store; keep output quiet and skip exporters
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false
	// Schema changes go through "db migrate" only
	cfg.Database.AutoMigrate = false

	telemetry, err := observability.SetupObservability(&cfg.OpenTelemetry, serviceName, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	logger := telemetry.Logger

	container := di.NewServiceContainer(cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Bug Tracker Administration Tool",
		Long: `Bug Tracker Administration Tool

Operator commands for triaging, assigning, and auditing bug reports, and for
managing the bug store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !commands.NeedsStore(cmd) {
				return nil
			}
			if err := container.Initialize(cmd.Context()); err != nil {
				logger.Error(cmd.Context(), "Failed to connect to bug store", err, map[string]interface{}{"driver": cfg.Database.Driver})
				return err
			}
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
		Annotations: map[string]string{commands.SkipStoreAnnotation: "true"},
	}

	rootCmd.AddCommand(commands.BugCommands(container, logger))
	rootCmd.AddCommand(commands.DatabaseCommands(database.NewManager(logger), container, cfg.Database, logger))
	rootCmd.AddCommand(commands.VersionCommand(config.DefaultServiceName))

	err = rootCmd.ExecuteContext(ctx)

	if shutdownErr := container.Shutdown(ctx); shutdownErr != nil {
		logger.Warn(ctx, "Failed to close bug store", map[string]interface{}{"error": shutdownErr.Error()})
	}
	_ = telemetry.Shutdown(ctx)

	if err != nil {
		os.Exit(1)
	}
}
