// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"fmt"

	"bugtracker/internal/config"
	"bugtracker/internal/database"
	"bugtracker/internal/models"
	"bugtracker/internal/observability"
	contextutils "bugtracker/internal/utils"

	"github.com/spf13/cobra"
)

// SkipStoreAnnotation marks commands that run without opening the bug store
const SkipStoreAnnotation = "skip_store"

// NeedsStore reports whether cmd requires an open bug store
func NeedsStore(cmd *cobra.Command) bool {
	if cmd.Name() == "help" || cmd.Name() == "completion" || !cmd.Runnable() {
		return false
	}
	return cmd.Annotations[SkipStoreAnnotation] == ""
}

// Migrator applies and reports schema migrations
type Migrator interface {
	RunMigrations(ctx context.Context, cfg config.DatabaseConfig) error
	MigrationVersion(cfg config.DatabaseConfig) (uint, bool, error)
}

var _ Migrator = (*database.Manager)(nil)

// DatabaseCommands returns the database management commands
func DatabaseCommands(migrator Migrator, provider BugServiceProvider, cfg config.DatabaseConfig, logger *observability.Logger) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the bug store.

Available commands:
  migrate   - Apply pending schema migrations
  stats     - Show bug counts per status and the schema version`,
	}

	dbCmd.AddCommand(migrateCmd(migrator, cfg, logger))
	dbCmd.AddCommand(statsCmd(migrator, provider, cfg, logger))

	return dbCmd
}

// migrateCmd returns the migrate command
func migrateCmd(migrator Migrator, cfg config.DatabaseConfig, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:         "migrate",
		Short:       "Apply pending schema migrations",
		Annotations: map[string]string{SkipStoreAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger.Info(ctx, "Running migrations", map[string]interface{}{"driver": cfg.Driver, "database": maskDatabaseURL(cfg.URL)})

			if err := migrator.RunMigrations(ctx, cfg); err != nil {
				logger.Error(ctx, "Migration failed", err, map[string]interface{}{"driver": cfg.Driver})
				return contextutils.WrapError(err, "migration failed")
			}
			version, dirty, err := migrator.MigrationVersion(cfg)
			if err != nil {
				return contextutils.WrapError(err, "failed to read schema version")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	}
}

// statsCmd returns the stats command
func statsCmd(migrator Migrator, provider BugServiceProvider, cfg config.DatabaseConfig, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show bug counts per status, the driver, and the applied schema version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := provider.GetBugService()
			if err != nil {
				return contextutils.WrapError(err, "bug service not available")
			}
			stats, err := svc.Stats(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to get bug statistics", err, nil)
				return contextutils.WrapError(err, "failed to get bug statistics")
			}
			version, dirty, err := migrator.MigrationVersion(cfg)
			if err != nil {
				return contextutils.WrapError(err, "failed to read schema version")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Driver:   %s\n", cfg.Driver)
			fmt.Fprintf(out, "Database: %s\n", maskDatabaseURL(cfg.URL))
			fmt.Fprintf(out, "Schema:   version %d (dirty: %t)\n", version, dirty)
			fmt.Fprintf(out, "Total:    %d\n", stats.Total)
			for _, st := range sortedStatuses(withAllStatuses(stats.ByStatus)) {
				fmt.Fprintf(out, "  %-13s %d\n", st, stats.ByStatus[st])
			}
			return nil
		},
	}
}

// withAllStatuses adds zero counts for statuses with no bugs
func withAllStatuses(counts map[models.Status]int) map[models.Status]int {
	out := make(map[models.Status]int, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		out[s] = 0
	}
	for s, n := range counts {
		out[s] = n
	}
	return out
}
