package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"quiz-forms-service/internal/config"
	"quiz-forms-service/internal/infra/postgres"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runMigrations(cmd.Context(), cfg, cfg.NewLogger())
		},
	}
}

func runMigrations(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	db, err := postgres.Open(ctx, postgresOptions(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	group, err := postgres.Migrate(ctx, db)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Info("no new migrations")
		return nil
	}
	logger.Info("migrations applied", "group", group.String())
	return nil
}

func postgresOptions(cfg config.Config) postgres.Options {
	return postgres.Options{
		URL:          cfg.Postgres.URL,
		Driver:       cfg.Postgres.Driver,
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
	}
}
