package migration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// Embed SQL files from the local migrations folder, one directory per dialect.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embeddedMigrations embed.FS

func dialectFor(driver string) (goose.Dialect, string, error) {
	switch driver {
	case "postgres":
		return goose.DialectPostgres, "migrations/postgres", nil
	case "sqlite":
		return goose.DialectSQLite3, "migrations/sqlite", nil
	default:
		return "", "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// RunMigrations applies every pending migration for the given driver and logs
// each applied version.
func RunMigrations(ctx context.Context, db *sql.DB, driver string, logger zerolog.Logger) error {
	log := logger.With().Str("component", "migration").Logger()

	dialect, dir, err := dialectFor(driver)
	if err != nil {
		return err
	}
	fsys, err := fs.Sub(embeddedMigrations, dir)
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	for _, res := range results {
		log.Info().
			Int64("version", res.Source.Version).
			Str("path", res.Source.Path).
			Dur("duration", res.Duration).
			Msg("applied migration")
	}

	log.Info().Int("applied", len(results)).Msg("Migrations completed successfully")
	return nil
}
