package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stanstork/campus-api/internal/config"
	"github.com/stanstork/campus-api/internal/migration"
	"github.com/stanstork/campus-api/internal/notification"
	"github.com/stanstork/campus-api/internal/repository"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "campus-api",
	Short:         "Campus notification service",
	Long:          `Resolves audiences from the campus directory and fans notifications out to every recipient.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, dispatchCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// application holds what every command needs once config is loaded.
type application struct {
	config *config.Config
	db     *sqlx.DB
	logger zerolog.Logger
}

func newLogger(level string) zerolog.Logger {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.SetFlags(0)
	log.SetOutput(logger)
	return logger
}

// bootstrap loads configuration, connects to the database and applies
// pending migrations.
func bootstrap(ctx context.Context) (*application, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel)

	db, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := migration.RunMigrations(ctx, db.DB, cfg.DatabaseDriver, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &application{config: cfg, db: db, logger: logger}, nil
}

func (app *application) notificationService() notification.Service {
	store := repository.NewNotificationRepository(app.db)
	directory := repository.NewDirectoryRepository(app.db)
	resolver := notification.NewResolver(directory, app.config.Dispatch.SectionWorkers, app.logger)
	dispatcher := notification.NewDispatcher(resolver, store, app.config.Dispatch.Workers, app.logger)
	return notification.NewService(dispatcher, store, app.config.Dispatch.Timeout, app.logger)
}

func (app *application) close() {
	if err := app.db.Close(); err != nil {
		app.logger.Error().Err(err).Msg("closing database")
	}
}
