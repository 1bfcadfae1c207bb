package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/spf13/cobra"
	"github.com/stanstork/campus-api/internal/handlers"
	"github.com/stanstork/campus-api/internal/middleware"
	"github.com/stanstork/campus-api/internal/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		if err := app.config.RequireJWTSecret(); err != nil {
			return err
		}

		handler := app.initRouter()
		app.startServer(handler)
		app.logger.Info().Msg("Application terminated.")
		return nil
	},
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter() http.Handler {
	notificationHandler := handlers.NewNotificationHandler(app.notificationService(), app.logger)
	router := routes.NewRouter(app.config.JWTSecret, app.db, notificationHandler)

	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	return h.CORS(
		h.AllowedOrigins(app.config.AllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler) {
	logger := app.logger
	server := &http.Server{
		Addr:              ":" + app.config.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// In-flight dispatches get the configured dispatch timeout to finish.
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Dispatch.Timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}
