package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Togather-Foundation/eventease/internal/config"
	"github.com/Togather-Foundation/eventease/internal/metrics"
	"github.com/Togather-Foundation/eventease/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	host string
	port int
}

func newServeCommand(global *globalFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the EventEase HTTP server",
		Long: `Start the EventEase HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables
- Open the configured storage backend (postgres or sqlite)
- Bootstrap the admin account if ADMIN_USERNAME and ADMIN_PASSWORD are set
- Expire stale approval requests if APPROVAL_MAX_PENDING_AGE_HOURS is set
- Handle graceful shutdown on SIGINT/SIGTERM

The postgres schema must be created first with "server migrate up".
The sqlite backend migrates its database file on open.

Examples:
  # Start with configuration from env vars
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if flags.host != "" {
				cfg.Server.Host = flags.host
			}
			if flags.port != 0 {
				cfg.Server.Port = flags.port
			}

			logger := config.NewLogger(cfg.Logging, cfg.Environment)
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&flags.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "server port (default: 8080)")
	return cmd
}

// loadConfig reads the environment and applies global flag overrides.
func loadConfig(global *globalFlags) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if global.logLevel != "" {
		cfg.Logging.Level = global.logLevel
	}
	if global.logFormat != "" {
		cfg.Logging.Format = global.logFormat
	}
	return cfg, nil
}

// runServer serves until ctx is cancelled, then drains requests and stops
// background work within the shutdown timeout.
func runServer(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	logger.Info().Str("backend", cfg.Storage.Backend).Str("version", Version).Msg("starting eventease server")
	metrics.Init(Version, GitCommit, BuildDate, cfg.Storage.Backend)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}

	bootstrapCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := app.bootstrapAdmin(bootstrapCtx); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	cancel()

	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if err := app.start(backgroundCtx); err != nil {
		stopBackground()
		app.stop(context.Background())
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		runErr = errors.Join(runErr, err)
	}
	stopBackground()
	app.stop(shutdownCtx)

	logger.Info().Msg("server stopped")
	return runErr
}
