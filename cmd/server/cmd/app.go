package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Togather-Foundation/eventease/internal/api"
	"github.com/Togather-Foundation/eventease/internal/api/handlers"
	"github.com/Togather-Foundation/eventease/internal/api/middleware"
	"github.com/Togather-Foundation/eventease/internal/audit"
	"github.com/Togather-Foundation/eventease/internal/auth"
	"github.com/Togather-Foundation/eventease/internal/config"
	"github.com/Togather-Foundation/eventease/internal/domain/events"
	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
	"github.com/Togather-Foundation/eventease/internal/domain/users"
	"github.com/Togather-Foundation/eventease/internal/jobs"
	"github.com/Togather-Foundation/eventease/internal/metrics"
	"github.com/Togather-Foundation/eventease/internal/storage/postgres"
	"github.com/Togather-Foundation/eventease/internal/storage/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

const dbStatsInterval = 15 * time.Second

// appStore is what both storage backends provide.
type appStore interface {
	moderation.Store
	Users() users.Repository
	Ping(ctx context.Context) error
}

// application owns every long-lived component of a running server.
type application struct {
	cfg    config.Config
	logger zerolog.Logger

	store     appStore
	pool      *pgxpool.Pool
	engine    *moderation.Engine
	users     *users.Service
	limiter   *middleware.RateLimiter
	expirer   *jobs.ApprovalExpirer
	river     *river.Client[pgx.Tx]
	collector *metrics.DBCollector
	handler   http.Handler

	closeStore func() error
	wg         sync.WaitGroup
}

func newApplication(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := postgres.OpenPool(ctx, cfg.Storage.DatabaseURL, postgres.PoolConfig{
			MaxConns: int32(cfg.Storage.MaxConnections),
		})
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		repo, err := postgres.NewRepository(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		app.store = repo
		app.pool = pool
		app.collector = metrics.NewDBCollector(pool)
		app.closeStore = func() error {
			pool.Close()
			return nil
		}
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		app.store = store
		app.collector = metrics.NewSQLDBCollector(store.DB())
		app.closeStore = store.Close
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}

	jwtManager, err := auth.NewJWTManagerFromSecret(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)
	if err != nil {
		_ = app.closeStore()
		return nil, fmt.Errorf("derive jwt key: %w", err)
	}

	validator := events.NewValidator(cfg.Events.Location, time.Now)
	auditLogger := audit.NewLoggerWithZerolog(logger)
	app.engine = moderation.NewEngine(app.store, validator, logger,
		moderation.WithObserver(metrics.ModerationObserver{}))
	app.users = users.NewService(app.store.Users(), logger)
	app.limiter = middleware.NewRateLimiter(cfg.RateLimit)
	app.expirer = &jobs.ApprovalExpirer{
		Engine: app.engine,
		MaxAge: cfg.Approvals.MaxPendingAge,
		Audit:  auditLogger,
		Logger: logger.With().Str("component", "approval_expiry").Logger(),
	}

	health := handlers.NewHealthChecker(Version, GitCommit).Register("database", app.store)

	if app.pool != nil && cfg.Approvals.MaxPendingAge > 0 {
		client, err := app.newRiverClient()
		if err != nil {
			app.limiter.Stop()
			_ = app.closeStore()
			return nil, err
		}
		app.river = client
		health.Register("job_queue", handlers.PingFunc(func(ctx context.Context) error {
			return jobs.CheckQueue(ctx, app.pool)
		}))
	}

	env := cfg.Environment
	app.handler = api.NewRouter(api.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Build:       api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
		JWTManager:  jwtManager,
		RateLimiter: app.limiter,
		Health:      health,
		Events:      handlers.NewEventsHandler(events.NewService(app.store.Events(), validator, logger), app.engine, validator, app.store.Users(), auditLogger, env),
		Approvals:   handlers.NewApprovalsHandler(app.engine, auditLogger, env),
		Users:       handlers.NewUsersHandler(app.users, jwtManager, auditLogger, env),
	})
	return app, nil
}

func (a *application) newRiverClient() (*river.Client[pgx.Tx], error) {
	level := slog.LevelWarn
	if a.cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	riverLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	riverConfig := jobs.NewClientConfig(
		jobs.NewWorkers(a.expirer),
		riverLogger,
		jobs.NewAlertingErrorHandler(a.logger, nil),
		[]rivertype.Hook{metrics.NewRiverMetricsHook()},
		jobs.NewPeriodicJobs(a.cfg.Approvals.ExpiryEvery),
	)
	client, err := jobs.NewClient(a.pool, riverConfig)
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return client, nil
}

// start launches background work. Everything it starts stops when ctx is
// cancelled or stop is called.
func (a *application) start(ctx context.Context) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.collector.Start(ctx, dbStatsInterval)
	}()

	switch {
	case a.river != nil:
		if err := a.river.Start(ctx); err != nil {
			return fmt.Errorf("river workers failed to start: %w", err)
		}
		a.logger.Info().Msg("river background job workers started")
	case a.cfg.Approvals.MaxPendingAge > 0:
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.expirer.RunEvery(ctx, a.cfg.Approvals.ExpiryEvery)
		}()
		a.logger.Info().Dur("every", a.cfg.Approvals.ExpiryEvery).Msg("approval expiry ticker started")
	default:
		a.logger.Info().Msg("approval expiry disabled")
	}
	return nil
}

func (a *application) stop(ctx context.Context) {
	if a.river != nil {
		if err := a.river.Stop(ctx); err != nil {
			a.logger.Error().Err(err).Msg("river workers shutdown error")
		} else {
			a.logger.Info().Msg("river workers stopped")
		}
	}
	a.collector.Stop()
	a.wg.Wait()
	a.limiter.Stop()
	if err := a.closeStore(); err != nil {
		a.logger.Error().Err(err).Msg("close store")
	}
}

// bootstrapAdmin ensures the configured administrator account exists.
func (a *application) bootstrapAdmin(ctx context.Context) error {
	bootstrap := a.cfg.AdminBootstrap
	if !bootstrap.Enabled() {
		a.logger.Warn().Msg("ADMIN_USERNAME/ADMIN_PASSWORD not set; skipping admin bootstrap")
		return nil
	}
	user, err := a.users.EnsureAdmin(ctx, users.RegisterParams{
		Username: bootstrap.Username,
		Email:    bootstrap.Email,
		Password: bootstrap.Password,
	})
	if err != nil {
		return err
	}
	a.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("admin account ready")
	return nil
}
