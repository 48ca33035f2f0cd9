package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/soaringjerry/maat/internal/api"
	"github.com/soaringjerry/maat/internal/config"
	"github.com/soaringjerry/maat/internal/db"
	"github.com/soaringjerry/maat/internal/metrics"
	"github.com/soaringjerry/maat/internal/middleware"
	"github.com/soaringjerry/maat/internal/services"
	"github.com/soaringjerry/maat/internal/session"
)

// app holds the wired services shared by the commands.
type app struct {
	cfg           *config.Config
	logger        *slog.Logger
	metrics       *metrics.Metrics
	store         *db.SQLiteStore
	authenticator *middleware.Authenticator
	svc           api.Services

	sessions    *session.Manager
	memSessions *session.MemoryStore
	redis       *session.RedisStore
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.SQLiteStore, error) {
	store, err := db.Open(ctx, cfg.DBPath, cfg.MigrationsDir, db.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	return store, nil
}

// newApp opens the store and the session backend and builds every service.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics.New(),
		store:         store,
		authenticator: middleware.NewAuthenticator(cfg.JWTSecret),
	}

	switch cfg.SessionBackend {
	case config.BackendRedis:
		a.redis = session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, session.WithTTL(cfg.SessionTTL))
		if err := a.redis.Ping(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		locker := session.NewRedisLocker(a.redis.Client(), "maat:")
		a.sessions = session.NewManager(a.redis, session.WithLocker(locker, 0), session.WithLogger(logger))
	default:
		a.memSessions = session.NewMemoryStore(cfg.SessionTTL)
		a.sessions = session.NewManager(a.memSessions, session.WithLogger(logger))
	}

	exports := services.NewExportService(store, cfg.ResultsDir).WithLogger(logger).WithMetrics(a.metrics)
	a.svc = api.Services{
		Runs:         services.NewRunService(store, a.sessions, exports).WithLogger(logger).WithMetrics(a.metrics),
		Trials:       services.NewTrialRunner(store, a.sessions),
		Responses:    services.NewResponseService(store, a.sessions).WithLogger(logger).WithMetrics(a.metrics),
		Exports:      exports,
		Experiments:  services.NewExperimentService(store),
		Participants: services.NewParticipantService(store),
		Auth:         services.NewAuthService(store, a.authenticator.SignToken, cfg.TokenTTL),
		Analytics:    services.NewAnalyticsService(store),
	}
	return a, nil
}

// ready checks the store and, when used, redis.
func (a *app) ready(ctx context.Context) error {
	if err := a.store.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *app) handler() (http.Handler, error) {
	return api.NewRouter(a.svc, api.Options{
		Logger:        a.logger,
		Metrics:       a.metrics,
		Authenticator: a.authenticator,
		SecureCookies: a.cfg.SecureCookies,
		StaticDir:     a.cfg.StaticDir,
		Commit:        a.cfg.Commit,
		BuildTime:     a.cfg.BuildTime,
		Ready:         a.ready,
	})
}

func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
