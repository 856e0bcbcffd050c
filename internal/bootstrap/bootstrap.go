package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"medboard-server-go/internal/domain/eventbus"
	"medboard-server-go/internal/domain/security"
	securitystore "medboard-server-go/internal/domain/security/store"
	"medboard-server-go/internal/domain/session"
	sessionstore "medboard-server-go/internal/domain/session/store"
	platformconfig "medboard-server-go/internal/platform/config"
	platformerrors "medboard-server-go/internal/platform/errors"
	platformlogging "medboard-server-go/internal/platform/logging"
	platformstorage "medboard-server-go/internal/platform/storage"
	httptransport "medboard-server-go/internal/transport/http"
)

// Run starts the whole service lifecycle: config, logging, stores,
// domain services, admin API, and graceful shutdown.
func Run(ctx context.Context) error {
	cfg, err := platformconfig.NewLoader().Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "config", "load config", err)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging", "init logger", err)
	}
	defer logger.Close()

	var db *gorm.DB
	if cfg.Store.Driver == sessionstore.DriverSQLite {
		db, err = platformstorage.OpenSQLite(cfg.Store.SQLite.DSN)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindBootstrap, "storage", "open sqlite", err)
		}
	}

	bus := eventbus.New(4)
	defer bus.Close()

	sessStore, err := sessionstore.New(sessionStoreConfig(cfg), sessionstore.Dependencies{SQLiteDB: db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "storage", "open session store", err)
	}
	lockStore, err := securitystore.New(lockoutStoreConfig(cfg), securitystore.Dependencies{SQLiteDB: db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "storage", "open lockout store", err)
	}

	sessions, err := session.NewManager(session.Options{
		Store:           sessStore,
		Logger:          logger,
		Bus:             bus,
		TimeoutMinutes:  cfg.Session.TimeoutMinutes,
		MaxConcurrent:   cfg.Session.MaxConcurrent,
		CleanupInterval: cfg.Session.CleanupInterval,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "session", "init manager", err)
	}
	defer sessions.Close()

	lockouts, err := security.NewLockoutTracker(security.LockoutOptions{
		Store:       lockStore,
		Logger:      logger,
		Bus:         bus,
		MaxAttempts: cfg.Lockout.MaxAttempts,
		Backoff:     security.SteppedBackoff(cfg.Lockout.BaseDuration, cfg.Lockout.MaxDuration),
		CleanupAge:  cfg.Lockout.CleanupAge,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "lockout", "init tracker", err)
	}
	defer lockouts.Close()

	puzzles := security.NewPuzzleEngine(security.PuzzleOptions{
		Logger:      logger,
		GridSize:    cfg.Puzzle.GridSize,
		IssueWindow: cfg.Puzzle.IssueWindow,
	})

	// audit trail for forced logouts and expiry sweeps
	if err := bus.Subscribe(eventbus.EventSessionDestroyed, func(data eventbus.SessionDestroyedData) {
		logger.Info("session destroyed: %s user=%s reason=%s",
			data.SessionID, data.UserEmail, data.Reason)
	}); err != nil {
		logger.Warn("failed to subscribe destroyed-session audit log: %v", err)
	}

	router := httptransport.Build(httptransport.Options{
		Logger:      logger,
		LogLevel:    cfg.Log.Level,
		JWTSecret:   []byte(cfg.Server.JWTSecret),
		CORSOrigins: cfg.Server.CORSOrigins,
		Sessions:    sessions,
		Lockouts:    lockouts,
		Puzzles:     puzzles,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		logger.Info("admin API listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "serve", "admin API failed", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func sessionStoreConfig(cfg *platformconfig.Config) sessionstore.Config {
	return sessionstore.Config{
		Driver: cfg.Store.Driver,
		Redis: &sessionstore.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Username: cfg.Store.Redis.Username,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
		},
		SQLite: &sessionstore.SQLiteConfig{DSN: cfg.Store.SQLite.DSN},
		Memory: &sessionstore.MemoryConfig{},
	}
}

func lockoutStoreConfig(cfg *platformconfig.Config) securitystore.Config {
	prefix := ""
	if cfg.Store.Redis.Prefix != "" {
		prefix = cfg.Store.Redis.Prefix + "lockout:"
	}
	return securitystore.Config{
		Driver: cfg.Store.Driver,
		Redis: &securitystore.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Username: cfg.Store.Redis.Username,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   prefix,
		},
		SQLite: &securitystore.SQLiteConfig{DSN: cfg.Store.SQLite.DSN},
	}
}
