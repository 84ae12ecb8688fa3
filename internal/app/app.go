package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/config"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/store"
	"github.com/vovakirdan/wiredraw-server/internal/store/redis"
	"github.com/vovakirdan/wiredraw-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wiredraw-server/internal/transport/http"
)

const storeInitTimeout = 5 * time.Second

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store initialized")

	return newWithStore(cfg, st, logger), nil
}

func newWithStore(cfg config.Config, st store.Store, logger *zerolog.Logger) *App {
	hub := core.NewHub(st, core.Options{
		Logger:        logger,
		RoomIdleTTL:   cfg.RoomIdleTTL,
		MaxChatLength: cfg.MaxChatLength,
	})

	return &App{
		server:          transporthttp.NewServer(hub, st, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreDriverSQLite:
		return sqlite.New(cfg.SQLitePath)
	case config.StoreDriverRedis:
		ctx, cancel := context.WithTimeout(context.Background(), storeInitTimeout)
		defer cancel()
		return redis.New(ctx, redis.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
// On return every room has flushed its pending writes and the store is closed.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else {
			runErr = <-serverErr
		}
	}

	stopHub()
	select {
	case <-a.hub.Done():
	case <-time.After(a.shutdownTimeout):
		a.log.Warn().Msg("timed out waiting for rooms to flush writes")
	}

	a.cleanup()
	return runErr
}

// cleanup closes the store.
func (a *App) cleanup() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
		return
	}
	a.log.Info().Msg("store closed")
}
