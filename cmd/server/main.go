package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/turbochat/relay/internal/api"
	"github.com/turbochat/relay/internal/bus"
	"github.com/turbochat/relay/internal/config"
	"github.com/turbochat/relay/internal/relay"
	"github.com/turbochat/relay/internal/store"
	"github.com/turbochat/relay/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.S().Fatalw("config_load_failed", "err", err)
	}
	logger.SetLevel(cfg.LogLevel)
	defer logger.Sync()
	log := logger.S()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalw("store_open_failed", "driver", cfg.StoreDriver, "err", err)
	}
	defer st.Close()
	log.Infow("store_ready", "driver", cfg.StoreDriver)

	b, err := openBus(ctx, cfg)
	if err != nil {
		log.Fatalw("bus_open_failed", "driver", cfg.BusDriver, "err", err)
	}
	defer b.Close()
	log.Infow("bus_ready", "driver", cfg.BusDriver)

	hub := relay.NewHub()
	bridge := relay.NewBridge(b, hub, cfg.BridgeBackoff)
	go bridge.Run(ctx)

	opts := relay.Options{
		Buffer:       cfg.SessionBuffer,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(ctx, st, b, hub, opts),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infow("relay_listening", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalw("server_exit", "err", err)
	}
	log.Infow("relay_stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return store.NewSQLite(ctx, cfg.SQLitePath)
	}
}

func openBus(ctx context.Context, cfg *config.Config) (bus.Bus, error) {
	switch cfg.BusDriver {
	case "memory":
		return bus.NewMemory(), nil
	default:
		return bus.NewRedis(ctx, cfg.RedisURL)
	}
}
