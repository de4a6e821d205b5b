package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/ederziomek/real-digital-token/internal/config"
	"github.com/ederziomek/real-digital-token/internal/infra"
	"github.com/ederziomek/real-digital-token/internal/logging"
	"github.com/ederziomek/real-digital-token/internal/notification"
	"github.com/ederziomek/real-digital-token/internal/routes"
	"github.com/ederziomek/real-digital-token/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := routes.Deps{Cfg: cfg, Registry: registry, Logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			return 1
		}
		defer db.Close()
		deps.DB = db
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			return 1
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		deps.Cache = cache
	}

	if cfg.NATSURL != "" {
		nc, js, err := infra.NewNATSConnection(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("connect nats", "error", err)
			return 1
		}
		defer nc.Close()
		if err := notification.EnsureStream(ctx, js, ""); err != nil {
			logger.Error("ensure event stream", "error", err)
			return 1
		}
		deps.NATS = nc
		deps.JetStream = js
	}

	if cfg.StoreBackend == config.BackendBadger {
		db, err := infra.NewBadgerDB(cfg.BadgerPath)
		if err != nil {
			logger.Error("open badger", "error", err)
			return 1
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn("close badger", "error", err)
			}
		}()
		deps.Badger = db
	}

	srv, err := server.New(ctx, deps)
	if err != nil {
		logger.Error("build server", "error", err)
		return 1
	}

	addr := srv.Ledger().Address()
	logger.Info("reserve ready",
		"address", addr.Key,
		"bump", addr.Bump,
		"store", cfg.StoreBackend,
		"listen", cfg.Address(),
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(srv.Listen)
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}

	logger.Info("server exited cleanly")
	return 0
}
