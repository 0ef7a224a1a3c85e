package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/MindFlowInteractive/quest-api-sub002/engine"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/cache"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/config"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/database"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/difficulty"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/game"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/httpapi"
	"github.com/MindFlowInteractive/quest-api-sub002/internal/stats"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}
	configureLogger(log, cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		log.WithError(err).Fatal("open completion store")
	}
	defer store.Close()

	statsCache := openCache(ctx, cfg.Cache, log)
	statsSvc := stats.NewService(store, statsCache, log)
	adjuster := difficulty.NewAdjuster(store, log)

	manager := game.NewManager(engine.DefaultRegistry(), adjuster, statsSvc, store, log, game.Options{
		HistoryCapacity: cfg.Sessions.HistoryCapacity,
		TargetSolveTime: cfg.Sessions.TargetSolveTime,
	})

	handler := httpapi.NewHandler(manager, statsSvc, log)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("quest server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("quest server stopped")
}

func configureLogger(log *logrus.Logger, cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	log.SetOutput(os.Stdout)
}

func openStore(ctx context.Context, cfg config.StorageConfig, log *logrus.Logger) (database.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return database.NewPostgresStore(ctx, cfg.PostgresDSN, log)
	default:
		return database.NewSQLiteStore(cfg.SQLitePath, log)
	}
}

// openCache prefers Redis when configured and degrades to the in-process
// cache when the connection fails.
func openCache(ctx context.Context, cfg config.CacheConfig, log *logrus.Logger) cache.StatsCache {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache()
	}
	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, using in-memory statistics cache")
		return cache.NewMemoryCache()
	}
	return redisCache
}
