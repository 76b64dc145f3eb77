package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/repository/mongodb"
	"storefront/internal/server"

	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	// in-flight requests get 30 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

func connectStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (server.Stores, error) {
	var stores server.Stores

	db, err := database.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		return stores, err
	}
	stores.DB = db
	log.Info("Database health check", zap.Any("health", database.Health(ctx, db)))

	if err := database.RunMigrations(db, log); err != nil {
		return stores, fmt.Errorf("failed to run migrations: %w", err)
	}

	client, documentDB, err := database.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		return stores, err
	}
	stores.Mongo, stores.Document = client, documentDB

	if err := mongodb.EnsureIndexes(ctx, documentDB); err != nil {
		return stores, fmt.Errorf("failed to create document indexes: %w", err)
	}

	if cfg.Redis.Enabled {
		redisClient, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return stores, err
		}
		stores.Redis = redisClient
	} else {
		log.Warn("Redis disabled: divergences are only logged and rate limiting is off")
	}

	return stores, nil
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting storefront API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	stores, err := connectStores(context.Background(), cfg, log)
	if err != nil {
		stores.Close(log)
		log.Fatal("Failed to connect stores", zap.Error(err))
	}

	srv := server.NewServer(cfg, log, stores)

	done := make(chan bool, 1)
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
