package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-sync/internal/adapters/postgres"
	"inventory-sync/internal/adapters/rabbitmq"
	redisAdapter "inventory-sync/internal/adapters/redis"
	webAdapter "inventory-sync/internal/adapters/web"
	"inventory-sync/internal/app"
	"inventory-sync/internal/config"
	"inventory-sync/internal/core"
	"inventory-sync/internal/db"
	"inventory-sync/internal/metrics"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, int32(cfg.SyncWorkers))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	deps := core.SyncDeps{
		DB:        pool,
		Sales:     postgres.NewSaleRepository(),
		Directory: postgres.NewDirectory(pool),
	}
	checks := map[string]app.Pinger{"postgres": pool}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache := redisAdapter.NewSeenCache(rdb, cfg.RedisSeenTTL)
		if err := cache.Ping(ctx); err != nil {
			// The cache only short-circuits duplicates; Postgres stays authoritative.
			log.Printf("[redis] WARN: %s unreachable at startup: %v", cfg.RedisAddr, err)
		}
		deps.Seen = cache
		checks["redis"] = cache
	}

	if cfg.AMQPURL != "" {
		conn, ch, err := rabbitmq.SetupConn(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		defer conn.Close()
		defer ch.Close()
		deps.Events = rabbitmq.NewPublisher(ch, cfg.AMQPExchange)
	}

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		m := metrics.New()
		deps.Metrics = m
		metricsHandler = m.Handler()
	}

	engine := core.NewSyncService(deps, core.SyncConfig{
		Workers:       cfg.SyncWorkers,
		MaxAttempts:   cfg.SyncMaxAttempts,
		NegativeStock: cfg.NegativeStock,
	})
	svc := app.NewAppService(engine, cfg.SyncMaxBatch, checks)

	handler := webAdapter.NewHandler(svc, cfg.AllowedOrigins, cfg.RequestBodyLimit, metricsHandler)
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("server starting on :%s (workers=%d, negative stock=%s)", cfg.ServerPort, cfg.SyncWorkers, cfg.NegativeStock)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	// In-flight batches finish their current unit of work before the pool closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] WARN: shutdown: %v", err)
	}
	log.Println("HTTP server stopped")

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Printf("[redis] WARN: close: %v", err)
		}
	}
	log.Println("connections closed")
}
