package main

import (
	"context"
	"log"
	"os"

	"inventory-sync/internal/adapters/cli"
	"inventory-sync/internal/adapters/postgres"
	"inventory-sync/internal/app"
	"inventory-sync/internal/config"
	"inventory-sync/internal/core"
	"inventory-sync/internal/db"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal(cli.ErrUsage)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 0)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	engine := core.NewSyncService(core.SyncDeps{
		DB:        pool,
		Sales:     postgres.NewSaleRepository(),
		Directory: postgres.NewDirectory(pool),
	}, core.SyncConfig{
		Workers:       cfg.SyncWorkers,
		MaxAttempts:   cfg.SyncMaxAttempts,
		NegativeStock: cfg.NegativeStock,
	})
	svc := app.NewAppService(engine, cfg.SyncMaxBatch, map[string]app.Pinger{"postgres": pool})

	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		pool.Close()
		log.Fatalf("Error: %v", err)
	}
}
