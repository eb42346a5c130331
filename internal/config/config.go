// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"inventory-sync/internal/core"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL      string
	ServerPort       string
	AllowedOrigins   string
	RequestBodyLimit int64

	SyncWorkers     int
	SyncMaxAttempts int
	SyncMaxBatch    int
	NegativeStock   core.NegativeStockPolicy

	RedisAddr    string
	RedisSeenTTL time.Duration

	AMQPURL      string
	AMQPExchange string

	MetricsEnabled bool
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment alone.
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "pos_sync"),
	}

	cfg.SyncWorkers = getInt("SYNC_WORKERS", 1, &errs)
	cfg.SyncMaxAttempts = getInt("SYNC_MAX_ATTEMPTS", 3, &errs)
	cfg.SyncMaxBatch = getInt("SYNC_MAX_BATCH", 500, &errs)
	cfg.RequestBodyLimit = int64(getInt("REQUEST_BODY_LIMIT", 4<<20, &errs))
	cfg.MetricsEnabled = getBool("METRICS_ENABLED", true, &errs)

	policy, err := core.ParseNegativeStockPolicy(getEnv("NEGATIVE_STOCK_POLICY", string(core.NegativeStockAllow)))
	if err != nil {
		errs = append(errs, fmt.Errorf("NEGATIVE_STOCK_POLICY: %w", err))
	}
	cfg.NegativeStock = policy

	ttl, err := time.ParseDuration(getEnv("REDIS_SEEN_TTL", "24h"))
	if err != nil {
		errs = append(errs, fmt.Errorf("REDIS_SEEN_TTL: %w", err))
	}
	cfg.RedisSeenTTL = ttl

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	if cfg.SyncWorkers < 1 {
		errs = append(errs, fmt.Errorf("SYNC_WORKERS must be >= 1, got %d", cfg.SyncWorkers))
	}
	if cfg.SyncMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("SYNC_MAX_ATTEMPTS must be >= 1, got %d", cfg.SyncMaxAttempts))
	}
	if cfg.SyncMaxBatch < 1 {
		errs = append(errs, fmt.Errorf("SYNC_MAX_BATCH must be >= 1, got %d", cfg.SyncMaxBatch))
	}
	if cfg.RequestBodyLimit < 1 {
		errs = append(errs, fmt.Errorf("REQUEST_BODY_LIMIT must be >= 1, got %d", cfg.RequestBodyLimit))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if cfg.RedisAddr == "" {
		log.Println("[config] REDIS_ADDR not set, seen-cache disabled")
	}
	if cfg.AMQPURL == "" {
		log.Println("[config] AMQP_URL not set, sale-synced events disabled")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func getBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}
