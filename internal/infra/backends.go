package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// Backends holds the optional storage clients. A nil field means the backend
// is not configured and callers fall back to in-process behaviour.
type Backends struct {
	DB    *pgxpool.Pool
	Cache *redis.Client
}

// Open connects to every configured backend. Empty URLs are skipped.
func Open(ctx context.Context, databaseURL, redisURL string, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}
	if databaseURL != "" {
		db, err := NewPostgresPool(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		b.DB = db
	} else {
		logger.Warn("postgres not configured; app registry is in-memory")
	}
	if redisURL != "" {
		cache, err := NewRedisClient(ctx, redisURL)
		if err != nil {
			b.Close(logger)
			return nil, err
		}
		b.Cache = cache
	} else {
		logger.Warn("redis not configured; verification cache, rate limiting and event publishing disabled")
	}
	return b, nil
}

// Close releases every open backend.
func (b *Backends) Close(logger *slog.Logger) {
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}
}

// NewPostgresPool parses url, connects and pings within connectTimeout.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewRedisClient parses url and verifies connectivity within connectTimeout.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
