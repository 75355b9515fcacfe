// Package cache holds the storefront's copy of commerce orders. The cached
// copy is never authoritative: the commerce API owns the order, and any
// mutation goes through it and ends with an Invalidate here.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

// OrderCache is a read-through cache keyed by order id. Get returns
// domain.ErrNotFound on a miss or an expired entry.
type OrderCache interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	Set(ctx context.Context, order *domain.Order) error
	Invalidate(ctx context.Context, orderID string) error
}

// Config selects and tunes the cache backend.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// New picks the Redis backend when an address is configured, the in-memory
// backend otherwise.
func New(cfg Config, logger *zap.Logger) (OrderCache, error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory order cache", zap.Duration("ttl", cfg.TTL))
		return NewMemory(cfg.TTL), nil
	}
	logger.Info("using redis order cache", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TTL))
	return NewRedis(cfg)
}
