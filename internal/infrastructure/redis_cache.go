package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kpidash/internal/domain"
	"kpidash/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "kpidash:view:"

// RedisCache shares computed views between instances. It implements
// domain.ViewCache.
type RedisCache struct {
	client *redis.Client
	logger *logger.Logger
}

// NewRedisCache connects and pings the server before returning.
func NewRedisCache(ctx context.Context, addr, password string, db int, logger *logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithField("addr", addr).Info("Connected to Redis view cache")

	return &RedisCache{client: client, logger: logger}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("Redis get failed")
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, ttl).Err(); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("key", key).Warn("Redis set failed")
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
