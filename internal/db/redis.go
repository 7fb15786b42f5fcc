package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisDB struct {
	Client *redis.Client
	log    *zap.Logger
}

func NewRedisDB(ctx context.Context, redisURL string, log *zap.Logger) (*RedisDB, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log = log.Named("redis")
	log.Info("Connected to Redis", zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	return &RedisDB{Client: client, log: log}, nil
}

func (r *RedisDB) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *RedisDB) Close() {
	if r.Client != nil {
		if err := r.Client.Close(); err != nil {
			r.log.Warn("Redis close failed", zap.Error(err))
			return
		}
		r.log.Info("Redis connection closed")
	}
}
