// Package idemcache stores replayable operation outcomes in Redis so a
// retried request with the same idempotency key gets the original
// response instead of a second execution.
package idemcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"health-entitlement-engine/internal/pkg/config"
	"health-entitlement-engine/internal/usecase/shared"

	"github.com/go-redis/redis/v8"
)

const outcomeTTL = 24 * time.Hour

// Client covers the subset of redis operations the cache needs.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type redisClient struct {
	cli *redis.Client
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (Client, func(), error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err.Error())
		}
	}
	return &redisClient{cli: c}, cleanup, nil
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *redisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

// OutcomeCache implements shared.OutcomeCache. It fails open: cache
// errors degrade to a miss so redis downtime never blocks redemption.
type OutcomeCache struct {
	client Client
}

var _ shared.OutcomeCache = (*OutcomeCache)(nil)

func NewOutcomeCache(client Client) *OutcomeCache {
	return &OutcomeCache{client: client}
}

func cacheKey(operation, actorType, actorID, key string) string {
	return fmt.Sprintf("idem:%s:%s:%s:%s", operation, actorType, actorID, key)
}

func (c *OutcomeCache) Get(ctx context.Context, operation, actorType, actorID, key string) (*shared.CachedOutcome, error) {
	raw, err := c.client.Get(ctx, cacheKey(operation, actorType, actorID, key))
	if err != nil {
		if err != redis.Nil {
			slog.Warn("idempotency cache read failed", "operation", operation, "error", err.Error())
		}
		return nil, nil
	}

	var outcome shared.CachedOutcome
	if err := json.Unmarshal([]byte(raw), &outcome); err != nil {
		slog.Warn("idempotency cache entry corrupt", "operation", operation, "error", err.Error())
		return nil, nil
	}
	return &outcome, nil
}

func (c *OutcomeCache) Set(ctx context.Context, operation, actorType, actorID, key string, outcome shared.CachedOutcome) error {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, cacheKey(operation, actorType, actorID, key), string(raw), outcomeTTL); err != nil {
		slog.Warn("idempotency cache write failed", "operation", operation, "error", err.Error())
	}
	return nil
}
