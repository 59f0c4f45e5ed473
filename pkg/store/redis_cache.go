package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
)

// RedisTemplateCache is a read-through TemplateStore cache. Redis failures
// degrade to the backing store; they never fail a read.
type RedisTemplateCache struct {
	client *redis.Client
	next   TemplateStore
	ttl    time.Duration
	logger *slog.Logger
}

var _ TemplateStore = (*RedisTemplateCache)(nil)

// NewRedisTemplateCache wraps next. A ttl of zero caches for ten minutes.
func NewRedisTemplateCache(client *redis.Client, next TemplateStore, ttl time.Duration, logger *slog.Logger) *RedisTemplateCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisTemplateCache{
		client: client,
		next:   next,
		ttl:    ttl,
		logger: logger.With("component", "store.redis_cache"),
	}
}

func templateKey(merchantID string) string {
	return fmt.Sprintf("profitpulse:templates:%s", merchantID)
}

func (c *RedisTemplateCache) ListTemplates(ctx context.Context, merchantID string) ([]finance.CostTemplate, error) {
	if merchantID == "" {
		return nil, ErrMissingMerchant
	}
	key := templateKey(merchantID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var templates []finance.CostTemplate
		if jerr := json.Unmarshal(raw, &templates); jerr == nil {
			return templates, nil
		}
		c.logger.Warn("discarding undecodable cached templates", "merchant_id", merchantID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("template cache read failed", "merchant_id", merchantID, "error", err)
	}

	templates, err := c.next.ListTemplates(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if enc, err := json.Marshal(templates); err == nil {
		if err := c.client.Set(ctx, key, enc, c.ttl).Err(); err != nil {
			c.logger.Warn("template cache write failed", "merchant_id", merchantID, "error", err)
		}
	}
	return templates, nil
}

func (c *RedisTemplateCache) PutTemplates(ctx context.Context, merchantID string, templates []finance.CostTemplate) error {
	if err := c.next.PutTemplates(ctx, merchantID, templates); err != nil {
		return err
	}
	if err := c.client.Del(ctx, templateKey(merchantID)).Err(); err != nil {
		c.logger.Warn("template cache invalidation failed", "merchant_id", merchantID, "error", err)
	}
	return nil
}
