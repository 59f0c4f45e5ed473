package alerting

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel alerts are published on.
const DefaultChannel = "profitpulse:flags"

// RedisPublisher publishes each alert as JSON on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, alerts []Alert) error {
	for _, a := range alerts {
		data, err := a.encode()
		if err != nil {
			return fmt.Errorf("alerting: encode alert: %w", err)
		}
		if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
			return fmt.Errorf("alerting: redis publish to %s: %w", p.channel, err)
		}
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *RedisPublisher) Close() error { return nil }
