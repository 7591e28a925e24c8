package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"lecturenote/internal/config"
)

// RedisPublisher mirrors events to Redis pub/sub plus a per-task snapshot key.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	ttl     time.Duration
}

// NewRedisPublisher connects using the events configuration and verifies the
// server answers PING.
func NewRedisPublisher(ctx context.Context, cfg config.Events) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = "lecturenote"
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		ttl:     time.Duration(cfg.SnapshotTTL) * time.Second,
	}, nil
}

// SnapshotKey is where the latest event of a task is stored.
func SnapshotKey(channel, taskID string) string {
	return channel + ":task:" + taskID
}

// Publish sends evt on the channel and refreshes the task snapshot in one
// round trip.
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.channel, payload)
		pipe.Set(ctx, SnapshotKey(p.channel, evt.TaskID), payload, p.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish event for %s: %w", evt.TaskID, err)
	}
	return nil
}

// Close releases the connection pool.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
