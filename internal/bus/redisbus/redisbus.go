// Package redisbus carries bus messages between sibling processes over Redis PUBLISH/SUBSCRIBE.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/draftkeeper/internal/bus"
)

// DefaultChannel is used when no channel name is configured
const DefaultChannel = "draftkeeper:leader"

// Bus implements bus.Bus on a Redis pub/sub channel
type Bus struct {
	client  *redis.Client
	logger  *slog.Logger
	channel string
	owned   bool
}

// New connects to redisURL and verifies the connection
func New(redisURL, channel string, logger *slog.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	b := NewWithClient(client, channel, logger)
	b.owned = true
	return b, nil
}

// NewWithClient creates a bus from an existing Redis client; Close leaves the client open
func NewWithClient(client *redis.Client, channel string, logger *slog.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Publish sends msg to every subscriber of the channel
func (b *Bus) Publish(ctx context.Context, msg bus.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal bus message: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish bus message: %w", err)
	}

	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so no message
// published after Subscribe returns is missed.
func (b *Bus) Subscribe(ctx context.Context, handler bus.Handler) (bus.Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)

	// Ждем подтверждения подписки
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}

	sub := &subscription{
		pubsub: pubsub,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		for m := range pubsub.Channel() {
			var msg bus.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warn("malformed bus message ignored",
					"channel", b.channel,
					"error", err)
				continue
			}
			handler(msg)
		}
	}()

	return sub, nil
}

// Ping checks if Redis is reachable
func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection if the bus created it
func (b *Bus) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}

type subscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
}

// Close unsubscribes and waits for the delivery goroutine to exit
func (s *subscription) Close() error {
	err := s.pubsub.Close()
	<-s.done
	return err
}
