package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docsign-backend/internal/shared/telemetry"
)

// DefaultChannel is the Redis pub/sub channel shared by all API instances.
const DefaultChannel = "docsign:events"

// RedisBroker publishes events locally and to Redis, and relays events
// published by other instances into the local Hub.
type RedisBroker struct {
	client  *redis.Client
	local   *Hub
	channel string
	origin  string
}

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

func NewRedisBroker(client *redis.Client, local *Hub, channel string) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroker{
		client:  client,
		local:   local,
		channel: channel,
		origin:  uuid.NewString(),
	}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	if err := b.local.Publish(ctx, ev); err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{Origin: b.origin, Event: ev})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run relays remote events until ctx is cancelled.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	telemetry.Info("events.redis.subscribed", map[string]any{"channel": b.channel})

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("redis subscription closed")
			}
			b.relay(ctx, []byte(msg.Payload))
		}
	}
}

func (b *RedisBroker) relay(ctx context.Context, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		telemetry.Warn("events.redis.decode_failed", telemetry.Err(nil, err))
		return
	}
	if env.Origin == b.origin || env.Event.DocumentID == "" {
		return
	}
	_ = b.local.Publish(ctx, env.Event)
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

var _ Publisher = (*RedisBroker)(nil)
