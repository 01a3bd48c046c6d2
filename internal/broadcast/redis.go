package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DefaultRelayChannel is the Redis channel shared by all instances.
const DefaultRelayChannel = "tasksync:events"

// Deliverer receives frames published by other instances.
type Deliverer interface {
	Deliver(frame []byte)
}

// relayEnvelope tags a frame with the instance that published it.
type relayEnvelope struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisRelay fans events out across server instances through Redis pub/sub.
type RedisRelay struct {
	client     *redis.Client
	channel    string
	instanceID string
}

// NewRedisRelay creates a relay on the given channel. An empty channel
// selects DefaultRelayChannel.
func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
	}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	slog.Info("connected to redis", "addr", opts.Addr)
	return client, nil
}

// InstanceID returns the origin tag attached to frames from this process.
func (r *RedisRelay) InstanceID() string {
	return r.instanceID
}

// Forward publishes a frame for other instances.
func (r *RedisRelay) Forward(ctx context.Context, frame []byte) error {
	payload, err := json.Marshal(relayEnvelope{Origin: r.instanceID, Frame: frame})
	if err != nil {
		return fmt.Errorf("encode relay envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Run delivers frames from other instances to local until ctx is done.
// Frames published by this instance are skipped.
func (r *RedisRelay) Run(ctx context.Context, local Deliverer) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	slog.Info("redis relay started", "channel", r.channel, "instance_id", r.instanceID)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			slog.Info("redis relay stopped", "channel", r.channel)
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis subscription to %s closed", r.channel)
			}

			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				slog.Warn("dropping malformed relay message", "channel", r.channel, "error", err)
				continue
			}
			if env.Origin == r.instanceID {
				continue
			}
			local.Deliver(env.Frame)
		}
	}
}
