package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultChannel is the pub/sub topic used when an event names no
// channels.
const DefaultChannel = "workflow-events"

// RedisConfig configures the Redis notification channel.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisNotifier publishes JSON-encoded events over Redis pub/sub, one
// publish per configured channel.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier connects to Redis and verifies the connection.
func NewRedisNotifier(config RedisConfig) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisNotifier{client: client}, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	channels := event.Channels
	if len(channels) == 0 {
		channels = []string{DefaultChannel}
	}

	for _, channel := range channels {
		topic := DefaultChannel + ":" + channel
		if channel == DefaultChannel {
			topic = DefaultChannel
		}
		if err := n.client.Publish(ctx, topic, payload).Err(); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", topic, err)
		}
	}
	return nil
}

// Close releases the Redis connection
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
