package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores snapshots as plain keys and broadcasts over Pub/Sub.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBackend creates a Redis-backed cart backend. A zero ttl keeps
// snapshots indefinitely.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{
		client: client,
		ttl:    ttl,
	}
}

func (b *RedisBackend) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := b.client.Get(ctx, snapshotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (b *RedisBackend) Save(ctx context.Context, sessionID string, data []byte) error {
	if err := b.client.Set(ctx, snapshotKey(sessionID), data, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (b *RedisBackend) Publish(ctx context.Context, sessionID string, data []byte) error {
	if err := b.client.Publish(ctx, eventsChannel(sessionID), data).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (b *RedisBackend) Subscribe(ctx context.Context, sessionID string) (<-chan []byte, error) {
	pubsub := b.client.Subscribe(ctx, eventsChannel(sessionID))

	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
