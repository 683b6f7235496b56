package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes messages on the Redis channel named after the topic.
// The realtime layer of this service subscribes to the same channels.
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink creates a new RedisSink.
func NewRedisSink(client *redis.Client) *RedisSink { return &RedisSink{client: client} }

// Send implements Sink.
func (s *RedisSink) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.client.Publish(ctx, msg.Topic, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", msg.Topic, err)
	}
	return nil
}

// RedisFeed subscribes to user topics published by RedisSink.
type RedisFeed struct {
	client *redis.Client
}

// NewRedisFeed creates a new RedisFeed.
func NewRedisFeed(client *redis.Client) *RedisFeed { return &RedisFeed{client: client} }

// Subscribe streams raw messages of the topic until ctx is done or close is called.
func (f *RedisFeed) Subscribe(ctx context.Context, topic string) (<-chan []byte, func() error, error) {
	ps := f.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for m := range ps.Channel() {
			select {
			case out <- []byte(m.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, ps.Close, nil
}
