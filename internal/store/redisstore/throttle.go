package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"service-dispatch/internal/domain"
)

// Throttle holds the per-courier broadcast throttles of the location tracker.
type Throttle struct {
	client *redis.Client
}

// NewThrottle creates a new Throttle.
func NewThrottle(client *redis.Client) *Throttle { return &Throttle{client: client} }

// Allow returns true at most once per every for the given key.
func (t *Throttle) Allow(ctx context.Context, key string, every time.Duration) (bool, error) {
	ok, err := t.client.SetNX(ctx, key, time.Now().Unix(), every).Result()
	if err != nil {
		return false, fmt.Errorf("throttle %s: %w", key, err)
	}
	return ok, nil
}

// Forget drops a throttle key so the next Allow passes.
func (t *Throttle) Forget(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("forget %s: %w", key, err)
	}
	return nil
}

// LastDurationPoint returns where the last duration broadcast was computed, or nil.
func (t *Throttle) LastDurationPoint(ctx context.Context, courierID int64) (*domain.Point, error) {
	raw, err := t.client.Get(ctx, DurationPosKey(courierID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get duration point of courier %d: %w", courierID, err)
	}
	var p domain.Point
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode duration point of courier %d: %w", courierID, err)
	}
	return &p, nil
}

// SetDurationPoint stores the point of the last duration broadcast.
func (t *Throttle) SetDurationPoint(ctx context.Context, courierID int64, p domain.Point, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal duration point: %w", err)
	}
	if err := t.client.Set(ctx, DurationPosKey(courierID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set duration point of courier %d: %w", courierID, err)
	}
	return nil
}
