package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimStore keeps dispatch claims and rejection markers in Redis.
// Claims are written with SETNX, so the first writer wins.
type ClaimStore struct {
	client       *redis.Client
	claimTTL     time.Duration
	rejectionTTL time.Duration
}

// NewClaimStore creates a new ClaimStore. The TTLs only bound leaked keys.
func NewClaimStore(client *redis.Client) *ClaimStore {
	return &ClaimStore{
		client:       client,
		claimTTL:     24 * time.Hour,
		rejectionTTL: time.Hour,
	}
}

// TryClaim records courierID as the holder if the order is unclaimed.
func (s *ClaimStore) TryClaim(ctx context.Context, orderID, courierID int64) (bool, error) {
	ok, err := s.client.SetNX(ctx, claimKey(orderID), courierID, s.claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim order %d: %w", orderID, err)
	}
	if ok {
		s.signal(ctx, orderID)
	}
	return ok, nil
}

// Release deletes the claim.
func (s *ClaimStore) Release(ctx context.Context, orderID int64) error {
	if err := s.client.Del(ctx, claimKey(orderID)).Err(); err != nil {
		return fmt.Errorf("release order %d: %w", orderID, err)
	}
	return nil
}

// Exists reports whether the order is claimed.
func (s *ClaimStore) Exists(ctx context.Context, orderID int64) (bool, error) {
	n, err := s.client.Exists(ctx, claimKey(orderID)).Result()
	if err != nil {
		return false, fmt.Errorf("check claim of order %d: %w", orderID, err)
	}
	return n > 0, nil
}

// Holder returns the claiming courier or 0.
func (s *ClaimStore) Holder(ctx context.Context, orderID int64) (int64, error) {
	raw, err := s.client.Get(ctx, claimKey(orderID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get claim of order %d: %w", orderID, err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("claim of order %d holds %q: %w", orderID, raw, err)
	}
	return id, nil
}

// Reject records that the courier declined the order.
func (s *ClaimStore) Reject(ctx context.Context, orderID, courierID int64) error {
	if err := s.client.Set(ctx, rejectionKey(orderID, courierID), 1, s.rejectionTTL).Err(); err != nil {
		return fmt.Errorf("reject order %d by courier %d: %w", orderID, courierID, err)
	}
	s.signal(ctx, orderID)
	return nil
}

// Rejected reports whether the courier declined the order.
func (s *ClaimStore) Rejected(ctx context.Context, orderID, courierID int64) (bool, error) {
	n, err := s.client.Exists(ctx, rejectionKey(orderID, courierID)).Result()
	if err != nil {
		return false, fmt.Errorf("check rejection of order %d: %w", orderID, err)
	}
	return n > 0, nil
}

// ClearRejections deletes all rejection markers of the order.
func (s *ClaimStore) ClearRejections(ctx context.Context, orderID int64) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, rejectionPattern(orderID), scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan rejections of order %d: %w", orderID, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("clear rejections of order %d: %w", orderID, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// signal is best effort: waiters re-check on their own tick.
func (s *ClaimStore) signal(ctx context.Context, orderID int64) {
	_ = s.client.Publish(ctx, signalChannel(orderID), "1").Err()
}
