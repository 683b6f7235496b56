package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"service-dispatch/internal/domain"
)

const scanBatch = 200

// LiveIndex keeps the ephemeral courier positions: one JSON key per courier
// with a TTL plus a geo set used for radius search.
type LiveIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLiveIndex creates a new LiveIndex.
func NewLiveIndex(client *redis.Client, ttl time.Duration) *LiveIndex {
	return &LiveIndex{client: client, ttl: ttl}
}

// Put stores the location and refreshes its TTL.
func (l *LiveIndex) Put(ctx context.Context, loc domain.LiveLocation) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	_, err = l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, locationKey(loc.CourierID), data, l.ttl)
		p.GeoAdd(ctx, geoSetKey, &redis.GeoLocation{
			Name:      strconv.FormatInt(loc.CourierID, 10),
			Longitude: loc.Lon,
			Latitude:  loc.Lat,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("put location of courier %d: %w", loc.CourierID, err)
	}
	return nil
}

// Get returns the live location of the courier, or nil when it expired.
func (l *LiveIndex) Get(ctx context.Context, courierID int64) (*domain.LiveLocation, error) {
	raw, err := l.client.Get(ctx, locationKey(courierID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get location of courier %d: %w", courierID, err)
	}
	loc, err := decodeLocation(locationKey(courierID), raw)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// Nearby returns live locations inside the radius. Members whose key expired are skipped.
func (l *LiveIndex) Nearby(ctx context.Context, center domain.Point, radiusKm float64) ([]domain.LiveLocation, error) {
	members, err := l.client.GeoSearch(ctx, geoSetKey, &redis.GeoSearchQuery{
		Longitude:  center.Lon,
		Latitude:   center.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		keys = append(keys, locationPrefix+m)
	}
	return l.load(ctx, keys)
}

// All returns every live location. Entries that fail to decode are counted, not returned.
func (l *LiveIndex) All(ctx context.Context) ([]domain.LiveLocation, int, error) {
	var (
		out       []domain.LiveLocation
		malformed int
		cursor    uint64
	)
	for {
		keys, next, err := l.client.Scan(ctx, cursor, locationPrefix+"*", scanBatch).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("scan locations: %w", err)
		}
		if len(keys) > 0 {
			vals, err := l.client.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, 0, fmt.Errorf("load locations: %w", err)
			}
			for i, v := range vals {
				s, ok := v.(string)
				if !ok {
					continue
				}
				loc, err := decodeLocation(keys[i], []byte(s))
				if err != nil {
					malformed++
					continue
				}
				out = append(out, loc)
			}
		}
		if next == 0 {
			return out, malformed, nil
		}
		cursor = next
	}
}

// Prune drops geo set members whose location key has expired.
func (l *LiveIndex) Prune(ctx context.Context) (int, error) {
	members, err := l.client.ZRange(ctx, geoSetKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("list geo members: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.IntCmd, len(members))
	_, err = l.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = p.Exists(ctx, locationPrefix+m)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("check live keys: %w", err)
	}

	var stale []any
	for i, c := range cmds {
		if c.Val() == 0 {
			stale = append(stale, members[i])
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	n, err := l.client.ZRem(ctx, geoSetKey, stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("prune geo members: %w", err)
	}
	return int(n), nil
}

func (l *LiveIndex) load(ctx context.Context, keys []string) ([]domain.LiveLocation, error) {
	vals, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	out := make([]domain.LiveLocation, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		loc, err := decodeLocation(keys[i], []byte(s))
		if err != nil {
			continue
		}
		out = append(out, loc)
	}
	return out, nil
}

// decodeLocation accepts records written without courier_id, taking the id from the key.
func decodeLocation(key string, raw []byte) (domain.LiveLocation, error) {
	var loc domain.LiveLocation
	if err := json.Unmarshal(raw, &loc); err != nil {
		return domain.LiveLocation{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if loc.CourierID == 0 {
		id, ok := courierIDFromLocationKey(key)
		if !ok {
			return domain.LiveLocation{}, fmt.Errorf("decode %s: no courier id", key)
		}
		loc.CourierID = id
	}
	return loc, nil
}
