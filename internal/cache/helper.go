package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"timeout/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Store is a nil-safe JSON cache over Redis. A Store with no client misses
// on every read and ignores writes.
type Store struct {
	rdb redis.Cmdable
}

// NewStore wraps rdb. Passing nil yields a disabled store.
func NewStore(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

// ClientStore wraps c, or returns nil when Redis is unavailable.
func ClientStore(c *redis.Client) *Store {
	if c == nil {
		return nil
	}
	return NewStore(c)
}

// Enabled reports whether the store is backed by Redis.
func (s *Store) Enabled() bool {
	return s != nil && s.rdb != nil
}

// GetJSON loads key into dest. It returns (false, nil) on a miss.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key for ttl.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, ttl).Err()
}

// CacheAside serves dest from Redis, or calls fetch to fill it and stores
// the result. Cache read and write failures fall through to fetch.
func (s *Store) CacheAside(ctx context.Context, name, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := s.GetJSON(ctx, key, dest); err == nil && found {
		observability.CacheLookups.WithLabelValues(name, "hit").Inc()
		return nil
	}
	observability.CacheLookups.WithLabelValues(name, "miss").Inc()

	if err := fetch(); err != nil {
		return err
	}
	_ = s.SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate removes keys, ignoring errors.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}
	s.rdb.Del(ctx, keys...)
}

// InvalidateMatching deletes every key matching any of the glob patterns and
// returns how many were removed.
func (s *Store) InvalidateMatching(ctx context.Context, patterns ...string) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	removed := 0
	for _, pattern := range patterns {
		iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return removed, err
		}
		if len(batch) == 0 {
			continue
		}
		n, err := s.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}

// MembersUint returns a set of ids. The bool is false on a miss.
func (s *Store) MembersUint(ctx context.Context, key string) ([]uint, bool, error) {
	if !s.Enabled() {
		return nil, false, nil
	}
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return nil, false, err
	}
	raw, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, false, err
	}
	ids := make([]uint, 0, len(raw))
	for _, m := range raw {
		// The empty marker keeps a cached empty set distinguishable from a miss.
		if m == "" {
			continue
		}
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, true, nil
}

// StoreMembersUint replaces the set at key with ids and sets its ttl.
func (s *Store) StoreMembersUint(ctx context.Context, key string, ids []uint, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	members := make([]interface{}, 0, len(ids)+1)
	members = append(members, "")
	for _, id := range ids {
		members = append(members, strconv.FormatUint(uint64(id), 10))
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}
