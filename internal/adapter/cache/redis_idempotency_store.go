package cache

import (
	"context"
	"errors"
	"time"

	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore guards command replays per subject. TryLock claims a
// key; Remember/Recall keep the status the first attempt produced.
type RedisIdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *RedisIdempotencyStore) TryLock(ctx context.Context, scope, k string) (bool, error) {
	return s.rdb.SetNX(ctx, key("idem", "lock", scope, k), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
}

func (s *RedisIdempotencyStore) Remember(ctx context.Context, scope, k, value string) error {
	return s.rdb.Set(ctx, key("idem", "result", scope, k), value, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Recall(ctx context.Context, scope, k string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key("idem", "result", scope, k)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

var _ usecase.IdempotencyStore = (*RedisIdempotencyStore)(nil)
