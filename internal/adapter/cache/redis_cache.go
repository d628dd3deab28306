package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "stitch"

func key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// RedisOrderCache caches scoped order lists. Invalidate bumps a generation
// counter instead of scanning keys; stale generations expire by TTL.
type RedisOrderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisOrderCache(rdb *redis.Client, ttl time.Duration) *RedisOrderCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisOrderCache{rdb: rdb, ttl: ttl}
}

func (c *RedisOrderCache) generation(ctx context.Context) (string, error) {
	gen, err := c.rdb.Get(ctx, key("orders", "gen")).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func (c *RedisOrderCache) GetOrders(ctx context.Context, subject string) ([]entity.Order, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.rdb.Get(ctx, key("orders", "v"+gen, subject)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var orders []entity.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, false, err
	}
	return orders, true, nil
}

func (c *RedisOrderCache) SetOrders(ctx context.Context, subject string, orders []entity.Order) error {
	gen, err := c.generation(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key("orders", "v"+gen, subject), raw, c.ttl).Err()
}

func (c *RedisOrderCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, key("orders", "gen")).Err()
}

var _ usecase.OrderCache = (*RedisOrderCache)(nil)

// RedisRoleCache remembers each subject's resolved role.
type RedisRoleCache struct {
	rdb *redis.Client
}

func NewRedisRoleCache(rdb *redis.Client) *RedisRoleCache {
	return &RedisRoleCache{rdb: rdb}
}

func (c *RedisRoleCache) GetRole(ctx context.Context, subject string) (entity.Role, bool, error) {
	val, err := c.rdb.Get(ctx, key("role", subject)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	role := entity.Role(val)
	if !role.Valid() {
		return "", false, nil
	}
	return role, true, nil
}

func (c *RedisRoleCache) SetRole(ctx context.Context, subject string, role entity.Role, ttl time.Duration) error {
	return c.rdb.Set(ctx, key("role", subject), string(role), ttl).Err()
}

var _ usecase.RoleCache = (*RedisRoleCache)(nil)

