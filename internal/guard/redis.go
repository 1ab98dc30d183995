package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the key only while it still holds the caller's token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisAPI is the subset of *redis.Client the guard needs.
type RedisAPI interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisGuard claims keys with SETNX. The TTL bounds how long a crashed
// holder can block an order.
type RedisGuard struct {
	rdb    RedisAPI
	ttl    time.Duration
	prefix string
}

// NewRedisGuard builds a guard over rdb.
func NewRedisGuard(rdb RedisAPI, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisGuard{rdb: rdb, ttl: ttl, prefix: "orderflow:inflight:"}
}

// NewRedisClient connects to addr.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	k := g.prefix + key
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, k, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return nil, ErrInFlight
	}
	return func() {
		// best effort, the TTL cleans up if this fails
		_ = g.rdb.Eval(context.Background(), releaseScript, []string{k}, token).Err()
	}, nil
}
