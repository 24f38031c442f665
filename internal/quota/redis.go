package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyTTL keeps yesterday's counter around for reporting.
const keyTTL = 48 * time.Hour

// RedisLedger keeps the daily counters in Redis. INCRBY makes each Add atomic
// across processes sharing the same server.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

func NewRedisLedger(client *redis.Client, prefix string) *RedisLedger {
	if prefix == "" {
		prefix = "outreach:quota"
	}
	return &RedisLedger{client: client, prefix: prefix}
}

func (r *RedisLedger) key(day string) string { return r.prefix + ":" + day }

func (r *RedisLedger) Count(ctx context.Context, day string) (int, error) {
	n, err := r.client.Get(ctx, r.key(day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", r.key(day), err)
	}
	return n, nil
}

func (r *RedisLedger) Add(ctx context.Context, day string, n int) (int, error) {
	k := r.key(day)
	pipe := r.client.TxPipeline()
	incr := pipe.IncrBy(ctx, k, int64(n))
	pipe.Expire(ctx, k, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incrby %s: %w", k, err)
	}
	return int(incr.Val()), nil
}
