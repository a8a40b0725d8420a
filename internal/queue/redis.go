package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Redis list used as both Consumer and RetryQueue,
// depending on the key it is bound to.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

// NewRedis binds a queue to a Redis list key.
func NewRedis(rdb *redis.Client, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key}
}

// Pop blocks up to timeout for the next element (BLPOP).
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, false, nil // poll timed out, nothing queued
	}
	if err != nil {
		return nil, false, fmt.Errorf("pop %s: %w", q.key, err)
	}
	// BLPOP returns [key, value]
	if len(res) < 2 {
		return nil, false, nil
	}
	return []byte(res[1]), true, nil
}

// Enqueue appends an element to the tail of the list (RPUSH).
func (q *RedisQueue) Enqueue(ctx context.Context, entry []byte) error {
	if err := q.rdb.RPush(ctx, q.key, entry).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", q.key, err)
	}
	return nil
}
