package repositories

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisReplicationQueue struct {
	redis *redis.Client
	key   string
}

func NewRedisReplicationQueue(redisClient *redis.Client, key string) *RedisReplicationQueue {
	if key == "" {
		key = "replication:queue"
	}
	return &RedisReplicationQueue{redis: redisClient, key: key}
}

func (q *RedisReplicationQueue) Push(ctx context.Context, fileID uint) error {
	return q.redis.LPush(ctx, q.key, fileID).Err()
}

func (q *RedisReplicationQueue) Pop(ctx context.Context, wait time.Duration) (uint, bool, error) {
	result, err := q.redis.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	// BRPOP answers [key, value].
	if len(result) != 2 {
		return 0, false, nil
	}
	id, err := strconv.ParseUint(result[1], 10, 64)
	if err != nil {
		return 0, false, err
	}
	return uint(id), true, nil
}

func (q *RedisReplicationQueue) Len(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.key).Result()
}

type MemoryReplicationQueue struct {
	ch chan uint
}

func NewMemoryReplicationQueue(size int) *MemoryReplicationQueue {
	return &MemoryReplicationQueue{ch: make(chan uint, size)}
}

func (q *MemoryReplicationQueue) Push(ctx context.Context, fileID uint) error {
	select {
	case q.ch <- fileID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryReplicationQueue) Pop(ctx context.Context, wait time.Duration) (uint, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case id := <-q.ch:
		return id, true, nil
	case <-timer.C:
		return 0, false, nil
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}

func (q *MemoryReplicationQueue) Len() int {
	return len(q.ch)
}
