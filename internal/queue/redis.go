package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reviewflow/reviewflow/internal/config"
)

const defaultDialTimeout = 3 * time.Second

// RedisBackend implements Backend on a Redis sorted set, with per-task
// locks as SET NX keys.
type RedisBackend struct {
	client     *redis.Client
	queueKey   string
	lockPrefix string
}

// NewRedisBackend builds a RedisBackend from queue configuration.
func NewRedisBackend(cfg config.QueueConfig) *RedisBackend {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	queueKey := cfg.QueueKey
	if queueKey == "" {
		queueKey = "reviewflow:tasks:queue"
	}
	lockPrefix := cfg.LockKeyPrefix
	if lockPrefix == "" {
		lockPrefix = "reviewflow:tasks:lock:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: defaultDialTimeout,
	})

	return &RedisBackend{
		client:     client,
		queueKey:   queueKey,
		lockPrefix: lockPrefix,
	}
}

func (b *RedisBackend) lockKey(taskID string) string {
	return b.lockPrefix + taskID
}

func (b *RedisBackend) Add(ctx context.Context, member string, score float64) error {
	return b.client.ZAdd(ctx, b.queueKey, redis.Z{Score: score, Member: member}).Err()
}

func (b *RedisBackend) PopMin(ctx context.Context) (string, float64, bool, error) {
	entries, err := b.client.ZPopMin(ctx, b.queueKey, 1).Result()
	if err != nil {
		return "", 0, false, err
	}
	if len(entries) == 0 {
		return "", 0, false, nil
	}
	member, ok := entries[0].Member.(string)
	if !ok {
		member = ""
	}
	return member, entries[0].Score, true, nil
}

func (b *RedisBackend) Remove(ctx context.Context, member string) error {
	return b.client.ZRem(ctx, b.queueKey, member).Err()
}

func (b *RedisBackend) Card(ctx context.Context) (int64, error) {
	return b.client.ZCard(ctx, b.queueKey).Result()
}

func (b *RedisBackend) AcquireLock(ctx context.Context, taskID, ownerID string, ttl time.Duration) (bool, error) {
	return b.client.SetNX(ctx, b.lockKey(taskID), ownerID, ttl).Result()
}

func (b *RedisBackend) ReleaseLock(ctx context.Context, taskID string) error {
	return b.client.Del(ctx, b.lockKey(taskID)).Err()
}

func (b *RedisBackend) GetLock(ctx context.Context, taskID string) (string, bool, error) {
	owner, err := b.client.Get(ctx, b.lockKey(taskID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return owner, true, nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
