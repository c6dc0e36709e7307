package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a FIFO job list in Redis
type RedisQueue struct {
	client *redis.Client
	key    string
	poll   time.Duration
}

// RedisConfig holds connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// ConnectRedis establishes a connection to Redis
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisQueue(client, cfg.Key), nil
}

// NewRedisQueue wraps a connected client
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "lecture-chat:jobs"
	}
	return &RedisQueue{client: client, key: key, poll: 5 * time.Second}
}

// Dispatch appends a video id to the queue
func (q *RedisQueue) Dispatch(ctx context.Context, videoID string) error {
	if err := q.client.RPush(ctx, q.key, videoID).Err(); err != nil {
		return fmt.Errorf("error adding to queue: %w", err)
	}
	return nil
}

// Next pops the oldest id, waiting up to the poll interval
func (q *RedisQueue) Next(ctx context.Context) (string, error) {
	res, err := q.client.BLPop(ctx, q.poll, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading queue: %w", err)
	}
	// BLPOP replies with [key, value]
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected BLPOP reply of %d elements", len(res))
	}
	return res[1], nil
}

// Len returns the current length of the queue
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("error getting queue length: %w", err)
	}
	return n, nil
}

// Ping checks the connection
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
