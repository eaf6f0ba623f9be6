package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Dequeue when no task arrived before the wait elapsed.
var ErrEmpty = errors.New("queue: empty")

// RedisQueue is a FIFO list of task ids: LPUSH on enqueue, BRPOP on dequeue.
// Delivery is at-most-once; a worker that dies mid-task loses it.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue binds a queue to key on client.
func NewRedisQueue(client *redis.Client, key string) (*RedisQueue, error) {
	if client == nil {
		return nil, errors.New("queue: redis client is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("queue: key is required")
	}
	return &RedisQueue{client: client, key: key}, nil
}

// Enqueue appends a task id.
func (q *RedisQueue) Enqueue(ctx context.Context, taskID string) error {
	if err := q.client.LPush(ctx, q.key, taskID).Err(); err != nil {
		return fmt.Errorf("queue: push %s: %w", taskID, err)
	}
	return nil
}

// Dequeue blocks up to wait for the oldest task id. It returns ErrEmpty on
// timeout.
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (string, error) {
	res, err := q.client.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("queue: pop: %w", err)
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return "", fmt.Errorf("queue: unexpected reply %v", res)
	}
	return res[1], nil
}

// Len reports the number of pending task ids.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: len: %w", err)
	}
	return n, nil
}
