package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q, err := NewRedisQueue(client, "test:tasks")
	require.NoError(t, err)
	return q, mr
}

func TestQueueIsFIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, q.Enqueue(ctx, id))
	}
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, want := range []string{"t1", "t2", "t3"} {
		got, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q, _ := newTestQueue(t)
	_, err := q.Dequeue(context.Background(), time.Second)
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestEnqueueUsesConfiguredKey(t *testing.T) {
	q, mr := newTestQueue(t)
	require.NoError(t, q.Enqueue(context.Background(), "abc"))

	list, err := mr.List("test:tasks")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, list)
}

func TestNewRedisQueueValidates(t *testing.T) {
	_, err := NewRedisQueue(nil, "k")
	assert.Error(t, err)
	_, err = NewRedisQueue(redis.NewClient(&redis.Options{}), " ")
	assert.Error(t, err)
}
