package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is a minimal list-backed job queue. Delivery is at-least-once: a
// consumer crash between pop and completion redelivers nothing here, so
// consumers are expected to be idempotent and producers to re-enqueue on
// processing failure.
type Queue struct {
	client *redis.Client
	key    string
}

// NewQueue creates a queue on the given Redis list key.
func NewQueue(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

// Enqueue pushes a JSON-encoded payload onto the queue.
func (q *Queue) Enqueue(ctx context.Context, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Dequeue blocks up to timeout for the next payload and decodes it into dest.
// It returns (false, nil) when the wait timed out with nothing to do.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration, dest interface{}) (bool, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	// BRPop returns [key, value]
	if len(res) != 2 {
		return false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), dest); err != nil {
		return false, err
	}
	return true, nil
}

// Len returns the number of pending payloads.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
