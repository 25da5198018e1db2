package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/makerbridge/marketplace-backend/internal/notifications/domain"
)

const retryListKey = "notify:retry"

// RetryQueue buffers failed notification writes in a redis list until the
// drain job re-attempts them.
type RetryQueue struct {
	client *redis.Client
}

func NewRetryQueue(client *redis.Client) *RetryQueue {
	return &RetryQueue{client: client}
}

func (q *RetryQueue) Push(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := q.client.RPush(ctx, retryListKey, data).Err(); err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}
	return nil
}

// Drain re-attempts queued writes in FIFO order. A record that fails again
// goes back to the end of the list and the pass stops, so a down database
// does not spin the loop.
func (q *RetryQueue) Drain(ctx context.Context, store Store) (int, error) {
	drained := 0
	for {
		data, err := q.client.LPop(ctx, retryListKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return drained, nil
		}
		if err != nil {
			return drained, fmt.Errorf("pop retry queue: %w", err)
		}

		var n domain.Notification
		if err := json.Unmarshal(data, &n); err != nil {
			log.Printf("retry queue: dropping malformed entry: %v", err)
			continue
		}

		if err := store.Create(&n); err != nil {
			if rerr := q.client.RPush(ctx, retryListKey, data).Err(); rerr != nil {
				log.Printf("retry queue: requeue for %s failed: %v", n.UserID, rerr)
			}
			return drained, fmt.Errorf("retry write for %s: %w", n.UserID, err)
		}
		drained++
	}
}

// Len reports the queue depth, used by tests and the health surface.
func (q *RetryQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, retryListKey).Result()
}
