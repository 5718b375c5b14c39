package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/retry"
)

// Request is one message on the index queue.
type Request struct {
	ID        uuid.UUID `json:"id"`
	ProjectID int64     `json:"project_id"`
	Action    Action    `json:"action"`
	QueuedAt  time.Time `json:"queued_at"`
}

// RedisQueue appends index requests to a Redis list consumed by the indexer.
type RedisQueue struct {
	client redis.Cmdable
	key    string
	retry  *retry.Config
	logger *zap.Logger
}

// NewRedisQueue creates a queue writing to the list at key.
func NewRedisQueue(client redis.Cmdable, key string, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    key,
		retry:  retry.DefaultConfig(),
		logger: logger.Named("search"),
	}
}

func (q *RedisQueue) Index(ctx context.Context, projectID int64) error {
	return q.push(ctx, projectID, ActionIndex)
}

func (q *RedisQueue) Remove(ctx context.Context, projectID int64) error {
	return q.push(ctx, projectID, ActionRemove)
}

func (q *RedisQueue) push(ctx context.Context, projectID int64, action Action) error {
	req := Request{
		ID:        uuid.New(),
		ProjectID: projectID,
		Action:    action,
		QueuedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal index request: %w", err)
	}

	err = retry.DoIfRetryable(ctx, q.retry, func() error {
		return q.client.RPush(ctx, q.key, data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to queue index request: %w", err)
	}

	q.logger.Debug("Queued index request",
		zap.String("request_id", req.ID.String()),
		zap.Int64("project_id", projectID),
		zap.String("action", string(action)))
	return nil
}

// Pending returns the number of requests waiting in the queue.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}
