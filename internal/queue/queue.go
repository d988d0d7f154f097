// Package queue dispatches task execution through asynq.
//
// The queue is optional: with no Redis configured, tasks stay in their
// synchronous lifecycle and are completed through the API. With Redis,
// POST /tasks enqueues an execution job and the worker drives the task
// through queued, processing and completed or failed using the same
// storage methods the API uses.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/gestorlead/studio/internal/model"
)

// TypeExecuteTask is the asynq task type for executing a studio task.
const TypeExecuteTask = "task:execute"

// Queue names, weighted so urgent work drains first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues returns the queue-to-weight map shared by client and worker.
func Queues() map[string]int {
	return map[string]int{QueueCritical: 6, QueueDefault: 3, QueueLow: 1}
}

// ExecutePayload identifies the task to execute. The worker reloads the
// row, so the payload carries only the key.
type ExecutePayload struct {
	TaskID uuid.UUID `json:"task_id"`
	UserID int64     `json:"user_id"`
}

const maxExecuteAttempts = 3

// Client enqueues execution jobs.
type Client struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewClient connects an enqueue client to Redis. redisURL uses the
// redis:// scheme.
func NewClient(redisURL string, logger *slog.Logger) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	return &Client{client: asynq.NewClient(opt), logger: logger}, nil
}

// EnqueueExecute schedules the task for execution. The asynq task ID is
// the studio task ID, so re-enqueueing the same task is a no-op while
// the first job is still pending.
func (c *Client) EnqueueExecute(ctx context.Context, t model.Task) error {
	payload, err := json.Marshal(ExecutePayload{TaskID: t.ID, UserID: t.UserID})
	if err != nil {
		return fmt.Errorf("queue: marshal payload: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx,
		asynq.NewTask(TypeExecuteTask, payload),
		asynq.TaskID(t.ID.String()),
		asynq.Queue(queueForPriority(t.Priority)),
		asynq.MaxRetry(maxExecuteAttempts),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			c.logger.Debug("task already enqueued", "task_id", t.ID)
			return nil
		}
		return fmt.Errorf("queue: enqueue task %s: %w", t.ID, err)
	}

	c.logger.Info("task enqueued", "task_id", t.ID, "queue", info.Queue, "priority", t.Priority)
	return nil
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func queueForPriority(p model.TaskPriority) string {
	switch p {
	case model.PriorityUrgent, model.PriorityHigh:
		return QueueCritical
	case model.PriorityLow:
		return QueueLow
	default:
		return QueueDefault
	}
}
