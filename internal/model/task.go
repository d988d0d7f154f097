package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the execution state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskRetrying   TaskStatus = "retrying"
)

// TaskPriority orders tasks within a queue.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Task is a single AI-provider invocation: the request envelope, the
// execution lifecycle, and the result or error it produced.
type Task struct {
	ID              uuid.UUID      `json:"id"`
	UserID          int64          `json:"user_id"`
	TaskTypeID      *int           `json:"task_type_id,omitempty"`
	ProviderModelID *int           `json:"provider_model_id,omitempty"`
	CampaignID      *uuid.UUID     `json:"campaign_id,omitempty"`
	TaskType        *string        `json:"task_type,omitempty"`
	Provider        *string        `json:"provider,omitempty"`
	Model           *string        `json:"model,omitempty"`
	Status          TaskStatus     `json:"status"`
	Priority        TaskPriority   `json:"priority"`
	CreditCost      int            `json:"credit_cost"`
	EstimatedCost   *int           `json:"estimated_cost,omitempty"`
	RequestPayload  map[string]any `json:"request_payload"`
	ResultPayload   map[string]any `json:"result_payload,omitempty"`
	ErrorMessage    *string        `json:"error_message,omitempty"`
	ErrorCode       *string        `json:"error_code,omitempty"`
	ExecutionTimeMs *int           `json:"execution_time_ms,omitempty"`
	RetryCount      int            `json:"retry_count"`
	ScheduledAt     *time.Time     `json:"scheduled_at,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskPending, TaskQueued, TaskProcessing, TaskCompleted, TaskFailed, TaskCancelled, TaskRetrying:
		return true
	}
	return false
}

// ValidTaskPriority reports whether p is a known priority.
func ValidTaskPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// IsCompleted reports whether the task finished successfully.
func (t *Task) IsCompleted() bool { return t.Status == TaskCompleted }

// IsFailed reports whether the task failed.
func (t *Task) IsFailed() bool { return t.Status == TaskFailed }

// IsRunning reports whether the task is queued or processing.
func (t *Task) IsRunning() bool {
	return t.Status == TaskQueued || t.Status == TaskProcessing
}

// IsTerminal reports whether the task reached a final state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed || t.Status == TaskCancelled
}

// HasResult reports whether a completed result payload is available.
func (t *Task) HasResult() bool {
	return t.ResultPayload != nil && t.IsCompleted()
}

// ExecutionDuration returns the wall-clock execution time in milliseconds,
// preferring the started/completed timestamps over the recorded value.
func (t *Task) ExecutionDuration() *int {
	if t.StartedAt != nil && t.CompletedAt != nil {
		ms := int(t.CompletedAt.Sub(*t.StartedAt).Milliseconds())
		return &ms
	}
	return t.ExecutionTimeMs
}

// Prompt extracts the main prompt from the request payload, checking the
// "prompt" key first and falling back to "text".
func (t *Task) Prompt() string {
	if t.RequestPayload == nil {
		return ""
	}
	if p, ok := t.RequestPayload["prompt"].(string); ok {
		return p
	}
	if p, ok := t.RequestPayload["text"].(string); ok {
		return p
	}
	return ""
}

// Enqueue transitions a pending or retrying task to queued.
func (t *Task) Enqueue() error {
	if t.Status != TaskPending && t.Status != TaskRetrying {
		return fmt.Errorf("model: cannot enqueue task in status %q", t.Status)
	}
	t.Status = TaskQueued
	return nil
}

// Start marks the beginning of execution.
func (t *Task) Start() error {
	if t.IsTerminal() {
		return fmt.Errorf("model: cannot start task in status %q", t.Status)
	}
	now := time.Now().UTC()
	t.Status = TaskProcessing
	t.StartedAt = &now
	return nil
}

// Complete marks the task as finished with the given result and computes
// the execution time from the started timestamp when available.
func (t *Task) Complete(result map[string]any) error {
	if t.IsTerminal() {
		return fmt.Errorf("model: cannot complete task in status %q", t.Status)
	}
	now := time.Now().UTC()
	t.Status = TaskCompleted
	t.CompletedAt = &now
	t.ResultPayload = result
	if t.StartedAt != nil {
		ms := int(now.Sub(*t.StartedAt).Milliseconds())
		t.ExecutionTimeMs = &ms
	}
	return nil
}

// Fail marks the task as failed with an error message and optional code.
func (t *Task) Fail(message string, code *string) {
	now := time.Now().UTC()
	t.Status = TaskFailed
	t.CompletedAt = &now
	t.ErrorMessage = &message
	t.ErrorCode = code
}

// Retry increments the retry counter and resets the task for re-execution.
func (t *Task) Retry() error {
	if t.Status != TaskFailed && t.Status != TaskRetrying {
		return fmt.Errorf("model: cannot retry task in status %q", t.Status)
	}
	t.RetryCount++
	t.Status = TaskPending
	t.StartedAt = nil
	t.CompletedAt = nil
	t.ErrorMessage = nil
	t.ErrorCode = nil
	return nil
}

// Cancel aborts the task. Completed and failed tasks cannot be cancelled.
func (t *Task) Cancel() error {
	if t.Status == TaskCompleted || t.Status == TaskFailed {
		return fmt.Errorf("model: cannot cancel task in status %q", t.Status)
	}
	t.Status = TaskCancelled
	if t.CompletedAt == nil {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	return nil
}
