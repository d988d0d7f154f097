package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gestorlead/studio/internal/model"
)

const taskColumns = `id, user_id, task_type_id, provider_model_id, campaign_id,
	task_type, provider, model, status, priority, credit_cost, estimated_cost,
	request_payload, result_payload, error_message, error_code, execution_time_ms,
	retry_count, scheduled_at, started_at, completed_at, expires_at,
	created_at, updated_at`

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID, &t.UserID, &t.TaskTypeID, &t.ProviderModelID, &t.CampaignID,
		&t.TaskType, &t.Provider, &t.Model, &t.Status, &t.Priority, &t.CreditCost, &t.EstimatedCost,
		&t.RequestPayload, &t.ResultPayload, &t.ErrorMessage, &t.ErrorCode, &t.ExecutionTimeMs,
		&t.RetryCount, &t.ScheduledAt, &t.StartedAt, &t.CompletedAt, &t.ExpiresAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

// CreateTask inserts a task and debits the credit cost from the user's
// balance, and from the campaign budget when the task belongs to one,
// all in a single transaction. Returns ErrInsufficientCredits or
// ErrBudgetExceeded when a debit fails; nothing is written in that case.
func (db *DB) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	var created model.Task
	err := WithRetry(ctx, txMaxRetries, txRetryBackoff, func() error {
		var err error
		created, err = db.createTaskOnce(ctx, t)
		return err
	})
	return created, err
}

func (db *DB) createTaskOnce(ctx context.Context, t model.Task) (model.Task, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Task{}, fmt.Errorf("storage: begin create task tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = model.TaskPending
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}

	if t.CreditCost > 0 {
		if _, err := debitUserTx(ctx, tx, t.UserID, t.CreditCost); err != nil {
			return model.Task{}, err
		}
		if t.CampaignID != nil {
			if err := debitCampaignTx(ctx, tx, *t.CampaignID, t.UserID, t.CreditCost); err != nil {
				return model.Task{}, err
			}
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO tasks (id, user_id, task_type_id, provider_model_id, campaign_id,
		     task_type, provider, model, status, priority, credit_cost, estimated_cost,
		     request_payload, retry_count, scheduled_at, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		t.ID, t.UserID, t.TaskTypeID, t.ProviderModelID, t.CampaignID,
		t.TaskType, t.Provider, t.Model, t.Status, t.Priority, t.CreditCost, t.EstimatedCost,
		t.RequestPayload, t.RetryCount, t.ScheduledAt, t.ExpiresAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("storage: create task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Task{}, fmt.Errorf("storage: commit create task tx: %w", err)
	}
	return t, nil
}

// debitCampaignTx adds amount to a campaign's spent credits with a row
// lock, enforcing the budget and the owner.
func debitCampaignTx(ctx context.Context, tx pgx.Tx, campaignID uuid.UUID, userID int64, amount int) error {
	var budget *int
	var spent int
	err := tx.QueryRow(ctx,
		`SELECT budget_credits, spent_credits FROM campaigns
		 WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		campaignID, userID,
	).Scan(&budget, &spent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("storage: campaign %s: %w", campaignID, ErrNotFound)
		}
		return fmt.Errorf("storage: lock campaign for debit: %w", err)
	}
	if budget != nil && spent+amount > *budget {
		return fmt.Errorf("storage: campaign %s spent %d of %d, required %d: %w",
			campaignID, spent, *budget, amount, ErrBudgetExceeded)
	}

	_, err = tx.Exec(ctx,
		`UPDATE campaigns SET spent_credits = spent_credits + $3, updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		campaignID, userID, amount,
	)
	if err != nil {
		return fmt.Errorf("storage: debit campaign: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID scoped to its owner.
func (db *DB) GetTask(ctx context.Context, userID int64, id uuid.UUID) (model.Task, error) {
	t, err := scanTask(db.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Task{}, fmt.Errorf("storage: task %s: %w", id, ErrNotFound)
		}
		return model.Task{}, fmt.Errorf("storage: get task: %w", err)
	}
	return t, nil
}

// TaskFilter narrows ListTasks results.
type TaskFilter struct {
	Status     *model.TaskStatus
	CampaignID *uuid.UUID
}

// ListTasks returns a user's tasks with pagination, newest first.
func (db *DB) ListTasks(ctx context.Context, userID int64, filter TaskFilter, limit, offset int) ([]model.Task, int, error) {
	limit, offset = clampPage(limit, offset)

	where := `WHERE user_id = $1`
	args := []any{userID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.CampaignID != nil {
		args = append(args, *filter.CampaignID)
		where += fmt.Sprintf(` AND campaign_id = $%d`, len(args))
	}

	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count tasks: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			taskColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, total, rows.Err()
}

// UpdateTask persists edits to a pending task's request fields.
func (db *DB) UpdateTask(ctx context.Context, t model.Task) (model.Task, error) {
	t.UpdatedAt = time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE tasks
		 SET priority = $3, request_payload = $4, scheduled_at = $5, updated_at = $6
		 WHERE id = $1 AND user_id = $2 AND status = 'pending'`,
		t.ID, t.UserID, t.Priority, t.RequestPayload, t.ScheduledAt, t.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("storage: update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Task{}, fmt.Errorf("storage: pending task %s: %w", t.ID, ErrNotFound)
	}
	return t, nil
}

// SaveTaskExecution persists the execution-lifecycle fields of a task
// after a model-level transition (Enqueue, Start, Complete, Fail, Retry,
// Cancel). The status machine is enforced in the model; this writes the
// resulting state.
func (db *DB) SaveTaskExecution(ctx context.Context, t model.Task) (model.Task, error) {
	t.UpdatedAt = time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE tasks
		 SET status = $2, result_payload = $3, error_message = $4, error_code = $5,
		     execution_time_ms = $6, retry_count = $7, started_at = $8,
		     completed_at = $9, updated_at = $10
		 WHERE id = $1`,
		t.ID, t.Status, t.ResultPayload, t.ErrorMessage, t.ErrorCode,
		t.ExecutionTimeMs, t.RetryCount, t.StartedAt, t.CompletedAt, t.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("storage: save task execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Task{}, fmt.Errorf("storage: task %s: %w", t.ID, ErrNotFound)
	}
	return t, nil
}

// CompleteTaskWithContent marks a task completed and inserts its
// generated content row in one transaction. The content insert is
// skipped when content is nil.
func (db *DB) CompleteTaskWithContent(ctx context.Context, t model.Task, content *model.GeneratedContent) (model.Task, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Task{}, fmt.Errorf("storage: begin complete task tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE tasks
		 SET status = $2, result_payload = $3, execution_time_ms = $4,
		     completed_at = $5, updated_at = $6
		 WHERE id = $1`,
		t.ID, t.Status, t.ResultPayload, t.ExecutionTimeMs, t.CompletedAt, t.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("storage: complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Task{}, fmt.Errorf("storage: task %s: %w", t.ID, ErrNotFound)
	}

	if content != nil {
		content.TaskID = t.ID
		content.UserID = t.UserID
		if _, err := insertContentTx(ctx, tx, *content); err != nil {
			return model.Task{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Task{}, fmt.Errorf("storage: commit complete task tx: %w", err)
	}
	return t, nil
}

// DeleteTask removes a task. Its generated content cascades.
func (db *DB) DeleteTask(ctx context.Context, userID int64, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("storage: delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: task %s: %w", id, ErrNotFound)
	}
	return nil
}
