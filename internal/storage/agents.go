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

const agentColumns = `id, user_id, category_id, type_id, name, description,
	agent_type, status, is_public, category, tags, configuration,
	workflow_definition, triggers, variables, permissions, version,
	execution_count, success_rate, avg_execution_time_ms,
	last_executed_at, published_at, created_at, updated_at`

func scanAgent(row pgx.Row) (model.Agent, error) {
	var a model.Agent
	err := row.Scan(
		&a.ID, &a.UserID, &a.CategoryID, &a.TypeID, &a.Name, &a.Description,
		&a.AgentType, &a.Status, &a.IsPublic, &a.Category, &a.Tags, &a.Configuration,
		&a.WorkflowDefinition, &a.Triggers, &a.Variables, &a.Permissions, &a.Version,
		&a.ExecutionCount, &a.SuccessRate, &a.AvgExecutionTimeMs,
		&a.LastExecutedAt, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// CreateAgent inserts a new agent definition.
func (db *DB) CreateAgent(ctx context.Context, a model.Agent) (model.Agent, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Status == "" {
		a.Status = model.AgentDraft
	}
	if a.Version == "" {
		a.Version = "1.0.0"
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO agents (id, user_id, category_id, type_id, name, description,
		     agent_type, status, is_public, category, tags, configuration,
		     workflow_definition, triggers, variables, permissions, version,
		     execution_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		a.ID, a.UserID, a.CategoryID, a.TypeID, a.Name, a.Description,
		a.AgentType, a.Status, a.IsPublic, a.Category, a.Tags, a.Configuration,
		a.WorkflowDefinition, a.Triggers, a.Variables, a.Permissions, a.Version,
		a.ExecutionCount, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: create agent: %w", err)
	}
	return a, nil
}

// GetAgent retrieves an agent visible to the user: their own, or a
// public one.
func (db *DB) GetAgent(ctx context.Context, userID int64, id uuid.UUID) (model.Agent, error) {
	a, err := scanAgent(db.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents
		 WHERE id = $1 AND (user_id = $2 OR is_public)`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Agent{}, fmt.Errorf("storage: agent %s: %w", id, ErrNotFound)
		}
		return model.Agent{}, fmt.Errorf("storage: get agent: %w", err)
	}
	return a, nil
}

// AgentFilter narrows ListAgents results.
type AgentFilter struct {
	Status        *model.AgentStatus
	IncludePublic bool
}

// ListAgents returns a user's agents, optionally including published
// public agents from other users, newest first.
func (db *DB) ListAgents(ctx context.Context, userID int64, filter AgentFilter, limit, offset int) ([]model.Agent, int, error) {
	limit, offset = clampPage(limit, offset)

	where := `WHERE user_id = $1`
	if filter.IncludePublic {
		where = `WHERE (user_id = $1 OR (is_public AND status = 'published'))`
	}
	args := []any{userID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM agents `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count agents: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM agents %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			agentColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list agents: %w", err)
	}
	defer rows.Close()

	var agents []model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, total, rows.Err()
}

// UpdateAgent persists an agent's mutable fields. Ownership is part of
// the predicate so users cannot edit public agents they do not own.
func (db *DB) UpdateAgent(ctx context.Context, a model.Agent) (model.Agent, error) {
	a.UpdatedAt = time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE agents
		 SET name = $3, description = $4, category_id = $5, category = $6,
		     is_public = $7, tags = $8, configuration = $9, workflow_definition = $10,
		     triggers = $11, variables = $12, permissions = $13, version = $14,
		     status = $15, published_at = $16, updated_at = $17
		 WHERE id = $1 AND user_id = $2`,
		a.ID, a.UserID, a.Name, a.Description, a.CategoryID, a.Category,
		a.IsPublic, a.Tags, a.Configuration, a.WorkflowDefinition,
		a.Triggers, a.Variables, a.Permissions, a.Version,
		a.Status, a.PublishedAt, a.UpdatedAt,
	)
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: update agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Agent{}, fmt.Errorf("storage: agent %s: %w", a.ID, ErrNotFound)
	}
	return a, nil
}

// RecordAgentExecution folds one execution result into the agent's
// aggregate stats under a row lock, so concurrent executions do not
// lose updates. Returns the updated agent.
func (db *DB) RecordAgentExecution(ctx context.Context, userID int64, id uuid.UUID, executionTimeMs int, success bool) (model.Agent, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: begin record execution tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := scanAgent(tx.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents
		 WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Agent{}, fmt.Errorf("storage: agent %s: %w", id, ErrNotFound)
		}
		return model.Agent{}, fmt.Errorf("storage: lock agent: %w", err)
	}

	a.RecordExecution(executionTimeMs, success)
	a.UpdatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		`UPDATE agents
		 SET execution_count = $2, success_rate = $3, avg_execution_time_ms = $4,
		     last_executed_at = $5, updated_at = $6
		 WHERE id = $1`,
		a.ID, a.ExecutionCount, a.SuccessRate, a.AvgExecutionTimeMs,
		a.LastExecutedAt, a.UpdatedAt,
	)
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: record agent execution: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Agent{}, fmt.Errorf("storage: commit record execution tx: %w", err)
	}
	return a, nil
}

// DeleteAgent removes an agent owned by the user.
func (db *DB) DeleteAgent(ctx context.Context, userID int64, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM agents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("storage: delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: agent %s: %w", id, ErrNotFound)
	}
	return nil
}
