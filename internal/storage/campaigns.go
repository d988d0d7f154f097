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

const campaignColumns = `id, user_id, campaign_type_id, name, description,
	campaign_type, status, channels, target_audience, objectives,
	budget_credits, spent_credits, content_templates, scheduling,
	automation_rules, metrics, ab_testing, start_date, end_date,
	launched_at, completed_at, created_at, updated_at`

func scanCampaign(row pgx.Row) (model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.UserID, &c.CampaignTypeID, &c.Name, &c.Description,
		&c.CampaignType, &c.Status, &c.Channels, &c.TargetAudience, &c.Objectives,
		&c.BudgetCredits, &c.SpentCredits, &c.ContentTemplates, &c.Scheduling,
		&c.AutomationRules, &c.Metrics, &c.ABTesting, &c.StartDate, &c.EndDate,
		&c.LaunchedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// CreateCampaign inserts a new campaign.
func (db *DB) CreateCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO campaigns (id, user_id, campaign_type_id, name, description,
		     campaign_type, status, channels, target_audience, objectives,
		     budget_credits, spent_credits, content_templates, scheduling,
		     automation_rules, start_date, end_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		c.ID, c.UserID, c.CampaignTypeID, c.Name, c.Description,
		c.CampaignType, c.Status, c.Channels, c.TargetAudience, c.Objectives,
		c.BudgetCredits, c.SpentCredits, c.ContentTemplates, c.Scheduling,
		c.AutomationRules, c.StartDate, c.EndDate, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return model.Campaign{}, fmt.Errorf("storage: create campaign: %w", err)
	}
	return c, nil
}

// GetCampaign retrieves a campaign by ID scoped to its owner.
func (db *DB) GetCampaign(ctx context.Context, userID int64, id uuid.UUID) (model.Campaign, error) {
	c, err := scanCampaign(db.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Campaign{}, fmt.Errorf("storage: campaign %s: %w", id, ErrNotFound)
		}
		return model.Campaign{}, fmt.Errorf("storage: get campaign: %w", err)
	}
	return c, nil
}

// ListCampaigns returns a user's campaigns with pagination, newest first.
// status narrows to a single lifecycle state when non-nil.
func (db *DB) ListCampaigns(ctx context.Context, userID int64, status *model.CampaignStatus, limit, offset int) ([]model.Campaign, int, error) {
	limit, offset = clampPage(limit, offset)

	where := `WHERE user_id = $1`
	args := []any{userID}
	if status != nil {
		args = append(args, *status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM campaigns `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count campaigns: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM campaigns %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			campaignColumns, where, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("storage: scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

// UpdateCampaign persists a campaign's mutable fields. spent_credits is
// deliberately excluded; only task creation moves it.
func (db *DB) UpdateCampaign(ctx context.Context, c model.Campaign) (model.Campaign, error) {
	c.UpdatedAt = time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE campaigns
		 SET name = $3, description = $4, campaign_type_id = $5, channels = $6,
		     target_audience = $7, objectives = $8, budget_credits = $9,
		     content_templates = $10, scheduling = $11, automation_rules = $12,
		     metrics = $13, ab_testing = $14, start_date = $15, end_date = $16,
		     status = $17, launched_at = $18, completed_at = $19, updated_at = $20
		 WHERE id = $1 AND user_id = $2`,
		c.ID, c.UserID, c.Name, c.Description, c.CampaignTypeID, c.Channels,
		c.TargetAudience, c.Objectives, c.BudgetCredits,
		c.ContentTemplates, c.Scheduling, c.AutomationRules,
		c.Metrics, c.ABTesting, c.StartDate, c.EndDate,
		c.Status, c.LaunchedAt, c.CompletedAt, c.UpdatedAt,
	)
	if err != nil {
		return model.Campaign{}, fmt.Errorf("storage: update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Campaign{}, fmt.Errorf("storage: campaign %s: %w", c.ID, ErrNotFound)
	}
	return c, nil
}

// SaveCampaignStatus persists the lifecycle fields after a model-level
// transition (Launch, Pause, Resume, Complete, Cancel, Archive).
func (db *DB) SaveCampaignStatus(ctx context.Context, c model.Campaign) (model.Campaign, error) {
	c.UpdatedAt = time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE campaigns
		 SET status = $3, launched_at = $4, completed_at = $5, updated_at = $6
		 WHERE id = $1 AND user_id = $2`,
		c.ID, c.UserID, c.Status, c.LaunchedAt, c.CompletedAt, c.UpdatedAt,
	)
	if err != nil {
		return model.Campaign{}, fmt.Errorf("storage: save campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Campaign{}, fmt.Errorf("storage: campaign %s: %w", c.ID, ErrNotFound)
	}
	return c, nil
}

// DeleteCampaign removes a campaign. Tasks referencing it keep running
// with their campaign reference nulled at the database level.
func (db *DB) DeleteCampaign(ctx context.Context, userID int64, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("storage: delete campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: campaign %s: %w", id, ErrNotFound)
	}
	return nil
}
