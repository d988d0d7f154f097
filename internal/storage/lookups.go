package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gestorlead/studio/internal/model"
)

// ListSubscriptionTiers returns active subscription tiers.
func (db *DB) ListSubscriptionTiers(ctx context.Context) ([]model.SubscriptionTier, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, tier_name, monthly_credits, max_agents, monthly_price_cents, is_active, created_at
		 FROM subscription_tiers WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list subscription tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.SubscriptionTier
	for rows.Next() {
		var t model.SubscriptionTier
		if err := rows.Scan(&t.ID, &t.TierName, &t.MonthlyCredits, &t.MaxAgents,
			&t.MonthlyPriceCents, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan subscription tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// ListAIProviders returns active AI providers.
func (db *DB) ListAIProviders(ctx context.Context) ([]model.AIProvider, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, provider_name, display_name, api_base_url, is_active, created_at
		 FROM ai_providers WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list ai providers: %w", err)
	}
	defer rows.Close()

	var providers []model.AIProvider
	for rows.Next() {
		var p model.AIProvider
		if err := rows.Scan(&p.ID, &p.ProviderName, &p.DisplayName, &p.APIBaseURL,
			&p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan ai provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// ListTaskTypes returns all task types.
func (db *DB) ListTaskTypes(ctx context.Context) ([]model.TaskTypeInfo, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, type_name, description, category, default_credit_cost
		 FROM task_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list task types: %w", err)
	}
	defer rows.Close()

	var types []model.TaskTypeInfo
	for rows.Next() {
		var t model.TaskTypeInfo
		if err := rows.Scan(&t.ID, &t.TypeName, &t.Description, &t.Category, &t.DefaultCreditCost); err != nil {
			return nil, fmt.Errorf("storage: scan task type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// GetTaskTypeByName looks up a task type by its machine name. Used to
// resolve the credit cost at task creation.
func (db *DB) GetTaskTypeByName(ctx context.Context, name string) (model.TaskTypeInfo, error) {
	var t model.TaskTypeInfo
	err := db.pool.QueryRow(ctx,
		`SELECT id, type_name, description, category, default_credit_cost
		 FROM task_types WHERE type_name = $1`,
		name,
	).Scan(&t.ID, &t.TypeName, &t.Description, &t.Category, &t.DefaultCreditCost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TaskTypeInfo{}, fmt.Errorf("storage: task type %q: %w", name, ErrNotFound)
		}
		return model.TaskTypeInfo{}, fmt.Errorf("storage: get task type: %w", err)
	}
	return t, nil
}

// ListProviderModels returns active provider models.
func (db *DB) ListProviderModels(ctx context.Context) ([]model.ProviderModel, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, provider, model_name, task_types, cost_per_credit, is_active
		 FROM provider_models WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list provider models: %w", err)
	}
	defer rows.Close()

	var models []model.ProviderModel
	for rows.Next() {
		var m model.ProviderModel
		if err := rows.Scan(&m.ID, &m.Provider, &m.ModelName, &m.TaskTypes,
			&m.CostPerCredit, &m.IsActive); err != nil {
			return nil, fmt.Errorf("storage: scan provider model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// ListAgentCategories returns active agent categories in display order.
func (db *DB) ListAgentCategories(ctx context.Context) ([]model.AgentCategory, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, category_name, description, sort_order, is_active
		 FROM agent_categories WHERE is_active ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list agent categories: %w", err)
	}
	defer rows.Close()

	var cats []model.AgentCategory
	for rows.Next() {
		var c model.AgentCategory
		if err := rows.Scan(&c.ID, &c.CategoryName, &c.Description, &c.SortOrder, &c.IsActive); err != nil {
			return nil, fmt.Errorf("storage: scan agent category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// ListAgentTypes returns all agent types.
func (db *DB) ListAgentTypes(ctx context.Context) ([]model.AgentTypeInfo, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, type_name, category_id, description, default_config
		 FROM agent_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list agent types: %w", err)
	}
	defer rows.Close()

	var types []model.AgentTypeInfo
	for rows.Next() {
		var t model.AgentTypeInfo
		if err := rows.Scan(&t.ID, &t.TypeName, &t.CategoryID, &t.Description, &t.DefaultConfig); err != nil {
			return nil, fmt.Errorf("storage: scan agent type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// ListCampaignTypes returns all campaign types.
func (db *DB) ListCampaignTypes(ctx context.Context) ([]model.CampaignTypeInfo, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, type_name, description, default_channels, estimated_duration_days
		 FROM campaign_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list campaign types: %w", err)
	}
	defer rows.Close()

	var types []model.CampaignTypeInfo
	for rows.Next() {
		var t model.CampaignTypeInfo
		if err := rows.Scan(&t.ID, &t.TypeName, &t.Description, &t.DefaultChannels,
			&t.EstimatedDurationDays); err != nil {
			return nil, fmt.Errorf("storage: scan campaign type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}
