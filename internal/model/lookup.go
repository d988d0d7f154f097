package model

import "time"

// SubscriptionTier is a lookup row describing a billing plan and its
// monthly allowances. MonthlyCredits and MaxAgents of -1 mean unlimited.
type SubscriptionTier struct {
	ID                int       `json:"id"`
	TierName          string    `json:"tier_name"`
	MonthlyCredits    int       `json:"monthly_credits"`
	MaxAgents         int       `json:"max_agents"`
	MonthlyPriceCents int       `json:"monthly_price_cents"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

// Unlimited reports whether the tier has no monthly credit cap.
func (t *SubscriptionTier) Unlimited() bool { return t.MonthlyCredits < 0 }

// AIProvider is a lookup row for an external AI service.
type AIProvider struct {
	ID           int       `json:"id"`
	ProviderName string    `json:"provider_name"`
	DisplayName  string    `json:"display_name"`
	APIBaseURL   *string   `json:"api_base_url,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskTypeInfo is a lookup row describing a kind of generation task and
// its base credit cost.
type TaskTypeInfo struct {
	ID                int     `json:"id"`
	TypeName          string  `json:"type_name"`
	Description       *string `json:"description,omitempty"`
	Category          *string `json:"category,omitempty"`
	DefaultCreditCost int     `json:"default_credit_cost"`
}

// ProviderModel is a lookup row for a specific model offered by a
// provider, with the task types it serves and its credit cost factor.
type ProviderModel struct {
	ID            int      `json:"id"`
	Provider      string   `json:"provider"`
	ModelName     string   `json:"model_name"`
	TaskTypes     []string `json:"task_types,omitempty"`
	CostPerCredit int      `json:"cost_per_credit"`
	IsActive      bool     `json:"is_active"`
}

// AgentCategory is a lookup row grouping marketplace agents.
type AgentCategory struct {
	ID           int     `json:"id"`
	CategoryName string  `json:"category_name"`
	Description  *string `json:"description,omitempty"`
	SortOrder    int     `json:"sort_order"`
	IsActive     bool    `json:"is_active"`
}

// AgentTypeInfo is a lookup row describing an agent invocation style.
type AgentTypeInfo struct {
	ID            int            `json:"id"`
	TypeName      string         `json:"type_name"`
	CategoryID    *int           `json:"category_id,omitempty"`
	Description   *string        `json:"description,omitempty"`
	DefaultConfig map[string]any `json:"default_config,omitempty"`
}

// CampaignTypeInfo is a lookup row describing a campaign objective class.
type CampaignTypeInfo struct {
	ID                    int      `json:"id"`
	TypeName              string   `json:"type_name"`
	Description           *string  `json:"description,omitempty"`
	DefaultChannels       []string `json:"default_channels,omitempty"`
	EstimatedDurationDays *int     `json:"estimated_duration_days,omitempty"`
}

// Lookups bundles every lookup table for the combined lookups endpoint.
type Lookups struct {
	SubscriptionTiers []SubscriptionTier `json:"subscription_tiers"`
	AIProviders       []AIProvider       `json:"ai_providers"`
	TaskTypes         []TaskTypeInfo     `json:"task_types"`
	ProviderModels    []ProviderModel    `json:"provider_models"`
	AgentCategories   []AgentCategory    `json:"agent_categories"`
	AgentTypes        []AgentTypeInfo    `json:"agent_types"`
	CampaignTypes     []CampaignTypeInfo `json:"campaign_types"`
}
