package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus is the lifecycle state of a marketing campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
	CampaignArchived  CampaignStatus = "archived"
)

// Campaign is a budgeted grouping of tasks across marketing channels.
// The budget invariant spent_credits <= budget_credits is enforced both
// here and by a database check constraint.
type Campaign struct {
	ID               uuid.UUID      `json:"id"`
	UserID           int64          `json:"user_id"`
	CampaignTypeID   *int           `json:"campaign_type_id,omitempty"`
	Name             string         `json:"name"`
	Description      *string        `json:"description,omitempty"`
	CampaignType     *string        `json:"campaign_type,omitempty"`
	Status           CampaignStatus `json:"status"`
	Channels         []string       `json:"channels"`
	TargetAudience   map[string]any `json:"target_audience,omitempty"`
	Objectives       map[string]any `json:"objectives"`
	BudgetCredits    *int           `json:"budget_credits,omitempty"`
	SpentCredits     int            `json:"spent_credits"`
	ContentTemplates map[string]any `json:"content_templates,omitempty"`
	Scheduling       map[string]any `json:"scheduling,omitempty"`
	AutomationRules  map[string]any `json:"automation_rules,omitempty"`
	Metrics          map[string]any `json:"metrics,omitempty"`
	ABTesting        map[string]any `json:"ab_testing,omitempty"`
	StartDate        *time.Time     `json:"start_date,omitempty"`
	EndDate          *time.Time     `json:"end_date,omitempty"`
	LaunchedAt       *time.Time     `json:"launched_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ValidCampaignStatus reports whether s is a known campaign status.
func ValidCampaignStatus(s CampaignStatus) bool {
	switch s {
	case CampaignDraft, CampaignScheduled, CampaignActive, CampaignPaused,
		CampaignCompleted, CampaignCancelled, CampaignArchived:
		return true
	}
	return false
}

// IsActive reports whether the campaign is running.
func (c *Campaign) IsActive() bool { return c.Status == CampaignActive }

// IsCompleted reports whether the campaign finished.
func (c *Campaign) IsCompleted() bool { return c.Status == CampaignCompleted }

// IsDraft reports whether the campaign is still a draft.
func (c *Campaign) IsDraft() bool { return c.Status == CampaignDraft }

// IsLaunched reports whether the campaign was ever launched.
func (c *Campaign) IsLaunched() bool { return c.LaunchedAt != nil }

// HasBudget reports whether the campaign carries a budget limit.
func (c *Campaign) HasBudget() bool {
	return c.BudgetCredits != nil && *c.BudgetCredits > 0
}

// RemainingCredits returns budget minus spend, or nil for unbudgeted
// campaigns.
func (c *Campaign) RemainingCredits() *int {
	if c.BudgetCredits == nil {
		return nil
	}
	rem := *c.BudgetCredits - c.SpentCredits
	return &rem
}

// BudgetUtilization returns spend as a percentage of budget, or nil for
// unbudgeted campaigns.
func (c *Campaign) BudgetUtilization() *float64 {
	if c.BudgetCredits == nil || *c.BudgetCredits == 0 {
		return nil
	}
	pct := float64(c.SpentCredits) / float64(*c.BudgetCredits) * 100
	return &pct
}

// DurationDays returns the planned duration in days when both dates are set.
func (c *Campaign) DurationDays() *int {
	if c.StartDate == nil || c.EndDate == nil {
		return nil
	}
	days := int(c.EndDate.Sub(*c.StartDate).Hours() / 24)
	return &days
}

// Launch transitions a draft or scheduled campaign to active.
func (c *Campaign) Launch() error {
	if c.Status != CampaignDraft && c.Status != CampaignScheduled {
		return fmt.Errorf("model: cannot launch campaign in status %q", c.Status)
	}
	now := time.Now().UTC()
	c.Status = CampaignActive
	c.LaunchedAt = &now
	return nil
}

// Pause suspends an active campaign.
func (c *Campaign) Pause() error {
	if c.Status != CampaignActive {
		return fmt.Errorf("model: cannot pause campaign in status %q", c.Status)
	}
	c.Status = CampaignPaused
	return nil
}

// Resume reactivates a paused campaign.
func (c *Campaign) Resume() error {
	if c.Status != CampaignPaused {
		return fmt.Errorf("model: cannot resume campaign in status %q", c.Status)
	}
	c.Status = CampaignActive
	return nil
}

// Complete finishes an active or paused campaign.
func (c *Campaign) Complete() error {
	if c.Status != CampaignActive && c.Status != CampaignPaused {
		return fmt.Errorf("model: cannot complete campaign in status %q", c.Status)
	}
	now := time.Now().UTC()
	c.Status = CampaignCompleted
	c.CompletedAt = &now
	return nil
}

// Cancel aborts a campaign that has not yet finished.
func (c *Campaign) Cancel() error {
	switch c.Status {
	case CampaignDraft, CampaignScheduled, CampaignActive, CampaignPaused:
		c.Status = CampaignCancelled
		if c.CompletedAt == nil {
			now := time.Now().UTC()
			c.CompletedAt = &now
		}
		return nil
	}
	return fmt.Errorf("model: cannot cancel campaign in status %q", c.Status)
}

// Archive retires a completed or cancelled campaign.
func (c *Campaign) Archive() error {
	if c.Status != CampaignCompleted && c.Status != CampaignCancelled {
		return fmt.Errorf("model: cannot archive campaign in status %q", c.Status)
	}
	c.Status = CampaignArchived
	return nil
}

// CanSpendCredits reports whether the budget covers an additional amount.
// Unbudgeted campaigns can always spend.
func (c *Campaign) CanSpendCredits(amount int) bool {
	if c.BudgetCredits == nil {
		return true
	}
	return c.SpentCredits+amount <= *c.BudgetCredits
}

// SpendCredits debits amount against the campaign budget.
func (c *Campaign) SpendCredits(amount int) error {
	if !c.CanSpendCredits(amount) {
		rem := 0
		if r := c.RemainingCredits(); r != nil {
			rem = *r
		}
		return fmt.Errorf("model: insufficient campaign budget: available %d, required %d", rem, amount)
	}
	c.SpentCredits += amount
	return nil
}
