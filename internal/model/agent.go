package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AgentStatus is the lifecycle state of an agent definition.
type AgentStatus string

const (
	AgentDraft     AgentStatus = "draft"
	AgentActive    AgentStatus = "active"
	AgentInactive  AgentStatus = "inactive"
	AgentArchived  AgentStatus = "archived"
	AgentPublished AgentStatus = "published"
)

// AgentType describes how an agent's workflow is invoked.
type AgentType string

const (
	AgentWorkflow     AgentType = "workflow"
	AgentScheduled    AgentType = "scheduled"
	AgentTriggerBased AgentType = "trigger_based"
	AgentAPIEndpoint  AgentType = "api_endpoint"
)

// Agent is a saved, versioned workflow definition with aggregate
// execution statistics maintained across runs.
type Agent struct {
	ID                 uuid.UUID      `json:"id"`
	UserID             int64          `json:"user_id"`
	CategoryID         *int           `json:"category_id,omitempty"`
	TypeID             *int           `json:"type_id,omitempty"`
	Name               string         `json:"name"`
	Description        *string        `json:"description,omitempty"`
	AgentType          AgentType      `json:"agent_type"`
	Status             AgentStatus    `json:"status"`
	IsPublic           bool           `json:"is_public"`
	Category           *string        `json:"category,omitempty"`
	Tags               map[string]any `json:"tags,omitempty"`
	Configuration      map[string]any `json:"configuration"`
	WorkflowDefinition map[string]any `json:"workflow_definition"`
	Triggers           map[string]any `json:"triggers,omitempty"`
	Variables          map[string]any `json:"variables,omitempty"`
	Permissions        map[string]any `json:"permissions,omitempty"`
	Version            string         `json:"version"`
	ExecutionCount     int            `json:"execution_count"`
	SuccessRate        *float64       `json:"success_rate,omitempty"`
	AvgExecutionTimeMs *int           `json:"avg_execution_time_ms,omitempty"`
	LastExecutedAt     *time.Time     `json:"last_executed_at,omitempty"`
	PublishedAt        *time.Time     `json:"published_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ValidAgentType reports whether t is a known agent type.
func ValidAgentType(t AgentType) bool {
	switch t {
	case AgentWorkflow, AgentScheduled, AgentTriggerBased, AgentAPIEndpoint:
		return true
	}
	return false
}

// ValidAgentStatus reports whether s is a known agent status.
func ValidAgentStatus(s AgentStatus) bool {
	switch s {
	case AgentDraft, AgentActive, AgentInactive, AgentArchived, AgentPublished:
		return true
	}
	return false
}

// IsActive reports whether the agent is active.
func (a *Agent) IsActive() bool { return a.Status == AgentActive }

// IsPublished reports whether the agent is published to the marketplace.
func (a *Agent) IsPublished() bool {
	return a.Status == AgentPublished && a.PublishedAt != nil
}

// IsDraft reports whether the agent is still a draft.
func (a *Agent) IsDraft() bool { return a.Status == AgentDraft }

// HasExecutions reports whether the agent has ever been executed.
func (a *Agent) HasExecutions() bool { return a.ExecutionCount > 0 }

// SuccessPercentage returns the success rate as a percentage, or nil
// when the agent has no recorded executions.
func (a *Agent) SuccessPercentage() *float64 {
	if a.SuccessRate == nil {
		return nil
	}
	pct := *a.SuccessRate * 100
	return &pct
}

// Activate transitions a draft agent to active.
func (a *Agent) Activate() error {
	if a.Status != AgentDraft && a.Status != AgentInactive {
		return fmt.Errorf("model: cannot activate agent in status %q", a.Status)
	}
	a.Status = AgentActive
	return nil
}

// Deactivate transitions an active agent to inactive.
func (a *Agent) Deactivate() error {
	if a.Status != AgentActive {
		return fmt.Errorf("model: cannot deactivate agent in status %q", a.Status)
	}
	a.Status = AgentInactive
	return nil
}

// Publish makes an active or inactive agent public in the marketplace.
func (a *Agent) Publish() error {
	if a.Status != AgentActive && a.Status != AgentInactive {
		return fmt.Errorf("model: cannot publish agent in status %q", a.Status)
	}
	now := time.Now().UTC()
	a.Status = AgentPublished
	a.PublishedAt = &now
	a.IsPublic = true
	return nil
}

// Archive retires the agent. Archiving is allowed from any status.
func (a *Agent) Archive() {
	a.Status = AgentArchived
}

// RecordExecution folds one execution result into the aggregate stats:
// a running mean of execution time and the cumulative success rate.
func (a *Agent) RecordExecution(executionTimeMs int, success bool) {
	a.ExecutionCount++
	now := time.Now().UTC()
	a.LastExecutedAt = &now

	if a.AvgExecutionTimeMs == nil {
		a.AvgExecutionTimeMs = &executionTimeMs
	} else {
		total := *a.AvgExecutionTimeMs*(a.ExecutionCount-1) + executionTimeMs
		avg := total / a.ExecutionCount
		a.AvgExecutionTimeMs = &avg
	}

	if a.SuccessRate == nil {
		rate := 0.0
		if success {
			rate = 1.0
		}
		a.SuccessRate = &rate
	} else {
		successes := int(*a.SuccessRate*float64(a.ExecutionCount-1) + 0.5)
		if success {
			successes++
		}
		rate := float64(successes) / float64(a.ExecutionCount)
		a.SuccessRate = &rate
	}
}

// IncrementVersion bumps the semver version string. versionType is
// "major", "minor" or "patch" (the default). An unparseable current
// version resets to 1.0.0.
func (a *Agent) IncrementVersion(versionType string) string {
	parts := strings.Split(a.Version, ".")
	if len(parts) != 3 {
		a.Version = "1.0.0"
		return a.Version
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	patch, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		a.Version = "1.0.0"
		return a.Version
	}

	switch versionType {
	case "major":
		major++
		minor = 0
		patch = 0
	case "minor":
		minor++
		patch = 0
	default:
		patch++
	}
	a.Version = fmt.Sprintf("%d.%d.%d", major, minor, patch)
	return a.Version
}
