package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Field length limits on caller-controlled text. These keep a single
// oversized field from filling Postgres TEXT columns with garbage.
const (
	MaxNameLen        = 200
	MaxDescriptionLen = 2000
	MaxPromptLen      = 64 * 1024 // 64 KB
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for paginated list endpoints.
type ListResponse struct {
	Data    any          `json:"data"`
	Total   *int         `json:"total,omitempty"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Meta    ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodePaymentDue    = "INSUFFICIENT_CREDITS"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// GoogleURLResponse is the response for POST /auth/google/url.
type GoogleURLResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// GoogleCallbackRequest is the request body for POST /auth/google/callback.
type GoogleCallbackRequest struct {
	Code        string  `json:"code"`
	State       *string `json:"state,omitempty"`
	RedirectURI *string `json:"redirect_uri,omitempty"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPairResponse is the response for the callback and refresh endpoints.
type TokenPairResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user,omitempty"`
}

// CreateUserRequest is the request body for POST /api/v1/users.
type CreateUserRequest struct {
	Email              string         `json:"email"`
	FullName           *string        `json:"full_name,omitempty"`
	Password           *string        `json:"password,omitempty"`
	CreditBalance      *int           `json:"credit_balance,omitempty"`
	SubscriptionTierID *int           `json:"subscription_tier_id,omitempty"`
	IsAdmin            bool           `json:"is_admin"`
	Preferences        map[string]any `json:"preferences,omitempty"`
}

// UpdateUserRequest is the request body for PATCH /api/v1/users/{id}.
type UpdateUserRequest struct {
	FullName           *string        `json:"full_name,omitempty"`
	AvatarURL          *string        `json:"avatar_url,omitempty"`
	SubscriptionTierID *int           `json:"subscription_tier_id,omitempty"`
	IsActive           *bool          `json:"is_active,omitempty"`
	Preferences        map[string]any `json:"preferences,omitempty"`
}

// AdjustCreditsRequest is the request body for POST /api/v1/users/{id}/credits.
// Positive amounts add credits, negative amounts deduct them.
type AdjustCreditsRequest struct {
	Amount int     `json:"amount"`
	Reason *string `json:"reason,omitempty"`
}

// CreateTaskRequest is the request body for POST /api/v1/tasks.
type CreateTaskRequest struct {
	TaskType       string         `json:"task_type"`
	Priority       *TaskPriority  `json:"priority,omitempty"`
	RequestPayload map[string]any `json:"request_payload"`
	CampaignID     *uuid.UUID     `json:"campaign_id,omitempty"`
	Provider       *string        `json:"provider,omitempty"`
	ModelName      *string        `json:"model_name,omitempty"`
	CreditCost     *int           `json:"credit_cost,omitempty"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"`
}

// UpdateTaskRequest is the request body for PATCH /api/v1/tasks/{id}.
// Only pending tasks accept payload edits.
type UpdateTaskRequest struct {
	Priority       *TaskPriority  `json:"priority,omitempty"`
	RequestPayload map[string]any `json:"request_payload,omitempty"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"`
}

// CompleteTaskRequest is the worker-facing body for POST /api/v1/tasks/{id}/complete.
type CompleteTaskRequest struct {
	Result  map[string]any        `json:"result"`
	Content *CreateContentRequest `json:"content,omitempty"`
}

// FailTaskRequest is the worker-facing body for POST /api/v1/tasks/{id}/fail.
type FailTaskRequest struct {
	ErrorMessage string  `json:"error_message"`
	ErrorCode    *string `json:"error_code,omitempty"`
}

// CreateAgentRequest is the request body for POST /api/v1/agents.
type CreateAgentRequest struct {
	Name               string         `json:"name"`
	Description        *string        `json:"description,omitempty"`
	AgentType          AgentType      `json:"agent_type"`
	CategoryID         *int           `json:"category_id,omitempty"`
	TypeID             *int           `json:"type_id,omitempty"`
	Category           *string        `json:"category,omitempty"`
	IsPublic           bool           `json:"is_public"`
	Tags               map[string]any `json:"tags,omitempty"`
	Configuration      map[string]any `json:"configuration"`
	WorkflowDefinition map[string]any `json:"workflow_definition"`
	Triggers           map[string]any `json:"triggers,omitempty"`
	Variables          map[string]any `json:"variables,omitempty"`
}

// UpdateAgentRequest is the request body for PATCH /api/v1/agents/{id}.
type UpdateAgentRequest struct {
	Name               *string        `json:"name,omitempty"`
	Description        *string        `json:"description,omitempty"`
	CategoryID         *int           `json:"category_id,omitempty"`
	Category           *string        `json:"category,omitempty"`
	IsPublic           *bool          `json:"is_public,omitempty"`
	Tags               map[string]any `json:"tags,omitempty"`
	Configuration      map[string]any `json:"configuration,omitempty"`
	WorkflowDefinition map[string]any `json:"workflow_definition,omitempty"`
	Triggers           map[string]any `json:"triggers,omitempty"`
	Variables          map[string]any `json:"variables,omitempty"`
	VersionBump        *string        `json:"version_bump,omitempty"` // major, minor or patch
}

// RecordExecutionRequest is the request body for POST /api/v1/agents/{id}/executions.
type RecordExecutionRequest struct {
	ExecutionTimeMs int  `json:"execution_time_ms"`
	Success         bool `json:"success"`
}

// CreateCampaignRequest is the request body for POST /api/v1/campaigns.
type CreateCampaignRequest struct {
	Name             string         `json:"name"`
	Description      *string        `json:"description,omitempty"`
	CampaignTypeID   *int           `json:"campaign_type_id,omitempty"`
	CampaignType     *string        `json:"campaign_type,omitempty"`
	Channels         []string       `json:"channels"`
	TargetAudience   map[string]any `json:"target_audience,omitempty"`
	Objectives       map[string]any `json:"objectives"`
	BudgetCredits    *int           `json:"budget_credits,omitempty"`
	ContentTemplates map[string]any `json:"content_templates,omitempty"`
	Scheduling       map[string]any `json:"scheduling,omitempty"`
	AutomationRules  map[string]any `json:"automation_rules,omitempty"`
	StartDate        *time.Time     `json:"start_date,omitempty"`
	EndDate          *time.Time     `json:"end_date,omitempty"`
}

// UpdateCampaignRequest is the request body for PATCH /api/v1/campaigns/{id}.
type UpdateCampaignRequest struct {
	Name             *string        `json:"name,omitempty"`
	Description      *string        `json:"description,omitempty"`
	Channels         []string       `json:"channels,omitempty"`
	TargetAudience   map[string]any `json:"target_audience,omitempty"`
	Objectives       map[string]any `json:"objectives,omitempty"`
	BudgetCredits    *int           `json:"budget_credits,omitempty"`
	ContentTemplates map[string]any `json:"content_templates,omitempty"`
	Scheduling       map[string]any `json:"scheduling,omitempty"`
	AutomationRules  map[string]any `json:"automation_rules,omitempty"`
	StartDate        *time.Time     `json:"start_date,omitempty"`
	EndDate          *time.Time     `json:"end_date,omitempty"`
}

// CreateProviderKeyRequest is the request body for POST /api/v1/provider-keys.
// APIKey is the plaintext credential; it is encrypted before storage and
// never returned.
type CreateProviderKeyRequest struct {
	ProviderID  *int           `json:"provider_id,omitempty"`
	Provider    *string        `json:"provider,omitempty"`
	KeyName     string         `json:"key_name"`
	APIKey      string         `json:"api_key"`
	Permissions map[string]any `json:"permissions,omitempty"`
	UsageLimits map[string]any `json:"usage_limits,omitempty"`
	IsDefault   bool           `json:"is_default"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
}

// UpdateProviderKeyRequest is the request body for PATCH /api/v1/provider-keys/{id}.
type UpdateProviderKeyRequest struct {
	KeyName     *string        `json:"key_name,omitempty"`
	APIKey      *string        `json:"api_key,omitempty"` // rotates the stored credential
	Permissions map[string]any `json:"permissions,omitempty"`
	UsageLimits map[string]any `json:"usage_limits,omitempty"`
	IsActive    *bool          `json:"is_active,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
}

// ValidateProviderKeyRequest is the request body for
// POST /api/v1/provider-keys/{id}/validate.
type ValidateProviderKeyRequest struct {
	Status       ValidationStatus `json:"status"`
	ErrorMessage *string          `json:"error_message,omitempty"`
}

// ProviderKeyView is the serialized form of a provider key. The
// credential itself is replaced by its masked display form.
type ProviderKeyView struct {
	ProviderKey
	MaskedKey string `json:"masked_key"`
}

// NewProviderKeyView wraps a key for API responses.
func NewProviderKeyView(k ProviderKey) ProviderKeyView {
	return ProviderKeyView{ProviderKey: k, MaskedKey: k.MaskedKey()}
}

// CreateContentRequest describes a generated artifact attached to a
// task completion.
type CreateContentRequest struct {
	ContentType      ContentType    `json:"content_type"`
	MimeType         *string        `json:"mime_type,omitempty"`
	FileSizeBytes    *int64         `json:"file_size_bytes,omitempty"`
	FileURL          *string        `json:"file_url,omitempty"`
	ThumbnailURL     *string        `json:"thumbnail_url,omitempty"`
	OriginalFilename *string        `json:"original_filename,omitempty"`
	StoragePath      *string        `json:"storage_path,omitempty"`
	StorageProvider  *string        `json:"storage_provider,omitempty"`
	TextContent      *string        `json:"text_content,omitempty"`
	ContentMetadata  map[string]any `json:"content_metadata,omitempty"`
	WidthPx          *int           `json:"width_px,omitempty"`
	HeightPx         *int           `json:"height_px,omitempty"`
	DurationSeconds  *float64       `json:"duration_seconds,omitempty"`
	QualityScore     *float64       `json:"quality_score,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
}

// UpdateContentRequest is the request body for PATCH /api/v1/content/{id}.
// Only the user-facing flags of an artifact are editable.
type UpdateContentRequest struct {
	IsPublic   *bool      `json:"is_public,omitempty"`
	IsFavorite *bool      `json:"is_favorite,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis,omitempty"`
	Uptime   int64  `json:"uptime_seconds"`
}

// ValidateCreateTask checks structural constraints on a task creation
// request before it reaches storage.
func ValidateCreateTask(req CreateTaskRequest) error {
	if req.TaskType == "" {
		return fmt.Errorf("task_type is required")
	}
	if len(req.RequestPayload) == 0 {
		return fmt.Errorf("request_payload must not be empty")
	}
	if req.Priority != nil && !ValidTaskPriority(*req.Priority) {
		return fmt.Errorf("invalid priority %q", *req.Priority)
	}
	if req.CreditCost != nil && *req.CreditCost < 0 {
		return fmt.Errorf("credit_cost must not be negative")
	}
	if p, ok := req.RequestPayload["prompt"].(string); ok && len(p) > MaxPromptLen {
		return fmt.Errorf("prompt exceeds maximum length of %d bytes", MaxPromptLen)
	}
	return nil
}

// ValidateCreateAgent checks structural constraints on an agent
// creation request.
func ValidateCreateAgent(req CreateAgentRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(req.Name) > MaxNameLen {
		return fmt.Errorf("name exceeds maximum length of %d characters", MaxNameLen)
	}
	if !ValidAgentType(req.AgentType) {
		return fmt.Errorf("invalid agent_type %q", req.AgentType)
	}
	if len(req.Configuration) == 0 {
		return fmt.Errorf("configuration must not be empty")
	}
	if len(req.WorkflowDefinition) == 0 {
		return fmt.Errorf("workflow_definition must not be empty")
	}
	if req.Description != nil && len(*req.Description) > MaxDescriptionLen {
		return fmt.Errorf("description exceeds maximum length of %d characters", MaxDescriptionLen)
	}
	return nil
}

// ValidateCreateCampaign checks structural constraints on a campaign
// creation request.
func ValidateCreateCampaign(req CreateCampaignRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(req.Name) > MaxNameLen {
		return fmt.Errorf("name exceeds maximum length of %d characters", MaxNameLen)
	}
	if len(req.Channels) == 0 {
		return fmt.Errorf("channels must not be empty")
	}
	if len(req.Objectives) == 0 {
		return fmt.Errorf("objectives must not be empty")
	}
	if req.BudgetCredits != nil && *req.BudgetCredits <= 0 {
		return fmt.Errorf("budget_credits must be positive")
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return fmt.Errorf("end_date must not precede start_date")
	}
	return nil
}
