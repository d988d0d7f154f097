package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gestorlead/studio/internal/auth"
	"github.com/gestorlead/studio/internal/model"
	"github.com/gestorlead/studio/internal/secrets"
	"github.com/gestorlead/studio/internal/server"
	"github.com/gestorlead/studio/internal/storage"
)

var (
	testSrv *httptest.Server
	testDB  *storage.DB
	jwtM    *auth.JWTManager
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "studio",
			"POSTGRES_PASSWORD": "studio",
			"POSTGRES_DB":       "studio",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")
	dsn := fmt.Sprintf("postgres://studio:studio@%s:%s/studio?sslmode=disable", host, port.Port())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	testDB, err = storage.New(ctx, dsn, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create DB: %v\n", err)
		os.Exit(1)
	}
	if err := testDB.RunMigrations(ctx, os.DirFS("../../migrations")); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	jwtM, _ = auth.NewJWTManager("", "", 15*time.Minute, 24*time.Hour)
	keyBox, _ := secrets.NewBox("server-test-secret")

	srv := server.New(server.ServerConfig{
		DB:                  testDB,
		JWTMgr:              jwtM,
		KeyBox:              keyBox,
		Logger:              logger,
		Version:             "test",
		SignupCredits:       100,
		MaxRequestBodyBytes: 1 << 20,
	})
	testSrv = httptest.NewServer(srv.Handler())

	code := m.Run()

	testSrv.Close()
	testDB.Close()
	_ = container.Terminate(context.Background())
	os.Exit(code)
}

// newUser inserts a user and mints an access token for it.
func newUser(t *testing.T, admin bool, balance int) (model.User, string) {
	t.Helper()
	u, err := testDB.CreateUser(context.Background(), model.User{
		Email:         fmt.Sprintf("%s@test.local", uuid.New().String()[:8]),
		CreditBalance: balance,
		IsActive:      true,
		IsAdmin:       admin,
	})
	require.NoError(t, err)
	access, _, _, err := jwtM.IssueTokenPair(u)
	require.NoError(t, err)
	return u, access
}

// do issues a request against the test server and returns the response
// with its body consumed.
func do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, testSrv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, data
}

// decodeData unwraps the data field of the response envelope.
func decodeData(t *testing.T, body []byte, target any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, target))
}

func TestHealth(t *testing.T) {
	resp, body := do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health model.HealthResponse
	decodeData(t, body, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Postgres)
	assert.Empty(t, health.Redis)
}

func TestAuthRequired(t *testing.T) {
	resp, _ := do(t, http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, "/api/v1/tasks", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGoogleURLNotConfigured(t *testing.T) {
	resp, _ := do(t, http.MethodPost, "/api/v1/auth/google/url", "", map[string]any{})
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestRefreshFlow(t *testing.T) {
	u, access := newUser(t, false, 10)
	_, refresh, _, err := jwtM.IssueTokenPair(u)
	require.NoError(t, err)

	resp, body := do(t, http.MethodPost, "/api/v1/auth/refresh", "", model.RefreshRequest{RefreshToken: refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair model.TokenPairResponse
	decodeData(t, body, &pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)
	require.NotNil(t, pair.User)
	assert.Equal(t, u.ID, pair.User.ID)

	// An access token must not pass as a refresh token.
	resp, _ = do(t, http.MethodPost, "/api/v1/auth/refresh", "", model.RefreshRequest{RefreshToken: access})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshRejectsDeactivatedAccount(t *testing.T) {
	u, _ := newUser(t, false, 10)
	_, refresh, _, err := jwtM.IssueTokenPair(u)
	require.NoError(t, err)

	u.Deactivate()
	_, err = testDB.UpdateUser(context.Background(), u)
	require.NoError(t, err)

	resp, _ := do(t, http.MethodPost, "/api/v1/auth/refresh", "", model.RefreshRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMeAndVerify(t *testing.T) {
	u, token := newUser(t, false, 42)

	resp, body := do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me model.User
	decodeData(t, body, &me)
	assert.Equal(t, u.Email, me.Email)
	assert.Equal(t, 42, me.CreditBalance)

	resp, body = do(t, http.MethodGet, "/api/v1/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var claims struct {
		UserID  int64  `json:"user_id"`
		IsAdmin bool   `json:"is_admin"`
		Email   string `json:"email"`
	}
	decodeData(t, body, &claims)
	assert.Equal(t, u.ID, claims.UserID)
	assert.False(t, claims.IsAdmin)
}

func TestUserAdminCRUD(t *testing.T) {
	admin, adminToken := newUser(t, true, 0)
	_, userToken := newUser(t, false, 0)

	// Non-admins are locked out of user management.
	resp, _ := do(t, http.MethodGet, "/api/v1/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	email := fmt.Sprintf("%s@test.local", uuid.New().String()[:8])
	resp, body := do(t, http.MethodPost, "/api/v1/users", adminToken, model.CreateUserRequest{Email: email})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.User
	decodeData(t, body, &created)
	assert.Equal(t, 100, created.CreditBalance) // signup grant

	// Patch.
	name := "Test User"
	resp, body = do(t, http.MethodPatch, fmt.Sprintf("/api/v1/users/%d", created.ID), adminToken,
		model.UpdateUserRequest{FullName: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated model.User
	decodeData(t, body, &updated)
	require.NotNil(t, updated.FullName)
	assert.Equal(t, name, *updated.FullName)

	// Credit adjustment.
	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/credits", created.ID), adminToken,
		model.AdjustCreditsRequest{Amount: 50})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &updated)
	assert.Equal(t, 150, updated.CreditBalance)

	resp, _ = do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/credits", created.ID), adminToken,
		model.AdjustCreditsRequest{Amount: 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Deducting below zero is rejected.
	resp, _ = do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/credits", created.ID), adminToken,
		model.AdjustCreditsRequest{Amount: -1000})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	// Self-delete is blocked.
	resp, _ = do(t, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", admin.ID), adminToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", created.ID), adminToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", created.ID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateTaskDebitsCredits(t *testing.T) {
	_, token := newUser(t, false, 10)

	resp, body := do(t, http.MethodPost, "/api/v1/tasks", token, model.CreateTaskRequest{
		TaskType:       "text_generation", // seeded cost 1
		RequestPayload: map[string]any{"prompt": "write a slogan"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var task model.Task
	decodeData(t, body, &task)
	assert.Equal(t, model.TaskPending, task.Status)
	assert.Equal(t, 1, task.CreditCost)

	resp, body = do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me model.User
	decodeData(t, body, &me)
	assert.Equal(t, 9, me.CreditBalance)
}

func TestCreateTaskInsufficientCredits(t *testing.T) {
	_, token := newUser(t, false, 2)

	cost := 5
	resp, body := do(t, http.MethodPost, "/api/v1/tasks", token, model.CreateTaskRequest{
		TaskType:       "text_generation",
		RequestPayload: map[string]any{"prompt": "too expensive"},
		CreditCost:     &cost,
	})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	var apiErr model.APIError
	require.NoError(t, json.Unmarshal(body, &apiErr))
	assert.Equal(t, model.ErrCodePaymentDue, apiErr.Error.Code)
}

func TestCreateTaskUnknownType(t *testing.T) {
	_, token := newUser(t, false, 10)

	resp, _ := do(t, http.MethodPost, "/api/v1/tasks", token, model.CreateTaskRequest{
		TaskType:       "mind_reading",
		RequestPayload: map[string]any{"prompt": "hm"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTaskCompleteWithContent(t *testing.T) {
	_, token := newUser(t, false, 10)

	resp, body := do(t, http.MethodPost, "/api/v1/tasks", token, model.CreateTaskRequest{
		TaskType:       "text_generation",
		RequestPayload: map[string]any{"prompt": "haiku about spring"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task model.Task
	decodeData(t, body, &task)

	text := "cherry petals fall"
	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/complete", task.ID), token,
		model.CompleteTaskRequest{
			Result: map[string]any{"tokens": 12},
			Content: &model.CreateContentRequest{
				ContentType: model.ContentText,
				TextContent: &text,
			},
		})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &task)
	assert.Equal(t, model.TaskCompleted, task.Status)

	resp, body = do(t, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%s/content", task.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var content model.GeneratedContent
	decodeData(t, body, &content)
	assert.Equal(t, task.ID, content.TaskID)
	require.NotNil(t, content.TextContent)
	assert.Equal(t, text, *content.TextContent)

	// A finished task cannot be completed again.
	resp, _ = do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/complete", task.ID), token,
		model.CompleteTaskRequest{Result: map[string]any{}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTaskFailAndRetry(t *testing.T) {
	_, token := newUser(t, false, 10)

	resp, body := do(t, http.MethodPost, "/api/v1/tasks", token, model.CreateTaskRequest{
		TaskType:       "text_generation",
		RequestPayload: map[string]any{"prompt": "will fail"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task model.Task
	decodeData(t, body, &task)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/fail", task.ID), token,
		model.FailTaskRequest{ErrorMessage: "provider timeout"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &task)
	assert.Equal(t, model.TaskFailed, task.Status)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/retry", task.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &task)
	assert.Equal(t, model.TaskPending, task.Status)
	assert.Equal(t, 1, task.RetryCount)
}

func TestTaskCancelAndEditRules(t *testing.T) {
	_, token := newUser(t, false, 10)

	resp, body := do(t, http.MethodPost, "/api/v1/tasks", token, model.CreateTaskRequest{
		TaskType:       "text_generation",
		RequestPayload: map[string]any{"prompt": "original"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task model.Task
	decodeData(t, body, &task)

	// Pending tasks accept edits.
	resp, body = do(t, http.MethodPatch, fmt.Sprintf("/api/v1/tasks/%s", task.ID), token,
		model.UpdateTaskRequest{RequestPayload: map[string]any{"prompt": "edited"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &task)
	assert.Equal(t, "edited", task.RequestPayload["prompt"])

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/cancel", task.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &task)
	assert.Equal(t, model.TaskCancelled, task.Status)

	// Cancelled tasks are frozen.
	resp, _ = do(t, http.MethodPatch, fmt.Sprintf("/api/v1/tasks/%s", task.ID), token,
		model.UpdateTaskRequest{RequestPayload: map[string]any{"prompt": "again"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestTaskOwnershipScoping(t *testing.T) {
	_, ownerToken := newUser(t, false, 10)
	_, otherToken := newUser(t, false, 10)

	resp, body := do(t, http.MethodPost, "/api/v1/tasks", ownerToken, model.CreateTaskRequest{
		TaskType:       "text_generation",
		RequestPayload: map[string]any{"prompt": "private"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task model.Task
	decodeData(t, body, &task)

	resp, _ = do(t, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%s", task.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCampaignTaskBudget(t *testing.T) {
	_, token := newUser(t, false, 100)

	budget := 3
	resp, body := do(t, http.MethodPost, "/api/v1/campaigns", token, model.CreateCampaignRequest{
		Name:          "Budget Test",
		Channels:      []string{"email"},
		Objectives:    map[string]any{"goal": "signups"},
		BudgetCredits: &budget,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var campaign model.Campaign
	decodeData(t, body, &campaign)

	resp, _ = do(t, http.MethodPost, "/api/v1/tasks", token, model.CreateTaskRequest{
		TaskType:       "copywriting", // seeded cost 2
		RequestPayload: map[string]any{"prompt": "ad copy"},
		CampaignID:     &campaign.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Second task would take spend to 4 > 3.
	resp, body = do(t, http.MethodPost, "/api/v1/tasks", token, model.CreateTaskRequest{
		TaskType:       "copywriting",
		RequestPayload: map[string]any{"prompt": "more ad copy"},
		CampaignID:     &campaign.ID,
	})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	var apiErr model.APIError
	require.NoError(t, json.Unmarshal(body, &apiErr))
	assert.Equal(t, model.ErrCodePaymentDue, apiErr.Error.Code)

	resp, body = do(t, http.MethodGet, fmt.Sprintf("/api/v1/campaigns/%s", campaign.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &campaign)
	assert.Equal(t, 2, campaign.SpentCredits)
}

func TestAgentLifecycle(t *testing.T) {
	_, token := newUser(t, false, 0)

	resp, body := do(t, http.MethodPost, "/api/v1/agents", token, model.CreateAgentRequest{
		Name:               "Poster",
		AgentType:          model.AgentWorkflow,
		Configuration:      map[string]any{"model": "gpt-4"},
		WorkflowDefinition: map[string]any{"steps": []any{"draft", "review"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var agent model.Agent
	decodeData(t, body, &agent)
	assert.Equal(t, model.AgentDraft, agent.Status)
	assert.Equal(t, "1.0.0", agent.Version)

	// Publishing a draft is rejected.
	resp, _ = do(t, http.MethodPost, fmt.Sprintf("/api/v1/agents/%s/publish", agent.ID), token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/agents/%s/activate", agent.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &agent)
	assert.Equal(t, model.AgentActive, agent.Status)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/agents/%s/publish", agent.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &agent)
	assert.Equal(t, model.AgentPublished, agent.Status)
	assert.True(t, agent.IsPublic)
	assert.NotNil(t, agent.PublishedAt)

	// Version bump on edit.
	name := "Poster v2"
	bump := "minor"
	resp, body = do(t, http.MethodPatch, fmt.Sprintf("/api/v1/agents/%s", agent.ID), token,
		model.UpdateAgentRequest{Name: &name, VersionBump: &bump})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &agent)
	assert.Equal(t, "1.1.0", agent.Version)

	// Execution stats.
	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/agents/%s/executions", agent.ID), token,
		model.RecordExecutionRequest{ExecutionTimeMs: 1200, Success: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &agent)
	assert.Equal(t, 1, agent.ExecutionCount)
	require.NotNil(t, agent.SuccessRate)
	assert.InDelta(t, 1.0, *agent.SuccessRate, 0.001)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/agents/%s/archive", agent.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &agent)
	assert.Equal(t, model.AgentArchived, agent.Status)
}

func TestAgentPublicVisibility(t *testing.T) {
	_, ownerToken := newUser(t, false, 0)
	_, otherToken := newUser(t, false, 0)

	resp, body := do(t, http.MethodPost, "/api/v1/agents", ownerToken, model.CreateAgentRequest{
		Name:               "Shared",
		AgentType:          model.AgentWorkflow,
		Configuration:      map[string]any{"model": "gpt-4"},
		WorkflowDefinition: map[string]any{"steps": []any{"draft"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var agent model.Agent
	decodeData(t, body, &agent)

	// Invisible to others while unpublished.
	resp, _ = do(t, http.MethodGet, fmt.Sprintf("/api/v1/agents/%s", agent.ID), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, fmt.Sprintf("/api/v1/agents/%s/activate", agent.ID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, fmt.Sprintf("/api/v1/agents/%s/publish", agent.ID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, fmt.Sprintf("/api/v1/agents/%s", agent.ID), otherToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Visible, but not editable.
	newName := "Hijacked"
	resp, _ = do(t, http.MethodPatch, fmt.Sprintf("/api/v1/agents/%s", agent.ID), otherToken,
		model.UpdateAgentRequest{Name: &newName})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCampaignLifecycle(t *testing.T) {
	_, token := newUser(t, false, 0)

	resp, body := do(t, http.MethodPost, "/api/v1/campaigns", token, model.CreateCampaignRequest{
		Name:       "Spring Launch",
		Channels:   []string{"email", "instagram"},
		Objectives: map[string]any{"goal": "awareness"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var campaign model.Campaign
	decodeData(t, body, &campaign)
	assert.Equal(t, model.CampaignDraft, campaign.Status)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%s/launch", campaign.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &campaign)
	assert.Equal(t, model.CampaignActive, campaign.Status)
	assert.NotNil(t, campaign.LaunchedAt)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%s/pause", campaign.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &campaign)
	assert.Equal(t, model.CampaignPaused, campaign.Status)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%s/resume", campaign.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &campaign)
	assert.Equal(t, model.CampaignActive, campaign.Status)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%s/complete", campaign.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &campaign)
	assert.Equal(t, model.CampaignCompleted, campaign.Status)
	assert.NotNil(t, campaign.CompletedAt)

	// Completed campaigns cannot be cancelled, only archived.
	resp, _ = do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%s/cancel", campaign.ID), token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%s/archive", campaign.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &campaign)
	assert.Equal(t, model.CampaignArchived, campaign.Status)
}

func TestProviderKeys(t *testing.T) {
	_, token := newUser(t, false, 0)

	resp, body := do(t, http.MethodPost, "/api/v1/provider-keys", token, model.CreateProviderKeyRequest{
		KeyName:   "openai main",
		APIKey:    "sk-test-1234567890abcdef",
		IsDefault: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// The plaintext never appears in the response.
	assert.NotContains(t, string(body), "sk-test-1234567890abcdef")

	var view model.ProviderKeyView
	decodeData(t, body, &view)
	assert.True(t, view.IsActive)
	assert.True(t, view.IsDefault)
	assert.NotEmpty(t, view.MaskedKey)
	assert.Contains(t, view.MaskedKey, "****")

	// Record a validation result.
	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/provider-keys/%s/validate", view.ID), token,
		model.ValidateProviderKeyRequest{Status: model.ValidationValid})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &view)
	require.NotNil(t, view.ValidationStatus)
	assert.Equal(t, model.ValidationValid, *view.ValidationStatus)

	// Rotation clears validation state.
	rotated := "sk-test-fedcba0987654321"
	resp, body = do(t, http.MethodPatch, fmt.Sprintf("/api/v1/provider-keys/%s", view.ID), token,
		model.UpdateProviderKeyRequest{APIKey: &rotated})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	oldMask := view.MaskedKey
	decodeData(t, body, &view)
	assert.Nil(t, view.ValidationStatus)
	assert.NotEqual(t, oldMask, view.MaskedKey)

	resp, _ = do(t, http.MethodDelete, fmt.Sprintf("/api/v1/provider-keys/%s", view.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestDefaultProviderKeyIsExclusive(t *testing.T) {
	_, token := newUser(t, false, 0)
	provider := "openai"

	var first, second model.ProviderKeyView
	resp, body := do(t, http.MethodPost, "/api/v1/provider-keys", token, model.CreateProviderKeyRequest{
		KeyName: "first", APIKey: "sk-first-000011112222", Provider: &provider, IsDefault: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeData(t, body, &first)

	resp, body = do(t, http.MethodPost, "/api/v1/provider-keys", token, model.CreateProviderKeyRequest{
		KeyName: "second", APIKey: "sk-second-333344445555", Provider: &provider,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeData(t, body, &second)
	assert.False(t, second.IsDefault)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/provider-keys/%s/default", second.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &second)
	assert.True(t, second.IsDefault)

	resp, body = do(t, http.MethodGet, fmt.Sprintf("/api/v1/provider-keys/%s", first.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &first)
	assert.False(t, first.IsDefault)
}

func TestContentFlagsAndDownload(t *testing.T) {
	_, token := newUser(t, false, 10)

	resp, body := do(t, http.MethodPost, "/api/v1/tasks", token, model.CreateTaskRequest{
		TaskType:       "text_generation",
		RequestPayload: map[string]any{"prompt": "tagline"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task model.Task
	decodeData(t, body, &task)

	text := "just do marketing"
	resp, _ = do(t, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%s/complete", task.ID), token,
		model.CompleteTaskRequest{
			Result:  map[string]any{"ok": true},
			Content: &model.CreateContentRequest{ContentType: model.ContentText, TextContent: &text},
		})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%s/content", task.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var content model.GeneratedContent
	decodeData(t, body, &content)

	fav := true
	resp, body = do(t, http.MethodPatch, fmt.Sprintf("/api/v1/content/%s", content.ID), token,
		model.UpdateContentRequest{IsFavorite: &fav, Tags: []string{"tagline"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &content)
	assert.True(t, content.IsFavorite)
	assert.Equal(t, []string{"tagline"}, content.Tags)

	// Favorite filter.
	resp, body = do(t, http.MethodGet, "/api/v1/content?favorite=true", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Data []model.GeneratedContent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, content.ID, list.Data[0].ID)

	resp, body = do(t, http.MethodPost, fmt.Sprintf("/api/v1/content/%s/download", content.ID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &content)
	assert.Equal(t, 1, content.DownloadCount)

	resp, _ = do(t, http.MethodDelete, fmt.Sprintf("/api/v1/content/%s", content.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestLookups(t *testing.T) {
	_, token := newUser(t, false, 0)

	resp, body := do(t, http.MethodGet, "/api/v1/lookups", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lookups model.Lookups
	decodeData(t, body, &lookups)
	assert.NotEmpty(t, lookups.SubscriptionTiers)
	assert.NotEmpty(t, lookups.AIProviders)
	assert.NotEmpty(t, lookups.TaskTypes)
	assert.NotEmpty(t, lookups.ProviderModels)
	assert.NotEmpty(t, lookups.AgentCategories)
	assert.NotEmpty(t, lookups.AgentTypes)
	assert.NotEmpty(t, lookups.CampaignTypes)

	resp, body = do(t, http.MethodGet, "/api/v1/lookups/task-types", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var taskTypes []model.TaskTypeInfo
	decodeData(t, body, &taskTypes)
	found := false
	for _, tt := range taskTypes {
		if tt.TypeName == "text_generation" {
			found = true
			assert.Equal(t, 1, tt.DefaultCreditCost)
		}
	}
	assert.True(t, found)
}

func TestListPagination(t *testing.T) {
	_, token := newUser(t, false, 100)

	for i := 0; i < 3; i++ {
		resp, _ := do(t, http.MethodPost, "/api/v1/tasks", token, model.CreateTaskRequest{
			TaskType:       "text_generation",
			RequestPayload: map[string]any{"prompt": fmt.Sprintf("task %d", i)},
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := do(t, http.MethodGet, "/api/v1/tasks?limit=2&offset=0", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list model.ListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.NotNil(t, list.Total)
	assert.Equal(t, 3, *list.Total)
	assert.True(t, list.HasMore)
	assert.Equal(t, 2, list.Limit)

	resp, _ = do(t, http.MethodGet, "/api/v1/tasks?limit=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	_, adminToken := newUser(t, true, 0)

	email := fmt.Sprintf("%s@test.local", uuid.New().String()[:8])
	resp, _ := do(t, http.MethodPost, "/api/v1/users", adminToken, model.CreateUserRequest{Email: email})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodPost, "/api/v1/users", adminToken, model.CreateUserRequest{Email: email})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var apiErr model.APIError
	require.NoError(t, json.Unmarshal(body, &apiErr))
	assert.Equal(t, model.ErrCodeConflict, apiErr.Error.Code)
}

func TestPasswordLogin(t *testing.T) {
	_, adminToken := newUser(t, true, 0)

	email := fmt.Sprintf("%s@test.local", uuid.New().String()[:8])
	password := "correct horse battery staple"
	resp, _ := do(t, http.MethodPost, "/api/v1/users", adminToken, model.CreateUserRequest{
		Email:    email,
		Password: &password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{
		Email:    email,
		Password: password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair model.TokenPairResponse
	decodeData(t, body, &pair)
	assert.NotEmpty(t, pair.AccessToken)
	require.NotNil(t, pair.User)
	assert.Equal(t, email, pair.User.Email)

	// The minted token works against an authenticated endpoint.
	resp, _ = do(t, http.MethodGet, "/api/v1/auth/me", pair.AccessToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{
		Email:    email,
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Accounts without a password hash are rejected the same way.
	googleOnly, _ := newUser(t, false, 0)
	resp, _ = do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{
		Email:    googleOnly.Email,
		Password: password,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCampaignScheduledFromFutureStartDate(t *testing.T) {
	_, token := newUser(t, false, 0)

	start := time.Now().UTC().Add(48 * time.Hour)
	resp, body := do(t, http.MethodPost, "/api/v1/campaigns", token, model.CreateCampaignRequest{
		Name:       "holiday teaser",
		Channels:   []string{"instagram"},
		Objectives: map[string]any{"goal": "awareness"},
		StartDate:  &start,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var campaign model.Campaign
	decodeData(t, body, &campaign)
	assert.Equal(t, model.CampaignScheduled, campaign.Status)

	// Launch accepts scheduled campaigns.
	resp, body = do(t, http.MethodPost, "/api/v1/campaigns/"+campaign.ID.String()+"/launch", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &campaign)
	assert.Equal(t, model.CampaignActive, campaign.Status)
	assert.NotNil(t, campaign.LaunchedAt)
}
