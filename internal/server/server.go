package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gestorlead/studio/internal/auth"
	"github.com/gestorlead/studio/internal/queue"
	"github.com/gestorlead/studio/internal/ratelimit"
	"github.com/gestorlead/studio/internal/secrets"
	"github.com/gestorlead/studio/internal/storage"
)

// Server is the Studio HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Optional fields (nil-safe): OAuth, Queue, Redis, Limiter.
type ServerConfig struct {
	// Required dependencies.
	DB     *storage.DB
	JWTMgr *auth.JWTManager
	KeyBox *secrets.Box
	Logger *slog.Logger

	// Optional dependencies (nil = disabled).
	OAuth   *auth.GoogleOAuth
	Queue   *queue.Client
	Redis   *redis.Client
	Limiter *ratelimit.Limiter

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	SignupCredits       int
	RateLimitPerMinute  int
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		JWTMgr:              cfg.JWTMgr,
		OAuth:               cfg.OAuth,
		KeyBox:              cfg.KeyBox,
		Queue:               cfg.Queue,
		Redis:               cfg.Redis,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		SignupCredits:       cfg.SignupCredits,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	perMinute := cfg.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = 120
	}

	// Rate limit rules. The token-issuing endpoints are keyed by IP;
	// everything behind auth is keyed by user (admins exempt).
	authRL := ratelimit.MiddlewareWithRequestID(cfg.Limiter, ratelimit.Rule{
		Prefix: "auth", Limit: 20, Window: time.Minute,
	}, ratelimit.IPKeyFunc, reqIDFunc)
	apiRL := ratelimit.MiddlewareWithRequestID(cfg.Limiter, ratelimit.Rule{
		Prefix: "api", Limit: perMinute, Window: time.Minute,
	}, userKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Auth endpoints (no token required, rate limited by IP).
	mux.Handle("POST /api/v1/auth/google/url", authRL(http.HandlerFunc(h.HandleGoogleURL)))
	mux.Handle("POST /api/v1/auth/google/callback", authRL(http.HandlerFunc(h.HandleGoogleCallback)))
	mux.Handle("POST /api/v1/auth/login", authRL(http.HandlerFunc(h.HandleLogin)))
	mux.Handle("POST /api/v1/auth/refresh", authRL(http.HandlerFunc(h.HandleRefresh)))

	// Session endpoints (token required).
	mux.Handle("GET /api/v1/auth/me", apiRL(http.HandlerFunc(h.HandleMe)))
	mux.Handle("POST /api/v1/auth/logout", apiRL(http.HandlerFunc(h.HandleLogout)))
	mux.Handle("GET /api/v1/auth/verify", apiRL(http.HandlerFunc(h.HandleVerify)))

	// User management (admin-only, no rate limit — admin is exempt).
	adminOnly := requireAdmin
	mux.Handle("GET /api/v1/users", adminOnly(http.HandlerFunc(h.HandleListUsers)))
	mux.Handle("POST /api/v1/users", adminOnly(http.HandlerFunc(h.HandleCreateUser)))
	mux.Handle("GET /api/v1/users/{id}", adminOnly(http.HandlerFunc(h.HandleGetUser)))
	mux.Handle("PATCH /api/v1/users/{id}", adminOnly(http.HandlerFunc(h.HandleUpdateUser)))
	mux.Handle("DELETE /api/v1/users/{id}", adminOnly(http.HandlerFunc(h.HandleDeleteUser)))
	mux.Handle("POST /api/v1/users/{id}/credits", adminOnly(http.HandlerFunc(h.HandleAdjustCredits)))
	mux.Handle("POST /api/v1/users/{id}/verify-email", adminOnly(http.HandlerFunc(h.HandleVerifyUserEmail)))

	// Tasks.
	mux.Handle("GET /api/v1/tasks", apiRL(http.HandlerFunc(h.HandleListTasks)))
	mux.Handle("POST /api/v1/tasks", apiRL(http.HandlerFunc(h.HandleCreateTask)))
	mux.Handle("GET /api/v1/tasks/{id}", apiRL(http.HandlerFunc(h.HandleGetTask)))
	mux.Handle("PATCH /api/v1/tasks/{id}", apiRL(http.HandlerFunc(h.HandleUpdateTask)))
	mux.Handle("POST /api/v1/tasks/{id}/cancel", apiRL(http.HandlerFunc(h.HandleCancelTask)))
	mux.Handle("POST /api/v1/tasks/{id}/retry", apiRL(http.HandlerFunc(h.HandleRetryTask)))
	mux.Handle("POST /api/v1/tasks/{id}/complete", apiRL(http.HandlerFunc(h.HandleCompleteTask)))
	mux.Handle("POST /api/v1/tasks/{id}/fail", apiRL(http.HandlerFunc(h.HandleFailTask)))
	mux.Handle("GET /api/v1/tasks/{id}/content", apiRL(http.HandlerFunc(h.HandleGetTaskContent)))

	// Agents.
	mux.Handle("GET /api/v1/agents", apiRL(http.HandlerFunc(h.HandleListAgents)))
	mux.Handle("POST /api/v1/agents", apiRL(http.HandlerFunc(h.HandleCreateAgent)))
	mux.Handle("GET /api/v1/agents/{id}", apiRL(http.HandlerFunc(h.HandleGetAgent)))
	mux.Handle("PATCH /api/v1/agents/{id}", apiRL(http.HandlerFunc(h.HandleUpdateAgent)))
	mux.Handle("DELETE /api/v1/agents/{id}", apiRL(http.HandlerFunc(h.HandleDeleteAgent)))
	mux.Handle("POST /api/v1/agents/{id}/activate", apiRL(http.HandlerFunc(h.HandleActivateAgent)))
	mux.Handle("POST /api/v1/agents/{id}/deactivate", apiRL(http.HandlerFunc(h.HandleDeactivateAgent)))
	mux.Handle("POST /api/v1/agents/{id}/publish", apiRL(http.HandlerFunc(h.HandlePublishAgent)))
	mux.Handle("POST /api/v1/agents/{id}/archive", apiRL(http.HandlerFunc(h.HandleArchiveAgent)))
	mux.Handle("POST /api/v1/agents/{id}/executions", apiRL(http.HandlerFunc(h.HandleRecordExecution)))

	// Campaigns.
	mux.Handle("GET /api/v1/campaigns", apiRL(http.HandlerFunc(h.HandleListCampaigns)))
	mux.Handle("POST /api/v1/campaigns", apiRL(http.HandlerFunc(h.HandleCreateCampaign)))
	mux.Handle("GET /api/v1/campaigns/{id}", apiRL(http.HandlerFunc(h.HandleGetCampaign)))
	mux.Handle("PATCH /api/v1/campaigns/{id}", apiRL(http.HandlerFunc(h.HandleUpdateCampaign)))
	mux.Handle("DELETE /api/v1/campaigns/{id}", apiRL(http.HandlerFunc(h.HandleDeleteCampaign)))
	mux.Handle("POST /api/v1/campaigns/{id}/launch", apiRL(http.HandlerFunc(h.HandleLaunchCampaign)))
	mux.Handle("POST /api/v1/campaigns/{id}/pause", apiRL(http.HandlerFunc(h.HandlePauseCampaign)))
	mux.Handle("POST /api/v1/campaigns/{id}/resume", apiRL(http.HandlerFunc(h.HandleResumeCampaign)))
	mux.Handle("POST /api/v1/campaigns/{id}/complete", apiRL(http.HandlerFunc(h.HandleCompleteCampaign)))
	mux.Handle("POST /api/v1/campaigns/{id}/cancel", apiRL(http.HandlerFunc(h.HandleCancelCampaign)))
	mux.Handle("POST /api/v1/campaigns/{id}/archive", apiRL(http.HandlerFunc(h.HandleArchiveCampaign)))

	// Provider keys.
	mux.Handle("GET /api/v1/provider-keys", apiRL(http.HandlerFunc(h.HandleListProviderKeys)))
	mux.Handle("POST /api/v1/provider-keys", apiRL(http.HandlerFunc(h.HandleCreateProviderKey)))
	mux.Handle("GET /api/v1/provider-keys/{id}", apiRL(http.HandlerFunc(h.HandleGetProviderKey)))
	mux.Handle("PATCH /api/v1/provider-keys/{id}", apiRL(http.HandlerFunc(h.HandleUpdateProviderKey)))
	mux.Handle("DELETE /api/v1/provider-keys/{id}", apiRL(http.HandlerFunc(h.HandleDeleteProviderKey)))
	mux.Handle("POST /api/v1/provider-keys/{id}/validate", apiRL(http.HandlerFunc(h.HandleValidateProviderKey)))
	mux.Handle("POST /api/v1/provider-keys/{id}/default", apiRL(http.HandlerFunc(h.HandleSetDefaultProviderKey)))

	// Generated content.
	mux.Handle("GET /api/v1/content", apiRL(http.HandlerFunc(h.HandleListContent)))
	mux.Handle("GET /api/v1/content/{id}", apiRL(http.HandlerFunc(h.HandleGetContent)))
	mux.Handle("PATCH /api/v1/content/{id}", apiRL(http.HandlerFunc(h.HandleUpdateContent)))
	mux.Handle("DELETE /api/v1/content/{id}", apiRL(http.HandlerFunc(h.HandleDeleteContent)))
	mux.Handle("POST /api/v1/content/{id}/download", apiRL(http.HandlerFunc(h.HandleRecordDownload)))

	// Lookup tables.
	mux.Handle("GET /api/v1/lookups", apiRL(http.HandlerFunc(h.HandleLookups)))
	mux.Handle("GET /api/v1/lookups/subscription-tiers", apiRL(http.HandlerFunc(h.HandleListSubscriptionTiers)))
	mux.Handle("GET /api/v1/lookups/ai-providers", apiRL(http.HandlerFunc(h.HandleListAIProviders)))
	mux.Handle("GET /api/v1/lookups/task-types", apiRL(http.HandlerFunc(h.HandleListTaskTypes)))
	mux.Handle("GET /api/v1/lookups/provider-models", apiRL(http.HandlerFunc(h.HandleListProviderModels)))
	mux.Handle("GET /api/v1/lookups/agent-categories", apiRL(http.HandlerFunc(h.HandleListAgentCategories)))
	mux.Handle("GET /api/v1/lookups/agent-types", apiRL(http.HandlerFunc(h.HandleListAgentTypes)))
	mux.Handle("GET /api/v1/lookups/campaign-types", apiRL(http.HandlerFunc(h.HandleListCampaignTypes)))

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// userKeyFunc extracts the user ID from the request context for rate
// limiting. Returns empty string for admins (exempt from rate limits).
func userKeyFunc(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	if claims.IsAdmin {
		return ""
	}
	return strconv.FormatInt(claims.UserID, 10)
}

// Handlers returns the underlying Handlers for access in tests.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
