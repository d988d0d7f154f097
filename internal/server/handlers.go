package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gestorlead/studio/internal/auth"
	"github.com/gestorlead/studio/internal/model"
	"github.com/gestorlead/studio/internal/queue"
	"github.com/gestorlead/studio/internal/secrets"
	"github.com/gestorlead/studio/internal/storage"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB
	jwtMgr              *auth.JWTManager
	oauth               *auth.GoogleOAuth
	keyBox              *secrets.Box
	queue               *queue.Client
	redis               *redis.Client
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	signupCredits       int
	maxRequestBodyBytes int64
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): OAuth, Queue, Redis.
type HandlersDeps struct {
	DB                  *storage.DB
	JWTMgr              *auth.JWTManager
	OAuth               *auth.GoogleOAuth
	KeyBox              *secrets.Box
	Queue               *queue.Client
	Redis               *redis.Client
	Logger              *slog.Logger
	Version             string
	SignupCredits       int
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		jwtMgr:              d.JWTMgr,
		oauth:               d.OAuth,
		keyBox:              d.KeyBox,
		queue:               d.Queue,
		redis:               d.Redis,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		signupCredits:       d.SignupCredits,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:   "ok",
		Version:  h.version,
		Postgres: "ok",
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}

	if err := h.db.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Postgres = "unreachable"
	}
	if h.redis != nil {
		resp.Redis = "ok"
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			resp.Status = "degraded"
			resp.Redis = "unreachable"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

// pathUUID parses the {id} path value. Writes a 400 and returns false
// on malformed input.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// pathInt64 parses a numeric path value.
func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || n <= 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid "+name)
		return 0, false
	}
	return n, true
}

// pageParams reads limit/offset query parameters. Range clamping is
// the storage layer's job; this only rejects non-numeric input.
func pageParams(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid limit")
			return 0, 0, false
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid offset")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
