package studio

import (
	"log/slog"

	"github.com/gestorlead/studio/internal/queue"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port        int
	databaseURL string
	redisURL    string
	logger      *slog.Logger
	version     string
	executor    queue.Executor
}

// WithPort overrides the TCP port from config (STUDIO_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithRedisURL overrides the Redis connection string from config (REDIS_URL env var).
// A non-empty value enables the background task queue and API rate limiting.
func WithRedisURL(url string) Option {
	return func(o *resolvedOptions) { o.redisURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithExecutor replaces the task executor used by the background worker.
// The default executor echoes the task prompt back as its result, which
// keeps the pipeline runnable without provider credentials.
func WithExecutor(e queue.Executor) Option {
	return func(o *resolvedOptions) { o.executor = e }
}
