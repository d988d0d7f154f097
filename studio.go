// Package studio is the public API for embedding the GestorLead Studio server.
//
// Consumers import this package to construct and run the server:
//
//	app, err := studio.New(
//	    studio.WithVersion(version),
//	    studio.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: studio (root) imports
// internal/*, but internal/* never imports studio (root).
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/gestorlead/studio/internal/auth"
	"github.com/gestorlead/studio/internal/config"
	"github.com/gestorlead/studio/internal/queue"
	"github.com/gestorlead/studio/internal/ratelimit"
	"github.com/gestorlead/studio/internal/secrets"
	"github.com/gestorlead/studio/internal/server"
	"github.com/gestorlead/studio/internal/storage"
	"github.com/gestorlead/studio/internal/telemetry"
	"github.com/gestorlead/studio/migrations"
)

// App is the Studio server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	queueClient  *queue.Client    // nil when Redis is not configured
	processor    *queue.Processor // nil when Redis is not configured
	redisClient  *redis.Client    // nil when Redis is not configured
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the Studio server. It connects to the database, runs
// migrations, wires all subsystems, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.redisURL != "" {
		cfg.RedisURL = o.redisURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("studio starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, false)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect to database.
	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}
	db.RegisterPoolMetrics()

	// Run embedded migrations.
	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}

	// Create JWT manager. Empty key paths generate an ephemeral keypair,
	// which invalidates all tokens on restart.
	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("auth: %w", err)
	}
	if cfg.JWTPrivateKeyPath == "" {
		logger.Warn("jwt: using ephemeral signing key, tokens will not survive restart")
	}

	// Google OAuth is optional; without it sign-in endpoints return 501.
	var oauth *auth.GoogleOAuth
	if cfg.GoogleClientID != "" {
		oauth = auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		logger.Info("google oauth: enabled", "redirect_url", cfg.GoogleRedirectURL)
	} else {
		logger.Info("google oauth: disabled (no GOOGLE_CLIENT_ID)")
	}

	// Provider key sealing.
	keyBox, err := secrets.NewBox(cfg.ProviderKeySecret)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("secrets: %w", err)
	}

	// Redis stack: execution queue, worker, and API rate limiting.
	// All optional; without Redis tasks stay pending until completed
	// through the API and rate limits are not enforced.
	var (
		redisClient *redis.Client
		limiter     *ratelimit.Limiter
		queueClient *queue.Client
		processor   *queue.Processor
	)
	if cfg.RedisURL != "" {
		redisOpt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("redis: %w", err)
		}
		redisClient = redis.NewClient(redisOpt)
		limiter = ratelimit.New(redisClient, logger)

		queueClient, err = queue.NewClient(cfg.RedisURL, logger)
		if err != nil {
			_ = redisClient.Close()
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("queue: %w", err)
		}

		processor, err = queue.NewProcessor(queue.ProcessorConfig{
			RedisURL:    cfg.RedisURL,
			Concurrency: cfg.QueueConcurrency,
			Throttle:    ratelimit.NewMemoryLimiter(1, 5),
		}, db, o.executor, logger)
		if err != nil {
			_ = queueClient.Close()
			_ = redisClient.Close()
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("queue worker: %w", err)
		}
		logger.Info("task queue: enabled", "concurrency", cfg.QueueConcurrency)
	} else {
		logger.Info("task queue: disabled (no REDIS_URL)")
	}

	srv := server.New(server.ServerConfig{
		DB:                  db,
		JWTMgr:              jwtMgr,
		KeyBox:              keyBox,
		Logger:              logger,
		OAuth:               oauth,
		Queue:               queueClient,
		Redis:               redisClient,
		Limiter:             limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		SignupCredits:       cfg.SignupCredits,
		RateLimitPerMinute:  cfg.RateLimitPerMinute,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		queueClient:  queueClient,
		processor:    processor,
		redisClient:  redisClient,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the task worker and the HTTP server, then blocks until ctx
// is cancelled or a fatal server error occurs. On return, Shutdown is
// called automatically; callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.processor != nil {
		go func() {
			if err := a.processor.Run(); err != nil {
				errCh <- fmt.Errorf("task worker: %w", err)
			}
		}()
	}

	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.shutdownAll(context.Background())
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown performs a graceful shutdown: stop accepting HTTP requests
// and drain in-flight, stop the task worker (in-progress jobs finish or
// requeue), then close the queue, Redis, OTEL, and database handles.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("studio shutting down")
	a.shutdownAll(ctx)
	a.logger.Info("studio stopped")
	return nil
}

func (a *App) shutdownAll(ctx context.Context) {
	httpCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	if a.processor != nil {
		a.processor.Shutdown()
	}
	if a.queueClient != nil {
		if err := a.queueClient.Close(); err != nil {
			a.logger.Error("queue close error", "error", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", "error", err)
		}
	}
	_ = a.otelShutdown(context.Background())
	a.db.Close()
}
