package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gestorlead/studio/internal/model"
	"github.com/gestorlead/studio/internal/ratelimit"
	"github.com/gestorlead/studio/internal/storage"
)

// Executor produces the result of a task: the result payload and,
// optionally, a generated artifact to attach to the task.
type Executor interface {
	Execute(ctx context.Context, t model.Task) (map[string]any, *model.GeneratedContent, error)
}

// EchoExecutor returns the task prompt as its result. It stands in for
// real provider integrations and keeps the pipeline exercisable
// end to end.
type EchoExecutor struct{}

// Execute implements Executor.
func (EchoExecutor) Execute(_ context.Context, t model.Task) (map[string]any, *model.GeneratedContent, error) {
	prompt := t.Prompt()
	if prompt == "" {
		return nil, nil, fmt.Errorf("queue: task %s has no prompt", t.ID)
	}

	result := map[string]any{"output": prompt}
	if t.Model != nil {
		result["model"] = *t.Model
	}

	content := &model.GeneratedContent{
		ContentType: model.ContentText,
		TextContent: &prompt,
	}
	return result, content, nil
}

// Processor runs the asynq worker that executes queued tasks.
type Processor struct {
	server   *asynq.Server
	db       *storage.DB
	executor Executor
	throttle ratelimit.KeyLimiter
	logger   *slog.Logger
}

// ProcessorConfig configures the worker.
type ProcessorConfig struct {
	RedisURL    string
	Concurrency int
	// Throttle caps per-user execution rate. Nil disables throttling.
	Throttle ratelimit.KeyLimiter
}

// NewProcessor creates the worker. The executor defaults to EchoExecutor.
func NewProcessor(cfg ProcessorConfig, db *storage.DB, executor Executor, logger *slog.Logger) (*Processor, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if executor == nil {
		executor = EchoExecutor{}
	}
	throttle := cfg.Throttle
	if throttle == nil {
		throttle = ratelimit.NoopLimiter{}
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      Queues(),
		Logger:      asynqLogger{logger},
	})

	return &Processor{
		server:   server,
		db:       db,
		executor: executor,
		throttle: throttle,
		logger:   logger,
	}, nil
}

// Run starts the worker and blocks until Shutdown is called.
func (p *Processor) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeExecuteTask, p.handleExecute)
	return p.server.Run(mux)
}

// Shutdown stops the worker, waiting for in-flight tasks.
func (p *Processor) Shutdown() {
	p.server.Shutdown()
}

func (p *Processor) handleExecute(ctx context.Context, job *asynq.Task) error {
	var payload ExecutePayload
	if err := json.Unmarshal(job.Payload(), &payload); err != nil {
		return fmt.Errorf("queue: unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	task, err := p.db.GetTask(ctx, payload.UserID, payload.TaskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Task was deleted after enqueueing.
			return fmt.Errorf("queue: task %s gone: %w", payload.TaskID, asynq.SkipRetry)
		}
		return fmt.Errorf("queue: load task: %w", err)
	}
	if task.IsTerminal() {
		// Completed through the API or cancelled while queued.
		return nil
	}

	ok, err := p.throttle.Allow(ctx, fmt.Sprintf("user:%d", task.UserID))
	if err != nil {
		p.logger.Error("task throttle failure, failing open", "task_id", task.ID, "error", err)
		ok = true
	}
	if !ok {
		return fmt.Errorf("queue: user %d throttled, retrying task %s later", task.UserID, task.ID)
	}

	if err := task.Start(); err != nil {
		return fmt.Errorf("queue: %v: %w", err, asynq.SkipRetry)
	}
	if task, err = p.db.SaveTaskExecution(ctx, task); err != nil {
		return fmt.Errorf("queue: persist task start: %w", err)
	}

	started := time.Now()
	result, content, execErr := p.executor.Execute(ctx, task)
	if execErr != nil {
		return p.failTask(ctx, task, execErr)
	}

	if err := task.Complete(result); err != nil {
		return fmt.Errorf("queue: %v: %w", err, asynq.SkipRetry)
	}
	if content != nil {
		content.TaskID = task.ID
		content.UserID = task.UserID
		task, err = p.db.CompleteTaskWithContent(ctx, task, content)
	} else {
		task, err = p.db.SaveTaskExecution(ctx, task)
	}
	if err != nil {
		return fmt.Errorf("queue: persist task completion: %w", err)
	}

	p.logger.Info("task executed",
		"task_id", task.ID,
		"user_id", task.UserID,
		"duration_ms", time.Since(started).Milliseconds(),
		"has_content", content != nil,
	)
	return nil
}

// failTask records the failure and decides whether asynq should retry.
// Below the attempt cap the task is reset to pending so the next
// delivery can start it again.
func (p *Processor) failTask(ctx context.Context, task model.Task, execErr error) error {
	code := "EXECUTION_ERROR"
	task.Fail(execErr.Error(), &code)

	if task.RetryCount < maxExecuteAttempts-1 {
		if err := task.Retry(); err == nil {
			if _, serr := p.db.SaveTaskExecution(ctx, task); serr != nil {
				return fmt.Errorf("queue: persist task retry: %w", serr)
			}
			return fmt.Errorf("queue: execute task %s (attempt %d): %w", task.ID, task.RetryCount, execErr)
		}
	}

	if _, serr := p.db.SaveTaskExecution(ctx, task); serr != nil {
		return fmt.Errorf("queue: persist task failure: %w", serr)
	}
	p.logger.Warn("task failed", "task_id", task.ID, "user_id", task.UserID, "error", execErr)
	return fmt.Errorf("queue: execute task %s: %v: %w", task.ID, execErr, asynq.SkipRetry)
}

// asynqLogger adapts slog to asynq's logger interface.
type asynqLogger struct {
	l *slog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Error(fmt.Sprint(args...)) }
