package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestorlead/studio/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func startMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestEnqueueExecute(t *testing.T) {
	s := startMiniRedis(t)

	client, err := NewClient("redis://"+s.Addr(), testLogger())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	task := model.Task{
		ID:       uuid.New(),
		UserID:   42,
		Status:   model.TaskQueued,
		Priority: model.PriorityHigh,
	}
	require.NoError(t, client.EnqueueExecute(context.Background(), task))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: s.Addr()})
	defer func() { _ = inspector.Close() }()

	pending, err := inspector.ListPendingTasks(QueueCritical)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, TypeExecuteTask, pending[0].Type)
	assert.Equal(t, task.ID.String(), pending[0].ID)

	var payload ExecutePayload
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	assert.Equal(t, task.ID, payload.TaskID)
	assert.Equal(t, int64(42), payload.UserID)
}

func TestEnqueueExecuteIsIdempotentWhilePending(t *testing.T) {
	s := startMiniRedis(t)

	client, err := NewClient("redis://"+s.Addr(), testLogger())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	task := model.Task{ID: uuid.New(), UserID: 1, Priority: model.PriorityMedium}
	require.NoError(t, client.EnqueueExecute(context.Background(), task))

	// Same task ID again: the duplicate is dropped without error.
	require.NoError(t, client.EnqueueExecute(context.Background(), task))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: s.Addr()})
	defer func() { _ = inspector.Close() }()

	pending, err := inspector.ListPendingTasks(QueueDefault)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestQueueForPriority(t *testing.T) {
	assert.Equal(t, QueueCritical, queueForPriority(model.PriorityUrgent))
	assert.Equal(t, QueueCritical, queueForPriority(model.PriorityHigh))
	assert.Equal(t, QueueDefault, queueForPriority(model.PriorityMedium))
	assert.Equal(t, QueueLow, queueForPriority(model.PriorityLow))
}

func TestEchoExecutor(t *testing.T) {
	modelName := "gpt-4o"
	task := model.Task{
		ID:             uuid.New(),
		Model:          &modelName,
		RequestPayload: map[string]any{"prompt": "write a slogan"},
	}

	result, content, err := EchoExecutor{}.Execute(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "write a slogan", result["output"])
	assert.Equal(t, "gpt-4o", result["model"])
	require.NotNil(t, content)
	assert.Equal(t, model.ContentText, content.ContentType)
	require.NotNil(t, content.TextContent)
	assert.Equal(t, "write a slogan", *content.TextContent)
}

func TestEchoExecutorRejectsEmptyPrompt(t *testing.T) {
	task := model.Task{ID: uuid.New(), RequestPayload: map[string]any{"temperature": 0.7}}
	_, _, err := EchoExecutor{}.Execute(context.Background(), task)
	require.Error(t, err)
}
