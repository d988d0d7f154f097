package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestorlead/studio/internal/model"
)

func TestTaskLifecycle_HappyPath(t *testing.T) {
	task := &model.Task{Status: model.TaskPending}

	require.NoError(t, task.Enqueue())
	assert.Equal(t, model.TaskQueued, task.Status)

	require.NoError(t, task.Start())
	assert.Equal(t, model.TaskProcessing, task.Status)
	require.NotNil(t, task.StartedAt)

	require.NoError(t, task.Complete(map[string]any{"text": "done"}))
	assert.Equal(t, model.TaskCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	require.NotNil(t, task.ExecutionTimeMs)
	assert.True(t, task.HasResult())
	assert.True(t, task.IsTerminal())
}

func TestTaskEnqueue_InvalidStates(t *testing.T) {
	for _, status := range []model.TaskStatus{
		model.TaskQueued,
		model.TaskProcessing,
		model.TaskCompleted,
		model.TaskFailed,
		model.TaskCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			task := &model.Task{Status: status}
			err := task.Enqueue()
			require.Error(t, err)
			assert.Equal(t, status, task.Status, "status must not change on a rejected transition")
		})
	}
}

func TestTaskStart_TerminalStatesRejected(t *testing.T) {
	for _, status := range []model.TaskStatus{
		model.TaskCompleted,
		model.TaskFailed,
		model.TaskCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			task := &model.Task{Status: status}
			require.Error(t, task.Start())
			assert.Nil(t, task.StartedAt)
		})
	}
}

func TestTaskComplete_TerminalStatesRejected(t *testing.T) {
	for _, status := range []model.TaskStatus{
		model.TaskCompleted,
		model.TaskFailed,
		model.TaskCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			task := &model.Task{Status: status}
			require.Error(t, task.Complete(map[string]any{"x": 1}))
			assert.Equal(t, status, task.Status, "status must not change on a rejected transition")
			assert.Nil(t, task.ResultPayload)
			assert.Nil(t, task.CompletedAt)
		})
	}
}

func TestTaskFail(t *testing.T) {
	task := &model.Task{Status: model.TaskProcessing}
	code := "provider_timeout"
	task.Fail("upstream timed out", &code)

	assert.Equal(t, model.TaskFailed, task.Status)
	require.NotNil(t, task.ErrorMessage)
	assert.Equal(t, "upstream timed out", *task.ErrorMessage)
	require.NotNil(t, task.ErrorCode)
	assert.Equal(t, "provider_timeout", *task.ErrorCode)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.IsFailed())
}

func TestTaskRetry_ResetsExecutionState(t *testing.T) {
	task := &model.Task{Status: model.TaskProcessing}
	require.NoError(t, task.Start())
	task.Fail("boom", nil)

	require.NoError(t, task.Retry())
	assert.Equal(t, model.TaskPending, task.Status)
	assert.Equal(t, 1, task.RetryCount)
	assert.Nil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)
	assert.Nil(t, task.ErrorMessage)
	assert.Nil(t, task.ErrorCode)
}

func TestTaskRetry_OnlyFromFailedOrRetrying(t *testing.T) {
	for _, status := range []model.TaskStatus{
		model.TaskPending,
		model.TaskQueued,
		model.TaskProcessing,
		model.TaskCompleted,
		model.TaskCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			task := &model.Task{Status: status}
			require.Error(t, task.Retry())
			assert.Zero(t, task.RetryCount)
		})
	}
}

func TestTaskCancel(t *testing.T) {
	t.Run("pending cancels", func(t *testing.T) {
		task := &model.Task{Status: model.TaskPending}
		require.NoError(t, task.Cancel())
		assert.Equal(t, model.TaskCancelled, task.Status)
		require.NotNil(t, task.CompletedAt)
	})

	t.Run("completed and failed are final", func(t *testing.T) {
		for _, status := range []model.TaskStatus{model.TaskCompleted, model.TaskFailed} {
			task := &model.Task{Status: status}
			require.Error(t, task.Cancel())
			assert.Equal(t, status, task.Status)
		}
	})
}

func TestTaskExecutionDuration(t *testing.T) {
	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(1500 * time.Millisecond)
	recorded := 999

	t.Run("timestamps win over recorded value", func(t *testing.T) {
		task := &model.Task{StartedAt: &started, CompletedAt: &completed, ExecutionTimeMs: &recorded}
		got := task.ExecutionDuration()
		require.NotNil(t, got)
		assert.Equal(t, 1500, *got)
	})

	t.Run("falls back to recorded value", func(t *testing.T) {
		task := &model.Task{ExecutionTimeMs: &recorded}
		got := task.ExecutionDuration()
		require.NotNil(t, got)
		assert.Equal(t, 999, *got)
	})

	t.Run("nil when nothing recorded", func(t *testing.T) {
		task := &model.Task{}
		assert.Nil(t, task.ExecutionDuration())
	})
}

func TestTaskPrompt(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"prompt key", map[string]any{"prompt": "write a post"}, "write a post"},
		{"text fallback", map[string]any{"text": "fallback"}, "fallback"},
		{"prompt wins over text", map[string]any{"prompt": "a", "text": "b"}, "a"},
		{"non-string prompt ignored", map[string]any{"prompt": 42, "text": "b"}, "b"},
		{"nil payload", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &model.Task{RequestPayload: tt.payload}
			assert.Equal(t, tt.want, task.Prompt())
		})
	}
}

func TestValidTaskStatusAndPriority(t *testing.T) {
	assert.True(t, model.ValidTaskStatus(model.TaskPending))
	assert.True(t, model.ValidTaskStatus(model.TaskRetrying))
	assert.False(t, model.ValidTaskStatus(model.TaskStatus("running")))
	assert.False(t, model.ValidTaskStatus(model.TaskStatus("")))

	assert.True(t, model.ValidTaskPriority(model.PriorityUrgent))
	assert.False(t, model.ValidTaskPriority(model.TaskPriority("asap")))
}
