package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/gestorlead/studio/internal/model"
	"github.com/gestorlead/studio/internal/storage"
)

// HandleListTasks handles GET /api/v1/tasks.
func (h *Handlers) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	var filter storage.TaskFilter
	if v := r.URL.Query().Get("status"); v != "" {
		status := model.TaskStatus(v)
		if !model.ValidTaskStatus(status) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid status filter")
			return
		}
		filter.Status = &status
	}
	if v := r.URL.Query().Get("campaign_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid campaign_id filter")
			return
		}
		filter.CampaignID = &id
	}

	tasks, total, err := h.db.ListTasks(r.Context(), UserIDFromContext(r.Context()), filter, limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list tasks", err)
		return
	}
	writeList(w, r, tasks, total, limit, offset, len(tasks))
}

// HandleCreateTask handles POST /api/v1/tasks. Debits the user balance
// (and the campaign budget when bound to one) atomically with the task
// row; with a queue configured the task is dispatched for execution.
func (h *Handlers) HandleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTaskRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := model.ValidateCreateTask(req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	taskType, err := h.db.GetTaskTypeByName(r.Context(), req.TaskType)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "unknown task_type "+req.TaskType)
			return
		}
		h.writeInternalError(w, r, "failed to resolve task type", err)
		return
	}

	cost := taskType.DefaultCreditCost
	if req.CreditCost != nil {
		cost = *req.CreditCost
	}

	task := model.Task{
		UserID:         UserIDFromContext(r.Context()),
		TaskTypeID:     &taskType.ID,
		TaskType:       &taskType.TypeName,
		CampaignID:     req.CampaignID,
		Provider:       req.Provider,
		Model:          req.ModelName,
		RequestPayload: req.RequestPayload,
		CreditCost:     cost,
		ScheduledAt:    req.ScheduledAt,
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}

	created, err := h.db.CreateTask(r.Context(), task)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to create task")
		return
	}

	if h.queue != nil {
		created = h.dispatchTask(r, created)
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// dispatchTask moves a fresh task to queued and hands it to the worker.
// Dispatch failures leave the task pending; the response reflects
// whatever state was persisted.
func (h *Handlers) dispatchTask(r *http.Request, task model.Task) model.Task {
	if err := task.Enqueue(); err != nil {
		return task
	}
	queued, err := h.db.SaveTaskExecution(r.Context(), task)
	if err != nil {
		h.logger.Error("failed to persist task enqueue", "task_id", task.ID, "error", err)
		return task
	}
	if err := h.queue.EnqueueExecute(r.Context(), queued); err != nil {
		h.logger.Error("failed to dispatch task", "task_id", task.ID, "error", err)
	}
	return queued
}

// HandleGetTask handles GET /api/v1/tasks/{id}.
func (h *Handlers) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.db.GetTask(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get task")
		return
	}
	writeJSON(w, r, http.StatusOK, task)
}

// HandleUpdateTask handles PATCH /api/v1/tasks/{id}. Only pending
// tasks accept edits.
func (h *Handlers) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.UpdateTaskRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Priority != nil && !model.ValidTaskPriority(*req.Priority) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid priority")
		return
	}

	task, err := h.db.GetTask(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get task")
		return
	}
	if task.Status != model.TaskPending {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "only pending tasks can be edited")
		return
	}

	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.RequestPayload != nil {
		task.RequestPayload = req.RequestPayload
	}
	if req.ScheduledAt != nil {
		task.ScheduledAt = req.ScheduledAt
	}

	updated, err := h.db.UpdateTask(r.Context(), task)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to update task")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleCancelTask handles POST /api/v1/tasks/{id}/cancel. Spent
// credits are not refunded.
func (h *Handlers) HandleCancelTask(w http.ResponseWriter, r *http.Request) {
	h.transitionTask(w, r, func(t *model.Task) error { return t.Cancel() })
}

// HandleRetryTask handles POST /api/v1/tasks/{id}/retry. Resets a
// failed task for re-execution and re-dispatches when a queue is
// configured.
func (h *Handlers) HandleRetryTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.db.GetTask(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get task")
		return
	}
	if err := task.Retry(); err != nil {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	}

	saved, err := h.db.SaveTaskExecution(r.Context(), task)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to save task")
		return
	}
	if h.queue != nil {
		saved = h.dispatchTask(r, saved)
	}
	writeJSON(w, r, http.StatusOK, saved)
}

// HandleCompleteTask handles POST /api/v1/tasks/{id}/complete
// (worker-facing). Optionally attaches the generated artifact.
func (h *Handlers) HandleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.CompleteTaskRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Content != nil && !model.ValidContentType(req.Content.ContentType) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid content_type")
		return
	}

	task, err := h.db.GetTask(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get task")
		return
	}
	if err := task.Complete(req.Result); err != nil {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	}

	var saved model.Task
	if req.Content != nil {
		content := contentFromRequest(*req.Content, task)
		saved, err = h.db.CompleteTaskWithContent(r.Context(), task, &content)
	} else {
		saved, err = h.db.SaveTaskExecution(r.Context(), task)
	}
	if err != nil {
		h.handleStorageError(w, r, err, "failed to complete task")
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}

// HandleFailTask handles POST /api/v1/tasks/{id}/fail (worker-facing).
func (h *Handlers) HandleFailTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.FailTaskRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.ErrorMessage == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "error_message is required")
		return
	}

	task, err := h.db.GetTask(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get task")
		return
	}
	if task.IsTerminal() {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "task already finished")
		return
	}
	task.Fail(req.ErrorMessage, req.ErrorCode)

	saved, err := h.db.SaveTaskExecution(r.Context(), task)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to save task")
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}

// transitionTask loads the task, applies a transition and persists the
// resulting state. Transition rejections become 409s.
func (h *Handlers) transitionTask(w http.ResponseWriter, r *http.Request, transition func(*model.Task) error) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.db.GetTask(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get task")
		return
	}
	if err := transition(&task); err != nil {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	}
	saved, err := h.db.SaveTaskExecution(r.Context(), task)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to save task")
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}

// contentFromRequest builds the artifact row attached at completion.
func contentFromRequest(req model.CreateContentRequest, task model.Task) model.GeneratedContent {
	return model.GeneratedContent{
		TaskID:           task.ID,
		UserID:           task.UserID,
		ContentType:      req.ContentType,
		MimeType:         req.MimeType,
		FileSizeBytes:    req.FileSizeBytes,
		FileURL:          req.FileURL,
		ThumbnailURL:     req.ThumbnailURL,
		OriginalFilename: req.OriginalFilename,
		StoragePath:      req.StoragePath,
		StorageProvider:  req.StorageProvider,
		TextContent:      req.TextContent,
		ContentMetadata:  req.ContentMetadata,
		WidthPx:          req.WidthPx,
		HeightPx:         req.HeightPx,
		DurationSeconds:  req.DurationSeconds,
		QualityScore:     req.QualityScore,
		Tags:             req.Tags,
	}
}
