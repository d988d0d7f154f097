package server

import (
	"net/http"

	"github.com/gestorlead/studio/internal/model"
	"github.com/gestorlead/studio/internal/storage"
)

// HandleListAgents handles GET /api/v1/agents. Returns the user's own
// agents, plus published public ones when include_public is set.
func (h *Handlers) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	filter := storage.AgentFilter{
		IncludePublic: r.URL.Query().Get("include_public") == "true",
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := model.AgentStatus(v)
		if !model.ValidAgentStatus(status) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid status filter")
			return
		}
		filter.Status = &status
	}

	agents, total, err := h.db.ListAgents(r.Context(), UserIDFromContext(r.Context()), filter, limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list agents", err)
		return
	}
	writeList(w, r, agents, total, limit, offset, len(agents))
}

// HandleCreateAgent handles POST /api/v1/agents.
func (h *Handlers) HandleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAgentRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := model.ValidateCreateAgent(req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	agent := model.Agent{
		UserID:             UserIDFromContext(r.Context()),
		CategoryID:         req.CategoryID,
		TypeID:             req.TypeID,
		Name:               req.Name,
		Description:        req.Description,
		AgentType:          req.AgentType,
		IsPublic:           req.IsPublic,
		Category:           req.Category,
		Tags:               req.Tags,
		Configuration:      req.Configuration,
		WorkflowDefinition: req.WorkflowDefinition,
		Triggers:           req.Triggers,
		Variables:          req.Variables,
	}

	created, err := h.db.CreateAgent(r.Context(), agent)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to create agent")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// HandleGetAgent handles GET /api/v1/agents/{id}.
func (h *Handlers) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	agent, err := h.db.GetAgent(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get agent")
		return
	}
	writeJSON(w, r, http.StatusOK, agent)
}

// HandleUpdateAgent handles PATCH /api/v1/agents/{id}. A version_bump
// of major, minor or patch increments the semver alongside the edit.
func (h *Handlers) HandleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.UpdateAgentRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Name != nil && (*req.Name == "" || len(*req.Name) > model.MaxNameLen) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid name")
		return
	}
	if req.VersionBump != nil {
		switch *req.VersionBump {
		case "major", "minor", "patch":
		default:
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "version_bump must be major, minor or patch")
			return
		}
	}

	agent, err := h.db.GetAgent(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get agent")
		return
	}
	if agent.UserID != UserIDFromContext(r.Context()) {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "cannot edit another user's agent")
		return
	}

	if req.Name != nil {
		agent.Name = *req.Name
	}
	if req.Description != nil {
		agent.Description = req.Description
	}
	if req.CategoryID != nil {
		agent.CategoryID = req.CategoryID
	}
	if req.Category != nil {
		agent.Category = req.Category
	}
	if req.IsPublic != nil {
		agent.IsPublic = *req.IsPublic
	}
	if req.Tags != nil {
		agent.Tags = req.Tags
	}
	if req.Configuration != nil {
		agent.Configuration = req.Configuration
	}
	if req.WorkflowDefinition != nil {
		agent.WorkflowDefinition = req.WorkflowDefinition
	}
	if req.Triggers != nil {
		agent.Triggers = req.Triggers
	}
	if req.Variables != nil {
		agent.Variables = req.Variables
	}
	if req.VersionBump != nil {
		agent.IncrementVersion(*req.VersionBump)
	}

	updated, err := h.db.UpdateAgent(r.Context(), agent)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to update agent")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteAgent handles DELETE /api/v1/agents/{id}.
func (h *Handlers) HandleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.db.DeleteAgent(r.Context(), UserIDFromContext(r.Context()), id); err != nil {
		h.handleStorageError(w, r, err, "failed to delete agent")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleActivateAgent handles POST /api/v1/agents/{id}/activate.
func (h *Handlers) HandleActivateAgent(w http.ResponseWriter, r *http.Request) {
	h.transitionAgent(w, r, func(a *model.Agent) error { return a.Activate() })
}

// HandleDeactivateAgent handles POST /api/v1/agents/{id}/deactivate.
func (h *Handlers) HandleDeactivateAgent(w http.ResponseWriter, r *http.Request) {
	h.transitionAgent(w, r, func(a *model.Agent) error { return a.Deactivate() })
}

// HandlePublishAgent handles POST /api/v1/agents/{id}/publish.
func (h *Handlers) HandlePublishAgent(w http.ResponseWriter, r *http.Request) {
	h.transitionAgent(w, r, func(a *model.Agent) error { return a.Publish() })
}

// HandleArchiveAgent handles POST /api/v1/agents/{id}/archive.
func (h *Handlers) HandleArchiveAgent(w http.ResponseWriter, r *http.Request) {
	h.transitionAgent(w, r, func(a *model.Agent) error {
		a.Archive()
		return nil
	})
}

// HandleRecordExecution handles POST /api/v1/agents/{id}/executions.
// Updates the agent's aggregate execution statistics.
func (h *Handlers) HandleRecordExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.RecordExecutionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.ExecutionTimeMs < 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "execution_time_ms must not be negative")
		return
	}

	agent, err := h.db.RecordAgentExecution(r.Context(), UserIDFromContext(r.Context()), id, req.ExecutionTimeMs, req.Success)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to record execution")
		return
	}
	writeJSON(w, r, http.StatusOK, agent)
}

// transitionAgent loads an owned agent, applies a status transition and
// persists the result. Transition rejections become 409s.
func (h *Handlers) transitionAgent(w http.ResponseWriter, r *http.Request, transition func(*model.Agent) error) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	agent, err := h.db.GetAgent(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get agent")
		return
	}
	if agent.UserID != UserIDFromContext(r.Context()) {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "cannot modify another user's agent")
		return
	}
	if err := transition(&agent); err != nil {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	}
	updated, err := h.db.UpdateAgent(r.Context(), agent)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to save agent")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}
