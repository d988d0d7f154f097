package server

import (
	"net/http"
	"time"

	"github.com/gestorlead/studio/internal/model"
)

// HandleListCampaigns handles GET /api/v1/campaigns.
func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	var status *model.CampaignStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := model.CampaignStatus(v)
		if !model.ValidCampaignStatus(s) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid status filter")
			return
		}
		status = &s
	}

	campaigns, total, err := h.db.ListCampaigns(r.Context(), UserIDFromContext(r.Context()), status, limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list campaigns", err)
		return
	}
	writeList(w, r, campaigns, total, limit, offset, len(campaigns))
}

// HandleCreateCampaign handles POST /api/v1/campaigns.
func (h *Handlers) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCampaignRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := model.ValidateCreateCampaign(req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	campaign := model.Campaign{
		UserID:           UserIDFromContext(r.Context()),
		CampaignTypeID:   req.CampaignTypeID,
		Name:             req.Name,
		Description:      req.Description,
		CampaignType:     req.CampaignType,
		Channels:         req.Channels,
		TargetAudience:   req.TargetAudience,
		Objectives:       req.Objectives,
		BudgetCredits:    req.BudgetCredits,
		ContentTemplates: req.ContentTemplates,
		Scheduling:       req.Scheduling,
		AutomationRules:  req.AutomationRules,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
	}
	// A future start date creates the campaign as scheduled; launch
	// accepts either state.
	if req.StartDate != nil && req.StartDate.After(time.Now().UTC()) {
		campaign.Status = model.CampaignScheduled
	}

	created, err := h.db.CreateCampaign(r.Context(), campaign)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to create campaign")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// HandleGetCampaign handles GET /api/v1/campaigns/{id}.
func (h *Handlers) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	campaign, err := h.db.GetCampaign(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get campaign")
		return
	}
	writeJSON(w, r, http.StatusOK, campaign)
}

// HandleUpdateCampaign handles PATCH /api/v1/campaigns/{id}.
func (h *Handlers) HandleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.UpdateCampaignRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Name != nil && (*req.Name == "" || len(*req.Name) > model.MaxNameLen) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid name")
		return
	}
	if req.BudgetCredits != nil && *req.BudgetCredits <= 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "budget_credits must be positive")
		return
	}

	campaign, err := h.db.GetCampaign(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get campaign")
		return
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.Description != nil {
		campaign.Description = req.Description
	}
	if req.Channels != nil {
		campaign.Channels = req.Channels
	}
	if req.TargetAudience != nil {
		campaign.TargetAudience = req.TargetAudience
	}
	if req.Objectives != nil {
		campaign.Objectives = req.Objectives
	}
	if req.BudgetCredits != nil {
		if campaign.SpentCredits > *req.BudgetCredits {
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "budget_credits below already spent credits")
			return
		}
		campaign.BudgetCredits = req.BudgetCredits
	}
	if req.ContentTemplates != nil {
		campaign.ContentTemplates = req.ContentTemplates
	}
	if req.Scheduling != nil {
		campaign.Scheduling = req.Scheduling
	}
	if req.AutomationRules != nil {
		campaign.AutomationRules = req.AutomationRules
	}
	if req.StartDate != nil {
		campaign.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		campaign.EndDate = req.EndDate
	}
	if campaign.StartDate != nil && campaign.EndDate != nil && campaign.EndDate.Before(*campaign.StartDate) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "end_date must not precede start_date")
		return
	}

	updated, err := h.db.UpdateCampaign(r.Context(), campaign)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to update campaign")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteCampaign handles DELETE /api/v1/campaigns/{id}. Tasks
// bound to the campaign survive with the reference cleared.
func (h *Handlers) HandleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.db.DeleteCampaign(r.Context(), UserIDFromContext(r.Context()), id); err != nil {
		h.handleStorageError(w, r, err, "failed to delete campaign")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Campaign lifecycle endpoints. Each applies one model transition and
// persists the resulting status.

func (h *Handlers) HandleLaunchCampaign(w http.ResponseWriter, r *http.Request) {
	h.transitionCampaign(w, r, (*model.Campaign).Launch)
}

func (h *Handlers) HandlePauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.transitionCampaign(w, r, (*model.Campaign).Pause)
}

func (h *Handlers) HandleResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.transitionCampaign(w, r, (*model.Campaign).Resume)
}

func (h *Handlers) HandleCompleteCampaign(w http.ResponseWriter, r *http.Request) {
	h.transitionCampaign(w, r, (*model.Campaign).Complete)
}

func (h *Handlers) HandleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	h.transitionCampaign(w, r, (*model.Campaign).Cancel)
}

func (h *Handlers) HandleArchiveCampaign(w http.ResponseWriter, r *http.Request) {
	h.transitionCampaign(w, r, (*model.Campaign).Archive)
}

func (h *Handlers) transitionCampaign(w http.ResponseWriter, r *http.Request, transition func(*model.Campaign) error) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	campaign, err := h.db.GetCampaign(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get campaign")
		return
	}
	if err := transition(&campaign); err != nil {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error())
		return
	}
	saved, err := h.db.SaveCampaignStatus(r.Context(), campaign)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to save campaign")
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}
