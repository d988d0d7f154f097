package server

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/gestorlead/studio/internal/model"
)

// Lookup endpoints expose the reference tables the UI needs to render
// pickers. Rows change rarely; everything is read-only over HTTP.

// HandleLookups handles GET /api/v1/lookups. Fetches every table
// concurrently and returns them in one payload.
func (h *Handlers) HandleLookups(w http.ResponseWriter, r *http.Request) {
	var lookups model.Lookups

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		lookups.SubscriptionTiers, err = h.db.ListSubscriptionTiers(ctx)
		return err
	})
	g.Go(func() (err error) {
		lookups.AIProviders, err = h.db.ListAIProviders(ctx)
		return err
	})
	g.Go(func() (err error) {
		lookups.TaskTypes, err = h.db.ListTaskTypes(ctx)
		return err
	})
	g.Go(func() (err error) {
		lookups.ProviderModels, err = h.db.ListProviderModels(ctx)
		return err
	})
	g.Go(func() (err error) {
		lookups.AgentCategories, err = h.db.ListAgentCategories(ctx)
		return err
	})
	g.Go(func() (err error) {
		lookups.AgentTypes, err = h.db.ListAgentTypes(ctx)
		return err
	})
	g.Go(func() (err error) {
		lookups.CampaignTypes, err = h.db.ListCampaignTypes(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.writeInternalError(w, r, "failed to load lookups", err)
		return
	}

	writeJSON(w, r, http.StatusOK, lookups)
}

// HandleListSubscriptionTiers handles GET /api/v1/lookups/subscription-tiers.
func (h *Handlers) HandleListSubscriptionTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.db.ListSubscriptionTiers(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list subscription tiers", err)
		return
	}
	writeJSON(w, r, http.StatusOK, tiers)
}

// HandleListAIProviders handles GET /api/v1/lookups/ai-providers.
func (h *Handlers) HandleListAIProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.db.ListAIProviders(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list ai providers", err)
		return
	}
	writeJSON(w, r, http.StatusOK, providers)
}

// HandleListTaskTypes handles GET /api/v1/lookups/task-types.
func (h *Handlers) HandleListTaskTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.db.ListTaskTypes(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list task types", err)
		return
	}
	writeJSON(w, r, http.StatusOK, types)
}

// HandleListProviderModels handles GET /api/v1/lookups/provider-models.
func (h *Handlers) HandleListProviderModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.db.ListProviderModels(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list provider models", err)
		return
	}
	writeJSON(w, r, http.StatusOK, models)
}

// HandleListAgentCategories handles GET /api/v1/lookups/agent-categories.
func (h *Handlers) HandleListAgentCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.db.ListAgentCategories(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list agent categories", err)
		return
	}
	writeJSON(w, r, http.StatusOK, cats)
}

// HandleListAgentTypes handles GET /api/v1/lookups/agent-types.
func (h *Handlers) HandleListAgentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.db.ListAgentTypes(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list agent types", err)
		return
	}
	writeJSON(w, r, http.StatusOK, types)
}

// HandleListCampaignTypes handles GET /api/v1/lookups/campaign-types.
func (h *Handlers) HandleListCampaignTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.db.ListCampaignTypes(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to list campaign types", err)
		return
	}
	writeJSON(w, r, http.StatusOK, types)
}
