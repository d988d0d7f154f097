package server

import (
	"net/http"

	"github.com/gestorlead/studio/internal/model"
	"github.com/gestorlead/studio/internal/secrets"
)

// Provider key endpoints. Plaintext credentials exist only inside a
// request; responses carry the masked display form via ProviderKeyView.

// HandleListProviderKeys handles GET /api/v1/provider-keys.
func (h *Handlers) HandleListProviderKeys(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	keys, total, err := h.db.ListProviderKeys(r.Context(), UserIDFromContext(r.Context()), limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list provider keys", err)
		return
	}

	views := make([]model.ProviderKeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, model.NewProviderKeyView(k))
	}
	writeList(w, r, views, total, limit, offset, len(views))
}

// HandleCreateProviderKey handles POST /api/v1/provider-keys.
func (h *Handlers) HandleCreateProviderKey(w http.ResponseWriter, r *http.Request) {
	var req model.CreateProviderKeyRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.KeyName == "" || len(req.KeyName) > model.MaxNameLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "key_name is required")
		return
	}
	if req.APIKey == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "api_key is required")
		return
	}

	encrypted, err := h.keyBox.Seal(req.APIKey)
	if err != nil {
		h.writeInternalError(w, r, "failed to encrypt provider key", err)
		return
	}

	key := model.ProviderKey{
		UserID:       UserIDFromContext(r.Context()),
		ProviderID:   req.ProviderID,
		Provider:     req.Provider,
		KeyName:      req.KeyName,
		EncryptedKey: encrypted,
		KeyHash:      secrets.Hash(req.APIKey),
		Permissions:  req.Permissions,
		UsageLimits:  req.UsageLimits,
		IsActive:     true,
		IsDefault:    req.IsDefault,
		ExpiresAt:    req.ExpiresAt,
	}

	created, err := h.db.CreateProviderKey(r.Context(), key)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to create provider key")
		return
	}
	writeJSON(w, r, http.StatusCreated, model.NewProviderKeyView(created))
}

// HandleGetProviderKey handles GET /api/v1/provider-keys/{id}.
func (h *Handlers) HandleGetProviderKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	key, err := h.db.GetProviderKey(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get provider key")
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewProviderKeyView(key))
}

// HandleUpdateProviderKey handles PATCH /api/v1/provider-keys/{id}.
// Supplying api_key rotates the stored credential and resets its
// validation state.
func (h *Handlers) HandleUpdateProviderKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.UpdateProviderKeyRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.KeyName != nil && (*req.KeyName == "" || len(*req.KeyName) > model.MaxNameLen) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid key_name")
		return
	}
	if req.APIKey != nil && *req.APIKey == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "api_key must not be empty")
		return
	}

	key, err := h.db.GetProviderKey(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get provider key")
		return
	}

	if req.KeyName != nil {
		key.KeyName = *req.KeyName
	}
	if req.APIKey != nil {
		encrypted, err := h.keyBox.Seal(*req.APIKey)
		if err != nil {
			h.writeInternalError(w, r, "failed to encrypt provider key", err)
			return
		}
		key.EncryptedKey = encrypted
		key.KeyHash = secrets.Hash(*req.APIKey)
		key.ValidationStatus = nil
		key.LastValidatedAt = nil
		key.ResetErrors()
	}
	if req.Permissions != nil {
		key.Permissions = req.Permissions
	}
	if req.UsageLimits != nil {
		key.UsageLimits = req.UsageLimits
	}
	if req.IsActive != nil {
		if *req.IsActive {
			key.Activate()
		} else {
			key.Deactivate()
		}
	}
	if req.ExpiresAt != nil {
		key.ExpiresAt = req.ExpiresAt
	}

	updated, err := h.db.UpdateProviderKey(r.Context(), key)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to update provider key")
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewProviderKeyView(updated))
}

// HandleDeleteProviderKey handles DELETE /api/v1/provider-keys/{id}.
func (h *Handlers) HandleDeleteProviderKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.db.DeleteProviderKey(r.Context(), UserIDFromContext(r.Context()), id); err != nil {
		h.handleStorageError(w, r, err, "failed to delete provider key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleValidateProviderKey handles POST /api/v1/provider-keys/{id}/validate.
// Records the outcome of an external validation check against the key.
func (h *Handlers) HandleValidateProviderKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.ValidateProviderKeyRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	key, err := h.db.GetProviderKey(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get provider key")
		return
	}
	if err := key.RecordValidation(req.Status, req.ErrorMessage); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	updated, err := h.db.UpdateProviderKey(r.Context(), key)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to save provider key")
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewProviderKeyView(updated))
}

// HandleSetDefaultProviderKey handles POST /api/v1/provider-keys/{id}/default.
func (h *Handlers) HandleSetDefaultProviderKey(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	key, err := h.db.SetDefaultProviderKey(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to set default provider key")
		return
	}
	writeJSON(w, r, http.StatusOK, model.NewProviderKeyView(key))
}
