package server

import (
	"net/http"

	"github.com/gestorlead/studio/internal/model"
	"github.com/gestorlead/studio/internal/storage"
)

// HandleListContent handles GET /api/v1/content.
func (h *Handlers) HandleListContent(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	filter := storage.ContentFilter{
		FavoriteOnly: r.URL.Query().Get("favorite") == "true",
	}
	if v := r.URL.Query().Get("content_type"); v != "" {
		ct := model.ContentType(v)
		if !model.ValidContentType(ct) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid content_type filter")
			return
		}
		filter.ContentType = &ct
	}

	items, total, err := h.db.ListContent(r.Context(), UserIDFromContext(r.Context()), filter, limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list content", err)
		return
	}
	writeList(w, r, items, total, limit, offset, len(items))
}

// HandleGetContent handles GET /api/v1/content/{id}.
func (h *Handlers) HandleGetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	content, err := h.db.GetContent(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get content")
		return
	}
	writeJSON(w, r, http.StatusOK, content)
}

// HandleGetTaskContent handles GET /api/v1/tasks/{id}/content.
func (h *Handlers) HandleGetTaskContent(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	content, err := h.db.GetContentByTask(r.Context(), UserIDFromContext(r.Context()), taskID)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get task content")
		return
	}
	writeJSON(w, r, http.StatusOK, content)
}

// HandleUpdateContent handles PATCH /api/v1/content/{id}. Only flags
// are editable; the artifact payload itself is immutable.
func (h *Handlers) HandleUpdateContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req model.UpdateContentRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	content, err := h.db.GetContent(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get content")
		return
	}
	if content.UserID != UserIDFromContext(r.Context()) {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "cannot edit another user's content")
		return
	}

	if req.IsPublic != nil {
		if *req.IsPublic {
			content.MakePublic()
		} else {
			content.MakePrivate()
		}
	}
	if req.IsFavorite != nil {
		if *req.IsFavorite {
			content.MarkFavorite()
		} else {
			content.UnmarkFavorite()
		}
	}
	if req.Tags != nil {
		content.Tags = req.Tags
	}
	if req.ExpiresAt != nil {
		content.ExpiresAt = req.ExpiresAt
	}

	updated, err := h.db.UpdateContentFlags(r.Context(), content)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to update content")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleRecordDownload handles POST /api/v1/content/{id}/download.
// Bumps the download counter and returns the artifact so the caller
// can follow its file URL.
func (h *Handlers) HandleRecordDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	content, err := h.db.GetContent(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get content")
		return
	}
	if content.IsExpired() {
		writeError(w, r, http.StatusGone, model.ErrCodeNotFound, "content has expired")
		return
	}
	content.IncrementDownloads()

	// Public artifacts downloaded by other users keep the owner scope
	// on the update, so route it through the owner ID.
	updated, err := h.db.UpdateContentFlags(r.Context(), content)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to record download")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteContent handles DELETE /api/v1/content/{id}.
func (h *Handlers) HandleDeleteContent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.db.DeleteContent(r.Context(), UserIDFromContext(r.Context()), id); err != nil {
		h.handleStorageError(w, r, err, "failed to delete content")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
