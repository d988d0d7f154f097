package server

import (
	"net/http"

	"github.com/gestorlead/studio/internal/auth"
	"github.com/gestorlead/studio/internal/model"
)

// User management is the admin surface; routes are mounted behind
// requireAdmin in server.go.

// HandleListUsers handles GET /api/v1/users.
func (h *Handlers) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	users, total, err := h.db.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.writeInternalError(w, r, "failed to list users", err)
		return
	}
	writeList(w, r, users, total, limit, offset, len(users))
}

// HandleCreateUser handles POST /api/v1/users.
func (h *Handlers) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := model.ValidateEmail(req.Email); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	if req.CreditBalance != nil && *req.CreditBalance < 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "credit_balance must not be negative")
		return
	}

	user := model.User{
		Email:              req.Email,
		FullName:           req.FullName,
		SubscriptionTierID: req.SubscriptionTierID,
		IsActive:           true,
		IsAdmin:            req.IsAdmin,
		Preferences:        req.Preferences,
		CreditBalance:      h.signupCredits,
	}
	if req.CreditBalance != nil {
		user.CreditBalance = *req.CreditBalance
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			h.writeInternalError(w, r, "failed to hash password", err)
			return
		}
		user.PasswordHash = &hash
	}

	created, err := h.db.CreateUser(r.Context(), user)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to create user")
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// HandleGetUser handles GET /api/v1/users/{id}.
func (h *Handlers) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get user")
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

// HandleUpdateUser handles PATCH /api/v1/users/{id}.
func (h *Handlers) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req model.UpdateUserRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to get user")
		return
	}

	if req.FullName != nil {
		user.FullName = req.FullName
	}
	if req.AvatarURL != nil {
		user.AvatarURL = req.AvatarURL
	}
	if req.SubscriptionTierID != nil {
		user.SubscriptionTierID = req.SubscriptionTierID
	}
	if req.IsActive != nil {
		if *req.IsActive {
			user.Activate()
		} else {
			user.Deactivate()
		}
	}
	if req.Preferences != nil {
		user.Preferences = req.Preferences
	}

	updated, err := h.db.UpdateUser(r.Context(), user)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to update user")
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteUser handles DELETE /api/v1/users/{id}. Cascades to the
// user's tasks, agents, campaigns, keys and content.
func (h *Handlers) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	if id == UserIDFromContext(r.Context()) {
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "cannot delete your own account")
		return
	}
	if err := h.db.DeleteUser(r.Context(), id); err != nil {
		h.handleStorageError(w, r, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAdjustCredits handles POST /api/v1/users/{id}/credits.
func (h *Handlers) HandleAdjustCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req model.AdjustCreditsRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Amount == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "amount must not be zero")
		return
	}

	user, err := h.db.AdjustCredits(r.Context(), id, req.Amount)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to adjust credits")
		return
	}

	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}
	h.logger.Info("credits adjusted",
		"user_id", id, "amount", req.Amount, "balance", user.CreditBalance,
		"reason", reason, "admin_id", UserIDFromContext(r.Context()))

	writeJSON(w, r, http.StatusOK, user)
}

// HandleVerifyUserEmail handles POST /api/v1/users/{id}/verify-email.
func (h *Handlers) HandleVerifyUserEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	user, err := h.db.VerifyUserEmail(r.Context(), id)
	if err != nil {
		h.handleStorageError(w, r, err, "failed to verify email")
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}
