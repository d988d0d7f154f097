package server

import (
	"errors"
	"net/http"

	"github.com/gestorlead/studio/internal/auth"
	"github.com/gestorlead/studio/internal/model"
	"github.com/gestorlead/studio/internal/storage"
)

// HandleGoogleURL handles POST /api/v1/auth/google/url.
func (h *Handlers) HandleGoogleURL(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeError(w, r, http.StatusNotImplemented, model.ErrCodeInvalidInput, "google sign-in is not configured")
		return
	}

	url, state, err := h.oauth.AuthURL()
	if err != nil {
		h.writeInternalError(w, r, "failed to build auth url", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.GoogleURLResponse{
		AuthorizationURL: url,
		State:            state,
	})
}

// HandleGoogleCallback handles POST /api/v1/auth/google/callback.
// Exchanges the authorization code, creates or links the account, and
// issues a token pair.
func (h *Handlers) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeError(w, r, http.StatusNotImplemented, model.ErrCodeInvalidInput, "google sign-in is not configured")
		return
	}

	var req model.GoogleCallbackRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Code == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "code is required")
		return
	}

	profile, err := h.oauth.Exchange(r.Context(), req.Code)
	if err != nil {
		h.logger.Warn("oauth exchange failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "authorization code rejected")
		return
	}

	user, err := h.resolveGoogleUser(r, profile)
	if err != nil {
		h.writeInternalError(w, r, "failed to resolve account", err)
		return
	}
	if !user.IsActive {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "account is deactivated")
		return
	}

	h.issueTokens(w, r, user)
}

// resolveGoogleUser finds the account for a Google profile, linking by
// email or creating a fresh one with the signup credit grant.
func (h *Handlers) resolveGoogleUser(r *http.Request, profile auth.GoogleProfile) (model.User, error) {
	ctx := r.Context()

	user, err := h.db.GetUserByGoogleID(ctx, profile.Sub)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.User{}, err
	}

	// Link an existing email account to this Google identity.
	user, err = h.db.GetUserByEmail(ctx, profile.Email)
	if err == nil {
		user.GoogleID = &profile.Sub
		if user.AvatarURL == nil && profile.Picture != "" {
			user.AvatarURL = &profile.Picture
		}
		return h.db.UpdateUser(ctx, user)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.User{}, err
	}

	user = model.User{
		Email:         profile.Email,
		GoogleID:      &profile.Sub,
		CreditBalance: h.signupCredits,
		IsActive:      true,
	}
	if profile.Name != "" {
		user.FullName = &profile.Name
	}
	if profile.Picture != "" {
		user.AvatarURL = &profile.Picture
	}
	if profile.EmailVerified {
		user.VerifyEmail()
	}
	return h.db.CreateUser(ctx, user)
}

// issueTokens writes a token pair response and records the login.
func (h *Handlers) issueTokens(w http.ResponseWriter, r *http.Request, user model.User) {
	access, refresh, expiresAt, err := h.jwtMgr.IssueTokenPair(user)
	if err != nil {
		h.writeInternalError(w, r, "failed to issue tokens", err)
		return
	}
	if err := h.db.TouchUserLastLogin(r.Context(), user.ID); err != nil {
		h.logger.Error("failed to record login", "user_id", user.ID, "error", err)
	}

	writeJSON(w, r, http.StatusOK, model.TokenPairResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
		User:         &user,
	})
}

// HandleLogin handles POST /api/v1/auth/login. Password sign-in for
// accounts provisioned by an admin; Google-only accounts have no
// password hash and are rejected the same way as a wrong password.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "email and password are required")
		return
	}

	user, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Burn the same hashing cost as a real check so response
			// timing does not reveal whether the account exists.
			auth.DummyVerify()
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid email or password")
			return
		}
		h.writeInternalError(w, r, "failed to load account", err)
		return
	}
	if user.PasswordHash == nil {
		auth.DummyVerify()
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid email or password")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, *user.PasswordHash)
	if err != nil {
		h.writeInternalError(w, r, "failed to verify password", err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid email or password")
		return
	}
	if !user.IsActive {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "account is deactivated")
		return
	}

	h.issueTokens(w, r, user)
}

// HandleRefresh handles POST /api/v1/auth/refresh. Accepts a refresh
// token and issues a fresh pair.
func (h *Handlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "refresh_token is required")
		return
	}

	claims, err := h.jwtMgr.ValidateToken(req.RefreshToken, auth.TokenRefresh)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid or expired refresh token")
		return
	}

	// Reload the account so revocations and credit changes take effect.
	user, err := h.db.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "account no longer exists")
			return
		}
		h.writeInternalError(w, r, "failed to load account", err)
		return
	}
	if !user.IsActive {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "account is deactivated")
		return
	}

	h.issueTokens(w, r, user)
}

// HandleMe handles GET /api/v1/auth/me.
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.db.GetUserByID(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.handleStorageError(w, r, err, "failed to load current user")
		return
	}
	writeJSON(w, r, http.StatusOK, user)
}

// HandleLogout handles POST /api/v1/auth/logout. Tokens are stateless,
// so the server side has nothing to revoke; the endpoint exists so
// clients have a uniform sign-out call.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

// HandleVerify handles GET /api/v1/auth/verify. Confirms the presented
// access token is valid and returns its claims summary.
func (h *Handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "no claims in context")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"user_id":    claims.UserID,
		"email":      claims.Email,
		"is_admin":   claims.IsAdmin,
		"expires_at": claims.ExpiresAt.Time,
	})
}
