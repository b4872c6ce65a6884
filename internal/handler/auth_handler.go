package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"studio-api/internal/container"
	"studio-api/internal/service"
	"studio-api/pkg/errors"
)

// emailPattern is deliberately loose; the provider is the authority on what
// constitutes a registered address.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// AuthHandler handles the auth gateway endpoints: login, verify, refresh and
// user lookup.
type AuthHandler struct {
	container *container.Container
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(container *container.Container) *AuthHandler {
	return &AuthHandler{
		container: container,
	}
}

// loginRequest is the POST /api/auth/login body
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login. The password grant runs first, then
// the user record fetch; a failure in either returns no partial user data.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil), log)
		return
	}

	if req.Email == "" || req.Password == "" {
		h.countLogin("invalid_input")
		respondError(w, errors.NewValidationError("Email and password are required", nil), log)
		return
	}
	if !emailPattern.MatchString(req.Email) {
		h.countLogin("invalid_input")
		respondError(w, errors.NewValidationError("Invalid email format", nil), log)
		return
	}

	identity := h.container.GetIdentity()

	signIn, err := identity.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		h.countLogin("failure")
		respondError(w, mapSignInError(err), log)
		return
	}

	user, err := identity.LookupByIDToken(ctx, signIn.IDToken)
	if err != nil {
		log.WithError(err).Error("User record fetch after password grant failed")
		h.countLogin("failure")
		respondError(w, errors.NewExternalError("Authentication failed", err), log)
		return
	}

	h.countLogin("success")
	log.WithField("user_id", user.UID).Info("Login succeeded")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"user":         user,
		"token":        signIn.IDToken,
		"refreshToken": signIn.RefreshToken,
		"expiresIn":    signIn.ExpiresIn,
	}, log)
}

// verifyRequest is the POST /api/auth/verify body
type verifyRequest struct {
	IDToken string `json:"idToken"`
}

// Verify handles POST /api/auth/verify: decode the token, then fetch the
// current user record behind it.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()
	ctx := r.Context()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil), log)
		return
	}
	if req.IDToken == "" {
		respondError(w, errors.NewValidationError("idToken is required", nil), log)
		return
	}

	claims, err := h.container.GetVerifier().Verify(ctx, req.IDToken)
	if err != nil {
		respondError(w, errors.NewAuthenticationError("Invalid or expired token"), log)
		return
	}

	user, err := h.container.GetIdentity().LookupByIDToken(ctx, req.IDToken)
	if err != nil {
		if stderrors.Is(err, service.ErrUserNotFound) {
			respondError(w, errors.NewAuthenticationError("User no longer exists"), log)
			return
		}
		respondError(w, errors.NewExternalError("Token verification failed", err), log)
		return
	}

	log.WithField("user_id", claims.UID).Debug("Token verified")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	}, log)
}

// refreshRequest is the POST /api/auth/refresh body
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /api/auth/refresh. It requires no prior access token
// and is the only path that keeps a session alive indefinitely.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("Invalid request body", nil), log)
		return
	}
	if req.RefreshToken == "" {
		respondError(w, errors.NewValidationError("refreshToken is required", nil), log)
		return
	}

	result, err := h.container.GetIdentity().Refresh(ctx, req.RefreshToken)
	if err != nil {
		if stderrors.Is(err, service.ErrNotConfigured) {
			respondError(w, errors.NewConfigurationError("Authentication is not configured"), log)
			return
		}
		respondError(w, errors.NewAuthenticationError("Invalid refresh token"), log)
		return
	}

	if m := h.container.GetMetrics(); m != nil {
		m.TokenRefreshes.Inc()
	}
	log.WithField("user_id", result.UID).Debug("Session refreshed")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"token":        result.IDToken,
		"refreshToken": result.RefreshToken,
		"expiresIn":    result.ExpiresIn,
	}, log)
}

// GetUser handles GET /api/auth/user/{uid}
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	log := h.container.GetLogger()
	ctx := r.Context()

	uid := chi.URLParam(r, "uid")
	if uid == "" {
		respondError(w, errors.NewValidationError("uid is required", nil), log)
		return
	}

	user, err := h.container.GetIdentity().LookupByUID(ctx, uid)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrUserNotFound):
			respondError(w, errors.NewNotFoundError("User not found"), log)
		case stderrors.Is(err, service.ErrNotConfigured):
			respondError(w, errors.NewConfigurationError("Authentication is not configured"), log)
		default:
			respondError(w, errors.NewExternalError("User lookup failed", err), log)
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	}, log)
}

// mapSignInError translates identity provider sentinels into response errors
// with distinct, human-readable messages.
func mapSignInError(err error) error {
	switch {
	case stderrors.Is(err, service.ErrInvalidCredentials):
		return errors.NewAuthenticationError("Invalid password")
	case stderrors.Is(err, service.ErrUserNotFound):
		return errors.NewAuthenticationError("User not found")
	case stderrors.Is(err, service.ErrInvalidEmail):
		return errors.NewValidationError("Invalid email format", nil)
	case stderrors.Is(err, service.ErrNotConfigured):
		return errors.NewConfigurationError("Authentication is not configured")
	default:
		return errors.NewExternalError("Authentication service unavailable", err)
	}
}

func (h *AuthHandler) countLogin(outcome string) {
	if m := h.container.GetMetrics(); m != nil {
		m.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}
