package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	middleware "github.com/snapsolve/snapsolve/internal/api/middlewares"
	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/core/session"
	"github.com/snapsolve/snapsolve/internal/services"
)

// AuthHandler completes external-provider logins and manages the session
// cookie. The OAuth redirect dance itself lives in front of this service;
// by the time we are called the provider profile is already verified.
type AuthHandler struct {
	users    *services.UserService
	sessions *session.Manager
}

func NewAuthHandler(users *services.UserService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

type loginRequest struct {
	ExternalID string  `json:"external_id"`
	Email      string  `json:"email"`
	Name       string  `json:"name"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
}

// CreateSession upserts the user by external id and sets the session cookie.
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid body", core.ErrValidation))
		return
	}

	user, err := h.users.CompleteLogin(r.Context(), req.ExternalID, req.Email, req.Name, req.AvatarURL)
	if err != nil {
		writeError(w, err)
		return
	}

	_, token, err := h.sessions.Create(user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, user)
}

// Me returns the current user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout destroys the server-side session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if s, ok := middleware.SessionFromContext(r.Context()); ok {
		h.sessions.Destroy(s.ID)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
