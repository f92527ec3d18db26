package handlers

import (
	"net/http"

	middleware "github.com/snapsolve/snapsolve/internal/api/middlewares"
	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/core/csrf"
	"github.com/snapsolve/snapsolve/internal/core/session"
)

// CSRFHandler issues tokens for the double-submit protocol.
type CSRFHandler struct {
	sessions *session.Manager
}

func NewCSRFHandler(sessions *session.Manager) *CSRFHandler {
	return &CSRFHandler{sessions: sessions}
}

// IssueToken (re)generates the session's CSRF secret and returns a derived
// token. Every token derived from the previous secret stops verifying.
func (h *CSRFHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	s, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	secret, err := csrf.GenerateSecret()
	if err != nil {
		writeError(w, err)
		return
	}
	h.sessions.SetValue(s, session.KeyCSRFSecret, secret)

	token, err := csrf.DeriveToken(secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}
