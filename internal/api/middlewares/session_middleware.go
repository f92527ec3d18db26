package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/snapsolve/snapsolve/internal/core/session"
)

// writeJSONError keeps middleware rejections in the same JSON shape the
// handlers use.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type ctxKey int

const (
	sessionKey ctxKey = iota
	userIDKey
)

// SessionFromContext returns the request's session, if any.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*session.Session)
	return s, ok
}

// UserIDFromContext returns the authenticated user's id, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// LoadSession resolves the session cookie and, when valid, attaches the
// session and user id to the request context. It never rejects: endpoints
// that need authentication stack RequireUser on top.
func LoadSession(manager *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err == nil {
				if s, err := manager.Verify(cookie.Value); err == nil {
					ctx := context.WithValue(r.Context(), sessionKey, s)
					ctx = context.WithValue(ctx, userIDKey, s.UserID)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests that carry no authenticated session.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
