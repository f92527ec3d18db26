package middleware

import (
	"net/http"

	"github.com/snapsolve/snapsolve/internal/core/csrf"
	"github.com/snapsolve/snapsolve/internal/core/session"
)

// VerifyCSRF enforces the double-submit token on every mutating method.
// Verification fails closed: no session, no issued secret, or a token that
// does not verify against the secret all reject with 403.
func VerifyCSRF(manager *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			s, ok := SessionFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusForbidden, "invalid csrf token")
				return
			}
			secret, _ := manager.GetValue(s, session.KeyCSRFSecret)
			token := r.Header.Get(csrf.HeaderName)
			if !csrf.VerifyToken(secret, token) {
				writeJSONError(w, http.StatusForbidden, "invalid csrf token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
