// Package csrf implements double-submit tokens bound to a per-session secret.
// The secret lives server-side in the session record; the derived token goes
// to the client and is verified statelessly against the secret, so nothing
// per-token is ever stored.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/snapsolve/snapsolve/internal/core"
)

const (
	secretLength = 32 // 256 bits
	saltLength   = 16
)

// HeaderName is the request header carrying the client's token.
const HeaderName = "X-CSRF-Token"

// GenerateSecret returns a fresh session secret. Issuing a new secret
// invalidates every token derived from the previous one.
func GenerateSecret() (string, error) {
	b := make([]byte, secretLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DeriveToken builds a verifiable token from the session secret. Each call
// produces a distinct token (random salt); all of them stay valid until the
// secret is regenerated.
func DeriveToken(secret string) (string, error) {
	if secret == "" {
		return "", core.ErrInvalidCSRFToken
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(salt)
	return s + "." + sign(secret, s), nil
}

// VerifyToken checks token against the session secret. Fails closed: a
// missing secret, missing token, or malformed/mismatched MAC all reject.
func VerifyToken(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	salt, mac, ok := strings.Cut(token, ".")
	if !ok || salt == "" || mac == "" {
		return false
	}
	expected := sign(secret, salt)
	return hmac.Equal([]byte(expected), []byte(mac))
}

func sign(secret, salt string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil))
}
