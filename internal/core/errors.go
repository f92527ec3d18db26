package core

import "errors"

// Request/input errors (user-correctable)
var (
	ErrValidation = errors.New("invalid input") // 400
)

// Auth errors
var (
	ErrAuthRequired     = errors.New("authentication required")  // 401
	ErrPermissionDenied = errors.New("permission denied")        // 403
	ErrInvalidCSRFToken = errors.New("invalid csrf token")       // 403
	ErrSessionNotFound  = errors.New("session not found")        // 401
	ErrSessionExpired   = errors.New("session expired")          // 401
)

// Resource errors
var (
	ErrNotFound = errors.New("record not found") // 404
)

// Upstream errors (AI backend or persistence, not user-correctable)
var (
	ErrUpstream = errors.New("upstream failure") // 502
)
