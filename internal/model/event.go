package model

import "time"

// Security event kinds recorded to the append-only log.
const (
	EventLockoutTriggered = "lockout_triggered"
	EventLoginFailed      = "login_failed"
	EventCSRFMismatch     = "csrf_mismatch"
	EventRefreshReuse     = "refresh_reuse"
	EventInvalidToken     = "invalid_token"
	EventSessionsRevoked  = "sessions_revoked"
)

type SecurityEvent struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Identifier string    `json:"identifier"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
