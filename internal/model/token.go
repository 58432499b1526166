package model

import "time"

// RefreshToken is the persisted record behind an opaque refresh token. Only
// the sha256 hash of the opaque value is stored; the plain value exists only
// in the response that issued it.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent string
	IP        string
}

func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// ClientContext travels with login/refresh calls so issued tokens can be
// traced back to a device.
type ClientContext struct {
	UserAgent string
	IP        string
}
