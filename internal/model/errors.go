package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")

	// Token related errors
	ErrTokenNotFound  = errors.New("token not found")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrTokenMalformed = errors.New("token malformed")

	// Guard related errors
	ErrAccountLocked = errors.New("account locked")
	ErrCSRFMismatch  = errors.New("csrf token mismatch")

	// Encryption related errors
	ErrEncryptionUnavailable = errors.New("encrypted value unavailable")

	// Tenant related errors
	ErrTenantNotFound = errors.New("tenant profile not found")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

// LockedError carries the remaining lockout duration so handlers can surface
// a retry hint. It unwraps to ErrAccountLocked.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked for %d more seconds", e.RemainingSeconds())
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// RemainingSeconds rounds up so a caller never retries too early.
func (e *LockedError) RemainingSeconds() int64 {
	secs := int64((e.Remaining + time.Second - 1) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}
