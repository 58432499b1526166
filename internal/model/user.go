package model

import "time"

// Roles form a closed set; anything else is rejected at the orchestration
// boundary rather than compared ad hoc in handlers.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleTenant  = "tenant"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleTenant:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type AuthClaims struct {
	UserID  string `json:"sub"`
	Role    string `json:"role"`
	TokenID string `json:"jti"`
}

type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type TokenPair struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"-"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	User         AuthUser `json:"user"`
}
