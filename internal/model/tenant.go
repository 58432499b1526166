package model

import "time"

// TenantProfile holds the per-tenant record attached to a user with the
// tenant role. Notes and BankAccount are stored encrypted; a nil pointer on
// read means the stored value could not be decrypted, not an empty string.
type TenantProfile struct {
	UserID      string    `json:"user_id"`
	FullName    string    `json:"full_name"`
	Notes       *string   `json:"notes"`
	BankAccount *string   `json:"bank_account"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
