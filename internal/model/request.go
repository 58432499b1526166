package model

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangeRoleRequest struct {
	Role string `json:"role"`
}

type TenantUpsertRequest struct {
	FullName    string  `json:"full_name"`
	Notes       *string `json:"notes"`
	BankAccount *string `json:"bank_account"`
}
