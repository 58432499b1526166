package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentdesk/internal/crypto"
	"rentdesk/internal/model"
)

// TenantRepository persists tenant profiles. The notes and bank_account
// columns pass through the field cipher on every write and read; the rest of
// the application only ever sees plaintext or nil.
type TenantRepository struct {
	pool   *pgxpool.Pool
	cipher *crypto.FieldCipher
}

func NewTenantRepository(pool *pgxpool.Pool, cipher *crypto.FieldCipher) *TenantRepository {
	return &TenantRepository{pool: pool, cipher: cipher}
}

func (r *TenantRepository) Upsert(ctx context.Context, profile model.TenantProfile) error {
	// A write that cannot be encrypted must never land as plaintext.
	notes, err := r.cipher.EncryptField(profile.Notes)
	if err != nil {
		return fmt.Errorf("encrypt notes: %w", model.ErrEncryptionUnavailable)
	}
	bank, err := r.cipher.EncryptField(profile.BankAccount)
	if err != nil {
		return fmt.Errorf("encrypt bank account: %w", model.ErrEncryptionUnavailable)
	}

	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx,
		`INSERT INTO tenant_profiles (user_id, full_name, notes, bank_account, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET full_name = EXCLUDED.full_name,
		     notes = EXCLUDED.notes,
		     bank_account = EXCLUDED.bank_account,
		     updated_at = EXCLUDED.updated_at`,
		profile.UserID, profile.FullName, notes, bank, now)
	if err != nil {
		return fmt.Errorf("upsert tenant profile: %w", err)
	}
	return nil
}

func (r *TenantRepository) FindByUserID(ctx context.Context, userID string) (model.TenantProfile, error) {
	var p model.TenantProfile
	var notes, bank *string

	err := r.pool.QueryRow(ctx,
		`SELECT user_id, full_name, notes, bank_account, created_at, updated_at
		 FROM tenant_profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.FullName, &notes, &bank, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.TenantProfile{}, model.ErrTenantNotFound
	}
	if err != nil {
		return model.TenantProfile{}, fmt.Errorf("find tenant profile: %w", err)
	}

	// Corrupt or key-rotated ciphertext surfaces as nil, never as a failed read.
	p.Notes = r.cipher.DecryptField(notes)
	p.BankAccount = r.cipher.DecryptField(bank)
	return p, nil
}

func (r *TenantRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tenant_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete tenant profile: %w", err)
	}
	return nil
}
