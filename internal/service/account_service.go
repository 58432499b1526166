package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rentdesk/internal/model"
)

// AccountUserStore adds the role mutation on top of the read-only UserStore.
type AccountUserStore interface {
	UserStore
	UpdateRole(ctx context.Context, userID string, role string) error
}

// TenantProfileStore is the dependent-record side of a role transition.
type TenantProfileStore interface {
	Upsert(ctx context.Context, profile model.TenantProfile) error
	FindByUserID(ctx context.Context, userID string) (model.TenantProfile, error)
	Delete(ctx context.Context, userID string) error
}

// AccountService orchestrates role transitions. A role change must leave no
// stale session behind: dependent profile records are synced and every
// refresh token for the subject is revoked before the call returns.
type AccountService struct {
	users   AccountUserStore
	tenants TenantProfileStore
	tokens  TokenStore
	events  EventSink
}

func NewAccountService(users AccountUserStore, tenants TenantProfileStore, tokens TokenStore, events EventSink) *AccountService {
	return &AccountService{users: users, tenants: tenants, tokens: tokens, events: events}
}

// ChangeRole applies the transition in order: durable role mutation, profile
// sync, then revoke-all. If revocation fails the whole call fails; the
// caller must not report success while old-role tokens stay valid.
func (s *AccountService) ChangeRole(ctx context.Context, userID string, newRole string) (model.AuthUser, error) {
	if !model.ValidRole(newRole) {
		return model.AuthUser{}, model.ErrInvalidRole
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.AuthUser{}, err
	}

	if user.Role == newRole {
		return model.AuthUser{ID: user.ID, Email: user.Email, Role: user.Role}, nil
	}

	if err := s.users.UpdateRole(ctx, userID, newRole); err != nil {
		return model.AuthUser{}, fmt.Errorf("update role: %w", err)
	}

	if err := s.syncProfile(ctx, user, newRole); err != nil {
		return model.AuthUser{}, err
	}

	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return model.AuthUser{}, fmt.Errorf("revoke sessions after role change: %w", err)
	}
	s.events.Record(ctx, model.EventSessionsRevoked, userID, "role changed to "+newRole)

	slog.Info("role changed", "user_id", userID, "from", user.Role, "to", newRole)
	return model.AuthUser{ID: user.ID, Email: user.Email, Role: newRole}, nil
}

func (s *AccountService) syncProfile(ctx context.Context, user model.User, newRole string) error {
	enteringTenant := newRole == model.RoleTenant
	leavingTenant := user.Role == model.RoleTenant && !enteringTenant

	if enteringTenant {
		_, err := s.tenants.FindByUserID(ctx, user.ID)
		if errors.Is(err, model.ErrTenantNotFound) {
			err = s.tenants.Upsert(ctx, model.TenantProfile{UserID: user.ID})
		}
		if err != nil {
			return fmt.Errorf("create tenant profile: %w", err)
		}
		return nil
	}

	if leavingTenant {
		if err := s.tenants.Delete(ctx, user.ID); err != nil {
			return fmt.Errorf("remove tenant profile: %w", err)
		}
	}

	return nil
}
