package handler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rentdesk/internal/model"
)

// stubVerifier hands back fixed claims, standing in for the jwt verifier
// when a test needs an authenticated request.
type stubVerifier struct {
	claims *model.AuthClaims
	err    error
}

func (v stubVerifier) VerifyAccessToken(string) (*model.AuthClaims, error) {
	return v.claims, v.err
}

type memUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newMemUserStore(users ...model.User) *memUserStore {
	s := &memUserStore{users: map[string]model.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memUserStore) FindByID(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memUserStore) UpdateRole(_ context.Context, userID string, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.Role = role
	s.users[userID] = u
	return nil
}

type memTokenStore struct {
	mu     sync.Mutex
	byHash map[string]model.RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{byHash: map[string]model.RefreshToken{}}
}

func (s *memTokenStore) Create(_ context.Context, token model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[token.TokenHash] = token
	return nil
}

func (s *memTokenStore) Find(_ context.Context, tokenHash string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[tokenHash]
	if !ok {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	return t, nil
}

func (s *memTokenStore) Revoke(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[tokenHash]
	if !ok || t.RevokedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	s.byHash[tokenHash] = t
	return nil
}

func (s *memTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for hash, t := range s.byHash {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			s.byHash[hash] = t
		}
	}
	return nil
}

func (s *memTokenStore) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byHash, tokenHash)
	return nil
}

func (s *memTokenStore) liveCountFor(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.byHash {
		if t.UserID == userID && t.RevokedAt == nil {
			count++
		}
	}
	return count
}

type memEventSink struct {
	mu    sync.Mutex
	kinds []string
}

func (s *memEventSink) Record(_ context.Context, kind string, _ string, _ string) {
	s.mu.Lock()
	s.kinds = append(s.kinds, kind)
	s.mu.Unlock()
}

type memTenantStore struct {
	mu       sync.Mutex
	profiles map[string]model.TenantProfile
}

func newMemTenantStore() *memTenantStore {
	return &memTenantStore{profiles: map[string]model.TenantProfile{}}
}

func (s *memTenantStore) Upsert(_ context.Context, profile model.TenantProfile) error {
	s.mu.Lock()
	s.profiles[profile.UserID] = profile
	s.mu.Unlock()
	return nil
}

func (s *memTenantStore) FindByUserID(_ context.Context, userID string) (model.TenantProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return model.TenantProfile{}, model.ErrTenantNotFound
	}
	return p, nil
}

func (s *memTenantStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.profiles, userID)
	s.mu.Unlock()
	return nil
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}
