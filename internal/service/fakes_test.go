package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rentdesk/internal/model"
)

// fakeClock drives every time-dependent component in these tests.
type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

// memUserStore is an in-memory UserStore/AccountUserStore.
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

// memTokenStore is an in-memory TokenStore with optional fault injection.
type memTokenStore struct {
	mu      sync.Mutex
	byHash  map[string]model.RefreshToken
	findErr error
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
	if s.findErr != nil {
		return model.RefreshToken{}, s.findErr
	}
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

func (s *memTokenStore) contains(tokenHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byHash[tokenHash]
	return ok
}

// memEventSink captures recorded security events.
type memEventSink struct {
	mu     sync.Mutex
	events []model.SecurityEvent
}

func (s *memEventSink) Record(_ context.Context, kind string, identifier string, detail string) {
	s.mu.Lock()
	s.events = append(s.events, model.SecurityEvent{Kind: kind, Identifier: identifier, Detail: detail})
	s.mu.Unlock()
}

func (s *memEventSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

// memTenantStore is an in-memory TenantProfileStore.
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
