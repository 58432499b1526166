package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rentdesk/internal/crypto"
	"rentdesk/internal/model"
	"rentdesk/internal/security"
)

// UserStore is the slice of the user repository the auth service needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
}

// TokenStore persists refresh tokens keyed by their sha256 hash.
type TokenStore interface {
	Create(ctx context.Context, token model.RefreshToken) error
	Find(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	Delete(ctx context.Context, tokenHash string) error
}

// EventSink records security events best-effort.
type EventSink interface {
	Record(ctx context.Context, kind string, identifier string, detail string)
}

type AuthService struct {
	jwtSecret    []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
	storeTimeout time.Duration
	users        UserStore
	tokens       TokenStore
	lockout      *security.LockoutGuard
	events       EventSink
	now          func() time.Time
}

func NewAuthService(
	jwtSecret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
	storeTimeout time.Duration,
	users UserStore,
	tokens TokenStore,
	lockout *security.LockoutGuard,
	events EventSink,
) (*AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}

	return &AuthService{
		jwtSecret:    []byte(jwtSecret),
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		storeTimeout: storeTimeout,
		users:        users,
		tokens:       tokens,
		lockout:      lockout,
		events:       events,
		now:          time.Now,
	}, nil
}

// SetClock overrides the time source, used by tests.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// Login runs the full authentication flow: lockout check, credential check,
// token minting, lockout clear. Unknown accounts and wrong passwords return
// the same error; the log keeps the distinction.
func (s *AuthService) Login(ctx context.Context, email string, password string, client model.ClientContext) (model.TokenPair, error) {
	accountID := lockoutAccountKey(email)
	ipID := lockoutIPKey(client.IP)

	for _, id := range []string{accountID, ipID} {
		if id == "" {
			continue
		}
		if locked, remaining := s.lockout.IsLocked(id); locked {
			return model.TokenPair{}, &model.LockedError{Remaining: remaining}
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			slog.Info("login failed", "reason", "unknown account", "ip", client.IP)
			s.recordLoginFailure(ctx, accountID, ipID)
			return model.TokenPair{}, model.ErrInvalidCredentials
		}
		return model.TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Info("login failed", "reason", "wrong password", "user_id", user.ID, "ip", client.IP)
		s.recordLoginFailure(ctx, accountID, ipID)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	s.lockout.Clear(accountID)
	s.lockout.Clear(ipID)

	return s.issueTokenPair(ctx, user, client)
}

func (s *AuthService) recordLoginFailure(ctx context.Context, identifiers ...string) {
	for _, id := range identifiers {
		if id == "" {
			continue
		}
		s.events.Record(ctx, model.EventLoginFailed, id, "")
		if s.lockout.RecordFailure(id) {
			slog.Warn("lockout triggered", "identifier", id)
			s.events.Record(ctx, model.EventLockoutTriggered, id, "")
		}
	}
}

// IssueAccessToken mints a short-lived stateless HS256 token carrying the
// subject id and role.
func (s *AuthService) IssueAccessToken(user model.User) (string, error) {
	iat := s.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID,
		"role": user.Role,
		"jti":  uuid.NewString(),
		"iat":  iat.Unix(),
		"exp":  iat.Add(s.accessTTL).Unix(),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken is stateless: it never touches the store, so a stolen
// access token is bounded by its TTL. Anything unexpected fails closed.
func (s *AuthService) VerifyAccessToken(tokenString string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, model.ErrTokenMalformed
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, model.ErrTokenMalformed
	}
	if !parsed.Valid {
		return nil, model.ErrTokenMalformed
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.ErrTokenMalformed
	}

	claims := &model.AuthClaims{}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Role, _ = claimsMap["role"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == "" || claims.Role == "" {
		return nil, model.ErrTokenMalformed
	}

	return claims, nil
}

// IssueRefreshToken creates an opaque high-entropy value, persists its hash,
// and returns the plain value. The record never leaves the store layer.
func (s *AuthService) IssueRefreshToken(ctx context.Context, userID string, client model.ClientContext) (string, error) {
	opaque, err := crypto.NewOpaqueToken(32)
	if err != nil {
		return "", err
	}

	issued := s.now().UTC()
	record := model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: crypto.HashTokenHex(opaque),
		IssuedAt:  issued,
		ExpiresAt: issued.Add(s.refreshTTL),
		UserAgent: client.UserAgent,
		IP:        client.IP,
	}

	storeCtx, cancel := s.boundStoreCtx(ctx)
	defer cancel()
	if err := s.tokens.Create(storeCtx, record); err != nil {
		return "", fmt.Errorf("persist refresh token: %w", err)
	}

	return opaque, nil
}

// Rotate exchanges a valid refresh token for a fresh pair, revoking the old
// one. Every refresh rotates, so a replayed old value is rejected as revoked
// and surfaces as a reuse signal.
func (s *AuthService) Rotate(ctx context.Context, oldOpaque string, client model.ClientContext) (model.TokenPair, error) {
	record, err := s.lookupRefreshToken(ctx, oldOpaque)
	if err != nil {
		return model.TokenPair{}, err
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.TokenPair{}, model.ErrTokenRevoked
		}
		return model.TokenPair{}, fmt.Errorf("lookup subject: %w", err)
	}

	storeCtx, cancel := s.boundStoreCtx(ctx)
	defer cancel()
	if err := s.tokens.Revoke(storeCtx, record.TokenHash); err != nil {
		return model.TokenPair{}, fmt.Errorf("revoke rotated token: %w", err)
	}

	return s.issueTokenPair(ctx, user, client)
}

// Logout revokes a single refresh token. Unknown and already revoked values
// are not errors; the observable state is the same.
func (s *AuthService) Logout(ctx context.Context, opaque string) error {
	if strings.TrimSpace(opaque) == "" {
		return nil
	}

	storeCtx, cancel := s.boundStoreCtx(ctx)
	defer cancel()
	if err := s.tokens.Revoke(storeCtx, crypto.HashTokenHex(opaque)); err != nil {
		return fmt.Errorf("revoke on logout: %w", err)
	}
	return nil
}

// RevokeAll invalidates every live refresh token for the subject ("log out
// everywhere", credential change, role change).
func (s *AuthService) RevokeAll(ctx context.Context, userID string) error {
	storeCtx, cancel := s.boundStoreCtx(ctx)
	defer cancel()
	if err := s.tokens.RevokeAllForUser(storeCtx, userID); err != nil {
		return fmt.Errorf("revoke all for subject: %w", err)
	}

	s.events.Record(ctx, model.EventSessionsRevoked, userID, "")
	return nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID string) (model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.AuthUser{}, err
	}
	return model.AuthUser{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// lookupRefreshToken validates an opaque value against the store. Store
// errors of any kind, including timeouts, are treated as not found.
func (s *AuthService) lookupRefreshToken(ctx context.Context, opaque string) (model.RefreshToken, error) {
	hash := crypto.HashTokenHex(opaque)

	storeCtx, cancel := s.boundStoreCtx(ctx)
	defer cancel()

	record, err := s.tokens.Find(storeCtx, hash)
	if err != nil {
		if !errors.Is(err, model.ErrTokenNotFound) {
			slog.Warn("refresh token lookup failed closed", "error", err)
		}
		return model.RefreshToken{}, model.ErrTokenNotFound
	}

	if record.Revoked() {
		s.events.Record(ctx, model.EventRefreshReuse, record.UserID, "revoked refresh token re-presented")
		return model.RefreshToken{}, model.ErrTokenRevoked
	}

	if record.Expired(s.now()) {
		// Lazy garbage collection; the sweep covers tokens never looked up.
		delCtx, delCancel := s.boundStoreCtx(ctx)
		defer delCancel()
		if err := s.tokens.Delete(delCtx, hash); err != nil {
			slog.Warn("delete expired refresh token", "error", err)
		}
		return model.RefreshToken{}, model.ErrTokenExpired
	}

	return record, nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, user model.User, client model.ClientContext) (model.TokenPair, error) {
	accessToken, err := s.IssueAccessToken(user)
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, err := s.IssueRefreshToken(ctx, user.ID, client)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         model.AuthUser{ID: user.ID, Email: user.Email, Role: user.Role},
	}, nil
}

func (s *AuthService) boundStoreCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func lockoutAccountKey(email string) string {
	return "account:" + strings.ToLower(strings.TrimSpace(email))
}

func lockoutIPKey(ip string) string {
	if strings.TrimSpace(ip) == "" {
		return ""
	}
	return "ip:" + ip
}
