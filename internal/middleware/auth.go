package middleware

import (
	"context"
	"net/http"
	"strings"

	"rentdesk/internal/model"
)

type tokenVerifier interface {
	VerifyAccessToken(tokenString string) (*model.AuthClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	verifier tokenVerifier
	events   eventRecorder
}

func NewAuthMiddleware(verifier tokenVerifier, events eventRecorder) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, events: events}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			writeGuardError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		token := strings.TrimSpace(header[7:])
		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			if m.events != nil {
				m.events.Record(r.Context(), model.EventInvalidToken, extractClientIP(r), err.Error())
			}
			writeGuardError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), authClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, role := range allowedRoles {
		roleSet[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeGuardError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			if _, exists := roleSet[strings.ToLower(claims.Role)]; !exists {
				writeGuardError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*model.AuthClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AuthClaims)
	return claims, ok
}
