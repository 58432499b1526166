package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/middleware"
	"rentdesk/internal/model"
	"rentdesk/internal/security"
	"rentdesk/internal/service"
)

type handlerFixture struct {
	handler *AuthHandler
	tokens  *memTokenStore
	lockout *security.LockoutGuard
}

func newHandlerFixture(t *testing.T, maxFailures int) *handlerFixture {
	t.Helper()

	users := newMemUserStore(model.User{
		ID:           "user-1",
		Email:        "alice@example.com",
		PasswordHash: mustHash("correct horse"),
		Role:         model.RoleManager,
	})
	tokens := newMemTokenStore()
	lockout := security.NewLockoutGuard(maxFailures, 15*time.Minute, 15*time.Minute, time.Now)

	svc, err := service.NewAuthService(
		"handler-test-secret", 15*time.Minute, 168*time.Hour, 3*time.Second,
		users, tokens, lockout, &memEventSink{})
	require.NoError(t, err)

	csrf := security.NewCSRFIssuer(12*time.Hour, time.Now)
	h := NewAuthHandler(svc, csrf, CookieConfig{
		RefreshName: "rentdesk_refresh",
		CSRFName:    "XSRF-TOKEN",
		Secure:      false,
		RefreshTTL:  168 * time.Hour,
	})

	return &handlerFixture{handler: h, tokens: tokens, lockout: lockout}
}

func loginRequest(t *testing.T, email string, password string) *http.Request {
	t.Helper()
	body, err := json.Marshal(model.LoginRequest{Email: email, Password: password})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (map[string]any, *model.APIError) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    map[string]any  `json:"data"`
		Error   *model.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope.Data, envelope.Error
}

func cookieByName(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginSetsSessionCookies(t *testing.T) {
	fx := newHandlerFixture(t, 5)

	rec := httptest.NewRecorder()
	fx.handler.Login(rec, loginRequest(t, "alice@example.com", "correct horse"))

	require.Equal(t, http.StatusOK, rec.Code)

	refresh := cookieByName(t, rec, "rentdesk_refresh")
	require.NotNil(t, refresh)
	assert.NotEmpty(t, refresh.Value)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, refresh.SameSite)

	csrf := cookieByName(t, rec, "XSRF-TOKEN")
	require.NotNil(t, csrf)
	assert.False(t, csrf.HttpOnly)

	data, apiErr := decodeEnvelope(t, rec)
	require.Nil(t, apiErr)
	assert.NotEmpty(t, data["access_token"])
	assert.Equal(t, csrf.Value, data["csrf_token"])

	// The opaque refresh token travels only in the cookie.
	_, leaked := data["refresh_token"]
	assert.False(t, leaked)
}

func TestLoginWrongPassword(t *testing.T) {
	fx := newHandlerFixture(t, 5)

	rec := httptest.NewRecorder()
	fx.handler.Login(rec, loginRequest(t, "alice@example.com", "wrong"))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	_, apiErr := decodeEnvelope(t, rec)
	require.NotNil(t, apiErr)
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
}

func TestLoginUnknownAccountLooksIdentical(t *testing.T) {
	fx := newHandlerFixture(t, 5)

	knownRec := httptest.NewRecorder()
	fx.handler.Login(knownRec, loginRequest(t, "alice@example.com", "wrong"))
	unknownRec := httptest.NewRecorder()
	fx.handler.Login(unknownRec, loginRequest(t, "nobody@example.com", "wrong"))

	assert.Equal(t, knownRec.Code, unknownRec.Code)
	assert.Equal(t, knownRec.Body.String(), unknownRec.Body.String())
}

func TestLoginLockedAccountGets423(t *testing.T) {
	fx := newHandlerFixture(t, 2)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		fx.handler.Login(rec, loginRequest(t, "alice@example.com", "wrong"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := httptest.NewRecorder()
	fx.handler.Login(rec, loginRequest(t, "alice@example.com", "correct horse"))

	require.Equal(t, http.StatusLocked, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	_, apiErr := decodeEnvelope(t, rec)
	require.NotNil(t, apiErr)
	assert.Equal(t, "ACCOUNT_LOCKED", apiErr.Code)
}

func TestRefreshRotatesCookieAndKillsOldToken(t *testing.T) {
	fx := newHandlerFixture(t, 5)

	loginRec := httptest.NewRecorder()
	fx.handler.Login(loginRec, loginRequest(t, "alice@example.com", "correct horse"))
	require.Equal(t, http.StatusOK, loginRec.Code)
	first := cookieByName(t, loginRec, "rentdesk_refresh")
	require.NotNil(t, first)

	refreshReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	refreshReq.AddCookie(first)
	refreshRec := httptest.NewRecorder()
	fx.handler.Refresh(refreshRec, refreshReq)

	require.Equal(t, http.StatusOK, refreshRec.Code)
	second := cookieByName(t, refreshRec, "rentdesk_refresh")
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)

	// Replaying the pre-rotation token is rejected and the session cookies
	// are torn down.
	replayReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	replayReq.AddCookie(first)
	replayRec := httptest.NewRecorder()
	fx.handler.Refresh(replayRec, replayReq)

	require.Equal(t, http.StatusUnauthorized, replayRec.Code)
	cleared := cookieByName(t, replayRec, "rentdesk_refresh")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestRefreshAcceptsBodyFallback(t *testing.T) {
	fx := newHandlerFixture(t, 5)

	loginRec := httptest.NewRecorder()
	fx.handler.Login(loginRec, loginRequest(t, "alice@example.com", "correct horse"))
	first := cookieByName(t, loginRec, "rentdesk_refresh")
	require.NotNil(t, first)

	body, err := json.Marshal(model.RefreshRequest{RefreshToken: first.Value})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	fx.handler.Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshWithoutTokenIsBadRequest(t *testing.T) {
	fx := newHandlerFixture(t, 5)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	fx.handler.Refresh(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutWithoutSessionStillSucceeds(t *testing.T) {
	fx := newHandlerFixture(t, 5)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	fx.handler.Logout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRevokeWithoutClaimsIsUnauthorized(t *testing.T) {
	fx := newHandlerFixture(t, 5)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/revoke", nil)
	rec := httptest.NewRecorder()
	fx.handler.Revoke(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevokeKillsEverySession(t *testing.T) {
	fx := newHandlerFixture(t, 5)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		fx.handler.Login(rec, loginRequest(t, "alice@example.com", "correct horse"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, 3, fx.tokens.liveCountFor("user-1"))

	authMw := middleware.NewAuthMiddleware(stubVerifier{claims: &model.AuthClaims{
		UserID: "user-1",
		Role:   model.RoleManager,
	}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/revoke", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	authMw.RequireAuth(http.HandlerFunc(fx.handler.Revoke)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, fx.tokens.liveCountFor("user-1"))
}

func TestCSRFTokenEndpoint(t *testing.T) {
	fx := newHandlerFixture(t, 5)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	fx.handler.CSRFToken(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookie := cookieByName(t, rec, "XSRF-TOKEN")
	require.NotNil(t, cookie)

	data, apiErr := decodeEnvelope(t, rec)
	require.Nil(t, apiErr)
	assert.Equal(t, cookie.Value, data["csrf_token"])
}
