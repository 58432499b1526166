package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"rentdesk/internal/middleware"
	"rentdesk/internal/model"
	"rentdesk/internal/security"
	"rentdesk/internal/service"
	"rentdesk/pkg/apierror"
)

// CookieConfig carries the transport settings for the refresh and CSRF
// cookies. The refresh cookie is HttpOnly SameSite=Strict; the CSRF cookie
// is readable so client-side code can echo it in the header.
type CookieConfig struct {
	RefreshName string
	CSRFName    string
	Secure      bool
	RefreshTTL  time.Duration
}

type AuthHandler struct {
	service *service.AuthService
	csrf    *security.CSRFIssuer
	cookies CookieConfig
}

func NewAuthHandler(service *service.AuthService, csrf *security.CSRFIssuer, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{service: service, csrf: csrf, cookies: cookies}
}

type loginResponse struct {
	model.TokenPair
	CSRFToken string `json:"csrf_token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	tokens, err := h.service.Login(r.Context(), payload.Email, payload.Password, clientContext(r))
	if err != nil {
		writeError(w, err)
		return
	}

	h.finishSession(w, tokens)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	opaque, ok := h.refreshTokenFrom(r)
	if !ok {
		writeError(w, apierror.New("BAD_REQUEST", "refresh token is required", "", http.StatusBadRequest))
		return
	}

	tokens, err := h.service.Rotate(r.Context(), opaque, clientContext(r))
	if err != nil {
		h.clearSessionCookies(w)
		writeError(w, err)
		return
	}

	h.finishSession(w, tokens)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	if opaque, ok := h.refreshTokenFrom(r); ok {
		if err := h.service.Logout(r.Context(), opaque); err != nil {
			writeError(w, err)
			return
		}
	}

	h.clearSessionCookies(w)
	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true})
}

// Revoke logs the subject out everywhere: every refresh token the subject
// holds, on any device, stops working.
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	if err := h.service.RevokeAll(r.Context(), claims.UserID); err != nil {
		writeError(w, err)
		return
	}

	h.clearSessionCookies(w)
	writeSuccess(w, http.StatusOK, map[string]any{"revoked": true})
}

func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.Issue(middleware.CSRFChannelID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	h.setCSRFCookie(w, token)
	writeSuccess(w, http.StatusOK, map[string]any{"csrf_token": token})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

// finishSession sets the refresh cookie, binds a fresh CSRF token to the
// authenticated channel, and writes the token pair.
func (h *AuthHandler) finishSession(w http.ResponseWriter, tokens model.TokenPair) {
	h.setRefreshCookie(w, tokens.RefreshToken)

	csrfToken, err := h.csrf.Issue("user:" + tokens.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.setCSRFCookie(w, csrfToken)

	writeSuccess(w, http.StatusOK, loginResponse{TokenPair: tokens, CSRFToken: csrfToken})
}

func (h *AuthHandler) refreshTokenFrom(r *http.Request) (string, bool) {
	if c, err := r.Cookie(h.cookies.RefreshName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			return v, true
		}
	}

	// Body fallback for non-browser clients.
	var payload model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
		if v := strings.TrimSpace(payload.RefreshToken); v != "" {
			return v, true
		}
	}

	return "", false
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.RefreshName,
		Value:    value,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.cookies.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) setCSRFCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.CSRFName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.cookies.RefreshTTL.Seconds()),
		HttpOnly: false,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.RefreshName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.CSRFName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func clientContext(r *http.Request) model.ClientContext {
	return model.ClientContext{
		UserAgent: r.UserAgent(),
		IP:        middleware.ClientIP(r),
	}
}
