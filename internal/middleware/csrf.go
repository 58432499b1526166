package middleware

import (
	"context"
	"net/http"
	"strings"

	"rentdesk/internal/model"
)

type csrfVerifier interface {
	Verify(channelID string, presented string) bool
}

type eventRecorder interface {
	Record(ctx context.Context, kind string, identifier string, detail string)
}

// CSRFMiddleware enforces the double-submit check on state-changing methods.
// Safe methods pass through untouched.
type CSRFMiddleware struct {
	verifier   csrfVerifier
	headerName string
	events     eventRecorder
}

func NewCSRFMiddleware(verifier csrfVerifier, headerName string, events eventRecorder) *CSRFMiddleware {
	if headerName == "" {
		headerName = "X-XSRF-Token"
	}
	return &CSRFMiddleware{verifier: verifier, headerName: headerName, events: events}
}

func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		channel := CSRFChannelID(r)
		presented := strings.TrimSpace(r.Header.Get(m.headerName))

		if !m.verifier.Verify(channel, presented) {
			if m.events != nil {
				m.events.Record(r.Context(), model.EventCSRFMismatch, channel, r.Method+" "+r.URL.Path)
			}
			writeGuardError(w, http.StatusForbidden, "CSRF_MISMATCH", "missing or invalid csrf token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CSRFChannelID binds a token to its channel: the authenticated subject when
// one exists, otherwise an IP plus user-agent composite. Issuance and
// verification must agree on this.
func CSRFChannelID(r *http.Request) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return "user:" + claims.UserID
	}
	return "anon:" + extractClientIP(r) + "|" + r.UserAgent()
}
