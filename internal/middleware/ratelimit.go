package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiter struct {
	general  *rate.Limiter
	auth     *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a per-IP budget, with a much tighter one on
// the auth endpoints. This is a blunt volume backstop in front of the
// lockout guard, which handles targeted credential attacks.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	mu         sync.Mutex
	clients    map[string]*clientLimiter
}

func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if authRPM <= 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		clients:    map[string]*clientLimiter{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := m.getLimiter(extractClientIP(r))

		target := limiter.general
		if strings.HasPrefix(strings.ToLower(r.URL.Path), "/api/v1/auth") {
			target = limiter.auth
		}

		if target != nil && !target.Allow() {
			w.Header().Set("Retry-After", "60")
			writeGuardError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) getLimiter(clientIP string) *clientLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limiter, exists := m.clients[clientIP]; exists {
		limiter.lastSeen = time.Now()
		m.gcLocked()
		return limiter
	}

	created := &clientLimiter{
		auth:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.authRPM)), m.authRPM),
		lastSeen: time.Now(),
	}
	if m.generalRPM > 0 {
		created.general = rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.generalRPM)), m.generalRPM)
	}
	m.clients[clientIP] = created
	m.gcLocked()

	return created
}

func (m *RateLimitMiddleware) gcLocked() {
	if len(m.clients) < 1000 {
		return
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, limiter := range m.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

// ClientIP resolves the originating client address, preferring proxy
// headers over the socket peer.
func ClientIP(r *http.Request) string {
	return extractClientIP(r)
}

func extractClientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	realIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}

	return r.RemoteAddr
}
