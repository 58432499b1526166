package middleware

import (
	"net/http"
	"time"
)

// Timeout bounds every request under it. The canned body matches the JSON
// error envelope the handlers emit.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body := `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"Request timed out"}}`

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, body)
	}
}
