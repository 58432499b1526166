package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rentdesk/internal/config"
	"rentdesk/internal/handler"
	"rentdesk/internal/middleware"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	csrfMiddleware *middleware.CSRFMiddleware,
	authHandler *handler.AuthHandler,
	accountHandler *handler.AccountHandler,
	tenantHandler *handler.TenantHandler,
	eventHandler *handler.EventHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Get("/csrf-token", authHandler.CSRFToken)
			auth.With(csrfMiddleware.Handler).Post("/login", authHandler.Login)
			auth.With(csrfMiddleware.Handler).Post("/refresh", authHandler.Refresh)
			auth.With(csrfMiddleware.Handler).Post("/logout", authHandler.Logout)
			auth.With(authMiddleware.RequireAuth, csrfMiddleware.Handler).Post("/revoke", authHandler.Revoke)
			auth.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles("admin"), csrfMiddleware.Handler).
			Put("/users/{user_id}/role", accountHandler.ChangeRole)

		api.With(authMiddleware.RequireAuth).Get("/tenants/{user_id}", tenantHandler.Get)
		api.With(authMiddleware.RequireAuth, csrfMiddleware.Handler).Put("/tenants/{user_id}", tenantHandler.Upsert)

		api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles("admin")).
			Get("/security-events", eventHandler.List)
	})

	return r
}
