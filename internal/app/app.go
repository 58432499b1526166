package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentdesk/internal/config"
	"rentdesk/internal/crypto"
	"rentdesk/internal/database"
	"rentdesk/internal/handler"
	"rentdesk/internal/middleware"
	"rentdesk/internal/repository"
	"rentdesk/internal/router"
	"rentdesk/internal/security"
	"rentdesk/internal/service"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	fieldCipher := crypto.NewFieldCipher(cfg.EncryptionSecret)
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	tenantRepo := repository.NewTenantRepository(pool, fieldCipher)
	eventRepo := repository.NewEventRepository(pool)
	slog.Info("database ready")

	eventService := service.NewEventService(eventRepo)
	lockoutGuard := security.NewLockoutGuard(cfg.LockoutMaxFailures, cfg.LockoutWindow, cfg.LockoutDuration, time.Now)
	csrfIssuer := security.NewCSRFIssuer(cfg.CSRFTTL, time.Now)

	authService, err := service.NewAuthService(
		cfg.JWTSecret, cfg.JWTAccessTTL, cfg.RefreshTTL, cfg.StoreTimeout,
		userRepo, tokenRepo, lockoutGuard, eventService)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	accountService := service.NewAccountService(userRepo, tenantRepo, tokenRepo, eventService)

	authMiddleware := middleware.NewAuthMiddleware(authService, eventService)
	csrfMiddleware := middleware.NewCSRFMiddleware(csrfIssuer, cfg.CSRFHeaderName, eventService)

	authHandler := handler.NewAuthHandler(authService, csrfIssuer, handler.CookieConfig{
		RefreshName: cfg.RefreshCookieName,
		CSRFName:    cfg.CSRFCookieName,
		Secure:      cfg.CookieSecure,
		RefreshTTL:  cfg.RefreshTTL,
	})
	accountHandler := handler.NewAccountHandler(accountService)
	tenantHandler := handler.NewTenantHandler(tenantRepo)
	eventHandler := handler.NewEventHandler(eventService)

	appRouter := router.New(cfg, authMiddleware, csrfMiddleware, authHandler, accountHandler, tenantHandler, eventHandler)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	go lockoutGuard.StartSweeper(sweepCtx, cfg.LockoutSweepInterval)
	go runMaintenance(sweepCtx, csrfIssuer, tokenRepo, cfg.LockoutSweepInterval)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			func() {
				sweepCancel()
			},
			func() {
				db.Close()
			},
		},
	}, nil
}

// runMaintenance drops expired CSRF tokens from memory and expired refresh
// tokens from the database on a fixed cadence. Both are correctness no-ops
// (lookups already check expiry); this only bounds growth.
func runMaintenance(ctx context.Context, csrfIssuer *security.CSRFIssuer, tokens *repository.TokenRepository, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			csrfIssuer.Sweep()

			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			removed, err := tokens.DeleteExpired(sweepCtx)
			cancel()
			if err != nil {
				slog.Warn("expired token sweep failed", "error", err.Error())
				continue
			}
			if removed > 0 {
				slog.Info("expired refresh tokens removed", "count", removed)
			}
		}
	}
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
