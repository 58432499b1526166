package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret        string
	JWTAccessTTL     time.Duration
	RefreshTTL       time.Duration
	EncryptionSecret string
	StoreTimeout     time.Duration

	LockoutMaxFailures   int
	LockoutWindow        time.Duration
	LockoutDuration      time.Duration
	LockoutSweepInterval time.Duration

	CSRFTTL        time.Duration
	CSRFCookieName string
	CSRFHeaderName string

	RefreshCookieName string
	CookieSecure      bool

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		JWTSecret:        strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:     getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:       getDuration("REFRESH_TTL", 168*time.Hour),
		EncryptionSecret: strings.TrimSpace(os.Getenv("ENCRYPTION_SECRET")),
		StoreTimeout:     getDuration("STORE_TIMEOUT", 3*time.Second),

		LockoutMaxFailures:   getInt("LOCKOUT_MAX_FAILURES", 5),
		LockoutWindow:        getDuration("LOCKOUT_WINDOW", 15*time.Minute),
		LockoutDuration:      getDuration("LOCKOUT_DURATION", 15*time.Minute),
		LockoutSweepInterval: getDuration("LOCKOUT_SWEEP_INTERVAL", 5*time.Minute),

		CSRFTTL:        getDuration("CSRF_TTL", 12*time.Hour),
		CSRFCookieName: getEnv("CSRF_COOKIE_NAME", "XSRF-TOKEN"),
		CSRFHeaderName: getEnv("CSRF_HEADER_NAME", "X-XSRF-Token"),

		RefreshCookieName: getEnv("REFRESH_COOKIE_NAME", "rentdesk_refresh"),
		CookieSecure:      getBool("COOKIE_SECURE", true),

		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:     getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.EncryptionSecret == "" {
		return fmt.Errorf("ENCRYPTION_SECRET is required")
	}

	if c.JWTSecret == c.EncryptionSecret {
		return fmt.Errorf("JWT_SECRET and ENCRYPTION_SECRET must differ")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.JWTAccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if c.JWTAccessTTL >= c.RefreshTTL {
		return fmt.Errorf("JWT_ACCESS_TTL must be shorter than REFRESH_TTL")
	}

	if c.LockoutMaxFailures <= 0 {
		return fmt.Errorf("LOCKOUT_MAX_FAILURES must be positive")
	}

	if c.LockoutWindow <= 0 || c.LockoutDuration <= 0 {
		return fmt.Errorf("lockout durations must be positive")
	}

	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
