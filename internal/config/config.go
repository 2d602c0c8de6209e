package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port          string
	SessionSecret string
	SessionTTL    time.Duration
	CookieName    string
	CookieSecure  bool
	CORSOrigins   []string

	// ConsoleBaseURL is the origin password reset links point at.
	ConsoleBaseURL string

	// Bootstrap admin seeded on first start when the users table is empty.
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:           fallback(os.Getenv("PORT"), "8431"),
		SessionSecret:  strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		CookieName:     fallback(os.Getenv("SESSION_COOKIE_NAME"), "trustflow_session"),
		CookieSecure:   os.Getenv("SESSION_COOKIE_SECURE") == "1",
		CORSOrigins:    parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		ConsoleBaseURL: strings.TrimRight(fallback(os.Getenv("CONSOLE_BASE_URL"), "http://localhost:5173"), "/"),
		AdminUsername:  fallback(os.Getenv("ADMIN_USERNAME"), "admin"),
		AdminEmail:     fallback(os.Getenv("ADMIN_EMAIL"), "admin@trustflow.io"),
		AdminPassword:  strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
	}

	hours := fallback(os.Getenv("SESSION_TTL_HOURS"), "72")
	if ttl, err := strconv.Atoi(hours); err == nil && ttl > 0 {
		cfg.SessionTTL = time.Duration(ttl) * time.Hour
	} else {
		cfg.SessionTTL = 72 * time.Hour
	}

	if cfg.SessionSecret == "" {
		return Config{}, errors.New("SESSION_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf("0.0.0.0:%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
