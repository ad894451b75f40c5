// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr       string
	DBPath           string
	APIBaseURL       string
	SyncAPIBaseURL   string
	SecretKey        []byte
	APIToken         string
	AuthRefreshURL   string
	RefreshToken     string
	StatsPollEvery   time.Duration
	AutofillDebounce time.Duration
	CookieNames      []string
}

// HasSecretKey returns true when an encryption key is configured. Without
// one the persistent credential tier is refused but the app still runs.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) == 32
}

// Load reads configuration from environment variables and returns a validated Config.
// FIGPANEL_SECRET_KEY is optional; if absent, the persistent credential tier is
// unavailable until one is configured. Optional variables with defaults:
// FIGPANEL_LISTEN_ADDR (127.0.0.1:8080), FIGPANEL_DB_PATH (figpanel.db),
// FIGPANEL_STATS_POLL_INTERVAL (2s), FIGPANEL_AUTOFILL_DEBOUNCE (1s),
// FIGPANEL_SESSION_COOKIE_NAMES (session_id,user_id).
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("FIGPANEL_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "figpanel.db"
	if v, ok := os.LookupEnv("FIGPANEL_DB_PATH"); ok {
		dbPath = v
	}

	apiBaseURL := "https://figure.local/api"
	if v, ok := os.LookupEnv("FIGPANEL_API_BASE_URL"); ok {
		apiBaseURL = strings.TrimRight(v, "/")
	}

	syncBaseURL := apiBaseURL
	if v, ok := os.LookupEnv("FIGPANEL_SYNC_API_BASE_URL"); ok {
		syncBaseURL = strings.TrimRight(v, "/")
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("FIGPANEL_SECRET_KEY"); ok && v != "" {
		if len(v) != 32 {
			return nil, fmt.Errorf("FIGPANEL_SECRET_KEY must be exactly 32 bytes, got %d", len(v))
		}
		secretKey = []byte(v)
	}

	pollEvery := 2 * time.Second
	if v, ok := os.LookupEnv("FIGPANEL_STATS_POLL_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("FIGPANEL_STATS_POLL_INTERVAL has invalid duration %q: %w", v, err)
		}
		pollEvery = parsed
	}

	debounceDelay := time.Second
	if v, ok := os.LookupEnv("FIGPANEL_AUTOFILL_DEBOUNCE"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("FIGPANEL_AUTOFILL_DEBOUNCE has invalid duration %q: %w", v, err)
		}
		debounceDelay = parsed
	}

	cookieNames := []string{"session_id", "user_id"}
	if v, ok := os.LookupEnv("FIGPANEL_SESSION_COOKIE_NAMES"); ok && v != "" {
		cookieNames = nil
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				cookieNames = append(cookieNames, name)
			}
		}
		if len(cookieNames) == 0 {
			return nil, fmt.Errorf("FIGPANEL_SESSION_COOKIE_NAMES must name at least one cookie")
		}
	}

	return &Config{
		ListenAddr:       listenAddr,
		DBPath:           dbPath,
		APIBaseURL:       apiBaseURL,
		SyncAPIBaseURL:   syncBaseURL,
		SecretKey:        secretKey,
		APIToken:         os.Getenv("FIGPANEL_API_TOKEN"),
		AuthRefreshURL:   os.Getenv("FIGPANEL_AUTH_REFRESH_URL"),
		RefreshToken:     os.Getenv("FIGPANEL_REFRESH_TOKEN"),
		StatsPollEvery:   pollEvery,
		AutofillDebounce: debounceDelay,
		CookieNames:      cookieNames,
	}, nil
}
