// Package config loads stockmon configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLCipher = "sqlcipher"
	StoreFile      = "file"
)

// Push providers.
const (
	PushExpo = "expo"
	PushLog  = "log"
)

type Config struct {
	// Backend
	APIURL            string
	APIToken          string // Overrides the token saved by `stockmon login`
	RequestTimeout    time.Duration
	RequestsPerMinute int

	// Local state
	DataDir  string // Empty means the exec-mode default
	Store    string
	StoreKey string // Hex SQLCipher key; empty means a generated key file

	// Logging
	LogLevel    string
	LogFile     string
	Environment string // development, production

	// Control API
	ListenAddr  string // Empty disables the API
	CORSOrigins []string

	// Schedule
	PollInterval      time.Duration
	StartupDelay      time.Duration
	HeartbeatInterval time.Duration
	SettingsRefresh   time.Duration

	// Device notifications
	PushProvider string
	PushURL      string
	Platform     string
}

// Load reads the optional env files, then the environment.
// Variables already set in the environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		APIURL:            strings.TrimRight(envOr("STOCKMON_API_URL", "http://localhost:3000/api"), "/"),
		APIToken:          envOr("STOCKMON_API_TOKEN", ""),
		RequestTimeout:    envDuration("STOCKMON_REQUEST_TIMEOUT", 10*time.Second),
		RequestsPerMinute: envInt("STOCKMON_REQUESTS_PER_MINUTE", 60),

		DataDir:  envOr("STOCKMON_DATA_DIR", ""),
		Store:    strings.ToLower(envOr("STOCKMON_STORE", StoreSQLCipher)),
		StoreKey: envOr("STOCKMON_STORE_KEY", ""),

		LogLevel:    envOr("STOCKMON_LOG_LEVEL", "info"),
		LogFile:     envOr("STOCKMON_LOG_FILE", ""),
		Environment: envOr("STOCKMON_ENV", "production"),

		ListenAddr:  envOr("STOCKMON_LISTEN_ADDR", "127.0.0.1:8787"),
		CORSOrigins: envList("STOCKMON_CORS_ORIGINS", nil),

		PollInterval:      envDuration("STOCKMON_POLL_INTERVAL", 15*time.Minute),
		StartupDelay:      envDuration("STOCKMON_STARTUP_DELAY", 3*time.Second),
		HeartbeatInterval: envDuration("STOCKMON_HEARTBEAT_INTERVAL", 30*time.Second),
		SettingsRefresh:   envDuration("STOCKMON_SETTINGS_REFRESH", 5*time.Minute),

		PushProvider: strings.ToLower(envOr("STOCKMON_PUSH_PROVIDER", PushExpo)),
		PushURL:      envOr("STOCKMON_PUSH_URL", ""),
		Platform:     envOr("STOCKMON_PLATFORM", "android"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("STOCKMON_API_URL must be an http(s) URL, got %q", c.APIURL)
	}
	if c.Store != StoreSQLCipher && c.Store != StoreFile {
		return fmt.Errorf("STOCKMON_STORE must be %q or %q, got %q", StoreSQLCipher, StoreFile, c.Store)
	}
	if c.PushProvider != PushExpo && c.PushProvider != PushLog {
		return fmt.Errorf("STOCKMON_PUSH_PROVIDER must be %q or %q, got %q", PushExpo, PushLog, c.PushProvider)
	}
	if c.PollInterval < time.Minute {
		return fmt.Errorf("STOCKMON_POLL_INTERVAL must be at least 1m, got %s", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("STOCKMON_REQUEST_TIMEOUT must be positive")
	}
	if c.RequestsPerMinute <= 0 {
		return fmt.Errorf("STOCKMON_REQUESTS_PER_MINUTE must be positive")
	}
	return nil
}

// IsDevelopment reports whether console-style logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go durations ("90s") or plain seconds ("90").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
