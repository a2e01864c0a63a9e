// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding GENFORGE_ variable is unset.
const (
	DefaultQuotaLimit   = 600
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 5 * time.Minute
	DefaultMaxAttempts  = 3
	DefaultListenAddr   = "127.0.0.1:7433"
	DefaultAPIURL       = "https://api.app.layer.ai/graphql"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	VaultPath       string
	VaultPassphrase string // headless unlock; empty means the CLI prompts
	APIToken        string // env-only credential fallback, bypasses the vault
	WorkspaceID     string
	APIURL          string
	DBPath          string
	QuotaLimit      int
	PollInterval    time.Duration
	MaxWait         time.Duration
	MaxAttempts     int
	ListenAddr      string
}

// HasEnvCredential returns true when both GENFORGE_API_TOKEN and
// GENFORGE_WORKSPACE_ID are set, so the composition root can skip unlocking
// the vault entirely.
func (c *Config) HasEnvCredential() bool {
	return c.APIToken != "" && c.WorkspaceID != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. A .env file in the working directory is loaded first when present;
// real environment variables win over .env entries. Every variable has a
// default, so the zero-configuration path only needs a credential (vault or
// env pair).
func Load() (*Config, error) {
	// godotenv.Load does not override variables already set in the
	// environment, which is the precedence we want.
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg := &Config{
		VaultPath:       filepath.Join(home, ".genforge", "credentials.vault"),
		VaultPassphrase: os.Getenv("GENFORGE_VAULT_PASSPHRASE"),
		APIToken:        os.Getenv("GENFORGE_API_TOKEN"),
		WorkspaceID:     os.Getenv("GENFORGE_WORKSPACE_ID"),
		APIURL:          DefaultAPIURL,
		DBPath:          filepath.Join(home, ".genforge", "genforge.db"),
		QuotaLimit:      DefaultQuotaLimit,
		PollInterval:    DefaultPollInterval,
		MaxWait:         DefaultMaxWait,
		MaxAttempts:     DefaultMaxAttempts,
		ListenAddr:      DefaultListenAddr,
	}

	if v, ok := os.LookupEnv("GENFORGE_VAULT_PATH"); ok {
		cfg.VaultPath = v
	}
	if v, ok := os.LookupEnv("GENFORGE_API_URL"); ok {
		cfg.APIURL = v
	}
	if v, ok := os.LookupEnv("GENFORGE_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("GENFORGE_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("GENFORGE_QUOTA_LIMIT"); ok {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("GENFORGE_QUOTA_LIMIT has invalid value %q: want a positive integer", v)
		}
		cfg.QuotaLimit = limit
	}

	if v, ok := os.LookupEnv("GENFORGE_MAX_ATTEMPTS"); ok {
		attempts, err := strconv.Atoi(v)
		if err != nil || attempts <= 0 {
			return nil, fmt.Errorf("GENFORGE_MAX_ATTEMPTS has invalid value %q: want a positive integer", v)
		}
		cfg.MaxAttempts = attempts
	}

	cfg.PollInterval, err = durationEnv("GENFORGE_POLL_INTERVAL", DefaultPollInterval)
	if err != nil {
		return nil, err
	}

	cfg.MaxWait, err = durationEnv("GENFORGE_MAX_WAIT", DefaultMaxWait)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, v)
	}
	return parsed, nil
}
