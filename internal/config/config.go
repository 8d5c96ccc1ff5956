// Package config provides application configuration management.
// It loads settings from environment variables and holds the runtime
// Spark credentials behind an atomically swappable snapshot, so the
// /config endpoint can replace them without locking request handlers.
package config

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
)

// Default upstream endpoints. Overridable through env for tests.
const (
	DefaultSparkAPIBaseURL = "https://api.ciscospark.com/v1"
	DefaultCaseAPIBaseURL  = "https://api.cisco.com/case/v3"
	DefaultCaseAPITokenURL = "https://cloudsso.cisco.com/as/token.oauth2"
)

// Credentials is the runtime-updatable part of the configuration:
// the Spark account the bot posts as. A nil snapshot means the bot
// is not ready to process webhooks yet.
type Credentials struct {
	Token string
	Email string
}

// Config holds all application configuration
type Config struct {
	// Public bot address and name (required at startup)
	BotURL     string
	BotAppName string

	// Feedback destination room for /feedback
	FeedbackRoomID string

	// Case API client-credentials
	CaseAPIClientID     string
	CaseAPIClientSecret string

	// Upstream endpoints
	SparkAPIBaseURL string
	CaseAPIBaseURL  string
	CaseAPITokenURL string

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Upstream call timeouts
	SparkAPITimeout time.Duration
	CaseAPITimeout  time.Duration

	// Sentry (optional)
	SentryDSN         string
	SentryEnvironment string

	creds atomic.Pointer[Credentials]
}

// Load reads configuration from environment variables.
// It attempts to load a .env file first, then reads from env vars.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		BotURL:     os.Getenv(EnvSparkBotURL),
		BotAppName: os.Getenv(EnvSparkBotAppName),

		FeedbackRoomID: os.Getenv(EnvFeedbackRoom),

		CaseAPIClientID:     os.Getenv(EnvCaseAPIClientID),
		CaseAPIClientSecret: os.Getenv(EnvCaseAPIClientSecret),

		SparkAPIBaseURL: getEnv(EnvSparkAPIBaseURL, DefaultSparkAPIBaseURL),
		CaseAPIBaseURL:  getEnv(EnvCaseAPIBaseURL, DefaultCaseAPIBaseURL),
		CaseAPITokenURL: getEnv(EnvCaseAPITokenURL, DefaultCaseAPITokenURL),

		Port:            getEnv(EnvPort, "5001"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, 30*time.Second),

		SparkAPITimeout: getDurationEnv(EnvSparkAPITimeout, 15*time.Second),
		CaseAPITimeout:  getDurationEnv(EnvCaseAPITimeout, 30*time.Second),

		SentryDSN:         os.Getenv(EnvSentryDSN),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Credentials may arrive later through POST /config.
	token := os.Getenv(EnvSparkBotToken)
	email := os.Getenv(EnvSparkBotEmail)
	if token != "" && email != "" {
		cfg.SetCredentials(&Credentials{Token: token, Email: email})
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.BotURL == "" {
		errs = append(errs, errors.New(EnvSparkBotURL+" is required"))
	}
	if c.BotAppName == "" {
		errs = append(errs, errors.New(EnvSparkBotAppName+" is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New(EnvPort+" is required"))
	}
	if c.SparkAPITimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSparkAPITimeout, c.SparkAPITimeout))
	}
	if c.CaseAPITimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvCaseAPITimeout, c.CaseAPITimeout))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Credentials returns the current Spark credentials snapshot,
// or nil if none have been configured yet.
func (c *Config) Credentials() *Credentials {
	return c.creds.Load()
}

// SetCredentials atomically replaces the Spark credentials snapshot.
func (c *Config) SetCredentials(creds *Credentials) {
	c.creds.Store(creds)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
