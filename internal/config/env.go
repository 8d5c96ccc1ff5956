// Package config defines environment variable keys for configuration.
package config

//nolint:gosec // Environment variable keys are not credentials.
const (
	// Spark account (settable at runtime via POST /config)
	EnvSparkBotToken = "SPARK_BOT_TOKEN"
	EnvSparkBotEmail = "SPARK_BOT_EMAIL"

	// Public bot address (required at startup)
	EnvSparkBotURL     = "SPARK_BOT_URL"
	EnvSparkBotAppName = "SPARK_BOT_APP_NAME"

	// Feedback destination room for /feedback
	EnvFeedbackRoom = "FEEDBACK_ROOM"

	// Case API client-credentials
	EnvCaseAPIClientID     = "CASE_API_CLIENT_ID"
	EnvCaseAPIClientSecret = "CASE_API_CLIENT_SECRET"

	// Server
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	// Upstream call timeouts
	EnvSparkAPITimeout = "SPARK_API_TIMEOUT"
	EnvCaseAPITimeout  = "CASE_API_TIMEOUT"

	// Upstream base URLs (overridable for testing)
	EnvSparkAPIBaseURL  = "SPARK_API_BASE_URL"
	EnvCaseAPIBaseURL   = "CASE_API_BASE_URL"
	EnvCaseAPITokenURL  = "CASE_API_TOKEN_URL"

	// Sentry (optional)
	EnvSentryDSN         = "SENTRY_DSN"
	EnvSentryEnvironment = "SENTRY_ENVIRONMENT"
)
