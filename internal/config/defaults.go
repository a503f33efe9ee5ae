package config

import "time"

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	// Server defaults
	DefaultServerAddr            = ":8080"
	DefaultServiceName           = "careconnector-gateway"
	DefaultServerMode            = "release"
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 2 * time.Minute // must outlast the model call
	DefaultServerShutdownTimeout = 10 * time.Second
	DefaultServerMaxBodyBytes    = 1 << 20

	// Gemini defaults
	DefaultGeminiModelName   = "gemini-2.0-flash"
	DefaultGeminiTemperature = 0.4
	DefaultGeminiTimeout     = 60 * time.Second

	// Policy defaults
	DefaultPolicyPath = "policy.yaml"

	// Relay defaults
	DefaultRelaySendPath    = "/send-email"
	DefaultRelaySenderEmail = "careconnector@agentmail.to"
	DefaultRelayTimeout     = 30 * time.Second

	// Database defaults
	DefaultDBPath = "profiles.db"

	// Gateway defaults
	DefaultUserID = "demo"

	// Breaker defaults
	DefaultBreakerMaxFailures   = 5
	DefaultBreakerResetInterval = 30 * time.Second

	// Scheduler defaults
	DefaultSQLMaintenanceSchedule = "0 0 4 * * *"
)

// DefaultCORSOrigins matches the dashboard's local development origin.
var DefaultCORSOrigins = []string{"http://localhost:3000"}
