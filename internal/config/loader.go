package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional)
// 3. a .env file in the working directory (optional)
// 4. GATEWAY_* environment variables
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env file: %v", ErrConfiguration, err)
	}

	v := viper.New()
	setDefaults(v)

	if err := loadConfig(v, path); err != nil {
		return nil, fmt.Errorf("%w: failed to load config file: %v", ErrConfiguration, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

// loadConfig wires environment lookups and reads the config file if present.
func loadConfig(v *viper.Viper, path string) error {
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The dashboard deployment exports the bare names as well.
	if err := v.BindEnv("gemini.api_key", "GATEWAY_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return err
	}
	if err := v.BindEnv("relay.base_url", "GATEWAY_RELAY_BASE_URL", "BACKEND_URL"); err != nil {
		return err
	}

	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %v", err)
	}

	return nil
}

// setDefaults registers every key so that environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", DefaultLogJSON)

	// Server defaults
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.service_name", DefaultServiceName)
	v.SetDefault("server.mode", DefaultServerMode)
	v.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	v.SetDefault("server.write_timeout", DefaultServerWriteTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)
	v.SetDefault("server.cors_origins", DefaultCORSOrigins)
	v.SetDefault("server.max_body_bytes", DefaultServerMaxBodyBytes)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", DefaultGeminiModelName)
	v.SetDefault("gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("gemini.timeout", DefaultGeminiTimeout)

	v.SetDefault("policy.path", DefaultPolicyPath)

	// Relay defaults
	v.SetDefault("relay.base_url", "")
	v.SetDefault("relay.send_path", DefaultRelaySendPath)
	v.SetDefault("relay.sender_email", DefaultRelaySenderEmail)
	v.SetDefault("relay.api_key", "")
	v.SetDefault("relay.timeout", DefaultRelayTimeout)

	// Database defaults
	v.SetDefault("database.path", DefaultDBPath)
	v.SetDefault("database.seed_file", "")

	v.SetDefault("gateway.default_user_id", DefaultUserID)

	// Breaker defaults
	v.SetDefault("breaker.max_failures", DefaultBreakerMaxFailures)
	v.SetDefault("breaker.reset_interval", DefaultBreakerResetInterval)

	// Scheduler defaults
	v.SetDefault("scheduler.tasks", map[string]any{
		"sql_maintenance": map[string]any{
			"enabled":  true,
			"schedule": DefaultSQLMaintenanceSchedule,
		},
	})
}
