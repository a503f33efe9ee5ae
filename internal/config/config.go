// Package config manages gateway configuration from defaults, an optional
// YAML file, a .env file and GATEWAY_* environment variables.
package config

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrConfiguration wraps every failure to produce a usable configuration.
var ErrConfiguration = errors.New("configuration error")

// Config is the process-wide configuration. It is loaded once at startup and
// never altered afterwards.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig controls the HTTP listener and gin engine.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ServiceName     string        `mapstructure:"service_name"     validate:"required"`
	Mode            string        `mapstructure:"mode"             validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"   validate:"gt=0"`
}

// GeminiConfig holds the model backend settings. The API key is a secret and
// must never be logged.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"     validate:"required"`
	ModelName   string        `mapstructure:"model_name"  validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
}

// PolicyConfig points at the safety policy template file.
type PolicyConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// RelayConfig describes the email backend. An empty BaseURL is allowed at
// startup; send requests then fail with a "not configured" error.
type RelayConfig struct {
	BaseURL     string        `mapstructure:"base_url"     validate:"omitempty,url"`
	SendPath    string        `mapstructure:"send_path"    validate:"required,startswith=/"`
	SenderEmail string        `mapstructure:"sender_email" validate:"required,email"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"      validate:"min=1s,max=5m"`
}

// DatabaseConfig locates the sqlite profile store and its optional seed file.
type DatabaseConfig struct {
	Path     string `mapstructure:"path"      validate:"required"`
	SeedFile string `mapstructure:"seed_file"`
}

// GatewayConfig holds request-level defaults.
type GatewayConfig struct {
	DefaultUserID string `mapstructure:"default_user_id" validate:"required"`
}

// BreakerConfig tunes the circuit breakers guarding upstream calls.
type BreakerConfig struct {
	MaxFailures   int           `mapstructure:"max_failures"   validate:"min=1"`
	ResetInterval time.Duration `mapstructure:"reset_interval" validate:"min=1s"`
}

// SchedulerConfig lists background tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a task and gives its cron schedule (seconds field allowed).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
