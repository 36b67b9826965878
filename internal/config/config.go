// Package config manages application configuration from default values,
// config.yaml, and CHATRELAY_* environment variables.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Default values for optional configuration parameters.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultServerAddr            = ":8080"
	DefaultServerMaxMessageSize  = 4096
	DefaultServerShutdownTimeout = 10 * time.Second

	DefaultDatabasePath = "chatrelay.db"

	DefaultGeminiModel      = "models/gemini-2.5-pro"
	DefaultGeminiTimeout    = 30 * time.Second
	DefaultGeminiMaxRetries = 2
	DefaultGeminiRetryDelay = 2 * time.Second

	DefaultBotReplyDelay = time.Second

	DefaultUploadDir     = "uploads"
	DefaultUploadMaxSize = 10 << 20 // 10 MiB

	DefaultMaintenanceInterval = 24 * time.Hour
)

// Default bot reply texts. The empty-query and no-response texts mirror what
// clients have come to expect from the relay, so they are configurable but
// rarely changed.
const (
	DefaultBotEmptyQueryReply = "Please type something after @bot."
	DefaultBotNoResponseReply = "⚠️ No valid response from the AI service."
)

// Config defines the application configuration. Values can be set via
// environment variables prefixed with CHATRELAY_ (e.g. CHATRELAY_GEMINI_API_KEY)
// or through config.yaml.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Bot       BotConfig       `mapstructure:"bot"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls the slog handler built at startup.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"              validate:"required"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"  validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"  validate:"min=1s,max=1m"`
}

// DatabaseConfig locates the SQLite chat history store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// GeminiConfig configures the external AI completion client. APIKey is
// deliberately not required: a missing key degrades every invocation to the
// standard failure reply instead of preventing startup.
type GeminiConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"       validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	MaxRetries int           `mapstructure:"max_retries" validate:"min=0,max=5"`
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"min=0,max=1m"`
}

// BotConfig configures the bot gateway choreography.
type BotConfig struct {
	// ReplyDelay paces the bot reply so the typing indicator is perceptible.
	// Zero disables the delay.
	ReplyDelay      time.Duration `mapstructure:"reply_delay"       validate:"min=0,max=10s"`
	EmptyQueryReply string        `mapstructure:"empty_query_reply" validate:"required"`
	NoResponseReply string        `mapstructure:"no_response_reply" validate:"required"`
}

// UploadConfig controls the file upload endpoint.
type UploadConfig struct {
	Dir     string `mapstructure:"dir"      validate:"required"`
	MaxSize int64  `mapstructure:"max_size" validate:"gt=0"`
}

// SchedulerConfig controls background maintenance. A zero interval disables
// the maintenance job.
type SchedulerConfig struct {
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval" validate:"min=0"`
}

// Validate checks the configuration against the struct-level validation rules.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
