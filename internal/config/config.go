// ABOUTME: Configuration loading and parsing for docbridge
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete docbridge configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Anthropic     AnthropicConfig     `yaml:"anthropic"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	Conversations ConversationsConfig `yaml:"conversations"`
	Database      DatabaseConfig      `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TelegramConfig holds Bot API credentials and webhook verification
type TelegramConfig struct {
	BotToken      string `yaml:"bot_token"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// AnthropicConfig holds the AI service credentials and tuning
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	SkillID   string `yaml:"skill_id"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// OpenAIConfig holds the transcription service credentials. An empty key
// disables voice-note handling.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// ConversationsConfig holds session lifecycle and exchange tuning
type ConversationsConfig struct {
	TTL               time.Duration `yaml:"-"`
	SweepInterval     time.Duration `yaml:"-"`
	InvocationTimeout time.Duration `yaml:"-"`
	MaxContinuations  int           `yaml:"max_continuations"`
	MaxReplyDepth     int           `yaml:"max_reply_depth"`

	// Raw string values for YAML unmarshaling
	TTLRaw               string `yaml:"ttl"`
	SweepIntervalRaw     string `yaml:"sweep_interval"`
	InvocationTimeoutRaw string `yaml:"invocation_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.WebhookSecret == "" {
		return fmt.Errorf("telegram.webhook_secret is required")
	}
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}
	if c.Anthropic.SkillID == "" {
		return fmt.Errorf("anthropic.skill_id is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Conversations.TTLRaw != "" {
		cfg.Conversations.TTL, err = time.ParseDuration(cfg.Conversations.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing ttl %q: %w", cfg.Conversations.TTLRaw, err)
		}
	}

	if cfg.Conversations.SweepIntervalRaw != "" {
		cfg.Conversations.SweepInterval, err = time.ParseDuration(cfg.Conversations.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Conversations.SweepIntervalRaw, err)
		}
	}

	if cfg.Conversations.InvocationTimeoutRaw != "" {
		cfg.Conversations.InvocationTimeout, err = time.ParseDuration(cfg.Conversations.InvocationTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing invocation_timeout %q: %w", cfg.Conversations.InvocationTimeoutRaw, err)
		}
	}

	return nil
}
