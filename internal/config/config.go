package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Activity ActivityConfig `yaml:"activity"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Path optionally mirrors logs to a size-capped file.
	Path string `yaml:"path"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
	// DevUser is the identity used for every request when auth is disabled.
	DevUser  string `yaml:"dev_user" split_words:"true"`
	DevEmail string `yaml:"dev_email" split_words:"true"`
	// ServiceUser may write activities for any user through MCP.
	ServiceUser string `yaml:"service_user" split_words:"true"`
}

// WebhookConfig configures the outbound workflow notifier. An empty or
// non-http(s) URL selects the local simulator.
type WebhookConfig struct {
	URL            string            `yaml:"url"`
	AgentEndpoints map[string]string `yaml:"agent_urls" split_words:"true"`
	MockMode       bool              `yaml:"mock_mode" split_words:"true"`
	Timeout        time.Duration     `yaml:"timeout"`
	MockDelay      time.Duration     `yaml:"mock_delay" split_words:"true"`
}

type RealtimeConfig struct {
	// Driver is "memory" (in-process hub) or "kafka".
	Driver     string        `yaml:"driver"`
	Brokers    []string      `yaml:"brokers"`
	Topic      string        `yaml:"topic"`
	RetryDelay time.Duration `yaml:"retry_delay" split_words:"true"`
	Buffer     int           `yaml:"buffer"`
}

type ActivityConfig struct {
	// LockCompleted makes a completed status final.
	LockCompleted bool `yaml:"lock_completed" split_words:"true"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "agenthub.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			Enabled:     true,
			DevUser:     "dev",
			DevEmail:    "dev@localhost",
			ServiceUser: "workflow",
		},
		Webhook: WebhookConfig{
			Timeout:   10 * time.Second,
			MockDelay: 2 * time.Second,
		},
		Realtime: RealtimeConfig{
			Driver:     "memory",
			Topic:      "agenthub.activities",
			RetryDelay: 5 * time.Second,
			Buffer:     64,
		},
		Activity: ActivityConfig{
			LockCompleted: true,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("AGENTHUB_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	sections := []struct {
		prefix string
		target any
	}{
		{"AGENTHUB_SERVER", &cfg.Server},
		{"AGENTHUB_DB", &cfg.DB},
		{"AGENTHUB_LOG", &cfg.Log},
		{"AGENTHUB_AUTH", &cfg.Auth},
		{"AGENTHUB_WEBHOOK", &cfg.Webhook},
		{"AGENTHUB_REALTIME", &cfg.Realtime},
		{"AGENTHUB_ACTIVITY", &cfg.Activity},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return Config{}, fmt.Errorf("invalid %s environment: %w", s.prefix, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Realtime.Driver {
	case "memory":
	case "kafka":
		if len(c.Realtime.Brokers) == 0 {
			return fmt.Errorf("realtime driver kafka requires brokers")
		}
	default:
		return fmt.Errorf("unknown realtime driver %q", c.Realtime.Driver)
	}
	if !c.Auth.Enabled && c.Auth.DevUser == "" {
		return fmt.Errorf("auth disabled without a dev user")
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
