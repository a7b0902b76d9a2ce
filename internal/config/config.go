// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver            string `yaml:"driver"`
	Filename          string `yaml:"filename"`
	BusyTimeoutMillis int    `yaml:"busy_timeout_ms"`
}

type RateLimitConfig struct {
	MaxPerIPPerHour   int `yaml:"max_per_ip_per_hour"`
	MaxPerUserPerHour int `yaml:"max_per_user_per_hour"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"` // Loaded from environment
}

type NotificationsConfig struct {
	// Driver is "log" or "amqp".
	Driver string `yaml:"driver"`
	Queue  string `yaml:"queue"`
	URL    string `yaml:"-"` // Loaded from environment
}

type ReservationsConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	CleanupCron   string `yaml:"cleanup_cron"`
}

type Config struct {
	App struct {
		Name            string `yaml:"name"`
		Environment     string `yaml:"environment"`
		Port            int    `yaml:"port"`
		ShutdownSeconds int    `yaml:"shutdown_timeout_seconds"`
		SecretKey       string `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`

	Auth struct {
		TokenTTLMinutes int             `yaml:"token_ttl_minutes"`
		TrustProxy      bool            `yaml:"trust_proxy"`
		RateLimit       RateLimitConfig `yaml:"rate_limit"`
	} `yaml:"auth"`

	Redis RedisConfig `yaml:"redis"`

	Notifications NotificationsConfig `yaml:"notifications"`

	Reservations ReservationsConfig `yaml:"reservations"`

	Features struct {
		EnableDebug bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Load sensitive values from environment
	cfg.App.SecretKey = os.Getenv("APP_SECRET_KEY")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Notifications.URL = os.Getenv("AMQP_URL")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and fills defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.ShutdownSeconds <= 0 {
		c.App.ShutdownSeconds = 30
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		c.Auth.TokenTTLMinutes = 60 * 24
	}
	if c.Auth.RateLimit.MaxPerIPPerHour <= 0 {
		c.Auth.RateLimit.MaxPerIPPerHour = 60
	}
	if c.Auth.RateLimit.MaxPerUserPerHour <= 0 {
		c.Auth.RateLimit.MaxPerUserPerHour = 20
	}
	if c.Notifications.Driver == "" {
		c.Notifications.Driver = "log"
	}
	if c.Notifications.Queue == "" {
		c.Notifications.Queue = "reservation.overridden"
	}
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.App.ShutdownSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.App.SecretKey == "" {
		return fmt.Errorf("APP_SECRET_KEY is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}

	switch c.Notifications.Driver {
	case "log":
	case "amqp":
		if c.Notifications.URL == "" {
			return fmt.Errorf("AMQP_URL is required for the amqp notification driver")
		}
	default:
		return fmt.Errorf("unsupported notification driver: %s", c.Notifications.Driver)
	}

	if c.Reservations.RetentionDays < 0 {
		return fmt.Errorf("reservations retention_days must not be negative")
	}
	if c.Reservations.RetentionDays > 0 && c.Reservations.CleanupCron == "" {
		return fmt.Errorf("reservations cleanup_cron is required when retention_days is set")
	}
	if c.Reservations.CleanupCron != "" {
		if _, err := cron.ParseStandard(c.Reservations.CleanupCron); err != nil {
			return fmt.Errorf("invalid reservations cleanup_cron %q: %w", c.Reservations.CleanupCron, err)
		}
	}

	return nil
}
