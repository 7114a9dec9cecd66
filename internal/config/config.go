// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env               string        `mapstructure:"APP_ENV"`
	SocketURL         string        `mapstructure:"SOCKET_URL"`
	APIURL            string        `mapstructure:"API_URL"`
	SessionToken      string        `mapstructure:"SESSION_TOKEN"`
	SessionStore      string        `mapstructure:"SESSION_STORE"`
	SessionKey        string        `mapstructure:"SESSION_KEY"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	ReconnectAttempts int           `mapstructure:"RECONNECT_ATTEMPTS"`
	ReconnectDelay    time.Duration `mapstructure:"RECONNECT_DELAY"`
	GroupingWindow    time.Duration `mapstructure:"GROUPING_WINDOW"`
	Timezone          string        `mapstructure:"TIMEZONE"`
	DebugAddr         string        `mapstructure:"DEBUG_ADDR"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	TracingEnabled    bool          `mapstructure:"TRACING_ENABLED"`
	TracingExporter   string        `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint      string        `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("SOCKET_URL", "ws://localhost:3000/socket")
	viper.SetDefault("API_URL", "http://localhost:3000/api")
	viper.SetDefault("SESSION_TOKEN", "")
	viper.SetDefault("SESSION_STORE", "memory")
	viper.SetDefault("SESSION_KEY", "chatsync:session")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("RECONNECT_ATTEMPTS", 5)
	viper.SetDefault("RECONNECT_DELAY", "2s")
	viper.SetDefault("GROUPING_WINDOW", "3m")
	viper.SetDefault("TIMEZONE", "Local")
	viper.SetDefault("DEBUG_ADDR", "127.0.0.1:8475")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.SessionStore = strings.ToLower(strings.TrimSpace(config.SessionStore))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if err := checkURL("SOCKET_URL", c.SocketURL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("API_URL", c.APIURL, "http", "https"); err != nil {
		return err
	}
	if c.ReconnectAttempts < 0 {
		return errors.New("RECONNECT_ATTEMPTS must not be negative")
	}
	if c.ReconnectDelay <= 0 {
		return errors.New("RECONNECT_DELAY must be positive")
	}
	if c.GroupingWindow <= 0 {
		return errors.New("GROUPING_WINDOW must be positive")
	}
	switch c.SessionStore {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_STORE is redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis, got %q", c.SessionStore)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}

	isProduction := c.Env == "production" || c.Env == "prod"
	if isProduction && strings.HasPrefix(c.SocketURL, "ws://") {
		log.Println("WARNING: SOCKET_URL uses plain ws:// in production. Bearer tokens will travel unencrypted.")
	}

	return nil
}

// Location resolves the configured timezone used for calendar date separators.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func checkURL(key, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%s must include a host", key)
			}
			return nil
		}
	}
	return fmt.Errorf("%s must use one of %v, got %q", key, schemes, u.Scheme)
}
