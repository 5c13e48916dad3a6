// Package config loads and validates the app's environment
// configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	ShopifyAPIKey     string `env:"SHOPIFY_API_KEY,required" validate:"required"`
	ShopifyAPISecret  string `env:"SHOPIFY_API_SECRET,required" validate:"required"`
	ShopifyScopes     string `env:"SHOPIFY_SCOPES" envDefault:"read_orders,read_customers" validate:"required"`
	ShopifyAPIVersion string `env:"SHOPIFY_API_VERSION" envDefault:"2023-04" validate:"required"`

	// BaseURL is the public https origin Shopify redirects back to
	// after OAuth and delivers webhooks to.
	BaseURL string `env:"BASE_URL,required" validate:"required,url"`

	SessionStoreProvider  string `env:"SESSION_STORE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis postgres"`
	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis,required_if=SessionStoreProvider redis"`
	DatabaseURL           string `env:"DATABASE_URL" validate:"required_if=SessionStoreProvider postgres"`
	EncryptionKey         string `env:"ENCRYPTION_KEY" validate:"required_if=SessionStoreProvider postgres,omitempty,len=32"`

	SentryDSN string `env:"SENTRY_DSN"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	baseURL := strings.TrimSpace(c.BaseURL)
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("BASE_URL must be a valid absolute URL")
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("BASE_URL must use https outside local development")
	}

	return nil
}

// RedirectURL is the OAuth callback address registered with the app.
func (c *Config) RedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/auth/callback"
}

// WebhookURL is the address app/uninstalled deliveries are sent to.
func (c *Config) WebhookURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/webhooks"
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
