// Package cache provides short-lived shared storage for OAuth state
// nonces and webhook idempotency markers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("key not found")

type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// OAuthStateKey names the entry holding the shop an OAuth state nonce
// was issued for.
func OAuthStateKey(state string) string {
	return fmt.Sprintf("oauth-state:%s", state)
}

// WebhookKey names the idempotency marker for one webhook delivery.
func WebhookKey(webhookID string) string {
	return fmt.Sprintf("webhook:%s", webhookID)
}
