package shopsession

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chappapp/chapp/internal/crypto"
)

type Config struct {
	Provider              string
	RedisConnectionString string
	Pool                  *pgxpool.Pool
	Encryptor             crypto.Encryptor
}

func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Provider {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.RedisConnectionString)
	case "postgres":
		return NewPostgresStore(ctx, cfg.Pool, cfg.Encryptor)
	default:
		return nil, fmt.Errorf("unsupported session store provider: %s", cfg.Provider)
	}
}
