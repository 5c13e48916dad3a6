package shopsession

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chappapp/chapp/internal/crypto"
)

// PostgresStore persists sessions in a shop_sessions table with the
// access token encrypted at rest.
type PostgresStore struct {
	pool      *pgxpool.Pool
	encryptor crypto.Encryptor
}

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS shop_sessions (
    shop         TEXT PRIMARY KEY,
    access_token TEXT NOT NULL,
    scope        TEXT NOT NULL DEFAULT '',
    installed_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, encryptor crypto.Encryptor) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool is required")
	}
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}

	if _, err := pool.Exec(ctx, sessionsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure shop_sessions table: %w", err)
	}

	return &PostgresStore{pool: pool, encryptor: encryptor}, nil
}

func (s *PostgresStore) Load(ctx context.Context, shop string) (*Session, error) {
	session := &Session{}
	var encryptedToken string

	err := s.pool.QueryRow(ctx,
		`SELECT shop, access_token, scope, installed_at FROM shop_sessions WHERE shop = $1`,
		shop,
	).Scan(&session.Shop, &encryptedToken, &session.Scope, &session.InstalledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	token, err := s.encryptor.Decrypt(encryptedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	session.AccessToken = token

	return session, nil
}

func (s *PostgresStore) Save(ctx context.Context, session *Session) error {
	encryptedToken, err := s.encryptor.Encrypt(session.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO shop_sessions (shop, access_token, scope, installed_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (shop) DO UPDATE
		 SET access_token = EXCLUDED.access_token,
		     scope = EXCLUDED.scope,
		     installed_at = EXCLUDED.installed_at`,
		session.Shop, encryptedToken, session.Scope, session.InstalledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, shop string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM shop_sessions WHERE shop = $1`, shop); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the app and closed there.
func (s *PostgresStore) Close() error {
	return nil
}
