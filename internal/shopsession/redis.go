package shopsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "shopsession:"

// RedisStore persists sessions in redis with no expiry: offline tokens
// stay valid until the shop uninstalls.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(connectionString string) (*RedisStore, error) {
	opts, err := redis.ParseURL(connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis connection string: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, shop string) (*Session, error) {
	raw, err := s.client.Get(ctx, redisSessionKey(shop)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.client.Set(ctx, redisSessionKey(session.Shop), raw, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, shop string) error {
	return s.client.Del(ctx, redisSessionKey(shop)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisSessionKey(shop string) string {
	return redisKeyPrefix + shop
}
