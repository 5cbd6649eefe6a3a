// Package redistore is the Redis-backed settings driver, for deployments
// where preferences should follow the student across devices.
package redistore

import (
	"context"
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/brainmate-ai/tutorchat/settings"
)

// Config for the Redis-backed store. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: SETTINGS_KEY_PREFIX
	KeyPrefix string `env:"SETTINGS_KEY_PREFIX,default=brainmate:settings:"`
}

// Store keeps each student's settings in one Redis hash.
type Store struct {
	client *redis.Client
	prefix string
}

var _ settings.Store = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Store, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "brainmate:settings:"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client, prefix: prefix}, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv() (*Store, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode settings store config: %w", err)
	}
	return New(cfg)
}

func (s *Store) key(studentID string) string { return s.prefix + studentID }

func (s *Store) Get(ctx context.Context, studentID, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key(studentID), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load setting: %w", err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, studentID, key, value string) error {
	if err := s.client.HSet(ctx, s.key(studentID), key, value).Err(); err != nil {
		return fmt.Errorf("store setting: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, studentID, key string) error {
	if err := s.client.HDel(ctx, s.key(studentID), key).Err(); err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }
