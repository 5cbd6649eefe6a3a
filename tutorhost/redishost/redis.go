// Package redishost is the Redis-backed tutorhost.Host implementation,
// suitable for running multiple backend instances against a shared store.
package redishost

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brainmate-ai/tutorchat/tutorhost"
	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// Config for the Redis-backed host. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: SESSIONS_KEY_PREFIX
	KeyPrefix string `env:"SESSIONS_KEY_PREFIX,default=brainmate:sessions:"`
	// SessionTTL bounds idle session lifetime. ENV: SESSION_TTL
	SessionTTL time.Duration `env:"SESSION_TTL,default=24h"`
}

// Host implements tutorhost.Host on Redis. Sessions live in a JSON value,
// message logs in a list, and per-session ID counters in a plain integer
// key; all three share the session TTL, refreshed on every append.
type Host struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ tutorhost.Host = (*Host)(nil)

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Host, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "brainmate:sessions:"
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Host{client: client, prefix: prefix, ttl: ttl}, nil
}

// NewFromEnv builds a Host using envdecode to populate Config.
func NewFromEnv() (*Host, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode redis host config: %w", err)
	}
	return New(cfg)
}

func (h *Host) sessKey(id string) string { return h.prefix + "sess:" + id }
func (h *Host) msgsKey(id string) string { return h.prefix + "msgs:" + id }
func (h *Host) seqKey(id string) string  { return h.prefix + "seq:" + id }

func (h *Host) CreateSession(ctx context.Context, tutorID, studentID string) (*tutorhost.Session, error) {
	now := time.Now().UTC()
	sess := tutorhost.Session{
		ID:        uuid.NewString(),
		TutorID:   tutorID,
		StudentID: studentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := h.client.Set(ctx, h.sessKey(sess.ID), raw, h.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &sess, nil
}

func (h *Host) GetSession(ctx context.Context, sessionID string) (*tutorhost.Session, error) {
	raw, err := h.client.Get(ctx, h.sessKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, tutorhost.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess tutorhost.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (h *Host) DeleteSession(ctx context.Context, sessionID string) error {
	if err := h.client.Del(ctx, h.sessKey(sessionID), h.msgsKey(sessionID), h.seqKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (h *Host) AppendMessage(ctx context.Context, sessionID, role, content string) (*tutorhost.StoredMessage, error) {
	sess, err := h.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	id, err := h.client.Incr(ctx, h.seqKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("next message id: %w", err)
	}
	msg := tutorhost.StoredMessage{
		ID:        id,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	sess.UpdatedAt = msg.CreatedAt
	sessRaw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	pipe := h.client.TxPipeline()
	pipe.RPush(ctx, h.msgsKey(sessionID), raw)
	pipe.Set(ctx, h.sessKey(sessionID), sessRaw, h.ttl)
	pipe.Expire(ctx, h.msgsKey(sessionID), h.ttl)
	pipe.Expire(ctx, h.seqKey(sessionID), h.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &msg, nil
}

func (h *Host) ListMessages(ctx context.Context, sessionID string) ([]tutorhost.StoredMessage, error) {
	if _, err := h.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	raws, err := h.client.LRange(ctx, h.msgsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]tutorhost.StoredMessage, 0, len(raws))
	for _, raw := range raws {
		var msg tutorhost.StoredMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (h *Host) Close() error { return h.client.Close() }
