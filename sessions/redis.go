package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-frontdoor-relay/internal/errors"
	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// RedisConfig holds the connection settings for a shared session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces session keys, e.g. "frontdoor:session:".
	KeyPrefix string
	TTL       time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStore is a Repo shared by every instance of the relay.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	nowFunc   func() time.Time
}

var _ Repo = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client. Used with miniredis in tests.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		nowFunc:   time.Now,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

// Upsert writes the record with an expiry of the store TTL
func (s *RedisStore) Upsert(ctx context.Context, sessionID string, record Record) error {
	if sessionID == "" {
		return errors.New("sessionID is required")
	}
	if err := record.AuthTokens.Validate(); err != nil {
		return err
	}

	now := s.nowFunc()
	record.ID = sessionID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.ExpiresAt = now.Add(s.ttl)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get reads a record by session ID
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	if sessionID == "" {
		return nil, apperrors.ErrSessionNotFound
	}

	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidSession, err)
	}
	return &record, nil
}

// Delete removes a record
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
