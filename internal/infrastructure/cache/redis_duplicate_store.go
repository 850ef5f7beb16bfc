package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/possync/backend/internal/domain/shared"
)

// RedisDuplicateStore implements shared.IdempotencyStore using Redis.
// Suitable for distributed deployments where duplicate-folio state must be
// shared across ingestion instances.
type RedisDuplicateStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisDuplicateStore creates a new Redis-backed duplicate store
func NewRedisDuplicateStore(cfg RedisConfig) (*RedisDuplicateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDuplicateStore{
		client:    client,
		keyPrefix: "possync:seen:",
	}, nil
}

// NewRedisDuplicateStoreWithClient creates a store with an existing client.
// Useful for testing or when sharing a client across components.
func NewRedisDuplicateStoreWithClient(client *redis.Client, keyPrefix string) *RedisDuplicateStore {
	if keyPrefix == "" {
		keyPrefix = "possync:seen:"
	}
	return &RedisDuplicateStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkSeen marks a key as seen with a TTL. SETNX makes the check-and-set
// atomic across instances: true means this caller was first.
func (s *RedisDuplicateStore) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	fresh, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark key as seen: %w", err)
	}
	return fresh, nil
}

// IsSeen checks whether a key has already been marked
func (s *RedisDuplicateStore) IsSeen(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisDuplicateStore) Close() error {
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisDuplicateStore)(nil)
