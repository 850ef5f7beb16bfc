package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/infrastructure/config"
)

// DuplicateStoreFactory creates duplicate stores based on configuration
type DuplicateStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// DuplicateStoreFactoryOption is a functional option for configuring the factory
type DuplicateStoreFactoryOption func(*DuplicateStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) DuplicateStoreFactoryOption {
	return func(f *DuplicateStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) DuplicateStoreFactoryOption {
	return func(f *DuplicateStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewDuplicateStoreFactory creates a new factory
func NewDuplicateStoreFactory(cfg config.RedisConfig, opts ...DuplicateStoreFactoryOption) *DuplicateStoreFactory {
	f := &DuplicateStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateStore tries Redis first and falls back to in-memory when Redis is
// unavailable and fallback is allowed. An in-memory store does not share
// state across instances, so distributed deployments may let the occasional
// duplicate folio through.
func (f *DuplicateStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	store, err := NewRedisDuplicateStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("using Redis duplicate store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for duplicate detection but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory duplicate store",
		zap.Error(err),
	)
	return NewInMemoryDuplicateStore(), nil
}
