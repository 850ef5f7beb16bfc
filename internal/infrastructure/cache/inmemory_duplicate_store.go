package cache

import (
	"context"
	"sync"
	"time"

	"github.com/possync/backend/internal/domain/shared"
)

type entry struct {
	expiresAt time.Time
}

// InMemoryDuplicateStore implements shared.IdempotencyStore with a map.
// Suitable for single-instance deployments and testing; state is not shared
// across processes.
type InMemoryDuplicateStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDuplicateStore creates a new in-memory duplicate store and
// starts a background goroutine that evicts expired entries
func NewInMemoryDuplicateStore() *InMemoryDuplicateStore {
	store := &InMemoryDuplicateStore{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// MarkSeen marks a key as seen with a TTL. Returns true if the key was newly
// marked, false if it was already present and unexpired.
func (s *InMemoryDuplicateStore) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[key]; exists && time.Now().Before(e.expiresAt) {
		return false, nil
	}

	s.entries[key] = entry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// IsSeen checks whether a key has already been marked and is unexpired
func (s *InMemoryDuplicateStore) IsSeen(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists || time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryDuplicateStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryDuplicateStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryDuplicateStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryDuplicateStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ shared.IdempotencyStore = (*InMemoryDuplicateStore)(nil)
