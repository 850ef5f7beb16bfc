package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores already-seen keys to prevent duplicate processing.
// It backs the duplicate-sale window: a folio received twice within the TTL
// is flagged as a duplicate instead of being processed again.
type IdempotencyStore interface {
	// MarkSeen marks a key as seen with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsSeen checks whether a key has already been marked
	IsSeen(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// DuplicateWindowConfig holds configuration for duplicate-sale detection
type DuplicateWindowConfig struct {
	// Window is how long a folio is remembered after first receipt.
	// A sale with the same folio arriving within the window is marked duplicate.
	Window time.Duration

	// Enabled determines whether duplicate detection is enabled
	Enabled bool
}

// DefaultDuplicateWindowConfig returns the default duplicate window configuration
func DefaultDuplicateWindowConfig() DuplicateWindowConfig {
	return DuplicateWindowConfig{
		Window:  24 * time.Hour,
		Enabled: true,
	}
}
