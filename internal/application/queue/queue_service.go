package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/sale"
	"github.com/possync/backend/internal/domain/shared"
)

// Default queue behavior
const (
	DefaultClaimBatchSize = 10
	DefaultStaleTimeout   = 15 * time.Minute
)

// Stats aggregates sale counts per status for observability
type Stats struct {
	Pending    int64 `json:"pending"`
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	DeadLetter int64 `json:"dead_letter"`
	Duplicate  int64 `json:"duplicate"`
}

// Service is the durable work queue over pending sales. All coordination
// between workers happens through the sale repository's conditional writes;
// the service holds no cross-worker state.
type Service struct {
	sales  sale.Repository
	events shared.EventPublisher
	logger *zap.Logger
}

// NewService creates a new queue service
func NewService(sales sale.Repository, logger *zap.Logger) *Service {
	return &Service{
		sales:  sales,
		logger: logger,
	}
}

// SetEventPublisher sets the publisher for queue lifecycle events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.events = publisher
}

// Enqueue moves a pending sale into the queue. Returns false when the sale
// was no longer pending - another worker already queued it, which is a benign
// race outcome and not an error.
func (s *Service) Enqueue(ctx context.Context, saleID uuid.UUID) (bool, error) {
	queued, err := s.sales.TransitionToQueued(ctx, saleID)
	if err != nil {
		return false, fmt.Errorf("enqueue sale %s: %w", saleID, err)
	}
	if !queued {
		s.logger.Debug("sale already queued by another worker",
			zap.String("sale_id", saleID.String()),
		)
		return false, nil
	}

	s.logger.Info("sale queued for processing", zap.String("sale_id", saleID.String()))
	return true, nil
}

// ClaimNextBatch atomically claims up to limit due sales and marks them
// processing. Concurrent callers never receive overlapping sales.
func (s *Service) ClaimNextBatch(ctx context.Context, limit int) ([]*sale.Sale, error) {
	if limit <= 0 {
		limit = DefaultClaimBatchSize
	}

	claimed, err := s.sales.ClaimNextBatch(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}

	if len(claimed) > 0 {
		s.logger.Debug("claimed sales for processing", zap.Int("count", len(claimed)))
	}
	return claimed, nil
}

// MarkProcessed records terminal success for a claimed sale
func (s *Service) MarkProcessed(ctx context.Context, saleID uuid.UUID, orderID *uuid.UUID) error {
	if err := s.sales.MarkProcessed(ctx, saleID, orderID); err != nil {
		return fmt.Errorf("mark sale %s processed: %w", saleID, err)
	}

	s.logger.Info("sale processed",
		zap.String("sale_id", saleID.String()),
	)
	return nil
}

// MarkFailed records a failed attempt for a claimed sale. Within the retry
// budget the sale re-enters the queue with exponential backoff; past it the
// sale is dead-lettered and requires manual replay.
func (s *Service) MarkFailed(ctx context.Context, saleID uuid.UUID, message string) error {
	record, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return fmt.Errorf("mark sale %s failed: %w", saleID, err)
	}

	if err := record.MarkFailed(message); err != nil {
		return fmt.Errorf("mark sale %s failed: %w", saleID, err)
	}

	if err := s.sales.Update(ctx, record); err != nil {
		return fmt.Errorf("persist failure of sale %s: %w", saleID, err)
	}

	if record.Status == sale.StatusDeadLetter {
		s.logger.Error("sale dead-lettered after exhausting retries",
			zap.String("sale_id", saleID.String()),
			zap.String("folio", record.Folio),
			zap.Int("retry_count", record.RetryCount),
			zap.String("error", message),
		)
	} else {
		s.logger.Warn("sale failed, scheduled for retry",
			zap.String("sale_id", saleID.String()),
			zap.Int("retry_count", record.RetryCount),
			zap.Timep("next_retry_at", record.NextRetryAt),
			zap.String("error", message),
		)
	}

	s.publishEvents(ctx, record)
	return nil
}

// Escalate dead-letters a claimed sale immediately, bypassing the retry
// budget. Used when retrying blind is unsafe, such as a failed compensating
// rollback that left stock and ledger diverged.
func (s *Service) Escalate(ctx context.Context, saleID uuid.UUID, message string) error {
	record, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return fmt.Errorf("escalate sale %s: %w", saleID, err)
	}

	if err := record.Escalate(message); err != nil {
		return fmt.Errorf("escalate sale %s: %w", saleID, err)
	}

	if err := s.sales.Update(ctx, record); err != nil {
		return fmt.Errorf("persist escalation of sale %s: %w", saleID, err)
	}

	s.logger.Error("sale escalated to dead letter",
		zap.String("sale_id", saleID.String()),
		zap.String("folio", record.Folio),
		zap.String("error", message),
	)

	s.publishEvents(ctx, record)
	return nil
}

// RecoverStale requeues sales stuck in processing longer than the timeout,
// protecting against crashed workers, and sweeps pending sales stranded by
// a failed enqueue. Returns the number of reclaimed sales.
func (s *Service) RecoverStale(ctx context.Context, timeout time.Duration) (int64, error) {
	if timeout <= 0 {
		timeout = DefaultStaleTimeout
	}

	cutoff := time.Now().Add(-timeout)
	recovered, err := s.sales.RecoverStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("recover stale sales: %w", err)
	}

	if recovered > 0 {
		s.logger.Warn("recovered stale sales from crashed workers",
			zap.Int64("count", recovered),
			zap.Duration("timeout", timeout),
		)
	}
	return recovered, nil
}

// GetStats returns aggregate sale counts per status, optionally scoped
// to one tenant
func (s *Service) GetStats(ctx context.Context, tenantID *uuid.UUID) (*Stats, error) {
	counts, err := s.sales.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	return &Stats{
		Pending:    counts[sale.StatusPending],
		Queued:     counts[sale.StatusQueued],
		Processing: counts[sale.StatusProcessing],
		Processed:  counts[sale.StatusProcessed],
		Failed:     counts[sale.StatusFailed],
		DeadLetter: counts[sale.StatusDeadLetter],
		Duplicate:  counts[sale.StatusDuplicate],
	}, nil
}

func (s *Service) publishEvents(ctx context.Context, record *sale.Sale) {
	if s.events == nil {
		return
	}
	events := record.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish sale events", zap.Error(err))
	}
	record.ClearDomainEvents()
}
