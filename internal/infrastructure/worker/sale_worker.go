package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/possync/backend/internal/application/processing"
	"github.com/possync/backend/internal/application/queue"
)

// Config holds configuration for the sale worker pool
type Config struct {
	// Count is the number of polling goroutines
	Count int
	// BatchSize is the maximum number of sales claimed per poll
	BatchSize int
	// PollInterval is how often an idle worker polls the queue
	PollInterval time.Duration
	// StaleTimeout is how long a sale may sit in processing before it is
	// treated as abandoned by a crashed worker
	StaleTimeout time.Duration
	// StaleCheckInterval is how often stale recovery runs
	StaleCheckInterval time.Duration
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		Count:              2,
		BatchSize:          queue.DefaultClaimBatchSize,
		PollInterval:       2 * time.Second,
		StaleTimeout:       queue.DefaultStaleTimeout,
		StaleCheckInterval: time.Minute,
	}
}

// SaleWorker polls the queue for due sales and runs them through the
// processor. Workers hold no shared in-memory state; claims coordinate
// entirely through the backing store, so any number of worker processes can
// run side by side.
type SaleWorker struct {
	processor *processing.Processor
	queue     *queue.Service
	config    Config
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSaleWorker creates a new sale worker pool
func NewSaleWorker(processor *processing.Processor, queueService *queue.Service, config Config, logger *zap.Logger) *SaleWorker {
	if config.Count < 1 {
		config.Count = 1
	}
	if config.BatchSize < 1 {
		config.BatchSize = queue.DefaultClaimBatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.StaleTimeout <= 0 {
		config.StaleTimeout = queue.DefaultStaleTimeout
	}
	if config.StaleCheckInterval <= 0 {
		config.StaleCheckInterval = time.Minute
	}

	return &SaleWorker{
		processor: processor,
		queue:     queueService,
		config:    config,
		logger:    logger,
	}
}

// Start starts the polling goroutines and the stale recovery loop
func (w *SaleWorker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for i := 0; i < w.config.Count; i++ {
		w.wg.Add(1)
		go w.pollLoop(ctx, i)
	}

	w.wg.Add(1)
	go w.staleRecoveryLoop(ctx)

	w.logger.Info("sale worker started",
		zap.Int("workers", w.config.Count),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Duration("stale_timeout", w.config.StaleTimeout),
	)
	return nil
}

// Stop gracefully stops the worker, waiting for in-flight sales to finish
// or the context to expire
func (w *SaleWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("sale worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *SaleWorker) pollLoop(ctx context.Context, id int) {
	defer w.wg.Done()

	logger := w.logger.With(zap.Int("worker", id))
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before going back to sleep
			for {
				claimed, err := w.processor.ProcessBatch(ctx, w.config.BatchSize)
				if err != nil {
					logger.Error("failed to process batch", zap.Error(err))
					break
				}
				if claimed == 0 || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

func (w *SaleWorker) staleRecoveryLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.StaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.queue.RecoverStale(ctx, w.config.StaleTimeout); err != nil {
				w.logger.Error("stale recovery failed", zap.Error(err))
			}
		}
	}
}
