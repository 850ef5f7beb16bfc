package ingestion

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/application/queue"
	"github.com/possync/backend/internal/domain/sale"
	"github.com/possync/backend/internal/domain/shared"
)

// SaleRequest is a validated webhook payload for one POS sale
type SaleRequest struct {
	TenantID    uuid.UUID         `json:"tenant_id" binding:"required"`
	BranchID    uuid.UUID         `json:"branch_id" binding:"required"`
	Folio       string            `json:"folio" binding:"required"`
	TableNumber string            `json:"table_number"`
	SaleType    string            `json:"sale_type"`
	LineItems   []LineItemRequest `json:"line_items" binding:"required,min=1,dive"`
	Payments    []PaymentRequest  `json:"payments" binding:"dive"`
}

// LineItemRequest is one sold item within a webhook payload
type LineItemRequest struct {
	ProductCode    string          `json:"product_code" binding:"required"`
	ProductName    string          `json:"product_name"`
	Quantity       decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Modifiers      string          `json:"modifiers"`
}

// PaymentRequest is one payment within a webhook payload
type PaymentRequest struct {
	Method    string          `json:"method" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	TipAmount decimal.Decimal `json:"tip_amount"`
}

// Service receives externally-pushed sales, persists them and hands them to
// the queue. Duplicate folios within the configured window are persisted with
// terminal duplicate status instead of being queued.
type Service struct {
	sales     sale.Repository
	queue     *queue.Service
	seenStore shared.IdempotencyStore
	window    shared.DuplicateWindowConfig
	logger    *zap.Logger
}

// NewService creates a new ingestion service
func NewService(
	sales sale.Repository,
	queueService *queue.Service,
	seenStore shared.IdempotencyStore,
	window shared.DuplicateWindowConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		sales:     sales,
		queue:     queueService,
		seenStore: seenStore,
		window:    window,
		logger:    logger,
	}
}

// IngestSale persists an incoming sale and enqueues it for processing.
// Returns the persisted sale; callers must inspect its status, since a
// duplicate folio yields a persisted sale in duplicate status and no error.
func (s *Service) IngestSale(ctx context.Context, req *SaleRequest) (*sale.Sale, error) {
	record, err := s.buildSale(req)
	if err != nil {
		return nil, err
	}

	duplicate := s.isDuplicate(ctx, req)
	if duplicate {
		if err := record.MarkDuplicate(); err != nil {
			return nil, err
		}
	}

	if err := s.sales.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist sale %q: %w", req.Folio, err)
	}

	if duplicate {
		s.logger.Warn("duplicate folio received within window",
			zap.String("sale_id", record.ID.String()),
			zap.String("folio", req.Folio),
			zap.String("branch_id", req.BranchID.String()),
		)
		return record, nil
	}

	if _, err := s.queue.Enqueue(ctx, record.ID); err != nil {
		// The sale is persisted as pending; stale recovery or a later
		// manual enqueue can still pick it up.
		s.logger.Error("failed to enqueue ingested sale",
			zap.String("sale_id", record.ID.String()),
			zap.Error(err),
		)
		return record, err
	}

	s.logger.Info("sale ingested",
		zap.String("sale_id", record.ID.String()),
		zap.String("folio", req.Folio),
		zap.Int("line_items", len(record.LineItems)),
		zap.String("total", record.Total.String()),
	)
	return record, nil
}

func (s *Service) buildSale(req *SaleRequest) (*sale.Sale, error) {
	record, err := sale.NewSale(req.TenantID, req.BranchID, req.Folio)
	if err != nil {
		return nil, err
	}
	record.TableNumber = req.TableNumber
	record.SaleType = req.SaleType

	for _, li := range req.LineItems {
		item, err := sale.NewLineItem(li.ProductCode, li.ProductName, li.Quantity, li.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("line item %q: %w", li.ProductCode, err)
		}
		item.TaxAmount = li.TaxAmount
		item.DiscountAmount = li.DiscountAmount
		item.Modifiers = li.Modifiers
		record.AddLineItem(*item)
	}

	for _, p := range req.Payments {
		record.AddPayment(sale.Payment{
			BaseEntity: shared.NewBaseEntity(),
			Method:     p.Method,
			Amount:     p.Amount,
			TipAmount:  p.TipAmount,
		})
	}
	return record, nil
}

// isDuplicate marks the folio as seen and reports whether it already was.
// Store failures fail open: revenue data is never dropped because the
// duplicate cache is down.
func (s *Service) isDuplicate(ctx context.Context, req *SaleRequest) bool {
	if !s.window.Enabled || s.seenStore == nil {
		return false
	}

	key := fmt.Sprintf("sale:folio:%s:%s:%s", req.TenantID, req.BranchID, req.Folio)
	fresh, err := s.seenStore.MarkSeen(ctx, key, s.window.Window)
	if err != nil {
		s.logger.Warn("duplicate check unavailable, processing sale anyway",
			zap.String("folio", req.Folio),
			zap.Error(err),
		)
		return false
	}
	return !fresh
}
