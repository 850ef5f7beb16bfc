package processing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/application/alerting"
	"github.com/possync/backend/internal/application/deduction"
	mapperapp "github.com/possync/backend/internal/application/mapping"
	orderapp "github.com/possync/backend/internal/application/order"
	"github.com/possync/backend/internal/application/queue"
	"github.com/possync/backend/internal/domain/inventory"
	"github.com/possync/backend/internal/domain/sale"
)

// CapabilityGate decides which processing stages run for a tenant. Tenants
// without inventory tracking still get their sales materialized into orders.
type CapabilityGate interface {
	InventoryDeductionEnabled(ctx context.Context, tenantID uuid.UUID) bool
}

// AllowAll is the gate used when every tenant has every capability
type AllowAll struct{}

func (AllowAll) InventoryDeductionEnabled(context.Context, uuid.UUID) bool { return true }

// Options tunes processor behavior
type Options struct {
	// AllowNegativeStock lets deductions drive stock below zero instead of
	// failing the ingredient
	AllowNegativeStock bool
}

// Processor runs the full pipeline for one claimed sale: map product codes,
// deduct inventory, check stock levels, materialize the order. It owns no
// claiming loop; workers claim batches through the queue service and hand
// sales to Process one at a time.
type Processor struct {
	queue        *queue.Service
	sales        sale.Repository
	mapper       *mapperapp.MapperService
	engine       *deduction.Engine
	alerts       *alerting.LowStockService
	materializer *orderapp.MaterializerService
	gate         CapabilityGate
	opts         Options
	logger       *zap.Logger
}

// NewProcessor creates a new sale processor
func NewProcessor(
	queueService *queue.Service,
	sales sale.Repository,
	mapper *mapperapp.MapperService,
	engine *deduction.Engine,
	alerts *alerting.LowStockService,
	materializer *orderapp.MaterializerService,
	opts Options,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		queue:        queueService,
		sales:        sales,
		mapper:       mapper,
		engine:       engine,
		alerts:       alerts,
		materializer: materializer,
		gate:         AllowAll{},
		opts:         opts,
		logger:       logger,
	}
}

// SetCapabilityGate overrides the default allow-all gate
func (p *Processor) SetCapabilityGate(gate CapabilityGate) {
	if gate != nil {
		p.gate = gate
	}
}

// Process runs the pipeline for one claimed sale. The sale must be in
// processing status. Any failure is recorded through the queue service, so
// Process itself only returns errors from that recording.
func (p *Processor) Process(ctx context.Context, saleID uuid.UUID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while processing sale",
				zap.String("sale_id", saleID.String()),
				zap.Any("panic", r),
			)
			err = p.queue.MarkFailed(ctx, saleID, fmt.Sprintf("panic: %v", r))
		}
	}()

	record, err := p.sales.FindWithLineItems(ctx, saleID)
	if err != nil {
		return p.queue.MarkFailed(ctx, saleID, fmt.Sprintf("load sale: %v", err))
	}
	if record.Status != sale.StatusProcessing {
		p.logger.Warn("sale not in processing status, skipping",
			zap.String("sale_id", saleID.String()),
			zap.String("status", string(record.Status)),
		)
		return nil
	}

	if err := p.mapLineItems(ctx, record); err != nil {
		return p.queue.MarkFailed(ctx, saleID, fmt.Sprintf("map line items: %v", err))
	}

	if p.gate.InventoryDeductionEnabled(ctx, record.TenantID) {
		result, err := p.engine.DeduceForSale(ctx, record, p.opts.AllowNegativeStock)
		if err != nil {
			var recErr *inventory.ReconciliationError
			if errors.As(err, &recErr) {
				// Stock and ledger diverged and the rollback failed too.
				// Retrying blind would deduct again on top of the orphaned
				// write, so this goes straight to the dead letter queue.
				return p.queue.Escalate(ctx, saleID, recErr.Error())
			}
			return p.queue.MarkFailed(ctx, saleID, fmt.Sprintf("deduct inventory: %v", err))
		}
		if !result.Success() {
			return p.queue.MarkFailed(ctx, saleID, strings.Join(result.Errors(), "; "))
		}
		p.checkStockLevels(ctx, record, result)
	}

	o, err := p.materializer.Materialize(ctx, record)
	if err != nil {
		return p.queue.MarkFailed(ctx, saleID, fmt.Sprintf("materialize order: %v", err))
	}

	return p.queue.MarkProcessed(ctx, saleID, &o.ID)
}

// ProcessBatch claims up to limit due sales and processes them sequentially,
// returning how many were claimed
func (p *Processor) ProcessBatch(ctx context.Context, limit int) (int, error) {
	claimed, err := p.queue.ClaimNextBatch(ctx, limit)
	if err != nil {
		return 0, err
	}

	for _, s := range claimed {
		if err := p.Process(ctx, s.ID); err != nil {
			p.logger.Error("failed to record sale outcome",
				zap.String("sale_id", s.ID.String()),
				zap.Error(err),
			)
		}
	}
	return len(claimed), nil
}

// mapLineItems resolves every unmapped line item through the product mapper
// and persists the mappings it finds
func (p *Processor) mapLineItems(ctx context.Context, record *sale.Sale) error {
	scope := mapperapp.Scope{TenantID: record.TenantID, BranchID: record.BranchID}

	for i := range record.LineItems {
		li := &record.LineItems[i]
		if li.IsMapped() {
			continue
		}

		menuItemID, err := p.mapper.FindOrCreateMapping(ctx, scope, li.ProductCode, li.ProductName)
		if err != nil {
			return err
		}
		if menuItemID == nil {
			continue
		}

		li.AttachMapping(*menuItemID)
		if err := p.sales.UpdateLineItemMapping(ctx, li.ID, *menuItemID); err != nil {
			return err
		}
	}
	return nil
}

// checkStockLevels runs the targeted low-stock check over the items the
// deduction touched. Alert failures never abort processing.
func (p *Processor) checkStockLevels(ctx context.Context, record *sale.Sale, result *deduction.SaleResult) {
	itemIDs := result.AffectedItemIDs()
	if len(itemIDs) == 0 {
		return
	}

	if _, err := p.alerts.CheckItems(ctx, record.TenantID, itemIDs); err != nil {
		p.logger.Warn("low stock check failed",
			zap.String("sale_id", record.ID.String()),
			zap.Error(err),
		)
	}
}
