package order

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	orderdomain "github.com/possync/backend/internal/domain/order"
	saledomain "github.com/possync/backend/internal/domain/sale"
	"github.com/possync/backend/internal/domain/shared"
)

// MaterializerService turns processed sales into finalized orders.
// Materialization is idempotent on the source sale: reprocessing a sale that
// already produced an order returns that order unchanged.
type MaterializerService struct {
	orders orderdomain.Repository
	tables orderdomain.TableRepository
	logger *zap.Logger
}

// NewMaterializerService creates a new MaterializerService
func NewMaterializerService(orders orderdomain.Repository, tables orderdomain.TableRepository, logger *zap.Logger) *MaterializerService {
	return &MaterializerService{
		orders: orders,
		tables: tables,
		logger: logger,
	}
}

// Materialize creates the order for a sale, or returns the existing one.
// The sale must carry its line items and payments.
func (s *MaterializerService) Materialize(ctx context.Context, sl *saledomain.Sale) (*orderdomain.Order, error) {
	existing, err := s.orders.FindBySourceSale(ctx, sl.TenantID, sl.ID)
	if err == nil {
		s.logger.Info("sale already materialized, returning existing order",
			zap.String("sale_id", sl.ID.String()),
			zap.String("order_id", existing.ID.String()),
		)
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("look up order for sale %s: %w", sl.ID, err)
	}

	orderType, known := orderdomain.NormalizeSaleType(sl.SaleType)
	if !known && sl.SaleType != "" {
		s.logger.Warn("unknown sale type, defaulting to dine-in",
			zap.String("sale_id", sl.ID.String()),
			zap.String("sale_type", sl.SaleType),
		)
	}

	o, err := orderdomain.NewOrder(sl.TenantID, sl.BranchID, sl.ID, orderType)
	if err != nil {
		return nil, err
	}

	if sl.TableNumber != "" {
		table, err := s.tables.FindByNumber(ctx, sl.TenantID, sl.BranchID, sl.TableNumber)
		switch {
		case err == nil:
			o.TableID = &table.ID
		case errors.Is(err, shared.ErrNotFound):
			s.logger.Warn("table number has no matching table",
				zap.String("sale_id", sl.ID.String()),
				zap.String("table_number", sl.TableNumber),
			)
		default:
			return nil, fmt.Errorf("look up table %q: %w", sl.TableNumber, err)
		}
	}

	o.PaymentMethod = sl.DominantPaymentMethod()

	for i := range sl.LineItems {
		li := &sl.LineItems[i]
		name := li.ProductName
		if name == "" {
			name = li.ProductCode
		}
		o.AddLineItem(orderdomain.LineItem{
			BaseEntity:     shared.NewBaseEntity(),
			MenuItemID:     li.MappedMenuItemID,
			Name:           name,
			Quantity:       li.Quantity,
			UnitPrice:      li.UnitPrice,
			TaxAmount:      li.TaxAmount,
			DiscountAmount: li.DiscountAmount,
			IsUnmapped:     !li.IsMapped(),
		})
	}

	if err := s.orders.CreateWithNumber(ctx, o); err != nil {
		// A concurrent worker may have materialized this sale between our
		// existence check and the insert. The unique index on the source sale
		// makes the insert fail; re-read and return the winner's order.
		if errors.Is(err, shared.ErrAlreadyExists) {
			return s.orders.FindBySourceSale(ctx, sl.TenantID, sl.ID)
		}
		return nil, fmt.Errorf("create order for sale %s: %w", sl.ID, err)
	}

	s.logger.Info("sale materialized into order",
		zap.String("sale_id", sl.ID.String()),
		zap.String("order_id", o.ID.String()),
		zap.Int("order_number", o.OrderNumber),
		zap.String("order_type", string(o.OrderType)),
		zap.String("total", o.Total.String()),
	)
	return o, nil
}
