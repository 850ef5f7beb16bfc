package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/possync/backend/internal/domain/sale"
	"github.com/possync/backend/internal/domain/shared"
)

// GormSaleRepository implements sale.Repository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// Create persists a new sale with its line items and payments
func (r *GormSaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// FindByID finds a sale by its ID
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	var s sale.Sale
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindWithLineItems finds a sale with line items and payments preloaded
func (r *GormSaleRepository) FindWithLineItems(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	var s sale.Sale
	if err := r.db.WithContext(ctx).
		Preload("LineItems").
		Preload("Payments").
		First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindByFolio finds the most recent sale for a folio within a tenant/branch scope
func (r *GormSaleRepository) FindByFolio(ctx context.Context, tenantID, branchID uuid.UUID, folio string) (*sale.Sale, error) {
	var s sale.Sale
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND branch_id = ? AND folio = ?", tenantID, branchID, folio).
		Order("created_at DESC").
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// TransitionToQueued moves a sale from pending to queued. Returns false when
// the sale was not in pending status.
func (r *GormSaleRepository) TransitionToQueued(ctx context.Context, saleID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&sale.Sale{}).
		Where("id = ? AND status = ?", saleID, sale.StatusPending).
		Updates(map[string]interface{}{
			"status":     sale.StatusQueued,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClaimNextBatch atomically claims up to limit queued sales that are due and
// marks them processing. Rows are locked with FOR UPDATE SKIP LOCKED so
// concurrent workers never claim the same sale.
func (r *GormSaleRepository) ClaimNextBatch(ctx context.Context, limit int) ([]*sale.Sale, error) {
	var claimed []*sale.Sale

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Options:  "SKIP LOCKED",
			}).
			Where("status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)", sale.StatusQueued, now).
			Order("created_at ASC").
			Limit(limit).
			Find(&claimed).Error; err != nil {
			return err
		}

		if len(claimed) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(claimed))
		for i, s := range claimed {
			ids[i] = s.ID
		}

		if err := tx.Model(&sale.Sale{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     sale.StatusProcessing,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		for _, s := range claimed {
			s.Status = sale.StatusProcessing
			s.UpdatedAt = now
		}
		return nil
	})

	return claimed, err
}

// MarkProcessed records terminal success, clearing error fields
func (r *GormSaleRepository) MarkProcessed(ctx context.Context, saleID uuid.UUID, orderID *uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&sale.Sale{}).
		Where("id = ? AND status = ?", saleID, sale.StatusProcessing).
		Updates(map[string]interface{}{
			"status":        sale.StatusProcessed,
			"order_id":      orderID,
			"processed_at":  now,
			"error_message": "",
			"next_retry_at": nil,
			"updated_at":    now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrInvalidState
	}
	return nil
}

// Update persists retry bookkeeping and status transitions of a claimed sale
func (r *GormSaleRepository) Update(ctx context.Context, s *sale.Sale) error {
	result := r.db.WithContext(ctx).
		Model(s).
		Where("id = ? AND version = ?", s.ID, s.Version-1).
		Updates(map[string]interface{}{
			"status":        s.Status,
			"retry_count":   s.RetryCount,
			"next_retry_at": s.NextRetryAt,
			"error_message": s.ErrorMessage,
			"processed_at":  s.ProcessedAt,
			"order_id":      s.OrderID,
			"version":       s.Version,
			"updated_at":    s.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// UpdateLineItemMapping attaches a menu item mapping to a line item
func (r *GormSaleRepository) UpdateLineItemMapping(ctx context.Context, lineItemID, menuItemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&sale.LineItem{}).
		Where("id = ?", lineItemID).
		Updates(map[string]interface{}{
			"mapped_menu_item_id": menuItemID,
			"updated_at":          time.Now(),
		}).Error
}

// RecoverStale requeues sales stuck in processing since before cutoff,
// returning the number of reclaimed sales. Pending sales older than the
// cutoff are swept too: those are sales whose enqueue failed after the
// initial insert.
func (r *GormSaleRepository) RecoverStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&sale.Sale{}).
		Where("status IN ? AND updated_at < ?", []sale.Status{sale.StatusProcessing, sale.StatusPending}, cutoff).
		Updates(map[string]interface{}{
			"status":        sale.StatusQueued,
			"next_retry_at": nil,
			"updated_at":    time.Now(),
		})

	return result.RowsAffected, result.Error
}

// CountByStatus returns the number of sales per status, optionally scoped
// to a tenant
func (r *GormSaleRepository) CountByStatus(ctx context.Context, tenantID *uuid.UUID) (map[sale.Status]int64, error) {
	type row struct {
		Status sale.Status
		Count  int64
	}
	var rows []row

	query := r.db.WithContext(ctx).
		Model(&sale.Sale{}).
		Select("status, COUNT(*) as count").
		Group("status")
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[sale.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
