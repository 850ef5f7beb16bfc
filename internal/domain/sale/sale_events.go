package sale

import (
	"github.com/google/uuid"

	"github.com/possync/backend/internal/domain/shared"
)

// Event types for the sale aggregate
const (
	EventTypeSaleQueued       = "sale.queued"
	EventTypeSaleProcessed    = "sale.processed"
	EventTypeSaleDeadLettered = "sale.dead_lettered"
)

// SaleQueuedEvent is emitted when a sale enters the processing queue
type SaleQueuedEvent struct {
	shared.BaseDomainEvent
	Folio    string    `json:"folio"`
	BranchID uuid.UUID `json:"branch_id"`
}

// NewSaleQueuedEvent creates a new SaleQueuedEvent
func NewSaleQueuedEvent(s *Sale) *SaleQueuedEvent {
	return &SaleQueuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleQueued, "Sale", s.ID, s.TenantID),
		Folio:           s.Folio,
		BranchID:        s.BranchID,
	}
}

// SaleProcessedEvent is emitted when a sale reaches terminal success
type SaleProcessedEvent struct {
	shared.BaseDomainEvent
	Folio   string     `json:"folio"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`
}

// NewSaleProcessedEvent creates a new SaleProcessedEvent
func NewSaleProcessedEvent(s *Sale, orderID *uuid.UUID) *SaleProcessedEvent {
	return &SaleProcessedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleProcessed, "Sale", s.ID, s.TenantID),
		Folio:           s.Folio,
		OrderID:         orderID,
	}
}

// SaleDeadLetteredEvent is emitted when a sale exhausts its retry budget
type SaleDeadLetteredEvent struct {
	shared.BaseDomainEvent
	Folio      string `json:"folio"`
	RetryCount int    `json:"retry_count"`
	LastError  string `json:"last_error"`
}

// NewSaleDeadLetteredEvent creates a new SaleDeadLetteredEvent
func NewSaleDeadLetteredEvent(s *Sale, lastError string) *SaleDeadLetteredEvent {
	return &SaleDeadLetteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleDeadLettered, "Sale", s.ID, s.TenantID),
		Folio:           s.Folio,
		RetryCount:      s.RetryCount,
		LastError:       lastError,
	}
}
