package sale

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/possync/backend/internal/domain/shared"
)

// Status represents the processing status of a sale
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
	StatusDeadLetter Status = "dead_letter"
	StatusDuplicate  Status = "duplicate"
)

// IsTerminal returns true if no further transitions are allowed from this status
func (s Status) IsTerminal() bool {
	return s == StatusProcessed || s == StatusDeadLetter || s == StatusDuplicate
}

// Retry configuration defaults
const (
	DefaultMaxRetries = 3
	// MaxBackoff caps the exponential retry delay at one hour
	MaxBackoff = time.Hour
	// BaseBackoff is the unit of the exponential retry delay
	BaseBackoff = time.Second
)

// Sale is the aggregate root for an externally-pushed POS sale.
// It is created as pending by ingestion, moved through the queue state
// machine by workers, and becomes immutable once processed.
type Sale struct {
	shared.TenantAggregateRoot
	BranchID    uuid.UUID `gorm:"type:uuid;not null;index;index:idx_sales_scope_folio,priority:1"`
	Folio       string    `gorm:"not null;index:idx_sales_scope_folio,priority:2"`
	TableNumber string
	SaleType    string
	Status      Status `gorm:"not null;index;default:pending"`

	RetryCount   int `gorm:"not null;default:0"`
	MaxRetries   int `gorm:"not null;default:3"`
	NextRetryAt  *time.Time
	ErrorMessage string
	ProcessedAt  *time.Time
	OrderID      *uuid.UUID `gorm:"type:uuid"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Total          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	LineItems []LineItem `gorm:"foreignKey:SaleID;references:ID"`
	Payments  []Payment  `gorm:"foreignKey:SaleID;references:ID"`
}

// TableName returns the table name for GORM
func (Sale) TableName() string {
	return "sales"
}

// NewSale creates a pending sale for the given tenant/branch scope
func NewSale(tenantID, branchID uuid.UUID, folio string) (*Sale, error) {
	if branchID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_BRANCH", "Branch ID cannot be empty")
	}
	if folio == "" {
		return nil, shared.NewDomainError("INVALID_FOLIO", "Folio cannot be empty")
	}

	return &Sale{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BranchID:            branchID,
		Folio:               folio,
		Status:              StatusPending,
		MaxRetries:          DefaultMaxRetries,
		Subtotal:            decimal.Zero,
		TaxAmount:           decimal.Zero,
		DiscountAmount:      decimal.Zero,
		Total:               decimal.Zero,
		LineItems:           make([]LineItem, 0),
		Payments:            make([]Payment, 0),
	}, nil
}

// AddLineItem appends a line item to the sale and recalculates totals
func (s *Sale) AddLineItem(item LineItem) {
	item.SaleID = s.ID
	s.LineItems = append(s.LineItems, item)
	s.Subtotal = s.Subtotal.Add(item.UnitPrice.Mul(item.Quantity))
	s.TaxAmount = s.TaxAmount.Add(item.TaxAmount)
	s.DiscountAmount = s.DiscountAmount.Add(item.DiscountAmount)
	s.Total = s.Subtotal.Add(s.TaxAmount).Sub(s.DiscountAmount)
}

// AddPayment appends a payment to the sale
func (s *Sale) AddPayment(p Payment) {
	p.SaleID = s.ID
	s.Payments = append(s.Payments, p)
}

// Queue transitions the sale from pending to queued
func (s *Sale) Queue() error {
	if s.Status != StatusPending {
		return shared.ErrInvalidState
	}
	s.Status = StatusQueued
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	s.AddDomainEvent(NewSaleQueuedEvent(s))
	return nil
}

// StartProcessing transitions the sale from queued to processing.
// The processing status acts as a lease: a worker holding it is expected
// to finish or fail within the stale timeout.
func (s *Sale) StartProcessing() error {
	if s.Status != StatusQueued {
		return shared.ErrInvalidState
	}
	s.Status = StatusProcessing
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// MarkProcessed records terminal success, clearing error state
func (s *Sale) MarkProcessed(orderID *uuid.UUID) error {
	if s.Status != StatusProcessing {
		return shared.ErrInvalidState
	}
	now := time.Now()
	s.Status = StatusProcessed
	s.OrderID = orderID
	s.ProcessedAt = &now
	s.ErrorMessage = ""
	s.NextRetryAt = nil
	s.UpdatedAt = now
	s.IncrementVersion()
	s.AddDomainEvent(NewSaleProcessedEvent(s, orderID))
	return nil
}

// MarkFailed records a failed attempt. Within the retry budget the sale
// re-enters the queue with an exponential backoff of min(2^retries * 1s, 1h);
// past the budget it is dead-lettered permanently.
func (s *Sale) MarkFailed(message string) error {
	if s.Status != StatusProcessing && s.Status != StatusQueued {
		return shared.ErrInvalidState
	}

	now := time.Now()
	s.RetryCount++
	s.ErrorMessage = message
	s.UpdatedAt = now
	s.IncrementVersion()

	if s.RetryCount >= s.maxRetries() {
		s.Status = StatusDeadLetter
		s.NextRetryAt = nil
		s.AddDomainEvent(NewSaleDeadLetteredEvent(s, message))
		return nil
	}

	s.Status = StatusQueued
	nextRetry := now.Add(s.backoff())
	s.NextRetryAt = &nextRetry
	return nil
}

// Escalate dead-letters the sale immediately, bypassing the retry budget.
// Used when retrying blind is unsafe, such as a failed compensating rollback
// that left stock and ledger diverged.
func (s *Sale) Escalate(message string) error {
	if s.Status != StatusProcessing {
		return shared.ErrInvalidState
	}
	s.Status = StatusDeadLetter
	s.ErrorMessage = message
	s.NextRetryAt = nil
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	s.AddDomainEvent(NewSaleDeadLetteredEvent(s, message))
	return nil
}

// MarkDuplicate flags a sale whose folio was already received within the
// duplicate window. Terminal; set before the sale ever enters the queue.
func (s *Sale) MarkDuplicate() error {
	if s.Status != StatusPending {
		return shared.ErrInvalidState
	}
	s.Status = StatusDuplicate
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// backoff returns the exponential retry delay for the current retry count
func (s *Sale) backoff() time.Duration {
	d := BaseBackoff * time.Duration(1<<uint(s.RetryCount))
	if d > MaxBackoff || d <= 0 {
		return MaxBackoff
	}
	return d
}

func (s *Sale) maxRetries() int {
	if s.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return s.MaxRetries
}

// IsRetryable returns true if the sale may be picked up again by a worker
func (s *Sale) IsRetryable() bool {
	return s.Status == StatusQueued
}

// MappedLineItems returns the line items that carry a menu item mapping
func (s *Sale) MappedLineItems() []LineItem {
	mapped := make([]LineItem, 0, len(s.LineItems))
	for _, item := range s.LineItems {
		if item.MappedMenuItemID != nil {
			mapped = append(mapped, item)
		}
	}
	return mapped
}

// DominantPaymentMethod returns the payment method carrying the largest
// amount, or empty when the sale has no payments
func (s *Sale) DominantPaymentMethod() string {
	totals := make(map[string]decimal.Decimal)
	order := make([]string, 0, len(s.Payments))
	for _, p := range s.Payments {
		if _, ok := totals[p.Method]; !ok {
			order = append(order, p.Method)
		}
		totals[p.Method] = totals[p.Method].Add(p.Amount)
	}

	method := ""
	best := decimal.Zero
	for _, m := range order {
		if method == "" || totals[m].GreaterThan(best) {
			method = m
			best = totals[m]
		}
	}
	return method
}
