package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/application/alerting"
	"github.com/possync/backend/internal/application/deduction"
	mapperapp "github.com/possync/backend/internal/application/mapping"
	orderapp "github.com/possync/backend/internal/application/order"
	"github.com/possync/backend/internal/application/processing"
	"github.com/possync/backend/internal/application/queue"
	"github.com/possync/backend/internal/domain/inventory"
	mappingdomain "github.com/possync/backend/internal/domain/mapping"
	"github.com/possync/backend/internal/domain/menu"
	orderdomain "github.com/possync/backend/internal/domain/order"
	"github.com/possync/backend/internal/domain/sale"
	"github.com/possync/backend/internal/domain/shared"
)

// memSaleRepo is a thread-safe in-memory sale.Repository for worker tests
type memSaleRepo struct {
	mu    sync.Mutex
	sales map[uuid.UUID]*sale.Sale
}

func newMemSaleRepo() *memSaleRepo {
	return &memSaleRepo{sales: make(map[uuid.UUID]*sale.Sale)}
}

func (r *memSaleRepo) Create(_ context.Context, s *sale.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sales[s.ID] = s
	return nil
}

func (r *memSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*sale.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sales[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

func (r *memSaleRepo) FindWithLineItems(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	return r.FindByID(ctx, id)
}

func (r *memSaleRepo) FindByFolio(_ context.Context, tenantID, branchID uuid.UUID, folio string) (*sale.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sales {
		if s.TenantID == tenantID && s.BranchID == branchID && s.Folio == folio {
			return s, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memSaleRepo) TransitionToQueued(_ context.Context, saleID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sales[saleID]
	if !ok || s.Status != sale.StatusPending {
		return false, nil
	}
	return true, s.Queue()
}

func (r *memSaleRepo) ClaimNextBatch(_ context.Context, limit int) ([]*sale.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var due []*sale.Sale
	for _, s := range r.sales {
		if s.Status != sale.StatusQueued {
			continue
		}
		if s.NextRetryAt != nil && s.NextRetryAt.After(now) {
			continue
		}
		due = append(due, s)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for _, s := range due {
		if err := s.StartProcessing(); err != nil {
			return nil, err
		}
	}
	return due, nil
}

func (r *memSaleRepo) MarkProcessed(_ context.Context, saleID uuid.UUID, orderID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sales[saleID]
	if !ok {
		return shared.ErrNotFound
	}
	return s.MarkProcessed(orderID)
}

func (r *memSaleRepo) Update(_ context.Context, s *sale.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sales[s.ID] = s
	return nil
}

func (r *memSaleRepo) UpdateLineItemMapping(_ context.Context, _, _ uuid.UUID) error {
	return nil
}

func (r *memSaleRepo) RecoverStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var recovered int64
	for _, s := range r.sales {
		if (s.Status == sale.StatusProcessing || s.Status == sale.StatusPending) && s.UpdatedAt.Before(cutoff) {
			s.Status = sale.StatusQueued
			s.NextRetryAt = nil
			s.UpdatedAt = time.Now()
			recovered++
		}
	}
	return recovered, nil
}

func (r *memSaleRepo) CountByStatus(_ context.Context, tenantID *uuid.UUID) (map[sale.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[sale.Status]int64)
	for _, s := range r.sales {
		if tenantID != nil && s.TenantID != *tenantID {
			continue
		}
		counts[s.Status]++
	}
	return counts, nil
}

func (r *memSaleRepo) statusOf(id uuid.UUID) sale.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sales[id].Status
}

// memOrderRepo is a thread-safe in-memory order.Repository
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*orderdomain.Order
	next   int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[uuid.UUID]*orderdomain.Order)}
}

func (r *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*orderdomain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func (r *memOrderRepo) FindBySourceSale(_ context.Context, _, sourceSaleID uuid.UUID) (*orderdomain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.SourceSaleID == sourceSaleID {
			return o, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memOrderRepo) NextOrderNumber(_ context.Context, _, _ uuid.UUID, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next + 1, nil
}

func (r *memOrderRepo) CreateWithNumber(_ context.Context, o *orderdomain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.SourceSaleID == o.SourceSaleID {
			return shared.ErrAlreadyExists
		}
	}
	r.next++
	o.OrderNumber = r.next
	r.orders[o.ID] = o
	return nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// stub repositories for stages the worker tests never exercise

type stubTableRepo struct{}

func (stubTableRepo) FindByNumber(context.Context, uuid.UUID, uuid.UUID, string) (*orderdomain.DiningTable, error) {
	return nil, shared.ErrNotFound
}

type stubMappingRepo struct{}

func (stubMappingRepo) FindByCode(context.Context, uuid.UUID, uuid.UUID, string) (*mappingdomain.ProductMapping, error) {
	return nil, shared.ErrNotFound
}

func (stubMappingRepo) FindUnmapped(context.Context, uuid.UUID, uuid.UUID) ([]mappingdomain.ProductMapping, error) {
	return nil, nil
}

func (stubMappingRepo) Save(context.Context, *mappingdomain.ProductMapping) error { return nil }

type stubMenuRepo struct{}

func (stubMenuRepo) FindByID(context.Context, uuid.UUID) (*menu.MenuItem, error) {
	return nil, shared.ErrNotFound
}

func (stubMenuRepo) FindActiveByExactName(context.Context, uuid.UUID, uuid.UUID, string) (*menu.MenuItem, error) {
	return nil, shared.ErrNotFound
}

func (stubMenuRepo) FindActiveByNameContains(context.Context, uuid.UUID, uuid.UUID, string) (*menu.MenuItem, error) {
	return nil, shared.ErrNotFound
}

func (stubMenuRepo) Save(context.Context, *menu.MenuItem) error { return nil }

type stubRecipeRepo struct{}

func (stubRecipeRepo) FindActiveByMenuItem(context.Context, uuid.UUID, uuid.UUID) (*menu.Recipe, error) {
	return nil, shared.ErrNotFound
}

func (stubRecipeRepo) Save(context.Context, *menu.Recipe) error { return nil }

type stubItemRepo struct{}

func (stubItemRepo) FindByID(context.Context, uuid.UUID) (*inventory.InventoryItem, error) {
	return nil, shared.ErrNotFound
}

func (stubItemRepo) FindByIDs(context.Context, uuid.UUID, []uuid.UUID) ([]inventory.InventoryItem, error) {
	return nil, nil
}

func (stubItemRepo) FindBelowMinimum(context.Context, uuid.UUID, uuid.UUID) ([]inventory.InventoryItem, error) {
	return nil, nil
}

func (stubItemRepo) Save(context.Context, *inventory.InventoryItem) error { return nil }

func (stubItemRepo) UpdateStockCAS(context.Context, uuid.UUID, decimal.Decimal, decimal.Decimal) error {
	return nil
}

type stubMovementRepo struct{}

func (stubMovementRepo) Append(context.Context, *inventory.Movement) error { return nil }

func (stubMovementRepo) FindByFilter(context.Context, uuid.UUID, inventory.MovementFilter, shared.Filter) ([]inventory.Movement, int64, error) {
	return nil, 0, nil
}

func (stubMovementRepo) SumInOut(context.Context, uuid.UUID, *uuid.UUID, time.Time, time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.Zero, decimal.Zero, nil
}

func newTestWorker(t *testing.T, salesRepo *memSaleRepo, ordersRepo *memOrderRepo, cfg Config) *SaleWorker {
	t.Helper()
	log := zap.NewNop()
	queueService := queue.NewService(salesRepo, log)
	mapper := mapperapp.NewMapperService(stubMappingRepo{}, stubMenuRepo{}, log)
	engine := deduction.NewEngine(stubMenuRepo{}, stubRecipeRepo{}, stubItemRepo{}, stubMovementRepo{}, log)
	alerts := alerting.NewLowStockService(stubItemRepo{}, log)
	materializer := orderapp.NewMaterializerService(ordersRepo, stubTableRepo{}, log)
	processor := processing.NewProcessor(queueService, salesRepo, mapper, engine, alerts, materializer, processing.Options{}, log)

	return NewSaleWorker(processor, queueService, cfg, log)
}

func TestSaleWorker_DrainsQueue(t *testing.T) {
	salesRepo := newMemSaleRepo()
	ordersRepo := newMemOrderRepo()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		s, err := sale.NewSale(uuid.New(), uuid.New(), fmt.Sprintf("F-50%02d", i))
		require.NoError(t, err)
		require.NoError(t, s.Queue())
		require.NoError(t, salesRepo.Create(context.Background(), s))
		ids = append(ids, s.ID)
	}

	w := newTestWorker(t, salesRepo, ordersRepo, Config{
		Count:        2,
		BatchSize:    2,
		PollInterval: 10 * time.Millisecond,
	})

	require.NoError(t, w.Start(context.Background()))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, w.Stop(stopCtx))
	}()

	require.Eventually(t, func() bool {
		for _, id := range ids {
			if salesRepo.statusOf(id) != sale.StatusProcessed {
				return false
			}
		}
		return true
	}, 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, 5, ordersRepo.count())
}

func TestSaleWorker_RecoversStaleSales(t *testing.T) {
	salesRepo := newMemSaleRepo()
	ordersRepo := newMemOrderRepo()

	// A sale abandoned mid-processing by a crashed worker.
	s, err := sale.NewSale(uuid.New(), uuid.New(), "F-6001")
	require.NoError(t, err)
	require.NoError(t, s.Queue())
	require.NoError(t, s.StartProcessing())
	s.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, salesRepo.Create(context.Background(), s))

	w := newTestWorker(t, salesRepo, ordersRepo, Config{
		Count:              1,
		PollInterval:       10 * time.Millisecond,
		StaleTimeout:       time.Minute,
		StaleCheckInterval: 10 * time.Millisecond,
	})

	require.NoError(t, w.Start(context.Background()))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, w.Stop(stopCtx))
	}()

	// Stale recovery requeues it, then a poll picks it up and processes it.
	require.Eventually(t, func() bool {
		return salesRepo.statusOf(s.ID) == sale.StatusProcessed
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSaleWorker_RecoversStrandedPendingSales(t *testing.T) {
	salesRepo := newMemSaleRepo()
	ordersRepo := newMemOrderRepo()

	// A sale persisted during ingestion whose enqueue never completed.
	s, err := sale.NewSale(uuid.New(), uuid.New(), "F-6002")
	require.NoError(t, err)
	s.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, salesRepo.Create(context.Background(), s))
	require.Equal(t, sale.StatusPending, salesRepo.statusOf(s.ID))

	w := newTestWorker(t, salesRepo, ordersRepo, Config{
		Count:              1,
		PollInterval:       10 * time.Millisecond,
		StaleTimeout:       time.Minute,
		StaleCheckInterval: 10 * time.Millisecond,
	})

	require.NoError(t, w.Start(context.Background()))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, w.Stop(stopCtx))
	}()

	require.Eventually(t, func() bool {
		return salesRepo.statusOf(s.ID) == sale.StatusProcessed
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSaleWorker_StopWaitsForWorkers(t *testing.T) {
	salesRepo := newMemSaleRepo()
	ordersRepo := newMemOrderRepo()

	w := newTestWorker(t, salesRepo, ordersRepo, Config{Count: 3, PollInterval: 5 * time.Millisecond})
	require.NoError(t, w.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, w.Stop(stopCtx))
}
