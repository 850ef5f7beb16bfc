package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/sale"
)

// MockSaleRepository is a mock implementation of sale.Repository
type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sale.Sale), args.Error(1)
}

func (m *MockSaleRepository) FindWithLineItems(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sale.Sale), args.Error(1)
}

func (m *MockSaleRepository) FindByFolio(ctx context.Context, tenantID, branchID uuid.UUID, folio string) (*sale.Sale, error) {
	args := m.Called(ctx, tenantID, branchID, folio)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sale.Sale), args.Error(1)
}

func (m *MockSaleRepository) TransitionToQueued(ctx context.Context, saleID uuid.UUID) (bool, error) {
	args := m.Called(ctx, saleID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSaleRepository) ClaimNextBatch(ctx context.Context, limit int) ([]*sale.Sale, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sale.Sale), args.Error(1)
}

func (m *MockSaleRepository) MarkProcessed(ctx context.Context, saleID uuid.UUID, orderID *uuid.UUID) error {
	args := m.Called(ctx, saleID, orderID)
	return args.Error(0)
}

func (m *MockSaleRepository) Update(ctx context.Context, s *sale.Sale) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSaleRepository) UpdateLineItemMapping(ctx context.Context, lineItemID, menuItemID uuid.UUID) error {
	args := m.Called(ctx, lineItemID, menuItemID)
	return args.Error(0)
}

func (m *MockSaleRepository) RecoverStale(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSaleRepository) CountByStatus(ctx context.Context, tenantID *uuid.UUID) (map[sale.Status]int64, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[sale.Status]int64), args.Error(1)
}

func newProcessingSale(t *testing.T) *sale.Sale {
	t.Helper()
	s, err := sale.NewSale(uuid.New(), uuid.New(), "F-1001")
	require.NoError(t, err)
	require.NoError(t, s.Queue())
	require.NoError(t, s.StartProcessing())
	return s
}

func TestService_Enqueue(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()
	saleID := uuid.New()

	repo.On("TransitionToQueued", ctx, saleID).Return(true, nil)

	queued, err := svc.Enqueue(ctx, saleID)
	require.NoError(t, err)
	assert.True(t, queued)
	repo.AssertExpectations(t)
}

func TestService_Enqueue_AlreadyQueuedIsBenign(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()
	saleID := uuid.New()

	repo.On("TransitionToQueued", ctx, saleID).Return(false, nil)

	queued, err := svc.Enqueue(ctx, saleID)
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestService_ClaimNextBatch_DefaultsLimit(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	repo.On("ClaimNextBatch", ctx, DefaultClaimBatchSize).Return([]*sale.Sale{}, nil)

	claimed, err := svc.ClaimNextBatch(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, claimed)
	repo.AssertExpectations(t)
}

func TestService_MarkFailed_WithinBudgetRequeues(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	s := newProcessingSale(t)
	repo.On("FindByID", ctx, s.ID).Return(s, nil)
	repo.On("Update", ctx, s).Return(nil)

	err := svc.MarkFailed(ctx, s.ID, "deduction failed")
	require.NoError(t, err)

	assert.Equal(t, sale.StatusQueued, s.Status)
	assert.Equal(t, 1, s.RetryCount)
	require.NotNil(t, s.NextRetryAt)
	repo.AssertExpectations(t)
}

func TestService_MarkFailed_ExhaustedBudgetDeadLetters(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	s := newProcessingSale(t)
	s.RetryCount = s.MaxRetries - 1

	repo.On("FindByID", ctx, s.ID).Return(s, nil)
	repo.On("Update", ctx, s).Return(nil)

	err := svc.MarkFailed(ctx, s.ID, "deduction failed")
	require.NoError(t, err)

	assert.Equal(t, sale.StatusDeadLetter, s.Status)
	assert.Nil(t, s.NextRetryAt)
}

func TestService_Escalate_BypassesRetryBudget(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	s := newProcessingSale(t)
	assert.Equal(t, 0, s.RetryCount)

	repo.On("FindByID", ctx, s.ID).Return(s, nil)
	repo.On("Update", ctx, s).Return(nil)

	err := svc.Escalate(ctx, s.ID, "stock rollback failed")
	require.NoError(t, err)

	assert.Equal(t, sale.StatusDeadLetter, s.Status)
	assert.Equal(t, "stock rollback failed", s.ErrorMessage)
	repo.AssertExpectations(t)
}

func TestService_RecoverStale(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	repo.On("RecoverStale", ctx, mock.MatchedBy(func(cutoff time.Time) bool {
		// With a 10 minute timeout the cutoff sits about 10 minutes ago.
		return time.Since(cutoff) > 9*time.Minute && time.Since(cutoff) < 11*time.Minute
	})).Return(int64(2), nil)

	recovered, err := svc.RecoverStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), recovered)
}

func TestService_GetStats(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()

	repo.On("CountByStatus", ctx, (*uuid.UUID)(nil)).Return(map[sale.Status]int64{
		sale.StatusQueued:     3,
		sale.StatusDeadLetter: 1,
	}, nil)

	stats, err := svc.GetStats(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Queued)
	assert.Equal(t, int64(1), stats.DeadLetter)
	assert.Equal(t, int64(0), stats.Processing)
}

func TestService_MarkFailed_FindError(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewService(repo, zap.NewNop())
	ctx := context.Background()
	saleID := uuid.New()

	repo.On("FindByID", ctx, saleID).Return(nil, errors.New("connection refused"))

	err := svc.MarkFailed(ctx, saleID, "deduction failed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark sale")
}
