package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/mapping"
	"github.com/possync/backend/internal/domain/menu"
	"github.com/possync/backend/internal/domain/shared"
)

// MockMappingRepository is a mock implementation of mapping.Repository
type MockMappingRepository struct {
	mock.Mock
}

func (m *MockMappingRepository) FindByCode(ctx context.Context, tenantID, branchID uuid.UUID, productCode string) (*mapping.ProductMapping, error) {
	args := m.Called(ctx, tenantID, branchID, productCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mapping.ProductMapping), args.Error(1)
}

func (m *MockMappingRepository) FindUnmapped(ctx context.Context, tenantID, branchID uuid.UUID) ([]mapping.ProductMapping, error) {
	args := m.Called(ctx, tenantID, branchID)
	return args.Get(0).([]mapping.ProductMapping), args.Error(1)
}

func (m *MockMappingRepository) Save(ctx context.Context, pm *mapping.ProductMapping) error {
	args := m.Called(ctx, pm)
	return args.Error(0)
}

// MockMenuItemRepository is a mock implementation of menu.MenuItemRepository
type MockMenuItemRepository struct {
	mock.Mock
}

func (m *MockMenuItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*menu.MenuItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*menu.MenuItem), args.Error(1)
}

func (m *MockMenuItemRepository) FindActiveByExactName(ctx context.Context, tenantID, branchID uuid.UUID, name string) (*menu.MenuItem, error) {
	args := m.Called(ctx, tenantID, branchID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*menu.MenuItem), args.Error(1)
}

func (m *MockMenuItemRepository) FindActiveByNameContains(ctx context.Context, tenantID, branchID uuid.UUID, fragment string) (*menu.MenuItem, error) {
	args := m.Called(ctx, tenantID, branchID, fragment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*menu.MenuItem), args.Error(1)
}

func (m *MockMenuItemRepository) Save(ctx context.Context, item *menu.MenuItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

type mapperFixture struct {
	service   *MapperService
	mappings  *MockMappingRepository
	menuItems *MockMenuItemRepository
	scope     Scope
}

func newMapperFixture(t *testing.T) *mapperFixture {
	t.Helper()
	f := &mapperFixture{
		mappings:  new(MockMappingRepository),
		menuItems: new(MockMenuItemRepository),
		scope:     Scope{TenantID: uuid.New(), BranchID: uuid.New()},
	}
	f.service = NewMapperService(f.mappings, f.menuItems, zap.NewNop())
	return f
}

func TestMapperService_ExistingMapping(t *testing.T) {
	f := newMapperFixture(t)
	ctx := context.Background()
	menuItemID := uuid.New()

	existing, err := mapping.NewMapping(f.scope.TenantID, f.scope.BranchID, "TACO-01", "Birria Taco", menuItemID, mapping.ConfidenceManual)
	require.NoError(t, err)
	sold := existing.TimesSold

	f.mappings.On("FindByCode", ctx, f.scope.TenantID, f.scope.BranchID, "TACO-01").Return(existing, nil)
	f.mappings.On("Save", ctx, existing).Return(nil)

	got, err := f.service.FindOrCreateMapping(ctx, f.scope, "TACO-01", "Birria Taco")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, menuItemID, *got)
	assert.Equal(t, sold+1, existing.TimesSold)
	f.menuItems.AssertNotCalled(t, "FindActiveByExactName", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.mappings.AssertExpectations(t)
}

func TestMapperService_ExactNameMatchIsHighConfidence(t *testing.T) {
	f := newMapperFixture(t)
	ctx := context.Background()

	item, err := menu.NewMenuItem(f.scope.TenantID, f.scope.BranchID, "Birria Taco")
	require.NoError(t, err)

	f.mappings.On("FindByCode", ctx, f.scope.TenantID, f.scope.BranchID, "TACO-01").Return(nil, shared.ErrNotFound)
	f.menuItems.On("FindActiveByExactName", ctx, f.scope.TenantID, f.scope.BranchID, "Birria Taco").Return(item, nil)
	f.mappings.On("Save", ctx, mock.MatchedBy(func(pm *mapping.ProductMapping) bool {
		return pm.ProductCode == "TACO-01" &&
			pm.Confidence == mapping.ConfidenceHigh &&
			pm.IsMapped() &&
			pm.MenuItemID != nil && *pm.MenuItemID == item.ID
	})).Return(nil)

	got, err := f.service.FindOrCreateMapping(ctx, f.scope, "TACO-01", "Birria Taco")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, item.ID, *got)
	f.mappings.AssertExpectations(t)
	f.menuItems.AssertExpectations(t)
}

func TestMapperService_SubstringMatchIsMediumConfidence(t *testing.T) {
	f := newMapperFixture(t)
	ctx := context.Background()

	item, err := menu.NewMenuItem(f.scope.TenantID, f.scope.BranchID, "Birria Taco Plate")
	require.NoError(t, err)

	f.mappings.On("FindByCode", ctx, f.scope.TenantID, f.scope.BranchID, "TACO-01").Return(nil, shared.ErrNotFound)
	f.menuItems.On("FindActiveByExactName", ctx, f.scope.TenantID, f.scope.BranchID, "Birria Taco").Return(nil, shared.ErrNotFound)
	f.menuItems.On("FindActiveByNameContains", ctx, f.scope.TenantID, f.scope.BranchID, "Birria Taco").Return(item, nil)
	f.mappings.On("Save", ctx, mock.MatchedBy(func(pm *mapping.ProductMapping) bool {
		return pm.Confidence == mapping.ConfidenceMedium && pm.IsMapped()
	})).Return(nil)

	got, err := f.service.FindOrCreateMapping(ctx, f.scope, "TACO-01", "Birria Taco")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, item.ID, *got)
	f.mappings.AssertExpectations(t)
	f.menuItems.AssertExpectations(t)
}

func TestMapperService_NoMatchRegistersUnmapped(t *testing.T) {
	f := newMapperFixture(t)
	ctx := context.Background()

	f.mappings.On("FindByCode", ctx, f.scope.TenantID, f.scope.BranchID, "MYSTERY-99").Return(nil, shared.ErrNotFound)
	f.menuItems.On("FindActiveByExactName", ctx, f.scope.TenantID, f.scope.BranchID, "Unknown Combo").Return(nil, shared.ErrNotFound)
	f.menuItems.On("FindActiveByNameContains", ctx, f.scope.TenantID, f.scope.BranchID, "Unknown Combo").Return(nil, shared.ErrNotFound)
	f.mappings.On("Save", ctx, mock.MatchedBy(func(pm *mapping.ProductMapping) bool {
		return pm.ProductCode == "MYSTERY-99" &&
			!pm.IsMapped() &&
			pm.MenuItemID == nil &&
			pm.TimesSold == 1
	})).Return(nil)

	got, err := f.service.FindOrCreateMapping(ctx, f.scope, "MYSTERY-99", "Unknown Combo")
	require.NoError(t, err)

	assert.Nil(t, got)
	f.mappings.AssertExpectations(t)
	f.menuItems.AssertExpectations(t)
}

func TestMapperService_EmptyNameSkipsMatching(t *testing.T) {
	f := newMapperFixture(t)
	ctx := context.Background()

	f.mappings.On("FindByCode", ctx, f.scope.TenantID, f.scope.BranchID, "RAW-7").Return(nil, shared.ErrNotFound)
	f.mappings.On("Save", ctx, mock.MatchedBy(func(pm *mapping.ProductMapping) bool {
		return !pm.IsMapped()
	})).Return(nil)

	got, err := f.service.FindOrCreateMapping(ctx, f.scope, "RAW-7", "")
	require.NoError(t, err)

	assert.Nil(t, got)
	f.menuItems.AssertNotCalled(t, "FindActiveByExactName", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.mappings.AssertExpectations(t)
}

func TestMapperService_ReuseUnmappedEntryOnLaterMatch(t *testing.T) {
	f := newMapperFixture(t)
	ctx := context.Background()

	entry, err := mapping.NewUnmapped(f.scope.TenantID, f.scope.BranchID, "TACO-01", "Birria Taco")
	require.NoError(t, err)

	item, err := menu.NewMenuItem(f.scope.TenantID, f.scope.BranchID, "Birria Taco")
	require.NoError(t, err)

	f.mappings.On("FindByCode", ctx, f.scope.TenantID, f.scope.BranchID, "TACO-01").Return(entry, nil)
	f.menuItems.On("FindActiveByExactName", ctx, f.scope.TenantID, f.scope.BranchID, "Birria Taco").Return(item, nil)
	f.mappings.On("Save", ctx, entry).Return(nil)

	got, err := f.service.FindOrCreateMapping(ctx, f.scope, "TACO-01", "Birria Taco")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, item.ID, *got)
	assert.True(t, entry.IsMapped())
	f.mappings.AssertExpectations(t)
}

func TestMapperService_LookupErrorPropagates(t *testing.T) {
	f := newMapperFixture(t)
	ctx := context.Background()

	f.mappings.On("FindByCode", ctx, f.scope.TenantID, f.scope.BranchID, "TACO-01").
		Return(nil, errors.New("connection refused"))

	got, err := f.service.FindOrCreateMapping(ctx, f.scope, "TACO-01", "Birria Taco")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "lookup mapping")
}
