package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/application/alerting"
	inventoryapp "github.com/possync/backend/internal/application/inventory"
	"github.com/possync/backend/internal/domain/inventory"
	"github.com/possync/backend/internal/domain/shared"
	"github.com/possync/backend/internal/interfaces/http/dto"
)

type fakeItemRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*inventory.InventoryItem
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[uuid.UUID]*inventory.InventoryItem)}
}

func (r *fakeItemRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (r *fakeItemRepo) FindByIDs(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]inventory.InventoryItem, error) {
	return nil, nil
}

func (r *fakeItemRepo) FindBelowMinimum(_ context.Context, tenantID, branchID uuid.UUID) ([]inventory.InventoryItem, error) {
	return nil, nil
}

func (r *fakeItemRepo) Save(_ context.Context, item *inventory.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *item
	r.items[item.ID] = &copied
	return nil
}

func (r *fakeItemRepo) UpdateStockCAS(_ context.Context, itemID uuid.UUID, expectedStock, newStock decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok || !item.CurrentStock.Equal(expectedStock) {
		return shared.ErrConcurrencyConflict
	}
	item.CurrentStock = newStock
	return nil
}

type fakeMovementRepo struct {
	mu        sync.Mutex
	movements []inventory.Movement
}

func (r *fakeMovementRepo) Append(_ context.Context, m *inventory.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *fakeMovementRepo) FindByFilter(_ context.Context, tenantID uuid.UUID, filter inventory.MovementFilter, page shared.Filter) ([]inventory.Movement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.movements, int64(len(r.movements)), nil
}

func (r *fakeMovementRepo) SumInOut(_ context.Context, tenantID uuid.UUID, itemID *uuid.UUID, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.Zero, decimal.Zero, nil
}

func TestInventoryHandler_AdjustStock(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tenantID := uuid.New()
	items := newFakeItemRepo()
	movements := &fakeMovementRepo{}

	item, err := inventory.NewInventoryItem(tenantID, uuid.New(), "Beef", "kg")
	require.NoError(t, err)
	item.CurrentStock = decimal.NewFromInt(20)
	require.NoError(t, items.Save(context.Background(), item))

	log := zap.NewNop()
	stockSvc := inventoryapp.NewStockService(items, movements, log)
	alertSvc := alerting.NewLowStockService(items, log)
	h := NewInventoryHandler(movements, stockSvc, alertSvc, log)

	router := gin.New()
	router.POST("/api/v1/inventory/adjustments", h.AdjustStock)

	post := func(t *testing.T, body map[string]any, tenant string) *httptest.ResponseRecorder {
		t.Helper()
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/adjustments", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		if tenant != "" {
			req.Header.Set(TenantIDHeader, tenant)
		}
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("applies correction and returns the movement", func(t *testing.T) {
		w := post(t, map[string]any{
			"item_id":  item.ID.String(),
			"quantity": "5",
			"notes":    "delivery recount",
		}, tenantID.String())

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, string(inventory.MovementTypeAdjustment), data["MovementType"])

		updated, err := items.FindByID(context.Background(), item.ID)
		require.NoError(t, err)
		assert.True(t, updated.CurrentStock.Equal(decimal.NewFromInt(25)))
		assert.Len(t, movements.movements, 1)
	})

	t.Run("unknown item returns not found", func(t *testing.T) {
		w := post(t, map[string]any{
			"item_id":  uuid.New().String(),
			"quantity": "5",
		}, tenantID.String())

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("correction below zero is rejected", func(t *testing.T) {
		w := post(t, map[string]any{
			"item_id":  item.ID.String(),
			"quantity": "-1000",
		}, tenantID.String())

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("missing tenant header is rejected", func(t *testing.T) {
		w := post(t, map[string]any{
			"item_id":  item.ID.String(),
			"quantity": "5",
		}, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
