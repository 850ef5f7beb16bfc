package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/possync/backend/internal/domain/sale"
	"github.com/possync/backend/internal/domain/shared"
)

// newMockSaleRepository creates a GormSaleRepository with a mocked SQL connection
func newMockSaleRepository(t *testing.T) (*GormSaleRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormSaleRepository(gormDB), mock, mockDB
}

func TestGormSaleRepository_FindByID(t *testing.T) {
	t.Run("finds existing sale", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		saleID := uuid.New()
		tenantID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "branch_id", "folio", "status", "retry_count", "max_retries"}).
			AddRow(saleID, tenantID, uuid.New(), "F-1001", "queued", 0, 3)

		mock.ExpectQuery(`SELECT \* FROM "sales" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(saleID, 1).
			WillReturnRows(rows)

		s, err := repo.FindByID(context.Background(), saleID)

		assert.NoError(t, err)
		assert.NotNil(t, s)
		assert.Equal(t, "F-1001", s.Folio)
		assert.Equal(t, sale.StatusQueued, s.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for missing sale", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		saleID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "sales" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(saleID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		s, err := repo.FindByID(context.Background(), saleID)

		assert.Error(t, err)
		assert.Nil(t, s)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSaleRepository_FindByFolio(t *testing.T) {
	t.Run("scopes lookup to tenant and branch", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		saleID := uuid.New()
		tenantID := uuid.New()
		branchID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "branch_id", "folio", "status"}).
			AddRow(saleID, tenantID, branchID, "F-1001", "processed")

		mock.ExpectQuery(`SELECT \* FROM "sales" WHERE tenant_id = \$1 AND branch_id = \$2 AND folio = \$3 ORDER BY created_at DESC,.* LIMIT .*`).
			WithArgs(tenantID, branchID, "F-1001", 1).
			WillReturnRows(rows)

		s, err := repo.FindByFolio(context.Background(), tenantID, branchID, "F-1001")

		assert.NoError(t, err)
		assert.Equal(t, saleID, s.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSaleRepository_TransitionToQueued(t *testing.T) {
	t.Run("queues pending sale", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		saleID := uuid.New()

		mock.ExpectExec(`UPDATE "sales" SET .* WHERE id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		queued, err := repo.TransitionToQueued(context.Background(), saleID)

		assert.NoError(t, err)
		assert.True(t, queued)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports false when sale no longer pending", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		saleID := uuid.New()

		mock.ExpectExec(`UPDATE "sales" SET .* WHERE id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		queued, err := repo.TransitionToQueued(context.Background(), saleID)

		assert.NoError(t, err)
		assert.False(t, queued)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSaleRepository_ClaimNextBatch(t *testing.T) {
	t.Run("claims due sales with skip locked", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		saleID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "branch_id", "folio", "status", "retry_count"}).
			AddRow(saleID, uuid.New(), uuid.New(), "F-1001", "queued", 1)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "sales" WHERE status = \$1 AND \(next_retry_at IS NULL OR next_retry_at <= \$2\) ORDER BY created_at ASC LIMIT .* FOR UPDATE SKIP LOCKED`).
			WillReturnRows(rows)
		mock.ExpectExec(`UPDATE "sales" SET .* WHERE id IN \(\$\d+\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		claimed, err := repo.ClaimNextBatch(context.Background(), 10)

		assert.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, saleID, claimed[0].ID)
		assert.Equal(t, sale.StatusProcessing, claimed[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty queue issues no update", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "sales" WHERE status = \$1 AND \(next_retry_at IS NULL OR next_retry_at <= \$2\) ORDER BY created_at ASC LIMIT .* FOR UPDATE SKIP LOCKED`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectCommit()

		claimed, err := repo.ClaimNextBatch(context.Background(), 10)

		assert.NoError(t, err)
		assert.Empty(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSaleRepository_MarkProcessed(t *testing.T) {
	t.Run("marks processing sale processed", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		saleID := uuid.New()
		orderID := uuid.New()

		mock.ExpectExec(`UPDATE "sales" SET .* WHERE id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkProcessed(context.Background(), saleID, &orderID)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects sale not in processing", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "sales" SET .* WHERE id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkProcessed(context.Background(), uuid.New(), nil)

		assert.Equal(t, shared.ErrInvalidState, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSaleRepository_Update(t *testing.T) {
	t.Run("version mismatch reports conflict", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		s, err := sale.NewSale(uuid.New(), uuid.New(), "F-1001")
		require.NoError(t, err)
		require.NoError(t, s.Queue())

		mock.ExpectExec(`UPDATE "sales" SET .* WHERE \(id = \$\d+ AND version = \$\d+\) AND "id" = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.Update(context.Background(), s)

		assert.Equal(t, shared.ErrConcurrencyConflict, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSaleRepository_RecoverStale(t *testing.T) {
	t.Run("requeues sales stuck in processing or stranded pending", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "sales" SET .* WHERE status IN \(\$\d+,\$\d+\) AND updated_at < \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 2))

		recovered, err := repo.RecoverStale(context.Background(), time.Now().Add(-15*time.Minute))

		assert.NoError(t, err)
		assert.Equal(t, int64(2), recovered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSaleRepository_CountByStatus(t *testing.T) {
	t.Run("aggregates counts per status", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		rows := sqlmock.NewRows([]string{"status", "count"}).
			AddRow("queued", 3).
			AddRow("dead_letter", 1)

		mock.ExpectQuery(`SELECT status, COUNT\(\*\) as count FROM "sales" GROUP BY "status"`).
			WillReturnRows(rows)

		counts, err := repo.CountByStatus(context.Background(), nil)

		assert.NoError(t, err)
		assert.Equal(t, int64(3), counts[sale.StatusQueued])
		assert.Equal(t, int64(1), counts[sale.StatusDeadLetter])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scopes counts to tenant", func(t *testing.T) {
		repo, mock, mockDB := newMockSaleRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT status, COUNT\(\*\) as count FROM "sales" WHERE tenant_id = \$1 GROUP BY "status"`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"status", "count"}))

		counts, err := repo.CountByStatus(context.Background(), &tenantID)

		assert.NoError(t, err)
		assert.Empty(t, counts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
