//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"shopflow/internal/domain"
	"shopflow/internal/infrastructure/database"
	"shopflow/internal/repository/order_repo"
	"shopflow/migrations"
)

func startOrdersDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("orders_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(migrations.FS, migrations.Orders, dsn, zap.NewNop()))

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOrderRepository_Integration(t *testing.T) {
	db := startOrdersDB(t)
	repo := NewOrderRepository(db, zap.NewNop())
	ctx := context.Background()

	order, err := domain.NewOrder(7, []domain.PricedLine{
		{ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
	}, "key-1")
	require.NoError(t, err)

	require.NoError(t, database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return repo.Create(ctx, tx, order)
	}))
	require.NotZero(t, order.ID)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "25.00", got.TotalAmount.StringFixed(2))
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(1), got.Items[0].ProductID)
	assert.Equal(t, int64(2), got.Items[1].ProductID)

	t.Run("duplicate idempotency key", func(t *testing.T) {
		dup, err := domain.NewOrder(7, []domain.PricedLine{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}, "key-1")
		require.NoError(t, err)
		err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			return repo.Create(ctx, tx, dup)
		})
		assert.ErrorIs(t, err, order_repo.ErrDuplicateIdempotencyKey)

		byKey, err := repo.GetByIdempotencyKey(ctx, 7, "key-1")
		require.NoError(t, err)
		assert.Equal(t, order.ID, byKey.ID)
	})

	t.Run("same key for another user is a separate order", func(t *testing.T) {
		_, err := repo.GetByIdempotencyKey(ctx, 9, "key-1")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)

		other, err := domain.NewOrder(9, []domain.PricedLine{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}, "key-1")
		require.NoError(t, err)
		require.NoError(t, database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			return repo.Create(ctx, tx, other)
		}))
		assert.NotEqual(t, order.ID, other.ID)
	})

	t.Run("failed item insert leaves no order behind", func(t *testing.T) {
		before, err := repo.ListAll(ctx)
		require.NoError(t, err)

		bad, err := domain.NewOrder(8, []domain.PricedLine{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}, "")
		require.NoError(t, err)
		bad.Items[0].Quantity = 0 // violates the quantity check constraint

		err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			return repo.Create(ctx, tx, bad)
		})
		require.Error(t, err)

		after, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	t.Run("delete cascades to items", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, order.ID))
		_, err := repo.GetByID(ctx, order.ID)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)

		var items int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID).Scan(&items))
		assert.Zero(t, items)
		assert.ErrorIs(t, repo.Delete(ctx, order.ID), domain.ErrOrderNotFound)
	})
}
