package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopflow/internal/domain"
	"shopflow/internal/infrastructure/catalog"
	"shopflow/internal/repository/order_repo"
)

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, q domain.Querier, order *domain.Order) error {
	args := m.Called(ctx, q, order)
	if args.Error(0) == nil {
		order.ID = 1
		for i := range order.Items {
			order.Items[i].ID = int64(i + 1)
			order.Items[i].OrderID = 1
		}
	}
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Error(1)
}

func (m *mockOrderRepo) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	args := m.Called(ctx, userID, key)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Error(1)
}

func (m *mockOrderRepo) ListByUserID(ctx context.Context, userID int64) ([]*domain.Order, error) {
	args := m.Called(ctx, userID)
	o, _ := args.Get(0).([]*domain.Order)
	return o, args.Error(1)
}

func (m *mockOrderRepo) ListAll(ctx context.Context) ([]*domain.Order, error) {
	args := m.Called(ctx)
	o, _ := args.Get(0).([]*domain.Order)
	return o, args.Error(1)
}

func (m *mockOrderRepo) LockStatus(ctx context.Context, q domain.Querier, id int64) (domain.OrderStatus, error) {
	args := m.Called(ctx, q, id)
	return args.Get(0).(domain.OrderStatus), args.Error(1)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, q domain.Querier, id int64, status domain.OrderStatus, updatedAt time.Time) error {
	return m.Called(ctx, q, id, status, updatedAt).Error(0)
}

func (m *mockOrderRepo) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[int64]string
	err      error
	calls    int
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int64) (*catalog.ProductInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	price, ok := f.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &catalog.ProductInfo{ID: id, Price: decimal.RequireFromString(price)}, nil
}

func (f *fakeCatalog) setPrice(id int64, price string) {
	f.mu.Lock()
	f.products[id] = price
	f.mu.Unlock()
}

func newTestService(t *testing.T, repo order_repo.OrderRepository, cat catalog.Client, opts Options) (OrderService, sqlmock.Sqlmock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewOrderService(db, repo, cat, opts, nil, zap.NewNop()), sqlMock
}

func TestOrderService_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("prices items from catalog and saves order", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{products: map[int64]string{1: "10.00", 2: "5.00"}}
		svc, sqlMock := newTestService(t, repo, cat, Options{})

		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		repo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)

		resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items: []CreateOrderItemRequest{
				{ProductID: 1, Quantity: 2},
				{ProductID: 2, Quantity: 1},
			},
		}, "")
		require.NoError(t, err)

		assert.Equal(t, int64(1), resp.ID)
		assert.Equal(t, int64(7), resp.UserID)
		assert.Equal(t, "PENDING", resp.Status)
		assert.Equal(t, "25.00", resp.TotalAmount.StringFixed(2))
		require.Len(t, resp.Items, 2)
		assert.Equal(t, int64(1), resp.Items[0].ProductID)
		assert.Equal(t, "10.00", resp.Items[0].UnitPrice.StringFixed(2))
		assert.Equal(t, "20.00", resp.Items[0].Subtotal.StringFixed(2))
		assert.Equal(t, int64(2), resp.Items[1].ProductID)
		assert.Equal(t, "5.00", resp.Items[1].UnitPrice.StringFixed(2))
		assert.Equal(t, "5.00", resp.Items[1].Subtotal.StringFixed(2))
		repo.AssertExpectations(t)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("unknown product aborts without saving", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{products: map[int64]string{1: "10.00"}}
		svc, sqlMock := newTestService(t, repo, cat, Options{})

		_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items:  []CreateOrderItemRequest{{ProductID: 99, Quantity: 1}},
		}, "")
		require.Error(t, err)

		var oce *domain.OrderCreationError
		require.True(t, errors.As(err, &oce))
		assert.Equal(t, int64(99), oce.ProductID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("one missing product among valid ones persists nothing", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{products: map[int64]string{1: "10.00"}}
		svc, sqlMock := newTestService(t, repo, cat, Options{})

		_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items: []CreateOrderItemRequest{
				{ProductID: 1, Quantity: 2},
				{ProductID: 99, Quantity: 1},
			},
		}, "")

		var oce *domain.OrderCreationError
		require.True(t, errors.As(err, &oce))
		assert.Equal(t, int64(99), oce.ProductID)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("catalog outage is reported as upstream unavailable", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{err: errors.New("connection refused")}
		svc, _ := newTestService(t, repo, cat, Options{})

		_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items:  []CreateOrderItemRequest{{ProductID: 1, Quantity: 1}},
		}, "")
		require.Error(t, err)

		var oce *domain.OrderCreationError
		require.True(t, errors.As(err, &oce))
		assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid request never reaches the catalog", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{}
		svc, _ := newTestService(t, repo, cat, Options{})

		_, err := svc.CreateOrder(ctx, &CreateOrderRequest{UserID: 7}, "")
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items:  []CreateOrderItemRequest{{ProductID: 1, Quantity: 0}},
		}, "")
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Zero(t, cat.calls)
	})

	t.Run("repeated idempotency key returns the stored order", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{products: map[int64]string{1: "10.00"}}
		svc, _ := newTestService(t, repo, cat, Options{})

		stored := &domain.Order{
			ID: 42, UserID: 7, Status: domain.OrderStatusPending, TotalAmount: decimal.RequireFromString("10.00"), IdempotencyKey: "abc",
			Items: []domain.OrderItem{{ID: 1, OrderID: 42, ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")}},
		}
		repo.On("GetByIdempotencyKey", mock.Anything, int64(7), "abc").Return(stored, nil)

		resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items:  []CreateOrderItemRequest{{ProductID: 1, Quantity: 1}},
		}, "abc")
		require.NoError(t, err)
		assert.Equal(t, int64(42), resp.ID)
		assert.Zero(t, cat.calls)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("concurrent insert with same key resolves to the winner", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{products: map[int64]string{1: "10.00"}}
		svc, sqlMock := newTestService(t, repo, cat, Options{})

		winner := &domain.Order{
			ID: 43, UserID: 7, Status: domain.OrderStatusPending, IdempotencyKey: "k",
			Items: []domain.OrderItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")}},
		}
		repo.On("GetByIdempotencyKey", mock.Anything, int64(7), "k").Return(nil, domain.ErrOrderNotFound).Once()
		repo.On("GetByIdempotencyKey", mock.Anything, int64(7), "k").Return(winner, nil).Once()
		sqlMock.ExpectBegin()
		sqlMock.ExpectRollback()
		repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(order_repo.ErrDuplicateIdempotencyKey)

		resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items:  []CreateOrderItemRequest{{ProductID: 1, Quantity: 1}},
		}, "k")
		require.NoError(t, err)
		assert.Equal(t, int64(43), resp.ID)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("idempotency keys are scoped to the user", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{products: map[int64]string{1: "10.00"}}
		svc, sqlMock := newTestService(t, repo, cat, Options{})

		repo.On("GetByIdempotencyKey", mock.Anything, int64(8), "k").Return(nil, domain.ErrOrderNotFound)
		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		repo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
			return o.UserID == 8 && o.IdempotencyKey == "k"
		})).Return(nil)

		resp, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 8,
			Items:  []CreateOrderItemRequest{{ProductID: 1, Quantity: 1}},
		}, "k")
		require.NoError(t, err)
		assert.Equal(t, int64(8), resp.UserID)
		assert.Equal(t, 1, cat.calls)
		repo.AssertExpectations(t)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("key reused with different items is a conflict", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{products: map[int64]string{1: "10.00", 2: "5.00"}}
		svc, _ := newTestService(t, repo, cat, Options{})

		stored := &domain.Order{
			ID: 42, UserID: 7, Status: domain.OrderStatusPending, IdempotencyKey: "abc",
			Items: []domain.OrderItem{{ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")}},
		}
		repo.On("GetByIdempotencyKey", mock.Anything, int64(7), "abc").Return(stored, nil)

		_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items:  []CreateOrderItemRequest{{ProductID: 2, Quantity: 3}},
		}, "abc")
		assert.ErrorIs(t, err, domain.ErrIdempotencyKeyReused)
		assert.ErrorIs(t, err, domain.ErrDuplicateEntity)
		assert.Zero(t, cat.calls)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("overlong idempotency key is rejected before any lookup", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{products: map[int64]string{1: "10.00"}}
		svc, _ := newTestService(t, repo, cat, Options{})

		_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items:  []CreateOrderItemRequest{{ProductID: 1, Quantity: 1}},
		}, strings.Repeat("k", MaxIdempotencyKeyLength+1))
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Zero(t, cat.calls)
		repo.AssertNotCalled(t, "GetByIdempotencyKey", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("quantity above the limit is rejected", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{products: map[int64]string{1: "10.00"}}
		svc, _ := newTestService(t, repo, cat, Options{})

		_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items:  []CreateOrderItemRequest{{ProductID: 1, Quantity: domain.MaxItemQuantity + 1}},
		}, "")
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Zero(t, cat.calls)
	})

	t.Run("unit prices stay fixed after the catalog price changes", func(t *testing.T) {
		repo := &mockOrderRepo{}
		cat := &fakeCatalog{products: map[int64]string{1: "10.00", 2: "5.00"}}
		svc, sqlMock := newTestService(t, repo, cat, Options{})

		var saved *domain.Order
		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		repo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Order")).
			Run(func(args mock.Arguments) { saved = args.Get(2).(*domain.Order) }).
			Return(nil)

		created, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			UserID: 7,
			Items: []CreateOrderItemRequest{
				{ProductID: 1, Quantity: 2},
				{ProductID: 2, Quantity: 1},
			},
		}, "")
		require.NoError(t, err)
		require.NotNil(t, saved)
		repo.On("GetByID", mock.Anything, created.ID).Return(saved, nil)

		cat.setPrice(1, "99.00")
		cat.setPrice(2, "1.00")
		callsBefore := cat.calls

		reread, err := svc.GetOrder(ctx, created.ID)
		require.NoError(t, err)
		require.Len(t, reread.Items, 2)
		assert.Equal(t, "10.00", reread.Items[0].UnitPrice.StringFixed(2))
		assert.Equal(t, "5.00", reread.Items[1].UnitPrice.StringFixed(2))
		assert.Equal(t, "25.00", reread.TotalAmount.StringFixed(2))
		assert.Equal(t, callsBefore, cat.calls)
	})
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("any transition is accepted by default", func(t *testing.T) {
		repo := &mockOrderRepo{}
		svc, sqlMock := newTestService(t, repo, &fakeCatalog{}, Options{})

		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		repo.On("LockStatus", mock.Anything, mock.Anything, int64(5)).Return(domain.OrderStatusDelivered, nil)
		repo.On("UpdateStatus", mock.Anything, mock.Anything, int64(5), domain.OrderStatusPending, mock.Anything).Return(nil)
		repo.On("GetByID", mock.Anything, int64(5)).Return(&domain.Order{ID: 5, Status: domain.OrderStatusPending}, nil)

		resp, err := svc.UpdateOrderStatus(ctx, 5, "pending")
		require.NoError(t, err)
		assert.Equal(t, "PENDING", resp.Status)
		repo.AssertExpectations(t)
	})

	t.Run("strict transitions reject going backwards", func(t *testing.T) {
		repo := &mockOrderRepo{}
		svc, sqlMock := newTestService(t, repo, &fakeCatalog{}, Options{TransitionValidator: domain.StrictTransitions})

		sqlMock.ExpectBegin()
		sqlMock.ExpectRollback()
		repo.On("LockStatus", mock.Anything, mock.Anything, int64(5)).Return(domain.OrderStatusDelivered, nil)

		_, err := svc.UpdateOrderStatus(ctx, 5, "PENDING")
		assert.ErrorIs(t, err, domain.ErrValidation)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing order", func(t *testing.T) {
		repo := &mockOrderRepo{}
		svc, sqlMock := newTestService(t, repo, &fakeCatalog{}, Options{})

		sqlMock.ExpectBegin()
		sqlMock.ExpectRollback()
		repo.On("LockStatus", mock.Anything, mock.Anything, int64(9)).Return(domain.OrderStatus(""), domain.ErrOrderNotFound)

		_, err := svc.UpdateOrderStatus(ctx, 9, "SHIPPED")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc, _ := newTestService(t, &mockOrderRepo{}, &fakeCatalog{}, Options{})
		_, err := svc.UpdateOrderStatus(ctx, 5, "LOST")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestOrderService_Queries(t *testing.T) {
	ctx := context.Background()
	repo := &mockOrderRepo{}
	svc, _ := newTestService(t, repo, &fakeCatalog{}, Options{})

	repo.On("GetByID", mock.Anything, int64(3)).Return(nil, domain.ErrOrderNotFound)
	repo.On("ListByUserID", mock.Anything, int64(7)).Return([]*domain.Order{{ID: 1, UserID: 7}, {ID: 2, UserID: 7}}, nil)
	repo.On("ListAll", mock.Anything).Return([]*domain.Order{}, nil)
	repo.On("Delete", mock.Anything, int64(1)).Return(nil)

	_, err := svc.GetOrder(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	byUser, err := svc.GetOrdersByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	all, err := svc.GetAllOrders(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	require.NoError(t, svc.DeleteOrder(ctx, 1))
	repo.AssertExpectations(t)
}
