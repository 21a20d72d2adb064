package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopflow/internal/domain"
	"shopflow/internal/idempotency"
)

type fakeNotificationRepo struct {
	mu        sync.Mutex
	rows      []*domain.Notification
	failNext  error
	createCnt int
}

func (r *fakeNotificationRepo) Create(_ context.Context, _ domain.Querier, n *domain.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCnt++
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return false, err
	}
	if n.DedupeKey != "" {
		for _, existing := range r.rows {
			if existing.DedupeKey == n.DedupeKey {
				return false, nil
			}
		}
	}
	n.ID = int64(len(r.rows) + 1)
	r.rows = append(r.rows, n)
	return true, nil
}

func (r *fakeNotificationRepo) GetByDedupeKey(_ context.Context, key string) (*domain.Notification, error) {
	for _, n := range r.rows {
		if n.DedupeKey == key {
			return n, nil
		}
	}
	return nil, domain.ErrNotificationNotFound
}

func (r *fakeNotificationRepo) ListByUserID(_ context.Context, userID int64) ([]*domain.Notification, error) {
	var out []*domain.Notification
	for _, n := range r.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) ListAll(context.Context) ([]*domain.Notification, error) {
	return r.rows, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id int64) (*domain.Notification, error) {
	for _, n := range r.rows {
		if n.ID == id {
			n.Read = true
			return n, nil
		}
	}
	return nil, domain.ErrNotificationNotFound
}

type fakeInbox struct {
	seen map[string]bool
}

func (f *fakeInbox) TryInsert(_ context.Context, _ domain.Querier, msg *domain.InboxMessage) (bool, error) {
	if f.seen[msg.EventID] {
		return false, nil
	}
	f.seen[msg.EventID] = true
	return true, nil
}

// lossyStore drops the first failMarks marks, as if the process died after
// the handler committed.
type lossyStore struct {
	*idempotency.MemoryStore
	failMarks int
}

func (s *lossyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if s.failMarks > 0 {
		s.failMarks--
		return false, errors.New("connection reset")
	}
	return s.MemoryStore.MarkProcessed(ctx, eventID, ttl)
}

type fakeSnapshots struct {
	byID map[int64]domain.ProductSnapshot
}

func (f *fakeSnapshots) Upsert(_ context.Context, _ domain.Querier, s *domain.ProductSnapshot) (bool, error) {
	cur, ok := f.byID[s.ProductID]
	if ok && cur.LastEventAt.After(s.LastEventAt) {
		if cur.Category == "" && s.Category != "" {
			cur.Category = s.Category
			f.byID[s.ProductID] = cur
			return true, nil
		}
		return false, nil
	}
	next := *s
	if ok && next.Category == "" {
		next.Category = cur.Category
	}
	f.byID[s.ProductID] = next
	return true, nil
}

func (f *fakeSnapshots) GetByProductID(_ context.Context, id int64) (*domain.ProductSnapshot, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &s, nil
}

type fixture struct {
	svc       NotificationService
	sqlMock   sqlmock.Sqlmock
	repo      *fakeNotificationRepo
	snapshots *fakeSnapshots
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		sqlMock:   sqlMock,
		repo:      &fakeNotificationRepo{},
		snapshots: &fakeSnapshots{byID: map[int64]domain.ProductSnapshot{}},
	}
	opts.ConsumerGroup = "notification-group"
	f.svc, err = NewNotificationService(db, f.repo, f.snapshots, &fakeInbox{seen: map[string]bool{}}, opts, nil, zap.NewNop())
	require.NoError(t, err)
	return f
}

func (f *fixture) expectTx(n int) {
	for i := 0; i < n; i++ {
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectCommit()
	}
}

var userCreated = domain.UserCreatedEvent{
	ID:        7,
	Username:  "alice",
	Email:     "alice@example.com",
	CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
}

var userCreatedMeta = EventMeta{EventID: "evt-1", EventType: domain.EventTypeUserCreated, Topic: "user-created", Partition: 0, Offset: 12}

func TestHandleUserCreated_Replay(t *testing.T) {
	ctx := context.Background()

	t.Run("inbox policy creates one notification", func(t *testing.T) {
		f := newFixture(t, Options{Policy: DedupeInbox})
		f.expectTx(2)

		require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))

		require.Len(t, f.repo.rows, 1)
		n := f.repo.rows[0]
		assert.Equal(t, domain.NotificationTypeWelcome, n.Type)
		assert.Equal(t, int64(7), n.UserID)
		assert.Contains(t, n.Message, "Welcome alice! Your account has been created successfully on 2024-03-01T10:00:00Z.")
		assert.NoError(t, f.sqlMock.ExpectationsWereMet())
	})

	t.Run("redis policy creates one notification", func(t *testing.T) {
		f := newFixture(t, Options{Policy: DedupeRedis, Store: idempotency.NewMemoryStore()})

		require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		assert.Len(t, f.repo.rows, 1)
	})

	t.Run("none policy creates a duplicate", func(t *testing.T) {
		f := newFixture(t, Options{Policy: DedupeNone})

		require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		assert.Len(t, f.repo.rows, 2)
	})

	t.Run("redis policy handles the event again after a failed handler", func(t *testing.T) {
		store := idempotency.NewMemoryStore()
		f := newFixture(t, Options{Policy: DedupeRedis, Store: store})
		f.repo.failNext = errors.New("db down")

		require.Error(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		seen, err := store.IsProcessed(ctx, userCreatedMeta.EventID)
		require.NoError(t, err)
		assert.False(t, seen)

		require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		assert.Len(t, f.repo.rows, 1)
		assert.Equal(t, 2, f.repo.createCnt)
	})

	t.Run("redis policy keeps one welcome when the mark is lost after the insert", func(t *testing.T) {
		store := &lossyStore{MemoryStore: idempotency.NewMemoryStore(), failMarks: 1}
		f := newFixture(t, Options{Policy: DedupeRedis, Store: store})

		require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		require.Len(t, f.repo.rows, 1)

		// redelivered because the event id never reached the store
		require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		assert.Len(t, f.repo.rows, 1)
		assert.Equal(t, domain.WelcomeDedupeKey(7), f.repo.rows[0].DedupeKey)
		assert.Equal(t, 2, f.repo.createCnt)

		require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		assert.Equal(t, 2, f.repo.createCnt)
	})

	t.Run("inbox policy rolls back when handling fails", func(t *testing.T) {
		f := newFixture(t, Options{Policy: DedupeInbox})
		f.repo.failNext = errors.New("db down")
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectRollback()

		require.Error(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
		assert.Empty(t, f.repo.rows)
		assert.NoError(t, f.sqlMock.ExpectationsWereMet())
	})
}

func TestHandleProductChanged_OutOfOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Policy: DedupeNone})

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := domain.ProductSnapshot{ProductID: 3, Name: "Lamp", Price: decimal.RequireFromString("24.50"), LastEventAt: t0.Add(time.Minute)}
	older := domain.ProductSnapshot{ProductID: 3, Name: "Lamp", Price: decimal.RequireFromString("19.99"), LastEventAt: t0}

	require.NoError(t, f.svc.HandleProductChanged(ctx, EventMeta{EventID: "b"}, newer))
	require.NoError(t, f.svc.HandleProductChanged(ctx, EventMeta{EventID: "a"}, older))

	got, err := f.snapshots.GetByProductID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "24.5", got.Price.String())
}

func TestHandleProductChanged_UpdatedBeforeCreated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Policy: DedupeNone})

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := domain.ProductSnapshot{ProductID: 4, Name: "Lamp v2", Price: decimal.RequireFromString("24.50"), LastEventAt: t0.Add(time.Minute)}
	created := domain.ProductSnapshot{ProductID: 4, Name: "Lamp", Price: decimal.RequireFromString("19.99"), Category: "home", LastEventAt: t0}

	require.NoError(t, f.svc.HandleProductChanged(ctx, EventMeta{EventID: "u"}, updated))
	require.NoError(t, f.svc.HandleProductChanged(ctx, EventMeta{EventID: "c"}, created))

	got, err := f.snapshots.GetByProductID(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "Lamp v2", got.Name)
	assert.Equal(t, "24.5", got.Price.String())
	assert.Equal(t, "home", got.Category)
}

func TestCreateOrderConfirmation(t *testing.T) {
	ctx := context.Background()
	req := &OrderConfirmationRequest{UserID: 7, Username: "alice", Email: "alice@example.com", OrderID: 42, OrderDetails: "Order #42, total 25.00"}

	t.Run("same order confirmed once", func(t *testing.T) {
		f := newFixture(t, Options{Policy: DedupeInbox})

		first, err := f.svc.CreateOrderConfirmation(ctx, req)
		require.NoError(t, err)
		second, err := f.svc.CreateOrderConfirmation(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "ORDER_CONFIRMATION", first.Type)
		assert.Equal(t, "Hello alice! Your order has been confirmed. Order #42, total 25.00", first.Message)
		assert.Len(t, f.repo.rows, 1)
	})

	t.Run("invalid email", func(t *testing.T) {
		f := newFixture(t, Options{Policy: DedupeInbox})
		bad := *req
		bad.Email = "nope"
		_, err := f.svc.CreateOrderConfirmation(ctx, &bad)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestNotificationQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Policy: DedupeNone})

	require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, userCreated))
	other := userCreated
	other.ID = 8
	require.NoError(t, f.svc.HandleUserCreated(ctx, userCreatedMeta, other))

	all, err := f.svc.GetAllNotifications(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.svc.GetNotificationsByUserID(ctx, 8)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	read, err := f.svc.MarkAsRead(ctx, mine[0].ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	_, err = f.svc.MarkAsRead(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewNotificationService_RedisNeedsStore(t *testing.T) {
	_, err := NewNotificationService(nil, nil, nil, nil, Options{Policy: DedupeRedis}, nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewNotificationService(nil, nil, nil, nil, Options{Policy: "bogus"}, nil, zap.NewNop())
	assert.Error(t, err)
}
