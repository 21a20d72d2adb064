package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopflow/internal/domain"
)

func TestUserRepository_Create(t *testing.T) {
	u := &domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash", Role: domain.UserRoleUser, Active: true, CreatedAt: time.Now()}

	t.Run("ok", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		require.NoError(t, NewUserRepository(db, zap.NewNop()).Create(context.Background(), db, u))
		assert.Equal(t, int64(42), u.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&pq.Error{Code: "23505"})

		err = NewUserRepository(db, zap.NewNop()).Create(context.Background(), db, u)
		assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
		assert.ErrorIs(t, err, domain.ErrDuplicateEntity)
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"id", "username", "email", "password_hash", "first_name", "last_name", "role", "active", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
		WithArgs("Alice@Example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(42, "alice", "alice@example.com", "hash", "", "", "USER", true, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(cols))

	repo := NewUserRepository(db, zap.NewNop())
	u, err := repo.GetByEmail(context.Background(), "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.UserRoleUser, u.Role)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
