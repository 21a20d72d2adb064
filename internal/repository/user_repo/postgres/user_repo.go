package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"shopflow/internal/domain"
	"shopflow/internal/infrastructure/database"
	"shopflow/internal/repository/user_repo"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, role, active, created_at`

type pgUserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewUserRepository(db *sql.DB, l *zap.Logger) user_repo.UserRepository {
	return &pgUserRepository{db: db, logger: l}
}

func (r *pgUserRepository) Create(ctx context.Context, q domain.Querier, u *domain.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, first_name, last_name, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := q.QueryRowContext(ctx, query,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.Active, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrEmailAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	r.logger.Debug("User inserted", zap.Int64("user_id", u.ID))
	return nil
}

func (r *pgUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *pgUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *pgUserRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.Active, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
