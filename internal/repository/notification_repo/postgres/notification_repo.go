package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"shopflow/internal/domain"
	"shopflow/internal/repository/notification_repo"
)

const notificationColumns = `id, user_id, username, email, message, type, read, COALESCE(dedupe_key, ''), created_at`

type pgNotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewNotificationRepository(db *sql.DB, l *zap.Logger) notification_repo.NotificationRepository {
	return &pgNotificationRepository{db: db, logger: l}
}

func (r *pgNotificationRepository) Create(ctx context.Context, q domain.Querier, n *domain.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (user_id, username, email, message, type, read, dedupe_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING
		RETURNING id`
	err := q.QueryRowContext(ctx, query,
		n.UserID, n.Username, n.Email, n.Message, n.Type, n.Read, nullString(n.DedupeKey), n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug("Notification with this dedupe key already exists", zap.String("dedupe_key", n.DedupeKey))
			return false, nil
		}
		return false, fmt.Errorf("failed to create notification: %w", err)
	}
	return true, nil
}

func (r *pgNotificationRepository) GetByDedupeKey(ctx context.Context, key string) (*domain.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE dedupe_key = $1`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification by dedupe key: %w", err)
	}
	return n, nil
}

func (r *pgNotificationRepository) ListByUserID(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *pgNotificationRepository) ListAll(ctx context.Context) ([]*domain.Notification, error) {
	return r.list(ctx, `SELECT `+notificationColumns+` FROM notifications ORDER BY created_at DESC, id DESC`)
}

func (r *pgNotificationRepository) MarkRead(ctx context.Context, id int64) (*domain.Notification, error) {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 RETURNING ` + notificationColumns
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to mark notification %d as read: %w", id, err)
	}
	return n, nil
}

func (r *pgNotificationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	n := &domain.Notification{}
	if err := row.Scan(&n.ID, &n.UserID, &n.Username, &n.Email, &n.Message, &n.Type, &n.Read, &n.DedupeKey, &n.CreatedAt); err != nil {
		return nil, err
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
