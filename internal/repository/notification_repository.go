package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-internship-api/internal/models"
)

// NotificationRepository manages user inbox rows.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	const query = `SELECT id, user_id, title, message, link_url, is_read, created_at
FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// CountUnread returns how many unread notifications the user has.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// Create inserts a single notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return insertNotification(ctx, r.db, notification)
}

// MarkRead flags one of the user's notifications as read. Returns
// sql.ErrNoRows when the id does not belong to the user.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireAffected(res)
}

// MarkAllRead flags every unread notification of the user and returns the count.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all rows affected: %w", err)
	}
	return affected, nil
}

// Delete removes one of the user's notifications.
func (r *NotificationRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return requireAffected(res)
}

func insertNotification(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, title, message, link_url, is_read, created_at)
VALUES (:id, :user_id, :title, :message, :link_url, :is_read, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
