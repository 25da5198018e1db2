package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/makerbridge/marketplace-backend/internal/notifications/domain"
)

// NotificationRepo handles PostgreSQL operations for notification records.
type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// Create persists one notification. Each recipient's record is written
// independently; there is no grouping transaction.
func (r *NotificationRepo) Create(n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Kind == "" {
		n.Kind = domain.KindInfo
	}

	query := `
		INSERT INTO notifications (id, user_id, title, message, kind, is_read)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING created_at
	`
	err := r.db.QueryRow(query, n.ID, n.UserID, n.Title, n.Message, n.Kind).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepo) ListForUser(userID string, unreadOnly bool) ([]domain.Notification, error) {
	query := `
		SELECT id, user_id, title, message, kind, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = false OR is_read = false)
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(query, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0, 16)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Kind, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flips is_read for the recipient's own record.
func (r *NotificationRepo) MarkRead(userID, id string) error {
	query := `
		UPDATE notifications SET is_read = true
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.Exec(query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return checkAffected(res)
}

// Delete removes the recipient's own record.
func (r *NotificationRepo) Delete(userID, id string) error {
	query := `
		DELETE FROM notifications
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.Exec(query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return checkAffected(res)
}

// PurgeRead deletes read notifications older than the retention window.
// Run nightly by the job scheduler.
func (r *NotificationRepo) PurgeRead(olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE is_read = true AND created_at < $1
	`
	res, err := r.db.Exec(query, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	return res.RowsAffected()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
