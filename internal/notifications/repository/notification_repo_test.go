package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerbridge/marketplace-backend/internal/notifications/domain"
)

func setupRepo(t *testing.T) (*NotificationRepo, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewNotificationRepo(db)
	return repo, mock, db
}

func TestNotificationRepo_Create(t *testing.T) {
	repo, mock, db := setupRepo(t)
	defer db.Close()

	t.Run("creates notification and assigns id", func(t *testing.T) {
		n := &domain.Notification{
			UserID:  "user-1",
			Title:   "New message",
			Message: "hello",
		}

		mock.ExpectQuery(`INSERT INTO notifications`).
			WithArgs(
				sqlmock.AnyArg(), // id (UUID)
				"user-1",
				"New message",
				"hello",
				"info",
			).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

		err := repo.Create(n)
		require.NoError(t, err)
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, domain.KindInfo, n.Kind)
		assert.False(t, n.CreatedAt.IsZero())

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("keeps a pre-assigned id so retries stay idempotent", func(t *testing.T) {
		n := &domain.Notification{
			ID:     "existing-uuid",
			UserID: "user-1",
			Title:  "Bid accepted",
			Kind:   domain.KindSuccess,
		}

		mock.ExpectQuery(`INSERT INTO notifications`).
			WithArgs("existing-uuid", "user-1", "Bid accepted", "", "success").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

		err := repo.Create(n)
		require.NoError(t, err)
		assert.Equal(t, "existing-uuid", n.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNotificationRepo_ListForUser(t *testing.T) {
	repo, mock, db := setupRepo(t)
	defer db.Close()

	t.Run("lists unread only", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, user_id, title, message, kind, is_read, created_at`).
			WithArgs("user-1", true).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "user_id", "title", "message", "kind", "is_read", "created_at",
			}).
				AddRow("n-2", "user-1", "New message", "hi again", "info", false, time.Now()).
				AddRow("n-1", "user-1", "New message", "hi", "info", false, time.Now().Add(-time.Minute)))

		items, err := repo.ListForUser("user-1", true)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "n-2", items[0].ID, "newest first")
		assert.False(t, items[0].IsRead)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, user_id, title, message, kind, is_read, created_at`).
			WithArgs("user-2", false).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "user_id", "title", "message", "kind", "is_read", "created_at",
			}))

		items, err := repo.ListForUser("user-2", false)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestNotificationRepo_MarkRead(t *testing.T) {
	repo, mock, db := setupRepo(t)
	defer db.Close()

	t.Run("marks own notification", func(t *testing.T) {
		mock.ExpectExec(`UPDATE notifications SET is_read = true`).
			WithArgs("n-1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.MarkRead("user-1", "n-1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("someone else's notification is not found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE notifications SET is_read = true`).
			WithArgs("n-1", "user-2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkRead("user-2", "n-1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestNotificationRepo_Delete(t *testing.T) {
	repo, mock, db := setupRepo(t)
	defer db.Close()

	t.Run("deletes own notification", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM notifications`).
			WithArgs("n-1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete("user-1", "n-1"))
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM notifications`).
			WithArgs("missing", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete("user-1", "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestNotificationRepo_PurgeRead(t *testing.T) {
	repo, mock, db := setupRepo(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM notifications`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.PurgeRead(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
