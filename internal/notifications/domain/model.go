package domain

import (
	"errors"
	"time"
)

// Notification kinds shown by the UI.
const (
	KindInfo    = "info"
	KindSuccess = "success"
	KindWarning = "warning"
	KindError   = "error"
)

// ErrNotFound means the notification does not exist or belongs to another
// user; recipients are the only actors who may mutate their records.
var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
