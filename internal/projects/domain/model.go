package domain

import "time"

// Project statuses. Lifecycle actions live in the project workflow, not
// in the messaging core.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusCancelled  = "cancelled"
	StatusCompleted  = "completed"
)

// Project is a business's brief that vendors are routed to and bid on.
type Project struct {
	PublicID         string    `json:"public_id"`
	BusinessID       string    `json:"business_id"`
	Title            string    `json:"title"`
	Status           string    `json:"status"`
	SelectedVendorID string    `json:"selected_vendor_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
