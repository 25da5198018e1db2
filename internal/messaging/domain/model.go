package domain

import "time"

// Actor roles as stored on the users row.
const (
	RoleBusiness = "business"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// Actor is the authenticated caller of a messaging operation.
type Actor struct {
	ID   string
	Role string
}

// ThreadKey identifies one conversation: a project plus the vendor whose
// thread it is. An empty VendorID is the admin monitoring view spanning
// every vendor thread of the project.
type ThreadKey struct {
	ProjectID string `json:"project_id"`
	VendorID  string `json:"vendor_id,omitempty"`
}

// Op distinguishes read from write authorization.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// Message is immutable once created. Ordering is (CreatedAt, ID) ascending.
type Message struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	SenderID      string    `json:"sender_id"`
	VendorScopeID string    `json:"vendor_scope_id"`
	Text          string    `json:"text"`
	ImageURL      string    `json:"image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Bid status values supplied by the routing/bid gate.
const (
	BidNoBid     = "no_bid"
	BidSubmitted = "submitted"
	BidAccepted  = "accepted"
	BidRejected  = "rejected"
)
