package routing

import "context"

// Gate is the read-only fact surface the access resolver depends on.
// Routing and bidding themselves happen in the project workflow; the
// messaging core only consumes these facts.
type Gate interface {
	IsRouted(ctx context.Context, projectID, vendorID string) (bool, error)
	BidStatus(ctx context.Context, projectID, vendorID string) (string, error)
	// Participants returns the union of routed vendors and vendors with a
	// bid for the project, in routed-at / bid order.
	Participants(ctx context.Context, projectID string) ([]string, error)
}

// ChangeKind labels routing/bid events handed to the notification fanout.
type ChangeKind string

const (
	ChangeRouted      ChangeKind = "routed"
	ChangeBidPlaced   ChangeKind = "bid_placed"
	ChangeBidAccepted ChangeKind = "bid_accepted"
	ChangeBidRejected ChangeKind = "bid_rejected"
)

// Change describes a single routing or bid transition.
type Change struct {
	Kind       ChangeKind
	ProjectID  string
	BusinessID string
	VendorID   string
}
