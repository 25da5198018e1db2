package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrInvalidTransition means a bid status change violated the
	// monotonic forward rule (rejected is terminal).
	ErrInvalidTransition = errors.New("invalid bid transition")

	// ErrAlreadyRouted means the vendor already has a routing entry.
	ErrAlreadyRouted = errors.New("vendor already routed")

	// ErrBidNotFound means no bid exists for (project, vendor).
	ErrBidNotFound = errors.New("bid not found")
)

// Repo is the postgres-backed routing/bid fact store. It implements Gate
// for the messaging core and carries the write surface used by the
// project workflow.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) IsRouted(ctx context.Context, projectID, vendorID string) (bool, error) {
	const q = `
select exists(
  select 1 from routing_entries
  where project_id = $1 and vendor_id = $2::uuid
);
`
	var routed bool
	if err := r.db.QueryRow(ctx, q, projectID, vendorID).Scan(&routed); err != nil {
		return false, fmt.Errorf("is routed: %w", err)
	}
	return routed, nil
}

func (r *Repo) BidStatus(ctx context.Context, projectID, vendorID string) (string, error) {
	const q = `
select status from bids
where project_id = $1 and vendor_id = $2::uuid;
`
	var status string
	err := r.db.QueryRow(ctx, q, projectID, vendorID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "no_bid", nil
	}
	if err != nil {
		return "", fmt.Errorf("bid status: %w", err)
	}
	return status, nil
}

func (r *Repo) Participants(ctx context.Context, projectID string) ([]string, error) {
	const q = `
select vendor_id::text from (
  select vendor_id, min(at) as first_at from (
    select vendor_id, routed_at as at from routing_entries where project_id = $1
    union all
    select vendor_id, created_at as at from bids where project_id = $1
  ) p
  group by vendor_id
) q
order by first_at, vendor_id;
`
	rows, err := r.db.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// RouteVendor records that a project was made visible to a vendor.
// Entries are immutable once written.
func (r *Repo) RouteVendor(ctx context.Context, projectID, vendorID string) error {
	const q = `
insert into routing_entries (project_id, vendor_id, routed_at)
values ($1, $2::uuid, now());
`
	_, err := r.db.Exec(ctx, q, projectID, vendorID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyRouted
		}
		return fmt.Errorf("route vendor: %w", err)
	}
	return nil
}

// PlaceBid creates the vendor's bid in submitted state. Re-bidding after
// a rejection is not allowed; the existing row wins.
func (r *Repo) PlaceBid(ctx context.Context, projectID, vendorID string) error {
	const q = `
insert into bids (project_id, vendor_id, status)
values ($1, $2::uuid, 'submitted');
`
	_, err := r.db.Exec(ctx, q, projectID, vendorID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrInvalidTransition
		}
		return fmt.Errorf("place bid: %w", err)
	}
	return nil
}

// SetBidStatus moves a submitted bid to accepted or rejected. The guard in
// the where clause enforces the monotonic rule: only submitted bids move.
func (r *Repo) SetBidStatus(ctx context.Context, projectID, vendorID, status string) error {
	if status != "accepted" && status != "rejected" {
		return ErrInvalidTransition
	}

	const q = `
update bids
set status = $3, updated_at = now()
where project_id = $1 and vendor_id = $2::uuid and status = 'submitted';
`
	ct, err := r.db.Exec(ctx, q, projectID, vendorID, status)
	if err != nil {
		return fmt.Errorf("set bid status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		exists, eerr := r.hasBid(ctx, projectID, vendorID)
		if eerr != nil {
			return eerr
		}
		if !exists {
			return ErrBidNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

// ClearProject removes routing entries for a cancelled project. Bids stay
// for the audit trail.
func (r *Repo) ClearProject(ctx context.Context, projectID string) error {
	const q = `delete from routing_entries where project_id = $1;`
	if _, err := r.db.Exec(ctx, q, projectID); err != nil {
		return fmt.Errorf("clear project routing: %w", err)
	}
	return nil
}

func (r *Repo) hasBid(ctx context.Context, projectID, vendorID string) (bool, error) {
	const q = `
select exists(select 1 from bids where project_id = $1 and vendor_id = $2::uuid);
`
	var exists bool
	if err := r.db.QueryRow(ctx, q, projectID, vendorID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
