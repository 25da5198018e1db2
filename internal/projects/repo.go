package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makerbridge/marketplace-backend/internal/projects/domain"
)

var ErrNotFound = errors.New("project not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, businessID, title string) (*domain.Project, error) {
	if title == "" {
		return nil, fmt.Errorf("title required")
	}

	for i := 0; i < 5; i++ {
		publicID, err := NewPublicID("prj")
		if err != nil {
			return nil, err
		}

		const q = `
insert into projects (public_id, business_id, title, status)
values ($1, $2::uuid, $3, 'open')
returning public_id, business_id::text, title, status, coalesce(selected_vendor_id::text, ''), created_at, updated_at;
`
		var p domain.Project
		err = r.db.QueryRow(ctx, q, publicID, businessID, title).
			Scan(&p.PublicID, &p.BusinessID, &p.Title, &p.Status, &p.SelectedVendorID, &p.CreatedAt, &p.UpdatedAt)

		if err == nil {
			return &p, nil
		}

		// unique violation on public_id → retry
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to generate unique project id")
}

func (r *Repo) Get(ctx context.Context, publicID string) (*domain.Project, error) {
	const q = `
select public_id, business_id::text, title, status, coalesce(selected_vendor_id::text, ''), created_at, updated_at
from projects
where public_id = $1;
`
	var p domain.Project
	err := r.db.QueryRow(ctx, q, publicID).
		Scan(&p.PublicID, &p.BusinessID, &p.Title, &p.Status, &p.SelectedVendorID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Owner returns the business id owning the project. Used by the access
// resolver, which only needs this single fact.
func (r *Repo) Owner(ctx context.Context, publicID string) (string, error) {
	const q = `select business_id::text from projects where public_id = $1;`
	var owner string
	err := r.db.QueryRow(ctx, q, publicID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return owner, nil
}

func (r *Repo) ListForBusiness(ctx context.Context, businessID string) ([]domain.Project, error) {
	const q = `
select public_id, business_id::text, title, status, coalesce(selected_vendor_id::text, ''), created_at, updated_at
from projects
where business_id = $1::uuid
order by created_at desc;
`
	rows, err := r.db.Query(ctx, q, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjects(rows)
}

// ListRoutedTo returns projects visible to a vendor: routed or bid on.
func (r *Repo) ListRoutedTo(ctx context.Context, vendorID string) ([]domain.Project, error) {
	const q = `
select distinct p.public_id, p.business_id::text, p.title, p.status, coalesce(p.selected_vendor_id::text, ''), p.created_at, p.updated_at
from projects p
left join routing_entries re on re.project_id = p.public_id and re.vendor_id = $1::uuid
left join bids b on b.project_id = p.public_id and b.vendor_id = $1::uuid
where re.vendor_id is not null or b.vendor_id is not null
order by p.created_at desc;
`
	rows, err := r.db.Query(ctx, q, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (r *Repo) ListAll(ctx context.Context) ([]domain.Project, error) {
	const q = `
select public_id, business_id::text, title, status, coalesce(selected_vendor_id::text, ''), created_at, updated_at
from projects
order by created_at desc;
`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProjects(rows)
}

// SelectVendor records the business's pick. Only the owner can select and
// only while the project is open.
func (r *Repo) SelectVendor(ctx context.Context, businessID, publicID, vendorID string) (bool, error) {
	const q = `
update projects
set selected_vendor_id = $3::uuid, status = 'in_progress', updated_at = now()
where public_id = $2 and business_id = $1::uuid and status = 'open';
`
	ct, err := r.db.Exec(ctx, q, businessID, publicID, vendorID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// Cancel marks the project cancelled. Routing entries are deleted by the
// caller via the routing repo so vendors lose baseline visibility.
func (r *Repo) Cancel(ctx context.Context, businessID, publicID string) (bool, error) {
	const q = `
update projects
set status = 'cancelled', updated_at = now()
where public_id = $2 and business_id = $1::uuid and status in ('open', 'in_progress');
`
	ct, err := r.db.Exec(ctx, q, businessID, publicID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func scanProjects(rows pgx.Rows) ([]domain.Project, error) {
	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.PublicID, &p.BusinessID, &p.Title, &p.Status, &p.SelectedVendorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
