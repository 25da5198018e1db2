package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	RoleBusiness = "business"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

func ValidRole(role string) bool {
	switch role {
	case RoleBusiness, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

type UpsertUser struct {
	ExternalUID string
	Email       string
	DisplayName string
	Role        string
}

// EnsureUser upserts the user row for an authenticated identity and returns
// the database id plus the stored role. The role is fixed at first sight;
// later requests cannot change it through this path.
func (r *Repo) EnsureUser(ctx context.Context, u UpsertUser) (string, string, error) {
	if u.ExternalUID == "" {
		return "", "", fmt.Errorf("external_uid required")
	}
	if u.Role == "" || !ValidRole(u.Role) {
		u.Role = RoleBusiness
	}

	const q = `
insert into users (external_uid, email, display_name, role, updated_at)
values ($1, nullif($2,''), nullif($3,''), $4, now())
on conflict (external_uid) do update
set
  email = coalesce(excluded.email, users.email),
  display_name = coalesce(excluded.display_name, users.display_name),
  updated_at = now()
returning id::text, role;
`
	var id, role string
	if err := r.db.QueryRow(ctx, q, u.ExternalUID, u.Email, u.DisplayName, u.Role).Scan(&id, &role); err != nil {
		return "", "", err
	}
	return id, role, nil
}
