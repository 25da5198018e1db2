package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makerbridge/marketplace-backend/internal/messaging/domain"
)

// ErrBadCursor means the list cursor does not name a stored message.
var ErrBadCursor = errors.New("unknown cursor")

// MessageRepo is the thread store. It validates thread-key shape but does
// not re-derive authorization; callers go through the access resolver
// first. Messages are immutable and ordered by (created_at, id).
type MessageRepo struct {
	db *pgxpool.Pool
}

func NewMessageRepo(db *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a message in the thread named by its project and vendor
// scope. The id and created_at are assigned here.
func (r *MessageRepo) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := validateKey(domain.ThreadKey{ProjectID: msg.ProjectID, VendorID: msg.VendorScopeID}); err != nil {
		return domain.Message{}, err
	}
	if msg.VendorScopeID == "" {
		return domain.Message{}, fmt.Errorf("%w: vendor scope required on write", domain.ErrInvalidMessage)
	}
	if msg.SenderID == "" || msg.Text == "" {
		return domain.Message{}, domain.ErrInvalidMessage
	}

	msg.ID = uuid.New().String()
	msg.CreatedAt = time.Now().UTC()

	const q = `
insert into messages (id, project_id, sender_id, vendor_scope_id, body, image_url, created_at)
values ($1::uuid, $2, $3::uuid, $4::uuid, $5, nullif($6,''), $7)
returning id::text, created_at;
`
	err := r.db.QueryRow(ctx, q,
		msg.ID, msg.ProjectID, msg.SenderID, msg.VendorScopeID, msg.Text, msg.ImageURL, msg.CreatedAt,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// List returns messages for a thread in (created_at, id) ascending order.
// An empty VendorID spans every vendor thread of the project (admin view).
// The cursor is the id of the last message the caller has seen; rows at or
// before it are excluded, so repeated calls never re-return seen messages.
func (r *MessageRepo) List(ctx context.Context, key domain.ThreadKey, cursor string, limit int) ([]domain.Message, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			return nil, ErrBadCursor
		}
	}

	const q = `
select m.id::text, m.project_id, m.sender_id::text, m.vendor_scope_id::text,
       m.body, coalesce(m.image_url, ''), m.created_at
from messages m
where m.project_id = $1
  and ($2 = '' or m.vendor_scope_id = nullif($2,'')::uuid)
  and ($3 = '' or (m.created_at, m.id) > (
        select c.created_at, c.id from messages c where c.id = nullif($3,'')::uuid))
order by m.created_at, m.id
limit $4;
`
	rows, err := r.db.Query(ctx, q, key.ProjectID, key.VendorID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.SenderID, &m.VendorScopeID, &m.Text, &m.ImageURL, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if cursor != "" && len(out) == 0 {
		known, kerr := r.exists(ctx, cursor)
		if kerr != nil {
			return nil, kerr
		}
		if !known {
			return nil, ErrBadCursor
		}
	}
	return out, nil
}

func (r *MessageRepo) exists(ctx context.Context, id string) (bool, error) {
	const q = `select exists(select 1 from messages where id = $1::uuid);`
	var ok bool
	if err := r.db.QueryRow(ctx, q, id).Scan(&ok); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func validateKey(key domain.ThreadKey) error {
	if key.ProjectID == "" {
		return fmt.Errorf("%w: empty project id", domain.ErrInvalidMessage)
	}
	if key.VendorID != "" {
		if _, err := uuid.Parse(key.VendorID); err != nil {
			return fmt.Errorf("%w: malformed vendor scope", domain.ErrInvalidMessage)
		}
	}
	return nil
}
