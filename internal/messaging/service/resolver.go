package service

import (
	"context"
	"fmt"

	"github.com/makerbridge/marketplace-backend/internal/messaging/domain"
)

// ProjectDirectory is the single project fact the resolver needs.
type ProjectDirectory interface {
	Owner(ctx context.Context, projectID string) (string, error)
}

// Gate supplies routing/bid facts. Satisfied by routing.Repo.
type Gate interface {
	IsRouted(ctx context.Context, projectID, vendorID string) (bool, error)
	BidStatus(ctx context.Context, projectID, vendorID string) (string, error)
	Participants(ctx context.Context, projectID string) ([]string, error)
}

// Resolver decides which threads an actor may read or write. It is a pure
// predicate over the project directory and the routing/bid gate; it never
// mutates anything.
type Resolver struct {
	projects ProjectDirectory
	gate     Gate
}

func NewResolver(projects ProjectDirectory, gate Gate) *Resolver {
	return &Resolver{projects: projects, gate: gate}
}

// Authorize resolves the thread key the actor may use for the operation.
// Rules are evaluated in order, first match wins:
//
//  1. admin: allowed, scope is whatever was asked for (empty scope spans
//     the whole project).
//  2. business owner: allowed, but the vendor scope must be explicit when
//     more than one vendor participates; with exactly one participant the
//     scope snaps to it.
//  3. vendor: allowed only if routed or bidding; scope forced to own id.
//  4. anyone else: denied.
func (r *Resolver) Authorize(ctx context.Context, actor domain.Actor, projectID, vendorScope string, op domain.Op) (domain.ThreadKey, error) {
	owner, err := r.projects.Owner(ctx, projectID)
	if err != nil {
		return domain.ThreadKey{}, err
	}

	if actor.Role == domain.RoleAdmin {
		// Writes always land in one vendor thread; only reads may span
		// the whole project.
		if op == domain.OpWrite && vendorScope == "" {
			return domain.ThreadKey{}, domain.ErrAmbiguousScope
		}
		return domain.ThreadKey{ProjectID: projectID, VendorID: vendorScope}, nil
	}

	if actor.Role == domain.RoleBusiness && actor.ID == owner {
		return r.resolveBusinessScope(ctx, projectID, vendorScope)
	}

	if actor.Role == domain.RoleVendor {
		ok, err := r.vendorParticipates(ctx, projectID, actor.ID)
		if err != nil {
			return domain.ThreadKey{}, err
		}
		if !ok {
			return domain.ThreadKey{}, domain.ErrNotAuthorized
		}
		// Scope is forced to the vendor's own thread regardless of any
		// vendor-scope parameter supplied.
		return domain.ThreadKey{ProjectID: projectID, VendorID: actor.ID}, nil
	}

	return domain.ThreadKey{}, domain.ErrNotAuthorized
}

// VisibleThreads lists every thread key the actor may read for a project.
func (r *Resolver) VisibleThreads(ctx context.Context, actor domain.Actor, projectID string) ([]domain.ThreadKey, error) {
	owner, err := r.projects.Owner(ctx, projectID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.Role == domain.RoleAdmin, actor.Role == domain.RoleBusiness && actor.ID == owner:
		vendors, err := r.gate.Participants(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		keys := make([]domain.ThreadKey, 0, len(vendors))
		for _, v := range vendors {
			keys = append(keys, domain.ThreadKey{ProjectID: projectID, VendorID: v})
		}
		return keys, nil

	case actor.Role == domain.RoleVendor:
		ok, err := r.vendorParticipates(ctx, projectID, actor.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrNotAuthorized
		}
		return []domain.ThreadKey{{ProjectID: projectID, VendorID: actor.ID}}, nil
	}

	return nil, domain.ErrNotAuthorized
}

func (r *Resolver) resolveBusinessScope(ctx context.Context, projectID, vendorScope string) (domain.ThreadKey, error) {
	vendors, err := r.gate.Participants(ctx, projectID)
	if err != nil {
		return domain.ThreadKey{}, fmt.Errorf("list participants: %w", err)
	}

	if vendorScope != "" {
		for _, v := range vendors {
			if v == vendorScope {
				return domain.ThreadKey{ProjectID: projectID, VendorID: vendorScope}, nil
			}
		}
		return domain.ThreadKey{}, domain.ErrNotFound
	}

	switch len(vendors) {
	case 0:
		return domain.ThreadKey{}, domain.ErrNotFound
	case 1:
		return domain.ThreadKey{ProjectID: projectID, VendorID: vendors[0]}, nil
	default:
		// Promoted to an explicit error rather than guessing a thread.
		return domain.ThreadKey{}, domain.ErrAmbiguousScope
	}
}

func (r *Resolver) vendorParticipates(ctx context.Context, projectID, vendorID string) (bool, error) {
	routed, err := r.gate.IsRouted(ctx, projectID, vendorID)
	if err != nil {
		return false, fmt.Errorf("is routed: %w", err)
	}
	if routed {
		return true, nil
	}

	status, err := r.gate.BidStatus(ctx, projectID, vendorID)
	if err != nil {
		return false, fmt.Errorf("bid status: %w", err)
	}
	return status != domain.BidNoBid, nil
}
