package relay

import (
	"context"
	"fmt"
	"sync"

	"relaybot/internal/storage"
)

type Role int

const (
	RoleUser Role = iota
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	default:
		return "user"
	}
}

// Roles resolves a user's role from the owner id and the admin set.
// Nothing is cached: every call reads the configured override and the store.
type Roles struct {
	store    storage.Store
	override func() int64

	claimMu sync.Mutex
}

// NewRoles builds a resolver. override returns the configured owner id (0 when unset)
// and wins over the persisted one.
func NewRoles(st storage.Store, override func() int64) *Roles {
	if override == nil {
		override = func() int64 { return 0 }
	}
	return &Roles{store: st, override: override}
}

// OwnerID returns the effective owner id.
func (r *Roles) OwnerID(ctx context.Context) (int64, bool, error) {
	if id := r.override(); id != 0 {
		return id, true, nil
	}
	id, ok, err := r.store.GetOwner(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("get owner: %w", err)
	}
	return id, ok, nil
}

func (r *Roles) Resolve(ctx context.Context, userID int64) (Role, error) {
	owner, ok, err := r.OwnerID(ctx)
	if err != nil {
		return RoleUser, err
	}
	if ok && owner == userID {
		return RoleOwner, nil
	}
	admin, err := r.store.IsAdmin(ctx, userID)
	if err != nil {
		return RoleUser, fmt.Errorf("is admin: %w", err)
	}
	if admin {
		return RoleAdmin, nil
	}
	return RoleUser, nil
}

func (r *Roles) IsOwner(ctx context.Context, userID int64) (bool, error) {
	role, err := r.Resolve(ctx, userID)
	return role == RoleOwner, err
}

func (r *Roles) IsAuthorised(ctx context.Context, userID int64) (bool, error) {
	role, err := r.Resolve(ctx, userID)
	return role >= RoleAdmin, err
}

// ClaimOwner makes userID the owner when no owner exists or userID already is
// the owner. Otherwise it returns ErrOwnershipConflict and leaves the store untouched.
// Claims are serialized so two first claims cannot both win.
func (r *Roles) ClaimOwner(ctx context.Context, userID int64) error {
	r.claimMu.Lock()
	defer r.claimMu.Unlock()

	owner, ok, err := r.OwnerID(ctx)
	if err != nil {
		return err
	}
	if ok && owner != userID {
		return ErrOwnershipConflict
	}
	stored, sok, err := r.store.GetOwner(ctx)
	if err != nil {
		return fmt.Errorf("get owner: %w", err)
	}
	if sok && stored == userID {
		return nil
	}
	if err := r.store.SetOwner(ctx, userID); err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	return nil
}
