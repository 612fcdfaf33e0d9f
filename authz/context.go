package authz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/store"
)

// SnapshotState marks whether the cached membership is trustworthy yet.
type SnapshotState string

const (
	// StateLoading means a resolution is in flight; callers must not treat
	// the membership as a denial.
	StateLoading SnapshotState = "loading"
	// StateResolved means the membership reflects the current organization.
	StateResolved SnapshotState = "resolved"
)

// Snapshot is a point-in-time view of the organization context.
type Snapshot struct {
	OrgID      string
	State      SnapshotState
	Membership model.Membership
}

// OrgContext is the single-slot "current organization" cache. Every switch
// triggers a full membership re-resolution before the snapshot is marked
// resolved. A generation counter guards against the completion-order race:
// a resolution that finishes after a newer switch is discarded, never stored.
type OrgContext struct {
	resolver *Resolver
	accounts store.AccountStore
	identity Identity

	mu         sync.Mutex
	generation uint64
	snap       Snapshot
}

func NewOrgContext(resolver *Resolver, accounts store.AccountStore, identity Identity) *OrgContext {
	return &OrgContext{
		resolver: resolver,
		accounts: accounts,
		identity: identity,
		snap:     Snapshot{State: StateResolved},
	}
}

// Snapshot returns the current context view.
func (c *OrgContext) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// SetCurrentOrganization switches the context to orgID and resolves the
// caller's membership in it. Setting the same organization twice yields the
// same membership. The snapshot reads as loading until resolution lands.
func (c *OrgContext) SetCurrentOrganization(ctx context.Context, orgID string) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.snap = Snapshot{OrgID: orgID, State: StateLoading}
	c.mu.Unlock()

	var membership model.Membership
	if account, ok := c.identity.CurrentAccount(); ok {
		membership = c.resolver.ResolveMembership(ctx, orgID, account.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		// A newer switch won; this result is stale.
		return nil
	}
	c.snap = Snapshot{OrgID: orgID, State: StateResolved, Membership: membership}
	return nil
}

// SetCurrentOrganizationBySlug translates a login slug to an organization ID
// and switches the context to it. IDs and slugs are distinct parameters at
// this boundary; nothing is inferred from the string's shape.
func (c *OrgContext) SetCurrentOrganizationBySlug(ctx context.Context, slug string) error {
	account, err := c.accounts.GetAccountByLogin(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return store.ErrOrganizationNotFound
		}
		return fmt.Errorf("resolving organization slug %q: %w", slug, err)
	}
	if !account.IsOrganization() {
		return store.ErrOrganizationNotFound
	}
	return c.SetCurrentOrganization(ctx, account.ID)
}

// ClearOrganizationContext drops the current organization. Any in-flight
// resolution for the previous organization is discarded when it completes.
func (c *OrgContext) ClearOrganizationContext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.snap = Snapshot{State: StateResolved}
}
