package authz

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/store"
)

func TestOrgContext_SetAndClear(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)

	identity := StaticIdentity{Account: &model.Account{ID: "userB", Type: model.AccountTypeUser}}
	c := NewOrgContext(NewResolver(s, s, testLogger()), s, identity)

	assert.NoError(t, c.SetCurrentOrganization(ctx, "org1"))
	snap := c.Snapshot()
	assert.Equal(t, "org1", snap.OrgID)
	assert.Equal(t, StateResolved, snap.State)
	assert.True(t, snap.Membership.IsMember)
	assert.Equal(t, model.OrgRoleMember, snap.Membership.Role)

	c.ClearOrganizationContext()
	snap = c.Snapshot()
	assert.Equal(t, "", snap.OrgID)
	assert.Equal(t, StateResolved, snap.State)
	assert.False(t, snap.Membership.IsMember)
}

func TestOrgContext_SetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)

	identity := StaticIdentity{Account: &model.Account{ID: "userB", Type: model.AccountTypeUser}}
	c := NewOrgContext(NewResolver(s, s, testLogger()), s, identity)

	assert.NoError(t, c.SetCurrentOrganization(ctx, "org1"))
	first := c.Snapshot()
	assert.NoError(t, c.SetCurrentOrganization(ctx, "org1"))
	second := c.Snapshot()
	assert.Equal(t, first, second)
}

func TestOrgContext_SetBySlug(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)

	identity := StaticIdentity{Account: &model.Account{ID: "userB", Type: model.AccountTypeUser}}
	c := NewOrgContext(NewResolver(s, s, testLogger()), s, identity)

	assert.NoError(t, c.SetCurrentOrganizationBySlug(ctx, "acme"))
	snap := c.Snapshot()
	assert.Equal(t, "org1", snap.OrgID)
	assert.True(t, snap.Membership.IsMember)

	// Unknown slug and user-account slug both resolve to "no organization".
	err := c.SetCurrentOrganizationBySlug(ctx, "nobody")
	assert.True(t, errors.Is(err, store.ErrOrganizationNotFound))
	err = c.SetCurrentOrganizationBySlug(ctx, "usera")
	assert.True(t, errors.Is(err, store.ErrOrganizationNotFound))
}

func TestOrgContext_AnonymousResolvesToNoMembership(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)

	c := NewOrgContext(NewResolver(s, s, testLogger()), s, StaticIdentity{})
	assert.NoError(t, c.SetCurrentOrganization(ctx, "org1"))
	snap := c.Snapshot()
	assert.Equal(t, StateResolved, snap.State)
	assert.False(t, snap.Membership.IsMember)
}

// blockingMembers delays GetMember until released, to interleave two
// SetCurrentOrganization calls deterministically.
type blockingMembers struct {
	store.Store
	block   chan struct{}
	blockOn string
	once    sync.Once
	started chan struct{}
}

func (b *blockingMembers) GetMember(ctx context.Context, orgID, userID string) (*model.Member, error) {
	if orgID == b.blockOn {
		b.once.Do(func() { close(b.started) })
		<-b.block
	}
	return b.Store.GetMember(ctx, orgID, userID)
}

func TestOrgContext_StaleResolutionDiscarded(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)
	assert.NoError(t, s.CreateAccount(ctx, &model.Account{ID: "org2", Type: model.AccountTypeOrganization, Login: "globex", OwnerID: "someone"}))
	assert.NoError(t, s.PutMember(ctx, &model.Member{OrgID: "org2", UserID: "userB", Role: model.OrgRoleAdmin}))

	b := &blockingMembers{Store: s, block: make(chan struct{}), blockOn: "org1", started: make(chan struct{})}
	identity := StaticIdentity{Account: &model.Account{ID: "userB", Type: model.AccountTypeUser}}
	c := NewOrgContext(NewResolver(b, b, testLogger()), b, identity)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.SetCurrentOrganization(ctx, "org1") // stalls in GetMember
	}()
	<-b.started

	// A newer switch lands while the first resolution is still in flight.
	assert.NoError(t, c.SetCurrentOrganization(ctx, "org2"))
	snap := c.Snapshot()
	assert.Equal(t, "org2", snap.OrgID)
	assert.Equal(t, model.OrgRoleAdmin, snap.Membership.Role)

	// Releasing the stale resolution must not overwrite the newer snapshot.
	close(b.block)
	<-done
	snap = c.Snapshot()
	assert.Equal(t, "org2", snap.OrgID)
	assert.Equal(t, StateResolved, snap.State)
	assert.Equal(t, model.OrgRoleAdmin, snap.Membership.Role)
}
