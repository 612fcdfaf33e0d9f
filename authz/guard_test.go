package authz

import (
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/store"
)

func newGuards(s store.Store, account *model.Account) *Guards {
	identity := StaticIdentity{Account: account}
	resolver := NewResolver(s, s, testLogger())
	orgCtx := NewOrgContext(resolver, s, identity)
	evaluator := NewEvaluator(s, identity, orgCtx, testLogger())
	return NewGuards(evaluator, orgCtx, identity, testLogger())
}

func TestGuards_UnauthenticatedRedirectsToLogin(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)

	g := newGuards(s, nil)
	d := g.Permission(ctx, OrgByID("org1"), model.ActionRead, model.ResourceOrganization)
	assert.Equal(t, GuardDeniedUnauthenticated, d.State)
	assert.Equal(t, LoginPath, d.Redirect)
	assert.False(t, d.Allowed())
}

func TestGuards_PermissionAllowsAndDenies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)

	g := newGuards(s, &model.Account{ID: "userB", Type: model.AccountTypeUser})
	d := g.Permission(ctx, OrgByID("org1"), model.ActionRead, model.ResourceOrganization)
	assert.True(t, d.Allowed())

	d = g.Permission(ctx, OrgByID("org1"), model.ActionWrite, model.ResourceOrganization)
	assert.Equal(t, GuardDeniedUnauthorized, d.State)
	assert.Equal(t, UnauthorizedPath, d.Redirect)
}

func TestGuards_OrgOwnerAndAdmin(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)

	owner := newGuards(s, &model.Account{ID: "userA", Type: model.AccountTypeUser})
	assert.True(t, owner.OrgOwner(ctx, OrgByID("org1")).Allowed())
	assert.True(t, owner.OrgAdmin(ctx, OrgByID("org1")).Allowed())

	member := newGuards(s, &model.Account{ID: "userB", Type: model.AccountTypeUser})
	assert.Equal(t, GuardDeniedUnauthorized, member.OrgOwner(ctx, OrgByID("org1")).State)
	assert.Equal(t, GuardDeniedUnauthorized, member.OrgAdmin(ctx, OrgByID("org1")).State)
}

func TestGuards_OrgBySlug(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)

	g := newGuards(s, &model.Account{ID: "userA", Type: model.AccountTypeUser})
	assert.True(t, g.OrgOwner(ctx, OrgBySlug("acme")).Allowed())
}

func TestGuards_ContextSetupFailureStillEvaluates(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seedOrg(t, mem)

	// Slug resolution fails, so context setup errors out. The guard still
	// runs the permission check instead of denying outright; the check
	// itself fails closed against the unset context.
	f := &failingStore{Store: mem, failGetByLogin: true}
	g := newGuards(f, &model.Account{ID: "userA", Type: model.AccountTypeUser})
	d := g.Permission(ctx, OrgBySlug("acme"), model.ActionRead, model.ResourceOrganization)
	assert.Equal(t, GuardDeniedUnauthorized, d.State)
}

func TestGuards_RoleGuard(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	g := newGuards(s, &model.Account{
		ID:          "userE",
		Type:        model.AccountTypeUser,
		Permissions: model.Permissions{Roles: []string{"staff"}},
	})
	assert.True(t, g.Role(ctx, "staff").Allowed())
	assert.Equal(t, GuardDeniedUnauthorized, g.Role(ctx, "superuser").State)
}

func TestGuards_RepositoryGuards(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)
	assert.NoError(t, s.CreateRepository(ctx, &model.Repository{
		ID: "r1", Private: true, OwnerID: "org1", OwnerType: model.AccountTypeOrganization,
	}))
	assert.NoError(t, s.PutCollaborator(ctx, &model.Collaborator{RepositoryID: "r1", UserID: "userB", Permission: model.PermissionWrite}))

	g := newGuards(s, &model.Account{ID: "userB", Type: model.AccountTypeUser})
	assert.True(t, g.RepositoryRead(ctx, "r1").Allowed())
	assert.True(t, g.RepositoryWrite(ctx, "r1").Allowed())
	assert.Equal(t, GuardDeniedUnauthorized, g.RepositoryManage(ctx, "r1").State)
}

func TestGuards_TeamManage(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	seedOrg(t, s)
	assert.NoError(t, s.CreateTeam(ctx, &model.Team{ID: "t1", OrgID: "org1", Slug: "core", Name: "Core"}))
	assert.NoError(t, s.PutTeamMember(ctx, "org1", &model.TeamMember{TeamID: "t1", UserID: "userB", Role: model.TeamRoleMaintainer}))

	g := newGuards(s, &model.Account{ID: "userB", Type: model.AccountTypeUser})
	assert.True(t, g.TeamManage(ctx, OrgByID("org1"), "t1").Allowed())

	stranger := newGuards(s, &model.Account{ID: "stranger", Type: model.AccountTypeUser})
	assert.Equal(t, GuardDeniedUnauthorized, stranger.TeamManage(ctx, OrgByID("org1"), "t1").State)
}
