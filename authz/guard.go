package authz

import (
	"context"
	"log/slog"

	"github.com/mscno/forgegate/pkg/model"
)

// GuardState is the outcome of a guard evaluation.
type GuardState string

const (
	GuardPending               GuardState = "pending"
	GuardAllowed               GuardState = "allowed"
	GuardDeniedUnauthenticated GuardState = "denied-unauthenticated"
	GuardDeniedUnauthorized    GuardState = "denied-unauthorized"
)

// Redirect targets for denied navigations.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Decision is a terminal guard outcome with its redirect target. The zero
// value is pending.
type Decision struct {
	State    GuardState
	Redirect string
}

func (d Decision) Allowed() bool { return d.State == GuardAllowed }

var (
	allowed               = Decision{State: GuardAllowed}
	deniedUnauthenticated = Decision{State: GuardDeniedUnauthenticated, Redirect: LoginPath}
	deniedUnauthorized    = Decision{State: GuardDeniedUnauthorized, Redirect: UnauthorizedPath}
)

// OrgRef names an organization either by ID or by login slug, explicitly.
// The zero value means "leave the current context alone".
type OrgRef struct {
	id   string
	slug string
}

func OrgByID(id string) OrgRef     { return OrgRef{id: id} }
func OrgBySlug(slug string) OrgRef { return OrgRef{slug: slug} }

func (r OrgRef) isZero() bool { return r.id == "" && r.slug == "" }

// Guards runs the navigation state machine: unauthenticated callers are sent
// to /login, authorized callers pass, everyone else is sent to /unauthorized.
// Organization context is established from the route's OrgRef before the
// permission check. A context-setup failure does not deny by itself; the
// permission check that follows still fails closed.
type Guards struct {
	evaluator *Evaluator
	orgCtx    *OrgContext
	identity  Identity
	logger    *slog.Logger
}

func NewGuards(evaluator *Evaluator, orgCtx *OrgContext, identity Identity, logger *slog.Logger) *Guards {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guards{evaluator: evaluator, orgCtx: orgCtx, identity: identity, logger: logger}
}

func (g *Guards) check(ctx context.Context, org OrgRef, allow func(ctx context.Context) bool) Decision {
	if _, ok := g.identity.CurrentAccount(); !ok {
		return deniedUnauthenticated
	}
	if !org.isZero() {
		var err error
		if org.slug != "" {
			err = g.orgCtx.SetCurrentOrganizationBySlug(ctx, org.slug)
		} else {
			err = g.orgCtx.SetCurrentOrganization(ctx, org.id)
		}
		if err != nil {
			// Transient store errors must not block navigation outright;
			// the permission check below still decides.
			g.logger.WarnContext(ctx, "organization context setup failed",
				"org_id", org.id, "org_slug", org.slug, "error", err)
		}
	}
	if allow(ctx) {
		return allowed
	}
	return deniedUnauthorized
}

// Permission guards a route requiring can(action, resource).
func (g *Guards) Permission(ctx context.Context, org OrgRef, action model.Action, resource model.Resource) Decision {
	return g.check(ctx, org, func(ctx context.Context) bool {
		return g.evaluator.CanCtx(ctx, action, resource)
	})
}

// OrgOwner guards owner-only routes.
func (g *Guards) OrgOwner(ctx context.Context, org OrgRef) Decision {
	return g.check(ctx, org, func(context.Context) bool {
		return g.evaluator.IsOrganizationOwner()
	})
}

// OrgAdmin guards admin-or-owner routes.
func (g *Guards) OrgAdmin(ctx context.Context, org OrgRef) Decision {
	return g.check(ctx, org, func(context.Context) bool {
		return g.evaluator.IsOrganizationAdmin()
	})
}

// Role guards routes requiring an account-level role.
func (g *Guards) Role(ctx context.Context, role string) Decision {
	return g.check(ctx, OrgRef{}, func(context.Context) bool {
		return g.evaluator.HasRole(role)
	})
}

// RepositoryRead guards repository read routes.
func (g *Guards) RepositoryRead(ctx context.Context, repoID string) Decision {
	return g.check(ctx, OrgRef{}, func(ctx context.Context) bool {
		return g.evaluator.CanAccessRepository(ctx, repoID)
	})
}

// RepositoryWrite guards repository write routes.
func (g *Guards) RepositoryWrite(ctx context.Context, repoID string) Decision {
	return g.check(ctx, OrgRef{}, func(ctx context.Context) bool {
		return g.evaluator.CanWriteRepository(ctx, repoID)
	})
}

// RepositoryManage guards repository settings routes.
func (g *Guards) RepositoryManage(ctx context.Context, repoID string) Decision {
	return g.check(ctx, OrgRef{}, func(ctx context.Context) bool {
		return g.evaluator.CanManageRepository(ctx, repoID)
	})
}

// TeamManage guards team management routes.
func (g *Guards) TeamManage(ctx context.Context, org OrgRef, teamID string) Decision {
	return g.check(ctx, org, func(ctx context.Context) bool {
		return g.evaluator.CanManageTeam(ctx, teamID)
	})
}
