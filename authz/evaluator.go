package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/store"
)

// Evaluator answers "can the current account do action X on resource Y". It
// combines the cached organization membership, the account's static ability
// list, and per-repository collaborator and team-access permission levels.
// Every store failure evaluates to a denial.
type Evaluator struct {
	store    store.Store
	identity Identity
	orgCtx   *OrgContext
	logger   *slog.Logger
}

func NewEvaluator(s store.Store, identity Identity, orgCtx *OrgContext, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{store: s, identity: identity, orgCtx: orgCtx, logger: logger}
}

// Can evaluates an (action, resource) pair against the cached membership
// snapshot. It performs no store I/O: a loading snapshot denies org-scoped
// checks, and callers that need resolution should use CanCtx.
func (e *Evaluator) Can(action model.Action, resource model.Resource) bool {
	account, ok := e.identity.CurrentAccount()
	if !ok {
		return false
	}
	if resource.OrgScoped() {
		snap := e.orgCtx.Snapshot()
		if snap.State != StateResolved {
			return false
		}
		return roleAllows(snap.Membership, action)
	}
	return account.Permissions.HasAbility(action, resource)
}

// CanCtx is the resolving variant of Can: if the snapshot for the current
// organization is still loading, it re-resolves membership before evaluating.
func (e *Evaluator) CanCtx(ctx context.Context, action model.Action, resource model.Resource) bool {
	if resource.OrgScoped() {
		snap := e.orgCtx.Snapshot()
		if snap.OrgID != "" && snap.State != StateResolved {
			if err := e.orgCtx.SetCurrentOrganization(ctx, snap.OrgID); err != nil {
				return false
			}
		}
	}
	return e.Can(action, resource)
}

// roleAllows is the fixed org-scoped role table. Owners may do anything,
// admins everything but delete, members read only. Roles outside the table
// (billing, outside_collaborator) read only.
func roleAllows(m model.Membership, action model.Action) bool {
	if !m.IsMember {
		return false
	}
	if m.IsOwner || m.Role == model.OrgRoleOwner {
		return true
	}
	switch m.Role {
	case model.OrgRoleAdmin:
		return action == model.ActionRead || action == model.ActionWrite || action == model.ActionAdmin
	default:
		return action == model.ActionRead
	}
}

// IsOrganizationOwner reports whether the current account owns the current
// organization.
func (e *Evaluator) IsOrganizationOwner() bool {
	snap := e.orgCtx.Snapshot()
	return snap.State == StateResolved && snap.Membership.IsOwner
}

// IsOrganizationAdmin reports whether the current account is an admin or
// owner of the current organization.
func (e *Evaluator) IsOrganizationAdmin() bool {
	snap := e.orgCtx.Snapshot()
	if snap.State != StateResolved || !snap.Membership.IsMember {
		return false
	}
	return snap.Membership.IsOwner || snap.Membership.Role == model.OrgRoleOwner || snap.Membership.Role == model.OrgRoleAdmin
}

// HasRole reports whether the current account carries the named account-level
// role (not an organization role).
func (e *Evaluator) HasRole(role string) bool {
	account, ok := e.identity.CurrentAccount()
	if !ok {
		return false
	}
	return account.Permissions.HasRole(role)
}

// CanAccessRepository reports read access: the owner, anyone on a public
// repository, or an account with a collaborator record or qualifying
// team-access grant.
func (e *Evaluator) CanAccessRepository(ctx context.Context, repoID string) bool {
	return e.checkRepository(ctx, repoID, model.PermissionRead, true)
}

// CanWriteRepository requires permission level write or above.
func (e *Evaluator) CanWriteRepository(ctx context.Context, repoID string) bool {
	return e.checkRepository(ctx, repoID, model.PermissionWrite, false)
}

// CanManageRepository requires permission level maintain or above.
func (e *Evaluator) CanManageRepository(ctx context.Context, repoID string) bool {
	return e.checkRepository(ctx, repoID, model.PermissionMaintain, false)
}

func (e *Evaluator) checkRepository(ctx context.Context, repoID string, min model.PermissionLevel, publicRead bool) bool {
	account, ok := e.identity.CurrentAccount()
	if !ok {
		return false
	}

	repo, err := e.store.GetRepository(ctx, repoID)
	if err != nil {
		if !errors.Is(err, store.ErrRepositoryNotFound) {
			e.logStoreError(ctx, "fetch repository", repoID, err)
		}
		return false
	}

	if repo.OwnerID == account.ID {
		return true
	}
	if publicRead && !repo.Private {
		return true
	}

	collab, err := e.store.GetCollaborator(ctx, repoID, account.ID)
	if err == nil && collab.Permission.AtLeast(min) {
		return true
	}
	if err != nil && !errors.Is(err, store.ErrCollaboratorNotFound) {
		e.logStoreError(ctx, "fetch collaborator", repoID, err)
		return false
	}

	// Fall through to team grants on organization-owned repositories.
	if repo.OwnerType != model.AccountTypeOrganization {
		return false
	}
	grants, err := e.store.ListTeamAccess(ctx, repoID)
	if err != nil {
		e.logStoreError(ctx, "list team access", repoID, err)
		return false
	}
	for _, grant := range grants {
		if !grant.Permission.AtLeast(min) {
			continue
		}
		_, err := e.store.GetTeamMember(ctx, repo.OwnerID, grant.TeamID, account.ID)
		if err == nil {
			return true
		}
		if !errors.Is(err, store.ErrTeamMemberNotFound) {
			e.logStoreError(ctx, "fetch team member", repoID, err)
			return false
		}
	}
	return false
}

// CanManageTeam reports whether the current account may manage the team:
// organization admins and owners always can, otherwise a maintainer role on
// the specific team is required. Maintainer status is looked up per call,
// never cached; it is too fine-grained for the organization snapshot.
func (e *Evaluator) CanManageTeam(ctx context.Context, teamID string) bool {
	account, ok := e.identity.CurrentAccount()
	if !ok {
		return false
	}
	snap := e.orgCtx.Snapshot()
	if snap.State != StateResolved || snap.OrgID == "" {
		return false
	}
	if snap.Membership.IsOwner || snap.Membership.Role == model.OrgRoleOwner || snap.Membership.Role == model.OrgRoleAdmin {
		return true
	}

	member, err := e.store.GetTeamMember(ctx, snap.OrgID, teamID, account.ID)
	if err != nil {
		if !errors.Is(err, store.ErrTeamMemberNotFound) && !errors.Is(err, store.ErrTeamNotFound) {
			e.logStoreError(ctx, "fetch team member", teamID, err)
		}
		return false
	}
	return member.Role == model.TeamRoleMaintainer
}

func (e *Evaluator) logStoreError(ctx context.Context, op, id string, err error) {
	e.logger.ErrorContext(ctx, "permission check failed",
		"op", op,
		"id", id,
		"severity", "high",
		"category", "authorization",
		"error", err)
}
