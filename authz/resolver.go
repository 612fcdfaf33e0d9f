package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/store"
)

// Resolver computes the membership relationship between an account and an
// organization. Ownership is structural: the organization record's OwnerID
// wins over any stored member record, so an owner needs no member document.
type Resolver struct {
	accounts store.AccountStore
	members  store.MemberStore
	logger   *slog.Logger
}

func NewResolver(accounts store.AccountStore, members store.MemberStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{accounts: accounts, members: members, logger: logger}
}

// ResolveMembership returns the membership of accountID in orgID. Absent
// records mean non-member. Store failures are logged and resolve to
// non-member: a transient error must never leak a permissive result.
func (r *Resolver) ResolveMembership(ctx context.Context, orgID, accountID string) model.Membership {
	org, err := r.accounts.GetAccount(ctx, orgID)
	if err != nil {
		if !errors.Is(err, store.ErrAccountNotFound) {
			r.logStoreError(ctx, "fetch organization", orgID, accountID, err)
		}
		return model.NoMembership
	}
	if !org.IsOrganization() {
		return model.NoMembership
	}

	if org.OwnerID == accountID {
		return model.Membership{IsMember: true, Role: model.OrgRoleOwner, IsOwner: true}
	}

	member, err := r.members.GetMember(ctx, orgID, accountID)
	if err != nil {
		if !errors.Is(err, store.ErrMemberNotFound) {
			r.logStoreError(ctx, "fetch member", orgID, accountID, err)
		}
		return model.NoMembership
	}

	return model.Membership{IsMember: true, Role: member.Role}
}

func (r *Resolver) logStoreError(ctx context.Context, op, orgID, accountID string, err error) {
	r.logger.ErrorContext(ctx, "membership resolution failed",
		"op", op,
		"org_id", orgID,
		"account_id", accountID,
		"severity", "high",
		"category", "authorization",
		"error", err)
}
