// Package org implements organization lifecycle: creation, membership,
// teams, profile and settings updates, and owner-only deletion.
package org

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mscno/forgegate/authz"
	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/pkg/validate"
	"github.com/mscno/forgegate/store"
)

// ErrNotOwner is returned when a non-owner attempts an owner-only operation.
var ErrNotOwner = errors.New("only the organization owner may delete the organization")

// Service wraps the store with organization business rules.
type Service struct {
	store    store.Store
	resolver *authz.Resolver
	logger   *slog.Logger
}

func NewService(s store.Store, resolver *authz.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, resolver: resolver, logger: logger}
}

func newID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}

// CreateOrganization validates the inputs, creates the organization account
// with its defaults and registers the owner as the first member.
func (s *Service) CreateOrganization(ctx context.Context, name, login, ownerID, description string) (*model.Account, error) {
	if err := validate.OrganizationName(name); err != nil {
		return nil, err
	}
	if err := validate.Login(login); err != nil {
		return nil, err
	}

	org := &model.Account{
		ID:          newID(),
		Type:        model.AccountTypeOrganization,
		Login:       login,
		Profile:     model.Profile{Name: name},
		Description: description,
		OwnerID:     ownerID,
		Permissions: model.Permissions{
			Roles: []string{"organization"},
			Abilities: []model.Ability{
				{Action: model.ActionRead, Resource: model.ResourceRepository},
				{Action: model.ActionWrite, Resource: model.ResourceRepository},
			},
		},
		Settings: model.Settings{
			Organization: &model.OrganizationDefaults{
				DefaultMemberRole: model.OrgRoleMember,
				Visibility:        "private",
			},
		},
	}

	if err := s.store.CreateAccount(ctx, org); err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}

	member := &model.Member{OrgID: org.ID, UserID: ownerID, Role: model.OrgRoleOwner}
	if err := s.store.PutMember(ctx, member); err != nil {
		return nil, fmt.Errorf("adding owner membership: %w", err)
	}
	return org, nil
}

// GetOrganization fetches an organization by ID.
func (s *Service) GetOrganization(ctx context.Context, id string) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, err
	}
	if !account.IsOrganization() {
		return nil, store.ErrOrganizationNotFound
	}
	return account, nil
}

// GetOrganizationBySlug fetches an organization by its login slug.
func (s *Service) GetOrganizationBySlug(ctx context.Context, slug string) (*model.Account, error) {
	account, err := s.store.GetAccountByLogin(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, err
	}
	if !account.IsOrganization() {
		return nil, store.ErrOrganizationNotFound
	}
	return account, nil
}

// ListUserOrganizations returns the organizations the user belongs to. The
// store offers equality filters only, no joins, so this lists organization
// accounts and resolves membership one by one. A failed resolution for a
// single organization is logged by the resolver and that organization is
// skipped rather than failing the whole listing.
func (s *Service) ListUserOrganizations(ctx context.Context, userID string) ([]*model.Account, error) {
	orgs, err := s.store.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}

	result := make([]*model.Account, 0)
	for _, org := range orgs {
		if m := s.resolver.ResolveMembership(ctx, org.ID, userID); m.IsMember {
			result = append(result, org)
		}
	}
	return result, nil
}

// AddMember adds a user to the organization. An empty role falls back to the
// organization's default member role.
func (s *Service) AddMember(ctx context.Context, orgID, userID string, role model.OrgRole, invitedBy string) error {
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if role == "" {
		role = model.OrgRoleMember
		if org.Settings.Organization != nil && org.Settings.Organization.DefaultMemberRole != "" {
			role = org.Settings.Organization.DefaultMemberRole
		}
	}
	if !role.Valid() {
		return validate.Errorf("invalid organization role %q", role)
	}
	return s.store.PutMember(ctx, &model.Member{OrgID: orgID, UserID: userID, Role: role, InvitedBy: invitedBy})
}

// UpdateMemberRole changes an existing member's role.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, userID string, role model.OrgRole) error {
	if !role.Valid() {
		return validate.Errorf("invalid organization role %q", role)
	}
	member, err := s.store.GetMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	member.Role = role
	return s.store.PutMember(ctx, member)
}

// RemoveMember removes a user from the organization.
func (s *Service) RemoveMember(ctx context.Context, orgID, userID string) error {
	return s.store.DeleteMember(ctx, orgID, userID)
}

// ListMembers lists the organization's members.
func (s *Service) ListMembers(ctx context.Context, orgID string) ([]*model.Member, error) {
	return s.store.ListMembers(ctx, orgID)
}

// CreateTeam validates and creates a team with default permissions. The slug
// must be unique within the organization.
func (s *Service) CreateTeam(ctx context.Context, orgID, name, slug, description string) (*model.Team, error) {
	if err := validate.TeamName(name); err != nil {
		return nil, err
	}
	if err := validate.TeamSlug(slug); err != nil {
		return nil, err
	}
	if _, err := s.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}

	existing, err := s.store.ListTeams(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	for _, team := range existing {
		if team.Slug == slug {
			return nil, store.ErrTeamExists
		}
	}

	team := &model.Team{
		ID:          newID(),
		OrgID:       orgID,
		Slug:        slug,
		Name:        name,
		Description: description,
		Privacy:     model.TeamPrivacyClosed,
		Permissions: model.DefaultTeamPermissions(),
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}
	return team, nil
}

// UpdateTeam updates a team's name, description and privacy.
func (s *Service) UpdateTeam(ctx context.Context, team *model.Team) error {
	if err := validate.TeamName(team.Name); err != nil {
		return err
	}
	return s.store.UpdateTeam(ctx, team)
}

// DeleteTeam removes a team and its member records.
func (s *Service) DeleteTeam(ctx context.Context, orgID, teamID string) error {
	return s.store.DeleteTeam(ctx, orgID, teamID)
}

// AddTeamMember adds a user to a team.
func (s *Service) AddTeamMember(ctx context.Context, orgID, teamID, userID string, role model.TeamRole, addedBy string) error {
	if role != model.TeamRoleMaintainer && role != model.TeamRoleMember {
		return validate.Errorf("invalid team role %q", role)
	}
	return s.store.PutTeamMember(ctx, orgID, &model.TeamMember{TeamID: teamID, UserID: userID, Role: role, AddedBy: addedBy})
}

// RemoveTeamMember removes a user from a team.
func (s *Service) RemoveTeamMember(ctx context.Context, orgID, teamID, userID string) error {
	return s.store.DeleteTeamMember(ctx, orgID, teamID, userID)
}

// ListTeams lists the organization's teams.
func (s *Service) ListTeams(ctx context.Context, orgID string) ([]*model.Team, error) {
	return s.store.ListTeams(ctx, orgID)
}

// ListTeamMembers lists a team's members.
func (s *Service) ListTeamMembers(ctx context.Context, orgID, teamID string) ([]*model.TeamMember, error) {
	return s.store.ListTeamMembers(ctx, orgID, teamID)
}

// UpdateProfile replaces the organization's profile.
func (s *Service) UpdateProfile(ctx context.Context, orgID string, profile model.Profile) error {
	if err := validate.OrganizationName(profile.Name); err != nil {
		return err
	}
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	org.Profile = profile
	return s.store.UpdateAccount(ctx, org)
}

// UpdateSettings replaces the organization's settings.
func (s *Service) UpdateSettings(ctx context.Context, orgID string, settings model.Settings) error {
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	org.Settings = settings
	return s.store.UpdateAccount(ctx, org)
}

// UpdateComplete updates profile, settings and description in one write.
func (s *Service) UpdateComplete(ctx context.Context, orgID string, profile model.Profile, settings model.Settings, description string) error {
	if err := validate.OrganizationName(profile.Name); err != nil {
		return err
	}
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	org.Profile = profile
	org.Settings = settings
	org.Description = description
	return s.store.UpdateAccount(ctx, org)
}

// DeleteOrganization tears down an organization: members, teams and the
// account record. Only the owner may delete; a denied attempt performs no
// store mutation.
func (s *Service) DeleteOrganization(ctx context.Context, orgID, actorID string) error {
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.OwnerID != actorID {
		return ErrNotOwner
	}

	if err := s.store.DeleteAllMembers(ctx, orgID); err != nil {
		return fmt.Errorf("deleting members: %w", err)
	}
	if err := s.store.DeleteAllTeams(ctx, orgID); err != nil {
		return fmt.Errorf("deleting teams: %w", err)
	}
	if err := s.store.DeleteAccount(ctx, orgID); err != nil {
		return fmt.Errorf("deleting organization record: %w", err)
	}
	s.logger.InfoContext(ctx, "organization deleted", "org_id", orgID, "actor_id", actorID)
	return nil
}
