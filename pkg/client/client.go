// Package client is the HTTP client for the forgegate API, used by the CLI.
package client

import (
	"context"

	"github.com/mscno/forgegate/pkg/model"
)

// Client defines the interface for interacting with the forgegate server.
type Client interface {
	CreateOrganization(ctx context.Context, name, login, description string) (*model.Account, error)
	ListOrganizations(ctx context.Context) ([]*model.Account, error)
	GetOrganization(ctx context.Context, slug string) (*model.Account, error)
	DeleteOrganization(ctx context.Context, slug string) error

	ListMembers(ctx context.Context, slug string) ([]*model.Member, error)
	AddMember(ctx context.Context, slug, userID string, role model.OrgRole) error
	RemoveMember(ctx context.Context, slug, userID string) error

	ListTeams(ctx context.Context, slug string) ([]*model.Team, error)
	CreateTeam(ctx context.Context, orgSlug, name, teamSlug, description string) (*model.Team, error)

	Can(ctx context.Context, orgSlug string, action model.Action, resource model.Resource) (bool, error)
	RepositoryAccess(ctx context.Context, repoID string) (RepositoryAccess, error)

	IssueToken(ctx context.Context, note string) (token, id string, err error)
	RevokeToken(ctx context.Context, tokenID string) error
}

// RepositoryAccess is the answer to a repository permission probe.
type RepositoryAccess struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Manage bool `json:"manage"`
}
