// Package store abstracts the document store the permission layer runs
// against. Records live under logical paths (accounts/{id},
// accounts/{orgID}/members/{userID}, repositories/{id}/collaborators/{userID}
// and so on); backends only need get-by-path, set-by-path, equality-filter
// queries and batched deletes. Three implementations ship: in-memory,
// bbolt and Google Cloud Datastore.
package store

import (
	"context"
	"errors"

	"github.com/mscno/forgegate/pkg/model"
)

var (
	ErrAccountExists        = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrTeamExists           = errors.New("team already exists")
	ErrTeamMemberNotFound   = errors.New("team member not found")
	ErrRepositoryExists     = errors.New("repository already exists")
	ErrRepositoryNotFound   = errors.New("repository not found")
	ErrCollaboratorNotFound = errors.New("collaborator not found")
	ErrTeamAccessNotFound   = errors.New("team access not found")
	ErrTokenNotFound        = errors.New("access token not found")
)

// AccountStore persists user and organization accounts in a single
// collection, distinguished by the type tag. Create rejects duplicate IDs
// and logins; Update preserves Type and CreatedAt.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByLogin(ctx context.Context, login string) (*model.Account, error)
	UpdateAccount(ctx context.Context, account *model.Account) error
	DeleteAccount(ctx context.Context, id string) error
	ListOrganizations(ctx context.Context) ([]*model.Account, error)
}

// MemberStore persists organization membership records.
type MemberStore interface {
	PutMember(ctx context.Context, member *model.Member) error
	GetMember(ctx context.Context, orgID, userID string) (*model.Member, error)
	DeleteMember(ctx context.Context, orgID, userID string) error
	ListMembers(ctx context.Context, orgID string) ([]*model.Member, error)
	DeleteAllMembers(ctx context.Context, orgID string) error
}

// TeamStore persists teams and team membership records.
type TeamStore interface {
	CreateTeam(ctx context.Context, team *model.Team) error
	GetTeam(ctx context.Context, orgID, teamID string) (*model.Team, error)
	UpdateTeam(ctx context.Context, team *model.Team) error
	DeleteTeam(ctx context.Context, orgID, teamID string) error
	ListTeams(ctx context.Context, orgID string) ([]*model.Team, error)

	PutTeamMember(ctx context.Context, orgID string, member *model.TeamMember) error
	GetTeamMember(ctx context.Context, orgID, teamID, userID string) (*model.TeamMember, error)
	DeleteTeamMember(ctx context.Context, orgID, teamID, userID string) error
	ListTeamMembers(ctx context.Context, orgID, teamID string) ([]*model.TeamMember, error)

	DeleteAllTeams(ctx context.Context, orgID string) error
}

// RepositoryStore persists repositories, collaborator grants and team
// access grants.
type RepositoryStore interface {
	CreateRepository(ctx context.Context, repo *model.Repository) error
	GetRepository(ctx context.Context, id string) (*model.Repository, error)
	UpdateRepository(ctx context.Context, repo *model.Repository) error
	DeleteRepository(ctx context.Context, id string) error
	ListRepositoriesByOwner(ctx context.Context, ownerID string) ([]*model.Repository, error)

	PutCollaborator(ctx context.Context, collab *model.Collaborator) error
	GetCollaborator(ctx context.Context, repoID, userID string) (*model.Collaborator, error)
	DeleteCollaborator(ctx context.Context, repoID, userID string) error
	ListCollaborators(ctx context.Context, repoID string) ([]*model.Collaborator, error)

	PutTeamAccess(ctx context.Context, access *model.TeamAccess) error
	GetTeamAccess(ctx context.Context, repoID, teamID string) (*model.TeamAccess, error)
	DeleteTeamAccess(ctx context.Context, repoID, teamID string) error
	ListTeamAccess(ctx context.Context, repoID string) ([]*model.TeamAccess, error)
}

// TokenStore persists personal access token records.
type TokenStore interface {
	PutToken(ctx context.Context, token *model.AccessToken) error
	GetToken(ctx context.Context, id string) (*model.AccessToken, error)
	DeleteToken(ctx context.Context, id string) error
	ListTokensByUser(ctx context.Context, userID string) ([]*model.AccessToken, error)
}

// Store is the full document store contract.
type Store interface {
	AccountStore
	MemberStore
	TeamStore
	RepositoryStore
	TokenStore
}
