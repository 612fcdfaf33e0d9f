package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/mscno/forgegate/pkg/model"
)

func TestBoltStore_AccountCRUD(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "forgegate.db")
	s, err := NewBoltStore(path)
	assert.NoError(t, err)
	defer s.Close()

	alice := &model.Account{ID: "u1", Type: model.AccountTypeUser, Login: "alice"}
	assert.NoError(t, s.CreateAccount(ctx, alice))

	// Duplicate ID and duplicate login both fail
	err = s.CreateAccount(ctx, &model.Account{ID: "u1", Login: "other"})
	assert.True(t, errors.Is(err, ErrAccountExists))
	err = s.CreateAccount(ctx, &model.Account{ID: "u2", Login: "alice"})
	assert.True(t, errors.Is(err, ErrAccountExists))

	got, err := s.GetAccount(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, "alice", got.Login)
	assert.NotZero(t, got.CreatedAt)

	got, err = s.GetAccountByLogin(ctx, "alice")
	assert.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	// Login change moves the index entry
	got.Login = "alice-m"
	assert.NoError(t, s.UpdateAccount(ctx, got))
	_, err = s.GetAccountByLogin(ctx, "alice")
	assert.True(t, errors.Is(err, ErrAccountNotFound))
	got, err = s.GetAccountByLogin(ctx, "alice-m")
	assert.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	// Delete removes the index entry too
	assert.NoError(t, s.DeleteAccount(ctx, "u1"))
	_, err = s.GetAccount(ctx, "u1")
	assert.True(t, errors.Is(err, ErrAccountNotFound))
	_, err = s.GetAccountByLogin(ctx, "alice-m")
	assert.True(t, errors.Is(err, ErrAccountNotFound))
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "forgegate.db")

	s, err := NewBoltStore(path)
	assert.NoError(t, err)
	assert.NoError(t, s.CreateAccount(ctx, &model.Account{ID: "org1", Type: model.AccountTypeOrganization, Login: "acme", OwnerID: "u1"}))
	assert.NoError(t, s.PutMember(ctx, &model.Member{OrgID: "org1", UserID: "u1", Role: model.OrgRoleOwner}))
	assert.NoError(t, s.Close())

	s, err = NewBoltStore(path)
	assert.NoError(t, err)
	defer s.Close()

	org, err := s.GetAccount(ctx, "org1")
	assert.NoError(t, err)
	assert.Equal(t, "u1", org.OwnerID)

	m, err := s.GetMember(ctx, "org1", "u1")
	assert.NoError(t, err)
	assert.Equal(t, model.OrgRoleOwner, m.Role)
}

func TestBoltStore_MembersAndTeams(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "forgegate.db")
	s, err := NewBoltStore(path)
	assert.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.PutMember(ctx, &model.Member{OrgID: "org1", UserID: "u1", Role: model.OrgRoleAdmin}))
	assert.NoError(t, s.PutMember(ctx, &model.Member{OrgID: "org1", UserID: "u2", Role: model.OrgRoleMember}))
	assert.NoError(t, s.PutMember(ctx, &model.Member{OrgID: "org2", UserID: "u1", Role: model.OrgRoleMember}))

	members, err := s.ListMembers(ctx, "org1")
	assert.NoError(t, err)
	assert.Equal(t, 2, len(members))

	assert.NoError(t, s.DeleteAllMembers(ctx, "org1"))
	members, err = s.ListMembers(ctx, "org1")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(members))
	members, err = s.ListMembers(ctx, "org2")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(members))

	team := &model.Team{ID: "t1", OrgID: "org1", Slug: "core", Name: "Core"}
	assert.NoError(t, s.CreateTeam(ctx, team))
	assert.True(t, errors.Is(s.CreateTeam(ctx, team), ErrTeamExists))

	err = s.PutTeamMember(ctx, "org1", &model.TeamMember{TeamID: "ghost", UserID: "u1"})
	assert.True(t, errors.Is(err, ErrTeamNotFound))

	assert.NoError(t, s.PutTeamMember(ctx, "org1", &model.TeamMember{TeamID: "t1", UserID: "u1", Role: model.TeamRoleMaintainer}))

	// DeleteTeam cascades to its members
	assert.NoError(t, s.DeleteTeam(ctx, "org1", "t1"))
	_, err = s.GetTeamMember(ctx, "org1", "t1", "u1")
	assert.True(t, errors.Is(err, ErrTeamMemberNotFound))
}

func TestBoltStore_RepositoryCascade(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "forgegate.db")
	s, err := NewBoltStore(path)
	assert.NoError(t, err)
	defer s.Close()

	repo := &model.Repository{ID: "r1", Name: "web", FullName: "acme/web", OwnerID: "org1"}
	assert.NoError(t, s.CreateRepository(ctx, repo))
	assert.NoError(t, s.PutCollaborator(ctx, &model.Collaborator{RepositoryID: "r1", UserID: "u1", Permission: model.PermissionWrite}))
	assert.NoError(t, s.PutTeamAccess(ctx, &model.TeamAccess{RepositoryID: "r1", TeamID: "t1", Permission: model.PermissionRead}))

	assert.NoError(t, s.DeleteRepository(ctx, "r1"))

	_, err = s.GetRepository(ctx, "r1")
	assert.True(t, errors.Is(err, ErrRepositoryNotFound))
	_, err = s.GetCollaborator(ctx, "r1", "u1")
	assert.True(t, errors.Is(err, ErrCollaboratorNotFound))
	_, err = s.GetTeamAccess(ctx, "r1", "t1")
	assert.True(t, errors.Is(err, ErrTeamAccessNotFound))
}

func TestBoltStore_Tokens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "forgegate.db")
	s, err := NewBoltStore(path)
	assert.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.PutToken(ctx, &model.AccessToken{ID: "tok1", UserID: "u1", SecretHash: []byte("h1")}))
	assert.NoError(t, s.PutToken(ctx, &model.AccessToken{ID: "tok2", UserID: "u2"}))

	tok, err := s.GetToken(ctx, "tok1")
	assert.NoError(t, err)
	assert.Equal(t, "u1", tok.UserID)

	tokens, err := s.ListTokensByUser(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(tokens))

	assert.NoError(t, s.DeleteToken(ctx, "tok1"))
	_, err = s.GetToken(ctx, "tok1")
	assert.True(t, errors.Is(err, ErrTokenNotFound))
}
