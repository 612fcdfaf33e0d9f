package store

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/datastore"

	"github.com/mscno/forgegate/pkg/model"
)

const (
	accountKind    = "Account"
	memberKind     = "Member"
	teamKind       = "Team"
	teamMemberKind = "TeamMember"
	repositoryKind = "Repository"
	collabKind     = "Collaborator"
	teamAccessKind = "TeamAccess"
	tokenKind      = "AccessToken"
)

// DataStore implements Store against Google Cloud Datastore. Sub-collection
// records carry their parent IDs as indexed fields so list operations run as
// equality-filter queries.
type DataStore struct {
	client *datastore.Client
}

func NewDataStore(ctx context.Context, client *datastore.Client) *DataStore {
	return &DataStore{client: client}
}

// Close closes the underlying datastore client.
func (s *DataStore) Close() error {
	return s.client.Close()
}

func (s *DataStore) accountKey(id string) *datastore.Key {
	return datastore.NameKey(accountKind, id, nil)
}

func (s *DataStore) memberKey(orgID, userID string) *datastore.Key {
	return datastore.NameKey(memberKind, pathKey(orgID, userID), s.accountKey(orgID))
}

func (s *DataStore) teamKey(orgID, teamID string) *datastore.Key {
	return datastore.NameKey(teamKind, pathKey(orgID, teamID), s.accountKey(orgID))
}

func (s *DataStore) teamMemberKey(orgID, teamID, userID string) *datastore.Key {
	return datastore.NameKey(teamMemberKind, pathKey(orgID, teamID, userID), s.teamKey(orgID, teamID))
}

func (s *DataStore) repositoryKey(id string) *datastore.Key {
	return datastore.NameKey(repositoryKind, id, nil)
}

func (s *DataStore) collaboratorKey(repoID, userID string) *datastore.Key {
	return datastore.NameKey(collabKind, pathKey(repoID, userID), s.repositoryKey(repoID))
}

func (s *DataStore) teamAccessKey(repoID, teamID string) *datastore.Key {
	return datastore.NameKey(teamAccessKind, pathKey(repoID, teamID), s.repositoryKey(repoID))
}

func (s *DataStore) tokenKey(id string) *datastore.Key {
	return datastore.NameKey(tokenKind, id, nil)
}

func (s *DataStore) CreateAccount(ctx context.Context, account *model.Account) error {
	key := s.accountKey(account.ID)
	var existing model.Account
	err := s.client.Get(ctx, key, &existing)
	if err == nil {
		return ErrAccountExists
	}
	if !errors.Is(err, datastore.ErrNoSuchEntity) {
		return err
	}

	// Logins are unique across the collection.
	query := datastore.NewQuery(accountKind).FilterField("Login", "=", account.Login).KeysOnly().Limit(1)
	keys, err := s.client.GetAll(ctx, query, nil)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		return ErrAccountExists
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	_, err = s.client.Put(ctx, key, account)
	return err
}

func (s *DataStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := s.client.Get(ctx, s.accountKey(id), &account)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *DataStore) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	var accounts []model.Account
	query := datastore.NewQuery(accountKind).FilterField("Login", "=", login).Limit(1)
	_, err := s.client.GetAll(ctx, query, &accounts)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrAccountNotFound
	}
	return &accounts[0], nil
}

func (s *DataStore) UpdateAccount(ctx context.Context, account *model.Account) error {
	key := s.accountKey(account.ID)
	tx, err := s.client.NewTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing model.Account
	err = tx.Get(key, &existing)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}

	account.Type = existing.Type
	account.OwnerID = existing.OwnerID
	account.CreatedAt = existing.CreatedAt
	account.UpdatedAt = time.Now()
	if _, err := tx.Put(key, account); err != nil {
		return err
	}
	_, err = tx.Commit()
	return err
}

func (s *DataStore) DeleteAccount(ctx context.Context, id string) error {
	err := s.client.Delete(ctx, s.accountKey(id))
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil
	}
	return err
}

func (s *DataStore) ListOrganizations(ctx context.Context) ([]*model.Account, error) {
	var accounts []*model.Account
	query := datastore.NewQuery(accountKind).FilterField("Type", "=", string(model.AccountTypeOrganization))
	_, err := s.client.GetAll(ctx, query, &accounts)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *DataStore) PutMember(ctx context.Context, member *model.Member) error {
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	_, err := s.client.Put(ctx, s.memberKey(member.OrgID, member.UserID), member)
	return err
}

func (s *DataStore) GetMember(ctx context.Context, orgID, userID string) (*model.Member, error) {
	var member model.Member
	err := s.client.Get(ctx, s.memberKey(orgID, userID), &member)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *DataStore) DeleteMember(ctx context.Context, orgID, userID string) error {
	err := s.client.Delete(ctx, s.memberKey(orgID, userID))
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil
	}
	return err
}

func (s *DataStore) ListMembers(ctx context.Context, orgID string) ([]*model.Member, error) {
	var members []*model.Member
	query := datastore.NewQuery(memberKind).FilterField("OrgID", "=", orgID)
	_, err := s.client.GetAll(ctx, query, &members)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *DataStore) DeleteAllMembers(ctx context.Context, orgID string) error {
	query := datastore.NewQuery(memberKind).FilterField("OrgID", "=", orgID).KeysOnly()
	keys, err := s.client.GetAll(ctx, query, nil)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.DeleteMulti(ctx, keys)
}

func (s *DataStore) CreateTeam(ctx context.Context, team *model.Team) error {
	key := s.teamKey(team.OrgID, team.ID)
	var existing model.Team
	err := s.client.Get(ctx, key, &existing)
	if err == nil {
		return ErrTeamExists
	}
	if !errors.Is(err, datastore.ErrNoSuchEntity) {
		return err
	}

	now := time.Now()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = now
	}
	team.UpdatedAt = now
	_, err = s.client.Put(ctx, key, team)
	return err
}

func (s *DataStore) GetTeam(ctx context.Context, orgID, teamID string) (*model.Team, error) {
	var team model.Team
	err := s.client.Get(ctx, s.teamKey(orgID, teamID), &team)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *DataStore) UpdateTeam(ctx context.Context, team *model.Team) error {
	key := s.teamKey(team.OrgID, team.ID)
	tx, err := s.client.NewTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing model.Team
	err = tx.Get(key, &existing)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return ErrTeamNotFound
	}
	if err != nil {
		return err
	}

	team.CreatedAt = existing.CreatedAt
	team.UpdatedAt = time.Now()
	if _, err := tx.Put(key, team); err != nil {
		return err
	}
	_, err = tx.Commit()
	return err
}

func (s *DataStore) DeleteTeam(ctx context.Context, orgID, teamID string) error {
	query := datastore.NewQuery(teamMemberKind).FilterField("TeamID", "=", teamID).KeysOnly()
	keys, err := s.client.GetAll(ctx, query, nil)
	if err != nil {
		return err
	}
	keys = append(keys, s.teamKey(orgID, teamID))
	return s.client.DeleteMulti(ctx, keys)
}

func (s *DataStore) ListTeams(ctx context.Context, orgID string) ([]*model.Team, error) {
	var teams []*model.Team
	query := datastore.NewQuery(teamKind).FilterField("OrgID", "=", orgID)
	_, err := s.client.GetAll(ctx, query, &teams)
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (s *DataStore) PutTeamMember(ctx context.Context, orgID string, member *model.TeamMember) error {
	var team model.Team
	err := s.client.Get(ctx, s.teamKey(orgID, member.TeamID), &team)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return ErrTeamNotFound
	}
	if err != nil {
		return err
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	_, err = s.client.Put(ctx, s.teamMemberKey(orgID, member.TeamID, member.UserID), member)
	return err
}

func (s *DataStore) GetTeamMember(ctx context.Context, orgID, teamID, userID string) (*model.TeamMember, error) {
	var member model.TeamMember
	err := s.client.Get(ctx, s.teamMemberKey(orgID, teamID, userID), &member)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrTeamMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *DataStore) DeleteTeamMember(ctx context.Context, orgID, teamID, userID string) error {
	err := s.client.Delete(ctx, s.teamMemberKey(orgID, teamID, userID))
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil
	}
	return err
}

func (s *DataStore) ListTeamMembers(ctx context.Context, orgID, teamID string) ([]*model.TeamMember, error) {
	var members []*model.TeamMember
	query := datastore.NewQuery(teamMemberKind).FilterField("TeamID", "=", teamID)
	_, err := s.client.GetAll(ctx, query, &members)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *DataStore) DeleteAllTeams(ctx context.Context, orgID string) error {
	query := datastore.NewQuery(teamKind).FilterField("OrgID", "=", orgID).KeysOnly()
	teamKeys, err := s.client.GetAll(ctx, query, nil)
	if err != nil {
		return err
	}
	var keys []*datastore.Key
	for _, tk := range teamKeys {
		memberQuery := datastore.NewQuery(teamMemberKind).Ancestor(tk).KeysOnly()
		memberKeys, err := s.client.GetAll(ctx, memberQuery, nil)
		if err != nil {
			return err
		}
		keys = append(keys, memberKeys...)
	}
	keys = append(keys, teamKeys...)
	if len(keys) == 0 {
		return nil
	}
	return s.client.DeleteMulti(ctx, keys)
}

func (s *DataStore) CreateRepository(ctx context.Context, repo *model.Repository) error {
	key := s.repositoryKey(repo.ID)
	var existing model.Repository
	err := s.client.Get(ctx, key, &existing)
	if err == nil {
		return ErrRepositoryExists
	}
	if !errors.Is(err, datastore.ErrNoSuchEntity) {
		return err
	}

	now := time.Now()
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now
	}
	repo.UpdatedAt = now
	_, err = s.client.Put(ctx, key, repo)
	return err
}

func (s *DataStore) GetRepository(ctx context.Context, id string) (*model.Repository, error) {
	var repo model.Repository
	err := s.client.Get(ctx, s.repositoryKey(id), &repo)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrRepositoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

func (s *DataStore) UpdateRepository(ctx context.Context, repo *model.Repository) error {
	key := s.repositoryKey(repo.ID)
	tx, err := s.client.NewTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing model.Repository
	err = tx.Get(key, &existing)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return ErrRepositoryNotFound
	}
	if err != nil {
		return err
	}

	repo.OwnerID = existing.OwnerID
	repo.OwnerType = existing.OwnerType
	repo.CreatedAt = existing.CreatedAt
	repo.UpdatedAt = time.Now()
	if _, err := tx.Put(key, repo); err != nil {
		return err
	}
	_, err = tx.Commit()
	return err
}

func (s *DataStore) DeleteRepository(ctx context.Context, id string) error {
	repoKey := s.repositoryKey(id)
	keys := []*datastore.Key{repoKey}
	for _, kind := range []string{collabKind, teamAccessKind} {
		query := datastore.NewQuery(kind).Ancestor(repoKey).KeysOnly()
		childKeys, err := s.client.GetAll(ctx, query, nil)
		if err != nil {
			return err
		}
		keys = append(keys, childKeys...)
	}
	return s.client.DeleteMulti(ctx, keys)
}

func (s *DataStore) ListRepositoriesByOwner(ctx context.Context, ownerID string) ([]*model.Repository, error) {
	var repos []*model.Repository
	query := datastore.NewQuery(repositoryKind).FilterField("OwnerID", "=", ownerID)
	_, err := s.client.GetAll(ctx, query, &repos)
	if err != nil {
		return nil, err
	}
	return repos, nil
}

func (s *DataStore) PutCollaborator(ctx context.Context, collab *model.Collaborator) error {
	var repo model.Repository
	err := s.client.Get(ctx, s.repositoryKey(collab.RepositoryID), &repo)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return ErrRepositoryNotFound
	}
	if err != nil {
		return err
	}
	if collab.InvitedAt.IsZero() {
		collab.InvitedAt = time.Now()
	}
	_, err = s.client.Put(ctx, s.collaboratorKey(collab.RepositoryID, collab.UserID), collab)
	return err
}

func (s *DataStore) GetCollaborator(ctx context.Context, repoID, userID string) (*model.Collaborator, error) {
	var collab model.Collaborator
	err := s.client.Get(ctx, s.collaboratorKey(repoID, userID), &collab)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrCollaboratorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &collab, nil
}

func (s *DataStore) DeleteCollaborator(ctx context.Context, repoID, userID string) error {
	err := s.client.Delete(ctx, s.collaboratorKey(repoID, userID))
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil
	}
	return err
}

func (s *DataStore) ListCollaborators(ctx context.Context, repoID string) ([]*model.Collaborator, error) {
	var collabs []*model.Collaborator
	query := datastore.NewQuery(collabKind).FilterField("RepositoryID", "=", repoID)
	_, err := s.client.GetAll(ctx, query, &collabs)
	if err != nil {
		return nil, err
	}
	return collabs, nil
}

func (s *DataStore) PutTeamAccess(ctx context.Context, access *model.TeamAccess) error {
	var repo model.Repository
	err := s.client.Get(ctx, s.repositoryKey(access.RepositoryID), &repo)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return ErrRepositoryNotFound
	}
	if err != nil {
		return err
	}
	if access.GrantedAt.IsZero() {
		access.GrantedAt = time.Now()
	}
	_, err = s.client.Put(ctx, s.teamAccessKey(access.RepositoryID, access.TeamID), access)
	return err
}

func (s *DataStore) GetTeamAccess(ctx context.Context, repoID, teamID string) (*model.TeamAccess, error) {
	var access model.TeamAccess
	err := s.client.Get(ctx, s.teamAccessKey(repoID, teamID), &access)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrTeamAccessNotFound
	}
	if err != nil {
		return nil, err
	}
	return &access, nil
}

func (s *DataStore) DeleteTeamAccess(ctx context.Context, repoID, teamID string) error {
	err := s.client.Delete(ctx, s.teamAccessKey(repoID, teamID))
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil
	}
	return err
}

func (s *DataStore) ListTeamAccess(ctx context.Context, repoID string) ([]*model.TeamAccess, error) {
	var grants []*model.TeamAccess
	query := datastore.NewQuery(teamAccessKind).FilterField("RepositoryID", "=", repoID)
	_, err := s.client.GetAll(ctx, query, &grants)
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (s *DataStore) PutToken(ctx context.Context, token *model.AccessToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	_, err := s.client.Put(ctx, s.tokenKey(token.ID), token)
	return err
}

func (s *DataStore) GetToken(ctx context.Context, id string) (*model.AccessToken, error) {
	var token model.AccessToken
	err := s.client.Get(ctx, s.tokenKey(id), &token)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *DataStore) DeleteToken(ctx context.Context, id string) error {
	err := s.client.Delete(ctx, s.tokenKey(id))
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil
	}
	return err
}

func (s *DataStore) ListTokensByUser(ctx context.Context, userID string) ([]*model.AccessToken, error) {
	var tokens []*model.AccessToken
	query := datastore.NewQuery(tokenKind).FilterField("UserID", "=", userID)
	_, err := s.client.GetAll(ctx, query, &tokens)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Compile-time check to ensure DataStore implements Store.
var _ Store = (*DataStore)(nil)
