package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mscno/forgegate/pkg/model"
)

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]*model.Account    // account ID -> record
	byLogin     map[string]string            // login -> account ID
	members     map[string]*model.Member     // orgID/userID
	teams       map[string]*model.Team       // orgID/teamID
	teamMembers map[string]*model.TeamMember // orgID/teamID/userID
	repos       map[string]*model.Repository
	collabs     map[string]*model.Collaborator // repoID/userID
	teamAccess  map[string]*model.TeamAccess   // repoID/teamID
	tokens      map[string]*model.AccessToken
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*model.Account),
		byLogin:     make(map[string]string),
		members:     make(map[string]*model.Member),
		teams:       make(map[string]*model.Team),
		teamMembers: make(map[string]*model.TeamMember),
		repos:       make(map[string]*model.Repository),
		collabs:     make(map[string]*model.Collaborator),
		teamAccess:  make(map[string]*model.TeamAccess),
		tokens:      make(map[string]*model.AccessToken),
	}
}

func pathKey(parts ...string) string { return strings.Join(parts, "/") }

func (s *MemoryStore) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return ErrAccountExists
	}
	if _, exists := s.byLogin[account.Login]; exists {
		return ErrAccountExists
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	stored := *account
	s.accounts[stored.ID] = &stored
	s.byLogin[stored.Login] = stored.ID
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	ret := *account
	return &ret, nil
}

func (s *MemoryStore) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byLogin[login]
	if !ok {
		return nil, ErrAccountNotFound
	}
	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	ret := *account
	return &ret, nil
}

func (s *MemoryStore) UpdateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID]
	if !ok {
		return ErrAccountNotFound
	}

	if existing.Login != account.Login {
		if otherID, taken := s.byLogin[account.Login]; taken && otherID != account.ID {
			return ErrAccountExists
		}
		delete(s.byLogin, existing.Login)
		s.byLogin[account.Login] = account.ID
	}

	// Type, owner and creation time are immutable.
	account.Type = existing.Type
	account.OwnerID = existing.OwnerID
	account.CreatedAt = existing.CreatedAt
	account.UpdatedAt = time.Now()

	stored := *account
	s.accounts[account.ID] = &stored
	return nil
}

func (s *MemoryStore) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account, ok := s.accounts[id]; ok {
		delete(s.byLogin, account.Login)
		delete(s.accounts, id)
	}
	// Deleting an absent account is not an error.
	return nil
}

func (s *MemoryStore) ListOrganizations(ctx context.Context) ([]*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.Account, 0)
	for _, account := range s.accounts {
		if account.Type != model.AccountTypeOrganization {
			continue
		}
		ret := *account
		list = append(list, &ret)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Login < list[j].Login })
	return list, nil
}

func (s *MemoryStore) PutMember(ctx context.Context, member *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	stored := *member
	s.members[pathKey(member.OrgID, member.UserID)] = &stored
	return nil
}

func (s *MemoryStore) GetMember(ctx context.Context, orgID, userID string) (*model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, ok := s.members[pathKey(orgID, userID)]
	if !ok {
		return nil, ErrMemberNotFound
	}
	ret := *member
	return &ret, nil
}

func (s *MemoryStore) DeleteMember(ctx context.Context, orgID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, pathKey(orgID, userID))
	return nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, orgID string) ([]*model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.Member, 0)
	for _, member := range s.members {
		if member.OrgID != orgID {
			continue
		}
		ret := *member
		list = append(list, &ret)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, nil
}

func (s *MemoryStore) DeleteAllMembers(ctx context.Context, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, member := range s.members {
		if member.OrgID == orgID {
			delete(s.members, key)
		}
	}
	return nil
}

func (s *MemoryStore) CreateTeam(ctx context.Context, team *model.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pathKey(team.OrgID, team.ID)
	if _, exists := s.teams[key]; exists {
		return ErrTeamExists
	}

	now := time.Now()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = now
	}
	team.UpdatedAt = now

	stored := *team
	s.teams[key] = &stored
	return nil
}

func (s *MemoryStore) GetTeam(ctx context.Context, orgID, teamID string) (*model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	team, ok := s.teams[pathKey(orgID, teamID)]
	if !ok {
		return nil, ErrTeamNotFound
	}
	ret := *team
	return &ret, nil
}

func (s *MemoryStore) UpdateTeam(ctx context.Context, team *model.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pathKey(team.OrgID, team.ID)
	existing, ok := s.teams[key]
	if !ok {
		return ErrTeamNotFound
	}

	team.CreatedAt = existing.CreatedAt
	team.UpdatedAt = time.Now()

	stored := *team
	s.teams[key] = &stored
	return nil
}

func (s *MemoryStore) DeleteTeam(ctx context.Context, orgID, teamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.teams, pathKey(orgID, teamID))
	prefix := pathKey(orgID, teamID) + "/"
	for key := range s.teamMembers {
		if strings.HasPrefix(key, prefix) {
			delete(s.teamMembers, key)
		}
	}
	return nil
}

func (s *MemoryStore) ListTeams(ctx context.Context, orgID string) ([]*model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.Team, 0)
	for _, team := range s.teams {
		if team.OrgID != orgID {
			continue
		}
		ret := *team
		list = append(list, &ret)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Slug < list[j].Slug })
	return list, nil
}

func (s *MemoryStore) PutTeamMember(ctx context.Context, orgID string, member *model.TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams[pathKey(orgID, member.TeamID)]; !ok {
		return ErrTeamNotFound
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	stored := *member
	s.teamMembers[pathKey(orgID, member.TeamID, member.UserID)] = &stored
	return nil
}

func (s *MemoryStore) GetTeamMember(ctx context.Context, orgID, teamID, userID string) (*model.TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, ok := s.teamMembers[pathKey(orgID, teamID, userID)]
	if !ok {
		return nil, ErrTeamMemberNotFound
	}
	ret := *member
	return &ret, nil
}

func (s *MemoryStore) DeleteTeamMember(ctx context.Context, orgID, teamID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.teamMembers, pathKey(orgID, teamID, userID))
	return nil
}

func (s *MemoryStore) ListTeamMembers(ctx context.Context, orgID, teamID string) ([]*model.TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := pathKey(orgID, teamID) + "/"
	list := make([]*model.TeamMember, 0)
	for key, member := range s.teamMembers {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		ret := *member
		list = append(list, &ret)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, nil
}

func (s *MemoryStore) DeleteAllTeams(ctx context.Context, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := orgID + "/"
	for key := range s.teams {
		if strings.HasPrefix(key, prefix) {
			delete(s.teams, key)
		}
	}
	for key := range s.teamMembers {
		if strings.HasPrefix(key, prefix) {
			delete(s.teamMembers, key)
		}
	}
	return nil
}

func (s *MemoryStore) CreateRepository(ctx context.Context, repo *model.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.repos[repo.ID]; exists {
		return ErrRepositoryExists
	}

	now := time.Now()
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = now
	}
	repo.UpdatedAt = now

	stored := *repo
	s.repos[stored.ID] = &stored
	return nil
}

func (s *MemoryStore) GetRepository(ctx context.Context, id string) (*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	repo, ok := s.repos[id]
	if !ok {
		return nil, ErrRepositoryNotFound
	}
	ret := *repo
	return &ret, nil
}

func (s *MemoryStore) UpdateRepository(ctx context.Context, repo *model.Repository) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.repos[repo.ID]
	if !ok {
		return ErrRepositoryNotFound
	}

	repo.OwnerID = existing.OwnerID
	repo.OwnerType = existing.OwnerType
	repo.CreatedAt = existing.CreatedAt
	repo.UpdatedAt = time.Now()

	stored := *repo
	s.repos[repo.ID] = &stored
	return nil
}

func (s *MemoryStore) DeleteRepository(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.repos, id)
	prefix := id + "/"
	for key := range s.collabs {
		if strings.HasPrefix(key, prefix) {
			delete(s.collabs, key)
		}
	}
	for key := range s.teamAccess {
		if strings.HasPrefix(key, prefix) {
			delete(s.teamAccess, key)
		}
	}
	return nil
}

func (s *MemoryStore) ListRepositoriesByOwner(ctx context.Context, ownerID string) ([]*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.Repository, 0)
	for _, repo := range s.repos {
		if repo.OwnerID != ownerID {
			continue
		}
		ret := *repo
		list = append(list, &ret)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (s *MemoryStore) PutCollaborator(ctx context.Context, collab *model.Collaborator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repos[collab.RepositoryID]; !ok {
		return ErrRepositoryNotFound
	}
	if collab.InvitedAt.IsZero() {
		collab.InvitedAt = time.Now()
	}
	stored := *collab
	s.collabs[pathKey(collab.RepositoryID, collab.UserID)] = &stored
	return nil
}

func (s *MemoryStore) GetCollaborator(ctx context.Context, repoID, userID string) (*model.Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collab, ok := s.collabs[pathKey(repoID, userID)]
	if !ok {
		return nil, ErrCollaboratorNotFound
	}
	ret := *collab
	return &ret, nil
}

func (s *MemoryStore) DeleteCollaborator(ctx context.Context, repoID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collabs, pathKey(repoID, userID))
	return nil
}

func (s *MemoryStore) ListCollaborators(ctx context.Context, repoID string) ([]*model.Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.Collaborator, 0)
	for _, collab := range s.collabs {
		if collab.RepositoryID != repoID {
			continue
		}
		ret := *collab
		list = append(list, &ret)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, nil
}

func (s *MemoryStore) PutTeamAccess(ctx context.Context, access *model.TeamAccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repos[access.RepositoryID]; !ok {
		return ErrRepositoryNotFound
	}
	if access.GrantedAt.IsZero() {
		access.GrantedAt = time.Now()
	}
	stored := *access
	s.teamAccess[pathKey(access.RepositoryID, access.TeamID)] = &stored
	return nil
}

func (s *MemoryStore) GetTeamAccess(ctx context.Context, repoID, teamID string) (*model.TeamAccess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	access, ok := s.teamAccess[pathKey(repoID, teamID)]
	if !ok {
		return nil, ErrTeamAccessNotFound
	}
	ret := *access
	return &ret, nil
}

func (s *MemoryStore) DeleteTeamAccess(ctx context.Context, repoID, teamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.teamAccess, pathKey(repoID, teamID))
	return nil
}

func (s *MemoryStore) ListTeamAccess(ctx context.Context, repoID string) ([]*model.TeamAccess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.TeamAccess, 0)
	for _, access := range s.teamAccess {
		if access.RepositoryID != repoID {
			continue
		}
		ret := *access
		list = append(list, &ret)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TeamID < list[j].TeamID })
	return list, nil
}

func (s *MemoryStore) PutToken(ctx context.Context, token *model.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	stored := *token
	s.tokens[token.ID] = &stored
	return nil
}

func (s *MemoryStore) GetToken(ctx context.Context, id string) (*model.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	ret := *token
	return &ret, nil
}

func (s *MemoryStore) DeleteToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
	return nil
}

func (s *MemoryStore) ListTokensByUser(ctx context.Context, userID string) ([]*model.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*model.AccessToken, 0)
	for _, token := range s.tokens {
		if token.UserID != userID {
			continue
		}
		ret := *token
		list = append(list, &ret)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Ensure implementation satisfies the interface.
var _ Store = (*MemoryStore)(nil)
