package store

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/mscno/forgegate/pkg/model"
)

var (
	accountsBucket    = []byte("accounts")
	loginsBucket      = []byte("logins") // login -> account ID
	membersBucket     = []byte("members")
	teamsBucket       = []byte("teams")
	teamMembersBucket = []byte("team_members")
	reposBucket       = []byte("repositories")
	collabsBucket     = []byte("collaborators")
	teamAccessBucket  = []byte("team_access")
	tokensBucket      = []byte("tokens")
)

// BoltStore is a bbolt-backed Store. Sub-collection paths are encoded as
// composite keys (orgID/userID, orgID/teamID/userID, repoID/userID).
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database file and its buckets.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			accountsBucket, loginsBucket, membersBucket, teamsBucket,
			teamMembersBucket, reposBucket, collabsBucket, teamAccessBucket,
			tokensBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error { return s.db.Close() }

func putJSON(b *bbolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func getJSON(b *bbolt.Bucket, key string, v any, notFound error) error {
	val := b.Get([]byte(key))
	if val == nil {
		return notFound
	}
	return json.Unmarshal(val, v)
}

// deletePrefix removes every key in the bucket starting with prefix.
func deletePrefix(b *bbolt.Bucket, prefix string) error {
	c := b.Cursor()
	p := []byte(prefix)
	var keys [][]byte
	for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltStore) CreateAccount(ctx context.Context, account *model.Account) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		accounts := tx.Bucket(accountsBucket)
		logins := tx.Bucket(loginsBucket)
		if accounts.Get([]byte(account.ID)) != nil {
			return ErrAccountExists
		}
		if logins.Get([]byte(account.Login)) != nil {
			return ErrAccountExists
		}
		now := time.Now()
		if account.CreatedAt.IsZero() {
			account.CreatedAt = now
		}
		account.UpdatedAt = now
		if err := putJSON(accounts, account.ID, account); err != nil {
			return err
		}
		return logins.Put([]byte(account.Login), []byte(account.ID))
	})
}

func (s *BoltStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(accountsBucket), id, &account, ErrAccountNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *BoltStore) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	var account model.Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(loginsBucket).Get([]byte(login))
		if id == nil {
			return ErrAccountNotFound
		}
		return getJSON(tx.Bucket(accountsBucket), string(id), &account, ErrAccountNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *BoltStore) UpdateAccount(ctx context.Context, account *model.Account) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		accounts := tx.Bucket(accountsBucket)
		logins := tx.Bucket(loginsBucket)

		var existing model.Account
		if err := getJSON(accounts, account.ID, &existing, ErrAccountNotFound); err != nil {
			return err
		}
		if existing.Login != account.Login {
			if other := logins.Get([]byte(account.Login)); other != nil && string(other) != account.ID {
				return ErrAccountExists
			}
			if err := logins.Delete([]byte(existing.Login)); err != nil {
				return err
			}
			if err := logins.Put([]byte(account.Login), []byte(account.ID)); err != nil {
				return err
			}
		}

		account.Type = existing.Type
		account.OwnerID = existing.OwnerID
		account.CreatedAt = existing.CreatedAt
		account.UpdatedAt = time.Now()
		return putJSON(accounts, account.ID, account)
	})
}

func (s *BoltStore) DeleteAccount(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		accounts := tx.Bucket(accountsBucket)
		var existing model.Account
		err := getJSON(accounts, id, &existing, ErrAccountNotFound)
		if err != nil {
			return nil // absent account, nothing to do
		}
		if err := tx.Bucket(loginsBucket).Delete([]byte(existing.Login)); err != nil {
			return err
		}
		return accounts.Delete([]byte(id))
	})
}

func (s *BoltStore) ListOrganizations(ctx context.Context) ([]*model.Account, error) {
	var list []*model.Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(k, v []byte) error {
			var account model.Account
			if err := json.Unmarshal(v, &account); err != nil {
				return err
			}
			if account.Type == model.AccountTypeOrganization {
				list = append(list, &account)
			}
			return nil
		})
	})
	return list, err
}

func (s *BoltStore) PutMember(ctx context.Context, member *model.Member) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if member.JoinedAt.IsZero() {
			member.JoinedAt = time.Now()
		}
		return putJSON(tx.Bucket(membersBucket), pathKey(member.OrgID, member.UserID), member)
	})
}

func (s *BoltStore) GetMember(ctx context.Context, orgID, userID string) (*model.Member, error) {
	var member model.Member
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(membersBucket), pathKey(orgID, userID), &member, ErrMemberNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *BoltStore) DeleteMember(ctx context.Context, orgID, userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(membersBucket).Delete([]byte(pathKey(orgID, userID)))
	})
}

func (s *BoltStore) ListMembers(ctx context.Context, orgID string) ([]*model.Member, error) {
	var list []*model.Member
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(membersBucket).Cursor()
		prefix := []byte(orgID + "/")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var member model.Member
			if err := json.Unmarshal(v, &member); err != nil {
				return err
			}
			list = append(list, &member)
		}
		return nil
	})
	return list, err
}

func (s *BoltStore) DeleteAllMembers(ctx context.Context, orgID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return deletePrefix(tx.Bucket(membersBucket), orgID+"/")
	})
}

func (s *BoltStore) CreateTeam(ctx context.Context, team *model.Team) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		teams := tx.Bucket(teamsBucket)
		key := pathKey(team.OrgID, team.ID)
		if teams.Get([]byte(key)) != nil {
			return ErrTeamExists
		}
		now := time.Now()
		if team.CreatedAt.IsZero() {
			team.CreatedAt = now
		}
		team.UpdatedAt = now
		return putJSON(teams, key, team)
	})
}

func (s *BoltStore) GetTeam(ctx context.Context, orgID, teamID string) (*model.Team, error) {
	var team model.Team
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(teamsBucket), pathKey(orgID, teamID), &team, ErrTeamNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *BoltStore) UpdateTeam(ctx context.Context, team *model.Team) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		teams := tx.Bucket(teamsBucket)
		key := pathKey(team.OrgID, team.ID)
		var existing model.Team
		if err := getJSON(teams, key, &existing, ErrTeamNotFound); err != nil {
			return err
		}
		team.CreatedAt = existing.CreatedAt
		team.UpdatedAt = time.Now()
		return putJSON(teams, key, team)
	})
}

func (s *BoltStore) DeleteTeam(ctx context.Context, orgID, teamID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(teamsBucket).Delete([]byte(pathKey(orgID, teamID))); err != nil {
			return err
		}
		return deletePrefix(tx.Bucket(teamMembersBucket), pathKey(orgID, teamID)+"/")
	})
}

func (s *BoltStore) ListTeams(ctx context.Context, orgID string) ([]*model.Team, error) {
	var list []*model.Team
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(teamsBucket).Cursor()
		prefix := []byte(orgID + "/")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var team model.Team
			if err := json.Unmarshal(v, &team); err != nil {
				return err
			}
			list = append(list, &team)
		}
		return nil
	})
	return list, err
}

func (s *BoltStore) PutTeamMember(ctx context.Context, orgID string, member *model.TeamMember) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(teamsBucket).Get([]byte(pathKey(orgID, member.TeamID))) == nil {
			return ErrTeamNotFound
		}
		if member.JoinedAt.IsZero() {
			member.JoinedAt = time.Now()
		}
		return putJSON(tx.Bucket(teamMembersBucket), pathKey(orgID, member.TeamID, member.UserID), member)
	})
}

func (s *BoltStore) GetTeamMember(ctx context.Context, orgID, teamID, userID string) (*model.TeamMember, error) {
	var member model.TeamMember
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(teamMembersBucket), pathKey(orgID, teamID, userID), &member, ErrTeamMemberNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *BoltStore) DeleteTeamMember(ctx context.Context, orgID, teamID, userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(teamMembersBucket).Delete([]byte(pathKey(orgID, teamID, userID)))
	})
}

func (s *BoltStore) ListTeamMembers(ctx context.Context, orgID, teamID string) ([]*model.TeamMember, error) {
	var list []*model.TeamMember
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(teamMembersBucket).Cursor()
		prefix := []byte(pathKey(orgID, teamID) + "/")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var member model.TeamMember
			if err := json.Unmarshal(v, &member); err != nil {
				return err
			}
			list = append(list, &member)
		}
		return nil
	})
	return list, err
}

func (s *BoltStore) DeleteAllTeams(ctx context.Context, orgID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deletePrefix(tx.Bucket(teamsBucket), orgID+"/"); err != nil {
			return err
		}
		return deletePrefix(tx.Bucket(teamMembersBucket), orgID+"/")
	})
}

func (s *BoltStore) CreateRepository(ctx context.Context, repo *model.Repository) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		repos := tx.Bucket(reposBucket)
		if repos.Get([]byte(repo.ID)) != nil {
			return ErrRepositoryExists
		}
		now := time.Now()
		if repo.CreatedAt.IsZero() {
			repo.CreatedAt = now
		}
		repo.UpdatedAt = now
		return putJSON(repos, repo.ID, repo)
	})
}

func (s *BoltStore) GetRepository(ctx context.Context, id string) (*model.Repository, error) {
	var repo model.Repository
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(reposBucket), id, &repo, ErrRepositoryNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

func (s *BoltStore) UpdateRepository(ctx context.Context, repo *model.Repository) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		repos := tx.Bucket(reposBucket)
		var existing model.Repository
		if err := getJSON(repos, repo.ID, &existing, ErrRepositoryNotFound); err != nil {
			return err
		}
		repo.OwnerID = existing.OwnerID
		repo.OwnerType = existing.OwnerType
		repo.CreatedAt = existing.CreatedAt
		repo.UpdatedAt = time.Now()
		return putJSON(repos, repo.ID, repo)
	})
}

func (s *BoltStore) DeleteRepository(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(reposBucket).Delete([]byte(id)); err != nil {
			return err
		}
		if err := deletePrefix(tx.Bucket(collabsBucket), id+"/"); err != nil {
			return err
		}
		return deletePrefix(tx.Bucket(teamAccessBucket), id+"/")
	})
}

func (s *BoltStore) ListRepositoriesByOwner(ctx context.Context, ownerID string) ([]*model.Repository, error) {
	var list []*model.Repository
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(reposBucket).ForEach(func(k, v []byte) error {
			var repo model.Repository
			if err := json.Unmarshal(v, &repo); err != nil {
				return err
			}
			if repo.OwnerID == ownerID {
				list = append(list, &repo)
			}
			return nil
		})
	})
	return list, err
}

func (s *BoltStore) PutCollaborator(ctx context.Context, collab *model.Collaborator) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(reposBucket).Get([]byte(collab.RepositoryID)) == nil {
			return ErrRepositoryNotFound
		}
		if collab.InvitedAt.IsZero() {
			collab.InvitedAt = time.Now()
		}
		return putJSON(tx.Bucket(collabsBucket), pathKey(collab.RepositoryID, collab.UserID), collab)
	})
}

func (s *BoltStore) GetCollaborator(ctx context.Context, repoID, userID string) (*model.Collaborator, error) {
	var collab model.Collaborator
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(collabsBucket), pathKey(repoID, userID), &collab, ErrCollaboratorNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &collab, nil
}

func (s *BoltStore) DeleteCollaborator(ctx context.Context, repoID, userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(collabsBucket).Delete([]byte(pathKey(repoID, userID)))
	})
}

func (s *BoltStore) ListCollaborators(ctx context.Context, repoID string) ([]*model.Collaborator, error) {
	var list []*model.Collaborator
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(collabsBucket).Cursor()
		prefix := []byte(repoID + "/")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var collab model.Collaborator
			if err := json.Unmarshal(v, &collab); err != nil {
				return err
			}
			list = append(list, &collab)
		}
		return nil
	})
	return list, err
}

func (s *BoltStore) PutTeamAccess(ctx context.Context, access *model.TeamAccess) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(reposBucket).Get([]byte(access.RepositoryID)) == nil {
			return ErrRepositoryNotFound
		}
		if access.GrantedAt.IsZero() {
			access.GrantedAt = time.Now()
		}
		return putJSON(tx.Bucket(teamAccessBucket), pathKey(access.RepositoryID, access.TeamID), access)
	})
}

func (s *BoltStore) GetTeamAccess(ctx context.Context, repoID, teamID string) (*model.TeamAccess, error) {
	var access model.TeamAccess
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(teamAccessBucket), pathKey(repoID, teamID), &access, ErrTeamAccessNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &access, nil
}

func (s *BoltStore) DeleteTeamAccess(ctx context.Context, repoID, teamID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(teamAccessBucket).Delete([]byte(pathKey(repoID, teamID)))
	})
}

func (s *BoltStore) ListTeamAccess(ctx context.Context, repoID string) ([]*model.TeamAccess, error) {
	var list []*model.TeamAccess
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(teamAccessBucket).Cursor()
		prefix := []byte(repoID + "/")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var access model.TeamAccess
			if err := json.Unmarshal(v, &access); err != nil {
				return err
			}
			list = append(list, &access)
		}
		return nil
	})
	return list, err
}

func (s *BoltStore) PutToken(ctx context.Context, token *model.AccessToken) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if token.CreatedAt.IsZero() {
			token.CreatedAt = time.Now()
		}
		return putJSON(tx.Bucket(tokensBucket), token.ID, token)
	})
}

func (s *BoltStore) GetToken(ctx context.Context, id string) (*model.AccessToken, error) {
	var token model.AccessToken
	err := s.db.View(func(tx *bbolt.Tx) error {
		return getJSON(tx.Bucket(tokensBucket), id, &token, ErrTokenNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *BoltStore) DeleteToken(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(tokensBucket).Delete([]byte(id))
	})
}

func (s *BoltStore) ListTokensByUser(ctx context.Context, userID string) ([]*model.AccessToken, error) {
	var list []*model.AccessToken
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(tokensBucket).ForEach(func(k, v []byte) error {
			var token model.AccessToken
			if err := json.Unmarshal(v, &token); err != nil {
				return err
			}
			if token.UserID == userID {
				list = append(list, &token)
			}
			return nil
		})
	})
	return list, err
}

// Ensure implementation satisfies the interface.
var _ Store = (*BoltStore)(nil)
