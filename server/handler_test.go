package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/mscno/forgegate/authz"
	"github.com/mscno/forgegate/org"
	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/server"
	"github.com/mscno/forgegate/server/middleware"
	"github.com/mscno/forgegate/store"
	"github.com/mscno/forgegate/tokens"
)

// withTestIdentity resolves the X-User header to an account. Requests
// without the header stay anonymous so the 401 paths can be exercised.
func withTestIdentity(st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if login := r.Header.Get("X-User"); login != "" {
				account, err := st.GetAccountByLogin(r.Context(), login)
				if err != nil {
					http.Error(w, "unknown test user", http.StatusUnauthorized)
					return
				}
				r = r.WithContext(middleware.ContextWithAccount(r.Context(), account))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore()

	resolver := authz.NewResolver(st, st, logger)
	orgSvc := org.NewService(st, resolver, logger)
	tokenSvc := tokens.NewService(st, st, logger)
	h := server.NewHandler(st, orgSvc, tokenSvc, logger)

	s := server.NewServer()
	s.Use(withTestIdentity(st))
	h.Register(s)

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return srv, st
}

func seedUser(t *testing.T, st store.Store, id, login string) {
	t.Helper()
	err := st.CreateAccount(context.Background(), &model.Account{
		ID:    id,
		Type:  model.AccountTypeUser,
		Login: login,
	})
	assert.NoError(t, err)
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, user string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	assert.NoError(t, err)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := srv.Client().Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	return resp.StatusCode, out
}

func TestHandler_RequiresAuthentication(t *testing.T) {
	srv, _ := newTestServer(t)

	status, _ := doJSON(t, srv, http.MethodGet, "/api/v1/orgs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHandler_OrganizationLifecycle(t *testing.T) {
	srv, st := newTestServer(t)
	seedUser(t, st, "user-a", "alice")
	seedUser(t, st, "user-b", "bob")

	// Create.
	status, body := doJSON(t, srv, http.MethodPost, "/api/v1/orgs", "alice",
		map[string]string{"name": "Acme Inc", "login": "acme"})
	assert.Equal(t, http.StatusCreated, status)
	var created model.Account
	assert.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "acme", created.Login)

	// Duplicate login conflicts.
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/orgs", "bob",
		map[string]string{"name": "Acme Too", "login": "acme"})
	assert.Equal(t, http.StatusConflict, status)

	// Invalid login is a 400, not a 500.
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/orgs", "alice",
		map[string]string{"name": "Bad", "login": "-bad-"})
	assert.Equal(t, http.StatusBadRequest, status)

	// Owner sees the org.
	status, body = doJSON(t, srv, http.MethodGet, "/api/v1/orgs/acme", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	var fetched model.Account
	assert.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	// Non-members are denied.
	status, _ = doJSON(t, srv, http.MethodGet, "/api/v1/orgs/acme", "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Missing orgs read as denied rather than leaking existence.
	status, _ = doJSON(t, srv, http.MethodGet, "/api/v1/orgs/ghost", "alice", nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Listing reflects membership.
	status, body = doJSON(t, srv, http.MethodGet, "/api/v1/orgs", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	var orgs []model.Account
	assert.NoError(t, json.Unmarshal(body, &orgs))
	assert.Equal(t, 1, len(orgs))

	// Only the owner may delete.
	status, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/orgs/acme", "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/orgs/acme", "alice", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = doJSON(t, srv, http.MethodGet, "/api/v1/orgs/acme", "alice", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestHandler_Members(t *testing.T) {
	srv, st := newTestServer(t)
	seedUser(t, st, "user-a", "alice")
	seedUser(t, st, "user-b", "bob")
	seedUser(t, st, "user-c", "carol")

	status, _ := doJSON(t, srv, http.MethodPost, "/api/v1/orgs", "alice",
		map[string]string{"name": "Acme Inc", "login": "acme"})
	assert.Equal(t, http.StatusCreated, status)

	// Owner adds bob with the org default role.
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/orgs/acme/members", "alice",
		map[string]string{"user_id": "user-b"})
	assert.Equal(t, http.StatusCreated, status)

	// A plain member cannot add members.
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/orgs/acme/members", "bob",
		map[string]string{"user_id": "user-c"})
	assert.Equal(t, http.StatusForbidden, status)

	// But a member can read the roster.
	status, body := doJSON(t, srv, http.MethodGet, "/api/v1/orgs/acme/members", "bob", nil)
	assert.Equal(t, http.StatusOK, status)
	var members []model.Member
	assert.NoError(t, json.Unmarshal(body, &members))
	assert.Equal(t, 2, len(members))

	// Role update and removal are admin operations.
	status, _ = doJSON(t, srv, http.MethodPut, "/api/v1/orgs/acme/members/user-b", "alice",
		map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, srv, http.MethodPut, "/api/v1/orgs/acme/members/user-b", "alice",
		map[string]string{"role": "superuser"})
	assert.Equal(t, http.StatusBadRequest, status)

	// Bob is an admin now and may add carol.
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/orgs/acme/members", "bob",
		map[string]string{"user_id": "user-c"})
	assert.Equal(t, http.StatusCreated, status)

	status, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/orgs/acme/members/user-c", "bob", nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestHandler_Teams(t *testing.T) {
	srv, st := newTestServer(t)
	seedUser(t, st, "user-a", "alice")
	seedUser(t, st, "user-b", "bob")
	seedUser(t, st, "user-c", "carol")

	status, _ := doJSON(t, srv, http.MethodPost, "/api/v1/orgs", "alice",
		map[string]string{"name": "Acme Inc", "login": "acme"})
	assert.Equal(t, http.StatusCreated, status)
	for _, userID := range []string{"user-b", "user-c"} {
		status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/orgs/acme/members", "alice",
			map[string]string{"user_id": userID})
		assert.Equal(t, http.StatusCreated, status)
	}

	// Members cannot create teams.
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/orgs/acme/teams", "bob",
		map[string]string{"name": "Platform", "slug": "platform"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := doJSON(t, srv, http.MethodPost, "/api/v1/orgs/acme/teams", "alice",
		map[string]string{"name": "Platform", "slug": "platform"})
	assert.Equal(t, http.StatusCreated, status)
	var team model.Team
	assert.NoError(t, json.Unmarshal(body, &team))

	// Owner promotes bob to maintainer.
	status, _ = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/orgs/acme/teams/%s/members", team.ID), "alice",
		map[string]string{"user_id": "user-b", "role": "maintainer"})
	assert.Equal(t, http.StatusCreated, status)

	// Maintainers manage the roster, plain members do not.
	status, _ = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/orgs/acme/teams/%s/members", team.ID), "bob",
		map[string]string{"user_id": "user-c"})
	assert.Equal(t, http.StatusCreated, status)
	status, _ = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/orgs/acme/teams/%s/members/user-b", team.ID), "carol", nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Any member may list teams and rosters.
	status, body = doJSON(t, srv, http.MethodGet, "/api/v1/orgs/acme/teams", "carol", nil)
	assert.Equal(t, http.StatusOK, status)
	var teams []model.Team
	assert.NoError(t, json.Unmarshal(body, &teams))
	assert.Equal(t, 1, len(teams))

	status, body = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/orgs/acme/teams/%s/members", team.ID), "carol", nil)
	assert.Equal(t, http.StatusOK, status)
	var roster []model.TeamMember
	assert.NoError(t, json.Unmarshal(body, &roster))
	assert.Equal(t, 2, len(roster))

	// Deleting the team takes maintainer or admin rights.
	status, _ = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/orgs/acme/teams/%s", team.ID), "carol", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/v1/orgs/acme/teams/%s", team.ID), "bob", nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestHandler_CanProbe(t *testing.T) {
	srv, st := newTestServer(t)
	seedUser(t, st, "user-a", "alice")
	seedUser(t, st, "user-b", "bob")

	status, _ := doJSON(t, srv, http.MethodPost, "/api/v1/orgs", "alice",
		map[string]string{"name": "Acme Inc", "login": "acme"})
	assert.Equal(t, http.StatusCreated, status)
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/orgs/acme/members", "alice",
		map[string]string{"user_id": "user-b"})
	assert.Equal(t, http.StatusCreated, status)

	probe := func(user string, action, resource, orgSlug string) bool {
		status, body := doJSON(t, srv, http.MethodPost, "/api/v1/can", user,
			map[string]string{"action": action, "resource": resource, "org_slug": orgSlug})
		assert.Equal(t, http.StatusOK, status)
		var out map[string]bool
		assert.NoError(t, json.Unmarshal(body, &out))
		return out["allowed"]
	}

	assert.True(t, probe("alice", "delete", "organization", "acme"))
	assert.True(t, probe("bob", "read", "team", "acme"))
	assert.False(t, probe("bob", "write", "team", "acme"))
	assert.False(t, probe("bob", "delete", "organization", "acme"))

	// Unknown enum values are rejected up front.
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/can", "alice",
		map[string]string{"action": "transmogrify", "resource": "organization", "org_slug": "acme"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandler_RepositoryAccess(t *testing.T) {
	srv, st := newTestServer(t)
	seedUser(t, st, "user-a", "alice")
	seedUser(t, st, "user-b", "bob")

	ctx := context.Background()
	assert.NoError(t, st.CreateRepository(ctx, &model.Repository{
		ID: "repo-1", Name: "site", FullName: "alice/site",
		OwnerID: "user-a", OwnerType: model.AccountTypeUser,
	}))

	probe := func(user, repoID string) map[string]bool {
		status, body := doJSON(t, srv, http.MethodGet, "/api/v1/repos/"+repoID+"/access", user, nil)
		assert.Equal(t, http.StatusOK, status)
		var out map[string]bool
		assert.NoError(t, json.Unmarshal(body, &out))
		return out
	}

	owner := probe("alice", "repo-1")
	assert.True(t, owner["read"])
	assert.True(t, owner["write"])
	assert.True(t, owner["manage"])

	visitor := probe("bob", "repo-1")
	assert.True(t, visitor["read"])
	assert.False(t, visitor["write"])
	assert.False(t, visitor["manage"])

	// Missing repositories fail closed.
	missing := probe("bob", "ghost")
	assert.False(t, missing["read"])
}

func TestHandler_Tokens(t *testing.T) {
	srv, st := newTestServer(t)
	seedUser(t, st, "user-a", "alice")
	seedUser(t, st, "user-b", "bob")

	status, body := doJSON(t, srv, http.MethodPost, "/api/v1/tokens", "alice",
		map[string]string{"note": "ci"})
	assert.Equal(t, http.StatusCreated, status)
	var issued map[string]string
	assert.NoError(t, json.Unmarshal(body, &issued))
	assert.NotEqual(t, "", issued["token"])
	assert.NotEqual(t, "", issued["id"])

	status, body = doJSON(t, srv, http.MethodGet, "/api/v1/tokens", "alice", nil)
	assert.Equal(t, http.StatusOK, status)
	var list []map[string]any
	assert.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, len(list))
	// The hash never leaves the server.
	_, leaked := list[0]["secret_hash"]
	assert.False(t, leaked)

	// Only the owner may revoke.
	status, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/tokens/"+issued["id"], "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/tokens/"+issued["id"], "alice", nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestHandler_RepositoryLifecycle(t *testing.T) {
	srv, st := newTestServer(t)
	seedUser(t, st, "user-a", "alice")
	seedUser(t, st, "user-b", "bob")

	// Alice creates a private repository.
	status, body := doJSON(t, srv, http.MethodPost, "/api/v1/repos", "alice",
		map[string]any{"name": "site", "private": true})
	assert.Equal(t, http.StatusCreated, status)
	var repo model.Repository
	assert.NoError(t, json.Unmarshal(body, &repo))
	assert.Equal(t, "alice/site", repo.FullName)

	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/repos", "alice",
		map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	// Private means invisible to outsiders.
	status, _ = doJSON(t, srv, http.MethodGet, "/api/v1/repos/"+repo.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	// A write grant opens read and write but not manage.
	status, _ = doJSON(t, srv, http.MethodPut, "/api/v1/repos/"+repo.ID+"/collaborators/user-b", "alice",
		map[string]string{"permission": "write"})
	assert.Equal(t, http.StatusCreated, status)

	status, body = doJSON(t, srv, http.MethodGet, "/api/v1/repos/"+repo.ID+"/access", "bob", nil)
	assert.Equal(t, http.StatusOK, status)
	var access map[string]bool
	assert.NoError(t, json.Unmarshal(body, &access))
	assert.True(t, access["read"])
	assert.True(t, access["write"])
	assert.False(t, access["manage"])

	status, _ = doJSON(t, srv, http.MethodGet, "/api/v1/repos/"+repo.ID, "bob", nil)
	assert.Equal(t, http.StatusOK, status)

	// Collaborators cannot manage grants or delete the repository.
	status, _ = doJSON(t, srv, http.MethodPut, "/api/v1/repos/"+repo.ID+"/collaborators/user-b", "bob",
		map[string]string{"permission": "admin"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/repos/"+repo.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Bad permission levels are rejected.
	status, _ = doJSON(t, srv, http.MethodPut, "/api/v1/repos/"+repo.ID+"/collaborators/user-b", "alice",
		map[string]string{"permission": "godmode"})
	assert.Equal(t, http.StatusBadRequest, status)

	// Revoking the grant closes access again.
	status, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/repos/"+repo.ID+"/collaborators/user-b", "alice", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = doJSON(t, srv, http.MethodGet, "/api/v1/repos/"+repo.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/repos/"+repo.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestHandler_OrgRepositoryTeamAccess(t *testing.T) {
	srv, st := newTestServer(t)
	seedUser(t, st, "user-a", "alice")
	seedUser(t, st, "user-b", "bob")

	status, _ := doJSON(t, srv, http.MethodPost, "/api/v1/orgs", "alice",
		map[string]string{"name": "Acme Inc", "login": "acme"})
	assert.Equal(t, http.StatusCreated, status)
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/orgs/acme/members", "alice",
		map[string]string{"user_id": "user-b"})
	assert.Equal(t, http.StatusCreated, status)

	// Members cannot create org repositories; admins can.
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/repos", "bob",
		map[string]any{"name": "infra", "private": true, "org_slug": "acme"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := doJSON(t, srv, http.MethodPost, "/api/v1/repos", "alice",
		map[string]any{"name": "infra", "private": true, "org_slug": "acme"})
	assert.Equal(t, http.StatusCreated, status)
	var repo model.Repository
	assert.NoError(t, json.Unmarshal(body, &repo))
	assert.Equal(t, "acme/infra", repo.FullName)
	assert.Equal(t, model.AccountTypeOrganization, repo.OwnerType)

	status, body = doJSON(t, srv, http.MethodPost, "/api/v1/orgs/acme/teams", "alice",
		map[string]string{"name": "Platform", "slug": "platform"})
	assert.Equal(t, http.StatusCreated, status)
	var team model.Team
	assert.NoError(t, json.Unmarshal(body, &team))
	status, _ = doJSON(t, srv, http.MethodPost, "/api/v1/orgs/acme/teams/"+team.ID+"/members", "alice",
		map[string]string{"user_id": "user-b"})
	assert.Equal(t, http.StatusCreated, status)

	// Before the team grant bob cannot see the private org repository.
	status, _ = doJSON(t, srv, http.MethodGet, "/api/v1/repos/"+repo.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doJSON(t, srv, http.MethodPut, "/api/v1/repos/"+repo.ID+"/teams/"+team.ID, "alice",
		map[string]string{"permission": "write"})
	assert.Equal(t, http.StatusCreated, status)

	status, body = doJSON(t, srv, http.MethodGet, "/api/v1/repos/"+repo.ID+"/access", "bob", nil)
	assert.Equal(t, http.StatusOK, status)
	var access map[string]bool
	assert.NoError(t, json.Unmarshal(body, &access))
	assert.True(t, access["read"])
	assert.True(t, access["write"])
	assert.False(t, access["manage"])

	status, _ = doJSON(t, srv, http.MethodDelete, "/api/v1/repos/"+repo.ID+"/teams/"+team.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = doJSON(t, srv, http.MethodGet, "/api/v1/repos/"+repo.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, status)
}
