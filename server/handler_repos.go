package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/mscno/forgegate/authz"
	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/pkg/validate"
	"github.com/mscno/forgegate/server/middleware"
)

func (h *Handler) registerRepositoryRoutes(s *Server) {
	s.HandleFunc("POST /api/v1/repos", h.CreateRepository)
	s.HandleFunc("GET /api/v1/repos/{id}", h.GetRepository)
	s.HandleFunc("DELETE /api/v1/repos/{id}", h.DeleteRepository)

	s.HandleFunc("GET /api/v1/repos/{id}/collaborators", h.ListCollaborators)
	s.HandleFunc("PUT /api/v1/repos/{id}/collaborators/{user}", h.PutCollaborator)
	s.HandleFunc("DELETE /api/v1/repos/{id}/collaborators/{user}", h.RemoveCollaborator)

	s.HandleFunc("PUT /api/v1/repos/{id}/teams/{team}", h.PutTeamAccess)
	s.HandleFunc("DELETE /api/v1/repos/{id}/teams/{team}", h.RemoveTeamAccess)
}

func newRepoID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (h *Handler) CreateRepository(w http.ResponseWriter, r *http.Request) {
	az, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Private     bool   `json:"private"`
		OrgSlug     string `json:"org_slug"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		h.writeError(w, validate.Errorf("repository name must not be empty"))
		return
	}

	owner := account
	if req.OrgSlug != "" {
		d := az.Guards.OrgAdmin(r.Context(), authz.OrgBySlug(req.OrgSlug))
		if !middleware.WriteDecision(w, d) {
			return
		}
		organization, err := h.orgs.GetOrganizationBySlug(r.Context(), req.OrgSlug)
		if err != nil {
			h.writeError(w, err)
			return
		}
		owner = organization
	}

	repo := &model.Repository{
		ID:            newRepoID(),
		Name:          req.Name,
		FullName:      owner.Login + "/" + req.Name,
		Description:   req.Description,
		Private:       req.Private,
		OwnerID:       owner.ID,
		OwnerType:     owner.Type,
		DefaultBranch: "main",
	}
	if err := h.store.CreateRepository(r.Context(), repo); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, repo)
}

func (h *Handler) GetRepository(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.RepositoryRead(r.Context(), repoID)
	if !middleware.WriteDecision(w, d) {
		return
	}

	repo, err := h.store.GetRepository(r.Context(), repoID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (h *Handler) DeleteRepository(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.RepositoryManage(r.Context(), repoID)
	if !middleware.WriteDecision(w, d) {
		return
	}

	if err := h.store.DeleteRepository(r.Context(), repoID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCollaborators(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.RepositoryRead(r.Context(), repoID)
	if !middleware.WriteDecision(w, d) {
		return
	}

	collabs, err := h.store.ListCollaborators(r.Context(), repoID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collabs)
}

func (h *Handler) PutCollaborator(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	userID := r.PathValue("user")
	az, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.RepositoryManage(r.Context(), repoID)
	if !middleware.WriteDecision(w, d) {
		return
	}

	var req struct {
		Permission model.PermissionLevel `json:"permission"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !req.Permission.Valid() {
		http.Error(w, "unknown permission level", http.StatusBadRequest)
		return
	}

	err := h.store.PutCollaborator(r.Context(), &model.Collaborator{
		RepositoryID: repoID,
		UserID:       userID,
		Permission:   req.Permission,
		InvitedBy:    account.ID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	userID := r.PathValue("user")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.RepositoryManage(r.Context(), repoID)
	if !middleware.WriteDecision(w, d) {
		return
	}

	if err := h.store.DeleteCollaborator(r.Context(), repoID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PutTeamAccess(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	teamID := r.PathValue("team")
	az, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.RepositoryManage(r.Context(), repoID)
	if !middleware.WriteDecision(w, d) {
		return
	}

	var req struct {
		Permission model.PermissionLevel `json:"permission"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !req.Permission.Valid() {
		http.Error(w, "unknown permission level", http.StatusBadRequest)
		return
	}

	err := h.store.PutTeamAccess(r.Context(), &model.TeamAccess{
		RepositoryID: repoID,
		TeamID:       teamID,
		Permission:   req.Permission,
		GrantedBy:    account.ID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) RemoveTeamAccess(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	teamID := r.PathValue("team")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.RepositoryManage(r.Context(), repoID)
	if !middleware.WriteDecision(w, d) {
		return
	}

	if err := h.store.DeleteTeamAccess(r.Context(), repoID, teamID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
