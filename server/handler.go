package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mscno/forgegate"
	"github.com/mscno/forgegate/authz"
	"github.com/mscno/forgegate/org"
	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/pkg/validate"
	"github.com/mscno/forgegate/server/middleware"
	"github.com/mscno/forgegate/store"
	"github.com/mscno/forgegate/tokens"
)

// Handler serves the organization and permission API.
type Handler struct {
	store  store.Store
	orgs   *org.Service
	tokens *tokens.Service
	logger *slog.Logger
}

func NewHandler(s store.Store, orgs *org.Service, tokenSvc *tokens.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: s, orgs: orgs, tokens: tokenSvc, logger: logger}
}

// Register wires all routes onto the server.
func (h *Handler) Register(s *Server) {
	s.HandleFunc("POST /api/v1/orgs", h.CreateOrganization)
	s.HandleFunc("GET /api/v1/orgs", h.ListOrganizations)
	s.HandleFunc("GET /api/v1/orgs/{slug}", h.GetOrganization)
	s.HandleFunc("PUT /api/v1/orgs/{slug}", h.UpdateOrganization)
	s.HandleFunc("DELETE /api/v1/orgs/{slug}", h.DeleteOrganization)

	s.HandleFunc("GET /api/v1/orgs/{slug}/members", h.ListMembers)
	s.HandleFunc("POST /api/v1/orgs/{slug}/members", h.AddMember)
	s.HandleFunc("PUT /api/v1/orgs/{slug}/members/{user}", h.UpdateMemberRole)
	s.HandleFunc("DELETE /api/v1/orgs/{slug}/members/{user}", h.RemoveMember)

	s.HandleFunc("GET /api/v1/orgs/{slug}/teams", h.ListTeams)
	s.HandleFunc("POST /api/v1/orgs/{slug}/teams", h.CreateTeam)
	s.HandleFunc("DELETE /api/v1/orgs/{slug}/teams/{team}", h.DeleteTeam)
	s.HandleFunc("GET /api/v1/orgs/{slug}/teams/{team}/members", h.ListTeamMembers)
	s.HandleFunc("POST /api/v1/orgs/{slug}/teams/{team}/members", h.AddTeamMember)
	s.HandleFunc("DELETE /api/v1/orgs/{slug}/teams/{team}/members/{user}", h.RemoveTeamMember)

	s.HandleFunc("POST /api/v1/can", h.Can)
	s.HandleFunc("GET /api/v1/repos/{id}/access", h.RepositoryAccess)
	h.registerRepositoryRoutes(s)

	s.HandleFunc("POST /api/v1/tokens", h.IssueToken)
	s.HandleFunc("GET /api/v1/tokens", h.ListTokens)
	s.HandleFunc("DELETE /api/v1/tokens/{id}", h.RevokeToken)
}

// authorizer builds the permission stack for the authenticated account on
// this request. The second return is false when no account is present.
func (h *Handler) authorizer(r *http.Request) (*forgegate.Authorizer, *model.Account, bool) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		return nil, nil, false
	}
	return forgegate.NewAuthorizer(h.store, authz.StaticIdentity{Account: account}, h.logger), account, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var vErr *validate.Error
	switch {
	case errors.As(err, &vErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrOrganizationNotFound),
		errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrMemberNotFound),
		errors.Is(err, store.ErrTeamNotFound),
		errors.Is(err, store.ErrTeamMemberNotFound),
		errors.Is(err, store.ErrRepositoryNotFound),
		errors.Is(err, store.ErrTokenNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrAccountExists),
		errors.Is(err, store.ErrTeamExists),
		errors.Is(err, store.ErrRepositoryExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, org.ErrNotOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error("request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	_, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name        string `json:"name"`
		Login       string `json:"login"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	created, err := h.orgs.CreateOrganization(r.Context(), req.Name, req.Login, account.ID, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	_, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	orgs, err := h.orgs.ListUserOrganizations(r.Context(), account.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.Permission(r.Context(), authz.OrgBySlug(slug), model.ActionRead, model.ResourceOrganization)
	if !middleware.WriteDecision(w, d) {
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, organization)
}

func (h *Handler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.Permission(r.Context(), authz.OrgBySlug(slug), model.ActionWrite, model.ResourceOrganization)
	if !middleware.WriteDecision(w, d) {
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req struct {
		Profile     model.Profile  `json:"profile"`
		Settings    model.Settings `json:"settings"`
		Description string         `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.orgs.UpdateComplete(r.Context(), organization.ID, req.Profile, req.Settings, req.Description); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	_, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.orgs.DeleteOrganization(r.Context(), organization.ID, account.ID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.Permission(r.Context(), authz.OrgBySlug(slug), model.ActionRead, model.ResourceMember)
	if !middleware.WriteDecision(w, d) {
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	members, err := h.orgs.ListMembers(r.Context(), organization.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	az, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.OrgAdmin(r.Context(), authz.OrgBySlug(slug))
	if !middleware.WriteDecision(w, d) {
		return
	}

	var req struct {
		UserID string        `json:"user_id"`
		Role   model.OrgRole `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.orgs.AddMember(r.Context(), organization.ID, req.UserID, req.Role, account.ID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	userID := r.PathValue("user")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.OrgAdmin(r.Context(), authz.OrgBySlug(slug))
	if !middleware.WriteDecision(w, d) {
		return
	}

	var req struct {
		Role model.OrgRole `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.orgs.UpdateMemberRole(r.Context(), organization.ID, userID, req.Role); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	userID := r.PathValue("user")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.OrgAdmin(r.Context(), authz.OrgBySlug(slug))
	if !middleware.WriteDecision(w, d) {
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.orgs.RemoveMember(r.Context(), organization.ID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.Permission(r.Context(), authz.OrgBySlug(slug), model.ActionRead, model.ResourceTeam)
	if !middleware.WriteDecision(w, d) {
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	teams, err := h.orgs.ListTeams(r.Context(), organization.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.OrgAdmin(r.Context(), authz.OrgBySlug(slug))
	if !middleware.WriteDecision(w, d) {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	team, err := h.orgs.CreateTeam(r.Context(), organization.ID, req.Name, req.Slug, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	teamID := r.PathValue("team")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.TeamManage(r.Context(), authz.OrgBySlug(slug), teamID)
	if !middleware.WriteDecision(w, d) {
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.orgs.DeleteTeam(r.Context(), organization.ID, teamID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListTeamMembers(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	teamID := r.PathValue("team")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.Permission(r.Context(), authz.OrgBySlug(slug), model.ActionRead, model.ResourceTeam)
	if !middleware.WriteDecision(w, d) {
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	members, err := h.orgs.ListTeamMembers(r.Context(), organization.ID, teamID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	teamID := r.PathValue("team")
	az, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.TeamManage(r.Context(), authz.OrgBySlug(slug), teamID)
	if !middleware.WriteDecision(w, d) {
		return
	}

	var req struct {
		UserID string         `json:"user_id"`
		Role   model.TeamRole `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = model.TeamRoleMember
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.orgs.AddTeamMember(r.Context(), organization.ID, teamID, req.UserID, req.Role, account.ID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	teamID := r.PathValue("team")
	userID := r.PathValue("user")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	d := az.Guards.TeamManage(r.Context(), authz.OrgBySlug(slug), teamID)
	if !middleware.WriteDecision(w, d) {
		return
	}

	organization, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.orgs.RemoveTeamMember(r.Context(), organization.ID, teamID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Can answers a permission probe for the authenticated account.
func (h *Handler) Can(w http.ResponseWriter, r *http.Request) {
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Action   model.Action   `json:"action"`
		Resource model.Resource `json:"resource"`
		OrgSlug  string         `json:"org_slug"`
		OrgID    string         `json:"org_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !req.Action.Valid() || !req.Resource.Valid() {
		http.Error(w, "unknown action or resource", http.StatusBadRequest)
		return
	}

	switch {
	case req.OrgSlug != "":
		if err := az.Context.SetCurrentOrganizationBySlug(r.Context(), req.OrgSlug); err != nil {
			h.writeError(w, err)
			return
		}
	case req.OrgID != "":
		if err := az.Context.SetCurrentOrganization(r.Context(), req.OrgID); err != nil {
			h.writeError(w, err)
			return
		}
	}

	allowed := az.Evaluator.CanCtx(r.Context(), req.Action, req.Resource)
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// RepositoryAccess probes the three repository permission tiers at once.
func (h *Handler) RepositoryAccess(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("id")
	az, _, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"read":   az.Evaluator.CanAccessRepository(r.Context(), repoID),
		"write":  az.Evaluator.CanWriteRepository(r.Context(), repoID),
		"manage": az.Evaluator.CanManageRepository(r.Context(), repoID),
	})
}

func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	_, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	raw, record, err := h.tokens.Issue(r.Context(), account.ID, req.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": raw, "id": record.ID})
}

func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	_, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	list, err := h.tokens.List(r.Context(), account.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// Hashes stay server-side.
	type tokenInfo struct {
		ID         string `json:"id"`
		Note       string `json:"note,omitempty"`
		CreatedAt  string `json:"created_at"`
		LastUsedAt string `json:"last_used_at,omitempty"`
	}
	out := make([]tokenInfo, 0, len(list))
	for _, tok := range list {
		info := tokenInfo{ID: tok.ID, Note: tok.Note, CreatedAt: tok.CreatedAt.Format(time.RFC3339)}
		if !tok.LastUsedAt.IsZero() {
			info.LastUsedAt = tok.LastUsedAt.Format(time.RFC3339)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	tokenID := r.PathValue("id")
	_, account, ok := h.authorizer(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if err := h.tokens.Revoke(r.Context(), account.ID, tokenID); err != nil {
		if errors.Is(err, tokens.ErrInvalidToken) {
			http.Error(w, "permission denied", http.StatusForbidden)
			return
		}
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
