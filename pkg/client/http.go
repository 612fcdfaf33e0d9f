package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mscno/forgegate/pkg/model"
)

// HTTPClient talks JSON to the forgegate server. Every request carries the
// configured bearer token.
type HTTPClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

type Config struct {
	ServerURL string
	AuthToken string
	Logger    *slog.Logger
}

func NewHTTPClient(config Config) *HTTPClient {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(config.ServerURL, "/"),
		authToken:  config.AuthToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     config.Logger,
	}
}

var _ Client = (*HTTPClient)(nil)

// do issues the request and decodes the response into out when out is
// non-nil. Non-2xx responses become errors carrying the server's message.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.DebugContext(ctx, "request failed",
			"method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%s %s: %s (%d)", method, path, strings.TrimSpace(string(msg)), resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *HTTPClient) CreateOrganization(ctx context.Context, name, login, description string) (*model.Account, error) {
	var out model.Account
	err := c.do(ctx, http.MethodPost, "/api/v1/orgs", map[string]string{
		"name": name, "login": login, "description": description,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListOrganizations(ctx context.Context) ([]*model.Account, error) {
	var out []*model.Account
	if err := c.do(ctx, http.MethodGet, "/api/v1/orgs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetOrganization(ctx context.Context, slug string) (*model.Account, error) {
	var out model.Account
	if err := c.do(ctx, http.MethodGet, "/api/v1/orgs/"+url.PathEscape(slug), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteOrganization(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/orgs/"+url.PathEscape(slug), nil, nil)
}

func (c *HTTPClient) ListMembers(ctx context.Context, slug string) ([]*model.Member, error) {
	var out []*model.Member
	if err := c.do(ctx, http.MethodGet, "/api/v1/orgs/"+url.PathEscape(slug)+"/members", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) AddMember(ctx context.Context, slug, userID string, role model.OrgRole) error {
	return c.do(ctx, http.MethodPost, "/api/v1/orgs/"+url.PathEscape(slug)+"/members", map[string]any{
		"user_id": userID, "role": role,
	}, nil)
}

func (c *HTTPClient) RemoveMember(ctx context.Context, slug, userID string) error {
	return c.do(ctx, http.MethodDelete,
		"/api/v1/orgs/"+url.PathEscape(slug)+"/members/"+url.PathEscape(userID), nil, nil)
}

func (c *HTTPClient) ListTeams(ctx context.Context, slug string) ([]*model.Team, error) {
	var out []*model.Team
	if err := c.do(ctx, http.MethodGet, "/api/v1/orgs/"+url.PathEscape(slug)+"/teams", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateTeam(ctx context.Context, orgSlug, name, teamSlug, description string) (*model.Team, error) {
	var out model.Team
	err := c.do(ctx, http.MethodPost, "/api/v1/orgs/"+url.PathEscape(orgSlug)+"/teams", map[string]string{
		"name": name, "slug": teamSlug, "description": description,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Can(ctx context.Context, orgSlug string, action model.Action, resource model.Resource) (bool, error) {
	var out struct {
		Allowed bool `json:"allowed"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/can", map[string]any{
		"action": action, "resource": resource, "org_slug": orgSlug,
	}, &out)
	if err != nil {
		return false, err
	}
	return out.Allowed, nil
}

func (c *HTTPClient) RepositoryAccess(ctx context.Context, repoID string) (RepositoryAccess, error) {
	var out RepositoryAccess
	err := c.do(ctx, http.MethodGet, "/api/v1/repos/"+url.PathEscape(repoID)+"/access", nil, &out)
	return out, err
}

func (c *HTTPClient) IssueToken(ctx context.Context, note string) (string, string, error) {
	var out struct {
		Token string `json:"token"`
		ID    string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/tokens", map[string]string{"note": note}, &out)
	if err != nil {
		return "", "", err
	}
	return out.Token, out.ID, nil
}

func (c *HTTPClient) RevokeToken(ctx context.Context, tokenID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tokens/"+url.PathEscape(tokenID), nil, nil)
}
