package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/mscno/forgegate/pkg/oskeyring"
)

var (
	ErrTokenNotFound    = errors.New("session token not found in keyring")
	ErrUserInfoNotFound = errors.New("user info not found in keyring")
)

// GithubProvider authenticates through the GitHub device flow and keeps the
// token plus user identity in the keyring.
type GithubProvider struct {
	config  Config
	keyring oskeyring.Service
}

func NewGithubProvider(cfg Config, keyring oskeyring.Service) *GithubProvider {
	return &GithubProvider{config: cfg, keyring: keyring}
}

func (p *GithubProvider) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: p.config.GithubClientID,
		Scopes:   []string{"read:user"},
		Endpoint: github.Endpoint,
	}
}

// Login runs the device flow: prints the verification code, polls for the
// token, fetches the user identity and stores everything in the keyring.
func (p *GithubProvider) Login(ctx context.Context) error {
	if p.config.GithubClientID == "" {
		return errors.New("GitHub client ID is required for authentication")
	}

	cfg := p.oauthConfig()
	deviceCode, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return fmt.Errorf("requesting device code: %w", err)
	}

	fmt.Printf("Please visit %s and enter the code: %s\n", deviceCode.VerificationURI, deviceCode.UserCode)
	fmt.Println("Waiting for authentication to complete...")

	token, err := cfg.DeviceAccessToken(ctx, deviceCode)
	if err != nil {
		return fmt.Errorf("polling for access token: %w", err)
	}

	userID, userLogin, err := fetchGithubUser(ctx, token.AccessToken)
	if err != nil {
		return fmt.Errorf("fetching user info: %w", err)
	}

	if err := p.keyring.Set(ServiceName, SessionToken, token.AccessToken); err != nil {
		return fmt.Errorf("storing token in keyring: %w", err)
	}
	if err := p.keyring.Set(ServiceName, UserID, userID); err != nil {
		return fmt.Errorf("storing user ID in keyring: %w", err)
	}
	if err := p.keyring.Set(ServiceName, UserLogin, userLogin); err != nil {
		return fmt.Errorf("storing user login in keyring: %w", err)
	}

	fmt.Printf("Logged in as %s.\n", userLogin)
	return nil
}

func fetchGithubUser(ctx context.Context, token string) (id, login string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user", nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("calling GitHub API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", "", fmt.Errorf("decoding GitHub user info: %w", err)
	}
	if user.ID == 0 || user.Login == "" {
		return "", "", errors.New("incomplete user info in GitHub response")
	}
	return fmt.Sprintf("%d", user.ID), user.Login, nil
}

func (p *GithubProvider) Token(ctx context.Context) (string, error) {
	token, err := p.keyring.Get(ServiceName, SessionToken)
	if err != nil {
		if errors.Is(err, oskeyring.ErrNotFound) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("reading token from keyring: %w", err)
	}
	return token, nil
}

func (p *GithubProvider) UserID(ctx context.Context) (string, error) {
	id, err := p.keyring.Get(ServiceName, UserID)
	if err != nil {
		if errors.Is(err, oskeyring.ErrNotFound) {
			return "", ErrUserInfoNotFound
		}
		return "", fmt.Errorf("reading user ID from keyring: %w", err)
	}
	return id, nil
}

func (p *GithubProvider) UserLogin(ctx context.Context) (string, error) {
	login, err := p.keyring.Get(ServiceName, UserLogin)
	if err != nil {
		if errors.Is(err, oskeyring.ErrNotFound) {
			return "", ErrUserInfoNotFound
		}
		return "", fmt.Errorf("reading user login from keyring: %w", err)
	}
	return login, nil
}

// Logout removes all stored credentials. Absent entries are not an error.
func (p *GithubProvider) Logout(ctx context.Context) error {
	for _, key := range []string{SessionToken, UserID, UserLogin} {
		if err := p.keyring.Delete(ServiceName, key); err != nil && !errors.Is(err, oskeyring.ErrNotFound) {
			return fmt.Errorf("deleting %s from keyring: %w", key, err)
		}
	}
	return nil
}

var _ Provider = (*GithubProvider)(nil)
