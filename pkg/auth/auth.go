// Package auth handles CLI authentication: the GitHub device flow for
// interactive login, with the resulting credentials held in the OS keyring.
package auth

import "context"

const (
	ServiceName  = "forgegate"
	SessionToken = "session_token"
	UserID       = "user_id"
	UserLogin    = "user_login"
)

// Provider is the authentication contract the CLI works against.
type Provider interface {
	// Login runs the authentication flow and stores the credentials.
	Login(ctx context.Context) error
	// Token returns the stored session token.
	Token(ctx context.Context) (string, error)
	// UserID returns the stored user ID.
	UserID(ctx context.Context) (string, error)
	// UserLogin returns the stored user login.
	UserLogin(ctx context.Context) (string, error)
	// Logout removes the stored credentials.
	Logout(ctx context.Context) error
}

// Config holds provider configuration.
type Config struct {
	GithubClientID string
}
