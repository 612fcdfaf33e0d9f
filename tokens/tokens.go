// Package tokens issues and verifies personal access tokens. A token is
// presented as fgt_<id>_<secret>; only the bcrypt hash of the secret half is
// persisted, so a leaked store never yields usable tokens.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/store"
)

const tokenPrefix = "fgt"

var ErrInvalidToken = errors.New("invalid access token")

// Service manages personal access tokens.
type Service struct {
	tokens   store.TokenStore
	accounts store.AccountStore
	logger   *slog.Logger
}

func NewService(tokens store.TokenStore, accounts store.AccountStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tokens: tokens, accounts: accounts, logger: logger}
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}

// Issue creates a token for the user and returns the one-time plaintext
// form along with the stored record. The plaintext cannot be recovered later.
func (s *Service) Issue(ctx context.Context, userID, note string) (string, *model.AccessToken, error) {
	id := randomHex(8)
	secret := randomHex(24)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hashing token secret: %w", err)
	}

	token := &model.AccessToken{
		ID:         id,
		UserID:     userID,
		Note:       note,
		SecretHash: hash,
	}
	if err := s.tokens.PutToken(ctx, token); err != nil {
		return "", nil, fmt.Errorf("storing token: %w", err)
	}
	return fmt.Sprintf("%s_%s_%s", tokenPrefix, id, secret), token, nil
}

// Verify checks a presented token and returns the account it belongs to.
// Malformed, unknown and mismatched tokens all return ErrInvalidToken; the
// caller cannot distinguish which part failed.
func (s *Service) Verify(ctx context.Context, raw string) (*model.Account, error) {
	parts := strings.SplitN(raw, "_", 3)
	if len(parts) != 3 || parts[0] != tokenPrefix || parts[1] == "" || parts[2] == "" {
		return nil, ErrInvalidToken
	}

	record, err := s.tokens.GetToken(ctx, parts[1])
	if err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("fetching token: %w", err)
	}

	if bcrypt.CompareHashAndPassword(record.SecretHash, []byte(parts[2])) != nil {
		return nil, ErrInvalidToken
	}

	record.LastUsedAt = time.Now()
	if err := s.tokens.PutToken(ctx, record); err != nil {
		// Usage tracking must not fail authentication.
		s.logger.WarnContext(ctx, "updating token last-used time failed", "token_id", record.ID, "error", err)
	}

	account, err := s.accounts.GetAccount(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("fetching token account: %w", err)
	}
	return account, nil
}

// Revoke deletes a token. Only the owning user may revoke it.
func (s *Service) Revoke(ctx context.Context, userID, tokenID string) error {
	record, err := s.tokens.GetToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if record.UserID != userID {
		return ErrInvalidToken
	}
	return s.tokens.DeleteToken(ctx, tokenID)
}

// List returns the user's token records (hashes included, plaintext never).
func (s *Service) List(ctx context.Context, userID string) ([]*model.AccessToken, error) {
	return s.tokens.ListTokensByUser(ctx, userID)
}
