package tokens

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/mscno/forgegate/pkg/model"
	"github.com/mscno/forgegate/store"
)

func newService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	assert.NoError(t, s.CreateAccount(context.Background(), &model.Account{ID: "u1", Type: model.AccountTypeUser, Login: "alice"}))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(s, s, logger), s
}

func TestService_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	raw, record, err := svc.Issue(ctx, "u1", "laptop")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "fgt_"))
	assert.Equal(t, "laptop", record.Note)
	// The plaintext secret is never stored.
	assert.False(t, strings.Contains(string(record.SecretHash), strings.SplitN(raw, "_", 3)[2]))

	account, err := svc.Verify(ctx, raw)
	assert.NoError(t, err)
	assert.Equal(t, "u1", account.ID)

	// Verification stamps last-used.
	tokens, err := svc.List(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(tokens))
	assert.NotZero(t, tokens[0].LastUsedAt)
}

func TestService_VerifyRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	raw, _, err := svc.Issue(ctx, "u1", "")
	assert.NoError(t, err)

	for _, bad := range []string{
		"",
		"fgt",
		"fgt_onlyid",
		"nope_" + strings.TrimPrefix(raw, "fgt_"),
		raw + "tampered",
		"fgt_unknownid_secret",
	} {
		_, err := svc.Verify(ctx, bad)
		assert.True(t, errors.Is(err, ErrInvalidToken), "expected rejection for %q", bad)
	}
}

func TestService_Revoke(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	raw, record, err := svc.Issue(ctx, "u1", "")
	assert.NoError(t, err)

	// A different user cannot revoke it.
	err = svc.Revoke(ctx, "u2", record.ID)
	assert.True(t, errors.Is(err, ErrInvalidToken))
	_, err = svc.Verify(ctx, raw)
	assert.NoError(t, err)

	// The owner can.
	assert.NoError(t, svc.Revoke(ctx, "u1", record.ID))
	_, err = svc.Verify(ctx, raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}
