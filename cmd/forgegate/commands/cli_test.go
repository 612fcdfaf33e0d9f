package commands

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/mscno/forgegate/pkg/auth"
	"github.com/mscno/forgegate/pkg/oskeyring"
)

func newTestCtx(t *testing.T) *cliCtx {
	t.Helper()
	return &cliCtx{
		Context:   context.Background(),
		ServerURL: "http://localhost:8080",
		Keyring:   oskeyring.NewMemoryService(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestApiToken_EnvWins(t *testing.T) {
	ctx := newTestCtx(t)
	assert.NoError(t, ctx.Keyring.Set(auth.ServiceName, apiTokenKey, "from-keyring"))
	t.Setenv("FORGEGATE_TOKEN", "from-env")

	token, err := apiToken(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "from-env", token)
}

func TestApiToken_FallsBackToKeyring(t *testing.T) {
	ctx := newTestCtx(t)
	t.Setenv("FORGEGATE_TOKEN", "")
	assert.NoError(t, ctx.Keyring.Set(auth.ServiceName, apiTokenKey, "from-keyring"))

	token, err := apiToken(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "from-keyring", token)
}

func TestApiToken_MissingEverywhere(t *testing.T) {
	ctx := newTestCtx(t)
	t.Setenv("FORGEGATE_TOKEN", "")

	_, err := apiToken(ctx)
	assert.Error(t, err)
}

func TestTokenStoreAndClear(t *testing.T) {
	ctx := newTestCtx(t)
	t.Setenv("FORGEGATE_TOKEN", "")

	store := TokenStoreCmd{Token: "fgt_abc_def"}
	assert.NoError(t, store.Run(ctx))

	token, err := apiToken(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "fgt_abc_def", token)

	clear := TokenClearCmd{}
	assert.NoError(t, clear.Run(ctx))
	_, err = apiToken(ctx)
	assert.Error(t, err)

	// Clearing twice is fine.
	assert.NoError(t, clear.Run(ctx))
}
