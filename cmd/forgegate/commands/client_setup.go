package commands

import (
	"errors"
	"os"

	"github.com/mscno/forgegate/pkg/auth"
	"github.com/mscno/forgegate/pkg/client"
	"github.com/mscno/forgegate/pkg/oskeyring"
)

// apiTokenKey is the keyring entry holding the forgegate access token the
// CLI authenticates API calls with. It is distinct from the GitHub session
// token stored by the login flow.
const apiTokenKey = "api_token"

// apiToken resolves the access token for server calls: the FORGEGATE_TOKEN
// environment variable wins, then the keyring.
func apiToken(ctx *cliCtx) (string, error) {
	if token := os.Getenv("FORGEGATE_TOKEN"); token != "" {
		return token, nil
	}
	token, err := ctx.Keyring.Get(auth.ServiceName, apiTokenKey)
	if err != nil {
		if errors.Is(err, oskeyring.ErrNotFound) {
			return "", errors.New("no access token configured: set FORGEGATE_TOKEN or run 'forgegate token store'")
		}
		return "", err
	}
	return token, nil
}

// buildClient constructs an authenticated API client.
func buildClient(ctx *cliCtx) (client.Client, error) {
	token, err := apiToken(ctx)
	if err != nil {
		return nil, err
	}
	return client.NewHTTPClient(client.Config{
		ServerURL: ctx.ServerURL,
		AuthToken: token,
		Logger:    ctx.Logger,
	}), nil
}
