package commands

import (
	"fmt"
	"os"

	"github.com/mscno/forgegate/pkg/auth"
)

type LoginCmd struct {
	ClientID string `help:"GitHub OAuth client ID" env:"FORGEGATE_GITHUB_CLIENT_ID"`
}

func (c *LoginCmd) Run(ctx *cliCtx) error {
	provider := auth.NewGithubProvider(auth.Config{GithubClientID: c.ClientID}, ctx.Keyring)
	if err := provider.Login(ctx); err != nil {
		return err
	}
	login, err := provider.UserLogin(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", login)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *cliCtx) error {
	provider := auth.NewGithubProvider(auth.Config{}, ctx.Keyring)
	if err := provider.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx *cliCtx) error {
	provider := auth.NewGithubProvider(auth.Config{}, ctx.Keyring)
	login, err := provider.UserLogin(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "not logged in")
		return err
	}
	id, err := provider.UserID(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", login, id)
	return nil
}
