package commands

import (
	"errors"
	"fmt"

	"github.com/mscno/forgegate/pkg/auth"
	"github.com/mscno/forgegate/pkg/oskeyring"
)

type TokenCmd struct {
	Create TokenCreateCmd `cmd:"" help:"Issue a new access token"`
	Revoke TokenRevokeCmd `cmd:"" help:"Revoke an access token"`
	Store  TokenStoreCmd  `cmd:"" help:"Store an access token in the OS keyring"`
	Clear  TokenClearCmd  `cmd:"" help:"Remove the stored access token"`
}

type TokenCreateCmd struct {
	Note  string `help:"What the token is for"`
	Store bool   `help:"Store the new token in the OS keyring" short:"s"`
}

func (c *TokenCreateCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	token, id, err := api.IssueToken(ctx, c.Note)
	if err != nil {
		return err
	}
	// The plaintext is shown exactly once; the server keeps only a hash.
	fmt.Printf("Token ID: %s\n", id)
	fmt.Printf("Token:    %s\n", token)
	if c.Store {
		if err := ctx.Keyring.Set(auth.ServiceName, apiTokenKey, token); err != nil {
			return fmt.Errorf("storing token in keyring: %w", err)
		}
		fmt.Println("Token stored in keyring")
	}
	return nil
}

type TokenRevokeCmd struct {
	ID string `arg:"" help:"Token ID to revoke"`
}

func (c *TokenRevokeCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	if err := api.RevokeToken(ctx, c.ID); err != nil {
		return err
	}
	fmt.Printf("Revoked token %s\n", c.ID)
	return nil
}

type TokenStoreCmd struct {
	Token string `arg:"" help:"Access token to store"`
}

func (c *TokenStoreCmd) Run(ctx *cliCtx) error {
	if err := ctx.Keyring.Set(auth.ServiceName, apiTokenKey, c.Token); err != nil {
		return fmt.Errorf("storing token in keyring: %w", err)
	}
	fmt.Println("Token stored in keyring")
	return nil
}

type TokenClearCmd struct{}

func (c *TokenClearCmd) Run(ctx *cliCtx) error {
	if err := ctx.Keyring.Delete(auth.ServiceName, apiTokenKey); err != nil && !errors.Is(err, oskeyring.ErrNotFound) {
		return err
	}
	fmt.Println("Token removed from keyring")
	return nil
}
