package commands

import (
	"fmt"

	"github.com/mscno/forgegate/pkg/model"
)

type OrgCmd struct {
	Create OrgCreateCmd `cmd:"" help:"Create an organization"`
	List   OrgListCmd   `cmd:"" help:"List your organizations"`
	Get    OrgGetCmd    `cmd:"" help:"Show an organization"`
	Delete OrgDeleteCmd `cmd:"" help:"Delete an organization (owner only)"`
}

type OrgCreateCmd struct {
	Login       string `arg:"" help:"Unique organization login (slug)"`
	Name        string `help:"Display name (defaults to the login)"`
	Description string `help:"Organization description"`
}

func (c *OrgCreateCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	name := c.Name
	if name == "" {
		name = c.Login
	}
	organization, err := api.CreateOrganization(ctx, name, c.Login, c.Description)
	if err != nil {
		return err
	}
	fmt.Printf("Created organization %s (%s)\n", organization.Login, organization.ID)
	return nil
}

type OrgListCmd struct{}

func (c *OrgListCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	orgs, err := api.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	if len(orgs) == 0 {
		fmt.Println("No organizations")
		return nil
	}
	for _, o := range orgs {
		fmt.Printf("%s\t%s\n", o.Login, o.Profile.Name)
	}
	return nil
}

type OrgGetCmd struct {
	Slug string `arg:"" help:"Organization login"`
}

func (c *OrgGetCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	organization, err := api.GetOrganization(ctx, c.Slug)
	if err != nil {
		return err
	}
	fmt.Printf("Login:       %s\n", organization.Login)
	fmt.Printf("ID:          %s\n", organization.ID)
	fmt.Printf("Name:        %s\n", organization.Profile.Name)
	if organization.Description != "" {
		fmt.Printf("Description: %s\n", organization.Description)
	}
	return nil
}

type OrgDeleteCmd struct {
	Slug string `arg:"" help:"Organization login"`
}

func (c *OrgDeleteCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	if err := api.DeleteOrganization(ctx, c.Slug); err != nil {
		return err
	}
	fmt.Printf("Deleted organization %s\n", c.Slug)
	return nil
}

type MemberCmd struct {
	List   MemberListCmd   `cmd:"" help:"List organization members"`
	Add    MemberAddCmd    `cmd:"" help:"Add a member"`
	Remove MemberRemoveCmd `cmd:"" help:"Remove a member"`
}

type MemberListCmd struct {
	Org string `arg:"" help:"Organization login"`
}

func (c *MemberListCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	members, err := api.ListMembers(ctx, c.Org)
	if err != nil {
		return err
	}
	for _, m := range members {
		fmt.Printf("%s\t%s\n", m.UserID, m.Role)
	}
	return nil
}

type MemberAddCmd struct {
	Org    string `arg:"" help:"Organization login"`
	UserID string `arg:"" help:"Account ID of the user to add"`
	Role   string `help:"Member role (defaults to the organization's default role)"`
}

func (c *MemberAddCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	if err := api.AddMember(ctx, c.Org, c.UserID, model.OrgRole(c.Role)); err != nil {
		return err
	}
	fmt.Printf("Added %s to %s\n", c.UserID, c.Org)
	return nil
}

type MemberRemoveCmd struct {
	Org    string `arg:"" help:"Organization login"`
	UserID string `arg:"" help:"Account ID of the member to remove"`
}

func (c *MemberRemoveCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	if err := api.RemoveMember(ctx, c.Org, c.UserID); err != nil {
		return err
	}
	fmt.Printf("Removed %s from %s\n", c.UserID, c.Org)
	return nil
}
