package commands

import "fmt"

type TeamCmd struct {
	List   TeamListCmd   `cmd:"" help:"List an organization's teams"`
	Create TeamCreateCmd `cmd:"" help:"Create a team"`
}

type TeamListCmd struct {
	Org string `arg:"" help:"Organization login"`
}

func (c *TeamListCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	teams, err := api.ListTeams(ctx, c.Org)
	if err != nil {
		return err
	}
	if len(teams) == 0 {
		fmt.Println("No teams")
		return nil
	}
	for _, t := range teams {
		fmt.Printf("%s\t%s\t%s\n", t.Slug, t.ID, t.Name)
	}
	return nil
}

type TeamCreateCmd struct {
	Org         string `arg:"" help:"Organization login"`
	Slug        string `arg:"" help:"Team slug"`
	Name        string `help:"Display name (defaults to the slug)"`
	Description string `help:"Team description"`
}

func (c *TeamCreateCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	name := c.Name
	if name == "" {
		name = c.Slug
	}
	team, err := api.CreateTeam(ctx, c.Org, name, c.Slug, c.Description)
	if err != nil {
		return err
	}
	fmt.Printf("Created team %s (%s)\n", team.Slug, team.ID)
	return nil
}
