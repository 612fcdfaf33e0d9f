package commands

import (
	"fmt"

	"github.com/mscno/forgegate/pkg/model"
)

type CanCmd struct {
	Action   string `arg:"" help:"Action: read, write, admin or delete"`
	Resource string `arg:"" help:"Resource: organization, member, team or repository"`
	Org      string `help:"Organization login to evaluate against" short:"o"`
}

func (c *CanCmd) Run(ctx *cliCtx) error {
	action := model.Action(c.Action)
	resource := model.Resource(c.Resource)
	if !action.Valid() {
		return fmt.Errorf("unknown action %q", c.Action)
	}
	if !resource.Valid() {
		return fmt.Errorf("unknown resource %q", c.Resource)
	}

	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	allowed, err := api.Can(ctx, c.Org, action, resource)
	if err != nil {
		return err
	}
	if allowed {
		fmt.Println("allowed")
		return nil
	}
	fmt.Println("denied")
	return nil
}

type RepoCmd struct {
	Access RepoAccessCmd `cmd:"" help:"Probe repository access levels"`
}

type RepoAccessCmd struct {
	RepoID string `arg:"" help:"Repository ID"`
}

func (c *RepoAccessCmd) Run(ctx *cliCtx) error {
	api, err := buildClient(ctx)
	if err != nil {
		return err
	}
	access, err := api.RepositoryAccess(ctx, c.RepoID)
	if err != nil {
		return err
	}
	fmt.Printf("read:   %v\n", access.Read)
	fmt.Printf("write:  %v\n", access.Write)
	fmt.Printf("manage: %v\n", access.Manage)
	return nil
}
