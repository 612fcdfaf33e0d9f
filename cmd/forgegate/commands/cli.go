package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/mscno/forgegate/pkg/oskeyring"
)

type cliCtx struct {
	context.Context
	Debug     bool
	ServerURL string
	Keyring   oskeyring.Service
	Logger    *slog.Logger
}

type cli struct {
	Debug  bool   `help:"Enable debug logging" short:"d"`
	Server string `help:"Forgegate server URL" default:"http://localhost:8080" env:"FORGEGATE_SERVER"`

	Login  LoginCmd  `cmd:"" help:"Authenticate with GitHub"`
	Logout LogoutCmd `cmd:"" help:"Remove stored credentials"`
	Whoami WhoamiCmd `cmd:"" help:"Show the authenticated user"`

	Org    OrgCmd    `cmd:"" help:"Manage organizations"`
	Member MemberCmd `cmd:"" help:"Manage organization members"`
	Team   TeamCmd   `cmd:"" help:"Manage teams"`

	Can  CanCmd  `cmd:"" help:"Probe a permission"`
	Repo RepoCmd `cmd:"" help:"Probe repository access"`

	Token TokenCmd `cmd:"" help:"Manage personal access tokens"`

	Version kong.VersionFlag `help:"Show version"`
}

func Execute(version string) {
	_ = godotenv.Load()

	var cli cli
	ctx := kong.Parse(&cli,
		kong.UsageOnError(),
		kong.Name("forgegate"),
		kong.Description("forgegate manages organizations, teams and permissions"),
		kong.Vars{"version": version},
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cli.Debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	err := ctx.Run(&cliCtx{
		Context:   context.Background(),
		Debug:     cli.Debug,
		ServerURL: cli.Server,
		Keyring:   oskeyring.NewDefaultService(),
		Logger:    logger,
	})
	ctx.FatalIfErrorf(err)
}
