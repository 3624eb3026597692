package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bbreport/cmd/bbreport/commands"
	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
	"git.home.luguber.info/inful/bbreport/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{}
	ctx := kong.Parse(&cli,
		kong.Name("bbreport"),
		kong.Description("Report the status of buildbot builders and their recent builds."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	if err := ctx.Run(global, &cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
