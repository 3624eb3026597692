package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/bbreport/internal/config"
	"git.home.luguber.info/inful/bbreport/internal/fleet"
	"git.home.luguber.info/inful/bbreport/internal/issues"
	"git.home.luguber.info/inful/bbreport/internal/logfields"
	"git.home.luguber.info/inful/bbreport/internal/report"
)

// SelectionFlags narrow the builders and builds a command reports on.
type SelectionFlags struct {
	Name     string   `short:"n" help:"Only builders whose name matches this case-insensitive glob"`
	Branch   string   `short:"b" help:"Only builders of this branch"`
	Failures []string `short:"f" name:"failures" sep:"none" help:"Only builds whose failed tests include this test (repeatable)"`
}

func (s SelectionFlags) selection() fleet.Selection {
	return fleet.Selection{Name: s.Name, Branch: s.Branch, Failures: s.Failures}
}

// ReportCmd implements the 'report' command.
type ReportCmd struct {
	SelectionFlags `embed:""`

	Build       int    `help:"Inspect a single build number" default:"-1"`
	Builds      int    `short:"k" help:"Recent builds per builder; overrides report.builds"`
	Format      string `short:"o" help:"Output format (table|json|yaml); overrides report.format"`
	Color       string `help:"Color mode (auto|always|never); overrides report.color"`
	CacheOnly   bool   `name:"cache-only" help:"Report from the cache without contacting the server"`
	NoCache     bool   `name:"no-cache" help:"Neither read nor write the cache"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics of this run to a textfile"`
}

func (r *ReportCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	format := cfg.Report.Format
	if r.Format != "" {
		if format, err = config.ParseOutputFormat(r.Format); err != nil {
			return err
		}
	}
	color := cfg.Report.Color
	if r.Color != "" {
		if color, err = config.ParseColorMode(r.Color); err != nil {
			return err
		}
	}

	rt, err := newRuntime(ctx, g, cfg, runtimeOptions{cacheOnly: r.CacheOnly, noCache: r.NoCache, builds: r.Builds})
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))

	return r.run(ctx, rt, report.Options{
		Format: format,
		Color:  report.ColorEnabled(color, os.Stdout),
	}, g)
}

func (r *ReportCmd) run(ctx context.Context, rt *runtime, opts report.Options, g *Global) error {
	sel := r.selection()
	if r.Build >= 0 {
		n := r.Build
		sel.Build = &n
	}

	if !r.CacheOnly {
		if err := rt.fleet.Refresh(ctx); err != nil {
			if len(rt.fleet.Builders()) == 0 {
				return err
			}
			rt.logger.Warn("Builder list unavailable, using cached list", logfields.Error(err))
		}
	}

	res, err := rt.fleet.Collect(ctx, sel)
	if err != nil {
		return err
	}

	if opts.Issues, err = issues.Load(ctx, rt.store); err != nil {
		rt.logger.Warn("Issue rules unavailable", logfields.Error(err))
	}
	if err := report.New(g.Out, opts).Render(res.Reports); err != nil {
		return err
	}

	if r.MetricsFile != "" {
		if err := rt.recorder.WriteTextfile(r.MetricsFile); err != nil {
			rt.logger.Warn("Failed to write metrics file", logfields.Path(r.MetricsFile), logfields.Error(err))
		}
	}
	for _, e := range res.Errors {
		rt.logger.Warn("Build could not be classified", logfields.Error(e))
	}
	return res.Err()
}
