package commands

import (
	"context"
	"fmt"

	"github.com/gosuri/uitable"

	"git.home.luguber.info/inful/bbreport/internal/config"
	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
	"git.home.luguber.info/inful/bbreport/internal/issues"
)

// RuleCmd groups the known-issue rule commands.
type RuleCmd struct {
	Add    RuleAddCmd    `cmd:"" help:"Add a known-issue rule"`
	List   RuleListCmd   `cmd:"" help:"List known-issue rules"`
	Remove RuleRemoveCmd `cmd:"" help:"Remove every rule of an issue"`
}

// RuleAddCmd implements 'rule add'.
type RuleAddCmd struct {
	Issue   string `arg:"" help:"Issue identifier, e.g. issue1234"`
	Test    string `short:"t" help:"Regular expression over failed test names"`
	Message string `short:"m" help:"Regular expression over the build message"`
	Builder string `short:"b" help:"Regular expression over builder names"`
}

func (r *RuleAddCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, persist := openStore(ctx, cfg, g.Logger, false)
	if !persist {
		_ = store.Close()
		return errors.CacheError("rules are kept in the cache, which is unavailable").
			WithContext("path", cfg.Cache.Path).Build()
	}
	rt := &runtime{cfg: cfg, logger: g.Logger, store: store, persist: true}

	rule := config.IssueRule{ID: r.Issue, Test: r.Test, Message: r.Message, Builder: r.Builder}
	if err := issues.Add(ctx, store, rule); err != nil {
		_ = store.Close()
		return err
	}
	defer rt.close(ctx)
	fmt.Fprintf(g.Out, "Added rule for %s\n", r.Issue)
	return nil
}

// RuleListCmd implements 'rule list'.
type RuleListCmd struct{}

func (RuleListCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, _ := openStore(ctx, cfg, g.Logger, false)
	defer func() { _ = store.Close() }()
	if err := issues.Seed(ctx, store, cfg.Issues); err != nil {
		return err
	}

	rows, err := store.Rules(ctx)
	if err != nil {
		return errors.WrapError(err, errors.CategoryCache, "failed to read issue rules").Build()
	}
	if len(rows) == 0 {
		fmt.Fprintln(g.Out, "No rules defined.")
		return nil
	}
	table := uitable.New()
	table.MaxColWidth = 50
	table.AddRow("ISSUE", "TEST", "MESSAGE", "BUILDER")
	for _, r := range rows {
		table.AddRow(r.Issue, r.Test, r.Message, r.Builder)
	}
	fmt.Fprintln(g.Out, table)
	return nil
}

// RuleRemoveCmd implements 'rule remove'.
type RuleRemoveCmd struct {
	Issue string `arg:"" help:"Issue identifier"`
}

func (r *RuleRemoveCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, persist := openStore(ctx, cfg, g.Logger, false)
	rt := &runtime{cfg: cfg, logger: g.Logger, store: store, persist: persist}
	defer rt.close(ctx)

	n, err := issues.Remove(ctx, store, r.Issue)
	if err != nil {
		return err
	}
	fmt.Fprintf(g.Out, "Removed %d rule(s) for %s\n", n, r.Issue)
	return nil
}
