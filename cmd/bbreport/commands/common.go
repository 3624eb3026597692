package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bbreport/internal/config"
)

// Global holds state shared by all commands.
type Global struct {
	Logger *slog.Logger
	// Level is adjusted once the configuration is known.
	Level *slog.LevelVar
	// Out receives command output.
	Out io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"bbreport.yaml"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log format (text|json); overrides logging.format"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Report ReportCmd `cmd:"" default:"withargs" help:"Report builder status and recent builds (default command)"`
	Watch  WatchCmd  `cmd:"" help:"Refresh the report periodically and publish status changes"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
	Rule   RuleCmd   `cmd:"" help:"Manage known-issue rules"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply(g *Global) error {
	g.Level = new(slog.LevelVar)
	if c.Verbose {
		g.Level.Set(slog.LevelDebug)
	}
	if g.Out == nil {
		g.Out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: g.Level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if config.NormalizeLogFormat(c.LogFormat) == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	g.Logger = slog.New(handler)
	slog.SetDefault(g.Logger)
	return nil
}

// loadConfig reads the configuration and applies its logging settings
// unless flags override them.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings {
		g.Logger.Warn("Configuration warning", slog.String("warning", w))
	}
	if !c.Verbose {
		g.Level.Set(cfg.Logging.Level.SlogLevel())
	}
	if c.LogFormat == "" && cfg.Logging.Format == config.LogFormatJSON {
		g.Logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: g.Level}))
		slog.SetDefault(g.Logger)
	}
	return cfg, nil
}
