package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/bbreport/internal/fleet"
	"git.home.luguber.info/inful/bbreport/internal/logfields"
	"git.home.luguber.info/inful/bbreport/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	SelectionFlags `embed:""`

	Interval    time.Duration `help:"Collection interval; overrides watch.interval"`
	MetricsAddr string        `name:"metrics-addr" help:"Serve /metrics on this address; overrides watch.metrics_addr"`
	NATSURL     string        `name:"nats-url" help:"Publish status changes to this NATS server; overrides watch.nats_url"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if w.Interval > 0 {
		cfg.Watch.Interval = w.Interval
	}
	if w.MetricsAddr != "" {
		cfg.Watch.MetricsAddr = w.MetricsAddr
	}
	if w.NATSURL != "" {
		cfg.Watch.NATSURL = w.NATSURL
	}

	var notifier fleet.Notifier = watch.LogNotifier{Logger: g.Logger}
	if cfg.Watch.NATSURL != "" {
		nn, err := watch.NewNATSNotifier(ctx, cfg.Watch.NATSURL, cfg.Watch.Subject, g.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = nn.Close() }()
		notifier = nn
	}

	rt, err := newRuntime(ctx, g, cfg, runtimeOptions{notifier: notifier})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.store.Close(); err != nil {
			g.Logger.Warn("Failed to close cache", logfields.Error(err))
		}
	}()

	configPath := ""
	if _, err := os.Stat(root.Config); err == nil {
		configPath = root.Config
	}
	svc := watch.New(rt.fleet, watch.Options{
		ConfigPath: configPath,
		Config:     cfg,
		Selection:  w.selection(),
		Recorder:   rt.recorder,
		Level:      g.Level,
		Logger:     g.Logger,
		Persist:    rt.save,
	})
	return svc.Run(ctx)
}
