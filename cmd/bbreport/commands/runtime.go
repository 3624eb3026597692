package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/bbreport/internal/buildbot"
	"git.home.luguber.info/inful/bbreport/internal/cache"
	"git.home.luguber.info/inful/bbreport/internal/config"
	"git.home.luguber.info/inful/bbreport/internal/fleet"
	"git.home.luguber.info/inful/bbreport/internal/issues"
	"git.home.luguber.info/inful/bbreport/internal/logfields"
	"git.home.luguber.info/inful/bbreport/internal/metrics"
)

// runtime wires the cache, the remote client and the fleet for one command.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    cache.Store
	persist  bool
	recorder *metrics.PrometheusRecorder
	fleet    *fleet.Fleet
}

type runtimeOptions struct {
	cacheOnly bool
	noCache   bool
	builds    int
	notifier  fleet.Notifier
}

// openStore loads the cache snapshot. A corrupt or unreadable snapshot
// degrades to running without a cache; the snapshot is then left untouched.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, disabled bool) (cache.Store, bool) {
	if disabled || cfg.Cache.Disabled {
		return cache.Disabled{}, false
	}
	store, err := cache.OpenSnapshot(ctx, cfg.Cache.Path)
	if err != nil {
		logger.Warn("Cache unusable, continuing without cache", logfields.Path(cfg.Cache.Path), logfields.Error(err))
		return cache.Disabled{}, false
	}
	logger.Debug("Cache loaded", logfields.Path(cfg.Cache.Path))
	return store, true
}

func newRuntime(ctx context.Context, g *Global, cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: g.Logger, recorder: metrics.NewPrometheusRecorder(nil)}
	rt.store, rt.persist = openStore(ctx, cfg, g.Logger, opts.noCache)
	if opts.cacheOnly {
		rt.persist = false
	}

	if err := issues.Seed(ctx, rt.store, cfg.Issues); err != nil {
		rt.logger.Warn("Failed to store configured issue rules", logfields.Error(err))
	}

	var source buildbot.Source = buildbot.Offline{}
	if !opts.cacheOnly {
		client, err := buildbot.NewClient(cfg.Server,
			buildbot.WithRecorder(rt.recorder),
			buildbot.WithLogger(g.Logger))
		if err != nil {
			_ = rt.store.Close()
			return nil, err
		}
		source = client
	}

	builds := cfg.Report.Builds
	if opts.builds > 0 {
		builds = opts.builds
	}
	deps := &fleet.Deps{
		Source:   source,
		Store:    rt.store,
		Recorder: rt.recorder,
		Logger:   g.Logger,
		Window:   cfg.Cache.Window,
	}
	rt.fleet = fleet.New(deps, fleet.Options{
		Builds:    builds,
		Workers:   cfg.Report.Workers,
		Notifier:  opts.notifier,
		CacheOnly: opts.cacheOnly,
	})
	if err := rt.fleet.Load(ctx); err != nil {
		rt.logger.Warn("Cached builders unavailable", logfields.Error(err))
	}
	return rt, nil
}

// save writes the cache snapshot when the cache is in use.
func (rt *runtime) save(ctx context.Context) error {
	if !rt.persist {
		return nil
	}
	if err := cache.DumpFile(ctx, rt.store, rt.cfg.Cache.Path); err != nil {
		return err
	}
	rt.logger.Debug("Cache saved", logfields.Path(rt.cfg.Cache.Path))
	return nil
}

func (rt *runtime) close(ctx context.Context) {
	if err := rt.save(ctx); err != nil {
		rt.logger.Warn("Failed to save cache", logfields.Path(rt.cfg.Cache.Path), logfields.Error(err))
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Warn("Failed to close cache", logfields.Error(err))
	}
}
