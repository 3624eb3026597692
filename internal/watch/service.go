package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/bbreport/internal/config"
	"git.home.luguber.info/inful/bbreport/internal/fleet"
	"git.home.luguber.info/inful/bbreport/internal/issues"
	"git.home.luguber.info/inful/bbreport/internal/logfields"
	"git.home.luguber.info/inful/bbreport/internal/metrics"
	"git.home.luguber.info/inful/bbreport/internal/report"
)

const shutdownTimeout = 5 * time.Second

// Options configure a Service.
type Options struct {
	// ConfigPath enables reloading when set.
	ConfigPath string
	Config     *config.Config
	Selection  fleet.Selection
	// Recorder enables the metrics endpoint when set together with
	// watch.metrics_addr.
	Recorder *metrics.PrometheusRecorder
	// Level is adjusted when the configured log level changes.
	Level  *slog.LevelVar
	Logger *slog.Logger
	// Persist saves the cache at shutdown.
	Persist func(context.Context) error
}

// Service periodically collects the fleet.
type Service struct {
	fleet *fleet.Fleet
	opts  Options

	mu        sync.Mutex
	cfg       *config.Config
	sched     *Scheduler
	cycles    int
	lastCycle time.Time
	last      *fleet.Result
}

// New creates a service for f.
func New(f *fleet.Fleet, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	return &Service{fleet: f, opts: opts, cfg: opts.Config}
}

// Cycle refreshes the builder list and collects the selected builders. A
// failed refresh keeps the previous list.
func (s *Service) Cycle(ctx context.Context) {
	start := time.Now()
	if err := s.fleet.Refresh(ctx); err != nil {
		s.opts.Logger.Warn("Builder list refresh failed, keeping previous list", logfields.Error(err))
	}
	res, err := s.fleet.Collect(ctx, s.opts.Selection)
	if err != nil {
		s.opts.Logger.Error("Collection failed", logfields.Error(err))
		return
	}
	for _, e := range res.Errors {
		s.opts.Logger.Warn("Build could not be classified", logfields.Error(e))
	}

	s.mu.Lock()
	s.cycles++
	s.lastCycle = time.Now()
	s.last = res
	s.mu.Unlock()

	s.opts.Logger.Info("Collection finished",
		logfields.Count(len(res.Reports)),
		slog.String("summary", report.Summary(res.Reports)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
}

// Last returns the result of the most recent cycle.
func (s *Service) Last() *fleet.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Health describes the service for the health endpoint.
func (s *Service) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := Health{Status: "ok", Cycles: s.cycles, LastCycle: s.lastCycle}
	if s.last != nil {
		h.Summary = report.Summary(s.last.Reports)
	}
	return h
}

// Apply takes over a reloaded configuration: the schedule interval, the
// log level and the issue rules. Server and cache settings need a restart.
func (s *Service) Apply(ctx context.Context, cfg *config.Config) {
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	sched := s.sched
	s.mu.Unlock()

	if cfg.Watch.Interval != prev.Watch.Interval && sched != nil {
		if err := sched.Reschedule(cfg.Watch.Interval); err != nil {
			s.opts.Logger.Error("Failed to apply new interval", logfields.Error(err))
		} else {
			s.opts.Logger.Info("Collection interval changed", slog.Duration("interval", cfg.Watch.Interval))
		}
	}
	if s.opts.Level != nil && cfg.Logging.Level != "" {
		s.opts.Level.Set(cfg.Logging.Level.SlogLevel())
	}
	if err := issues.Seed(ctx, s.fleet.Store(), cfg.Issues); err != nil {
		s.opts.Logger.Warn("Failed to store issue rules", logfields.Error(err))
	}
	if cfg.Server.BaseURL != prev.Server.BaseURL || cfg.Cache.Path != prev.Cache.Path {
		s.opts.Logger.Warn("Server and cache settings take effect after a restart")
	}
}

// Run schedules the cycle and blocks until ctx is cancelled or the metrics
// server fails. The cache is persisted on the way out.
func (s *Service) Run(ctx context.Context) error {
	sched, err := NewScheduler()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sched = sched
	interval := s.cfg.Watch.Interval
	addr := s.cfg.Watch.MetricsAddr
	s.mu.Unlock()

	if err := sched.Schedule(ctx, interval, s.Cycle); err != nil {
		return err
	}

	var (
		server *MetricsServer
		errCh  <-chan error
	)
	if addr != "" && s.opts.Recorder != nil {
		if server, err = NewMetricsServer(addr, s.opts.Recorder, s.Health, s.opts.Logger); err != nil {
			return err
		}
		errCh = server.Start()
	}

	if s.opts.ConfigPath != "" {
		cw, err := NewConfigWatcher(s.opts.ConfigPath, s.opts.Logger, s.Apply)
		if err != nil {
			return err
		}
		if err := cw.Start(ctx); err != nil {
			_ = cw.Stop()
			return err
		}
		defer func() { _ = cw.Stop() }()
	}

	s.opts.Logger.Info("Watching builders", slog.Duration("interval", interval))
	sched.Start()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok && err != nil {
			runErr = fmt.Errorf("metrics server: %w", err)
		}
	}

	s.opts.Logger.Info("Stopping watch")
	if err := sched.Stop(); err != nil {
		s.opts.Logger.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	if s.opts.Persist != nil {
		if err := s.opts.Persist(shutdownCtx); err != nil {
			s.opts.Logger.Warn("Failed to save cache", logfields.Error(err))
		}
	}
	return runErr
}
