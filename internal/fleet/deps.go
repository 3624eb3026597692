package fleet

import (
	"log/slog"

	"git.home.luguber.info/inful/bbreport/internal/buildbot"
	"git.home.luguber.info/inful/bbreport/internal/cache"
	"git.home.luguber.info/inful/bbreport/internal/config"
	"git.home.luguber.info/inful/bbreport/internal/metrics"
)

// TestStep is the buildbot step whose log carries test results.
const TestStep = "test"

// Deps are the collaborators shared by builders and builds.
type Deps struct {
	Source   buildbot.Source
	Store    cache.Store
	Recorder metrics.Recorder
	Logger   *slog.Logger
	// Window is the number of builds kept in the cache per builder.
	Window int
}

func (d *Deps) normalize() *Deps {
	if d.Store == nil {
		d.Store = cache.Disabled{}
	}
	if d.Source == nil {
		d.Source = buildbot.Offline{}
	}
	if d.Recorder == nil {
		d.Recorder = metrics.NoopRecorder{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Window <= 0 {
		d.Window = config.DefaultWindow
	}
	return d
}
