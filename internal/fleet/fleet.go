package fleet

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/bbreport/internal/buildbot"
	"git.home.luguber.info/inful/bbreport/internal/cache"
	"git.home.luguber.info/inful/bbreport/internal/logfields"
	"git.home.luguber.info/inful/bbreport/internal/model"
)

// Transition is a change of a builder's aggregate status.
type Transition struct {
	Builder string
	From    model.Status
	To      model.Status
	At      time.Time
}

// Notifier receives status transitions.
type Notifier interface {
	Notify(ctx context.Context, t Transition) error
}

// Report is the per-builder result handed to the presentation layer.
type Report struct {
	Builder *Builder
	Status  model.Status
	Builds  []*Build
}

// Result is the outcome of one collection.
type Result struct {
	Reports []Report
	// Errors holds per-build failures such as malformed test logs.
	Errors []error
}

// Err joins the collected per-build errors.
func (r *Result) Err() error {
	return stderrors.Join(r.Errors...)
}

// Options tune collection.
type Options struct {
	Builds   int
	Workers  int
	Notifier Notifier
	// CacheOnly reports from the cache without contacting the server.
	CacheOnly bool
}

// Fleet is the set of known builders.
type Fleet struct {
	deps     *Deps
	opts     Options
	mu       sync.Mutex
	builders map[string]*Builder
	now      func() time.Time
}

// New creates an empty fleet.
func New(deps *Deps, opts Options) *Fleet {
	if opts.Builds <= 0 {
		opts.Builds = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Fleet{deps: deps.normalize(), opts: opts, builders: map[string]*Builder{}, now: time.Now}
}

// Load adds every builder known to the cache.
func (f *Fleet) Load(ctx context.Context) error {
	builders, err := LoadAll(ctx, f.deps)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range builders {
		f.builders[b.Name] = b
	}
	return nil
}

// Builders returns the known builders sorted by name.
func (f *Fleet) Builders() []*Builder {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Builder, 0, len(f.builders))
	for _, b := range f.builders {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Refresh reconciles the fleet with the remote builder list. New builders
// are created, absent ones are marked missing and returning ones revived;
// the status of a revived builder is announced by the next collection. The
// last build shown in the list raises LastBuild. On error the current list
// is kept.
func (f *Fleet) Refresh(ctx context.Context) error {
	remote, err := f.deps.Source.Builders(ctx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	present := make(map[string]bool, len(remote))
	var changes []Transition
	for _, rb := range remote {
		present[rb.Name] = true
		b, ok := f.builders[rb.Name]
		if !ok {
			b = NewBuilder(rb.Name, f.deps)
			f.builders[rb.Name] = b
			if rb.LastBuild > b.LastBuild {
				b.LastBuild = rb.LastBuild
			}
			b.persist(ctx)
			continue
		}
		b.revive(ctx)
		b.advance(ctx, rb.LastBuild)
	}
	for name, b := range f.builders {
		if present[name] {
			continue
		}
		from := b.Status
		b.MarkMissing(ctx)
		if from != b.Status {
			changes = append(changes, Transition{Builder: name, From: from, To: b.Status, At: f.now()})
		}
	}
	f.mu.Unlock()

	f.deps.Logger.Debug("Builder list refreshed", logfields.Count(len(remote)))
	for _, t := range changes {
		f.notify(ctx, t)
	}
	return nil
}

// Collect gathers recent builds of the selected builders, sets their
// aggregate status and returns one report per builder, sorted by name.
// Missing builders are reported without contacting the server.
func (f *Fleet) Collect(ctx context.Context, sel Selection) (*Result, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	var selected []*Builder
	for _, b := range f.Builders() {
		if sel.MatchBuilder(b) {
			selected = append(selected, b)
		}
	}

	var batch []buildbot.BuildRecord
	if sel.Build == nil && len(selected) > 0 && !f.opts.CacheOnly {
		var err error
		if batch, err = f.deps.Source.LastBuilds(ctx, f.opts.Builds); err != nil {
			f.deps.Logger.Info("Batched build query unavailable, fetching per build", logfields.Error(err))
		}
	}

	reports := make([]Report, len(selected))
	errs := make([]error, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)
	for i, b := range selected {
		g.Go(func() error {
			reports[i], errs[i] = f.collectOne(gctx, b, sel, batch)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	counts := map[string]int{}
	for i, r := range reports {
		counts[string(r.Status)]++
		if errs[i] != nil {
			res.Errors = append(res.Errors, errs[i])
		}
		if len(sel.Failures) > 0 && len(r.Builds) == 0 {
			continue
		}
		res.Reports = append(res.Reports, r)
	}
	f.deps.Recorder.SetBuildersByStatus(counts)
	return res, nil
}

func (f *Fleet) collectOne(ctx context.Context, b *Builder, sel Selection, batch []buildbot.BuildRecord) (Report, error) {
	if b.Status == model.StatusMissing {
		return Report{Builder: b, Status: b.Status}, nil
	}

	var (
		builds []*Build
		err    error
	)
	start := time.Now()
	switch {
	case f.opts.CacheOnly && sel.Build != nil:
		if build, ok := Lookup(ctx, b.deps, b.Name, *sel.Build); ok {
			err = build.FailureDetail(ctx)
			builds = []*Build{build}
		} else {
			builds = []*Build{nil}
		}
	case f.opts.CacheOnly:
		builds, err = b.CachedBuilds(ctx, f.opts.Builds)
	case sel.Build != nil:
		build := Resolve(ctx, b.deps, b.Name, *sel.Build, nil)
		err = build.FailureDetail(ctx)
		b.RecordBuild(ctx, build)
		builds = []*Build{build}
	default:
		builds, err = b.RecentBuilds(ctx, f.opts.Builds, batch)
	}

	from := b.Status
	if b.revived {
		from = model.StatusMissing
	}
	status := Aggregate(builds)
	if sel.Build == nil {
		_ = b.SetStatus(ctx, status)
		b.revived = false
		if from != status && from != model.StatusUnknown {
			f.notify(ctx, Transition{Builder: b.Name, From: from, To: status, At: f.now()})
		}
	}
	f.deps.Logger.Debug("Builder collected", logfields.Builder(b.Name), logfields.Status(string(status)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))

	if len(sel.Failures) > 0 {
		kept := builds[:0:0]
		for _, build := range builds {
			if sel.MatchBuild(build) {
				kept = append(kept, build)
			}
		}
		builds = kept
	}
	return Report{Builder: b, Status: status, Builds: builds}, err
}

func (f *Fleet) notify(ctx context.Context, t Transition) {
	if f.opts.Notifier == nil {
		return
	}
	if err := f.opts.Notifier.Notify(ctx, t); err != nil {
		f.deps.Logger.Warn("Status notification failed", logfields.Builder(t.Builder), logfields.Error(err))
	}
}

// Store exposes the cache the fleet writes to.
func (f *Fleet) Store() cache.Store {
	return f.deps.Store
}
