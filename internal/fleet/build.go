package fleet

import (
	"context"
	"time"

	"git.home.luguber.info/inful/bbreport/internal/buildbot"
	"git.home.luguber.info/inful/bbreport/internal/cache"
	"git.home.luguber.info/inful/bbreport/internal/classify"
	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
	"git.home.luguber.info/inful/bbreport/internal/logfields"
	"git.home.luguber.info/inful/bbreport/internal/model"
)

// Build is one build of a builder. A negative Number is a placeholder for
// the Nth most recent build that has not been resolved yet.
type Build struct {
	Builder     string
	Number      int
	Revision    int
	Result      model.Status
	Message     string
	FailedTests model.TestSet
	Start       time.Time
	End         time.Time

	deps   *Deps
	cached bool
	loaded bool
	saved  bool
}

// Cached reports whether the build was read from the cache.
func (b *Build) Cached() bool { return b.cached }

// DetailLoaded reports whether the failed tests of a failed build are known.
func (b *Build) DetailLoaded() bool { return b.loaded }

// Resolve returns the build, preferring the cache, then the batched payload,
// then the summary page. Network failures leave the build in the building
// state.
func Resolve(ctx context.Context, deps *Deps, builder string, number int, payload *buildbot.BuildRecord) *Build {
	b := &Build{Builder: builder, Number: number, Result: model.StatusBuilding, deps: deps}

	if b.fromCache(ctx) {
		return b
	}
	if payload != nil && payload.Revision != "" {
		b.adopt(payload)
	} else if !b.fromSummary(ctx) {
		return b
	}
	if !b.Result.IsTerminal() {
		b.neutralize()
		return b
	}

	deps.Recorder.IncClassification(string(b.Result))
	if !b.Result.IsFailure() {
		b.neutralize()
		b.loaded = true
		b.save(ctx)
	}
	return b
}

// Lookup returns a cached build without contacting the server.
func Lookup(ctx context.Context, deps *Deps, builder string, number int) (*Build, bool) {
	b := &Build{Builder: builder, Number: number, Result: model.StatusBuilding, deps: deps}
	if !b.fromCache(ctx) {
		return nil, false
	}
	return b, true
}

func (b *Build) fromCache(ctx context.Context) bool {
	if b.Number < 0 {
		return false
	}
	row, ok, err := b.deps.Store.GetBuild(ctx, b.Builder, b.Number)
	if err != nil {
		b.deps.Logger.Warn("Cache lookup failed", logfields.Builder(b.Builder), logfields.Build(b.Number), logfields.Error(err))
	}
	b.deps.Recorder.IncCacheLookup(ok)
	if !ok {
		return false
	}
	b.Revision = row.Revision
	b.Result = row.Result
	b.Message = row.Message
	b.cached = true
	b.saved = true
	b.loaded = !b.Result.IsFailure()
	return true
}

func (b *Build) adopt(rec *buildbot.BuildRecord) {
	b.Number = rec.Number
	b.Revision = rec.RevisionNumber()
	b.Message = rec.Message()
	b.Start, b.End = rec.Start, rec.End
	if status, ok := classify.ResultStatus(rec.Result); ok {
		b.Result = status
	}
	if b.Result.IsTerminal() && classify.SourceFetchFailed(b.Message) {
		b.Result = model.StatusException
	}
}

// fromSummary fetches and parses the summary page. It reports false when the
// build stays unresolved or turns out to be cached under its absolute number.
func (b *Build) fromSummary(ctx context.Context) bool {
	page, err := b.deps.Source.BuildPage(ctx, b.Builder, b.Number)
	if err != nil {
		b.deps.Logger.Debug("Build page unavailable", logfields.Builder(b.Builder), logfields.Build(b.Number), logfields.Error(err))
		return false
	}
	sum := classify.Summary(page)
	if b.Number < 0 && sum.Number >= 0 {
		b.Number = sum.Number
		if b.fromCache(ctx) {
			return false
		}
	}
	b.Revision = sum.Revision
	b.Result = sum.Status
	b.Message = sum.Message
	return true
}

// FailureDetail loads the failed tests of a failed build, from the cache when
// the build was cached and from the test step log otherwise. Repeated calls
// are no-ops once the detail is known. An empty or unavailable log leaves the
// detail unloaded. A malformed log is reported and the build is not saved.
func (b *Build) FailureDetail(ctx context.Context) error {
	if b.loaded || !b.Result.IsFailure() || b.Number < 0 {
		return nil
	}
	if b.cached {
		tests, err := b.deps.Store.Failures(ctx, b.Builder, b.Number)
		if err != nil {
			return errors.WrapError(err, errors.CategoryCache, "failed to load cached failures").
				Warning().WithContext("builder", b.Builder).WithContext("build", b.Number).Build()
		}
		b.FailedTests = tests
		b.loaded = true
		return nil
	}

	text, err := b.deps.Source.StepLog(ctx, b.Builder, b.Number, TestStep)
	if err != nil {
		b.deps.Logger.Debug("Test log unavailable", logfields.Builder(b.Builder), logfields.Build(b.Number), logfields.Error(err))
		return nil
	}
	out, err := classify.Log(text, b.Result)
	if err != nil {
		if ce, ok := errors.AsClassified(err); ok {
			return errors.WrapError(ce, ce.Category(), ce.Message()).
				WithSeverity(ce.Severity()).
				WithContext("builder", b.Builder).
				WithContext("build", b.Number).
				Build()
		}
		return err
	}
	if out.Status == model.StatusBuilding {
		return nil
	}
	b.Result = out.Status
	b.Message = out.Message
	b.FailedTests = out.FailedTests
	b.loaded = true
	b.deps.Recorder.IncClassification(string(b.Result))
	b.save(ctx)
	return nil
}

// neutralize enforces that passing or running builds carry no failure detail.
func (b *Build) neutralize() {
	if b.Result == model.StatusSuccess || b.Result == model.StatusBuilding {
		b.Message = ""
	}
	b.FailedTests = nil
}

// save writes the build once. Cache failures are logged, not returned.
func (b *Build) save(ctx context.Context) {
	if b.saved || b.Number < 0 || !b.Result.IsTerminal() {
		return
	}
	row := cache.BuildRow{Builder: b.Builder, Number: b.Number, Revision: b.Revision, Result: b.Result, Message: b.Message}
	if err := b.deps.Store.PutBuild(ctx, row, b.FailedTests); err != nil {
		b.deps.Logger.Warn("Failed to cache build", logfields.Builder(b.Builder), logfields.Build(b.Number), logfields.Error(err))
		return
	}
	b.saved = true
}
