package fleet

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"git.home.luguber.info/inful/bbreport/internal/buildbot"
	"git.home.luguber.info/inful/bbreport/internal/cache"
	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
	"git.home.luguber.info/inful/bbreport/internal/logfields"
	"git.home.luguber.info/inful/bbreport/internal/model"
)

// Builder is one build agent configuration and its recent builds.
type Builder struct {
	Name      string
	Host      string
	Branch    string
	LastBuild int
	Status    model.Status

	builds map[int]*Build
	deps   *Deps
	// revived is set between a return from missing and the next aggregate.
	revived bool
}

// SplitName derives host and branch from a builder name. The branch is the
// last whitespace-separated word; names without whitespace split at the last
// '-'.
func SplitName(name string) (host, branch string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, " \t"); i >= 0 {
		return strings.TrimSpace(name[:i]), name[i+1:]
	}
	if i := strings.LastIndexByte(name, '-'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}

// NewBuilder creates a builder that has not been seen before.
func NewBuilder(name string, deps *Deps) *Builder {
	host, branch := SplitName(name)
	return &Builder{Name: name, Host: host, Branch: branch, builds: map[int]*Build{}, deps: deps.normalize()}
}

func builderFromRow(row cache.BuilderRow, deps *Deps) *Builder {
	b := NewBuilder(row.Name, deps)
	b.LastBuild = row.LastBuild
	b.Status = row.Status
	return b
}

// LoadAll returns every builder known to the cache. A store without
// builders yields an empty list.
func LoadAll(ctx context.Context, deps *Deps) ([]*Builder, error) {
	deps.normalize()
	rows, err := deps.Store.Builders(ctx)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCache, "failed to load builders").Warning().Build()
	}
	out := make([]*Builder, 0, len(rows))
	for _, row := range rows {
		out = append(out, builderFromRow(row, deps))
	}
	return out, nil
}

// resolve returns the build recorded earlier in this process when it is
// finished, and resolves it otherwise.
func (b *Builder) resolve(ctx context.Context, number int, rec *buildbot.BuildRecord) *Build {
	if number >= 0 {
		if build, ok := b.builds[number]; ok && build.Result.IsTerminal() {
			return build
		}
	}
	return Resolve(ctx, b.deps, b.Name, number, rec)
}

// remember keeps a build in memory while it is inside the retention window.
func (b *Builder) remember(build *Build) {
	if build.Number < b.LastBuild-b.deps.Window {
		return
	}
	b.builds[build.Number] = build
}

// RecentBuilds returns count slots, newest first. Slots that could not be
// resolved are nil. batch holds records of the batched query; records of other
// builders are ignored. Failed builds get their failure detail loaded; log
// format errors are collected and returned alongside the builds.
func (b *Builder) RecentBuilds(ctx context.Context, count int, batch []buildbot.BuildRecord) ([]*Build, error) {
	if count <= 0 {
		return nil, nil
	}
	var records []buildbot.BuildRecord
	for _, rec := range batch {
		if rec.Builder == b.Name && rec.Number >= 0 {
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Number > records[j].Number })

	var (
		out  = make([]*Build, 0, count)
		errs []error
	)
	add := func(build *Build) {
		if build.Number < 0 {
			out = append(out, nil)
			return
		}
		if err := build.FailureDetail(ctx); err != nil {
			errs = append(errs, err)
		}
		b.RecordBuild(ctx, build)
		out = append(out, build)
	}

	if len(records) > 0 {
		next := records[0].Number
		for i := range records {
			if len(out) == count {
				break
			}
			add(b.resolve(ctx, records[i].Number, &records[i]))
			next = records[i].Number - 1
		}
		for ; len(out) < count && next >= 0; next-- {
			if ctx.Err() != nil {
				break
			}
			add(b.resolve(ctx, next, nil))
		}
		return out, stderrors.Join(errs...)
	}

	// Walk placeholders until one resolves; its absolute number fixes the
	// numbering of every later slot.
	newest := -1
	for k := 1; len(out) < count; k++ {
		if ctx.Err() != nil {
			break
		}
		number := -k
		if newest >= 0 {
			number = newest - (k - 1)
			if number < 0 {
				break
			}
		}
		build := b.resolve(ctx, number, nil)
		if newest < 0 && build.Number >= 0 {
			newest = build.Number + (k - 1)
		}
		add(build)
	}
	return out, stderrors.Join(errs...)
}

// CachedBuilds returns count slots starting at LastBuild, reading only the
// cache. Builds that are not cached leave their slot nil.
func (b *Builder) CachedBuilds(ctx context.Context, count int) ([]*Build, error) {
	var (
		out  = make([]*Build, 0, count)
		errs []error
	)
	for n := b.LastBuild; n >= 0 && len(out) < count; n-- {
		build, ok := Lookup(ctx, b.deps, b.Name, n)
		if !ok {
			out = append(out, nil)
			continue
		}
		if err := build.FailureDetail(ctx); err != nil {
			errs = append(errs, err)
		}
		b.remember(build)
		out = append(out, build)
	}
	return out, stderrors.Join(errs...)
}

// RecordBuild adds a resolved build. A new highest build number evicts
// builds that fell out of the retention window, from memory and from the
// cache, and persists the builder.
func (b *Builder) RecordBuild(ctx context.Context, build *Build) {
	if build == nil || build.Number < 0 {
		return
	}
	if build.Number <= b.LastBuild {
		b.remember(build)
		return
	}
	b.builds[build.Number] = build
	b.advance(ctx, build.Number)
}

// advance raises LastBuild to number. Builds that fall out of the retention
// window are dropped from memory and evicted from the cache.
func (b *Builder) advance(ctx context.Context, number int) {
	if number <= b.LastBuild {
		return
	}
	b.LastBuild = number
	below := b.LastBuild - b.deps.Window
	for n := range b.builds {
		if n < below {
			delete(b.builds, n)
		}
	}
	if below > 0 {
		if n, err := b.deps.Store.Evict(ctx, b.Name, below); err != nil {
			b.deps.Logger.Warn("Cache eviction failed", logfields.Builder(b.Name), logfields.Error(err))
		} else if n > 0 {
			b.deps.Logger.Debug("Evicted cached builds", logfields.Builder(b.Name), logfields.Count(int(n)))
		}
	}
	b.persist(ctx)
}

// SetStatus records the aggregate status. building and missing are not
// valid aggregate values.
func (b *Builder) SetStatus(ctx context.Context, status model.Status) error {
	switch status {
	case model.StatusSuccess, model.StatusUnstable, model.StatusFailure, model.StatusOffline:
	default:
		return errors.ValidationError(fmt.Sprintf("invalid builder status %q", status.String())).
			WithContext("builder", b.Name).Build()
	}
	if b.Status == status {
		return nil
	}
	b.Status = status
	b.persist(ctx)
	return nil
}

// MarkMissing flags a builder that disappeared from the remote list. A
// builder that never had a status stays unset.
func (b *Builder) MarkMissing(ctx context.Context) {
	if b.Status == model.StatusUnknown || b.Status == model.StatusMissing {
		return
	}
	b.Status = model.StatusMissing
	b.persist(ctx)
}

// revive clears the missing flag of a builder that reappeared.
func (b *Builder) revive(ctx context.Context) {
	if b.Status != model.StatusMissing {
		return
	}
	b.Status = model.StatusUnknown
	b.revived = true
	b.persist(ctx)
}

func (b *Builder) persist(ctx context.Context) {
	row := cache.BuilderRow{Name: b.Name, Host: b.Host, Branch: b.Branch, LastBuild: b.LastBuild, Status: b.Status}
	if err := b.deps.Store.PutBuilder(ctx, row); err != nil {
		b.deps.Logger.Warn("Failed to cache builder", logfields.Builder(b.Name), logfields.Error(err))
	}
}

// Aggregate derives a builder status from its recent builds. Unstable builds
// count as both a success and a failure. Without any finished build the
// builder is offline, unless some build shows activity through a revision.
func Aggregate(builds []*Build) model.Status {
	var success, failure int
	active := false
	for _, build := range builds {
		if build == nil {
			continue
		}
		switch build.Result {
		case model.StatusSuccess:
			success++
		case model.StatusUnstable:
			success++
			failure++
		case model.StatusFailure, model.StatusException:
			failure++
		}
		if build.Revision != 0 {
			active = true
		}
	}
	switch {
	case success == 0 && failure == 0:
		if active {
			return model.StatusFailure
		}
		return model.StatusOffline
	case success > 0 && failure > 0:
		return model.StatusUnstable
	case failure > 0:
		return model.StatusFailure
	default:
		return model.StatusSuccess
	}
}
