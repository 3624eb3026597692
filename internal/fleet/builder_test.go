package fleet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bbreport/internal/buildbot"
	"git.home.luguber.info/inful/bbreport/internal/cache"
	"git.home.luguber.info/inful/bbreport/internal/model"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		name, host, branch string
	}{
		{"x86 Ubuntu trunk", "x86 Ubuntu", "trunk"},
		{"AMD64 Windows 3.x", "AMD64 Windows", "3.x"},
		{"sparc-solaris-2.7", "sparc-solaris", "2.7"},
		{"standalone", "standalone", ""},
	}
	for _, tt := range tests {
		host, branch := SplitName(tt.name)
		assert.Equal(t, tt.host, host, tt.name)
		assert.Equal(t, tt.branch, branch, tt.name)
	}
}

func numbers(builds []*Build) []int {
	out := make([]int, len(builds))
	for i, b := range builds {
		if b == nil {
			out[i] = -1
			continue
		}
		out[i] = b.Number
	}
	return out
}

func TestRecentBuildsWalksPlaceholders(t *testing.T) {
	src := newFakeSource()
	src.pages[key("b", -1)] = summaryPage(12, "success", 3)
	src.pages[key("b", 11)] = summaryPage(11, "failure", 2)
	src.pages[key("b", 10)] = summaryPage(10, "success", 1)
	src.logs[key("b", 11)] = "2 tests failed:\n    test_a test_b\n"
	deps, _ := newDeps(t, src)

	b := NewBuilder("b", deps)
	builds, err := b.RecentBuilds(context.Background(), 3, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{12, 11, 10}, numbers(builds))
	assert.Equal(t, []string{"b/-1", "b/11", "b/10"}, src.requested)
	assert.Equal(t, model.TestSet{"test_a", "test_b"}, builds[1].FailedTests)
	assert.Equal(t, 12, b.LastBuild)

	for _, build := range builds {
		if build.Result == model.StatusSuccess || build.Result == model.StatusBuilding {
			assert.Empty(t, build.FailedTests, "build %d", build.Number)
		}
	}
}

func TestRecentBuildsOffsetFromLaterPlaceholder(t *testing.T) {
	src := newFakeSource()
	src.pages[key("b", -2)] = summaryPage(7, "success", 1)
	src.pages[key("b", 6)] = summaryPage(6, "success", 1)
	deps, _ := newDeps(t, src)

	builds, err := NewBuilder("b", deps).RecentBuilds(context.Background(), 3, nil)
	require.NoError(t, err)
	assert.Nil(t, builds[0], "unresolved slot")
	assert.Equal(t, []int{-1, 7, 6}, numbers(builds))
}

func TestRecentBuildsStopsAtZero(t *testing.T) {
	src := newFakeSource()
	src.pages[key("b", -1)] = summaryPage(1, "success", 1)
	src.pages[key("b", 0)] = summaryPage(0, "success", 1)
	deps, _ := newDeps(t, src)

	builds, err := NewBuilder("b", deps).RecentBuilds(context.Background(), 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, numbers(builds))
}

func TestRecentBuildsConsumesBatch(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.pages[key("b", 18)] = summaryPage(18, "success", 1)
	src.pages[key("b", 17)] = summaryPage(17, "success", 1)
	deps, store := newDeps(t, src)
	require.NoError(t, store.PutBuild(ctx, cache.BuildRow{Builder: "b", Number: 19, Result: model.StatusSuccess}, nil))

	batch := []buildbot.BuildRecord{
		{Builder: "other", Number: 99, Revision: "5", Result: "success"},
		{Builder: "b", Number: 19, Revision: "4", Result: "failure"},
		{Builder: "b", Number: 20, Revision: "5", Result: "success"},
	}
	builds, err := NewBuilder("b", deps).RecentBuilds(ctx, 4, batch)
	require.NoError(t, err)

	assert.Equal(t, []int{20, 19, 18, 17}, numbers(builds))
	assert.Equal(t, model.StatusSuccess, builds[1].Result, "cache wins over the batch")
	assert.Equal(t, []string{"b/18", "b/17"}, src.requested)
	assert.Zero(t, src.count("log"))
}

func TestRecentBuildsCollectsLogFormatErrors(t *testing.T) {
	src := newFakeSource()
	src.pages[key("b", -1)] = summaryPage(4, "failure", 1)
	src.pages[key("b", 3)] = summaryPage(3, "success", 1)
	src.logs[key("b", 4)] = "2 tests failed:\n    test_a\n"
	deps, _ := newDeps(t, src)

	builds, err := NewBuilder("b", deps).RecentBuilds(context.Background(), 2, nil)
	require.Error(t, err)
	assert.Equal(t, []int{4, 3}, numbers(builds))
}

func TestRecordBuildEvictsOutsideWindow(t *testing.T) {
	ctx := context.Background()
	deps, store := newDeps(t, newFakeSource())
	for n := 60; n <= 119; n++ {
		require.NoError(t, store.PutBuild(ctx, cache.BuildRow{Builder: "b", Number: n, Result: model.StatusSuccess}, nil))
	}

	b := NewBuilder("b", deps)
	b.LastBuild = 119
	b.RecordBuild(ctx, &Build{Builder: "b", Number: 120, Result: model.StatusSuccess, deps: deps})
	assert.Equal(t, 120, b.LastBuild)

	for n := 60; n <= 119; n++ {
		_, ok, err := store.GetBuild(ctx, "b", n)
		require.NoError(t, err)
		assert.Equal(t, n >= 70, ok, "build %d", n)
	}
	rows, err := store.Builders(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 120, rows[0].LastBuild)

	b.RecordBuild(ctx, &Build{Builder: "b", Number: 100, deps: deps})
	assert.Equal(t, 120, b.LastBuild, "last build never decreases")
}

func TestRecordBuildKeepsMemoryWithinWindow(t *testing.T) {
	ctx := context.Background()
	deps, _ := newDeps(t, newFakeSource())
	deps.Window = 50

	b := NewBuilder("b", deps)
	for n := 0; n < 500; n++ {
		b.RecordBuild(ctx, &Build{Builder: "b", Number: n, Result: model.StatusSuccess, deps: deps})
	}
	assert.Equal(t, 499, b.LastBuild)
	assert.LessOrEqual(t, len(b.builds), 51)
	for n := range b.builds {
		assert.GreaterOrEqual(t, n, 449)
	}

	b.RecordBuild(ctx, &Build{Builder: "b", Number: 10, Result: model.StatusSuccess, deps: deps})
	_, kept := b.builds[10]
	assert.False(t, kept, "builds below the window are not kept")
}

func TestRecentBuildsReusesFinishedBuilds(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.pages[key("b", 18)] = summaryPage(18, "success", 1)
	src.pages[key("b", 17)] = summaryPage(17, "", 1)
	deps, _ := newDeps(t, src)
	deps.Store = cache.Disabled{}
	b := NewBuilder("b", deps)
	b.LastBuild = 18
	batch := []buildbot.BuildRecord{{Builder: "b", Number: 18}}

	_, err := b.RecentBuilds(ctx, 2, batch)
	require.NoError(t, err)
	_, err = b.RecentBuilds(ctx, 2, batch)
	require.NoError(t, err)

	assert.Equal(t, []string{"b/18", "b/17", "b/17"}, src.requested, "only the running build is fetched again")
}

func TestBuilderStatusMachine(t *testing.T) {
	ctx := context.Background()
	deps, store := newDeps(t, newFakeSource())
	b := NewBuilder("x86 trunk", deps)

	b.MarkMissing(ctx)
	assert.Equal(t, model.StatusUnknown, b.Status, "unset builders do not go missing")

	require.Error(t, b.SetStatus(ctx, model.StatusBuilding))
	require.Error(t, b.SetStatus(ctx, model.StatusMissing))
	require.NoError(t, b.SetStatus(ctx, model.StatusUnstable))

	b.MarkMissing(ctx)
	assert.Equal(t, model.StatusMissing, b.Status)
	rows, err := store.Builders(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMissing, rows[0].Status)

	require.NoError(t, b.SetStatus(ctx, model.StatusSuccess))
	assert.Equal(t, model.StatusSuccess, b.Status)
}

func TestLoadAll(t *testing.T) {
	ctx := context.Background()
	deps, store := newDeps(t, newFakeSource())
	require.NoError(t, store.PutBuilder(ctx, cache.BuilderRow{Name: "x86 trunk", Host: "x86", Branch: "trunk", LastBuild: 40, Status: model.StatusFailure}))

	builders, err := LoadAll(ctx, deps)
	require.NoError(t, err)
	require.Len(t, builders, 1)
	assert.Equal(t, "trunk", builders[0].Branch)
	assert.Equal(t, 40, builders[0].LastBuild)
	assert.Equal(t, model.StatusFailure, builders[0].Status)

	empty, err := LoadAll(ctx, &Deps{Store: cache.Disabled{}})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAggregate(t *testing.T) {
	mk := func(results ...model.Status) []*Build {
		out := make([]*Build, len(results))
		for i, r := range results {
			out[i] = &Build{Result: r}
		}
		return out
	}
	tests := []struct {
		name   string
		builds []*Build
		want   model.Status
	}{
		{"mixed", mk(model.StatusSuccess, model.StatusFailure), model.StatusUnstable},
		{"all building", mk(model.StatusBuilding, model.StatusBuilding), model.StatusOffline},
		{"all failing", mk(model.StatusFailure, model.StatusFailure), model.StatusFailure},
		{"all passing", mk(model.StatusSuccess, model.StatusSuccess), model.StatusSuccess},
		{"exception folds", mk(model.StatusException, model.StatusBuilding), model.StatusFailure},
		{"unstable build", mk(model.StatusUnstable), model.StatusUnstable},
		{"nothing resolved", []*Build{nil, nil}, model.StatusOffline},
		{"activity without result", []*Build{nil, {Result: model.StatusBuilding, Revision: 42}}, model.StatusFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.builds))
		})
	}
}
