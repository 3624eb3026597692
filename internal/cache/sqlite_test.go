package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bbreport/internal/model"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuildsAreInsertOnly(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first := BuildRow{Builder: "x86 trunk", Number: 10, Revision: 900, Result: model.StatusFailure, Message: "2 failed"}
	require.NoError(t, s.PutBuild(ctx, first, model.TestSet{"test_b", "test_a"}))
	require.NoError(t, s.PutBuild(ctx, BuildRow{Builder: "x86 trunk", Number: 10, Result: model.StatusSuccess}, model.TestSet{"test_c"}))

	got, ok, err := s.GetBuild(ctx, "x86 trunk", 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, got)

	failures, err := s.Failures(ctx, "x86 trunk", 10)
	require.NoError(t, err)
	assert.Equal(t, model.TestSet{"test_b", "test_a"}, failures)
}

func TestNegativeBuildNumbersAreNotStored(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.PutBuild(ctx, BuildRow{Builder: "b", Number: -1, Result: model.StatusSuccess}, nil))
	_, ok, err := s.GetBuild(ctx, "b", -1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvictBelowWindow(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for n := 60; n <= 120; n++ {
		require.NoError(t, s.PutBuild(ctx, BuildRow{Builder: "amd64 3.x", Number: n, Result: model.StatusFailure}, model.TestSet{"test_x"}))
	}
	require.NoError(t, s.PutBuild(ctx, BuildRow{Builder: "other", Number: 5, Result: model.StatusSuccess}, nil))

	removed, err := s.Evict(ctx, "amd64 3.x", 120-50)
	require.NoError(t, err)
	assert.Equal(t, int64(10), removed)

	for n := 60; n <= 120; n++ {
		_, ok, err := s.GetBuild(ctx, "amd64 3.x", n)
		require.NoError(t, err)
		assert.Equal(t, n >= 70, ok, "build %d", n)
		failures, err := s.Failures(ctx, "amd64 3.x", n)
		require.NoError(t, err)
		assert.Equal(t, n >= 70, len(failures) == 1, "failures of build %d", n)
	}
	_, ok, err := s.GetBuild(ctx, "other", 5)
	require.NoError(t, err)
	assert.True(t, ok, "other builders are untouched")
}

func TestBuildersUpsert(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.PutBuilder(ctx, BuilderRow{Name: "x86 trunk", Host: "x86", Branch: "trunk", LastBuild: 4, Status: model.StatusSuccess}))
	require.NoError(t, s.PutBuilder(ctx, BuilderRow{Name: "x86 trunk", Host: "x86", Branch: "trunk", LastBuild: 5, Status: model.StatusMissing}))
	require.NoError(t, s.PutBuilder(ctx, BuilderRow{Name: "alpha", Host: "alpha"}))

	rows, err := s.Builders(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alpha", rows[0].Name)
	assert.Equal(t, model.StatusUnknown, rows[0].Status)
	assert.Equal(t, 5, rows[1].LastBuild)
	assert.Equal(t, model.StatusMissing, rows[1].Status)
}

func TestRules(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.PutRule(ctx, RuleRow{Issue: "bpo-1", Test: "test_ssl"}))
	require.NoError(t, s.PutRule(ctx, RuleRow{Issue: "bpo-1", Test: "test_ssl"}))
	require.NoError(t, s.PutRule(ctx, RuleRow{Issue: "bpo-2", Message: "hung"}))

	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	n, err := s.DeleteRules(ctx, "bpo-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDisabledRemembersNothing(t *testing.T) {
	ctx := context.Background()
	var s Store = Disabled{}
	require.NoError(t, s.PutBuild(ctx, BuildRow{Builder: "b", Number: 1, Result: model.StatusSuccess}, nil))
	_, ok, err := s.GetBuild(ctx, "b", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
