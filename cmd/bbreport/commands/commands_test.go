package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bbreport/internal/cache"
	"git.home.luguber.info/inful/bbreport/internal/model"
	"git.home.luguber.info/inful/bbreport/internal/report"
)

func testGlobal(out io.Writer) *Global {
	return &Global{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Level:  new(slog.LevelVar),
		Out:    out,
	}
}

func writeConfig(t *testing.T, dir, cachePath string) string {
	t.Helper()
	path := filepath.Join(dir, "bbreport.yaml")
	body := "cache:\n  path: " + cachePath + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseReportFlags(t *testing.T) {
	var cli CLI
	g := &Global{Out: io.Discard}
	parser, err := kong.New(&cli, kong.Vars{"version": "test"}, kong.Bind(g), kong.Exit(func(int) {}))
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{"report", "-n", "x86*", "-f", "test_a", "-f", "test_b", "--build", "3", "-o", "json"})
	require.NoError(t, err)
	assert.Equal(t, "report", kctx.Command())
	assert.Equal(t, "x86*", cli.Report.Name)
	assert.Equal(t, []string{"test_a", "test_b"}, cli.Report.Failures)
	assert.Equal(t, 3, cli.Report.Build)
	assert.Equal(t, "json", cli.Report.Format)
	assert.NotNil(t, g.Logger)

	sel := cli.Report.selection()
	assert.Equal(t, "x86*", sel.Name)
	assert.Nil(t, sel.Build)
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bbreport.yaml")
	var out bytes.Buffer

	require.NoError(t, (&InitCmd{}).Run(testGlobal(&out), &CLI{Config: path}))
	assert.FileExists(t, path)
	assert.Contains(t, out.String(), "initialized successfully")

	require.Error(t, (&InitCmd{}).Run(testGlobal(&out), &CLI{Config: path}))
	require.NoError(t, (&InitCmd{Force: true}).Run(testGlobal(&out), &CLI{Config: path}))
}

func TestReportFromCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.sql.gz")

	store, err := cache.NewSQLiteStore()
	require.NoError(t, err)
	require.NoError(t, store.PutBuilder(ctx, cache.BuilderRow{Name: "x86 trunk", Host: "x86", Branch: "trunk", LastBuild: 4, Status: model.StatusFailure}))
	require.NoError(t, store.PutBuild(ctx, cache.BuildRow{Builder: "x86 trunk", Number: 4, Revision: 77, Result: model.StatusFailure, Message: "1 failed"}, model.TestSet{"test_ssl"}))
	require.NoError(t, store.PutRule(ctx, cache.RuleRow{Issue: "issue1234", Test: "test_ssl"}))
	require.NoError(t, cache.DumpFile(ctx, store, cachePath))
	require.NoError(t, store.Close())
	before, err := os.ReadFile(cachePath)
	require.NoError(t, err)

	var out bytes.Buffer
	root := &CLI{Config: writeConfig(t, dir, cachePath)}
	cmd := &ReportCmd{CacheOnly: true, Format: "json", Build: -1}
	require.NoError(t, cmd.Run(testGlobal(&out), root))

	var views []report.BuilderView
	require.NoError(t, json.Unmarshal(out.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "failure", views[0].Status)
	require.Len(t, views[0].Builds, 1)
	assert.Equal(t, []string{"test_ssl"}, views[0].Builds[0].FailedTests)
	assert.Equal(t, []string{"issue1234"}, views[0].Builds[0].Issues)

	after, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "cache-only runs leave the snapshot alone")
}

func TestReportRejectsBadFormat(t *testing.T) {
	dir := t.TempDir()
	root := &CLI{Config: writeConfig(t, dir, filepath.Join(dir, "cache.sql.gz"))}
	err := (&ReportCmd{CacheOnly: true, Format: "xml", Build: -1}).Run(testGlobal(io.Discard), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output format")
}

func TestRuleCommands(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.sql.gz")
	root := &CLI{Config: writeConfig(t, dir, cachePath)}

	var out bytes.Buffer
	require.NoError(t, (&RuleAddCmd{Issue: "issue99", Test: "test_(io|os)"}).Run(testGlobal(&out), root))
	assert.FileExists(t, cachePath)

	out.Reset()
	require.NoError(t, RuleListCmd{}.Run(testGlobal(&out), root))
	assert.Contains(t, out.String(), "issue99")
	assert.Contains(t, out.String(), "test_(io|os)")

	out.Reset()
	require.NoError(t, (&RuleRemoveCmd{Issue: "issue99"}).Run(testGlobal(&out), root))
	assert.Contains(t, out.String(), "Removed 1 rule(s)")

	out.Reset()
	require.NoError(t, RuleListCmd{}.Run(testGlobal(&out), root))
	assert.Contains(t, out.String(), "No rules defined.")

	require.Error(t, (&RuleAddCmd{Issue: "bad", Test: "("}).Run(testGlobal(&out), root))
}
