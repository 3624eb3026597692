package fleet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bbreport/internal/buildbot"
	"git.home.luguber.info/inful/bbreport/internal/cache"
	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
)

// fakeSource serves canned pages and logs and counts every call.
type fakeSource struct {
	mu          sync.Mutex
	builders    []buildbot.RemoteBuilder
	buildersErr error
	batch       []buildbot.BuildRecord
	batchErr    error
	pages       map[string]string
	logs        map[string]string
	calls       map[string]int
	requested   []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{pages: map[string]string{}, logs: map[string]string{}, calls: map[string]int{}}
}

func key(builder string, number int) string { return fmt.Sprintf("%s/%d", builder, number) }

func (f *fakeSource) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeSource) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeSource) Builders(context.Context) ([]buildbot.RemoteBuilder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["builders"]++
	return f.builders, f.buildersErr
}

func (f *fakeSource) LastBuilds(_ context.Context, _ int) ([]buildbot.BuildRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["batch"]++
	return f.batch, f.batchErr
}

func (f *fakeSource) BuildPage(_ context.Context, builder string, number int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["page"]++
	f.requested = append(f.requested, key(builder, number))
	page, ok := f.pages[key(builder, number)]
	if !ok {
		return "", errors.NetworkError("not reachable").Build()
	}
	return page, nil
}

func (f *fakeSource) StepLog(_ context.Context, builder string, number int, step string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["log"]++
	if step != TestStep {
		return "", fmt.Errorf("unexpected step %q", step)
	}
	text, ok := f.logs[key(builder, number)]
	if !ok {
		return "", errors.NetworkError("not reachable").Build()
	}
	return text, nil
}

// summaryPage renders a minimal build page. An empty result renders a build
// in progress whose checkout step already finished.
func summaryPage(number int, result string, revision int) string {
	page := fmt.Sprintf("<h1>Builder b Build #%d</h1>", number)
	if result != "" {
		page += fmt.Sprintf(`<h2>Results:</h2><p class="result %s">%s</p>`, result, result)
		page += `<h2>Steps and Logfiles:</h2><ol><li><div class="success result">svn</div></li></ol>`
	} else {
		page += `<h2>Build In Progress:</h2><ol><li><div class="success result">svn update</div></li></ol>`
	}
	if revision != 0 {
		page += fmt.Sprintf("<table><tr><td>Got Revision</td><td>%d</td></tr></table>", revision)
	}
	return page
}

func newDeps(t *testing.T, src buildbot.Source) (*Deps, *cache.SQLiteStore) {
	t.Helper()
	store, err := cache.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	deps := &Deps{
		Source: src,
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Window: 50,
	}
	return deps.normalize(), store
}
