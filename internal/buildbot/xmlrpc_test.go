package buildbot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lastBuildsResponse = `<?xml version="1.0"?>
<methodResponse><params><param><value><array><data>
<value><array><data>
  <value><string>x86 trunk</string></value>
  <value><int>4126</int></value>
  <value><double>1266000000</double></value>
  <value><string>81230</string></value>
  <value><string>success</string></value>
  <value><array><data><value><string>build</string></value><value><string>successful</string></value></data></array></value>
  <value><double>1266003600</double></value>
</data></array></value>
<value><array><data>
  <value><string>x86 trunk</string></value>
  <value><int>4127</int></value>
  <value><double>1266010000</double></value>
  <value><string></string></value>
  <value><string>exception</string></value>
  <value><array><data><value><string>failed</string></value><value><string>svn</string></value></data></array></value>
  <value><double>1266010100</double></value>
</data></array></value>
</data></array></value></param></params></methodResponse>`

func TestLastBuilds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/all/xmlrpc", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "<methodName>getLastBuildsAllBuilders</methodName>")
		w.Header().Set("Content-Type", "text/xml")
		_, _ = io.WriteString(w, lastBuildsResponse)
	})
	c := newTestClient(t, mux, 0, time.Second)

	records, err := c.LastBuilds(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	newest := records[0]
	assert.Equal(t, 4127, newest.Number)
	assert.Equal(t, "exception", newest.Result)
	assert.Equal(t, "failed svn", newest.Message())
	assert.Zero(t, newest.RevisionNumber())

	older := records[1]
	assert.Equal(t, 81230, older.RevisionNumber())
	assert.Equal(t, time.Unix(1266000000, 0), older.Start)
	assert.Equal(t, time.Unix(1266003600, 0), older.End)
}

func TestLastBuildsUnavailable(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newTestClient(t, h, 0, time.Second)

	_, err := c.LastBuilds(context.Background(), 2)
	require.Error(t, err)
}

func TestDecodeBuildRecordsRejectsShortTuples(t *testing.T) {
	_, err := DecodeBuildRecords([]any{[]any{"b", int64(1)}})
	require.Error(t, err)

	recs, err := DecodeBuildRecords([]any{[]any{"b", "7", int64(0), int64(55), "warnings", "one line", nil}})
	require.NoError(t, err)
	assert.Equal(t, 7, recs[0].Number)
	assert.Equal(t, "55", recs[0].Revision)
	assert.Equal(t, []string{"one line"}, recs[0].Text)
	assert.True(t, recs[0].Start.IsZero())
}

// lateCaller times out on its first call and succeeds on the next one.
type lateCaller struct {
	replies []*[]any
}

func (l *lateCaller) Call(ctx context.Context, _ string, _ []any, reply any) error {
	r := reply.(*[]any)
	l.replies = append(l.replies, r)
	if len(l.replies) == 1 {
		return context.DeadlineExceeded
	}
	*r = []any{[]any{"b", int64(5), nil, "70", "success", nil, nil}}
	return nil
}

func TestLastBuildsRetryUsesFreshReply(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler(), 1, time.Second)
	caller := &lateCaller{}
	c.rpc = caller

	records, err := c.LastBuilds(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, caller.replies, 2)
	assert.NotSame(t, caller.replies[0], caller.replies[1])

	// The abandoned first call finishing late must not touch the result.
	*caller.replies[0] = []any{[]any{"stale", int64(1), nil, "", "failure", nil, nil}}
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].Builder)
	assert.Equal(t, 5, records[0].Number)
}

func TestDeadlineTransportBoundsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<?xml")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	rt := deadlineTransport{base: http.DefaultTransport, timeout: 50 * time.Millisecond}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	start := time.Now()
	_, err = io.ReadAll(resp.Body)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
