package buildbot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/kolo/xmlrpc"

	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
	"git.home.luguber.info/inful/bbreport/internal/metrics"
)

// rpcCaller performs a single XML-RPC call.
type rpcCaller interface {
	Call(ctx context.Context, method string, args []any, reply any) error
}

type xmlrpcCaller struct {
	client *xmlrpc.Client
}

func newXMLRPCCaller(endpoint string, timeout time.Duration) (*xmlrpcCaller, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	client, err := xmlrpc.NewClient(endpoint, deadlineTransport{base: transport, timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &xmlrpcCaller{client: client}, nil
}

// deadlineTransport bounds a whole exchange, body included, so calls that
// were abandoned by their caller still end.
type deadlineTransport struct {
	base    http.RoundTripper
	timeout time.Duration
}

func (t deadlineTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Call issues the request asynchronously so that ctx bounds the wait. reply
// must not be shared between calls: an abandoned call may still write it.
func (x *xmlrpcCaller) Call(ctx context.Context, method string, args []any, reply any) error {
	params := make([]interface{}, len(args))
	copy(params, args)
	call := x.client.Go(method, params, reply, nil)
	select {
	case <-call.Done:
		return call.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastBuilds returns up to k finished builds of every builder, newest first
// within each builder.
func (c *Client) LastBuilds(ctx context.Context, k int) ([]BuildRecord, error) {
	var raw []any
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		start := time.Now()
		var reply []any
		err := c.rpc.Call(ctx, "getLastBuildsAllBuilders", []any{k}, &reply)
		c.recorder.ObserveFetch(metrics.FetchLastBuilds, time.Since(start), err == nil)
		if err != nil {
			return errors.WrapError(err, errors.CategoryNetwork, "xml-rpc call failed").
				Warning().Retryable().WithContext("method", "getLastBuildsAllBuilders").Build()
		}
		raw = reply
		return nil
	}, errors.IsTransient, func(int, error) { c.recorder.IncFetchRetry(metrics.FetchLastBuilds) })
	if err != nil {
		return nil, err
	}

	records, err := DecodeBuildRecords(raw)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "malformed xml-rpc response").
			Warning().Build()
	}
	return records, nil
}

// DecodeBuildRecords converts the loosely typed XML-RPC reply into records.
// Each entry is a 7-tuple (builder, number, start, revision, result, text, end).
func DecodeBuildRecords(raw []any) ([]BuildRecord, error) {
	out := make([]BuildRecord, 0, len(raw))
	for i, item := range raw {
		tuple, ok := item.([]any)
		if !ok || len(tuple) != 7 {
			return nil, fmt.Errorf("entry %d: expected 7-tuple, got %T", i, item)
		}
		name, ok := tuple[0].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("entry %d: missing builder name", i)
		}
		number, ok := toInt(tuple[1])
		if !ok {
			return nil, fmt.Errorf("entry %d: bad build number %v", i, tuple[1])
		}
		rec := BuildRecord{
			Builder:  name,
			Number:   number,
			Start:    toTime(tuple[2]),
			Revision: toString(tuple[3]),
			Result:   toString(tuple[4]),
			End:      toTime(tuple[6]),
		}
		switch text := tuple[5].(type) {
		case []any:
			for _, line := range text {
				rec.Text = append(rec.Text, toString(line))
			}
		case string:
			rec.Text = []string{text}
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Builder != out[j].Builder {
			return out[i].Builder < out[j].Builder
		}
		return out[i].Number > out[j].Number
	})
	return out, nil
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int64:
		return int(x), true
	case int:
		return x, true
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(x)
		return n, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "true"
		}
		return ""
	}
	return fmt.Sprint(v)
}

func toTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case float64:
		if x <= 0 {
			return time.Time{}
		}
		sec := int64(x)
		return time.Unix(sec, int64((x-float64(sec))*1e9))
	case int64:
		if x <= 0 {
			return time.Time{}
		}
		return time.Unix(x, 0)
	}
	return time.Time{}
}
