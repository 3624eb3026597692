package buildbot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/bbreport/internal/config"
	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
	"git.home.luguber.info/inful/bbreport/internal/logfields"
	"git.home.luguber.info/inful/bbreport/internal/metrics"
	"git.home.luguber.info/inful/bbreport/internal/retry"
)

const userAgent = "bbreport/1.0"

// maxBody bounds a single page or log download.
const maxBody = 32 << 20

// Client implements Source over HTTP and XML-RPC.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	rpc      rpcCaller
	policy   retry.Policy
	recorder metrics.Recorder
	logger   *slog.Logger
}

var _ Source = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for page and log fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the server section of the configuration.
func NewClient(cfg config.ServerConfig, opts ...Option) (*Client, error) {
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if _, err := url.Parse(base); err != nil {
		return nil, errors.ConfigError("invalid server base URL").WithContext("base_url", base).Build()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	c := &Client{
		baseURL:  base,
		timeout:  timeout,
		http:     &http.Client{Timeout: timeout},
		policy:   retry.FromConfig(cfg.Retry),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	rpc, err := newXMLRPCCaller(base+"all/xmlrpc", timeout)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "cannot create xml-rpc client").Build()
	}
	c.rpc = rpc
	return c, nil
}

func (c *Client) buildURL(builder string, number int) string {
	return c.baseURL + "all/builders/" + url.PathEscape(builder) + "/builds/" + strconv.Itoa(number)
}

// BuildPage fetches the HTML summary page of a build.
func (c *Client) BuildPage(ctx context.Context, builder string, number int) (string, error) {
	return c.get(ctx, metrics.FetchBuildPage, c.buildURL(builder, number))
}

// StepLog fetches the plain-text stdio log of a build step.
func (c *Client) StepLog(ctx context.Context, builder string, number int, step string) (string, error) {
	u := c.buildURL(builder, number) + "/steps/" + url.PathEscape(step) + "/logs/stdio/text"
	return c.get(ctx, metrics.FetchStepLog, u)
}

// Builders fetches the builder overview page.
func (c *Client) Builders(ctx context.Context) ([]RemoteBuilder, error) {
	u := c.baseURL + "all/one_box_per_builder"
	page, err := c.get(ctx, metrics.FetchBuilders, u)
	if err != nil {
		return nil, err
	}
	builders, err := ParseBuilderList(page)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "malformed builder list").
			Warning().WithContext("url", u).Build()
	}
	return builders, nil
}

// get downloads u, retrying transient failures according to the policy.
func (c *Client) get(ctx context.Context, kind metrics.FetchKind, u string) (string, error) {
	var body string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		var err error
		body, err = c.fetch(ctx, u)
		c.recorder.ObserveFetch(kind, time.Since(start), err == nil)
		return err
	}, errors.IsTransient, func(attempt int, err error) {
		c.recorder.IncFetchRetry(kind)
		c.logger.Debug("Retrying fetch", logfields.URL(u), slog.Int("attempt", attempt), logfields.Error(err))
	})
	return body, err
}

func (c *Client) fetch(ctx context.Context, u string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryNetwork, "failed to create request").
			WithContext("url", u).Build()
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryNetwork, "request failed").
			Warning().Retryable().WithContext("url", u).Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b := errors.NetworkError(fmt.Sprintf("unexpected status %d", resp.StatusCode)).
			WithContext("url", u).WithContext("status", resp.StatusCode)
		if resp.StatusCode < 500 {
			b = b.WithRetry(errors.RetryNever)
		}
		return "", b.Build()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryNetwork, "failed to read response").
			Warning().Retryable().WithContext("url", u).Build()
	}
	return string(data), nil
}
