// Package probe executes single HTTP checks against guild endpoints with a
// hard per-attempt deadline, bounded retries and a failure-count circuit
// breaker.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/monitoring/metrics"
)

const maxBodySize = 4 << 20

// Client probes HTTP endpoints.
type Client struct {
	cfg        config.RequestConfig
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for anomalous errors.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a new probe client.
func NewClient(cfg config.RequestConfig, opts ...Option) *Client {
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: cfg.Timeout,
			},
		},
		log: slog.Default().With("component", "probe"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retries returns the configured retry count.
func (c *Client) Retries() int {
	return c.cfg.Retries
}

// EvaluatePerformanceMode returns the retry budget for the next probe given
// the failures already seen in this validation: 0 once performance mode is on
// and the threshold is reached, otherwise the configured retry count.
func (c *Client) EvaluatePerformanceMode(failed int) int {
	if c.cfg.PerformanceMode && failed >= c.cfg.PerformanceModeThreshold {
		return 0
	}
	return c.cfg.Retries
}

// Probe requests baseURL+path, retrying failed attempts up to retries times.
// It returns the first successful result or the last failed one.
func (c *Client) Probe(ctx context.Context, baseURL, path string, retries int, method string, body any) *Result {
	if method == "" {
		method = http.MethodGet
	}

	target, err := JoinURL(baseURL, path)
	if err != nil {
		return &Result{URL: baseURL, ErrorKind: ErrorKindOther, Error: err.Error()}
	}

	payload, err := encodeBody(body)
	if err != nil {
		return &Result{URL: target, ErrorKind: ErrorKindOther, Error: err.Error()}
	}

	retries = max(retries, 0)
	var res *Result
	for attempt := 0; attempt <= retries; attempt++ {
		res = c.attempt(ctx, method, target, payload)
		res.Attempts = attempt + 1
		if res.OK || attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return res
		case <-time.After(c.cfg.RetryPause):
		}
	}
	return res
}

func (c *Client) attempt(ctx context.Context, method, target string, payload []byte) *Result {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := &Result{URL: target}
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		outcome := "ok"
		if !res.OK {
			outcome = string(res.ErrorKind)
		}
		metrics.ProbeAttempts.WithLabelValues(outcome).Inc()
		metrics.ProbeLatency.WithLabelValues(method).Observe(res.Elapsed.Seconds())
	}()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, target, reader)
	if err != nil {
		res.ErrorKind, res.Error = ErrorKindOther, err.Error()
		return res
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.fail(res, err)
		return res
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.fail(res, err)
		return res
	}

	res.StatusCode = resp.StatusCode
	res.Header = resp.Header
	res.Proto = resp.Proto
	res.Body = data
	if len(data) > 0 && json.Valid(data) {
		var parsed any
		if err := json.Unmarshal(data, &parsed); err == nil {
			res.JSON = parsed
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.ErrorKind = ErrorKindHTTP
		res.Error = fmt.Sprintf("http %d", resp.StatusCode)
		return res
	}

	res.OK = true
	return res
}

func (c *Client) fail(res *Result, err error) {
	res.ErrorKind, res.Error = Classify(err)
	if res.ErrorKind == ErrorKindUnknown {
		c.log.Warn("Unexpected probe error", "url", res.URL, "error", err)
	}
}

// JoinURL appends path to base without discarding either's path segments.
func JoinURL(base, path string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", errors.New("empty base url")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("malformed base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("malformed base url %q", base)
	}
	if path == "" {
		return u.String(), nil
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("malformed path: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawPath = ""
	if ref.RawQuery != "" {
		u.RawQuery = ref.RawQuery
	}
	return u.String(), nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return data, nil
	}
}
