// Package rest provides the HTTP client shared by the REST provider
// adapters: bearer authentication, retry with exponential backoff, request
// rate limiting, and a single choke point that turns every failed response
// into a normalized cloud error.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/cloudboss/cloudboss/internal/bandwidth"
	"github.com/cloudboss/cloudboss/internal/cloud"
)

const (
	defaultUserAgent = "cloudboss/0.1"
	defaultScheme    = "Bearer"

	// maxErrorBody caps how much of a failed response is read for normalization.
	maxErrorBody = 1 << 20
)

// Options configures a Client. Only BaseURL and Normalizer are required.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      oauth2.TokenSource // nil sends no Authorization header
	AuthScheme string             // "Bearer" (default) or e.g. "OAuth"
	UserAgent  string
	Normalizer cloud.Normalizer

	// RequestsPerSecond throttles request starts across all goroutines
	// sharing the client. Zero disables throttling.
	RequestsPerSecond float64

	// Bandwidth limits request bodies (uploads). Responses are limited by
	// the caller, which owns the destination writer.
	Bandwidth *bandwidth.Limiter
	Logger    *slog.Logger
}

// Client is a provider-neutral REST client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      oauth2.TokenSource
	scheme     string
	userAgent  string
	normalizer cloud.Normalizer
	limiter    *rate.Limiter
	bandwidth  *bandwidth.Limiter
	logger     *slog.Logger

	// sleepFunc waits between attempts; tests swap it for a no-op.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New creates a REST client.
func New(opts Options) *Client {
	c := &Client{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		token:      opts.Token,
		scheme:     opts.AuthScheme,
		userAgent:  opts.UserAgent,
		normalizer: opts.Normalizer,
		bandwidth:  opts.Bandwidth,
		logger:     opts.Logger,
		sleepFunc:  sleep,
	}

	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}

	if c.scheme == "" {
		c.scheme = defaultScheme
	}

	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}

	if c.normalizer == nil {
		c.normalizer = cloud.NormalizerFunc(func(status int, _ []byte) *cloud.Error {
			return cloud.StatusError(status)
		})
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return c
}

// SetSleepFunc replaces the retry sleep. Intended for tests in adapter packages.
func (c *Client) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	c.sleepFunc = fn
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string // appended to the base URL unless URL is set
	URL    string // absolute URL, e.g. a pre-signed upload or download link
	Query  url.Values
	Header http.Header

	// Body is rewound before every attempt so retries resend it in full.
	Body          io.ReadSeeker
	ContentType   string
	ContentLength int64 // 0 lets net/http infer it where possible

	// NoAuth suppresses the Authorization header (pre-signed URLs).
	NoAuth bool
}

// JSONBody marshals v into a rewindable request body.
func JSONBody(v any) (io.ReadSeeker, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rest: marshaling request body: %w", err)
	}

	return bytes.NewReader(data), nil
}

// Do executes a request, retrying network errors and transient statuses.
// A 2xx response is returned with its body open for the caller to close.
// Anything else is read, closed and turned into a *cloud.Error by the
// client's Normalizer.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	target, err := c.resolveURL(req)
	if err != nil {
		return nil, err
	}

	log := c.logger.With(slog.String("method", req.Method), slog.String("url", redact(target)))

	for attempt := 0; ; attempt++ {
		auth, err := c.authorization(req)
		if err != nil {
			log.Debug("no usable token", slog.String("error", err.Error()))

			return nil, err
		}

		resp, err := c.doOnce(ctx, req, target, auth)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("rest: request canceled: %w", ctx.Err())
		}

		var wait time.Duration

		switch {
		case err != nil:
			if attempt == maxRetries {
				return nil, fmt.Errorf("rest: %s %s failed after %d retries: %w",
					req.Method, redact(target), maxRetries, err)
			}

			wait = backoff(attempt)
			log.Warn("retrying after network error",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			log.Debug("request succeeded", slog.Int("status", resp.StatusCode))

			return resp, nil

		default:
			body := readErrorBody(resp)

			if !retryableStatus(resp.StatusCode) || attempt == maxRetries {
				cerr := c.normalizer.Normalize(resp.StatusCode, body)
				if cerr == nil {
					cerr = cloud.StatusError(resp.StatusCode)
				}

				log.Debug("request failed",
					slog.Int("status", resp.StatusCode),
					slog.Int("attempts", attempt+1),
					slog.String("code", cerr.Code),
				)

				return nil, cerr
			}

			wait = retryWait(resp.Header, attempt)
			log.Warn("retrying after HTTP error",
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
			)
		}

		if err := c.sleepFunc(ctx, wait); err != nil {
			return nil, fmt.Errorf("rest: request canceled: %w", err)
		}
	}
}

// readErrorBody reads at most maxErrorBody bytes of a failed response for
// the Normalizer and closes it. A read failure leaves the body empty.
func readErrorBody(resp *http.Response) []byte {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil
	}

	return body
}

// DoJSON executes a request and decodes a successful JSON response into
// out. A nil out discards the body.
func (c *Client) DoJSON(ctx context.Context, req *Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fmt.Errorf("rest: draining response body: %w", err)
		}

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rest: decoding %s response: %w", req.Method, err)
	}

	return nil
}

// Stream executes a request and copies a successful response body into w.
func (c *Client) Stream(ctx context.Context, req *Request, w io.Writer) (int64, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("rest: streaming response body: %w", err)
	}

	return n, nil
}

func (c *Client) resolveURL(req *Request) (string, error) {
	raw := req.URL
	if raw == "" {
		raw = c.baseURL + req.Path
	}

	if len(req.Query) == 0 {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("rest: parsing url: %w", err)
	}

	q := u.Query()
	for k, vs := range req.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// authorization returns the Authorization header value for r, or "" when
// none is sent. A token source that cannot produce a token is an auth
// failure and is not retried.
func (c *Client) authorization(r *Request) (string, error) {
	if r.NoAuth || c.token == nil {
		return "", nil
	}

	tok, err := c.token.Token()
	if err != nil {
		return "", cloud.NewError(cloud.CodeAuth, "obtaining token: "+err.Error())
	}

	return c.scheme + " " + tok.AccessToken, nil
}

// body rewinds r.Body and returns it without a Close method, so the
// transport never closes a file the caller still owns. The second value is
// the length to announce.
func (c *Client) body(ctx context.Context, r *Request) (io.ReadCloser, int64, error) {
	end, err := r.Body.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("rewinding request body: %w", err)
	}

	if _, err := r.Body.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("rewinding request body: %w", err)
	}

	size := end
	if r.ContentLength > 0 {
		size = r.ContentLength
	}

	if size == 0 {
		return http.NoBody, 0, nil
	}

	return io.NopCloser(c.bandwidth.WrapReader(ctx, r.Body)), size, nil
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, r *Request, target, auth string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if r.Body != nil {
		body, size, err := c.body(ctx, r)
		if err != nil {
			return nil, err
		}

		req.Body = body
		req.ContentLength = size
		req.GetBody = func() (io.ReadCloser, error) {
			body, _, err := c.body(ctx, r)

			return body, err
		}
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}

	req.Header.Set("User-Agent", c.userAgent)

	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	return c.httpClient.Do(req)
}

// redact strips the query string, which may carry pre-signed credentials.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.RawQuery = ""

	return u.String()
}
