package ptp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/s0up4200/ptpapi/apierr"
	"github.com/s0up4200/ptpapi/config"
	"github.com/s0up4200/ptpapi/ratelimit"
)

// Client represents a PassThePopcorn API client
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	limiter    Limiter
	lazyLogin  bool
	fs         afero.Fs
	userAgent  string
	metrics    *Metrics
	logger     zerolog.Logger
	now        func() time.Time

	session    sessionStore
	loginGroup singleflight.Group
}

// response is a completed exchange with a 2xx status.
type response struct {
	status int
	header http.Header
	body   []byte
}

// NewClient creates a new PassThePopcorn client. No request is made until
// the first call or an explicit Login.
func NewClient(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("ptp: configuration is required")
	}

	baseURL, err := cfg.GetRequiredString(config.KeyBaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	limiter := o.limiter
	if limiter == nil {
		bucket, err := ratelimit.NewTokenBucket(o.capacity, o.rate)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		limiter = bucket
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: o.timeout,
		}
	}

	fs := o.fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	var metrics *Metrics
	if o.registerer != nil {
		metrics = NewMetrics(o.registerer)
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    limiter,
		lazyLogin:  o.lazyLogin,
		fs:         fs,
		userAgent:  o.userAgent,
		metrics:    metrics,
		logger:     logger.With().Str("component", "ptp").Logger(),
		now:        o.now,
	}, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Get performs a GET against endpoint and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	resp, err := c.do(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.body), nil
}

// getJSON performs a GET and decodes the body into T.
func getJSON[T any](ctx context.Context, c *Client, endpoint string, params url.Values) (*T, error) {
	resp, err := c.do(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return &out, nil
}

// do runs one request through the pipeline: session, rate limit, headers,
// exchange and classification. It never retries.
func (c *Client) do(ctx context.Context, endpoint string, params url.Values) (*response, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	waitStart := time.Now()
	if err := c.limiter.Consume(ctx, 1); err != nil {
		return nil, apierr.Transport(endpoint, err)
	}
	c.metrics.observeRateLimitWait(time.Since(waitStart))

	target, err := c.resolveURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apierr.Transport(endpoint, err)
	}

	session := c.session.current()
	c.setHeaders(req, session)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observeRequest(endpoint, 0, time.Since(start))
		return nil, c.fail(apierr.Transport(endpoint, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	c.metrics.observeRequest(endpoint, resp.StatusCode, duration)
	if err != nil {
		return nil, c.fail(apierr.Transport(endpoint, err))
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("PassThePopcorn request")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if c.session.invalidate(session) {
			c.metrics.observeInvalidation()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Msg("Session rejected, login required")
		}
		return nil, c.fail(apierr.HTTP(endpoint, resp.StatusCode, decodeBody(body)))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, c.fail(apierr.HTTP(endpoint, resp.StatusCode, decodeBody(body)))
	}

	if payload := upstreamPayload(body); payload != nil {
		return nil, c.fail(apierr.Upstream(endpoint, resp.StatusCode, payload))
	}

	return &response{
		status: resp.StatusCode,
		header: resp.Header,
		body:   body,
	}, nil
}

// ensureSession logs in lazily when there is no session yet.
func (c *Client) ensureSession(ctx context.Context) error {
	if !c.lazyLogin || c.session.current().Valid() {
		return nil
	}
	return c.Login(ctx)
}

func (c *Client) fail(err *apierr.Error) error {
	c.metrics.observeError(err.Kind)
	return err
}

// resolveURL joins endpoint onto the base URL and appends params to any
// query the endpoint already carries.
func (c *Client) resolveURL(endpoint string, params url.Values) (string, error) {
	baseURL, err := c.cfg.GetRequiredString(config.KeyBaseURL)
	if err != nil {
		return "", err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	u := base.ResolveReference(ref)
	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// setHeaders applies the per-request header rules.
func (c *Client) setHeaders(req *http.Request, session Session) {
	if cookie := session.CookieHeader(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	if c.cfg.Has(config.APIAuthKeys...) {
		apiUser, _ := c.cfg.GetString(config.KeyAPIUser)
		apiKey, _ := c.cfg.GetString(config.KeyAPIKey)
		req.Header.Set("ApiUser", apiUser)
		req.Header.Set("ApiKey", apiKey)
	}

	if session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+session.Token)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
}

// upstreamPayload returns the error payload if body is a JSON object with a
// string "error" field.
func upstreamPayload(body []byte) *apierr.Payload {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil
	}

	raw, ok := fields["error"]
	if !ok {
		return nil
	}
	var payload apierr.Payload
	if err := json.Unmarshal(raw, &payload.Error); err != nil {
		return nil
	}

	if raw, ok := fields["code"]; ok {
		var code FlexInt
		if json.Unmarshal(raw, &code) == nil {
			payload.Code = int(code)
		}
	}
	if raw, ok := fields["status"]; ok {
		var status FlexString
		if json.Unmarshal(raw, &status) == nil {
			payload.Status = string(status)
		}
	}

	return &payload
}

// decodeBody returns the parsed JSON body, or the text if it is not JSON.
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}
