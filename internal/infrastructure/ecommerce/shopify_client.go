package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomnomnom/linkheader"
	"go.uber.org/zap"

	"github.com/erp/shopsync/internal/domain/integration"
	"github.com/erp/shopsync/internal/infrastructure/telemetry"
)

// Client is the REST transport to one shop. Every non-2xx response becomes a
// *integration.RemoteHTTPError; 429 responses are retried with backoff first.
type Client struct {
	base       string
	creds      credentials
	cfg        ClientConfig
	httpClient *http.Client
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client for the shop and credentials in settings.
func NewClient(settings *integration.Settings, cfg ClientConfig, httpClient *http.Client) (*Client, error) {
	if settings == nil {
		return nil, integration.NewConfigurationError("", "settings are required")
	}
	base, err := baseURL(settings.ShopURL)
	if err != nil {
		return nil, err
	}
	creds, err := credentialsFor(settings)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		base:       base,
		creds:      creds,
		cfg:        cfg,
		httpClient: httpClient,
		logger:     zap.NewNop(),
		sleep:      sleepContext,
	}, nil
}

// SetSyncMetrics sets the metrics recorder
func (c *Client) SetSyncMetrics(m *telemetry.SyncMetrics) {
	c.metrics = m
}

// SetLogger sets the logger
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Get decodes the JSON response of resource into out.
func (c *Client) Get(ctx context.Context, resource string, out any) error {
	body, _, err := c.do(ctx, http.MethodGet, c.base+c.cfg.adminPath(resource), nil)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Post sends in as JSON and decodes the response into out (which may be nil).
func (c *Client) Post(ctx context.Context, resource string, in, out any) error {
	return c.send(ctx, http.MethodPost, resource, in, out)
}

// Put sends in as JSON and decodes the response into out (which may be nil).
func (c *Client) Put(ctx context.Context, resource string, in, out any) error {
	return c.send(ctx, http.MethodPut, resource, in, out)
}

// Delete removes resource.
func (c *Client) Delete(ctx context.Context, resource string) error {
	_, _, err := c.do(ctx, http.MethodDelete, c.base+c.cfg.adminPath(resource), nil)
	return err
}

// GetPages walks a paginated list, calling visit with each page body. The next
// page comes from the rel="next" entry of the Link header.
func (c *Client) GetPages(ctx context.Context, resource string, query url.Values, visit func(body []byte) error) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", strconv.Itoa(c.cfg.PageSize))
	next := c.base + c.cfg.adminPath(resource) + "?" + query.Encode()
	for next != "" {
		body, header, err := c.do(ctx, http.MethodGet, next, nil)
		if err != nil {
			return err
		}
		if err := visit(body); err != nil {
			return err
		}
		next = nextPage(header.Get("Link"))
	}
	return nil
}

func nextPage(link string) string {
	if link == "" {
		return ""
	}
	for _, l := range linkheader.Parse(link).FilterByRel("next") {
		return l.URL
	}
	return ""
}

func (c *Client) send(ctx context.Context, method, resource string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("shopify: failed to encode %s %s: %w", method, resource, err)
	}
	body, _, err := c.do(ctx, method, c.base+c.cfg.adminPath(resource), payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(body, out)
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrRemoteInvalidPayload, err)
	}
	return nil
}

// do performs one logical request, retrying 429 responses up to MaxRetries times.
func (c *Client) do(ctx context.Context, method, target string, payload []byte) ([]byte, http.Header, error) {
	path := requestPath(target)
	ctx, span := telemetry.StartClientSpan(ctx, "shopify "+method, "http.method", method, "http.route", path)
	defer span.End()

	for attempt := 0; ; attempt++ {
		body, header, status, err := c.roundTrip(ctx, method, target, payload)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, nil, err
		}
		telemetry.SetAttributes(span, "http.status_code", status)
		if status >= 200 && status < 300 {
			return body, header, nil
		}

		httpErr := &integration.RemoteHTTPError{
			Method:     method,
			Path:       path,
			StatusCode: status,
			Body:       truncate(string(body), 512),
		}
		if status != http.StatusTooManyRequests || attempt >= c.cfg.MaxRetries {
			telemetry.RecordError(span, httpErr)
			return nil, nil, httpErr
		}

		wait := retryDelay(header.Get("Retry-After"), attempt, c.cfg.MaxBackoff)
		c.logger.Warn("Rate limited by shop, backing off",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
		)
		if err := c.sleep(ctx, wait); err != nil {
			telemetry.RecordError(span, err)
			return nil, nil, err
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, method, target string, payload []byte) ([]byte, http.Header, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds.accessToken != "" {
		req.Header.Set(headerAccessToken, c.creds.accessToken)
	} else {
		req.SetBasicAuth(c.creds.basicUser, c.creds.basicPassword)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRemoteCall(ctx, method, 0, time.Since(start))
		if ctx.Err() != nil {
			return nil, nil, 0, ctx.Err()
		}
		return nil, nil, 0, fmt.Errorf("%w: %v", integration.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.metrics.RecordRemoteCall(ctx, method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, nil, 0, fmt.Errorf("shopify: failed to read response: %w", err)
	}
	return body, resp.Header, resp.StatusCode, nil
}

// retryDelay honours Retry-After (seconds, possibly fractional) and otherwise
// doubles from one second. Both are capped at limit.
func retryDelay(retryAfter string, attempt int, limit time.Duration) time.Duration {
	var d time.Duration
	if secs, err := strconv.ParseFloat(strings.TrimSpace(retryAfter), 64); err == nil && secs >= 0 {
		d = time.Duration(secs * float64(time.Second))
	} else {
		d = time.Second << attempt
	}
	if d > limit {
		return limit
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func requestPath(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return u.Path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
