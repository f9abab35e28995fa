// Package enterprise is a thin client for the Devin Enterprise usage API.
// It handles auth, per-host rate limiting, retry classification, and the
// base-URL split between enterprise-scoped and org-root endpoints. Pagination
// loops live with the callers.
package enterprise

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/acuworks/finops-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.devin.ai/v2/enterprise"
	defaultRootURL = "https://api.devin.ai/v2"
)

// Client performs authenticated GETs against the usage provider.
type Client interface {
	// Get fetches a single endpoint and returns the raw body with the HTTP
	// status. Errors are classified per the ingestion taxonomy.
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, int, error)

	// GetConsumptionPage fetches one skip/limit page of a cursorless
	// collection endpoint.
	GetConsumptionPage(ctx context.Context, path string, skip, limit int, params url.Values) (*ConsumptionPage, error)

	// GetUsageLogsPage fetches one page of the page/page_size style usage
	// log endpoint.
	GetUsageLogsPage(ctx context.Context, path string, page, pageSize int) (*UsageLogsPage, error)

	// ResolveURL returns the full URL a path resolves to, including the
	// audit-log base split.
	ResolveURL(path string) string
}

// ConsumptionPage is one page of a has_more-paginated collection.
type ConsumptionPage struct {
	Data    []json.RawMessage `json:"data"`
	HasMore bool              `json:"has_more"`
}

// UsageLogsPage is one page of the page-numbered usage log endpoint.
type UsageLogsPage struct {
	Data       []json.RawMessage `json:"data"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the enterprise-scoped base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRootURL overrides the org-root base URL used for audit logs.
func WithRootURL(u string) Option {
	return func(c *httpClient) {
		c.rootURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	rootURL string
	retry   resilience.Policy
	limiter *rate.Limiter
	http    *http.Client
}

// NewClient creates a usage API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		rootURL: defaultRootURL,
		retry:   resilience.DefaultPolicy(),
		limiter: rate.NewLimiter(rate.Limit(8), 8),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ResolveURL routes audit-log paths to the org root; everything else is
// enterprise-scoped.
func (c *httpClient) ResolveURL(path string) string {
	if strings.HasPrefix(path, "/audit-logs") {
		return c.rootURL + path
	}
	return c.baseURL + path
}

func (c *httpClient) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, int, error) {
	fullURL := c.ResolveURL(path)
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	type page struct {
		body   json.RawMessage
		status int
	}
	p := c.retry
	if p.OnRetry == nil {
		p.OnRetry = resilience.RetryLogger("enterprise", path)
	}
	res, err := resilience.DoVal(ctx, p, path, func(ctx context.Context) (page, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return page{}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return page{}, eris.Wrap(err, "enterprise: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return page{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return page{}, err
		}

		if resp.StatusCode != http.StatusOK {
			return page{}, &resilience.StatusError{
				Code:       resp.StatusCode,
				Endpoint:   path,
				Body:       strings.TrimSpace(string(body)),
				RetryAfter: parseRetryAfter(resp.Header),
			}
		}
		return page{body: body, status: resp.StatusCode}, nil
	})
	if err != nil {
		return nil, statusOf(err), err
	}
	return res.body, res.status, nil
}

func (c *httpClient) GetConsumptionPage(ctx context.Context, path string, skip, limit int, params url.Values) (*ConsumptionPage, error) {
	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}
	merged.Set("skip", strconv.Itoa(skip))
	merged.Set("limit", strconv.Itoa(limit))

	body, _, err := c.Get(ctx, path, merged)
	if err != nil {
		return nil, err
	}

	var pg ConsumptionPage
	if err := json.Unmarshal(body, &pg); err != nil {
		return nil, eris.Wrapf(err, "enterprise: decode page of %s", path)
	}
	return &pg, nil
}

func (c *httpClient) GetUsageLogsPage(ctx context.Context, path string, page, pageSize int) (*UsageLogsPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))

	body, _, err := c.Get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var pg UsageLogsPage
	if err := json.Unmarshal(body, &pg); err != nil {
		return nil, eris.Wrapf(err, "enterprise: decode usage logs page %d", page)
	}
	return &pg, nil
}

// parseRetryAfter reads a delay-seconds Retry-After header, falling back to
// X-RateLimit-Reset epoch seconds.
func parseRetryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Until(time.Unix(epoch, 0)); d > 0 {
				return d
			}
		}
	}
	return 0
}

// statusOf pulls the HTTP status out of a classified error, 0 for transport
// failures.
func statusOf(err error) int {
	var ae *resilience.APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}
