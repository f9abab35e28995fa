// Package github is a minimal GitHub REST client covering the pull request,
// checks, and security surfaces used for engineering KPI reporting.
package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/acuworks/finops-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultPerPage = 100
	apiVersion     = "2022-11-28"
)

// Client fetches PR and security data from the GitHub REST API.
type Client interface {
	PullRequest(ctx context.Context, ref PRRef) (*PullRequest, error)
	Reviews(ctx context.Context, ref PRRef) ([]Review, error)
	Commits(ctx context.Context, ref PRRef) ([]Commit, error)
	Files(ctx context.Context, ref PRRef) ([]PRFile, error)
	CheckRuns(ctx context.Context, owner, repo, sha string) ([]CheckRun, error)
	RepoPulls(ctx context.Context, owner, repo, state string, maxPages int) ([]PullRequest, error)
	CodeScanningAlerts(ctx context.Context, owner, repo, state string) ([]Alert, error)
	SecretScanningAlertsOrg(ctx context.Context, org string) ([]Alert, error)
	DependabotAlerts(ctx context.Context, owner, repo string) ([]Alert, error)
	DependencyReview(ctx context.Context, owner, repo, base, head string) ([]DependencyChange, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
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
		c.policy = p
	}
}

// WithRateLimit overrides the default request rate limiter.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	policy  resilience.Policy
	limiter *rate.Limiter
}

// NewClient creates a GitHub API client authenticating with the given token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		policy:  resilience.DefaultPolicy(),
		limiter: rate.NewLimiter(8, 8),
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
	if c.policy.OnRetry == nil {
		c.policy.OnRetry = resilience.RetryLogger("github", "get")
	}
	return c
}

// get performs one retried GET and decodes the body into out.
func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	body, err := resilience.DoVal(ctx, c.policy, path, func(ctx context.Context) ([]byte, error) {
		return c.getOnce(ctx, endpoint, params)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "github: decode %s response", path)
	}
	return nil
}

func (c *httpClient) getOnce(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "github: create request")
	}
	if len(params) > 0 {
		req.URL.RawQuery = params.Encode()
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "github: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{
			Code:       effectiveStatus(resp.StatusCode, body),
			Endpoint:   req.URL.Path,
			Body:       string(body),
			RetryAfter: rateLimitResetDelay(resp.Header),
		}
	}
	return body, nil
}

// effectiveStatus maps GitHub's primary rate limit, reported as 403 with a
// rate-limit body, onto 429 so the shared taxonomy retries it instead of
// treating it as an authorization failure.
func effectiveStatus(code int, body []byte) int {
	if code == http.StatusForbidden && strings.Contains(strings.ToLower(string(body)), "rate limit") {
		return http.StatusTooManyRequests
	}
	return code
}

func rateLimitResetDelay(h http.Header) time.Duration {
	reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || reset <= 0 {
		return 0
	}
	d := time.Until(time.Unix(reset, 0))
	if d < 0 {
		return 0
	}
	return d
}

// ForbiddenRepos remembers repositories that denied access so one run never
// knocks on the same locked door twice. Safe for concurrent use.
type ForbiddenRepos struct {
	mu    sync.Mutex
	repos map[string]struct{}
}

// NewForbiddenRepos creates an empty forbidden-repository set.
func NewForbiddenRepos() *ForbiddenRepos {
	return &ForbiddenRepos{repos: make(map[string]struct{})}
}

// Add marks an owner/repo pair as forbidden.
func (f *ForbiddenRepos) Add(repoKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[repoKey] = struct{}{}
}

// Contains reports whether the repository was previously marked forbidden.
func (f *ForbiddenRepos) Contains(repoKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.repos[repoKey]
	return ok
}

// Len returns the number of forbidden repositories.
func (f *ForbiddenRepos) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.repos)
}
