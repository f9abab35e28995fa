// Package jira fetches issues and changelogs from the Jira REST API for
// traceability and cycle-time reporting.
package jira

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/resilience"
)

const changelogPageSize = 100

// Client reads issue data from one Jira site.
type Client interface {
	Issue(ctx context.Context, key string) (*Issue, error)
	Changelog(ctx context.Context, key string) ([]ChangelogEntry, error)
}

// Issue is the subset of an issue payload the KPI engine reads.
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields carries the interesting issue fields.
type IssueFields struct {
	Summary string `json:"summary"`
	Status  Status `json:"status"`
}

// Status is an issue workflow status.
type Status struct {
	Name string `json:"name"`
}

// ChangelogEntry is one changelog page value: a timestamped set of field
// changes. Created stays a string because Jira emits offsets without a colon
// ("+0100"), which the RFC 3339 decoder rejects; use ParseTime.
type ChangelogEntry struct {
	Created string          `json:"created"`
	Items   []ChangelogItem `json:"items"`
}

// ParseTime parses a Jira timestamp, accepting both RFC 3339 and Jira's
// colon-less offset format.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ChangelogItem is a single field transition inside a changelog entry.
type ChangelogItem struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

// IssueData bundles an issue with its full changelog.
type IssueData struct {
	Issue     *Issue           `json:"issue,omitempty"`
	Changelog []ChangelogEntry `json:"changelog,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

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

type httpClient struct {
	baseURL string
	email   string
	token   string
	http    *http.Client
	policy  resilience.Policy
}

// NewClient creates a Jira client using basic auth with an API token.
func NewClient(baseURL, email, token string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		email:   email,
		token:   token,
		policy:  resilience.DefaultPolicy(),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	if c.policy.OnRetry == nil {
		c.policy.OnRetry = resilience.RetryLogger("jira", "get")
	}
	return c
}

// Issue fetches one issue by key.
func (c *httpClient) Issue(ctx context.Context, key string) (*Issue, error) {
	var issue Issue
	if err := c.get(ctx, "/rest/api/3/issue/"+key, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// Changelog fetches an issue's full changelog, draining the startAt pages.
func (c *httpClient) Changelog(ctx context.Context, key string) ([]ChangelogEntry, error) {
	path := "/rest/api/3/issue/" + key + "/changelog"

	var all []ChangelogEntry
	for startAt := 0; ; {
		params := url.Values{
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(changelogPageSize)},
		}
		var page struct {
			Values []ChangelogEntry `json:"values"`
			Total  int              `json:"total"`
		}
		if err := c.get(ctx, path, params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Values...)
		startAt += len(page.Values)
		if startAt >= page.Total || len(page.Values) == 0 {
			return all, nil
		}
	}
}

// FetchIssueData collects issue details and changelog for each key. Keys that
// fail are logged and omitted, mirroring the degrade-not-crash policy of PR
// collection.
func FetchIssueData(ctx context.Context, c Client, keys []string) map[string]IssueData {
	results := make(map[string]IssueData)
	for _, key := range keys {
		zap.L().Info("fetching issue data", zap.String("issue", key))

		issue, err := c.Issue(ctx, key)
		if err != nil {
			zap.L().Warn("failed to fetch issue", zap.String("issue", key), zap.Error(err))
			continue
		}
		changelog, err := c.Changelog(ctx, key)
		if err != nil {
			zap.L().Warn("failed to fetch changelog", zap.String("issue", key), zap.Error(err))
		}
		results[key] = IssueData{Issue: issue, Changelog: changelog}
	}
	zap.L().Info("fetched issue data", zap.Int("issues", len(results)))
	return results
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	body, err := resilience.DoVal(ctx, c.policy, path, func(ctx context.Context) ([]byte, error) {
		return c.getOnce(ctx, path, params)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "jira: decode %s response", path)
	}
	return nil
}

func (c *httpClient) getOnce(ctx context.Context, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jira: create request")
	}
	if len(params) > 0 {
		req.URL.RawQuery = params.Encode()
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "jira: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{
			Code:     resp.StatusCode,
			Endpoint: path,
			Body:     string(body),
		}
	}
	return body, nil
}
