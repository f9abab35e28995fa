package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/resilience"
)

// PullRequest fetches one PR's details.
func (c *httpClient) PullRequest(ctx context.Context, ref PRRef) (*PullRequest, error) {
	var pr PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", ref.Owner, ref.Repo, ref.Number)
	if err := c.get(ctx, path, nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// Reviews fetches every review on a PR.
func (c *httpClient) Reviews(ctx context.Context, ref PRRef) ([]Review, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", ref.Owner, ref.Repo, ref.Number)
	return collectPages[Review](ctx, c, path, nil)
}

// Commits fetches every commit on a PR.
func (c *httpClient) Commits(ctx context.Context, ref PRRef) ([]Commit, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/commits", ref.Owner, ref.Repo, ref.Number)
	return collectPages[Commit](ctx, c, path, nil)
}

// Files fetches every file touched by a PR.
func (c *httpClient) Files(ctx context.Context, ref PRRef) ([]PRFile, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files", ref.Owner, ref.Repo, ref.Number)
	return collectPages[PRFile](ctx, c, path, nil)
}

// CheckRuns fetches the check runs for one commit.
func (c *httpClient) CheckRuns(ctx context.Context, owner, repo, sha string) ([]CheckRun, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits/%s/check-runs", owner, repo, sha)

	var all []CheckRun
	for page := 1; ; page++ {
		var envelope struct {
			CheckRuns []CheckRun `json:"check_runs"`
		}
		if err := c.get(ctx, path, pageParams(page, nil), &envelope); err != nil {
			return nil, err
		}
		all = append(all, envelope.CheckRuns...)
		if len(envelope.CheckRuns) < defaultPerPage {
			return all, nil
		}
	}
}

// RepoPulls lists a repository's pull requests, newest first. maxPages <= 0
// fetches until the API runs dry.
func (c *httpClient) RepoPulls(ctx context.Context, owner, repo, state string, maxPages int) ([]PullRequest, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)

	var all []PullRequest
	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		params := url.Values{
			"state":     {state},
			"sort":      {"created"},
			"direction": {"desc"},
		}
		var prs []PullRequest
		if err := c.get(ctx, path, pageParams(page, params), &prs); err != nil {
			return nil, err
		}
		all = append(all, prs...)
		if len(prs) < defaultPerPage {
			break
		}
	}
	return all, nil
}

// collectPages drains a page/per_page list endpoint.
func collectPages[T any](ctx context.Context, c *httpClient, path string, params url.Values) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		var items []T
		if err := c.get(ctx, path, pageParams(page, params), &items); err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < defaultPerPage {
			return all, nil
		}
	}
}

func pageParams(page int, base url.Values) url.Values {
	params := url.Values{}
	for k, v := range base {
		params[k] = v
	}
	params.Set("per_page", strconv.Itoa(defaultPerPage))
	params.Set("page", strconv.Itoa(page))
	return params
}

// FetchAllPRData collects details, reviews, commits, files, and check runs
// for every parseable PR URL. Repositories that deny access are remembered in
// forbidden and skipped for the rest of the run; sub-resource failures leave
// that slot empty rather than discarding the PR.
func FetchAllPRData(ctx context.Context, c Client, prURLs []string, forbidden *ForbiddenRepos) map[string]PRData {
	results := make(map[string]PRData)

	for _, prURL := range prURLs {
		ref, ok := ParsePRURL(prURL)
		if !ok {
			zap.L().Warn("could not parse PR URL", zap.String("url", prURL))
			continue
		}
		if forbidden.Contains(ref.RepoKey()) {
			zap.L().Info("skipping PR in forbidden repo", zap.String("pr", ref.String()))
			continue
		}

		zap.L().Info("fetching PR data", zap.String("pr", ref.String()))
		data := PRData{URL: prURL, Ref: ref}

		details, err := c.PullRequest(ctx, ref)
		if err != nil {
			if isAuthError(err) {
				zap.L().Warn("no access to repo, skipping remaining calls",
					zap.String("repo", ref.RepoKey()))
				forbidden.Add(ref.RepoKey())
			} else {
				zap.L().Warn("failed to fetch PR details",
					zap.String("pr", ref.String()), zap.Error(err))
			}
			results[prURL] = data
			continue
		}
		data.Details = details

		if data.Reviews, err = c.Reviews(ctx, ref); err != nil {
			zap.L().Warn("failed to fetch PR reviews", zap.String("pr", ref.String()), zap.Error(err))
		}
		if data.Commits, err = c.Commits(ctx, ref); err != nil {
			zap.L().Warn("failed to fetch PR commits", zap.String("pr", ref.String()), zap.Error(err))
		}
		if data.Files, err = c.Files(ctx, ref); err != nil {
			zap.L().Warn("failed to fetch PR files", zap.String("pr", ref.String()), zap.Error(err))
		}
		if sha := details.Head.SHA; sha != "" {
			if data.CheckRuns, err = c.CheckRuns(ctx, ref.Owner, ref.Repo, sha); err != nil {
				zap.L().Warn("failed to fetch check runs", zap.String("pr", ref.String()), zap.Error(err))
			}
		}

		results[prURL] = data
	}

	zap.L().Info("fetched PR data", zap.Int("prs", len(results)))
	return results
}

func isAuthError(err error) bool {
	var ae *resilience.APIError
	return errors.As(err, &ae) && ae.Kind == resilience.KindAuth
}
