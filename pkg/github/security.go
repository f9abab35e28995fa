package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// CodeScanningAlerts lists a repository's code scanning alerts in one state.
func (c *httpClient) CodeScanningAlerts(ctx context.Context, owner, repo, state string) ([]Alert, error) {
	var alerts []Alert
	path := fmt.Sprintf("/repos/%s/%s/code-scanning/alerts", owner, repo)
	params := url.Values{
		"state":    {state},
		"per_page": {strconv.Itoa(defaultPerPage)},
	}
	if err := c.get(ctx, path, params, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// SecretScanningAlertsOrg lists secret scanning alerts across an organization.
func (c *httpClient) SecretScanningAlertsOrg(ctx context.Context, org string) ([]Alert, error) {
	var alerts []Alert
	path := fmt.Sprintf("/orgs/%s/secret-scanning/alerts", org)
	params := url.Values{"per_page": {strconv.Itoa(defaultPerPage)}}
	if err := c.get(ctx, path, params, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// DependabotAlerts lists a repository's Dependabot alerts.
func (c *httpClient) DependabotAlerts(ctx context.Context, owner, repo string) ([]Alert, error) {
	var alerts []Alert
	path := fmt.Sprintf("/repos/%s/%s/dependabot/alerts", owner, repo)
	params := url.Values{"per_page": {strconv.Itoa(defaultPerPage)}}
	if err := c.get(ctx, path, params, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// DependencyReview diffs the dependency graph between two refs.
func (c *httpClient) DependencyReview(ctx context.Context, owner, repo, base, head string) ([]DependencyChange, error) {
	var changes []DependencyChange
	path := fmt.Sprintf("/repos/%s/%s/dependency-graph/compare/%s...%s", owner, repo, base, head)
	if err := c.get(ctx, path, nil, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}
