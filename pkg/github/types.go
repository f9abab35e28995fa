package github

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// PRRef identifies one pull request by owner, repository, and number.
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

// RepoKey returns the owner/repo pair.
func (r PRRef) RepoKey() string {
	return r.Owner + "/" + r.Repo
}

func (r PRRef) String() string {
	return fmt.Sprintf("%s#%d", r.RepoKey(), r.Number)
}

var prURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`),
	regexp.MustCompile(`api\.github\.com/repos/([^/]+)/([^/]+)/pulls/(\d+)`),
}

// ParsePRURL extracts a PRRef from a github.com or api.github.com PR URL.
func ParsePRURL(raw string) (PRRef, bool) {
	for _, p := range prURLPatterns {
		m := p.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		return PRRef{Owner: m[1], Repo: m[2], Number: n}, true
	}
	return PRRef{}, false
}

// PullRequest is the subset of the pulls API response the KPI engine reads.
type PullRequest struct {
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	State        string     `json:"state"`
	Merged       bool       `json:"merged"`
	CreatedAt    *time.Time `json:"created_at"`
	MergedAt     *time.Time `json:"merged_at"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	ChangedFiles int        `json:"changed_files"`
	HTMLURL      string     `json:"html_url"`
	Base         GitRef     `json:"base"`
	Head         GitRef     `json:"head"`
	User         Account    `json:"user"`
}

// GitRef is a branch reference on a pull request.
type GitRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// Account is a GitHub user or organization.
type Account struct {
	Login string `json:"login"`
}

// Review is one PR review submission.
type Review struct {
	State       string     `json:"state"`
	SubmittedAt *time.Time `json:"submitted_at"`
	User        Account    `json:"user"`
}

// Commit is one commit on a pull request.
type Commit struct {
	SHA string `json:"sha"`
}

// PRFile is one file touched by a pull request.
type PRFile struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// CheckRun is one CI check execution for a commit.
type CheckRun struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Conclusion  string     `json:"conclusion"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Alert is a code scanning, secret scanning, or Dependabot alert.
type Alert struct {
	State     string     `json:"state"`
	CreatedAt *time.Time `json:"created_at"`
}

// DependencyChange is one entry of a dependency-review diff.
type DependencyChange struct {
	Name            string          `json:"name"`
	ChangeType      string          `json:"change_type"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// Vulnerability is a known advisory attached to a dependency change.
type Vulnerability struct {
	Severity        string `json:"severity"`
	AdvisoryGHSAID  string `json:"advisory_ghsa_id"`
	AdvisorySummary string `json:"advisory_summary"`
}

// PRData bundles everything fetched for a single pull request. Sub-resources
// that could not be fetched stay empty; Details is nil when even the PR
// itself was unreachable.
type PRData struct {
	URL       string       `json:"url"`
	Ref       PRRef        `json:"-"`
	Details   *PullRequest `json:"details,omitempty"`
	Reviews   []Review     `json:"reviews,omitempty"`
	Commits   []Commit     `json:"commits,omitempty"`
	Files     []PRFile     `json:"files,omitempty"`
	CheckRuns []CheckRun   `json:"check_runs,omitempty"`
}
