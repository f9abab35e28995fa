package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acuworks/finops-cli/internal/resilience"
)

func fastPolicy() resilience.Policy {
	return resilience.Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("tok-123",
		WithBaseURL(srv.URL),
		WithRetryPolicy(fastPolicy()),
	)
}

func TestParsePRURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		url  string
		want PRRef
		ok   bool
	}{
		{"https://github.com/acme/widgets/pull/42", PRRef{"acme", "widgets", 42}, true},
		{"https://api.github.com/repos/acme/widgets/pulls/7", PRRef{"acme", "widgets", 7}, true},
		{"https://github.com/acme/widgets/issues/42", PRRef{}, false},
		{"not a url", PRRef{}, false},
	}
	for _, tt := range tests {
		ref, ok := ParsePRURL(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.want, ref, tt.url)
	}
}

func TestClient_PullRequest_HeadersAndDecode(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "/repos/acme/widgets/pulls/42", r.URL.Path)
		fmt.Fprint(w, `{"number": 42, "title": "Fix it", "merged": true, "changed_files": 3, "head": {"ref": "fix-branch", "sha": "abc123"}}`)
	})

	pr, err := c.PullRequest(context.Background(), PRRef{"acme", "widgets", 42})
	require.NoError(t, err)
	assert.Equal(t, "Fix it", pr.Title)
	assert.True(t, pr.Merged)
	assert.Equal(t, 3, pr.ChangedFiles)
	assert.Equal(t, "abc123", pr.Head.SHA)
}

func TestClient_Reviews_DrainsPages(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		switch r.URL.Query().Get("page") {
		case "1":
			w.Write([]byte(reviewPage(100)))
		case "2":
			w.Write([]byte(reviewPage(17)))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	reviews, err := c.Reviews(context.Background(), PRRef{"acme", "widgets", 1})
	require.NoError(t, err)
	assert.Len(t, reviews, 117)
}

func reviewPage(n int) string {
	out := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += `{"state": "APPROVED"}`
	}
	return out + "]"
}

func TestClient_CheckRuns_Envelope(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/commits/abc123/check-runs", r.URL.Path)
		fmt.Fprint(w, `{"check_runs": [{"name": "build", "conclusion": "success"}, {"name": "lint", "conclusion": "failure"}]}`)
	})

	runs, err := c.CheckRuns(context.Background(), "acme", "widgets", "abc123")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "failure", runs[1].Conclusion)
}

func TestClient_RateLimit403_Retried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
			return
		}
		fmt.Fprint(w, `{"number": 1}`)
	})

	pr, err := c.PullRequest(context.Background(), PRRef{"acme", "widgets", 1})
	require.NoError(t, err)
	assert.Equal(t, 1, pr.Number)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Plain403_NotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "Resource not accessible by integration"}`)
	})

	_, err := c.PullRequest(context.Background(), PRRef{"acme", "widgets", 1})
	require.Error(t, err)
	assert.True(t, isAuthError(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchAllPRData_ForbiddenRepoSkipped(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	})

	forbidden := NewForbiddenRepos()
	urls := []string{
		"https://github.com/locked/vault/pull/1",
		"https://github.com/locked/vault/pull/2",
	}
	results := FetchAllPRData(context.Background(), c, urls, forbidden)

	// First URL hits the API once and trips the cache; second never fetches.
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, forbidden.Contains("locked/vault"))
	require.Contains(t, results, urls[0])
	assert.Nil(t, results[urls[0]].Details)
	assert.NotContains(t, results, urls[1])
}

func TestFetchAllPRData_UnparseableURLSkipped(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	results := FetchAllPRData(context.Background(), c, []string{"https://example.com/nope"}, NewForbiddenRepos())
	assert.Empty(t, results)
}

func TestFetchAllPRData_SubResourceFailureKeepsPR(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/repos/acme/widgets/pulls/5":
			fmt.Fprint(w, `{"number": 5, "title": "ok", "head": {"sha": ""}}`)
		case r.URL.Path == "/repos/acme/widgets/pulls/5/reviews":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "Not Found"}`)
		default:
			fmt.Fprint(w, `[]`)
		}
	})

	results := FetchAllPRData(context.Background(), c,
		[]string{"https://github.com/acme/widgets/pull/5"}, NewForbiddenRepos())

	data := results["https://github.com/acme/widgets/pull/5"]
	require.NotNil(t, data.Details)
	assert.Equal(t, "ok", data.Details.Title)
	assert.Empty(t, data.Reviews)
}

func TestForbiddenRepos(t *testing.T) {
	t.Parallel()
	f := NewForbiddenRepos()
	assert.False(t, f.Contains("a/b"))
	f.Add("a/b")
	f.Add("a/b")
	assert.True(t, f.Contains("a/b"))
	assert.Equal(t, 1, f.Len())
}
