package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acuworks/finops-cli/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "bot@example.com", "tok-456",
		WithRetryPolicy(resilience.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
	)
}

func TestClient_Issue(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "tok-456", pass)
		assert.Equal(t, "/rest/api/3/issue/PROJ-7", r.URL.Path)
		fmt.Fprint(w, `{"key": "PROJ-7", "fields": {"summary": "Fix login", "status": {"name": "Done"}}}`)
	})

	issue, err := c.Issue(context.Background(), "PROJ-7")
	require.NoError(t, err)
	assert.Equal(t, "PROJ-7", issue.Key)
	assert.Equal(t, "Done", issue.Fields.Status.Name)
}

func TestClient_Changelog_DrainsStartAtPages(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("startAt") {
		case "0":
			fmt.Fprintf(w, `{"total": 150, "values": %s}`, entryList(100))
		case "100":
			fmt.Fprintf(w, `{"total": 150, "values": %s}`, entryList(50))
		default:
			t.Errorf("unexpected startAt %q", r.URL.Query().Get("startAt"))
		}
	})

	entries, err := c.Changelog(context.Background(), "PROJ-7")
	require.NoError(t, err)
	assert.Len(t, entries, 150)
}

func entryList(n int) string {
	out := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += `{"created": "2024-09-01T09:00:00Z", "items": []}`
	}
	return out + "]"
}

func TestClient_IssueNotFound(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errorMessages": ["Issue does not exist"]}`)
	})

	_, err := c.Issue(context.Background(), "PROJ-404")
	require.Error(t, err)
}

func TestFetchIssueData_FailedKeyOmitted(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/api/3/issue/BAD-1" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{}`)
			return
		}
		if r.URL.Path == "/rest/api/3/issue/PROJ-1/changelog" {
			fmt.Fprint(w, `{"total": 1, "values": [{"created": "2024-09-01T09:00:00Z", "items": []}]}`)
			return
		}
		fmt.Fprint(w, `{"key": "PROJ-1", "fields": {}}`)
	})

	results := FetchIssueData(context.Background(), c, []string{"PROJ-1", "BAD-1"})
	require.Len(t, results, 1)
	require.Contains(t, results, "PROJ-1")
	assert.Len(t, results["PROJ-1"].Changelog, 1)
}
