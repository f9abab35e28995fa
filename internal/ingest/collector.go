// Package ingest pulls usage data out of the provider API: paginated
// collection loops, the multi-endpoint fan-out, and the raw snapshot files
// the reporting stages read back.
package ingest

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acuworks/finops-cli/internal/model"
	"github.com/acuworks/finops-cli/internal/resilience"
	"github.com/acuworks/finops-cli/pkg/enterprise"
)

// FetchResult is the durable record of one endpoint fetch. Written verbatim
// to the raw snapshot and to the API health report.
type FetchResult struct {
	EndpointPath string          `json:"endpoint_path"`
	FullURL      string          `json:"full_url"`
	StatusCode   int             `json:"status_code"`
	FailureKind  string          `json:"failure_kind,omitempty"`
	Timestamp    string          `json:"timestamp"`
	Response     json.RawMessage `json:"response,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// OK reports whether the fetch succeeded.
func (r FetchResult) OK() bool {
	return r.StatusCode == 200 && r.Error == ""
}

// Collector drives paginated and fan-out fetches against the usage API.
type Collector struct {
	client   enterprise.Client
	breakers *resilience.EndpointBreakers

	// MaxConcurrent bounds the endpoint fan-out. Defaults to 4.
	MaxConcurrent int
	// PageLimit is the page size for collection endpoints. Defaults to 100.
	PageLimit int

	nowFunc func() time.Time
}

// NewCollector creates a collector over the given client.
func NewCollector(client enterprise.Client, breakers *resilience.EndpointBreakers) *Collector {
	return &Collector{
		client:        client,
		breakers:      breakers,
		MaxConcurrent: 4,
		PageLimit:     100,
		nowFunc:       time.Now,
	}
}

// CollectConsumption drains a has_more-paginated endpoint, advancing skip by
// the page limit until the provider reports no more data. The provider is
// trusted to terminate; there is no page cap here.
func (c *Collector) CollectConsumption(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	var all []json.RawMessage
	skip := 0
	pages := 0

	for {
		pg, err := c.client.GetConsumptionPage(ctx, path, skip, c.PageLimit, params)
		if err != nil {
			return nil, err
		}
		pages++
		all = append(all, pg.Data...)

		zap.L().Info("fetched consumption page",
			zap.String("endpoint", path),
			zap.Int("page", pages),
			zap.Int("records", len(pg.Data)),
			zap.Bool("has_more", pg.HasMore),
		)

		if !pg.HasMore {
			break
		}
		skip += c.PageLimit
	}

	zap.L().Info("consumption fetch complete",
		zap.String("endpoint", path),
		zap.Int("pages", pages),
		zap.Int("records", len(all)),
	)
	return all, nil
}

// CollectUsageLogs drains a page-numbered usage log endpoint and decodes the
// records. Stops at the provider's reported page count, or when a page comes
// back short. maxPages <= 0 means no cap.
func (c *Collector) CollectUsageLogs(ctx context.Context, path string, maxPages int) ([]model.UsageLog, error) {
	var logs []model.UsageLog

	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			break
		}

		pg, err := c.client.GetUsageLogsPage(ctx, path, page, c.PageLimit)
		if err != nil {
			return nil, err
		}

		for _, raw := range pg.Data {
			var lg model.UsageLog
			if err := json.Unmarshal(raw, &lg); err != nil {
				return nil, eris.Wrapf(err, "ingest: decode usage log on page %d", page)
			}
			logs = append(logs, lg)
		}

		zap.L().Info("fetched usage log page",
			zap.String("endpoint", path),
			zap.Int("page", page),
			zap.Int("total_pages", pg.TotalPages),
			zap.Int("records", len(pg.Data)),
		)

		if page >= pg.TotalPages || len(pg.Data) < c.PageLimit {
			break
		}
	}

	return logs, nil
}

// CollectEndpoints fans out over the named endpoints with bounded
// concurrency. Every endpoint yields a FetchResult; a failing endpoint is
// recorded and never aborts its siblings.
func (c *Collector) CollectEndpoints(ctx context.Context, endpoints map[string]string, params map[string]url.Values) map[string]FetchResult {
	var mu sync.Mutex
	results := make(map[string]FetchResult, len(endpoints))

	// Deterministic fetch order keeps logs comparable across runs.
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	g, gctx := errgroup.WithContext(ctx)
	limit := c.MaxConcurrent
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for _, name := range names {
		name := name
		path := endpoints[name]
		g.Go(func() error {
			res := c.fetchOne(gctx, path, params[name])

			mu.Lock()
			results[name] = res
			mu.Unlock()

			// Failures are data here, not control flow.
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("multi-endpoint fetch complete", zap.Int("endpoints", len(results)))
	return results
}

func (c *Collector) fetchOne(ctx context.Context, path string, params url.Values) FetchResult {
	res := FetchResult{
		EndpointPath: path,
		FullURL:      c.client.ResolveURL(path),
		Timestamp:    c.nowFunc().UTC().Format(time.RFC3339),
	}

	body, err := resilience.ExecuteVal(ctx, c.breakers.Get(path), func(ctx context.Context) (json.RawMessage, error) {
		b, _, err := c.client.Get(ctx, path, params)
		return b, err
	})

	if err != nil {
		ae := resilience.Classify(err, path)
		res.StatusCode = ae.StatusCode
		res.FailureKind = ae.Kind.Tag()
		res.Error = ae.Error()
		zap.L().Warn("endpoint fetch failed",
			zap.String("endpoint", path),
			zap.Int("status", res.StatusCode),
			zap.String("kind", ae.Kind.String()),
			zap.Error(err),
		)
		return res
	}

	res.StatusCode = 200
	res.Response = body
	return res
}
