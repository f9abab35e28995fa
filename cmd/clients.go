package main

import (
	"github.com/acuworks/finops-cli/internal/config"
	"github.com/acuworks/finops-cli/internal/ingest"
	"github.com/acuworks/finops-cli/internal/resilience"
	"github.com/acuworks/finops-cli/pkg/enterprise"
)

// newCollector assembles the enterprise API client and the resilience-wrapped
// collector from configuration.
func newCollector(cfg *config.Config) *ingest.Collector {
	client := enterprise.NewClient(cfg.Enterprise.Key,
		enterprise.WithBaseURL(cfg.Enterprise.BaseURL),
		enterprise.WithRootURL(cfg.Enterprise.RootURL),
		enterprise.WithRetryPolicy(resilience.FromRetryConfig(
			cfg.Retry.MaxRetries, cfg.Retry.BaseDelayMs, cfg.Retry.MaxDelayMs,
		)),
	)

	breakers := resilience.NewEndpointBreakers(resilience.FromCircuitConfig(
		cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs,
	))

	col := ingest.NewCollector(client, breakers)
	if cfg.Enterprise.MaxConcurrent > 0 {
		col.MaxConcurrent = cfg.Enterprise.MaxConcurrent
	}
	if cfg.Enterprise.PageLimit > 0 {
		col.PageLimit = cfg.Enterprise.PageLimit
	}
	return col
}
