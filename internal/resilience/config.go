package resilience

import (
	"time"
)

// FromRetryConfig converts config values to a Policy.
func FromRetryConfig(maxRetries, baseDelayMs, maxDelayMs int) Policy {
	p := DefaultPolicy()
	if maxRetries > 0 {
		p.MaxRetries = maxRetries
	}
	if baseDelayMs > 0 {
		p.BaseDelay = time.Duration(baseDelayMs) * time.Millisecond
	}
	if maxDelayMs > 0 {
		p.MaxDelay = time.Duration(maxDelayMs) * time.Millisecond
	}
	return p
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
