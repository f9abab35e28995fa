package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// Kind classifies an API failure. Every error escaping an ingestion call is
// exactly one of these.
type Kind int

const (
	// KindUnexpected covers failures outside the known taxonomy. Never retried.
	KindUnexpected Kind = iota
	// KindAuth covers 401/403 responses. Never retried.
	KindAuth
	// KindRateLimited covers 429 responses. Retried; reported as a server
	// failure once attempts are exhausted.
	KindRateLimited
	// KindServer covers 500/502/503/504 responses. Retried.
	KindServer
	// KindTimeout covers request timeouts. Retried, kind preserved.
	KindTimeout
	// KindConnection covers transport-level failures. Retried, kind preserved.
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "authentication"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	default:
		return "unexpected"
	}
}

// Tag returns the failure tag recorded in fetch results and health reports.
func (k Kind) Tag() string {
	switch k {
	case KindTimeout:
		return "TIMEOUT"
	case KindConnection:
		return "CONNECTION_ERROR"
	default:
		return "ERROR"
	}
}

// APIError is the terminal error type for every ingestion failure. Callers
// branch on Kind, never on message text.
type APIError struct {
	Kind       Kind
	StatusCode int
	Endpoint   string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error on %s (status %d): %v", e.Kind, e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s error on %s: %v", e.Kind, e.Endpoint, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServer, KindTimeout, KindConnection:
		return true
	default:
		return false
	}
}

// terminal converts a retryable error into the form reported after the last
// attempt. Rate-limit and server failures collapse into a single server
// failure; timeout and connection failures keep their kind so operators can
// tell a dead host from a slow one.
func (e *APIError) terminal(attempts int) *APIError {
	kind := e.Kind
	if kind == KindRateLimited {
		kind = KindServer
	}
	return &APIError{
		Kind:       kind,
		StatusCode: e.StatusCode,
		Endpoint:   e.Endpoint,
		Err:        fmt.Errorf("gave up after %d attempts: %w", attempts, e.Err),
	}
}

// StatusError is the raw pre-classification error produced by HTTP call sites
// for a non-success response. Classify turns it into an APIError.
type StatusError struct {
	Code       int
	Endpoint   string
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d from %s: %s", e.Code, e.Endpoint, e.Body)
	}
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.Endpoint)
}

// PhaseError marks an error as having escaped a named pipeline phase. An error
// already carrying a phase is never wrapped again.
type PhaseError struct {
	Phase   string
	Details string
	Err     error
}

func (e *PhaseError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("phase %s failed (%s): %v", e.Phase, e.Details, e.Err)
	}
	return fmt.Sprintf("phase %s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// WrapPhase attaches phase context to err. If err is nil, or already carries a
// phase, it is returned unchanged.
func WrapPhase(phase, details string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PhaseError
	if errors.As(err, &pe) {
		return err
	}
	return &PhaseError{Phase: phase, Details: details, Err: err}
}

// Classify maps an arbitrary call-site error onto the taxonomy. Errors that
// are already classified pass through untouched.
func Classify(err error, endpoint string) *APIError {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae
	}

	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se)
	}

	if isTimeout(err) {
		return &APIError{Kind: KindTimeout, Endpoint: endpoint, Err: err}
	}
	if isConnectionFailure(err) {
		return &APIError{Kind: KindConnection, Endpoint: endpoint, Err: err}
	}

	return &APIError{Kind: KindUnexpected, Endpoint: endpoint, Err: err}
}

func classifyStatus(se *StatusError) *APIError {
	kind := KindUnexpected
	switch {
	case se.Code == 401 || se.Code == 403:
		kind = KindAuth
	case se.Code == 429:
		kind = KindRateLimited
	case se.Code == 500 || se.Code == 502 || se.Code == 503 || se.Code == 504:
		kind = KindServer
	}
	return &APIError{Kind: kind, StatusCode: se.Code, Endpoint: se.Endpoint, Err: se}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "deadline exceeded")
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
