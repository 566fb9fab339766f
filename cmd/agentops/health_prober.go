package main

import (
	"context"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// INTERFACES
// =============================================================================

// ProbeResult is the outcome of one timed health probe.
type ProbeResult struct {
	// Healthy is true when the endpoint answered with a success status
	// within the timeout.
	Healthy bool

	// StatusCode is the HTTP status, zero when the request never completed.
	StatusCode int

	// Latency is how long the probe took.
	Latency time.Duration

	// Err carries the transport error for logging. A non-nil Err always
	// means Healthy is false; the reverse does not hold (a 500 has no Err).
	Err error
}

// HealthProber produces Health Signals for the managed service.
//
// # Description
//
// One probe is one timed HTTP GET against the liveness endpoint. The
// boolean outcome is the only signal the monitor and the rollback
// verifier consume; no history is kept here.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type HealthProber interface {
	// Probe performs a single health check. Never returns an error: the
	// failure mode is part of the result.
	Probe(ctx context.Context) ProbeResult
}

// HealthHTTPClient abstracts the HTTP transport for probing, so tests can
// substitute canned responses.
type HealthHTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// =============================================================================
// IMPLEMENTATION
// =============================================================================

// DefaultHealthProber probes a fixed local endpoint with a fixed timeout.
type DefaultHealthProber struct {
	client  HealthHTTPClient
	url     string
	timeout time.Duration
}

// NewDefaultHealthProber creates a prober for the given URL.
//
// # Inputs
//
//   - url: Liveness endpoint, e.g. "http://127.0.0.1:8000/health"
//   - timeout: Per-probe budget, clamped to MinProbeTimeout
func NewDefaultHealthProber(url string, timeout time.Duration) *DefaultHealthProber {
	timeout = EnforceMinTimeout(timeout, MinProbeTimeout)
	return &DefaultHealthProber{
		client:  &http.Client{Timeout: timeout},
		url:     url,
		timeout: timeout,
	}
}

// Probe performs a single timed GET against the health endpoint.
func (p *DefaultHealthProber) Probe(ctx context.Context) ProbeResult {
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.url, nil)
	if err != nil {
		return ProbeResult{Err: err, Latency: time.Since(start)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{Err: err, Latency: time.Since(start)}
	}
	defer resp.Body.Close()
	// Drain so the transport can reuse the connection between ticks.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return ProbeResult{
		Healthy:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// =============================================================================
// MOCK
// =============================================================================

// MockHealthProber is a configurable test double for HealthProber.
//
// # Examples
//
//	mock := &MockHealthProber{
//	    ProbeFunc: func(ctx context.Context) ProbeResult {
//	        return ProbeResult{Healthy: true, StatusCode: 200}
//	    },
//	}
type MockHealthProber struct {
	// ProbeFunc is called when Probe is invoked.
	ProbeFunc func(ctx context.Context) ProbeResult

	// ProbeCount tracks how many probes were requested.
	ProbeCount int
}

// Probe delegates to ProbeFunc and counts the call.
func (m *MockHealthProber) Probe(ctx context.Context) ProbeResult {
	m.ProbeCount++
	if m.ProbeFunc == nil {
		panic("MockHealthProber.ProbeFunc not set")
	}
	return m.ProbeFunc(ctx)
}

// Compile-time interface compliance check.
var (
	_ HealthProber = (*DefaultHealthProber)(nil)
	_ HealthProber = (*MockHealthProber)(nil)
)
