// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianlabs-ai/agentops/pkg/logging"
)

// =============================================================================
// STATE
// =============================================================================

// monitorState is the watchdog's entire memory between ticks.
//
// The counter is deliberately the only state: no probe history, no
// backoff schedule. While the service stays unhealthy past the
// threshold, every tick retries the restart.
type monitorState struct {
	// ConsecutiveFailures counts failed probes since the last success.
	ConsecutiveFailures int
}

// =============================================================================
// MONITOR
// =============================================================================

// Monitor is the periodic health watchdog for the managed service.
//
// # Description
//
// Each tick probes the liveness endpoint, samples host resources, and
// maintains a consecutive-failure counter. Reaching the failure
// threshold triggers an automatic restart through the available
// runtimes (container first, systemd fallback). Exhausting all
// runtimes raises a critical alert; the counter is left past the
// threshold so the next tick tries again.
//
// # Thread Safety
//
// Run owns the state; a Monitor is driven by a single goroutine.
type Monitor struct {
	cfg      MonitorConfig
	prober   HealthProber
	runtimes []ServiceRuntime
	alerter  Alerter
	sampler  ResourceSampler
	metrics  *MonitorMetrics
	logger   *logging.Logger

	// serviceName tags alerts and log lines.
	serviceName string

	// sleep is swappable for tests; defaults to a context-aware sleep.
	sleep func(ctx context.Context, d time.Duration)
}

// NewMonitor assembles a watchdog from its collaborators.
func NewMonitor(cfg MonitorConfig, serviceName string, prober HealthProber,
	runtimes []ServiceRuntime, alerter Alerter, sampler ResourceSampler,
	metrics *MonitorMetrics, logger *logging.Logger) *Monitor {
	return &Monitor{
		cfg:         cfg,
		prober:      prober,
		runtimes:    runtimes,
		alerter:     alerter,
		sampler:     sampler,
		metrics:     metrics,
		logger:      logger,
		serviceName: serviceName,
		sleep:       sleepCtx,
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run executes the monitoring loop until ctx is cancelled.
//
// # Outputs
//
//   - error: Always nil today; cancellation is the clean exit path
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor starting", "config", m.cfg.Redacted())

	state := &monitorState{}
	for {
		if ctx.Err() != nil {
			m.logger.Info("monitor stopping", "reason", "signal")
			return nil
		}

		m.Tick(ctx, state)

		m.sleep(ctx, m.cfg.CheckInterval)
	}
}

// Tick performs one monitoring cycle: resource check, probe, and the
// failure-counter transition.
func (m *Monitor) Tick(ctx context.Context, state *monitorState) {
	m.checkResources(ctx)

	result := m.prober.Probe(ctx)
	if result.Healthy {
		m.observeProbe("success")
		if state.ConsecutiveFailures > 0 {
			m.alert(ctx, AlertSeverityInfo,
				fmt.Sprintf("service recovered after %d failed checks", state.ConsecutiveFailures))
		}
		state.ConsecutiveFailures = 0
		m.setFailureGauge(0)
		m.logger.Debug("probe succeeded", "status", result.StatusCode, "latency", result.Latency)
		return
	}

	m.observeProbe("failure")
	state.ConsecutiveFailures++
	m.setFailureGauge(state.ConsecutiveFailures)
	m.logger.Warn("probe failed",
		"consecutive", state.ConsecutiveFailures,
		"threshold", m.cfg.FailureThreshold,
		"status", result.StatusCode,
		"error", result.Err)

	if state.ConsecutiveFailures < m.cfg.FailureThreshold {
		return
	}

	m.alert(ctx, AlertSeverityError,
		fmt.Sprintf("health check failed %d times in a row, attempting restart", state.ConsecutiveFailures))

	if err := m.restartService(ctx); err != nil {
		// Counter stays past the threshold; next tick retries.
		m.logger.Error("automatic restart failed", "error", err)
		return
	}

	state.ConsecutiveFailures = 0
	m.setFailureGauge(0)
	m.alert(ctx, AlertSeverityInfo, "service restarted and healthy again")
}

// restartService tries each available runtime in order: restart, wait
// for the service to settle, then re-probe.
//
// # Outputs
//
//   - error: ErrRestartFailed (wrapped) when every runtime was exhausted
func (m *Monitor) restartService(ctx context.Context) error {
	attempted := 0
	for _, rt := range m.runtimes {
		if !rt.Available(ctx) {
			continue
		}
		attempted++

		m.logger.Info("restarting service", "runtime", rt.Kind())
		if err := rt.Restart(ctx); err != nil {
			m.observeRestart(rt.Kind(), "failure")
			m.logger.Warn("restart command failed", "runtime", rt.Kind(), "error", err)
			continue
		}

		m.sleep(ctx, m.cfg.RestartSettle)

		if result := m.prober.Probe(ctx); result.Healthy {
			m.observeRestart(rt.Kind(), "success")
			m.logger.Info("restart verified", "runtime", rt.Kind(), "latency", result.Latency)
			return nil
		}
		m.observeRestart(rt.Kind(), "failure")
		m.logger.Warn("service still unhealthy after restart", "runtime", rt.Kind())
	}

	m.alert(ctx, AlertSeverityCritical,
		fmt.Sprintf("automatic restart exhausted (%d runtimes attempted), manual intervention required", attempted))
	return fmt.Errorf("%w: %d runtimes attempted", ErrRestartFailed, attempted)
}

// checkResources samples host utilization and raises warning alerts for
// threshold violations. Independent of the failure counter: a full disk
// never triggers a restart by itself.
func (m *Monitor) checkResources(ctx context.Context) {
	if m.sampler == nil {
		return
	}
	sample, err := m.sampler.Sample(ctx)
	if err != nil {
		m.logger.Warn("resource sampling failed", "error", err)
		return
	}

	if m.metrics != nil {
		m.metrics.MemoryPercent.Set(sample.MemoryPercent)
		m.metrics.DiskPercent.Set(sample.DiskPercent)
	}

	for _, warning := range sample.Warnings() {
		m.alert(ctx, AlertSeverityWarning, warning)
	}
}

// alert builds, counts, and delivers one event. Delivery failures are
// logged and swallowed so alerting can never take the watchdog down.
func (m *Monitor) alert(ctx context.Context, severity AlertSeverity, message string) {
	event := NewAlertEvent(severity, m.serviceName, message)
	if m.metrics != nil {
		m.metrics.AlertsTotal.WithLabelValues(string(severity)).Inc()
	}
	if err := m.alerter.Send(ctx, event); err != nil {
		m.logger.Warn("alert delivery failed", "alert_id", event.ID, "error", err)
	}
}

func (m *Monitor) observeProbe(result string) {
	if m.metrics != nil {
		m.metrics.ProbesTotal.WithLabelValues(result).Inc()
	}
}

func (m *Monitor) observeRestart(kind, result string) {
	if m.metrics != nil {
		m.metrics.RestartsTotal.WithLabelValues(kind, result).Inc()
	}
}

func (m *Monitor) setFailureGauge(n int) {
	if m.metrics != nil {
		m.metrics.ConsecutiveFailures.Set(float64(n))
	}
}
