// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/meridianlabs-ai/agentops/pkg/logging"
)

// newTestMonitor builds a Monitor with instant sleeps and no metrics.
func newTestMonitor(prober HealthProber, runtimes []ServiceRuntime, alerter *MockAlerter, sampler ResourceSampler) *Monitor {
	cfg := MonitorConfig{
		CheckInterval:    time.Minute,
		ProbeTimeout:     time.Second,
		FailureThreshold: 3,
		RestartSettle:    15 * time.Second,
	}
	m := NewMonitor(cfg, "agent-api", prober, runtimes, alerter, sampler, nil, logging.Default())
	m.sleep = func(ctx context.Context, d time.Duration) {}
	return m
}

// healthySampler never crosses a threshold.
func healthySampler() *MockResourceSampler {
	return &MockResourceSampler{
		SampleFunc: func(ctx context.Context) (ResourceSample, error) {
			return ResourceSample{MemoryPercent: 40, DiskPercent: 50}, nil
		},
	}
}

func severities(events []AlertEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e.Severity)
	}
	return out
}

func TestMonitor_HealthyTickKeepsCounterZero(t *testing.T) {
	prober := &MockHealthProber{ProbeFunc: func(ctx context.Context) ProbeResult {
		return ProbeResult{Healthy: true, StatusCode: 200}
	}}
	alerter := &MockAlerter{}
	m := newTestMonitor(prober, nil, alerter, healthySampler())

	state := &monitorState{}
	for i := 0; i < 5; i++ {
		m.Tick(context.Background(), state)
	}

	if state.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", state.ConsecutiveFailures)
	}
	if events := alerter.GetEvents(); len(events) != 0 {
		t.Errorf("alerts = %v, want none", severities(events))
	}
}

func TestMonitor_RestartAfterThreeFailures(t *testing.T) {
	healthy := false
	prober := &MockHealthProber{ProbeFunc: func(ctx context.Context) ProbeResult {
		return ProbeResult{Healthy: healthy}
	}}
	rt := &MockServiceRuntime{KindValue: "container"}
	// Restart fixes the service: the settle-probe succeeds.
	rt.RestartFunc = func(ctx context.Context) error {
		healthy = true
		return nil
	}
	alerter := &MockAlerter{}
	m := newTestMonitor(prober, []ServiceRuntime{rt}, alerter, healthySampler())

	state := &monitorState{}
	m.Tick(context.Background(), state) // failure 1
	m.Tick(context.Background(), state) // failure 2
	if rt.RestartCount != 0 {
		t.Fatalf("restart triggered after %d failures, want only at 3", state.ConsecutiveFailures)
	}
	m.Tick(context.Background(), state) // failure 3: restart

	if rt.RestartCount != 1 {
		t.Errorf("RestartCount = %d, want 1", rt.RestartCount)
	}
	if state.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 after verified restart", state.ConsecutiveFailures)
	}

	got := severities(alerter.GetEvents())
	if len(got) != 2 || got[0] != "error" || got[1] != "info" {
		t.Errorf("alerts = %v, want [error info]", got)
	}
}

func TestMonitor_CounterResetsOnSuccess(t *testing.T) {
	results := []bool{false, false, true, false, false, true}
	i := 0
	prober := &MockHealthProber{ProbeFunc: func(ctx context.Context) ProbeResult {
		r := ProbeResult{Healthy: results[i]}
		i++
		return r
	}}
	rt := &MockServiceRuntime{}
	alerter := &MockAlerter{}
	m := newTestMonitor(prober, []ServiceRuntime{rt}, alerter, healthySampler())

	state := &monitorState{}
	for range results {
		m.Tick(context.Background(), state)
	}

	// Two failures, recovery, two failures, recovery: threshold never hit.
	if rt.RestartCount != 0 {
		t.Errorf("RestartCount = %d, want 0", rt.RestartCount)
	}
	if state.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", state.ConsecutiveFailures)
	}
}

func TestMonitor_RecoveryAlertOnSuccessAfterFailures(t *testing.T) {
	results := []bool{false, false, true}
	i := 0
	prober := &MockHealthProber{ProbeFunc: func(ctx context.Context) ProbeResult {
		r := ProbeResult{Healthy: results[i]}
		i++
		return r
	}}
	alerter := &MockAlerter{}
	m := newTestMonitor(prober, nil, alerter, healthySampler())

	state := &monitorState{}
	for range results {
		m.Tick(context.Background(), state)
	}

	events := alerter.GetEvents()
	if len(events) != 1 {
		t.Fatalf("alerts = %v, want one recovery", severities(events))
	}
	if events[0].Severity != AlertSeverityInfo {
		t.Errorf("severity = %s, want info", events[0].Severity)
	}
	if !strings.Contains(events[0].Message, "recovered") {
		t.Errorf("message = %q, want recovery wording", events[0].Message)
	}
}

func TestMonitor_ExhaustedRestartsRaiseCritical(t *testing.T) {
	prober := &MockHealthProber{ProbeFunc: func(ctx context.Context) ProbeResult {
		return ProbeResult{Healthy: false}
	}}
	container := &MockServiceRuntime{KindValue: "container"}
	systemd := &MockServiceRuntime{KindValue: "systemd"}
	alerter := &MockAlerter{}
	m := newTestMonitor(prober, []ServiceRuntime{container, systemd}, alerter, healthySampler())

	state := &monitorState{}
	for i := 0; i < 3; i++ {
		m.Tick(context.Background(), state)
	}

	// Both runtimes restarted, neither probe recovered.
	if container.RestartCount != 1 || systemd.RestartCount != 1 {
		t.Errorf("RestartCount container=%d systemd=%d, want 1 each",
			container.RestartCount, systemd.RestartCount)
	}

	got := severities(alerter.GetEvents())
	if len(got) != 2 || got[0] != "error" || got[1] != "critical" {
		t.Fatalf("alerts = %v, want [error critical]", got)
	}

	// Counter stays past the threshold: the next tick retries the restart.
	if state.ConsecutiveFailures < 3 {
		t.Errorf("ConsecutiveFailures = %d, want >= 3", state.ConsecutiveFailures)
	}
	m.Tick(context.Background(), state)
	if container.RestartCount != 2 {
		t.Errorf("RestartCount = %d after extra tick, want retry", container.RestartCount)
	}
}

func TestMonitor_ResourceWarningsIndependentOfCounter(t *testing.T) {
	prober := &MockHealthProber{ProbeFunc: func(ctx context.Context) ProbeResult {
		return ProbeResult{Healthy: true, StatusCode: 200}
	}}
	sampler := &MockResourceSampler{
		SampleFunc: func(ctx context.Context) (ResourceSample, error) {
			return ResourceSample{MemoryPercent: 92, DiskPercent: 95}, nil
		},
	}
	rt := &MockServiceRuntime{}
	alerter := &MockAlerter{}
	m := newTestMonitor(prober, []ServiceRuntime{rt}, alerter, sampler)

	state := &monitorState{}
	m.Tick(context.Background(), state)

	got := severities(alerter.GetEvents())
	if len(got) != 2 || got[0] != "warning" || got[1] != "warning" {
		t.Fatalf("alerts = %v, want two warnings", got)
	}
	if state.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 (resources never count as probe failures)", state.ConsecutiveFailures)
	}
	if rt.RestartCount != 0 {
		t.Errorf("RestartCount = %d, want 0", rt.RestartCount)
	}
}

func TestMonitor_SkipsUnavailableRuntime(t *testing.T) {
	healthy := false
	prober := &MockHealthProber{ProbeFunc: func(ctx context.Context) ProbeResult {
		return ProbeResult{Healthy: healthy}
	}}
	container := &MockServiceRuntime{
		KindValue:     "container",
		AvailableFunc: func(ctx context.Context) bool { return false },
	}
	systemd := &MockServiceRuntime{KindValue: "systemd"}
	systemd.RestartFunc = func(ctx context.Context) error {
		healthy = true
		return nil
	}
	alerter := &MockAlerter{}
	m := newTestMonitor(prober, []ServiceRuntime{container, systemd}, alerter, healthySampler())

	state := &monitorState{}
	for i := 0; i < 3; i++ {
		m.Tick(context.Background(), state)
	}

	if container.RestartCount != 0 {
		t.Errorf("unavailable container RestartCount = %d, want 0", container.RestartCount)
	}
	if systemd.RestartCount != 1 {
		t.Errorf("systemd RestartCount = %d, want 1", systemd.RestartCount)
	}
}

func TestMonitor_RunExitsOnCancel(t *testing.T) {
	prober := &MockHealthProber{ProbeFunc: func(ctx context.Context) ProbeResult {
		return ProbeResult{Healthy: true}
	}}
	m := newTestMonitor(prober, nil, &MockAlerter{}, healthySampler())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not exit after cancellation")
	}

	// A signal delivered before the first iteration means no probe at all.
	if prober.ProbeCount != 0 {
		t.Errorf("ProbeCount = %d, want 0 when ctx is cancelled before the first tick", prober.ProbeCount)
	}
}
