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
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridianlabs-ai/agentops/pkg/logging"
)

// =============================================================================
// TYPES
// =============================================================================

// AlertSeverity grades alert events.
type AlertSeverity string

const (
	// AlertSeverityInfo marks recoveries and informational events.
	AlertSeverityInfo AlertSeverity = "info"

	// AlertSeverityWarning marks degraded-but-operational conditions,
	// e.g. resource thresholds exceeded.
	AlertSeverityWarning AlertSeverity = "warning"

	// AlertSeverityError marks the failure-threshold escalation that
	// triggers an automatic restart.
	AlertSeverityError AlertSeverity = "error"

	// AlertSeverityCritical marks exhausted restart attempts; a human
	// must intervene.
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertEvent is a severity-tagged message emitted by the monitor.
//
// Events are append-only log lines (and optionally mail); they are not
// persisted as structured data.
type AlertEvent struct {
	// ID uniquely identifies the event.
	ID string

	// Severity grades the event.
	Severity AlertSeverity

	// Service names the monitored service.
	Service string

	// Message is the human-readable description.
	Message string

	// Timestamp is when the event was raised.
	Timestamp time.Time
}

// NewAlertEvent builds an event with ID and timestamp filled in.
func NewAlertEvent(severity AlertSeverity, service, message string) AlertEvent {
	return AlertEvent{
		ID:        uuid.NewString(),
		Severity:  severity,
		Service:   service,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Alerter delivers alert events to one destination.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Alerter interface {
	// Send delivers one event. Delivery failure must not panic; the
	// monitor logs and continues.
	Send(ctx context.Context, event AlertEvent) error
}

// =============================================================================
// LOG ALERTER
// =============================================================================

// LogAlerter writes alert events to the structured log stream.
type LogAlerter struct {
	logger *logging.Logger
}

// NewLogAlerter creates an Alerter backed by the given logger.
func NewLogAlerter(logger *logging.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

// Send emits the event as a leveled log line.
func (a *LogAlerter) Send(ctx context.Context, event AlertEvent) error {
	args := []any{"alert_id", event.ID, "service", event.Service, "severity", string(event.Severity)}
	switch event.Severity {
	case AlertSeverityInfo:
		a.logger.Info(event.Message, args...)
	case AlertSeverityWarning:
		a.logger.Warn(event.Message, args...)
	default:
		a.logger.Error(event.Message, args...)
	}
	return nil
}

// =============================================================================
// EMAIL ALERTER
// =============================================================================

// EmailAlerter mails alert events at or above a minimum severity.
//
// # Description
//
// Uses a plain SMTP relay. Only escalations and critical events are
// mailed by default; recoveries and resource warnings stay in the log
// stream so the inbox carries only actionable pages.
//
// # Limitations
//
//   - No queueing or retry; a relay outage drops the mail (logged by
//     the caller)
type EmailAlerter struct {
	addr     string
	from     string
	to       string
	password string
	minLevel AlertSeverity

	// sendMail is swappable for tests; defaults to smtp.SendMail.
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailAlerter creates a mail-backed alerter.
//
// # Inputs
//
//   - addr: Relay host:port
//   - from: Envelope sender
//   - to: Alert recipient
//   - password: Relay password for from; empty disables AUTH
func NewEmailAlerter(addr, from, to, password string) *EmailAlerter {
	return &EmailAlerter{
		addr:     addr,
		from:     from,
		to:       to,
		password: password,
		minLevel: AlertSeverityError,
		sendMail: smtp.SendMail,
	}
}

// severityRank orders severities for threshold comparison.
func severityRank(s AlertSeverity) int {
	switch s {
	case AlertSeverityInfo:
		return 0
	case AlertSeverityWarning:
		return 1
	case AlertSeverityError:
		return 2
	case AlertSeverityCritical:
		return 3
	default:
		return 0
	}
}

// Send mails the event when it meets the minimum severity.
func (a *EmailAlerter) Send(ctx context.Context, event AlertEvent) error {
	if severityRank(event.Severity) < severityRank(a.minLevel) {
		return nil
	}

	subject := fmt.Sprintf("[%s] %s alert", strings.ToUpper(string(event.Severity)), event.Service)
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n\r\nevent=%s time=%s\r\n",
		a.from, a.to, subject, event.Message, event.ID, event.Timestamp.Format(time.RFC3339))

	var auth smtp.Auth
	if a.password != "" {
		host := a.addr
		if idx := strings.LastIndex(host, ":"); idx >= 0 {
			host = host[:idx]
		}
		auth = smtp.PlainAuth("", a.from, a.password, host)
	}

	if err := a.sendMail(a.addr, auth, a.from, []string{a.to}, []byte(body)); err != nil {
		return fmt.Errorf("failed to send alert mail: %w", err)
	}
	return nil
}

// =============================================================================
// FAN-OUT
// =============================================================================

// MultiAlerter fans one event out to every configured destination.
// Delivery failures are collected; the first failure is returned after
// all destinations were attempted.
type MultiAlerter struct {
	alerters []Alerter
}

// NewMultiAlerter creates a fan-out over the given alerters.
func NewMultiAlerter(alerters ...Alerter) *MultiAlerter {
	return &MultiAlerter{alerters: alerters}
}

// Send delivers the event to every destination.
func (a *MultiAlerter) Send(ctx context.Context, event AlertEvent) error {
	var firstErr error
	for _, al := range a.alerters {
		if err := al.Send(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// =============================================================================
// MOCK
// =============================================================================

// MockAlerter records every event it receives.
type MockAlerter struct {
	// SendFunc optionally overrides delivery; nil records and succeeds.
	SendFunc func(ctx context.Context, event AlertEvent) error

	// Events holds every delivered event in order.
	Events []AlertEvent

	mu sync.Mutex
}

// Send records the event.
func (m *MockAlerter) Send(ctx context.Context, event AlertEvent) error {
	m.mu.Lock()
	m.Events = append(m.Events, event)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, event)
	}
	return nil
}

// GetEvents returns a copy of all recorded events.
func (m *MockAlerter) GetEvents() []AlertEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]AlertEvent, len(m.Events))
	copy(events, m.Events)
	return events
}

// Compile-time interface compliance check.
var (
	_ Alerter = (*LogAlerter)(nil)
	_ Alerter = (*EmailAlerter)(nil)
	_ Alerter = (*MultiAlerter)(nil)
	_ Alerter = (*MockAlerter)(nil)
)
