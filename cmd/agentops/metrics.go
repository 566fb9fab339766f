// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Monitor metrics are exposed via /metrics for Prometheus scraping, so
// the watchdog itself is observable: probe outcomes, the consecutive
// failure counter, restart attempts, and the resource gauges.
package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all metrics.
const metricsNamespace = "agentops"

// Subsystem for monitor metrics.
const monitorSubsystem = "monitor"

// MonitorMetrics holds all Prometheus metrics for the health monitor.
//
// # Thread Safety
//
// All operations are thread-safe via Prometheus's internal locking.
type MonitorMetrics struct {
	// ProbesTotal counts health probes by result.
	// Labels: result (success, failure)
	ProbesTotal *prometheus.CounterVec

	// ConsecutiveFailures tracks the current failure streak.
	ConsecutiveFailures prometheus.Gauge

	// RestartsTotal counts restart attempts by realization and result.
	// Labels: runtime (container, systemd), result (success, failure)
	RestartsTotal *prometheus.CounterVec

	// AlertsTotal counts emitted alerts by severity.
	AlertsTotal *prometheus.CounterVec

	// MemoryPercent and DiskPercent mirror the resource sampler.
	MemoryPercent prometheus.Gauge
	DiskPercent   prometheus.Gauge
}

// DefaultMonitorMetrics is the singleton instance, set by InitMonitorMetrics.
var DefaultMonitorMetrics *MonitorMetrics

// InitMonitorMetrics creates and registers all monitor metrics.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration)
func InitMonitorMetrics() *MonitorMetrics {
	DefaultMonitorMetrics = &MonitorMetrics{
		ProbesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: monitorSubsystem,
				Name:      "probes_total",
				Help:      "Health probes by result.",
			},
			[]string{"result"},
		),
		ConsecutiveFailures: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: monitorSubsystem,
				Name:      "consecutive_failures",
				Help:      "Current consecutive failed probe count.",
			},
		),
		RestartsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: monitorSubsystem,
				Name:      "restarts_total",
				Help:      "Restart attempts by runtime and result.",
			},
			[]string{"runtime", "result"},
		),
		AlertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: monitorSubsystem,
				Name:      "alerts_total",
				Help:      "Alert events by severity.",
			},
			[]string{"severity"},
		),
		MemoryPercent: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: monitorSubsystem,
				Name:      "memory_percent",
				Help:      "Host memory utilization percent.",
			},
		),
		DiskPercent: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: monitorSubsystem,
				Name:      "disk_percent",
				Help:      "Host disk utilization percent.",
			},
		),
	}
	return DefaultMonitorMetrics
}

// NewMetricsRouter builds the monitor's observability surface: /metrics
// for Prometheus, /livez for "is the watchdog itself alive".
func NewMetricsRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/livez", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// StartMetricsServer serves the metrics router in the background.
//
// # Outputs
//
//   - *http.Server: For shutdown on monitor exit
func StartMetricsServer(addr string, router *gin.Engine) *http.Server {
	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		// ErrServerClosed on shutdown is the expected exit path.
		_ = srv.ListenAndServe()
	}()
	return srv
}
