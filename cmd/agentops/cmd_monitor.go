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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridianlabs-ai/agentops/pkg/logging"
)

// runMonitor is the entry point for `agentops monitor`.
func runMonitor(cmd *cobra.Command, args []string) error {
	stackCfg, err := LoadStackConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := LoadMonitorConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Service: "agentops-monitor"})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc := &DefaultProcessManager{}
	prober := NewDefaultHealthProber(cfg.HealthURL(), cfg.ProbeTimeout)
	runtimes := []ServiceRuntime{
		NewContainerRuntime(proc, stackCfg),
		NewSystemdRuntime(proc, stackCfg),
	}

	alerters := []Alerter{NewLogAlerter(logger)}
	if cfg.AlertEmail != "" && cfg.SMTPAddr != "" {
		alerters = append(alerters, NewEmailAlerter(cfg.SMTPAddr, cfg.SMTPFrom, cfg.AlertEmail, cfg.SMTPPassword))
		logger.Info("email alerting enabled", "to", cfg.AlertEmail)
	}

	var metrics *MonitorMetrics
	if cfg.MetricsAddr != "" {
		metrics = InitMonitorMetrics()
		srv := StartMetricsServer(cfg.MetricsAddr, NewMetricsRouter())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics listener started", "addr", cfg.MetricsAddr)
	}

	monitor := NewMonitor(cfg, stackCfg.ServiceName, prober, runtimes,
		NewMultiAlerter(alerters...), NewGopsutilSampler("/"), metrics, logger)

	return monitor.Run(ctx)
}
