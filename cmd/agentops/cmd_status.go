// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridianlabs-ai/agentops/pkg/logging"
)

// RuntimeStatus is one realization's view of the service.
type RuntimeStatus struct {
	Kind      string `json:"kind"`
	Available bool   `json:"available"`
	Running   bool   `json:"running"`
}

// StatusReport is the one-shot status snapshot printed by `agentops status`.
type StatusReport struct {
	Service       string          `json:"service"`
	Healthy       bool            `json:"healthy"`
	StatusCode    int             `json:"status_code,omitempty"`
	LatencyMillis int64           `json:"latency_ms"`
	ProbeError    string          `json:"probe_error,omitempty"`
	Runtimes      []RuntimeStatus `json:"runtimes"`
	MemoryPercent float64         `json:"memory_percent"`
	DiskPercent   float64         `json:"disk_percent"`
	BackupCount   int             `json:"backup_count"`
	EnvFileFound  bool            `json:"env_file_found"`
}

// runStatus is the entry point for `agentops status`.
func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := LoadStackConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Service: "agentops"})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), DefaultProcessTimeout)
	defer cancel()

	proc := &DefaultProcessManager{}
	report := buildStatusReport(ctx, cfg, proc,
		NewDefaultHealthProber(defaultHealthURL(cfg), DefaultProbeTimeout),
		NewGopsutilSampler("/"),
		NewSnapshotStore(cfg, proc, logger))

	if statusJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	printStatusReport(cmd, report)
	return nil
}

// buildStatusReport gathers service, runtime, resource, and backup state.
// Every collector failure degrades to a partial report; status never
// errors just because one probe misbehaved.
func buildStatusReport(ctx context.Context, cfg StackConfig, proc ProcessManager,
	prober HealthProber, sampler ResourceSampler, store *SnapshotStore) StatusReport {
	report := StatusReport{Service: cfg.ServiceName}

	result := prober.Probe(ctx)
	report.Healthy = result.Healthy
	report.StatusCode = result.StatusCode
	report.LatencyMillis = result.Latency.Milliseconds()
	if result.Err != nil {
		report.ProbeError = result.Err.Error()
	}

	for _, rt := range []ServiceRuntime{NewContainerRuntime(proc, cfg), NewSystemdRuntime(proc, cfg)} {
		status := RuntimeStatus{Kind: rt.Kind(), Available: rt.Available(ctx)}
		if status.Available {
			status.Running, _ = rt.IsRunning(ctx)
		}
		report.Runtimes = append(report.Runtimes, status)
	}

	if sample, err := sampler.Sample(ctx); err == nil {
		report.MemoryPercent = sample.MemoryPercent
		report.DiskPercent = sample.DiskPercent
	}

	if snaps, err := store.List(); err == nil {
		report.BackupCount = len(snaps)
	}

	report.EnvFileFound = cfg.EnvFile != "" && fileExists(cfg.EnvFile)
	return report
}

// printStatusReport renders the human-readable status box.
func printStatusReport(cmd *cobra.Command, report StatusReport) {
	out := cmd.OutOrStdout()

	health := "HEALTHY"
	if !report.Healthy {
		health = "UNHEALTHY"
	}

	fmt.Fprintln(out, "┌──────────────────────────────────────────────┐")
	fmt.Fprintf(out, "│ %-44s │\n", fmt.Sprintf("%s: %s", report.Service, health))
	fmt.Fprintln(out, "├──────────────────────────────────────────────┤")
	if report.ProbeError != "" {
		fmt.Fprintf(out, "│ %-44s │\n", truncate("probe: "+report.ProbeError, 44))
	} else {
		fmt.Fprintf(out, "│ %-44s │\n", fmt.Sprintf("probe: HTTP %d in %dms", report.StatusCode, report.LatencyMillis))
	}
	for _, rt := range report.Runtimes {
		state := "unavailable"
		if rt.Available {
			state = "available, stopped"
			if rt.Running {
				state = "running"
			}
		}
		fmt.Fprintf(out, "│ %-44s │\n", fmt.Sprintf("%s: %s", rt.Kind, state))
	}
	fmt.Fprintf(out, "│ %-44s │\n", fmt.Sprintf("memory: %.1f%%  disk: %.1f%%", report.MemoryPercent, report.DiskPercent))
	fmt.Fprintf(out, "│ %-44s │\n", fmt.Sprintf("backups: %d  env file: %s", report.BackupCount, yesNo(report.EnvFileFound)))
	fmt.Fprintln(out, "└──────────────────────────────────────────────┘")
}

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// truncate shortens s to max characters, counting runes so a multi-byte
// error message is never split mid-character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
