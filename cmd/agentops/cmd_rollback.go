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

// runRollback is the entry point for `agentops rollback <target>`.
func runRollback(cmd *cobra.Command, args []string) error {
	target := args[0]

	cfg, err := LoadStackConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Service: "agentops"})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()

	shutdownTracing, err := InitTracing()
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	proc := &DefaultProcessManager{}
	store := NewSnapshotStore(cfg, proc, logger)

	// The list sentinel is read-only: print the inventory and exit
	// without touching the service.
	if target == "list" {
		return printBackupList(cmd, store)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prober := NewDefaultHealthProber(defaultHealthURL(cfg), DefaultProbeTimeout)
	runtimes := []ServiceRuntime{
		NewContainerRuntime(proc, cfg),
		NewSystemdRuntime(proc, cfg),
	}

	controller := NewRollbackController(cfg, store, prober, runtimes, logger)

	result, err := controller.Rollback(ctx, target)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "rollback failed at %q: %v\n", result.FailedStep, err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "rollback to %q complete in %s (%d steps)\n",
		target, result.Duration.Round(time.Millisecond), len(result.Completed))
	return nil
}

// defaultHealthURL derives the verification probe URL from the host
// side of the configured port mapping.
func defaultHealthURL(cfg StackConfig) string {
	port := hostPort(cfg.PortMapping)
	return fmt.Sprintf("http://127.0.0.1:%s/health", port)
}

// hostPort extracts the host port from a "host:container" mapping.
func hostPort(mapping string) string {
	for i := 0; i < len(mapping); i++ {
		if mapping[i] == ':' {
			return mapping[:i]
		}
	}
	return mapping
}
