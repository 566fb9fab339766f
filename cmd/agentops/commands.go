// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// configPath is the --config flag, shared by all subcommands.
var configPath string

// statusJSON toggles machine-readable status output.
var statusJSON bool

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "agentops",
	Short: "Operations wrapper for the agent-api chatbot service",
	Long: `agentops manages a single-host AI chatbot deployment: snapshot-based
rollback with health verification, and a watchdog that restarts the
service when its health endpoint goes dark.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// rollbackCmd restores the service to a snapshot.
var rollbackCmd = &cobra.Command{
	Use:   "rollback <previous|list|BACKUP_NAME>",
	Short: "Restore the service to a snapshot and verify it is healthy",
	Long: `Stops the service, snapshots the current state, restores the target
snapshot, restarts the service, and polls its health endpoint until it
answers or the attempt budget runs out.

Targets:
  previous     the most recent snapshot
  list         print available snapshots and exit (nothing is touched)
  BACKUP_NAME  an explicit directory under the backup root`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

// monitorCmd runs the health watchdog loop.
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the periodic health watchdog",
	Long: `Probes the service health endpoint on an interval. Three consecutive
failures trigger an automatic restart; if every runtime is exhausted a
critical alert is raised and the restart is retried each tick. Exits
cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

// backupsCmd groups snapshot inspection commands.
var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Inspect snapshots under the backup root",
}

// backupsListCmd prints the snapshot inventory.
var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runBackupsList,
}

// statusCmd reports service and host state in one shot.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service health, runtime state, and host resources",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// versionCmd prints the build version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agentops version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agentops %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ./config.yaml)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit machine-readable JSON")

	backupsCmd.AddCommand(backupsListCmd)
	rootCmd.AddCommand(rollbackCmd, monitorCmd, backupsCmd, statusCmd, versionCmd)
}
