// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meridianlabs-ai/agentops/pkg/logging"
)

// runBackupsList is the entry point for `agentops backups list`.
func runBackupsList(cmd *cobra.Command, args []string) error {
	cfg, err := LoadStackConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Service: "agentops"})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()

	store := NewSnapshotStore(cfg, &DefaultProcessManager{}, logger)
	return printBackupList(cmd, store)
}

// printBackupList writes the snapshot inventory as an aligned table.
// Shared with the rollback command's "list" sentinel.
func printBackupList(cmd *cobra.Command, store *SnapshotStore) error {
	snaps, err := store.List()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no backups found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCREATED\tSIZE\tCONTENTS")
	for _, snap := range snaps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			snap.Name,
			snap.CreatedAt.Format("2006-01-02 15:04:05"),
			formatBytes(store.DiskUsage(snap)),
			snapshotContents(snap))
	}
	return w.Flush()
}

// snapshotContents summarizes which optional pieces a snapshot holds.
func snapshotContents(snap Snapshot) string {
	var parts []string
	if snap.HasAppFiles {
		parts = append(parts, "app")
	}
	if snap.HasUnitFile {
		parts = append(parts, "unit")
	}
	if snap.HasImageArchive {
		parts = append(parts, "image")
	}
	if snap.HasDataDir {
		parts = append(parts, "data")
	}
	if len(parts) == 0 {
		return "empty"
	}
	return strings.Join(parts, ",")
}

// formatBytes renders a byte count in human-readable units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
