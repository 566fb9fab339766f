// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meridianlabs-ai/agentops/pkg/logging"
)

// newTestStore builds a SnapshotStore over temp directories with a mock
// process manager that succeeds on everything.
func newTestStore(t *testing.T) (*SnapshotStore, StackConfig, *MockProcessManager) {
	t.Helper()
	root := t.TempDir()

	cfg := DefaultStackConfig()
	cfg.BackupRoot = filepath.Join(root, "backups")
	cfg.AppDir = filepath.Join(root, "app")
	cfg.DataDir = filepath.Join(root, "chroma_db")
	cfg.UnitPath = filepath.Join(root, "agent-api.service")
	cfg.EnvFile = filepath.Join(root, ".env")

	mock := &MockProcessManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			// docker save -o <archive> must leave an archive behind so
			// inspect() sees it.
			if name == "docker" && len(args) > 2 && args[0] == "save" {
				if err := os.WriteFile(args[2], []byte("tarball"), 0o644); err != nil {
					return nil, err
				}
			}
			return nil, nil
		},
	}

	return NewSnapshotStore(cfg, mock, logging.Default()), cfg, mock
}

// makeSnapshotDir creates a named snapshot directory with the given pieces.
func makeSnapshotDir(t *testing.T, cfg StackConfig, name string, withApp, withImage bool) string {
	t.Helper()
	path := filepath.Join(cfg.BackupRoot, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if withApp {
		appDir := filepath.Join(path, snapshotAppDir)
		if err := os.MkdirAll(appDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(appDir, "server.py"), []byte("print('hi')\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if withImage {
		if err := os.WriteFile(filepath.Join(path, snapshotImageArchive), []byte("tar"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(path, snapshotImageNameFile), []byte("agent-api\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestSnapshotStore_ListEmpty(t *testing.T) {
	store, _, _ := newTestStore(t)

	snaps, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v, want nil", err)
	}
	if len(snaps) != 0 {
		t.Errorf("List() len = %d, want 0", len(snaps))
	}
}

func TestSnapshotStore_ListSortedByName(t *testing.T) {
	store, cfg, _ := newTestStore(t)
	makeSnapshotDir(t, cfg, "pre-rollback-20240615-120000", true, false)
	makeSnapshotDir(t, cfg, "pre-rollback-20240101-000000", true, false)
	makeSnapshotDir(t, cfg, "known-good", true, true)

	snaps, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("List() len = %d, want 3", len(snaps))
	}
	// Lexicographic order; timestamped names sort chronologically.
	if snaps[1].Name != "pre-rollback-20240101-000000" {
		t.Errorf("snaps[1].Name = %q, want the older timestamp", snaps[1].Name)
	}
	if snaps[2].Name != "pre-rollback-20240615-120000" {
		t.Errorf("snaps[2].Name = %q, want the newer timestamp", snaps[2].Name)
	}
}

func TestSnapshotStore_LatestEmpty(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Latest()
	if !errors.Is(err, ErrNoBackupFound) {
		t.Errorf("Latest() error = %v, want ErrNoBackupFound", err)
	}
}

func TestSnapshotStore_ResolvePrevious(t *testing.T) {
	store, cfg, _ := newTestStore(t)
	makeSnapshotDir(t, cfg, "pre-rollback-20240101-000000", true, false)
	makeSnapshotDir(t, cfg, "pre-rollback-20240615-120000", true, false)

	snap, err := store.Resolve("previous")
	if err != nil {
		t.Fatalf("Resolve(previous) error = %v", err)
	}
	if snap.Name != "pre-rollback-20240615-120000" {
		t.Errorf("Resolve(previous) = %q, want the newest snapshot", snap.Name)
	}
}

func TestSnapshotStore_ResolveExplicitName(t *testing.T) {
	store, cfg, _ := newTestStore(t)
	makeSnapshotDir(t, cfg, "known-good", true, true)

	snap, err := store.Resolve("known-good")
	if err != nil {
		t.Fatalf("Resolve(known-good) error = %v", err)
	}
	if !snap.HasAppFiles {
		t.Error("snap.HasAppFiles = false, want true")
	}
	if !snap.HasImageArchive {
		t.Error("snap.HasImageArchive = false, want true")
	}
	if snap.ImageName != "agent-api" {
		t.Errorf("snap.ImageName = %q, want %q", snap.ImageName, "agent-api")
	}
}

func TestSnapshotStore_ResolveMissing(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Resolve("no-such-backup")
	if !errors.Is(err, ErrBackupNotFound) {
		t.Errorf("Resolve(no-such-backup) error = %v, want ErrBackupNotFound", err)
	}
}

func TestSnapshotStore_CreatePreRollback(t *testing.T) {
	store, cfg, mock := newTestStore(t)

	// Live state: app dir with one file, a unit file, no data dir.
	if err := os.MkdirAll(cfg.AppDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.AppDir, "server.py"), []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.UnitPath, []byte("[Unit]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	snap, err := store.CreatePreRollback(context.Background())
	if err != nil {
		t.Fatalf("CreatePreRollback() error = %v", err)
	}
	if snap.Name != "pre-rollback-20260314-093000" {
		t.Errorf("snap.Name = %q, want timestamped pre-rollback name", snap.Name)
	}
	if !snap.HasAppFiles {
		t.Error("snap.HasAppFiles = false, want true")
	}
	if !snap.HasUnitFile {
		t.Error("snap.HasUnitFile = false, want true")
	}
	if !snap.HasImageArchive {
		t.Error("snap.HasImageArchive = false, want true (mock image inspect succeeds)")
	}
	if snap.HasDataDir {
		t.Error("snap.HasDataDir = true, want false (no data dir on disk)")
	}

	// The copied app file must exist with its content.
	data, err := os.ReadFile(filepath.Join(snap.Path, snapshotAppDir, "server.py"))
	if err != nil {
		t.Fatalf("reading copied app file: %v", err)
	}
	if string(data) != "v2" {
		t.Errorf("copied app file = %q, want %q", data, "v2")
	}

	// docker save must have targeted the snapshot archive.
	found := false
	for _, line := range mock.CommandLines() {
		if strings.HasPrefix(line, "docker save -o ") {
			found = true
		}
	}
	if !found {
		t.Errorf("docker save not invoked, calls: %v", mock.CommandLines())
	}
}

func TestSnapshotStore_CreatePreRollbackWithoutImage(t *testing.T) {
	store, cfg, mock := newTestStore(t)
	mock.RunFunc = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name == "docker" && args[0] == "image" {
			return nil, fmt.Errorf("Error: No such image: %s", cfg.Image)
		}
		return nil, nil
	}

	if err := os.MkdirAll(cfg.AppDir, 0o755); err != nil {
		t.Fatal(err)
	}

	snap, err := store.CreatePreRollback(context.Background())
	if err != nil {
		t.Fatalf("CreatePreRollback() error = %v", err)
	}
	if snap.HasImageArchive {
		t.Error("snap.HasImageArchive = true, want false when no image exists")
	}
}

func TestSnapshotStore_RestoreReplacesAppDir(t *testing.T) {
	store, cfg, _ := newTestStore(t)
	makeSnapshotDir(t, cfg, "known-good", true, false)

	// Live app dir holds a stale extra file that must disappear.
	if err := os.MkdirAll(cfg.AppDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.AppDir, "stale.py"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := store.Resolve("known-good")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Restore(context.Background(), snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.AppDir, "stale.py")); !os.IsNotExist(err) {
		t.Error("stale.py survived restore, want app dir replaced wholesale")
	}
	if _, err := os.Stat(filepath.Join(cfg.AppDir, "server.py")); err != nil {
		t.Errorf("restored server.py missing: %v", err)
	}
}

func TestSnapshotStore_RestorePartialSkipsImageLoad(t *testing.T) {
	store, cfg, mock := newTestStore(t)
	makeSnapshotDir(t, cfg, "app-only", true, false)

	snap, err := store.Resolve("app-only")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Restore(context.Background(), snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	for _, line := range mock.CommandLines() {
		if strings.HasPrefix(line, "docker load") {
			t.Errorf("docker load invoked for snapshot without image archive: %v", mock.CommandLines())
		}
	}
}

func TestSnapshotStore_RestoreLoadsImage(t *testing.T) {
	store, cfg, mock := newTestStore(t)
	path := makeSnapshotDir(t, cfg, "with-image", true, true)

	snap, err := store.Resolve("with-image")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Restore(context.Background(), snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	want := "docker load -i " + filepath.Join(path, snapshotImageArchive)
	found := false
	for _, line := range mock.CommandLines() {
		if line == want {
			found = true
		}
	}
	if !found {
		t.Errorf("docker load not invoked, calls: %v", mock.CommandLines())
	}
}

func TestSnapshotStore_DiskUsage(t *testing.T) {
	store, cfg, _ := newTestStore(t)
	makeSnapshotDir(t, cfg, "sized", true, false)

	snap, err := store.Resolve("sized")
	if err != nil {
		t.Fatal(err)
	}
	if got := store.DiskUsage(snap); got <= 0 {
		t.Errorf("DiskUsage() = %d, want > 0", got)
	}
}
