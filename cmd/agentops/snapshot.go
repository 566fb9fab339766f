package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/meridianlabs-ai/agentops/pkg/logging"
)

// Snapshot directory layout. Each snapshot is one subdirectory of the
// backup root; every entry inside it is optional except that a snapshot
// with none of them is useless.
const (
	snapshotAppDir        = "app"
	snapshotDataDir       = "data"
	snapshotImageArchive  = "image.tar"
	snapshotImageNameFile = "image_name"

	// preRollbackPrefix names the safety snapshot taken before every restore.
	preRollbackPrefix = "pre-rollback-"

	// snapshotTimeFormat orders snapshots lexicographically by creation time.
	snapshotTimeFormat = "20060102-150405"
)

// Snapshot describes one backup directory and which optional pieces it
// contains.
type Snapshot struct {
	// Name is the directory name under the backup root.
	Name string

	// Path is the absolute snapshot directory.
	Path string

	// CreatedAt is the directory modification time.
	CreatedAt time.Time

	// HasAppFiles indicates an application directory copy is present.
	HasAppFiles bool

	// HasUnitFile indicates a service unit file copy is present.
	HasUnitFile bool

	// HasImageArchive indicates an exported container image is present.
	HasImageArchive bool

	// HasDataDir indicates a data directory copy is present.
	HasDataDir bool

	// ImageName is the image reference recorded alongside the archive.
	ImageName string
}

// SnapshotStore discovers, creates, and restores snapshots under the
// backup root.
//
// # Description
//
// Snapshots are plain directories named either by an operator-chosen
// label or by the pre-rollback timestamp convention. The store never
// prunes: retention is the operator's responsibility (surfaced by
// `agentops backups list`).
//
// # Thread Safety
//
// Not safe for concurrent invocations against the same backup root;
// the controller assumes exclusive access.
type SnapshotStore struct {
	cfg    StackConfig
	proc   ProcessManager
	logger *logging.Logger
	now    func() time.Time
}

// NewSnapshotStore creates a store over cfg.BackupRoot.
func NewSnapshotStore(cfg StackConfig, proc ProcessManager, logger *logging.Logger) *SnapshotStore {
	return &SnapshotStore{cfg: cfg, proc: proc, logger: logger, now: time.Now}
}

// List returns all snapshots, oldest first (lexicographic directory-name
// order, which the timestamp format makes chronological).
func (s *SnapshotStore) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.cfg.BackupRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup root %s: %w", s.cfg.BackupRoot, err)
	}

	var snaps []Snapshot
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		snaps = append(snaps, s.inspect(filepath.Join(s.cfg.BackupRoot, entry.Name())))
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps, nil
}

// Latest returns the most recently created snapshot.
//
// # Outputs
//
//   - Snapshot: The newest snapshot by name order
//   - error: ErrNoBackupFound when the backup root is empty
func (s *SnapshotStore) Latest() (Snapshot, error) {
	snaps, err := s.List()
	if err != nil {
		return Snapshot{}, err
	}
	if len(snaps) == 0 {
		return Snapshot{}, fmt.Errorf("%w under %s", ErrNoBackupFound, s.cfg.BackupRoot)
	}
	return snaps[len(snaps)-1], nil
}

// Resolve maps a rollback target to a snapshot.
//
// # Description
//
// "previous" selects the latest snapshot; any other value must name an
// existing directory under the backup root. The "list" sentinel is
// handled by the command layer and never reaches here.
//
// # Outputs
//
//   - Snapshot: The resolved snapshot
//   - error: ErrNoBackupFound for "previous" with an empty root;
//     ErrBackupNotFound for a missing explicit name
func (s *SnapshotStore) Resolve(target string) (Snapshot, error) {
	if target == "previous" {
		return s.Latest()
	}

	path := filepath.Join(s.cfg.BackupRoot, target)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrBackupNotFound, target)
	}
	return s.inspect(path), nil
}

// CreatePreRollback captures the live state before a restore mutates it.
//
// # Description
//
// Copies the application directory, the unit file, an exported container
// image, and the data directory — each only if it currently exists. The
// timestamped name guarantees uniqueness; collisions are not otherwise
// guarded.
//
// # Outputs
//
//   - Snapshot: The created snapshot
//   - error: Non-nil if the snapshot directory or a present piece could
//     not be captured
func (s *SnapshotStore) CreatePreRollback(ctx context.Context) (Snapshot, error) {
	name := preRollbackPrefix + s.now().Format(snapshotTimeFormat)
	path := filepath.Join(s.cfg.BackupRoot, name)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return Snapshot{}, fmt.Errorf("failed to create snapshot dir %s: %w", path, err)
	}

	if _, err := os.Stat(s.cfg.AppDir); err == nil {
		if err := copyDir(s.cfg.AppDir, filepath.Join(path, snapshotAppDir)); err != nil {
			return Snapshot{}, fmt.Errorf("failed to snapshot app dir: %w", err)
		}
	} else {
		s.logger.Warn("app dir missing, snapshot will not contain application files", "dir", s.cfg.AppDir)
	}

	if s.cfg.UnitPath != "" {
		if _, err := os.Stat(s.cfg.UnitPath); err == nil {
			dst := filepath.Join(path, filepath.Base(s.cfg.UnitPath))
			if err := copyFile(s.cfg.UnitPath, dst); err != nil {
				return Snapshot{}, fmt.Errorf("failed to snapshot unit file: %w", err)
			}
		}
	}

	// Export the container image only when one matching the configured
	// repository exists.
	if _, err := s.proc.Run(ctx, "docker", "image", "inspect", s.cfg.Image); err == nil {
		archive := filepath.Join(path, snapshotImageArchive)
		if _, err := s.proc.Run(ctx, "docker", "save", "-o", archive, s.cfg.Image); err != nil {
			return Snapshot{}, fmt.Errorf("failed to export image %s: %w", s.cfg.Image, err)
		}
		nameFile := filepath.Join(path, snapshotImageNameFile)
		if err := os.WriteFile(nameFile, []byte(s.cfg.Image+"\n"), 0o644); err != nil {
			return Snapshot{}, fmt.Errorf("failed to record image name: %w", err)
		}
	}

	if s.cfg.DataDir != "" {
		if _, err := os.Stat(s.cfg.DataDir); err == nil {
			if err := copyDir(s.cfg.DataDir, filepath.Join(path, snapshotDataDir)); err != nil {
				return Snapshot{}, fmt.Errorf("failed to snapshot data dir: %w", err)
			}
		}
	}

	return s.inspect(path), nil
}

// Restore replaces live state from a snapshot.
//
// # Description
//
// The application directory is replaced wholesale (old content is
// discarded, not merged). The unit file, container image, and data
// directory are each restored only when the snapshot contains them;
// partial snapshots degrade gracefully.
//
// # Outputs
//
//   - error: Non-nil if a piece that is present in the snapshot could
//     not be restored
func (s *SnapshotStore) Restore(ctx context.Context, snap Snapshot) error {
	if snap.HasAppFiles {
		if err := os.RemoveAll(s.cfg.AppDir); err != nil {
			return fmt.Errorf("failed to clear app dir %s: %w", s.cfg.AppDir, err)
		}
		if err := copyDir(filepath.Join(snap.Path, snapshotAppDir), s.cfg.AppDir); err != nil {
			return fmt.Errorf("failed to restore app dir: %w", err)
		}
	} else {
		s.logger.Warn("snapshot has no application files, leaving app dir untouched", "snapshot", snap.Name)
	}

	if snap.HasUnitFile && s.cfg.UnitPath != "" {
		src := filepath.Join(snap.Path, filepath.Base(s.cfg.UnitPath))
		if err := copyFile(src, s.cfg.UnitPath); err != nil {
			return fmt.Errorf("failed to restore unit file: %w", err)
		}
		if _, err := s.proc.Run(ctx, "systemctl", "daemon-reload"); err != nil {
			return fmt.Errorf("failed to reload unit cache: %w", err)
		}
	}

	if snap.HasImageArchive {
		archive := filepath.Join(snap.Path, snapshotImageArchive)
		if _, err := s.proc.Run(ctx, "docker", "load", "-i", archive); err != nil {
			return fmt.Errorf("failed to load image archive: %w", err)
		}
	}

	if snap.HasDataDir && s.cfg.DataDir != "" {
		if err := os.RemoveAll(s.cfg.DataDir); err != nil {
			return fmt.Errorf("failed to clear data dir %s: %w", s.cfg.DataDir, err)
		}
		if err := copyDir(filepath.Join(snap.Path, snapshotDataDir), s.cfg.DataDir); err != nil {
			return fmt.Errorf("failed to restore data dir: %w", err)
		}
	}

	return nil
}

// DiskUsage returns the total size in bytes of one snapshot directory.
func (s *SnapshotStore) DiskUsage(snap Snapshot) int64 {
	var total int64
	_ = filepath.WalkDir(snap.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// inspect builds a Snapshot from what a directory actually contains.
func (s *SnapshotStore) inspect(path string) Snapshot {
	snap := Snapshot{
		Name: filepath.Base(path),
		Path: path,
	}
	if info, err := os.Stat(path); err == nil {
		snap.CreatedAt = info.ModTime()
	}

	if info, err := os.Stat(filepath.Join(path, snapshotAppDir)); err == nil && info.IsDir() {
		snap.HasAppFiles = true
	}
	if s.cfg.UnitPath != "" {
		if _, err := os.Stat(filepath.Join(path, filepath.Base(s.cfg.UnitPath))); err == nil {
			snap.HasUnitFile = true
		}
	}
	if _, err := os.Stat(filepath.Join(path, snapshotImageArchive)); err == nil {
		snap.HasImageArchive = true
		if data, err := os.ReadFile(filepath.Join(path, snapshotImageNameFile)); err == nil {
			snap.ImageName = strings.TrimSpace(string(data))
		}
	}
	if info, err := os.Stat(filepath.Join(path, snapshotDataDir)); err == nil && info.IsDir() {
		snap.HasDataDir = true
	}

	return snap
}

// -----------------------------------------------------------------------------
// File Copy Helpers
// -----------------------------------------------------------------------------

// copyFile copies src to dst, preserving the source mode.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination dir: %w", err)
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

// copyDir recursively copies a directory tree, preserving file modes.
// Symlinks inside snapshots are not expected and are skipped.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}
