// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import "fmt"

// =============================================================================
// ERROR VARIABLES
// =============================================================================

// ErrPermissionDenied is returned when the controller is invoked without
// the privileges needed to stop services and replace system files.
var ErrPermissionDenied = fmt.Errorf("permission denied: root privileges required")

// ErrNoBackupFound is returned when resolving the "previous" target and
// the backup root contains no snapshots at all.
var ErrNoBackupFound = fmt.Errorf("no backup found")

// ErrBackupNotFound is returned when an explicitly named snapshot does not
// exist under the backup root.
var ErrBackupNotFound = fmt.Errorf("backup not found")

// ErrNoServiceConfig is returned when neither a container image nor a
// systemd unit file is available to start the service from.
var ErrNoServiceConfig = fmt.Errorf("no service configuration: neither container image nor unit file available")

// ErrVerificationTimeout is returned when the post-rollback health check
// never returned a positive signal within the attempt budget.
var ErrVerificationTimeout = fmt.Errorf("verification timeout: service did not become healthy")

// ErrRestartFailed is returned by the monitor's restart procedure when both
// the container and the systemd unit were restarted without the service
// becoming healthy again.
var ErrRestartFailed = fmt.Errorf("restart failed: manual intervention required")
