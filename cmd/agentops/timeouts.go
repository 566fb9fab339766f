package main

import "time"

// Timeout constants define minimum and default values for the probe and
// process-control operations.
//
// These constants prevent accidental infinite hangs by ensuring all
// operations have a reasonable timeout even if misconfigured.
const (
	// MinProbeTimeout is the absolute minimum for a single health probe.
	MinProbeTimeout = 1 * time.Second

	// MinCheckInterval is the absolute minimum between monitor ticks.
	MinCheckInterval = 5 * time.Second

	// MinProcessTimeout is the absolute minimum for process operations.
	MinProcessTimeout = 5 * time.Second

	// DefaultProbeTimeout is the standard timeout for one health probe.
	DefaultProbeTimeout = 10 * time.Second

	// DefaultCheckInterval is the standard delay between monitor ticks.
	DefaultCheckInterval = 60 * time.Second

	// DefaultProcessTimeout is the standard timeout for container and
	// systemctl invocations.
	DefaultProcessTimeout = 2 * time.Minute

	// DefaultSnapshotTimeout is the standard timeout for the snapshot and
	// restore steps, which may copy large data directories and export
	// container images.
	DefaultSnapshotTimeout = 10 * time.Minute

	// DefaultRestartSettle is how long the monitor waits after a restart
	// before re-probing the service.
	DefaultRestartSettle = 15 * time.Second

	// DefaultVerifyAttempts is how many probes the rollback pipeline makes
	// before giving up on the restored service.
	DefaultVerifyAttempts = 10

	// DefaultVerifyDelay is the delay between verification probes.
	DefaultVerifyDelay = 5 * time.Second
)

// EnforceMinTimeout returns at least the minimum timeout.
//
// # Description
//
// Ensures a timeout is never below the specified minimum. If the requested
// timeout is zero, negative, or below the minimum, returns the minimum
// instead. This prevents misconfiguration from causing infinite hangs.
//
// # Inputs
//
//   - requested: The timeout value requested by the caller
//   - minimum: The absolute minimum acceptable timeout
//
// # Outputs
//
//   - time.Duration: The requested timeout if valid, otherwise the minimum
func EnforceMinTimeout(requested, minimum time.Duration) time.Duration {
	if requested < minimum {
		return minimum
	}
	return requested
}
