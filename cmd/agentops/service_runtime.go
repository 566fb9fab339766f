// Copyright (C) 2026 Meridian Labs (ops@meridianlabs.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package main provides ServiceRuntime, the two realizations of "the running
service".

The chatbot API runs either as a docker container or as a systemd unit,
both keyed by the same service name. The controller and the monitor treat
the realizations as an ordered list of strategies: container preferred,
unit as fallback.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// =============================================================================
// INTERFACE
// =============================================================================

// ServiceRuntime is one realization of the service handle.
//
// # Description
//
// A small capability set over a named service instance. Stop must be a
// tolerated no-op when the realization is absent: stopping an
// already-stopped service never fails the recovery pipeline.
//
// # Thread Safety
//
// Implementations are stateless and safe for concurrent use.
type ServiceRuntime interface {
	// Kind identifies the realization ("container" or "systemd").
	Kind() string

	// Available reports whether this realization could start the service
	// right now (image present, unit file installed).
	Available(ctx context.Context) bool

	// IsRunning reports whether the service is currently running under
	// this realization.
	IsRunning(ctx context.Context) (bool, error)

	// Start launches the service.
	Start(ctx context.Context) error

	// Stop halts the service. Absence of the instance is not an error.
	Stop(ctx context.Context) error

	// Restart restarts the service in place.
	Restart(ctx context.Context) error
}

// FirstAvailableRuntime returns the first realization able to start the
// service, honoring the order of the slice (container before systemd).
//
// # Outputs
//
//   - ServiceRuntime: The preferred available realization
//   - error: ErrNoServiceConfig when none is available
func FirstAvailableRuntime(ctx context.Context, runtimes []ServiceRuntime) (ServiceRuntime, error) {
	for _, rt := range runtimes {
		if rt.Available(ctx) {
			return rt, nil
		}
	}
	return nil, ErrNoServiceConfig
}

// =============================================================================
// CONTAINER REALIZATION
// =============================================================================

// ContainerRuntime drives the service as a docker container.
//
// All operations shell out through ProcessManager, so tests substitute a
// MockProcessManager and assert on the exact invocations.
type ContainerRuntime struct {
	proc ProcessManager
	cfg  StackConfig
}

// NewContainerRuntime creates the container realization.
func NewContainerRuntime(proc ProcessManager, cfg StackConfig) *ContainerRuntime {
	return &ContainerRuntime{proc: proc, cfg: cfg}
}

// Kind identifies the realization.
func (r *ContainerRuntime) Kind() string { return "container" }

// Available reports whether an image matching the configured repository
// exists locally.
func (r *ContainerRuntime) Available(ctx context.Context) bool {
	_, err := r.proc.Run(ctx, "docker", "image", "inspect", r.cfg.Image)
	return err == nil
}

// IsRunning queries the container state.
func (r *ContainerRuntime) IsRunning(ctx context.Context) (bool, error) {
	out, err := r.proc.Run(ctx, "docker", "inspect", "-f", "{{.State.Running}}", r.cfg.ServiceName)
	if err != nil {
		if isAbsentContainerErr(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container %s: %w", r.cfg.ServiceName, err)
	}
	return strings.TrimSpace(string(out)) == "true", nil
}

// Start runs a fresh container with the fixed port mapping, bind-mounted
// application and data directories, and the env-file reference.
//
// # Limitations
//
//   - A stale container with the same name must have been removed first;
//     Stop does that.
func (r *ContainerRuntime) Start(ctx context.Context) error {
	args := []string{
		"run", "-d",
		"--name", r.cfg.ServiceName,
		"--restart", "unless-stopped",
		"-p", r.cfg.PortMapping,
		"-v", fmt.Sprintf("%s:%s", r.cfg.AppDir, r.cfg.ContainerMountPath),
	}
	if r.cfg.DataDir != "" {
		args = append(args, "-v", fmt.Sprintf("%s:%s", r.cfg.DataDir, r.cfg.ContainerDataPath))
	}
	if r.cfg.EnvFile != "" {
		if _, err := os.Stat(r.cfg.EnvFile); err == nil {
			args = append(args, "--env-file", r.cfg.EnvFile)
		}
	}
	args = append(args, r.cfg.Image)

	if _, err := r.proc.Run(ctx, "docker", args...); err != nil {
		return fmt.Errorf("failed to start container %s: %w", r.cfg.ServiceName, err)
	}
	return nil
}

// Stop force-removes the container. A missing container is a no-op.
func (r *ContainerRuntime) Stop(ctx context.Context) error {
	if _, err := r.proc.Run(ctx, "docker", "rm", "-f", r.cfg.ServiceName); err != nil {
		if isAbsentContainerErr(err) {
			return nil
		}
		return fmt.Errorf("failed to stop container %s: %w", r.cfg.ServiceName, err)
	}
	return nil
}

// Restart restarts the container in place.
func (r *ContainerRuntime) Restart(ctx context.Context) error {
	if _, err := r.proc.Run(ctx, "docker", "restart", r.cfg.ServiceName); err != nil {
		return fmt.Errorf("failed to restart container %s: %w", r.cfg.ServiceName, err)
	}
	return nil
}

// isAbsentContainerErr recognizes docker's "no such container/object"
// errors, which the pipeline tolerates as already-stopped.
func isAbsentContainerErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such container") || strings.Contains(msg, "no such object")
}

// =============================================================================
// SYSTEMD REALIZATION
// =============================================================================

// SystemdRuntime drives the service as an init-managed unit.
type SystemdRuntime struct {
	proc ProcessManager
	cfg  StackConfig
}

// NewSystemdRuntime creates the systemd realization.
func NewSystemdRuntime(proc ProcessManager, cfg StackConfig) *SystemdRuntime {
	return &SystemdRuntime{proc: proc, cfg: cfg}
}

// Kind identifies the realization.
func (r *SystemdRuntime) Kind() string { return "systemd" }

// unit returns the unit name derived from the service name.
func (r *SystemdRuntime) unit() string {
	return r.cfg.ServiceName + ".service"
}

// Available reports whether the unit file is installed.
func (r *SystemdRuntime) Available(ctx context.Context) bool {
	if r.cfg.UnitPath == "" {
		return false
	}
	_, err := os.Stat(r.cfg.UnitPath)
	return err == nil
}

// IsRunning reports whether the unit is active.
func (r *SystemdRuntime) IsRunning(ctx context.Context) (bool, error) {
	out, err := r.proc.Run(ctx, "systemctl", "is-active", r.unit())
	if err != nil {
		// is-active exits non-zero for inactive and unknown units; both
		// simply mean "not running" here.
		return false, nil
	}
	return strings.TrimSpace(string(out)) == "active", nil
}

// Start enables and starts the unit.
func (r *SystemdRuntime) Start(ctx context.Context) error {
	// Enable is best-effort; a transient unit cannot be enabled but can run.
	_, _ = r.proc.Run(ctx, "systemctl", "enable", r.unit())

	if _, err := r.proc.Run(ctx, "systemctl", "start", r.unit()); err != nil {
		return fmt.Errorf("failed to start unit %s: %w", r.unit(), err)
	}
	return nil
}

// Stop stops the unit. An inactive or unknown unit is a no-op.
func (r *SystemdRuntime) Stop(ctx context.Context) error {
	if _, err := r.proc.Run(ctx, "systemctl", "stop", r.unit()); err != nil {
		if isAbsentUnitErr(err) {
			return nil
		}
		return fmt.Errorf("failed to stop unit %s: %w", r.unit(), err)
	}
	return nil
}

// Restart restarts the unit.
func (r *SystemdRuntime) Restart(ctx context.Context) error {
	if _, err := r.proc.Run(ctx, "systemctl", "restart", r.unit()); err != nil {
		return fmt.Errorf("failed to restart unit %s: %w", r.unit(), err)
	}
	return nil
}

// isAbsentUnitErr recognizes systemctl's "unit not loaded / not found"
// errors, tolerated as already-stopped.
func isAbsentUnitErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not loaded") || strings.Contains(msg, "could not be found") ||
		strings.Contains(msg, "not found")
}

// =============================================================================
// MOCK
// =============================================================================

// MockServiceRuntime is a configurable test double for ServiceRuntime.
// Nil function fields mean "available, running, and every operation
// succeeds"; RestartCount and StopCount track invocations.
type MockServiceRuntime struct {
	KindValue     string
	AvailableFunc func(ctx context.Context) bool
	IsRunningFunc func(ctx context.Context) (bool, error)
	StartFunc     func(ctx context.Context) error
	StopFunc      func(ctx context.Context) error
	RestartFunc   func(ctx context.Context) error

	StartCount   int
	StopCount    int
	RestartCount int
}

func (m *MockServiceRuntime) Kind() string {
	if m.KindValue == "" {
		return "mock"
	}
	return m.KindValue
}

func (m *MockServiceRuntime) Available(ctx context.Context) bool {
	if m.AvailableFunc == nil {
		return true
	}
	return m.AvailableFunc(ctx)
}

func (m *MockServiceRuntime) IsRunning(ctx context.Context) (bool, error) {
	if m.IsRunningFunc == nil {
		return true, nil
	}
	return m.IsRunningFunc(ctx)
}

func (m *MockServiceRuntime) Start(ctx context.Context) error {
	m.StartCount++
	if m.StartFunc == nil {
		return nil
	}
	return m.StartFunc(ctx)
}

func (m *MockServiceRuntime) Stop(ctx context.Context) error {
	m.StopCount++
	if m.StopFunc == nil {
		return nil
	}
	return m.StopFunc(ctx)
}

func (m *MockServiceRuntime) Restart(ctx context.Context) error {
	m.RestartCount++
	if m.RestartFunc == nil {
		return nil
	}
	return m.RestartFunc(ctx)
}

// Compile-time interface compliance check.
var (
	_ ServiceRuntime = (*ContainerRuntime)(nil)
	_ ServiceRuntime = (*SystemdRuntime)(nil)
	_ ServiceRuntime = (*MockServiceRuntime)(nil)
)
