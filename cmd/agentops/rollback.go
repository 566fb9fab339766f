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
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/meridianlabs-ai/agentops/pkg/logging"
)

// =============================================================================
// ROLLBACK CONTROLLER
// =============================================================================

// RollbackController executes the rollback-and-recovery pipeline:
// resolve, stop, snapshot, restore, start, verify.
//
// # Description
//
// The pipeline is strictly linear. Target resolution runs first so a
// typo in the backup name fails before the service is touched. The
// pre-rollback snapshot is taken after the stop, so it captures the
// exact state being replaced; it is the safety net for a bad restore.
//
// # Thread Safety
//
// One rollback at a time. The controller assumes exclusive access to
// the backup root and the service.
type RollbackController struct {
	cfg      StackConfig
	store    *SnapshotStore
	prober   HealthProber
	runtimes []ServiceRuntime
	logger   *logging.Logger

	// sleep and geteuid are swappable for tests.
	sleep   func(ctx context.Context, d time.Duration)
	geteuid func() int
}

// NewRollbackController assembles a controller from its collaborators.
func NewRollbackController(cfg StackConfig, store *SnapshotStore, prober HealthProber,
	runtimes []ServiceRuntime, logger *logging.Logger) *RollbackController {
	return &RollbackController{
		cfg:      cfg,
		store:    store,
		prober:   prober,
		runtimes: runtimes,
		logger:   logger,
		sleep:    sleepCtx,
		geteuid:  os.Geteuid,
	}
}

// CheckPermissions gates the controller on effective root.
//
// # Description
//
// Restores replace directories under /opt and unit files under /etc;
// without root they fail halfway through with the service already
// stopped. Failing upfront is the safer shape. require_root: false in
// config.yaml disables the gate for containerized test environments.
func (c *RollbackController) CheckPermissions() error {
	if !c.cfg.RequireRoot {
		return nil
	}
	if c.geteuid() != 0 {
		return fmt.Errorf("%w: rollback requires root (euid %d)", ErrPermissionDenied, c.geteuid())
	}
	return nil
}

// Rollback restores the service to the given snapshot target and
// verifies it is healthy afterwards.
//
// # Inputs
//
//   - target: "previous" for the latest snapshot, or a backup name
//
// # Outputs
//
//   - *PipelineResult: Always non-nil, carries step-level detail
//   - error: The first required-step failure, or the permission error
func (c *RollbackController) Rollback(ctx context.Context, target string) (*PipelineResult, error) {
	if err := c.CheckPermissions(); err != nil {
		return &PipelineResult{FailedStep: "check permissions", Err: err}, err
	}

	ctx, span := Tracer().Start(ctx, "rollback")
	defer span.End()
	span.SetAttributes(
		attribute.String("rollback.target", target),
		attribute.String("rollback.service", c.cfg.ServiceName),
	)

	var snap Snapshot

	pipeline := NewPipeline(PipelineConfig{
		StepTimeout: DefaultProcessTimeout,
		OnStepStart: func(step PipelineStep) {
			span.AddEvent(step.Name)
			c.logger.Info("rollback step starting", "step", step.Name)
		},
		OnStepComplete: func(step PipelineStep, duration time.Duration) {
			c.logger.Info("rollback step complete", "step", step.Name, "duration", duration)
		},
		OnStepFail: func(step PipelineStep, err error) {
			level := c.logger.Warn
			if step.Required {
				level = c.logger.Error
			}
			level("rollback step failed", "step", step.Name, "required", step.Required, "error", err)
		},
	})

	pipeline.AddStep(PipelineStep{
		Name:     "resolve target",
		Required: true,
		Run: func(ctx context.Context) error {
			resolved, err := c.store.Resolve(target)
			if err != nil {
				return err
			}
			snap = resolved
			c.logger.Info("rollback target resolved", "snapshot", snap.Name,
				"app", snap.HasAppFiles, "unit", snap.HasUnitFile,
				"image", snap.HasImageArchive, "data", snap.HasDataDir)
			return nil
		},
	})

	pipeline.AddStep(PipelineStep{
		Name:     "stop service",
		Required: false,
		Run: func(ctx context.Context) error {
			return c.stopAll(ctx)
		},
	})

	pipeline.AddStep(PipelineStep{
		Name:     "snapshot current state",
		Required: true,
		Timeout:  DefaultSnapshotTimeout,
		Run: func(ctx context.Context) error {
			created, err := c.store.CreatePreRollback(ctx)
			if err != nil {
				return err
			}
			c.logger.Info("pre-rollback snapshot created", "snapshot", created.Name)
			return nil
		},
	})

	pipeline.AddStep(PipelineStep{
		Name:     "restore snapshot",
		Required: true,
		Timeout:  DefaultSnapshotTimeout,
		Run: func(ctx context.Context) error {
			return c.store.Restore(ctx, snap)
		},
	})

	pipeline.AddStep(PipelineStep{
		Name:     "start service",
		Required: true,
		Run: func(ctx context.Context) error {
			rt, err := FirstAvailableRuntime(ctx, c.runtimes)
			if err != nil {
				return err
			}
			if c.cfg.EnvFile != "" {
				if _, statErr := os.Stat(c.cfg.EnvFile); statErr != nil {
					c.logger.Warn("env file missing, starting without it", "path", c.cfg.EnvFile)
				}
			}
			c.logger.Info("starting restored service", "runtime", rt.Kind())
			return rt.Start(ctx)
		},
	})

	pipeline.AddStep(PipelineStep{
		Name:     "verify health",
		Required: true,
		Timeout:  time.Duration(c.cfg.VerifyAttempts+1) * (c.cfg.VerifyDelay.Duration + DefaultProbeTimeout),
		Run:      c.verify,
	})

	result, err := pipeline.Execute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result.FailedStep)
		return result, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// stopAll stops the service under every realization. Absence under a
// realization is a tolerated no-op, so stopping twice is safe.
func (c *RollbackController) stopAll(ctx context.Context) error {
	var firstErr error
	for _, rt := range c.runtimes {
		if err := rt.Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop via %s: %w", rt.Kind(), err)
		}
	}
	return firstErr
}

// verify polls the health endpoint until it answers healthy or the
// attempt budget runs out.
func (c *RollbackController) verify(ctx context.Context) error {
	for attempt := 1; attempt <= c.cfg.VerifyAttempts; attempt++ {
		if result := c.prober.Probe(ctx); result.Healthy {
			c.logger.Info("service verified healthy", "attempt", attempt, "latency", result.Latency)
			return nil
		}
		c.logger.Info("service not healthy yet", "attempt", attempt, "of", c.cfg.VerifyAttempts)

		if attempt < c.cfg.VerifyAttempts {
			c.sleep(ctx, c.cfg.VerifyDelay.Duration)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrVerificationTimeout, c.cfg.VerifyAttempts)
}
