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
	"time"
)

// PipelineStep is one named step in a linear recovery pipeline.
//
// # Description
//
// Steps are tagged required or best-effort. A required step's failure
// aborts the pipeline with its error; a best-effort step's failure is
// logged by the OnStepFail hook and swallowed. There is no compensation:
// the pipeline is strictly linear and non-resumable, and the pre-rollback
// snapshot is the safety net for a bad run.
//
// # Example
//
//	step := PipelineStep{
//	    Name:     "stop service",
//	    Required: false,
//	    Run: func(ctx context.Context) error {
//	        return runtime.Stop(ctx)
//	    },
//	}
type PipelineStep struct {
	// Name identifies the step for logging and tracing.
	Name string

	// Required marks whether failure aborts the pipeline.
	Required bool

	// Run performs the step.
	Run func(ctx context.Context) error

	// Timeout overrides the default step timeout. Zero uses the pipeline default.
	Timeout time.Duration
}

// PipelineConfig configures pipeline execution.
type PipelineConfig struct {
	// StepTimeout is the default timeout for each step.
	// Default: DefaultProcessTimeout.
	StepTimeout time.Duration

	// OnStepStart is called before each step executes.
	OnStepStart func(step PipelineStep)

	// OnStepComplete is called after each step completes successfully.
	OnStepComplete func(step PipelineStep, duration time.Duration)

	// OnStepFail is called when a step fails, required or not.
	OnStepFail func(step PipelineStep, err error)
}

// PipelineResult contains the outcome of a pipeline execution.
type PipelineResult struct {
	// ID correlates log lines belonging to this invocation.
	ID string

	// Success indicates all required steps completed.
	Success bool

	// Completed lists names of steps that executed successfully.
	Completed []string

	// FailedStep names the required step that aborted the pipeline.
	FailedStep string

	// Err is the error from the failed required step.
	Err error

	// Duration is total execution time.
	Duration time.Duration
}

// Pipeline executes an ordered list of steps.
//
// # Thread Safety
//
// A Pipeline is built, executed once, and discarded. Not safe for
// concurrent execution.
type Pipeline struct {
	steps  []PipelineStep
	config PipelineConfig
}

// NewPipeline creates a pipeline with the given configuration.
func NewPipeline(config PipelineConfig) *Pipeline {
	if config.StepTimeout <= 0 {
		config.StepTimeout = DefaultProcessTimeout
	}
	return &Pipeline{config: config}
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step PipelineStep) {
	p.steps = append(p.steps, step)
}

// Execute runs all steps in order.
//
// # Description
//
// Each step runs under its own timeout. The first required-step failure
// stops execution immediately; later steps do not run. Best-effort
// failures are reported through OnStepFail and otherwise ignored.
//
// # Outputs
//
//   - *PipelineResult: Always non-nil, even on failure
//   - error: The failed required step's error, wrapped with the step name
func (p *Pipeline) Execute(ctx context.Context) (*PipelineResult, error) {
	result := &PipelineResult{ID: GenerateID()}
	start := time.Now()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			result.FailedStep = step.Name
			result.Err = err
			result.Duration = time.Since(start)
			return result, fmt.Errorf("pipeline cancelled before step %q: %w", step.Name, err)
		}

		if p.config.OnStepStart != nil {
			p.config.OnStepStart(step)
		}

		timeout := step.Timeout
		if timeout <= 0 {
			timeout = p.config.StepTimeout
		}
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		stepStart := time.Now()
		err := step.Run(stepCtx)
		cancel()

		if err != nil {
			if p.config.OnStepFail != nil {
				p.config.OnStepFail(step, err)
			}
			if step.Required {
				result.FailedStep = step.Name
				result.Err = err
				result.Duration = time.Since(start)
				return result, fmt.Errorf("step %q failed: %w", step.Name, err)
			}
			// Best-effort step: swallowed, pipeline continues.
			continue
		}

		if p.config.OnStepComplete != nil {
			p.config.OnStepComplete(step, time.Since(stepStart))
		}
		result.Completed = append(result.Completed, step.Name)
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result, nil
}
