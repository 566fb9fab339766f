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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this binary's tracer.
const tracerName = "agentops"

// InitTracing configures the global tracer provider.
//
// # Description
//
// When AGENTOPS_TRACE_STDOUT=true, spans are pretty-printed to stderr via
// the stdout exporter. Otherwise the default no-op provider stays in
// place and Tracer() calls cost nothing.
//
// # Outputs
//
//   - func(context.Context) error: Shutdown function, flushes pending spans
//   - error: Exporter construction failure
func InitTracing() (func(context.Context) error, error) {
	if os.Getenv(EnvTraceStdout) != "true" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the tracer for this binary.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
