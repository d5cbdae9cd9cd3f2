// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// traceExporterEnv selects the span exporter. Empty disables tracing;
// "stdout" prints spans to stderr.
const traceExporterEnv = "LENSEVAL_TRACE_EXPORTER"

// noopShutdown is returned when tracing is disabled.
func noopShutdown(context.Context) error { return nil }

// setupTracing installs a global TracerProvider so the per-document
// spans emitted by the runner are recorded. Without a registered
// provider every span call hits the noop global and is discarded.
//
// Inputs:
//   - exporter: Exporter name from the environment; "" disables
//     tracing.
//   - w: Destination for the stdout exporter; os.Stderr when nil.
//
// Outputs:
//   - func: Shutdown hook flushing buffered spans. Never nil.
//   - error: Unknown exporter name or exporter construction failure.
func setupTracing(exporter string, w io.Writer) (func(context.Context) error, error) {
	if exporter == "" {
		return noopShutdown, nil
	}
	if exporter != "stdout" {
		return noopShutdown, fmt.Errorf("unknown trace exporter %q", exporter)
	}
	if w == nil {
		w = os.Stderr
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return noopShutdown, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String("lenseval")),
	)
	if err != nil {
		return noopShutdown, fmt.Errorf("create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
