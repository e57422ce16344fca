// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for store operations.
var (
	tracer = otel.Tracer("aleutian.atomspace.store")
	meter  = otel.Meter("aleutian.atomspace.store")
)

// Metrics for store operations.
var (
	operationLatency metric.Float64Histogram
	atomsCreated     metric.Int64Counter
	linksDeduped     metric.Int64Counter
	atomsSwept       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		operationLatency, err = meter.Float64Histogram(
			"atomspace_store_operation_duration_seconds",
			metric.WithDescription("Duration of atom store operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		atomsCreated, err = meter.Int64Counter(
			"atomspace_store_atoms_created_total",
			metric.WithDescription("Atoms created, by kind"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		linksDeduped, err = meter.Int64Counter(
			"atomspace_store_links_deduplicated_total",
			metric.WithDescription("AddLink calls answered by an existing link"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		atomsSwept, err = meter.Int64Counter(
			"atomspace_store_atoms_swept_total",
			metric.WithDescription("Tombstoned atoms released by sweeps"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startOperationSpan creates a span for a store operation.
func startOperationSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "AtomStore."+operation,
		trace.WithAttributes(append(attrs, attribute.String("store.operation", operation))...),
	)
}

// endOperationSpan records err on span and ends it.
func endOperationSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// recordOperation records the latency of a store operation.
func recordOperation(ctx context.Context, operation string, start time.Time, err error) {
	if initMetrics() != nil {
		return
	}
	operationLatency.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("success", err == nil),
		),
	)
}

func recordCreated(ctx context.Context, kind string) {
	if initMetrics() != nil {
		return
	}
	atomsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func recordDeduped(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	linksDeduped.Add(ctx, 1)
}

func recordSwept(ctx context.Context, n int) {
	if initMetrics() != nil || n == 0 {
		return
	}
	atomsSwept.Add(ctx, int64(n))
}
