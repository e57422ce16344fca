// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry SDK for the atomspace service.
//
// Metrics go through the OTel Prometheus exporter, so OTel instruments (the
// store's) and native Prometheus collectors (the index's) are scraped from
// the same /metrics endpoint. Traces are optional and go to a writer via
// the stdout exporter.
//
//	shutdown, err := telemetry.Init(ctx, telemetry.Config{
//	    ServiceName: "atomspace",
//	    Metrics:     true,
//	})
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Thread Safety
//
// Init should be called once at startup. Everything else is safe for
// concurrent use.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Sentinel errors for telemetry setup.
var (
	// ErrNilContext is returned when Init is given a nil context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an unsupported trace exporter.
	ErrUnknownExporter = errors.New("unknown exporter type")
)

// Trace exporter names.
const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
)

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies this service in traces and metrics.
	ServiceName string

	// ServiceVersion is the version string for this service.
	ServiceVersion string

	// TraceExporter is "stdout" or "none". Empty means "none".
	TraceExporter string

	// TraceWriter receives stdout spans. Default: os.Stdout.
	TraceWriter io.Writer

	// Metrics enables the Prometheus metric exporter.
	Metrics bool

	// Registry receives the exporter's collector and backs MetricsHandler.
	// Default: the global Prometheus registry.
	Registry *prometheus.Registry
}

// Shutdown flushes and stops the providers started by Init.
type Shutdown func(context.Context) error

var (
	metricsHandler   http.Handler
	metricsHandlerMu sync.RWMutex
)

// Init installs global tracer and meter providers for cfg.
//
// Inputs:
//
//	ctx - Must not be nil.
//	cfg - Telemetry configuration.
//
// Outputs:
//
//	Shutdown - Always non-nil on success. Must be called on exit.
//	error - ErrNilContext, ErrUnknownExporter or exporter setup errors.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	switch cfg.TraceExporter {
	case "", TraceExporterNone:
	case TraceExporterStdout:
		opts := []stdouttrace.Option{}
		if cfg.TraceWriter != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.TraceWriter))
		}
		exp, err := stdouttrace.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exp),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	if cfg.Metrics {
		var (
			opts    []promexporter.Option
			handler http.Handler
		)
		if cfg.Registry != nil {
			opts = append(opts, promexporter.WithRegisterer(cfg.Registry))
			handler = promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})
		} else {
			handler = promhttp.Handler()
		}

		exp, err := promexporter.New(opts...)
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exp),
		)
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)

		metricsHandlerMu.Lock()
		metricsHandler = handler
		metricsHandlerMu.Unlock()
	}

	return shutdown, nil
}

// MetricsHandler returns the /metrics handler, or nil if metrics are off.
func MetricsHandler() http.Handler {
	metricsHandlerMu.RLock()
	defer metricsHandlerMu.RUnlock()
	return metricsHandler
}

// LoggerWithTrace returns logger with trace_id and span_id from ctx.
//
// Returns logger unchanged when ctx carries no valid span.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
