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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/hypergraph/services/atomspace"
	"github.com/AleutianAI/hypergraph/services/atomspace/store"
	"github.com/AleutianAI/hypergraph/services/atomspace/telemetry"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	fixture     string
	traceStdout bool
	debug       bool
}

func newServeCmd(a *app) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP introspection API",
		Long: `serve starts an atom store, optionally seeds it from a fixture, and
exposes health, stats, types and structural lookups under /v1/atomspace.
Prometheus metrics are served at /metrics when metrics are enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a, opts)
		},
	}
	cmd.Flags().StringVar(&opts.fixture, "fixture", "", "YAML atom fixture to load before serving")
	cmd.Flags().BoolVar(&opts.traceStdout, "trace-stdout", false, "Write OpenTelemetry spans to stdout")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable gin debug mode and request logging")
	return cmd
}

func runServe(ctx context.Context, a *app, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := a.logger.Logger

	traceExporter := telemetry.TraceExporterNone
	if opts.traceStdout {
		traceExporter = telemetry.TraceExporterStdout
	}
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "atomspace",
		ServiceVersion: atomspace.ServiceVersion,
		TraceExporter:  traceExporter,
		Metrics:        a.cfg.Metrics.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if opts.fixture != "" {
		if _, err := loadFixtureFile(ctx, a.store, opts.fixture, logger); err != nil {
			return err
		}
	}

	if a.cfg.Types.Watch {
		w, err := store.NewTypeFileWatcher(a.cfg.Types.File, a.store, a.cfg.Types.WatchDebounce, logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	if opts.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(a, telemetry.MetricsHandler(), opts.debug)

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting atomspace server", slog.String("address", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down atomspace server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newRouter builds the gin engine. metrics may be nil.
func newRouter(a *app, metrics http.Handler, requestLog bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("atomspace"))
	if requestLog {
		router.Use(gin.Logger())
	}

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/v1")
	atomspace.RegisterRoutes(v1, atomspace.NewHandlers(a.store, a.logger.Logger))
	return router
}
