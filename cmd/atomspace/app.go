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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/hypergraph/pkg/logging"
	"github.com/AleutianAI/hypergraph/services/atomspace/config"
	"github.com/AleutianAI/hypergraph/services/atomspace/store"
	"github.com/AleutianAI/hypergraph/services/atomspace/types"
)

// app holds state shared by every subcommand.
type app struct {
	// Flags.
	configPath string
	logLevel   string
	typesFile  string

	cfg    config.Config
	logger *logging.Logger
	store  *store.AtomStore
}

// setup loads config, builds the logger and creates an empty store.
//
// Flag values override the config file.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.typesFile != "" {
		cfg.Types.File = a.typesFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.logger, err = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "atomspace",
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	slog.SetDefault(a.logger.Logger)

	registry := types.NewDefaultRegistry()
	if cfg.Types.File != "" {
		added, err := registry.LoadFile(cfg.Types.File)
		if err != nil {
			return fmt.Errorf("loading types: %w", err)
		}
		a.logger.Info("Loaded type definitions",
			slog.String("path", cfg.Types.File),
			slog.Int("added", added))
	}

	a.store = store.New(registry,
		store.WithLogger(a.logger.Logger),
		store.WithSweepWorkers(cfg.Store.SweepWorkers),
		store.WithIndexMetrics(cfg.Metrics.Enabled),
	)
	return nil
}

// close releases the logger's file.
func (a *app) close() error {
	if a.logger == nil {
		return nil
	}
	return a.logger.Close()
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "atomspace",
		Short: "Run and inspect an in-memory hypergraph atom store",
		Long: `atomspace keeps typed nodes and links in memory and indexes links by
their type and ordered children, so identical links are shared and
lookups can cover a type together with all of its subtypes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.typesFile, "types", "", "YAML type-definition file to load on top of the base types")

	root.AddCommand(
		newServeCmd(a),
		newLoadCmd(a),
		newQueryCmd(a),
		newTypesCmd(a),
	)
	return root
}
