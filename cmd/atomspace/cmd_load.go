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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/hypergraph/services/atomspace/store"
)

type loadOptions struct {
	tombstone []string
	jsonOut   bool
}

// loadReport is printed by the load command.
type loadReport struct {
	Fixture  fixtureResult `json:"fixture"`
	Released int           `json:"released"`
	Store    store.Stats   `json:"store"`
}

func newLoadCmd(a *app) *cobra.Command {
	opts := &loadOptions{}
	cmd := &cobra.Command{
		Use:   "load <fixture.yaml>",
		Short: "Load an atom fixture and report what the index did",
		Long: `load reads a YAML atom fixture into a fresh store and reports how many
links were created and how many were answered by an existing link.

With --tombstone the listed ids are marked and swept afterwards; atoms
still referenced by a surviving link are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := loadFixtureFile(ctx, a.store, args[0], a.logger.Logger)
			if err != nil {
				return err
			}

			report := loadReport{Fixture: res}
			if len(opts.tombstone) > 0 {
				for _, id := range opts.tombstone {
					h, ok := res.IDs[id]
					if !ok {
						return fmt.Errorf("%w: unknown id %q", ErrInvalidFixture, id)
					}
					if err := a.store.Tombstone(h); err != nil {
						return err
					}
				}
				report.Released, err = a.store.Sweep(ctx)
				if err != nil {
					return err
				}
			}
			report.Store = a.store.Stats()

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			fmt.Fprintf(out, "nodes:              %d\n", res.Nodes)
			fmt.Fprintf(out, "links created:      %d\n", res.LinksCreated)
			fmt.Fprintf(out, "links deduplicated: %d\n", res.LinksDeduped)
			if len(opts.tombstone) > 0 {
				fmt.Fprintf(out, "released:           %d\n", report.Released)
				fmt.Fprintf(out, "still tombstoned:   %d\n", report.Store.Tombstoned)
			}
			fmt.Fprintf(out, "atoms:              %d\n", report.Store.Atoms)
			fmt.Fprintf(out, "index entries:      %d\n", report.Store.Index.Entries)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&opts.tombstone, "tombstone", nil, "Fixture ids to tombstone and sweep after loading")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the report as JSON")
	return cmd
}
