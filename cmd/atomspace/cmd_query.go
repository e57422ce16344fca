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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
)

type queryOptions struct {
	fixture  string
	typeName string
	subtypes bool
}

func newQueryCmd(a *app) *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query --fixture <file> --type <Type> [child-id...]",
		Short: "Look up links by type and children in a fixture",
		Long: `query loads a fixture, then finds the links of --type whose ordered
children are the given fixture ids. With --subtypes every subtype of
--type is searched too. Zero child ids looks up the empty link.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := loadFixtureFile(cmd.Context(), a.store, opts.fixture, a.logger.Logger)
			if err != nil {
				return err
			}

			children := make([]atom.Handle, len(args))
			for i, id := range args {
				h, ok := res.IDs[id]
				if !ok {
					return fmt.Errorf("%w: unknown id %q", ErrInvalidFixture, id)
				}
				children[i] = h
			}

			found, err := a.store.GetLink(cmd.Context(), opts.typeName, children, opts.subtypes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "no match")
				return nil
			}
			names := res.names()
			for _, h := range found {
				link, _ := a.store.Get(h)
				fmt.Fprintf(out, "%s\t%s\t%s\n", h, a.store.Registry().Name(link.Type()), names[h])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.fixture, "fixture", "", "YAML atom fixture to query")
	cmd.Flags().StringVar(&opts.typeName, "type", "", "Link type name")
	cmd.Flags().BoolVar(&opts.subtypes, "subtypes", false, "Include every subtype of --type")
	_ = cmd.MarkFlagRequired("fixture")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
