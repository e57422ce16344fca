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
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/hypergraph/services/atomspace/atom"
)

func newTypesCmd(a *app) *cobra.Command {
	var under string
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List registered atom types",
		Long: `types prints every registered type with its id and parents. The base
hierarchy is always present; --types adds definitions from a file.
With --under only subtypes of the given type are listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := a.store.Registry()

			ids := make([]atom.TypeID, 0, reg.TypeCount())
			if under != "" {
				anc, err := reg.ByName(under)
				if err != nil {
					return err
				}
				ids = reg.Subtypes(anc)
			} else {
				for i := range reg.TypeCount() {
					ids = append(ids, atom.TypeID(i))
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPARENTS")
			for _, id := range ids {
				parents, err := reg.Parents(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", id, reg.Name(id), strings.Join(parents, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&under, "under", "", "Only list subtypes of this type")
	return cmd
}
