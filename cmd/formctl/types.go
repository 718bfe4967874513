package main

import (
	"github.com/spf13/cobra"

	"github.com/faciam-dev/gcform/pkg/fieldtype"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List field types by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups := fieldtype.Palette()
			if outputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), groups)
			}
			tw := newTable(cmd.OutOrStdout(), "Category", "Type", "Label")
			for _, g := range groups {
				for _, d := range g.Types {
					tw.Append([]string{string(g.Category), string(d.Type), d.Label})
				}
			}
			tw.Render()
			return nil
		},
	}
}
