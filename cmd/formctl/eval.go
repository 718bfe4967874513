package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/gcform/pkg/logic"
)

func newEvalCmd() *cobra.Command {
	var file, values string
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Show which fields are visible for a set of answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadDocument(file)
			if err != nil {
				return err
			}
			vals, err := readValues(values)
			if err != nil {
				return err
			}
			fields := b.Fields()
			vis := logic.New(fields).VisibleSet(fields, vals)
			if outputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), vis)
			}
			tw := newTable(cmd.OutOrStdout(), "ID", "Label", "Visible")
			for _, f := range fields {
				tw.Append([]string{f.ID, f.Label, strconv.FormatBool(vis[f.ID])})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "form document (YAML or JSON)")
	cmd.Flags().StringVar(&values, "values", "", "answers as JSON/YAML or @file")
	mustFlag(cmd, "file")
	return cmd
}
