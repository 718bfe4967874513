package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/gcform/pkg/audit"
	"github.com/faciam-dev/gcform/pkg/codec"
)

func newDiffCmd() *cobra.Command {
	var (
		from, to string
		format   string
		fail     bool
	)
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show the changes between two form documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "markdown" {
				return errors.New("--format must be text or markdown")
			}
			before, err := readDocument(from)
			if err != nil {
				return err
			}
			after, err := readDocument(to)
			if err != nil {
				return err
			}
			bj, err := codec.EncodeJSON(before.Form, before.Fields)
			if err != nil {
				return err
			}
			aj, err := codec.EncodeJSON(after.Form, after.Fields)
			if err != nil {
				return err
			}
			unified, added, removed := audit.UnifiedDiff(bj, aj)
			if unified == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
				return nil
			}
			changes := audit.CompareFields(before.Fields, after.Fields)

			var b bytes.Buffer
			if format == "markdown" {
				b.WriteString("```diff\n")
				b.WriteString(unified)
				b.WriteString("```\n")
			} else {
				b.WriteString(unified)
			}
			fmt.Fprintf(&b, "%d lines added, %d removed\n", added, removed)
			writeChanges(&b, changes)
			cmd.Print(b.String())
			if fail {
				exitFunc(2)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "old form document")
	cmd.Flags().StringVar(&to, "to", "", "new form document")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text|markdown)")
	cmd.Flags().BoolVar(&fail, "fail-on-change", false, "exit 2 if the documents differ")
	mustFlag(cmd, "from")
	mustFlag(cmd, "to")
	return cmd
}

func writeChanges(b *bytes.Buffer, c audit.FieldChanges) {
	for _, row := range []struct {
		name string
		ids  []string
	}{{"added", c.Added}, {"removed", c.Removed}, {"changed", c.Changed}, {"moved", c.Moved}} {
		if len(row.ids) > 0 {
			fmt.Fprintf(b, "fields %s: %s\n", row.name, strings.Join(row.ids, ", "))
		}
	}
}
