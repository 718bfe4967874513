package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/gcform/pkg/schema"
)

func newFieldsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List the fields of a form document in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadDocument(file)
			if err != nil {
				return err
			}
			fields := b.Fields()
			if outputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), fields)
			}
			tw := newTable(cmd.OutOrStdout(), "#", "ID", "Type", "Label", "Required", "Condition")
			for _, f := range fields {
				tw.Append([]string{
					strconv.Itoa(f.SortOrder), f.ID, string(f.Type), f.Label,
					strconv.FormatBool(f.Required), describeLogic(f.Logic, fields),
				})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "form document (YAML or JSON)")
	mustFlag(cmd, "file")
	return cmd
}

// describeLogic renders a rule set as "show if all: A equals x".
func describeLogic(l *schema.ConditionalLogic, fields []schema.FormField) string {
	if l == nil || len(l.Rules) == 0 {
		return ""
	}
	parts := make([]string, len(l.Rules))
	for i, r := range l.Rules {
		parts[i] = strings.TrimSpace(fmt.Sprintf("%s %s %s", labelOf(fields, r.FieldID), r.Operator, r.Value))
	}
	return fmt.Sprintf("%s if %s: %s", l.Action, l.Logic, strings.Join(parts, "; "))
}
