package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/gcform/pkg/validation"
)

func newCheckCmd() *cobra.Command {
	var (
		file, values string
		fail         bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate answers against a form document",
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
			res := validation.Check(fields, vals)
			out := cmd.OutOrStdout()
			if outputFormat(cmd) == "json" {
				errs := make([]map[string]string, 0, len(res.Errors))
				for _, e := range res.Errors {
					errs = append(errs, map[string]string{"field_id": e.FieldID(), "code": string(e.Code()), "message": e.Error()})
				}
				if err := printJSON(out, map[string]any{"valid": res.OK(), "errors": errs, "payload": res.Payload}); err != nil {
					return err
				}
			} else if res.OK() {
				fmt.Fprintf(out, "valid: %d answers kept\n", len(res.Payload))
			} else {
				tw := newTable(out, "Field", "Code", "Message")
				for _, e := range res.Errors {
					tw.Append([]string{labelOf(fields, e.FieldID()), string(e.Code()), e.Error()})
				}
				tw.Render()
			}
			if !res.OK() && fail {
				exitFunc(2)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "form document (YAML or JSON)")
	cmd.Flags().StringVar(&values, "values", "", "answers as JSON/YAML or @file")
	cmd.Flags().BoolVar(&fail, "fail-on-error", false, "exit 2 if the answers are invalid")
	mustFlag(cmd, "file")
	return cmd
}
