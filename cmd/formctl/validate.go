package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a form document against the model rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadDocument(file)
			if err != nil {
				return err
			}
			if b.Len() == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "warning: a form without fields cannot be published")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s (%d fields)\n", b.Form().Name, b.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "form document (YAML or JSON)")
	mustFlag(cmd, "file")
	return cmd
}
