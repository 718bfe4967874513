package main

import "github.com/spf13/cobra"

// mustFlag marks a flag as required and panics on error.
func mustFlag(cmd *cobra.Command, name string) {
	cobra.CheckErr(cmd.MarkFlagRequired(name))
}

// outputFormat returns the --output flag of the root command, or table.
func outputFormat(cmd *cobra.Command) string {
	if f := cmd.Root().PersistentFlags().Lookup("output"); f != nil && f.Value.String() == "json" {
		return "json"
	}
	return "table"
}
