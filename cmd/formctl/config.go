package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/gcform/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage formctl configuration"}
	cmd.AddCommand(newConfigUseCmd())
	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigOutputCmd())
	return cmd
}

func newConfigUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Set active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			prof := args[0]
			if err := cfg.Use(prof); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to profile %q\n", prof)
			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			for _, name := range cfg.Names() {
				mark := " "
				if name == cfg.Active {
					mark = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\n", mark, name, cfg.Profiles[name].APIURL)
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show active profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			p := cfg.Current()
			return printJSON(cmd.OutOrStdout(), struct {
				Active   string `json:"active"`
				APIURL   string `json:"apiUrl"`
				HasToken bool   `json:"hasToken"`
				Output   string `json:"output,omitempty"`
			}{p.Name, p.APIURL, p.Token != "", p.Output})
		},
	}
}

func newConfigOutputCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "output <table|json>",
		Short:     "Set the default output format of the active profile",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{config.OutputTable, config.OutputJSON},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.SetOutput(args[0]); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile %q prints %s\n", cfg.Active, args[0])
			return nil
		},
	}
}
