package main

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faciam-dev/gcform/pkg/config"
	"github.com/faciam-dev/gcform/sdk/client"
)

var (
	loginNonInteractive bool
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save API endpoint and token into ~/.formctl/config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			prof, _ := cmd.Root().PersistentFlags().GetString("profile")
			if prof == "" {
				prof = config.DefaultProfile
			}

			url, _ := cmd.Root().PersistentFlags().GetString("api-url")
			tok, _ := cmd.Root().PersistentFlags().GetString("token")
			if !loginNonInteractive {
				if url == "" {
					url = prompt("API URL", cfg.Profiles[prof].APIURL)
				}
				if tok == "" {
					tok = promptSecret("Token (Bearer, empty for none)")
				}
			}
			if url == "" {
				return fmt.Errorf("api-url is required (provide the flag or use interactive mode)")
			}
			if err := checkLogin(cmd.Context(), url, tok); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			if err := cfg.Put(config.Profile{Name: prof, APIURL: url, Token: tok}); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in. Active profile: %s\n", prof)
			return nil
		},
	}
	cmd.Flags().BoolVar(&loginNonInteractive, "non-interactive", false, "Fail instead of prompting")
	return cmd
}

func prompt(label, def string) string {
	fmt.Printf("%s [%s]: ", label, def)
	var s string
	if _, err := fmt.Scanln(&s); err != nil {
		return def
	}
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func promptSecret(label string) string {
	fmt.Printf("%s: ", label)
	b, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return strings.TrimSpace(string(b))
}

// checkLogin lists forms to check that url and token are accepted.
func checkLogin(ctx context.Context, url, token string) error {
	_, err := client.New(url, client.WithToken(token), client.WithTimeout(5*time.Second)).List(ctx)
	return err
}
