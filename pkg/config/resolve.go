package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	EnvAPIURL = "FORMCTL_API_URL"
	EnvToken  = "FORMCTL_TOKEN"
)

// Resolved holds the connection settings for one invocation.
type Resolved struct {
	APIURL  string
	Token   string
	Profile string
	Output  string
}

// Resolve picks the API URL and token from, in order, the root command's
// persistent flags, the environment and the selected profile. A token is
// optional since the server may run without authentication. The output
// format comes from an explicit --output, then the profile, then the flag
// default.
func Resolve(cmd *cobra.Command) (Resolved, error) {
	flags := cmd.Root().PersistentFlags()
	flagURL, _ := flags.GetString("api-url")
	flagToken, _ := flags.GetString("token")

	cfg, err := Load()
	if err != nil {
		return Resolved{}, err
	}
	prof := cfg.Active
	if p, _ := flags.GetString("profile"); p != "" {
		prof = p
	}
	cp := cfg.Profiles[prof]

	url := firstNonEmpty(flagURL, os.Getenv(EnvAPIURL), cp.APIURL)
	if url == "" {
		return Resolved{}, fmt.Errorf("API URL not set (--api-url, %s or profile %q)", EnvAPIURL, prof)
	}
	output := cp.Output
	if f := flags.Lookup("output"); f != nil && (f.Changed || output == "") {
		output = f.Value.String()
	}
	if err := CheckOutput(output); err != nil {
		return Resolved{}, err
	}
	if output == "" {
		output = OutputTable
	}

	return Resolved{
		APIURL:  strings.TrimRight(url, "/"),
		Token:   firstNonEmpty(flagToken, os.Getenv(EnvToken), cp.Token),
		Profile: prof,
		Output:  output,
	}, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
