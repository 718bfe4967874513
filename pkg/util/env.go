package util

import (
	"os"
	"strings"
)

// GetEnv returns the value of the environment variable named by key or def if empty.
func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvList splits a comma separated variable, dropping blank items.
func GetEnvList(key, def string) []string {
	var out []string
	for _, s := range strings.Split(GetEnv(key, def), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
