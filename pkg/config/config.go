// Package config stores formctl connection profiles.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultProfile is the profile used before any other is selected.
const DefaultProfile = "default"

// Output formats accepted by --output and stored per profile.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Profile is one named API endpoint with its token and preferred output
// format.
type Profile struct {
	Name   string `json:"name"`
	APIURL string `json:"apiUrl"`
	Token  string `json:"token,omitempty"`
	Output string `json:"output,omitempty"`
}

// File is the content of ~/.formctl/config.json.
type File struct {
	Active   string             `json:"active"`
	Profiles map[string]Profile `json:"profiles"`
	Version  int                `json:"version"`
}

// ErrUnknownProfile is returned when a profile name is not in the file.
var ErrUnknownProfile = errors.New("profile not found")

// Names returns the profile names in lexical order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Current returns the active profile, which is empty when it was never
// stored.
func (f *File) Current() Profile {
	p := f.Profiles[f.Active]
	p.Name = f.Active
	return p
}

// Use makes name the active profile.
func (f *File) Use(name string) error {
	if _, ok := f.Profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	f.Active = name
	return nil
}

// Put stores p under p.Name, keeping an output preference already set when
// p has none, and makes it active.
func (f *File) Put(p Profile) error {
	if p.Name == "" {
		p.Name = DefaultProfile
	}
	if err := CheckOutput(p.Output); err != nil {
		return err
	}
	if p.Output == "" {
		p.Output = f.Profiles[p.Name].Output
	}
	p.APIURL = strings.TrimRight(p.APIURL, "/")
	f.Profiles[p.Name] = p
	f.Active = p.Name
	return nil
}

// SetOutput sets the default output format of the active profile.
func (f *File) SetOutput(format string) error {
	if err := CheckOutput(format); err != nil {
		return err
	}
	p, ok := f.Profiles[f.Active]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, f.Active)
	}
	p.Output = format
	f.Profiles[f.Active] = p
	return nil
}

// CheckOutput accepts table, json or an empty string.
func CheckOutput(format string) error {
	switch format {
	case "", OutputTable, OutputJSON:
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

// Path returns ~/.formctl/config.json, creating the directory if needed.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".formctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the profile file. A missing file yields an empty file with the
// default profile active.
func Load() (*File, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}
	f := &File{Active: DefaultProfile, Profiles: map[string]Profile{}, Version: 1}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, f); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]Profile{}
	}
	if f.Active == "" {
		f.Active = DefaultProfile
	}
	return f, nil
}

// Save writes f through a temporary file with owner-only permissions.
func Save(f *File) error {
	p, err := Path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
