package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/faciam-dev/gcform/pkg/builder"
	"github.com/faciam-dev/gcform/pkg/codec"
	"github.com/faciam-dev/gcform/pkg/schema"
)

var exitFunc = os.Exit

// readDocument decodes a YAML or JSON form document.
func readDocument(path string) (codec.Document, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return codec.Document{}, err
	}
	doc, err := codec.Decode(b)
	if err != nil {
		return codec.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// loadDocument reads a document and checks it against the model rules.
func loadDocument(path string) (*builder.Builder, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	b, err := builder.Load(doc.Form, doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// writeDocument encodes a document as YAML, or JSON for a .json path.
func writeDocument(path string, doc codec.Document) error {
	var (
		b   []byte
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		b, err = codec.EncodeJSON(doc.Form, doc.Fields)
	} else {
		b, err = codec.EncodeYAML(doc.Form, doc.Fields)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), b, 0o644)
}

// readValues parses answers given inline as JSON or YAML, or as @file.
func readValues(arg string) (schema.Values, error) {
	if arg == "" {
		return schema.Values{}, nil
	}
	data := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		b, err := os.ReadFile(filepath.Clean(arg[1:]))
		if err != nil {
			return nil, err
		}
		data = b
	}
	var v schema.Values
	if err := json.Unmarshal(data, &v); err != nil {
		if yerr := yaml.Unmarshal(data, &v); yerr != nil {
			return nil, fmt.Errorf("values: %w", err)
		}
	}
	if v == nil {
		v = schema.Values{}
	}
	return v, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetAutoWrapText(false)
	return tw
}

func labelOf(fields []schema.FormField, id string) string {
	for _, f := range fields {
		if f.ID == id {
			return f.Label
		}
	}
	return id
}
