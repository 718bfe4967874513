package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/faciam-dev/gcform/pkg/codec"
	"github.com/faciam-dev/gcform/pkg/config"
	"github.com/faciam-dev/gcform/sdk/client"
)

// newClient builds an API client from flags, environment and profile.
func newClient(cmd *cobra.Command) (client.Client, error) {
	r, err := config.Resolve(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(r.APIURL, client.WithToken(r.Token), client.WithTimeout(15*time.Second), client.WithRetry(2)), nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List forms on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			forms, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			if outputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), forms)
			}
			tw := newTable(cmd.OutOrStdout(), "ID", "Slug", "Name", "Status", "Fields", "Updated")
			for _, f := range forms {
				tw.Append([]string{f.ID, f.Slug, f.Name, f.Status, fmt.Sprint(f.Fields), f.UpdatedAt.Format(time.RFC3339)})
			}
			tw.Render()
			return nil
		},
	}
}

func newPullCmd() *cobra.Command {
	var id, out string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download a form document",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			doc, err := c.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if out == "" {
				b, err := codec.EncodeYAML(doc.Form, doc.Fields)
				if err != nil {
					return err
				}
				cmd.Print(string(b))
				return nil
			}
			if err := writeDocument(out, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d fields)\n", out, len(doc.Fields))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "form id")
	cmd.Flags().StringVar(&out, "out", "", "output file (.yaml or .json); stdout when empty")
	mustFlag(cmd, "id")
	return cmd
}

func newPushCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upload a form document, creating the form when it has no id",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadDocument(file)
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			doc := codec.New(b.Form(), b.Fields())
			id := doc.Form.ID
			created := false
			if id != "" {
				if _, err := c.Get(cmd.Context(), id); client.IsNotFound(err) {
					id = ""
				} else if err != nil {
					return err
				}
			}
			if id == "" {
				fresh, err := c.Create(cmd.Context(), doc.Form.Name, doc.Form.Description)
				if err != nil {
					return err
				}
				id, created = fresh.Form.ID, true
			}
			saved, err := c.Replace(cmd.Context(), id, doc)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s, %d fields)\n", verb, saved.Form.ID, saved.Form.Status, len(saved.Fields))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "form document (YAML or JSON)")
	mustFlag(cmd, "file")
	return cmd
}

func newPublishCmd() *cobra.Command {
	return newStatusCmd("publish", "Publish a form", client.Client.Publish)
}

func newUnpublishCmd() *cobra.Command {
	return newStatusCmd("unpublish", "Return a form to draft", client.Client.Unpublish)
}

func newStatusCmd(use, short string, fn func(client.Client, context.Context, string) (codec.Document, error)) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			doc, err := fn(c, cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", doc.Form.Slug, doc.Form.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "form id")
	mustFlag(cmd, "id")
	return cmd
}
