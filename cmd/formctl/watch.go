package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate a form document whenever it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			report(out, file)
			return watchFile(ctx, file, func() { report(out, file) })
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "form document (YAML or JSON)")
	mustFlag(cmd, "file")
	return cmd
}

func report(w io.Writer, path string) {
	b, err := loadDocument(path)
	ts := time.Now().Format("15:04:05")
	if err != nil {
		fmt.Fprintf(w, "%s invalid: %v\n", ts, err)
		return
	}
	fmt.Fprintf(w, "%s ok: %s (%d fields)\n", ts, b.Form().Name, b.Len())
}

// watchFile calls onChange after each write to path until ctx is done.
// The directory is watched so editors that replace the file are seen too.
func watchFile(ctx context.Context, path string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				// let the editor finish writing
				time.Sleep(100 * time.Millisecond)
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
