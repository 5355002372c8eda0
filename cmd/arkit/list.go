package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/archive"
)

// maxConcurrentArchives bounds how many archives are inspected at once.
const maxConcurrentArchives = 4

func newListCmd(a *app) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "list ARCHIVE...",
		Short: "List archive contents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputs, err := inspectAll(cmd.Context(), args, func(name string, w io.Writer) error {
				return a.list(name, w, long)
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, name := range args {
				if len(args) > 1 {
					fmt.Fprintf(out, "%s:\n", name)
				}
				_, _ = out.Write(outputs[i])
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show mode, owner, size and time")
	return cmd
}

// inspectAll runs fn for every archive concurrently and returns the output
// of each in argument order.
func inspectAll(ctx context.Context, names []string, fn func(name string, w io.Writer) error) ([][]byte, error) {
	outputs := make([][]byte, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentArchives)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := fn(name, &buf); err != nil {
				return err
			}
			outputs[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (a *app) list(name string, w io.Writer, long bool) error {
	arc, root, err := a.open(name)
	if err != nil {
		return err
	}
	defer arc.Close()

	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	walk(root, "", func(p string, e archive.Entry) {
		display := p
		if e.IsDirectory() {
			display += "/"
		}
		if target := e.SymLinkTarget(); target != "" {
			display += " -> " + target
		}
		if !long {
			fmt.Fprintln(tw, display)
			return
		}
		size := "-"
		if f, ok := e.(*archive.File); ok {
			size = humanize.IBytes(uint64(f.Size()))
		}
		fmt.Fprintf(tw, "%s\t%s/%s\t%s\t%s\t%s\n",
			e.Mode(), e.User(), e.Group(), size, e.ModTime().Format("2006-01-02 15:04"), display)
	})
	return tw.Flush()
}
