package main

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"
)

func newCatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat ARCHIVE PATH",
		Short: "Write one archive member to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cat(args[0], args[1], cmd.OutOrStdout())
		},
	}
}

func (a *app) cat(name, member string, w io.Writer) error {
	arc, root, err := a.open(name)
	if err != nil {
		return err
	}
	defer arc.Close()

	f, ok := root.File(member)
	if !ok || f.Mode()&fs.ModeSymlink != 0 {
		return &fs.PathError{Op: "cat", Path: member, Err: fs.ErrNotExist}
	}
	sub, err := f.Open()
	if err != nil {
		return err
	}
	defer sub.Close()
	if _, err := io.Copy(w, sub); err != nil {
		return fmt.Errorf("read %s: %w", member, err)
	}
	return nil
}
