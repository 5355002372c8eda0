package main

import (
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/meigma/archive"
)

func newExtractCmd(a *app) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "extract ARCHIVE DEST",
		Short: "Extract an archive into a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.extract(args[0], args[1], prefix)
		},
	}
	cmd.Flags().StringVarP(&prefix, "path", "p", "", "Extract only this directory of the archive")
	return cmd
}

func (a *app) extract(name, dest, prefix string) error {
	arc, root, err := a.open(name)
	if err != nil {
		return err
	}
	defer arc.Close()

	e, ok := root.Entry(prefix)
	if !ok {
		return &fs.PathError{Op: "extract", Path: prefix, Err: fs.ErrNotExist}
	}
	switch e := e.(type) {
	case *archive.Directory:
		err = e.CopyTo(dest, true)
	case *archive.File:
		err = e.CopyTo(dest)
	}
	if err != nil {
		return err
	}
	a.logger.Info("extracted archive", "archive", name, "dest", dest)
	return nil
}
