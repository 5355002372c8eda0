package main

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/archive"
)

// summary counts the entries of an archive.
type summary struct {
	files    int
	dirs     int
	symlinks int
	bytes    int64
}

func summarize(root *archive.Directory) summary {
	var s summary
	walk(root, "", func(_ string, e archive.Entry) {
		switch {
		case e.IsDirectory():
			s.dirs++
		case e.Mode()&fs.ModeSymlink != 0:
			s.symlinks++
		default:
			s.files++
			if f, ok := e.(*archive.File); ok {
				s.bytes += f.Size()
			}
		}
	})
	return s
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info ARCHIVE...",
		Short: "Summarize archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputs, err := inspectAll(cmd.Context(), args, a.info)
			if err != nil {
				return err
			}
			for _, out := range outputs {
				_, _ = cmd.OutOrStdout().Write(out)
			}
			return nil
		},
	}
}

func (a *app) info(name string, w io.Writer) error {
	arc, root, err := a.open(name)
	if err != nil {
		return err
	}
	defer arc.Close()

	s := summarize(root)
	fmt.Fprintf(w, "%s: %s archive, %d files, %d directories, %d symlinks, %s\n",
		name, arc.Format(), s.files, s.dirs, s.symlinks, humanize.IBytes(uint64(s.bytes)))
	return nil
}
