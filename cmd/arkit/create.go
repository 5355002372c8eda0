package main

import (
	_ "crypto/sha256" // register the digest algorithm
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/meigma/archive"
)

func newCreateCmd(a *app) *cobra.Command {
	var formatName string
	cmd := &cobra.Command{
		Use:   "create ARCHIVE SRC...",
		Short: "Create a tar archive from local files",
		Long: "Create a tar archive from local files and directories. The format and " +
			"compression follow the archive name (.tar, .tar.gz, .tar.zst, ...) unless --format is given.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := archive.FormatUnknown
			if formatName != "" {
				f, ok := archive.ParseFormat(formatName)
				if !ok {
					return fmt.Errorf("unknown format %q", formatName)
				}
				format = f
			}
			return a.create(args[0], args[1:], format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", "", "Archive format (tar)")
	return cmd
}

func (a *app) create(name string, sources []string, format archive.Format, w io.Writer) error {
	opts := []archive.Option{archive.WithLogger(a.logger)}
	if format != archive.FormatUnknown {
		opts = append(opts, archive.WithFormat(format))
	}
	arc, err := archive.Open(name, archive.ModeWrite, opts...)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	for _, src := range sources {
		info, err := os.Lstat(src)
		if err == nil {
			dest := filepath.Base(filepath.Clean(src))
			if info.IsDir() {
				err = arc.AddLocalDirectory(src, dest)
			} else {
				err = arc.AddLocalFile(src, dest)
			}
		}
		if err != nil {
			arc.Abort()
			_ = arc.Close()
			return err
		}
	}
	if err := arc.Close(); err != nil {
		return err
	}

	dgst, size, err := fileDigest(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s %s\n", dgst, humanize.IBytes(uint64(size)), name)
	return nil
}

// fileDigest returns the sha256 digest and size of a local file.
func fileDigest(name string) (digest.Digest, int64, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	cr := &countingReader{r: f}
	dgst, err := digest.SHA256.FromReader(cr)
	if err != nil {
		return "", 0, fmt.Errorf("digest %s: %w", name, err)
	}
	return dgst, cr.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
