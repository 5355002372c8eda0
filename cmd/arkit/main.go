// Command arkit lists, extracts and creates tar and ar archives.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"charm.land/log/v2"
	"github.com/spf13/cobra"

	"github.com/meigma/archive"
)

// app holds state shared by the subcommands.
type app struct {
	verbose bool
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "arkit",
		Short:         "Inspect, extract and create tar and ar archives",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newListCmd(a),
		newInfoCmd(a),
		newCatCmd(a),
		newExtractCmd(a),
		newCreateCmd(a),
	)
	return root
}

// newLogger returns a slog logger backed by the charm handler.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: verbose,
		Prefix:          "arkit",
	})
	return slog.New(handler)
}

// open opens name for reading with the app's logger.
func (a *app) open(name string) (*archive.Archive, *archive.Directory, error) {
	arc, err := archive.Open(name, archive.ModeRead, archive.WithLogger(a.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	root, err := arc.Directory()
	if err != nil {
		_ = arc.Close()
		return nil, nil, err
	}
	return arc, root, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "arkit:", err)
		os.Exit(1)
	}
}
