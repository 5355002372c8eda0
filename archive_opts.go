package archive

import (
	"log/slog"

	"github.com/spf13/afero"

	"github.com/meigma/archive/filter"
)

type config struct {
	logger      *slog.Logger
	fs          afero.Fs
	tempDir     string
	filter      filter.Filter
	skipHeaders bool
	format      Format
	mimeType    string
}

// Option configures an Archive.
type Option func(*config)

// WithLogger sets the logger for archive lifecycle and parse events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithFs sets the file system used for named archives, scratch files,
// AddLocalFile and CopyTo (default: the OS file system).
func WithFs(fsys afero.Fs) Option {
	return func(c *config) {
		c.fs = fsys
	}
}

// WithTempDir sets the directory for scratch files created while reading
// compressed archives (default: the system temp directory).
func WithTempDir(dir string) Option {
	return func(c *config) {
		c.tempDir = dir
	}
}

// WithFilter forces the compression filter. Without it the filter is
// chosen from the file extension, the declared MIME type, or the content.
func WithFilter(f filter.Filter) Option {
	return func(c *config) {
		c.filter = f
	}
}

// WithSkipHeaders makes the compression filter skip codec framing, for
// example to read raw deflate data.
func WithSkipHeaders() Option {
	return func(c *config) {
		c.skipHeaders = true
	}
}

// WithFormat declares the archive format instead of guessing it.
func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithMimeType declares the archive MIME type, such as
// "application/x-compressed-tar". It selects both the format and the
// compression filter.
func WithMimeType(mime string) Option {
	return func(c *config) {
		c.mimeType = mime
	}
}

func newConfig(opts []Option) config {
	c := config{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
