package archive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/meigma/archive/filter"
	"github.com/meigma/archive/internal/platform"
	"github.com/meigma/archive/internal/save"
)

// Mode is the mode an archive is opened in.
type Mode int

const (
	// ModeRead parses an existing archive.
	ModeRead Mode = iota + 1
	// ModeWrite creates a new archive.
	ModeWrite
	// ModeReadWrite parses an uncompressed tar archive and appends to it.
	ModeReadWrite
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Archive is a tar or ar archive opened on a named file or a stream.
type Archive struct {
	cfg      config
	fileName string
	dev      io.ReadSeeker

	// Stream state while open.
	raw      io.ReadSeeker
	seekable bool
	file     afero.File
	saved    *save.File

	format  Format
	h       handler
	mode    Mode
	open    bool
	aborted bool

	// Write in progress.
	writing  bool
	declared int64
	written  int64

	root *Directory
}

// Open opens the archive file name in mode. The format is taken from
// WithFormat, WithMimeType, the file extension or, when reading, the
// content.
func Open(name string, mode Mode, opts ...Option) (*Archive, error) {
	a := &Archive{cfg: newConfig(opts), fileName: name}
	if err := a.Open(mode); err != nil {
		return nil, err
	}
	return a, nil
}

// New returns an unopened Archive over dev. dev is not closed by the
// Archive. Writing requires dev to implement io.Writer as well; the
// archive occupies dev from offset 0.
func New(dev io.ReadSeeker, format Format, opts ...Option) *Archive {
	cfg := newConfig(opts)
	if format != FormatUnknown {
		cfg.format = format
	}
	return &Archive{cfg: cfg, dev: dev}
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.cfg.logger
}

// FileName returns the name the archive was opened with, or "" for
// stream-backed archives.
func (a *Archive) FileName() string {
	return a.fileName
}

// IsOpen reports whether the archive is open.
func (a *Archive) IsOpen() bool {
	return a.open
}

// Mode returns the mode the archive is open in.
func (a *Archive) Mode() Mode {
	return a.mode
}

// Format returns the format chosen when the archive was opened.
func (a *Archive) Format() Format {
	return a.format
}

// Directory returns the root of the entry tree.
func (a *Archive) Directory() (*Directory, error) {
	if !a.open {
		return nil, ErrNotOpen
	}
	return a.rootDir(), nil
}

// rootDir returns the root directory, creating it on first use.
func (a *Archive) rootDir() *Directory {
	if a.root == nil {
		user, group := platform.CurrentOwner()
		a.root = newDirectory(a, "/", 0o777, time.Now().Truncate(time.Second), user, group)
	}
	return a.root
}

// Open opens the archive in mode. Read modes parse the whole entry tree.
func (a *Archive) Open(mode Mode) error {
	if a.open {
		return ErrAlreadyOpen
	}
	if mode < ModeRead || mode > ModeReadWrite {
		return formatErrorf("unsupported open mode %d", int(mode))
	}

	if err := a.openStream(mode); err != nil {
		return err
	}
	if err := a.selectHandler(mode); err != nil {
		_ = a.releaseStream(false) //nolint:errcheck // already failing
		return err
	}

	a.mode = mode
	a.aborted = false
	a.writing = false
	a.root = nil
	if err := a.h.createDevice(mode); err != nil {
		_ = a.releaseStream(false) //nolint:errcheck // already failing
		a.h = nil
		return err
	}
	if err := a.h.openArchive(mode); err != nil {
		// Release without finalising anything.
		a.aborted = true
		_ = a.h.closeArchive()     //nolint:errcheck // already failing
		_ = a.releaseStream(false) //nolint:errcheck // already failing
		a.h = nil
		a.root = nil
		a.aborted = false
		return err
	}

	a.open = true
	a.log().Info("archive opened", "name", a.fileName, "format", a.format.String(), "mode", mode.String())
	return nil
}

// openStream acquires the raw stream for mode.
func (a *Archive) openStream(mode Mode) error {
	if a.fileName == "" {
		if a.dev == nil {
			return fmt.Errorf("%w: no file name or device", ErrUnsupported)
		}
		a.raw = a.dev
		_, err := a.raw.Seek(0, io.SeekStart)
		a.seekable = err == nil
		if err != nil && mode != ModeWrite {
			return ioError("seek device", err)
		}
		return nil
	}

	fsys := a.cfg.fs
	switch mode {
	case ModeRead:
		f, err := fsys.Open(a.fileName)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		a.file, a.raw = f, f
	case ModeWrite:
		s, err := save.Create(fsys, a.fileName, 0o644)
		if err != nil {
			return fmt.Errorf("create archive: %w", err)
		}
		a.saved, a.raw = s, s
	case ModeReadWrite:
		f, err := fsys.OpenFile(a.fileName, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		a.file, a.raw = f, f
	}
	a.seekable = true
	return nil
}

// selectHandler picks the format handler and compression filter.
func (a *Archive) selectHandler(mode Mode) error {
	format := a.cfg.format
	f := a.cfg.filter
	if a.cfg.mimeType != "" {
		mf, mfilter := FormatForMimeType(a.cfg.mimeType)
		if format == FormatUnknown {
			format = mf
		}
		if f == nil {
			f = mfilter
		}
	}
	if format == FormatUnknown && a.fileName != "" {
		format = FormatForName(a.fileName)
	}
	if format == FormatTar && f == nil && a.fileName != "" {
		f = filter.ForExtension(a.fileName)
	}
	if mode == ModeRead && (format == FormatUnknown || (format == FormatTar && f == nil)) {
		sf, sfilter, err := sniff(a.raw)
		if err != nil {
			return err
		}
		if format == FormatUnknown {
			format = sf
		}
		if format == FormatTar && f == nil {
			f = sfilter
		}
	}

	switch format {
	case FormatTar:
		if f != nil && a.cfg.skipHeaders {
			f.SetSkipHeaders()
		}
		a.h = newTarHandler(a, f)
	case FormatAr:
		a.h = newArHandler(a)
	default:
		return ErrUnknownFormat
	}
	a.format = format
	return nil
}

// releaseStream commits or discards the save file and closes owned files.
func (a *Archive) releaseStream(commit bool) error {
	var result *multierror.Error
	if a.saved != nil {
		var err error
		if commit {
			err = a.saved.Commit()
		} else {
			err = a.saved.Discard()
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("save archive: %w", err))
		}
		a.saved = nil
	}
	if a.file != nil {
		if err := a.file.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close archive: %w", err))
		}
		a.file = nil
	}
	a.raw = nil
	return result.ErrorOrNil()
}

// abort discards everything written so far. Only Close is allowed
// afterwards.
func (a *Archive) abort(cause error) {
	if a.aborted {
		return
	}
	a.aborted = true
	a.writing = false
	a.log().Warn("archive write aborted", "name", a.fileName, "error", cause)
	if a.saved != nil {
		if err := a.saved.Discard(); err != nil {
			a.log().Debug("discard failed", "error", err)
		}
	}
}

// Abort stops writing. A named archive opened in ModeWrite is discarded
// and any file it would have replaced is kept. Close must still be called
// and returns ErrAborted.
func (a *Archive) Abort() {
	if !a.open || a.mode == ModeRead {
		return
	}
	a.abort(errors.New("aborted by caller"))
}

// Close finalises and closes the archive. A named archive opened for
// writing is committed only if nothing failed. Closing an archive that is
// not open returns ErrNotOpen.
func (a *Archive) Close() error {
	if !a.open {
		return ErrNotOpen
	}

	var result *multierror.Error
	if a.writing && !a.aborted {
		a.abort(errors.New("unfinished write"))
		result = multierror.Append(result, fmt.Errorf("%w: close during unfinished write", ErrAborted))
	} else if a.aborted {
		result = multierror.Append(result, ErrAborted)
	}
	if err := a.h.closeArchive(); err != nil {
		result = multierror.Append(result, err)
	}
	commit := !a.aborted && result.ErrorOrNil() == nil
	if err := a.releaseStream(commit); err != nil {
		result = multierror.Append(result, err)
	}

	a.open = false
	a.h = nil
	a.root = nil
	a.writing = false
	a.log().Info("archive closed", "name", a.fileName, "mode", a.mode.String())
	return result.ErrorOrNil()
}

// readStream returns the stream file content is read from.
func (a *Archive) readStream() (io.ReadSeeker, error) {
	if !a.open {
		return nil, ErrNotOpen
	}
	return a.h.readStream()
}
