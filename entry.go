package archive

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/meigma/archive/internal/save"
	"github.com/meigma/archive/internal/sizing"
	"github.com/meigma/archive/internal/substream"
)

// SubStream is a read-only view of one file's bytes within the archive
// stream. It shares the archive's stream cursor: do not interleave reads
// from two SubStreams of the same Archive.
type SubStream = substream.Reader

// Entry is a node in an archive's directory tree.
type Entry interface {
	// Name returns the base name of the entry.
	Name() string
	// Mode returns the permission bits plus fs.ModeDir or fs.ModeSymlink.
	Mode() fs.FileMode
	// ModTime returns the modification time, with one second precision.
	ModTime() time.Time
	User() string
	Group() string
	// SymLinkTarget returns the link target of a symlink or hard link.
	SymLinkTarget() string
	IsFile() bool
	IsDirectory() bool
	// Archive returns the archive the entry belongs to.
	Archive() *Archive
}

// entryBase holds the attributes every entry has.
type entryBase struct {
	name    string
	mode    fs.FileMode
	modTime time.Time
	user    string
	group   string
	symlink string
	archive *Archive
}

func (e *entryBase) Name() string          { return e.name }
func (e *entryBase) Mode() fs.FileMode     { return e.mode }
func (e *entryBase) ModTime() time.Time    { return e.modTime }
func (e *entryBase) User() string          { return e.user }
func (e *entryBase) Group() string         { return e.group }
func (e *entryBase) SymLinkTarget() string { return e.symlink }
func (e *entryBase) Archive() *Archive     { return e.archive }

// File is a file, symlink or hard link in the archive. Links have size 0
// and a non-empty SymLinkTarget.
type File struct {
	entryBase
	pos  int64
	size int64
}

var _ Entry = (*File)(nil)

// IsFile reports true.
func (f *File) IsFile() bool { return true }

// IsDirectory reports false.
func (f *File) IsDirectory() bool { return false }

// Position returns the offset of the content in the uncompressed archive
// stream.
func (f *File) Position() int64 { return f.pos }

// Size returns the content length in bytes.
func (f *File) Size() int64 { return f.size }

// Open returns a stream over the file content. The caller owns it.
func (f *File) Open() (*SubStream, error) {
	rs, err := f.archive.readStream()
	if err != nil {
		return nil, err
	}
	sub, err := substream.New(rs, f.pos, f.size)
	if err != nil {
		return nil, ioError("open "+f.name, err)
	}
	return sub, nil
}

// Data reads the whole file content.
func (f *File) Data() ([]byte, error) {
	n, err := sizing.ToInt(f.size, fmt.Errorf("%w: %s is too large to load", ErrUnsupported, f.name))
	if err != nil {
		return nil, err
	}
	sub, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	buf := make([]byte, n)
	if _, err := io.ReadFull(sub, buf); err != nil {
		return nil, ioError("read "+f.name, err)
	}
	return buf, nil
}

// CopyTo writes the file content to dest/Name() on the archive's file
// system. The file replaces any existing one atomically. Symlinks are
// recreated and hard links receive the content of their target.
func (f *File) CopyTo(dest string) error {
	a := f.archive
	if !a.open {
		return ErrNotOpen
	}
	if err := a.cfg.fs.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	target := filepath.Join(dest, f.name)
	switch {
	case f.mode&fs.ModeSymlink != 0:
		return a.symlink(f.symlink, target)
	case f.symlink != "":
		src, err := a.linkSource(f)
		if err != nil {
			return err
		}
		return f.copyTo(target, src)
	}
	return f.copyTo(target, f)
}

// copyTo writes the content of src to target, keeping the permissions of f.
func (f *File) copyTo(target string, src *File) error {
	a := f.archive
	sub, err := src.Open()
	if err != nil {
		return err
	}
	defer sub.Close()

	out, err := save.Create(a.cfg.fs, target, f.mode.Perm())
	if err != nil {
		return &fs.PathError{Op: "extract", Path: target, Err: err}
	}
	if _, err := io.Copy(out, sub); err != nil {
		_ = out.Discard() //nolint:errcheck // already failing
		return ioError("extract "+target, err)
	}
	if err := out.Commit(); err != nil {
		return &fs.PathError{Op: "extract", Path: target, Err: err}
	}
	if !f.modTime.IsZero() {
		if err := a.cfg.fs.Chtimes(target, f.modTime, f.modTime); err != nil {
			a.log().Debug("failed to set file times", "path", target, "error", err)
		}
	}
	return nil
}
