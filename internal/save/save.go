// Package save writes files atomically: content is staged in a temporary
// file next to the target and renamed into place on Commit.
package save

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrFinished is returned when a File is used after Commit or Discard.
var ErrFinished = errors.New("save: file already committed or discarded")

// File stages writes for target. Exactly one of Commit or Discard takes
// effect; until then target is untouched.
type File struct {
	fsys    afero.Fs
	target  string
	tmpPath string
	perm    os.FileMode
	f       afero.File
	done    bool
}

// Interface compliance.
var _ io.ReadWriteSeeker = (*File)(nil)

// Create stages a new version of target. Parent directories are created as
// needed. perm is applied to the committed file.
func Create(fsys afero.Fs, target string, perm os.FileMode) (*File, error) {
	dir := filepath.Dir(target)
	if err := fsys.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(fsys, dir, "."+filepath.Base(target)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &File{
		fsys:    fsys,
		target:  target,
		tmpPath: tmp.Name(),
		perm:    perm,
		f:       tmp,
	}, nil
}

// Name returns the path the file will be committed to.
func (s *File) Name() string {
	return s.target
}

// Read implements io.Reader over the staged content.
func (s *File) Read(p []byte) (int, error) {
	if s.done {
		return 0, ErrFinished
	}
	return s.f.Read(p)
}

// Write implements io.Writer.
func (s *File) Write(p []byte) (int, error) {
	if s.done {
		return 0, ErrFinished
	}
	return s.f.Write(p)
}

// Seek implements io.Seeker.
func (s *File) Seek(offset int64, whence int) (int64, error) {
	if s.done {
		return 0, ErrFinished
	}
	return s.f.Seek(offset, whence)
}

// Commit flushes the staged content and atomically replaces target.
func (s *File) Commit() error {
	if s.done {
		return ErrFinished
	}
	s.done = true

	if err := s.f.Sync(); err != nil {
		s.cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := s.f.Close(); err != nil {
		_ = s.fsys.Remove(s.tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.fsys.Chmod(s.tmpPath, s.perm); err != nil {
		_ = s.fsys.Remove(s.tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("chmod: %w", err)
	}

	// Refuse to replace a directory with a file.
	if info, err := s.fsys.Stat(s.target); err == nil && info.IsDir() {
		_ = s.fsys.Remove(s.tmpPath) //nolint:errcheck // best-effort cleanup
		return &os.PathError{Op: "commit", Path: s.target, Err: errors.New("is a directory")}
	}
	if err := s.fsys.Rename(s.tmpPath, s.target); err != nil {
		_ = s.fsys.Remove(s.tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", s.target, err)
	}
	return nil
}

// Discard drops the staged content. Discarding a finished File is a no-op.
func (s *File) Discard() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.cleanup()
}

func (s *File) cleanup() error {
	_ = s.f.Close() //nolint:errcheck // we're cleaning up
	if err := s.fsys.Remove(s.tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
