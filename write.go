package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/meigma/archive/internal/platform"
)

// copyChunkSize bounds the buffer AddLocalFile streams content through.
const copyChunkSize = 1 << 20

// Default permissions applied when Attrs.Mode is zero.
const (
	defaultFileMode    fs.FileMode = 0o644
	defaultDirMode     fs.FileMode = 0o755
	defaultSymlinkMode fs.FileMode = 0o777
)

// withDefaults fills in the zero fields of attrs.
func (attrs Attrs) withDefaults(mode fs.FileMode) Attrs {
	if attrs.User == "" || attrs.Group == "" {
		user, group := platform.CurrentOwner()
		if attrs.User == "" {
			attrs.User = user
		}
		if attrs.Group == "" {
			attrs.Group = group
		}
	}
	if attrs.Mode == 0 {
		attrs.Mode = mode
	}
	now := time.Now().Truncate(time.Second)
	if attrs.MTime.IsZero() {
		attrs.MTime = now
	}
	if attrs.ATime.IsZero() {
		attrs.ATime = attrs.MTime
	}
	if attrs.CTime.IsZero() {
		attrs.CTime = attrs.MTime
	}
	attrs.MTime = attrs.MTime.Truncate(time.Second)
	return attrs
}

// checkWritable reports whether a new entry may be written.
func (a *Archive) checkWritable() error {
	if !a.open {
		return ErrNotOpen
	}
	if a.aborted {
		return ErrAborted
	}
	if a.mode != ModeWrite && a.mode != ModeReadWrite {
		return fmt.Errorf("%w: archive is open for %s", ErrWrongMode, a.mode)
	}
	if a.writing {
		return ErrWriteInProgress
	}
	return nil
}

// entryName normalises name for writing. The root itself cannot be
// written.
func entryName(op, name string) (string, error) {
	p := NormalizePath(name)
	if p == "." {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return p, nil
}

// fail aborts the archive unless err only reports an unsupported
// operation, which leaves the stream untouched.
func (a *Archive) fail(err error) error {
	if err == nil || errors.Is(err, ErrUnsupported) {
		return err
	}
	a.abort(err)
	return err
}

// WriteDir adds a directory entry.
func (a *Archive) WriteDir(name string, attrs Attrs) error {
	if err := a.checkWritable(); err != nil {
		return err
	}
	p, err := entryName("writedir", name)
	if err != nil {
		return err
	}
	return a.fail(a.h.writeDir(p, attrs.withDefaults(defaultDirMode)))
}

// WriteSymLink adds a symbolic link pointing at target.
func (a *Archive) WriteSymLink(name, target string, attrs Attrs) error {
	if err := a.checkWritable(); err != nil {
		return err
	}
	p, err := entryName("writesymlink", name)
	if err != nil {
		return err
	}
	return a.fail(a.h.writeSymLink(p, target, attrs.withDefaults(defaultSymlinkMode)))
}

// WriteFile adds a file with content data.
func (a *Archive) WriteFile(name string, data []byte, attrs Attrs) error {
	if err := a.PrepareWriting(name, int64(len(data)), attrs); err != nil {
		return err
	}
	if _, err := a.WriteData(data); err != nil {
		return err
	}
	return a.FinishWriting(int64(len(data)))
}

// PrepareWriting starts a file entry of size bytes. The content follows
// through WriteData and the entry is completed by FinishWriting.
func (a *Archive) PrepareWriting(name string, size int64, attrs Attrs) error {
	if err := a.checkWritable(); err != nil {
		return err
	}
	p, err := entryName("preparewriting", name)
	if err != nil {
		return err
	}
	if size < 0 {
		return &fs.PathError{Op: "preparewriting", Path: name, Err: fs.ErrInvalid}
	}
	if err := a.fail(a.h.prepareWriting(p, attrs.withDefaults(defaultFileMode), size)); err != nil {
		return err
	}
	a.writing = true
	a.declared = size
	a.written = 0
	return nil
}

// WriteData appends content to the entry started by PrepareWriting. A
// short write aborts the archive.
func (a *Archive) WriteData(p []byte) (int, error) {
	if !a.open {
		return 0, ErrNotOpen
	}
	if a.aborted {
		return 0, ErrAborted
	}
	if !a.writing {
		return 0, ErrNoWriteInProgress
	}
	if int64(len(p)) > a.declared-a.written {
		err := formatErrorf("write of %d bytes exceeds declared size %d", a.written+int64(len(p)), a.declared)
		a.abort(err)
		return 0, err
	}
	n, err := a.h.writeData(p)
	a.written += int64(n)
	if err == nil && n < len(p) {
		err = ioError("write", io.ErrShortWrite)
	}
	if err != nil {
		a.abort(err)
		return n, err
	}
	return n, nil
}

// FinishWriting completes the current entry. size must equal the declared
// size and the number of bytes written; otherwise the archive is aborted.
func (a *Archive) FinishWriting(size int64) error {
	if !a.open {
		return ErrNotOpen
	}
	if a.aborted {
		return ErrAborted
	}
	if !a.writing {
		return ErrNoWriteInProgress
	}
	if size != a.written || size != a.declared {
		err := formatErrorf("entry size %d does not match declared %d and written %d", size, a.declared, a.written)
		a.abort(err)
		return err
	}
	a.writing = false
	if err := a.h.finishWriting(size); err != nil {
		a.abort(err)
		return err
	}
	return nil
}

// localAttrs returns the archive metadata of a local file.
func localAttrs(info fs.FileInfo) Attrs {
	user, group := platform.FileOwner(info)
	mode := info.Mode()
	return Attrs{
		User:  user,
		Group: group,
		Mode:  mode.Perm() | mode&(fs.ModeSetuid|fs.ModeSetgid|fs.ModeSticky),
		MTime: info.ModTime(),
	}
}

// lstat stats name without following a final symlink when the file
// system allows it.
func (a *Archive) lstat(name string) (fs.FileInfo, error) {
	if l, ok := a.cfg.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(name)
		return info, err
	}
	return a.cfg.fs.Stat(name)
}

// AddLocalFile adds the local file at name as destName. Symlinks are
// stored as links and directories as empty directory entries.
func (a *Archive) AddLocalFile(name, destName string) error {
	if err := a.checkWritable(); err != nil {
		return err
	}
	info, err := a.lstat(name)
	if err != nil {
		return err
	}
	attrs := localAttrs(info)

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		r, ok := a.cfg.fs.(afero.LinkReader)
		if !ok {
			return &fs.PathError{Op: "readlink", Path: name, Err: afero.ErrNoReadlink}
		}
		target, err := r.ReadlinkIfPossible(name)
		if err != nil {
			return err
		}
		return a.WriteSymLink(destName, target, attrs)
	case info.IsDir():
		return a.WriteDir(destName, attrs)
	case !info.Mode().IsRegular():
		a.log().Warn("skipping special file", "path", name, "mode", info.Mode().String())
		return nil
	}

	f, err := a.cfg.fs.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	size := info.Size()
	if err := a.PrepareWriting(destName, size, attrs); err != nil {
		return err
	}
	buf := make([]byte, min(size, copyChunkSize))
	var done int64
	for done < size {
		chunk := buf[:min(size-done, int64(len(buf)))]
		if _, err := io.ReadFull(f, chunk); err != nil {
			err = ioError("read "+name, err)
			a.abort(err)
			return err
		}
		if _, err := a.WriteData(chunk); err != nil {
			return err
		}
		done += int64(len(chunk))
	}
	return a.FinishWriting(size)
}

// AddLocalDirectory adds the local directory dir and everything below it
// under destName. An empty destName adds the contents to the root.
func (a *Archive) AddLocalDirectory(dir, destName string) error {
	if err := a.checkWritable(); err != nil {
		return err
	}
	info, err := a.lstat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "addlocaldirectory", Path: dir, Err: errors.New("not a directory")}
	}
	if NormalizePath(destName) != "." {
		if err := a.WriteDir(destName, localAttrs(info)); err != nil {
			return err
		}
	}

	children, err := afero.ReadDir(a.cfg.fs, dir)
	if err != nil {
		return err
	}
	for _, child := range children {
		src := filepath.Join(dir, child.Name())
		dest := path.Join(NormalizePath(destName), child.Name())
		if child.IsDir() && child.Mode()&fs.ModeSymlink == 0 {
			err = a.AddLocalDirectory(src, dest)
		} else {
			err = a.AddLocalFile(src, dest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
