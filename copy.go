package archive

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
)

// extraction is one file scheduled for CopyTo.
type extraction struct {
	target string
	file   *File
	// src supplies the content; it differs from file for hard links.
	src *File
}

// CopyTo extracts the directory's contents into dest on the archive's file
// system. With recursive false only direct children are written and
// subdirectories are created empty.
//
// Files are read in ascending stream offset so the archive is traversed in
// one forward pass. Each file is written atomically.
func (d *Directory) CopyTo(dest string, recursive bool) error {
	a := d.archive
	if !a.open {
		return ErrNotOpen
	}
	fsys := a.cfg.fs
	if err := fsys.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	var files []extraction
	var links []extraction
	if err := d.collect(dest, recursive, 0, &files, &links); err != nil {
		return err
	}

	slices.SortFunc(files, func(x, y extraction) int {
		return cmp.Compare(x.src.pos, y.src.pos)
	})
	for _, e := range files {
		if err := e.file.copyTo(e.target, e.src); err != nil {
			return err
		}
	}
	for _, e := range links {
		if err := a.symlink(e.file.symlink, e.target); err != nil {
			return err
		}
	}
	return nil
}

// collect creates the directories below d and gathers the files and
// symlinks to extract.
func (d *Directory) collect(dest string, recursive bool, depth int, files, links *[]extraction) error {
	if depth > maxTreeDepth {
		return formatErrorf("directory nesting exceeds %d levels", maxTreeDepth)
	}
	a := d.archive
	for _, name := range d.Entries() {
		target := filepath.Join(dest, filepath.FromSlash(name))
		switch e := d.entries[name].(type) {
		case *Directory:
			// Keep extracted directories writable by the owner.
			if err := a.cfg.fs.MkdirAll(target, e.mode.Perm()|0o700); err != nil {
				return err
			}
			if recursive {
				if err := e.collect(target, true, depth+1, files, links); err != nil {
					return err
				}
			}
		case *File:
			switch {
			case e.mode&fs.ModeSymlink != 0:
				*links = append(*links, extraction{target: target, file: e})
			case e.symlink != "":
				src, err := a.linkSource(e)
				if err != nil {
					return err
				}
				*files = append(*files, extraction{target: target, file: e, src: src})
			default:
				*files = append(*files, extraction{target: target, file: e, src: e})
			}
		}
	}
	return nil
}

// symlink creates a symbolic link at target. File systems without symlink
// support skip it with a warning.
func (a *Archive) symlink(oldname, target string) error {
	l, ok := a.cfg.fs.(afero.Linker)
	if !ok {
		a.log().Warn("file system does not support symlinks, skipping", "path", target, "target", oldname)
		return nil
	}
	if err := a.cfg.fs.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", target, err)
	}
	err := l.SymlinkIfPossible(oldname, target)
	if errors.Is(err, afero.ErrNoSymlink) {
		a.log().Warn("file system does not support symlinks, skipping", "path", target, "target", oldname)
		return nil
	}
	return err
}

// linkSource returns the file holding the content of the hard link f.
func (a *Archive) linkSource(f *File) (*File, error) {
	src, ok := a.rootDir().File(f.symlink)
	if !ok || src.symlink != "" {
		return nil, formatErrorf("hard link %s points at missing file %s", f.name, f.symlink)
	}
	return src, nil
}
