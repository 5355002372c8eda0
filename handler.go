package archive

import (
	"io"
	"io/fs"
	"time"
)

// maxTreeDepth bounds directory synthesis in findOrCreate.
const maxTreeDepth = 2500

// Attrs is the metadata written with an entry. Zero values are replaced by
// defaults: the process owner, 0644 for files, 0755 for directories, 0777
// for symlinks, and the current time.
type Attrs struct {
	User  string
	Group string
	Mode  fs.FileMode
	ATime time.Time
	MTime time.Time
	CTime time.Time
}

// handler is a format codec. One is chosen when the archive is opened.
type handler interface {
	// createDevice layers compression or scratch storage over the archive
	// stream as the format needs.
	createDevice(mode Mode) error
	// openArchive parses the tree (read modes) or prepares for appends.
	openArchive(mode Mode) error
	// closeArchive finalises the stream and releases what createDevice
	// acquired. It must release resources even after an abort.
	closeArchive() error
	// readStream returns the uncompressed stream entries are read from.
	readStream() (io.ReadSeeker, error)

	writeDir(name string, attrs Attrs) error
	writeSymLink(name, target string, attrs Attrs) error
	prepareWriting(name string, attrs Attrs, size int64) error
	writeData(p []byte) (int, error)
	finishWriting(size int64) error
}

// findOrCreate returns the directory at p, creating missing parents with
// the root's metadata. An empty file in the way is replaced by a
// directory; any other file in the way is a format error.
func (a *Archive) findOrCreate(p string) (*Directory, error) {
	return a.findOrCreateDepth(NormalizePath(p), 0)
}

func (a *Archive) findOrCreateDepth(p string, depth int) (*Directory, error) {
	if depth > maxTreeDepth {
		return nil, formatErrorf("directory nesting exceeds %d levels", maxTreeDepth)
	}
	root := a.rootDir()
	if p == "." {
		return root, nil
	}

	if e, ok := root.Entry(p); ok {
		if d, ok := e.(*Directory); ok {
			return d, nil
		}
		if f, ok := e.(*File); !ok || f.Size() > 0 {
			return nil, formatErrorf("%s is a file, not a directory", p)
		}
	}

	parentPath, base := splitPath(p)
	parent, err := a.findOrCreateDepth(parentPath, depth+1)
	if err != nil {
		return nil, err
	}
	if existing, ok := parent.entries[base]; ok {
		if d, ok := existing.(*Directory); ok {
			return d, nil
		}
		if f, ok := existing.(*File); ok && f.Size() > 0 {
			return nil, formatErrorf("%s is a file, not a directory", p)
		}
		parent.removeEntry(base)
	}
	d := newDirectory(a, base, root.mode, root.modTime, root.user, root.group)
	parent.addEntry(d)
	return d, nil
}

// insert adds e under the directory dir, creating parents as needed.
func (a *Archive) insert(dir string, e Entry) error {
	parent, err := a.findOrCreate(dir)
	if err != nil {
		return err
	}
	parent.addEntry(e)
	return nil
}

// unixMode converts tar/ar permission bits to an fs.FileMode.
func unixMode(m int64) fs.FileMode {
	mode := fs.FileMode(m & 0o777)
	if m&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if m&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if m&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}

// modeBits converts an fs.FileMode to tar permission bits.
func modeBits(mode fs.FileMode) int64 {
	m := int64(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		m |= 0o4000
	}
	if mode&fs.ModeSetgid != 0 {
		m |= 0o2000
	}
	if mode&fs.ModeSticky != 0 {
		m |= 0o1000
	}
	return m
}
