package archive

import (
	"io/fs"
	"slices"
	"strings"
	"time"
)

// Directory is a directory in the archive. Child names are unique.
type Directory struct {
	entryBase
	entries map[string]Entry
}

var _ Entry = (*Directory)(nil)

func newDirectory(a *Archive, name string, perm fs.FileMode, modTime time.Time, user, group string) *Directory {
	return &Directory{
		entryBase: entryBase{
			name:    name,
			mode:    perm.Perm() | perm&(fs.ModeSetuid|fs.ModeSetgid|fs.ModeSticky) | fs.ModeDir,
			modTime: modTime,
			user:    user,
			group:   group,
			archive: a,
		},
		entries: make(map[string]Entry),
	}
}

// IsFile reports false.
func (d *Directory) IsFile() bool { return false }

// IsDirectory reports true.
func (d *Directory) IsDirectory() bool { return true }

// Entries returns the names of the direct children, sorted.
func (d *Directory) Entries() []string {
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Entry looks up a descendant by slash-separated path. A leading slash is
// relative to this directory, not the archive root. "", "." and "/" return
// d itself.
func (d *Directory) Entry(p string) (Entry, bool) {
	p = NormalizePath(p)
	if p == "." {
		return d, true
	}

	cur := d
	for {
		head, rest, more := strings.Cut(p, "/")
		e, ok := cur.entries[head]
		if !ok {
			return nil, false
		}
		if !more {
			return e, true
		}
		sub, ok := e.(*Directory)
		if !ok {
			return nil, false
		}
		cur, p = sub, rest
	}
}

// File looks up a descendant file by path.
func (d *Directory) File(p string) (*File, bool) {
	e, ok := d.Entry(p)
	if !ok {
		return nil, false
	}
	f, ok := e.(*File)
	return f, ok
}

// addEntry inserts e. A directory that already exists keeps its children
// and takes the new metadata; any other existing entry is replaced. It
// returns the entry now stored under the name.
func (d *Directory) addEntry(e Entry) Entry {
	name := e.Name()
	if old, ok := d.entries[name].(*Directory); ok {
		if nd, ok := e.(*Directory); ok {
			old.mode = nd.mode
			old.modTime = nd.modTime
			old.user = nd.user
			old.group = nd.group
			return old
		}
	}
	d.entries[name] = e
	return e
}

// removeEntry deletes the child called name.
func (d *Directory) removeEntry(name string) {
	delete(d.entries, name)
}
