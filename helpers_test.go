package archive

import (
	"io/fs"
	"path"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Unix(1700000000, 0)

func testAttrs(mode fs.FileMode) Attrs {
	return Attrs{User: "alice", Group: "users", Mode: mode, MTime: fixedTime}
}

// writeArchive creates name on fsys and runs build against it.
func writeArchive(t *testing.T, fsys afero.Fs, name string, build func(a *Archive)) {
	t.Helper()
	a, err := Open(name, ModeWrite, WithFs(fsys))
	require.NoError(t, err)
	build(a)
	require.NoError(t, a.Close())
}

// openRead opens name for reading and closes it when the test ends.
func openRead(t *testing.T, fsys afero.Fs, name string, opts ...Option) (*Archive, *Directory) {
	t.Helper()
	a, err := Open(name, ModeRead, append([]Option{WithFs(fsys)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if a.IsOpen() {
			_ = a.Close()
		}
	})
	root, err := a.Directory()
	require.NoError(t, err)
	return a, root
}

// node is the comparable form of an entry.
type node struct {
	Mode   fs.FileMode
	User   string
	Group  string
	MTime  int64
	Target string
	Data   string
}

// snapshot flattens the tree below d into path -> node.
func snapshot(t *testing.T, d *Directory) map[string]node {
	t.Helper()
	out := make(map[string]node)
	var walk func(d *Directory, prefix string)
	walk = func(d *Directory, prefix string) {
		for _, name := range d.Entries() {
			e := d.entries[name]
			p := path.Join(prefix, name)
			n := node{
				Mode:   e.Mode(),
				User:   e.User(),
				Group:  e.Group(),
				MTime:  e.ModTime().Unix(),
				Target: e.SymLinkTarget(),
			}
			switch e := e.(type) {
			case *File:
				data, err := e.Data()
				require.NoError(t, err, p)
				n.Data = string(data)
			case *Directory:
				walk(e, p)
			}
			out[p] = n
		}
	}
	walk(d, "")
	return out
}
