package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddLocalDirectory(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	big := bytes.Repeat([]byte("chunk"), 600_000)
	require.NoError(t, afero.WriteFile(fsys, "/src/a.txt", []byte("alpha"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/src/sub/b.txt", []byte("beta"), 0o600))
	require.NoError(t, afero.WriteFile(fsys, "/src/sub/big.bin", big, 0o644))
	require.NoError(t, fsys.MkdirAll("/src/empty", 0o755))

	writeArchive(t, fsys, "/out.tar", func(a *Archive) {
		require.NoError(t, a.AddLocalDirectory("/src", "pkg"))
	})

	_, root := openRead(t, fsys, "/out.tar")
	snap := snapshot(t, root)
	assert.Equal(t, "alpha", snap["pkg/a.txt"].Data)
	assert.Equal(t, "beta", snap["pkg/sub/b.txt"].Data)
	assert.Equal(t, string(big), snap["pkg/sub/big.bin"].Data)
	assert.True(t, snap["pkg/empty"].Mode.IsDir())
	assert.True(t, snap["pkg/sub"].Mode.IsDir())
}

func TestAddLocalDirectory_ToRoot(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/src/a.txt", []byte("alpha"), 0o644))

	writeArchive(t, fsys, "/out.tar", func(a *Archive) {
		require.NoError(t, a.AddLocalDirectory("/src", ""))
	})

	_, root := openRead(t, fsys, "/out.tar")
	assert.Equal(t, []string{"a.txt"}, root.Entries())
}

func TestAddLocalFile(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/src/a.txt", []byte("alpha"), 0o644))

	writeArchive(t, fsys, "/out.tar", func(a *Archive) {
		require.NoError(t, a.AddLocalFile("/src/a.txt", "renamed/a.txt"))
		require.ErrorIs(t, a.AddLocalFile("/src/missing", "x"), os.ErrNotExist)
		require.Error(t, a.AddLocalDirectory("/src/a.txt", "x"), "not a directory")
	})

	_, root := openRead(t, fsys, "/out.tar")
	f, ok := root.File("renamed/a.txt")
	require.True(t, ok)
	data, err := f.Data()
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))
}

func TestAddLocalFile_Symlink(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "real.txt"), []byte("real"), 0o644))
	require.NoError(t, os.Symlink("real.txt", filepath.Join(src, "link")))

	out := filepath.Join(t.TempDir(), "out.tar")
	a, err := Open(out, ModeWrite)
	require.NoError(t, err)
	require.NoError(t, a.AddLocalDirectory(src, ""))
	require.NoError(t, a.Close())

	a, err = Open(out, ModeRead)
	require.NoError(t, err)
	defer a.Close()
	root, err := a.Directory()
	require.NoError(t, err)

	link, ok := root.Entry("link")
	require.True(t, ok)
	assert.Equal(t, "real.txt", link.SymLinkTarget())
	assert.NotZero(t, link.Mode()&os.ModeSymlink)

	info, err := os.Lstat(filepath.Join(src, "real.txt"))
	require.NoError(t, err)
	regular, ok := root.File("real.txt")
	require.True(t, ok)
	assert.Equal(t, info.Mode().Perm(), regular.Mode().Perm())
	assert.Equal(t, info.ModTime().Unix(), regular.ModTime().Unix())
}
