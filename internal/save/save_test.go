package save

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommit_ReplacesTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "out.tar")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	f, err := Create(afero.NewOsFs(), target, 0o640)
	require.NoError(t, err)
	assert.Equal(t, target, f.Name())

	_, err = f.Write([]byte("new content"))
	require.NoError(t, err)

	// Target is untouched until Commit.
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	require.NoError(t, f.Commit())

	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestDiscard_LeavesNoTrace(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	f, err := Create(fsys, "/work/sub/out.ar", 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("partial"))
	require.NoError(t, err)

	require.NoError(t, f.Discard())
	require.NoError(t, f.Discard(), "second discard is a no-op")

	exists, err := afero.Exists(fsys, "/work/sub/out.ar")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := afero.ReadDir(fsys, "/work/sub")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFinishedFileRejectsUse(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	f, err := Create(fsys, "/a.tar", 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Commit())

	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrFinished)
	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrFinished)
	_, err = f.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, ErrFinished)
	assert.ErrorIs(t, f.Commit(), ErrFinished)
}

func TestReadBack(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	f, err := Create(fsys, "/a.tar", 0o644)
	require.NoError(t, err)
	defer f.Discard() //nolint:errcheck // test cleanup

	_, err = f.Write([]byte("hello world"))
	require.NoError(t, err)
	_, err = f.Seek(6, io.SeekStart)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestCommit_RefusesDirectory(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/dest/x", 0o755))
	f, err := Create(fsys, "/dest/x", 0o644)
	require.NoError(t, err)
	assert.Error(t, f.Commit())
}
