package archive

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/archive/internal/testutil"
)

var arMembers = []testutil.ArMember{
	{Name: "hello.o", Data: []byte("hello"), Mode: 0o644, ModTime: 1700000000},
	{Name: "a_very_long_object_name.o", Data: []byte("long member"), Mode: 0o600, ModTime: 1700000001},
	{Name: "empty.o", Mode: 0o644},
}

func readAr(t *testing.T, data []byte) (*Directory, error) {
	t.Helper()
	a := New(bytes.NewReader(data), FormatAr)
	if err := a.Open(ModeRead); err != nil {
		return nil, err
	}
	t.Cleanup(func() { _ = a.Close() })
	return a.Directory()
}

func TestAr_Read(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"gnu", testutil.GNUAr(arMembers...)},
		{"bsd", testutil.BSDAr(arMembers...)},
		{"gnu trailing newline", append(testutil.GNUAr(arMembers...), '\n')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root, err := readAr(t, tt.data)
			require.NoError(t, err)
			assert.Equal(t, []string{"a_very_long_object_name.o", "empty.o", "hello.o"}, root.Entries())

			for _, m := range arMembers {
				f, ok := root.File(m.Name)
				require.True(t, ok, m.Name)
				assert.Equal(t, int64(len(m.Data)), f.Size(), m.Name)
				assert.Equal(t, m.ModTime, f.ModTime().Unix(), m.Name)
				assert.Equal(t, m.Mode, int64(f.Mode().Perm()), m.Name)
				assert.Equal(t, root.User(), f.User())
				data, err := f.Data()
				require.NoError(t, err)
				assert.Equal(t, string(m.Data), string(data), m.Name)
			}
		})
	}
}

func TestAr_Malformed(t *testing.T) {
	t.Parallel()

	valid := testutil.GNUAr(arMembers[0])
	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", []byte("!<arch>x")},
		{"empty", nil},
		{"long name without table", testutil.ArWithHeader("/0", []byte("x"))},
		{"long name past table", append(testutil.GNUAr(arMembers[1]), testutil.ArWithHeader("/999", []byte("x"))[8:]...)},
		{"truncated header", valid[:len(valid)-20]},
		{"member past end", valid[:len(valid)-3]},
		{"bsd name longer than member", testutil.ArWithHeader("#1/10", []byte("abc"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := readAr(t, tt.data)
			require.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestAr_Detection(t *testing.T) {
	t.Parallel()

	data := testutil.GNUAr(arMembers...)
	fsys := afero.NewMemMapFs()
	for _, name := range []string{"/libfoo.a", "/pkg.deb", "/mystery"} {
		require.NoError(t, afero.WriteFile(fsys, name, data, 0o644))
		a, root := openRead(t, fsys, name)
		assert.Equal(t, FormatAr, a.Format(), name)
		assert.Len(t, root.Entries(), len(arMembers), name)
	}
}

func TestAr_ReadOnly(t *testing.T) {
	t.Parallel()

	a := New(testutil.NewBuffer(nil), FormatAr)
	require.ErrorIs(t, a.Open(ModeWrite), ErrUnsupported)
	require.ErrorIs(t, a.Open(ModeReadWrite), ErrUnsupported)
	assert.False(t, a.IsOpen())

	fsys := afero.NewMemMapFs()
	_, err := Open("/lib.a", ModeWrite, WithFs(fsys))
	require.ErrorIs(t, err, ErrUnsupported)
	exists, err := afero.Exists(fsys, "/lib.a")
	require.NoError(t, err)
	assert.False(t, exists)

	h := newArHandler(nil)
	require.ErrorIs(t, h.writeDir("d", Attrs{}), ErrUnsupported)
	require.ErrorIs(t, h.writeSymLink("l", "t", Attrs{}), ErrUnsupported)
	require.ErrorIs(t, h.prepareWriting("f", Attrs{}, 1), ErrUnsupported)
	_, err = h.writeData([]byte("x"))
	require.ErrorIs(t, err, ErrUnsupported)
	require.ErrorIs(t, h.finishWriting(1), ErrUnsupported)
}
