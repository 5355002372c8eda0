package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/archive/internal/tarheader"
	"github.com/meigma/archive/internal/testutil"
)

// readTar parses data as an uncompressed tar archive.
func readTar(t *testing.T, data []byte) (*Archive, *Directory, error) {
	t.Helper()
	a := New(bytes.NewReader(data), FormatTar)
	if err := a.Open(ModeRead); err != nil {
		return nil, nil, err
	}
	t.Cleanup(func() {
		if a.IsOpen() {
			_ = a.Close()
		}
	})
	root, err := a.Directory()
	require.NoError(t, err)
	return a, root, nil
}

// stdTar builds an archive with archive/tar.
func stdTar(t *testing.T, write func(tw *tar.Writer)) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	write(tw)
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func addStd(t *testing.T, tw *tar.Writer, hdr *tar.Header, data string) {
	t.Helper()
	if hdr.Typeflag == tar.TypeReg {
		hdr.Size = int64(len(data))
	}
	if hdr.ModTime.IsZero() {
		hdr.ModTime = fixedTime
	}
	require.NoError(t, tw.WriteHeader(hdr))
	if data != "" {
		_, err := io.WriteString(tw, data)
		require.NoError(t, err)
	}
}

// v7Archive builds a pre-POSIX archive with one file whose checksum field
// is rendered with sumFormat.
func v7Archive(t *testing.T, sumFormat string, sumDelta int64) []byte {
	t.Helper()
	block, err := tarheader.Encode(&tarheader.Header{
		Name:     "old.txt",
		Mode:     0o644,
		Size:     5,
		ModTime:  fixedTime.Unix(),
		Typeflag: tarheader.TypeReg,
	})
	require.NoError(t, err)
	clear(block[257:])
	copy(block[148:156], fmt.Sprintf(sumFormat, tarheader.Checksum(block)+sumDelta))

	out := append(block, make([]byte, 512)...)
	copy(out[512:], "hello")
	return append(out, make([]byte, 1024)...)
}

func TestTar_ChecksumFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sumFormat string
		sumDelta  int64
		wantErr   bool
	}{
		{"six digits nul space", "%06o\x00 ", 0, false},
		{"seven digits nul", "%07o\x00", 0, false},
		{"eight digits", "%08o", 0, false},
		{"space padded", "%6o\x00 ", 0, false},
		{"wrong sum", "%06o\x00 ", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, root, err := readTar(t, v7Archive(t, tt.sumFormat, tt.sumDelta))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrFormat)
				return
			}
			require.NoError(t, err)
			f, ok := root.File("old.txt")
			require.True(t, ok)
			data, err := f.Data()
			require.NoError(t, err)
			assert.Equal(t, "hello", string(data))
			assert.Equal(t, "0", f.User(), "no uname falls back to the uid")
		})
	}
}

func TestTar_Truncated(t *testing.T) {
	t.Parallel()

	buf := testutil.NewBuffer(nil)
	a := New(buf, FormatTar)
	require.NoError(t, a.Open(ModeWrite))
	require.NoError(t, a.WriteFile("a", []byte("hello"), Attrs{}))
	require.NoError(t, a.Close())
	full := buf.Bytes()
	require.Len(t, full, 2048)

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"partial header", 300, true},
		{"content past end", 515, true},
		{"missing trailer", 1024, false},
		{"single trailer block", 1536, false},
		{"empty", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := readTar(t, full[:tt.size])
			if tt.wantErr {
				require.ErrorIs(t, err, ErrFormat)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTar_StopsAtFirstZeroBlock(t *testing.T) {
	t.Parallel()

	var data []byte
	for _, name := range []string{"first", "hidden"} {
		block, err := tarheader.Encode(&tarheader.Header{Name: name, Mode: 0o644, Typeflag: tarheader.TypeReg})
		require.NoError(t, err)
		data = append(data, block...)
		if name == "first" {
			data = append(data, make([]byte, 512)...)
		}
	}

	_, root, err := readTar(t, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, root.Entries())
}

func TestTar_ReadsStdlibArchive(t *testing.T) {
	t.Parallel()

	paxName := strings.Repeat("p", 120)
	prefixName := strings.Repeat("d", 70) + "/" + strings.Repeat("f", 70)
	data := stdTar(t, func(tw *tar.Writer) {
		addStd(t, tw, &tar.Header{Name: "./", Typeflag: tar.TypeDir, Mode: 0o700, Uname: "bob", Gname: "staff"}, "")
		addStd(t, tw, &tar.Header{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0o755}, "")
		addStd(t, tw, &tar.Header{Name: "dir/file.txt", Typeflag: tar.TypeReg, Mode: 0o644, Uname: "bob", Gname: "staff"}, "content")
		addStd(t, tw, &tar.Header{Name: "dir/sym", Typeflag: tar.TypeSymlink, Linkname: "file.txt", Mode: 0o777}, "")
		addStd(t, tw, &tar.Header{Name: "hard", Typeflag: tar.TypeLink, Linkname: "./dir/file.txt", Mode: 0o644}, "")
		addStd(t, tw, &tar.Header{Name: paxName, Typeflag: tar.TypeReg, Mode: 0o600}, "pax")
		addStd(t, tw, &tar.Header{Name: prefixName, Typeflag: tar.TypeReg, Mode: 0o600}, "prefix")
		addStd(t, tw, &tar.Header{Name: "../../escape.txt", Typeflag: tar.TypeReg, Mode: 0o600}, "x")
		addStd(t, tw, &tar.Header{Name: "implicit/parent/f", Typeflag: tar.TypeReg, Mode: 0o600}, "y")
	})

	_, root, err := readTar(t, data)
	require.NoError(t, err)

	assert.Equal(t, "bob", root.User(), "./ sets root metadata")
	assert.Equal(t, fs.ModeDir|0o700, root.Mode())

	snap := snapshot(t, root)
	assert.Equal(t, node{Mode: 0o644, User: "bob", Group: "staff", MTime: fixedTime.Unix(), Data: "content"}, snap["dir/file.txt"])
	assert.Equal(t, fs.ModeSymlink|0o777, snap["dir/sym"].Mode)
	assert.Equal(t, "file.txt", snap["dir/sym"].Target)
	assert.Equal(t, "dir/file.txt", snap["hard"].Target, "hard link target is an archive path")
	assert.Empty(t, snap["hard"].Data)
	assert.Equal(t, "pax", snap[paxName].Data)
	assert.Equal(t, "prefix", snap[prefixName].Data)
	assert.Equal(t, "x", snap["escape.txt"].Data, ".. cannot climb out of the root")
	assert.Equal(t, "y", snap["implicit/parent/f"].Data)

	// Synthesised parents inherit the root's metadata.
	implicit, ok := root.Entry("implicit")
	require.True(t, ok)
	assert.Equal(t, root.Mode(), implicit.Mode())
	assert.Equal(t, root.User(), implicit.User())
}

func TestTar_ReadByStdlib(t *testing.T) {
	t.Parallel()

	longName := strings.Repeat("l", 40) + "/" + strings.Repeat("n", 109)
	longTarget := strings.Repeat("t", 130)

	buf := testutil.NewBuffer(nil)
	a := New(buf, FormatTar)
	require.NoError(t, a.Open(ModeWrite))
	require.NoError(t, a.WriteDir("dir", testAttrs(0o755)))
	require.NoError(t, a.WriteFile("dir/file.txt", []byte("content"), testAttrs(0o640)))
	require.NoError(t, a.WriteFile(longName, []byte("long"), testAttrs(0o644)))
	require.NoError(t, a.WriteSymLink("link", longTarget, testAttrs(0o777)))
	require.NoError(t, a.Close())

	type entry struct {
		typeflag byte
		mode     int64
		linkname string
		data     string
	}
	got := make(map[string]entry)
	tr := tar.NewReader(bytes.NewReader(buf.Bytes()))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		assert.Equal(t, "alice", hdr.Uname)
		assert.Equal(t, "users", hdr.Gname)
		assert.True(t, hdr.ModTime.Equal(fixedTime), hdr.Name)
		got[hdr.Name] = entry{hdr.Typeflag, hdr.Mode, hdr.Linkname, string(data)}
	}

	assert.Equal(t, map[string]entry{
		"dir/":         {tar.TypeDir, 0o755, "", ""},
		"dir/file.txt": {tar.TypeReg, 0o640, "", "content"},
		longName:       {tar.TypeReg, 0o644, "", "long"},
		"link":         {tar.TypeSymlink, 0o777, longTarget, ""},
	}, got)
}

func TestTar_LargeIDsAndOldTimes(t *testing.T) {
	t.Parallel()

	before1970 := time.Unix(-193456000, 0)

	buf := testutil.NewBuffer(nil)
	a := New(buf, FormatTar)
	require.NoError(t, a.Open(ModeWrite))
	require.NoError(t, a.WriteFile("x.txt", []byte("hi"), Attrs{User: "1542001104", Group: "1542000513", Mode: 0o644, MTime: fixedTime}))
	require.NoError(t, a.WriteFile("old.txt", []byte("then"), Attrs{User: "alice", Group: "users", Mode: 0o644, MTime: before1970}))
	require.NoError(t, a.Close())

	_, root, err := readTar(t, buf.Bytes())
	require.NoError(t, err)
	snap := snapshot(t, root)
	assert.Equal(t, node{Mode: 0o644, User: "1542001104", Group: "1542000513", MTime: fixedTime.Unix(), Data: "hi"}, snap["x.txt"])
	assert.Equal(t, before1970.Unix(), snap["old.txt"].MTime)

	tr := tar.NewReader(bytes.NewReader(buf.Bytes()))
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, 1542001104, hdr.Uid)
	assert.Equal(t, 1542000513, hdr.Gid)
	hdr, err = tr.Next()
	require.NoError(t, err)
	assert.True(t, hdr.ModTime.Equal(before1970), hdr.ModTime)
}

func TestTar_DirectoryWrittenOnce(t *testing.T) {
	t.Parallel()

	buf := testutil.NewBuffer(nil)
	a := New(buf, FormatTar)
	require.NoError(t, a.Open(ModeWrite))
	require.NoError(t, a.WriteDir("d", Attrs{}))
	require.NoError(t, a.WriteDir("/d/", Attrs{}))
	require.NoError(t, a.Close())
	assert.Len(t, buf.Bytes(), 512+1024)
}

func TestTar_ReadOnlyDevice(t *testing.T) {
	t.Parallel()

	a := New(testutil.ReadOnly{R: bytes.NewReader(nil)}, FormatTar)
	require.ErrorIs(t, a.Open(ModeWrite), ErrUnsupported)
	assert.False(t, a.IsOpen())
}

func TestOrigFileName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                  "",
		"/x/pkg.tar.gz":     "pkg.tar",
		"pkg.tgz":           "pkg.tar",
		"pkg.tar.bz2":       "pkg.tar",
		"pkg.TZST":          "pkg.tar",
		"notes.txt":         "notes.txt",
		"/deep/a.b.tar.lz4": "a.b.tar",
	}
	for in, want := range tests {
		assert.Equal(t, want, origFileName(in), in)
	}
}

func TestTar_ModTimeSeconds(t *testing.T) {
	t.Parallel()

	buf := testutil.NewBuffer(nil)
	a := New(buf, FormatTar)
	require.NoError(t, a.Open(ModeWrite))
	mtime := fixedTime.Add(750 * time.Millisecond)
	require.NoError(t, a.WriteFile("f", nil, Attrs{MTime: mtime}))
	require.NoError(t, a.Close())

	_, root, err := readTar(t, buf.Bytes())
	require.NoError(t, err)
	f, ok := root.File("f")
	require.True(t, ok)
	assert.True(t, f.ModTime().Equal(fixedTime))
}
