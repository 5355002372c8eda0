package filter

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type codecCase struct {
	name string
	new  func() Filter
}

var codecs = []codecCase{
	{"gzip", func() Filter { return NewGzip() }},
	{"bzip2", func() Filter { return NewBzip2() }},
	{"xz", func() Filter { return NewXZ() }},
	{"lzma", func() Filter { return NewLZMA() }},
	{"zstd", func() Filter { return NewZstd() }},
	{"lz4", func() Filter { return NewLZ4() }},
}

// payload returns n bytes of compressible but non-trivial data.
func payload(n int) []byte {
	r := rand.New(rand.NewPCG(1, uint64(n)))
	words := []string{"archive ", "header ", "block ", "stream ", "filter ", "\n", "0123456789"}
	var buf bytes.Buffer
	for buf.Len() < n {
		if r.IntN(8) == 0 {
			buf.WriteByte(byte(r.IntN(256)))
			continue
		}
		buf.WriteString(words[r.IntN(len(words))])
	}
	return buf.Bytes()[:n]
}

// pumpCompress drives a filter by hand with an out-buffer of outChunk bytes.
func pumpCompress(t *testing.T, f Filter, data []byte, outChunk int) []byte {
	t.Helper()
	require.NoError(t, f.Init(ModeWrite))
	defer func() { require.NoError(t, f.Terminate()) }()

	out := make([]byte, outChunk)
	var res []byte
	f.SetInBuffer(data)
	f.SetOutBuffer(out)
	for {
		status := f.Compress(true)
		require.NotEqual(t, StatusError, status, "compress: %v", f.Err())
		res = append(res, out[:len(out)-f.OutBufferAvailable()]...)
		f.SetOutBuffer(out)
		if status == StatusEnd {
			return res
		}
	}
}

// pumpDecompress feeds data in inChunk pieces into an out-buffer of
// outChunk bytes.
func pumpDecompress(t *testing.T, f Filter, data []byte, inChunk, outChunk int) []byte {
	t.Helper()
	require.NoError(t, f.Init(ModeRead))
	defer func() { require.NoError(t, f.Terminate()) }()

	out := make([]byte, outChunk)
	var res []byte
	for {
		if f.InBufferAvailable() == 0 {
			if len(data) == 0 {
				f.SetInputEOF()
			} else {
				n := min(inChunk, len(data))
				f.SetInBuffer(data[:n])
				data = data[n:]
			}
		}
		f.SetOutBuffer(out)
		status := f.Decompress()
		require.NotEqual(t, StatusError, status, "decompress: %v", f.Err())
		res = append(res, out[:len(out)-f.OutBufferAvailable()]...)
		if status == StatusEnd {
			return res
		}
	}
}

func TestFilter_PumpRoundTrip(t *testing.T) {
	t.Parallel()

	inputs := map[string][]byte{
		"empty":  {},
		"single": {'x'},
		"small":  payload(3000),
	}
	for _, c := range codecs {
		for name, data := range inputs {
			t.Run(c.name+"/"+name, func(t *testing.T) {
				t.Parallel()
				compressed := pumpCompress(t, c.new(), data, 7)
				got := pumpDecompress(t, c.new(), compressed, 5, 11)
				require.Equal(t, len(data), len(got))
				require.True(t, bytes.Equal(data, got))
			})
		}
	}
}

func TestFilter_ModeChecks(t *testing.T) {
	t.Parallel()

	f := NewGzip()
	require.Equal(t, StatusError, f.Decompress())
	require.ErrorIs(t, f.Err(), ErrNotOpen)

	require.ErrorIs(t, f.Init(Mode(42)), ErrUnsupported)

	require.NoError(t, f.Init(ModeWrite))
	require.Equal(t, ModeWrite, f.Mode())
	require.Equal(t, StatusError, f.Decompress())
	require.ErrorIs(t, f.Err(), ErrUnsupported)
	require.NoError(t, f.Terminate())

	require.NoError(t, f.Init(ModeRead))
	require.Equal(t, StatusError, f.Compress(false))
	require.ErrorIs(t, f.Err(), ErrUnsupported)
	require.NoError(t, f.Terminate())
}

func TestFilter_ResetMidStream(t *testing.T) {
	t.Parallel()

	data := payload(200 << 10)
	compressed := pumpCompress(t, NewXZ(), data, 4096)

	f := NewXZ()
	require.NoError(t, f.Init(ModeRead))
	out := make([]byte, 1024)
	f.SetInBuffer(compressed[:len(compressed)/2])
	f.SetOutBuffer(out)
	require.Equal(t, StatusOK, f.Decompress())

	// Reset drops the suspended decoder; a fresh pass decodes everything.
	require.NoError(t, f.Reset())
	require.Equal(t, ModeRead, f.Mode())
	require.NoError(t, f.Terminate())

	got := pumpDecompress(t, f, compressed, 1000, 4096)
	require.True(t, bytes.Equal(data, got))
}

func TestFilter_TerminateReleasesDecoder(t *testing.T) {
	t.Parallel()

	compressed := pumpCompress(t, NewZstd(), payload(64<<10), 1024)
	for range 3 {
		f := NewZstd()
		require.NoError(t, f.Init(ModeRead))
		f.SetInBuffer(compressed[:100])
		f.SetOutBuffer(make([]byte, 16))
		require.Equal(t, StatusOK, f.Decompress())
		require.NoError(t, f.Terminate())
	}
}

func TestGzip_ReadHeaderRejectsBadMagic(t *testing.T) {
	t.Parallel()

	g := NewGzip()
	require.NoError(t, g.Init(ModeRead))
	defer g.Terminate() //nolint:errcheck // test cleanup

	g.SetInBuffer([]byte("plain text"))
	require.ErrorIs(t, g.ReadHeader(), ErrCorrupt)

	g.SetInBuffer([]byte{0x1f, 0x8b, 8})
	require.NoError(t, g.ReadHeader())
}

func TestStatusAndModeStrings(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ok", StatusOK.String())
	require.Equal(t, "end", StatusEnd.String())
	require.Equal(t, "error", StatusError.String())
	require.Equal(t, "read", ModeRead.String())
	require.Equal(t, "write", ModeWrite.String())
	require.Equal(t, "invalid", Mode(0).String())
}
