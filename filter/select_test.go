package filter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want Filter
	}{
		{name: "a.tar.gz", want: &Gzip{}},
		{name: "a.TGZ", want: &Gzip{}},
		{name: "a.tar.bz2", want: &Bzip2{}},
		{name: "a.tbz", want: &Bzip2{}},
		{name: "a.tbz2", want: &Bzip2{}},
		{name: "a.tar.xz", want: &XZ{}},
		{name: "a.txz", want: &XZ{}},
		{name: "a.tar.lzma", want: &LZMA{}},
		{name: "a.tlz", want: &LZMA{}},
		{name: "a.tar.zst", want: &Zstd{}},
		{name: "a.tzst", want: &Zstd{}},
		{name: "a.tar.lz4", want: &LZ4{}},
		{name: "a.tar", want: nil},
		{name: "lib.a", want: nil},
		{name: "gz", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ForExtension(tt.name)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestForMimeType(t *testing.T) {
	t.Parallel()

	assert.IsType(t, &Gzip{}, ForMimeType("application/x-gzip"))
	assert.IsType(t, &Gzip{}, ForMimeType("application/x-compressed-tar"))
	assert.IsType(t, &Bzip2{}, ForMimeType("application/x-bzip"))
	assert.IsType(t, &XZ{}, ForMimeType("Application/X-XZ; charset=binary"))
	assert.IsType(t, &LZMA{}, ForMimeType("application/x-lzma-compressed-tar"))
	assert.IsType(t, &Zstd{}, ForMimeType("application/zstd"))
	assert.Nil(t, ForMimeType("application/x-tar"))
	assert.Nil(t, ForMimeType(""))
}

func TestDetect(t *testing.T) {
	t.Parallel()

	data := payload(4096)
	tests := []struct {
		name string
		f    func() Filter
		want string
	}{
		{name: "gzip", f: func() Filter { return NewGzip() }, want: "application/gzip"},
		{name: "bzip2", f: func() Filter { return NewBzip2() }, want: "application/x-bzip2"},
		{name: "xz", f: func() Filter { return NewXZ() }, want: "application/x-xz"},
		{name: "zstd", f: func() Filter { return NewZstd() }, want: "application/zstd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			compressed := compressWithDevice(t, tt.f(), data)
			mime := Detect(bytes.NewReader(compressed))
			assert.Equal(t, tt.want, mime)
			assert.IsType(t, tt.f(), ForMimeType(mime))
		})
	}

	assert.Empty(t, Detect(nil))
}
