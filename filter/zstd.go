package filter

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// Zstd is a zstd filter. The codec runs with a concurrency of one so that
// all work happens on the pumping goroutine.
type Zstd struct {
	engine
	level int
}

var _ Filter = (*Zstd)(nil)

// NewZstd returns a zstd filter.
func NewZstd(opts ...Option) *Zstd {
	o := applyOptions(opts)
	z := &Zstd{level: o.level}
	z.codec = z
	return z
}

func (z *Zstd) newReader(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func (z *Zstd) newWriter(w io.Writer) (io.WriteCloser, error) {
	opts := []zstd.EOption{
		zstd.WithEncoderConcurrency(1),
		zstd.WithZeroFrames(true),
	}
	if z.level != DefaultLevel {
		opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(z.level)))
	}
	return zstd.NewWriter(w, opts...)
}
