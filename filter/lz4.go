package filter

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4 is an lz4 frame filter.
type LZ4 struct {
	engine
	level int
}

var _ Filter = (*LZ4)(nil)

// NewLZ4 returns an lz4 filter. Levels 1-9 select the high compression
// mode; the default is the fast mode.
func NewLZ4(opts ...Option) *LZ4 {
	o := applyOptions(opts)
	l := &LZ4{level: o.level}
	l.codec = l
	return l
}

func (l *LZ4) newReader(r io.Reader) (io.Reader, error) {
	return lz4.NewReader(r), nil
}

func (l *LZ4) newWriter(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if l.level > 0 && l.level <= 9 {
		if err := zw.Apply(lz4.CompressionLevelOption(lz4.CompressionLevel(1 << (8 + l.level)))); err != nil {
			return nil, err
		}
	}
	return zw, nil
}
