package filter

import (
	"io"

	"github.com/dsnet/compress/bzip2"
)

// Bzip2 is a bzip2 filter.
type Bzip2 struct {
	engine
	level int
}

var _ Filter = (*Bzip2)(nil)

// NewBzip2 returns a bzip2 filter.
func NewBzip2(opts ...Option) *Bzip2 {
	o := applyOptions(opts)
	b := &Bzip2{level: o.level}
	b.codec = b
	return b
}

func (b *Bzip2) newReader(r io.Reader) (io.Reader, error) {
	return bzip2.NewReader(r, nil)
}

func (b *Bzip2) newWriter(w io.Writer) (io.WriteCloser, error) {
	conf := &bzip2.WriterConfig{}
	if b.level != DefaultLevel {
		conf.Level = b.level
	}
	return bzip2.NewWriter(w, conf)
}
