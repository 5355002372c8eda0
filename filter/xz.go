package filter

import (
	"io"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// XZ is an xz filter.
type XZ struct {
	engine
}

var _ Filter = (*XZ)(nil)

// NewXZ returns an xz filter.
func NewXZ(_ ...Option) *XZ {
	x := &XZ{}
	x.codec = x
	return x
}

func (x *XZ) newReader(r io.Reader) (io.Reader, error) {
	return xz.NewReader(r)
}

func (x *XZ) newWriter(w io.Writer) (io.WriteCloser, error) {
	return xz.NewWriter(w)
}

// LZMA is a filter for the legacy .lzma container.
type LZMA struct {
	engine
}

var _ Filter = (*LZMA)(nil)

// NewLZMA returns an lzma filter.
func NewLZMA(_ ...Option) *LZMA {
	l := &LZMA{}
	l.codec = l
	return l
}

func (l *LZMA) newReader(r io.Reader) (io.Reader, error) {
	return lzma.NewReader(r)
}

func (l *LZMA) newWriter(w io.Writer) (io.WriteCloser, error) {
	return lzma.NewWriter(w)
}
