package filter

import (
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// gzip magic bytes.
const (
	gzipID1 = 0x1f
	gzipID2 = 0x8b
)

// Gzip is a gzip (RFC 1952) filter. With SetSkipHeaders it reads and writes
// raw deflate data without gzip framing.
type Gzip struct {
	engine
	level       int
	skipHeaders bool
	name        string
	origName    string
}

var _ Filter = (*Gzip)(nil)

// NewGzip returns a gzip filter.
func NewGzip(opts ...Option) *Gzip {
	o := applyOptions(opts)
	g := &Gzip{level: o.level}
	g.codec = g
	return g
}

// SetSkipHeaders switches to raw deflate.
func (g *Gzip) SetSkipHeaders() {
	g.skipHeaders = true
}

// ReadHeader checks the gzip magic at the start of the in-buffer.
func (g *Gzip) ReadHeader() error {
	if g.skipHeaders || len(g.in) < 2 {
		return nil
	}
	if g.in[0] != gzipID1 || g.in[1] != gzipID2 {
		g.err = ErrCorrupt
		return ErrCorrupt
	}
	return nil
}

// WriteHeader records the original file name stored in the gzip header.
func (g *Gzip) WriteHeader(name string) error {
	g.name = name
	return nil
}

// OrigFileName returns the file name recorded in the gzip header that was
// read, if any.
func (g *Gzip) OrigFileName() string {
	return g.origName
}

func (g *Gzip) newReader(r io.Reader) (io.Reader, error) {
	if g.skipHeaders {
		return flate.NewReader(r), nil
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	g.origName = zr.Name
	return zr, nil
}

func (g *Gzip) newWriter(w io.Writer) (io.WriteCloser, error) {
	level := g.level
	if level == DefaultLevel {
		level = gzip.DefaultCompression
	}
	if g.skipHeaders {
		return flate.NewWriter(w, level)
	}
	zw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, err
	}
	zw.Name = g.name
	return zw, nil
}
