// Package substream provides a read-only window over a byte range of a
// seekable stream.
package substream

import (
	"errors"
	"fmt"
	"io"
)

// ErrReadOnly is returned by Write; a sub-stream never modifies its source.
var ErrReadOnly = errors.New("substream: read-only")

// Reader reads the range [start, start+length) of an underlying stream.
//
// The underlying stream's cursor is shared with whoever else reads it, so
// every Read seeks before reading. Interleaving reads from two Readers
// over the same stream is safe only from a single goroutine.
type Reader struct {
	src    io.ReadSeeker
	start  int64
	length int64
	pos    int64
}

// Interface compliance.
var (
	_ io.ReadSeekCloser = (*Reader)(nil)
	_ io.ReaderAt       = (*Reader)(nil)
	_ io.Writer         = (*Reader)(nil)
)

// New creates a Reader over src and seeks src to start.
func New(src io.ReadSeeker, start, length int64) (*Reader, error) {
	if start < 0 || length < 0 {
		return nil, fmt.Errorf("substream: invalid range start=%d length=%d", start, length)
	}
	if _, err := src.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("substream: seek to %d: %w", start, err)
	}
	return &Reader{src: src, start: start, length: length}, nil
}

// Read implements io.Reader. It never returns bytes beyond the window.
func (r *Reader) Read(p []byte) (int, error) {
	remaining := r.length - r.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	if _, err := r.src.Seek(r.start+r.pos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("substream: seek: %w", err)
	}
	n, err := r.src.Read(p)
	r.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	if err == io.EOF && r.pos < r.length {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// ReadAt implements io.ReaderAt relative to the window start.
// It does not move the Reader's own position.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("substream: negative offset %d", off)
	}
	if off >= r.length {
		return 0, io.EOF
	}
	want := len(p)
	if int64(want) > r.length-off {
		p = p[:r.length-off]
	}
	if _, err := r.src.Seek(r.start+off, io.SeekStart); err != nil {
		return 0, fmt.Errorf("substream: seek: %w", err)
	}
	n, err := io.ReadFull(r.src, p)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return n, err
	}
	if n < want {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker. Positions past the end clamp to Size.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		target = r.length + offset
	default:
		return r.pos, fmt.Errorf("substream: invalid whence %d", whence)
	}
	if target < 0 {
		return r.pos, fmt.Errorf("substream: negative position %d", target)
	}
	if target > r.length {
		target = r.length
	}
	r.pos = target
	return r.pos, nil
}

// Write always fails.
func (r *Reader) Write([]byte) (int, error) {
	return 0, ErrReadOnly
}

// Size returns the window length regardless of how much has been read.
func (r *Reader) Size() int64 {
	return r.length
}

// Close implements io.Closer. The underlying stream is not closed.
func (r *Reader) Close() error {
	return nil
}
