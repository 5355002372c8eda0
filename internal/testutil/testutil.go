// Package testutil provides in-memory devices and archive fixture builders
// for tests.
package testutil

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
)

// Buffer is an in-memory io.ReadWriteSeeker that records the offset of
// every read.
type Buffer struct {
	mu    sync.Mutex
	data  []byte
	pos   int64
	reads []int64
}

// NewBuffer returns a Buffer holding a copy of data, positioned at 0.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: slices.Clone(data)}
}

// Read implements io.Reader.
func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	b.reads = append(b.reads, b.pos)
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

// Write implements io.Writer, growing the buffer as needed.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := b.pos + int64(len(p))
	if end > int64(len(b.data)) {
		b.data = append(b.data, make([]byte, end-int64(len(b.data)))...)
	}
	copy(b.data[b.pos:], p)
	b.pos = end
	return len(p), nil
}

// Seek implements io.Seeker.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = b.pos + offset
	case io.SeekEnd:
		target = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("testutil: invalid whence %d", whence)
	}
	if target < 0 {
		return 0, errors.New("testutil: negative position")
	}
	b.pos = target
	return target, nil
}

// Bytes returns a copy of the content.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.data)
}

// Reads returns the offsets at which reads started.
func (b *Buffer) Reads() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.reads)
}

// ResetReads forgets the recorded read offsets.
func (b *Buffer) ResetReads() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads = nil
}

// ReadOnly hides every method of r except Read and Seek.
type ReadOnly struct {
	R io.ReadSeeker
}

// Read implements io.Reader.
func (r ReadOnly) Read(p []byte) (int, error) { return r.R.Read(p) }

// Seek implements io.Seeker.
func (r ReadOnly) Seek(offset int64, whence int) (int64, error) { return r.R.Seek(offset, whence) }
