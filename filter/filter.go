package filter

import "errors"

var (
	// ErrCorrupt is returned when compressed input cannot be decoded.
	ErrCorrupt = errors.New("filter: corrupt compressed data")
	// ErrClosed is returned by operations on a closed Device.
	ErrClosed = errors.New("filter: device closed")
	// ErrUnsupported is returned for operations a filter or device cannot
	// perform, such as seeking relative to the end of a compressed stream.
	ErrUnsupported = errors.New("filter: unsupported operation")
	// ErrNotOpen is returned when a filter or device is used before it was
	// initialised.
	ErrNotOpen = errors.New("filter: not open")
)

// Mode selects the direction of a filter.
type Mode int

const (
	// ModeRead decompresses.
	ModeRead Mode = iota + 1
	// ModeWrite compresses.
	ModeWrite
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return "invalid"
	}
}

// Status is the result of a Compress or Decompress step.
type Status int

const (
	// StatusOK means progress was made; the caller should supply more input
	// or drain the output buffer and call again.
	StatusOK Status = iota
	// StatusEnd means the stream is complete.
	StatusEnd
	// StatusError means the codec failed; Err reports why.
	StatusError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEnd:
		return "end"
	default:
		return "error"
	}
}

// Filter is a compress/decompress codec driven through caller supplied
// buffers.
//
// Init must be called before any other operation and Terminate releases the
// codec state. A filter may be reused after Terminate by calling Init again.
type Filter interface {
	Init(mode Mode) error
	Terminate() error
	// Reset is Terminate followed by Init with the current mode.
	Reset() error
	Mode() Mode

	SetInBuffer(p []byte)
	SetOutBuffer(p []byte)
	InBufferAvailable() int
	OutBufferAvailable() int
	// SetInputEOF reports that no more input follows the current in-buffer.
	SetInputEOF()

	// ReadHeader validates codec framing at the start of the in-buffer.
	ReadHeader() error
	// WriteHeader records framing metadata such as the original file name.
	// It must be called before the first Compress.
	WriteHeader(name string) error
	// SetSkipHeaders disables codec framing where the codec supports it.
	SetSkipHeaders()

	Compress(finish bool) Status
	Decompress() Status
	// Err returns the error behind the last StatusError.
	Err() error
}

// options configures codec construction.
type options struct {
	level int
}

// DefaultLevel selects each codec's default compression level.
const DefaultLevel = -1

// Option configures a filter.
type Option func(*options)

// WithLevel sets the compression level. The range is codec specific:
// 0-9 for gzip, 1-9 for bzip2, 1-22 for zstd. XZ and LZMA ignore it.
func WithLevel(level int) Option {
	return func(o *options) {
		o.level = level
	}
}

func applyOptions(opts []Option) options {
	o := options{level: DefaultLevel}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
