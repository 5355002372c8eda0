package filter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// DefaultBufferSize is the size of a Device's scratch buffer.
const DefaultBufferSize = 8 << 10

// Device exposes a Filter as a byte stream. In ModeRead it decompresses
// from an outer io.Reader; in ModeWrite it compresses into an outer
// io.Writer. Each Device owns its scratch buffer, so devices share no
// state.
type Device struct {
	filter Filter
	r      io.Reader
	w      io.Writer
	owned  io.Closer

	bufSize    int
	closeOuter bool
	logger     *slog.Logger

	mode   Mode
	open   bool
	closed bool
	buf    []byte
	err    error

	// Read state.
	pos        int64
	outerStart int64
	inputEOF   bool
	ended      bool
	headerRead bool

	// Write state.
	headerWritten bool
	origName      string
}

var _ io.ReadWriteSeeker = (*Device)(nil)

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithBufferSize sets the scratch buffer size (default: DefaultBufferSize).
func WithBufferSize(n int) DeviceOption {
	return func(d *Device) {
		if n > 0 {
			d.bufSize = n
		}
	}
}

// WithLogger sets the logger for device lifecycle events.
func WithLogger(logger *slog.Logger) DeviceOption {
	return func(d *Device) {
		d.logger = logger
	}
}

// WithCloseOuter makes Close also close the outer stream, if it is an
// io.Closer.
func WithCloseOuter() DeviceOption {
	return func(d *Device) {
		d.closeOuter = true
	}
}

// WithSkipHeaders disables codec framing on the filter.
func WithSkipHeaders() DeviceOption {
	return func(d *Device) {
		d.filter.SetSkipHeaders()
	}
}

// WithOrigFileName sets the name stored in the compressed header on write.
func WithOrigFileName(name string) DeviceOption {
	return func(d *Device) {
		d.origName = name
	}
}

func newDevice(f Filter, r io.Reader, w io.Writer, opts []DeviceOption) *Device {
	d := &Device{filter: f, r: r, w: w, bufSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.closeOuter {
		switch {
		case r != nil:
			d.owned, _ = r.(io.Closer)
		case w != nil:
			d.owned, _ = w.(io.Closer)
		}
	}
	return d
}

// NewReader returns a Device that decompresses r with f. The Device is open
// in ModeRead.
func NewReader(r io.Reader, f Filter, opts ...DeviceOption) (*Device, error) {
	d := newDevice(f, r, nil, opts)
	if err := d.Open(ModeRead); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWriter returns a Device that compresses into w with f. The Device is
// open in ModeWrite; Close flushes the final block.
func NewWriter(w io.Writer, f Filter, opts ...DeviceOption) (*Device, error) {
	d := newDevice(f, nil, w, opts)
	if err := d.Open(ModeWrite); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenFile opens name on fsys and wraps it in a Device that owns the file.
// When f is nil the filter is chosen by file extension.
func OpenFile(fsys afero.Fs, name string, mode Mode, f Filter, opts ...DeviceOption) (*Device, error) {
	if f == nil {
		f = ForExtension(name)
		if f == nil {
			return nil, &os.PathError{Op: "open", Path: name, Err: fmt.Errorf("%w: no filter for extension", ErrUnsupported)}
		}
	}

	var file afero.File
	var err error
	switch mode {
	case ModeRead:
		file, err = fsys.Open(name)
	case ModeWrite:
		file, err = fsys.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	default:
		return nil, fmt.Errorf("%w: mode %d", ErrUnsupported, mode)
	}
	if err != nil {
		return nil, err
	}

	opts = append(opts, WithCloseOuter())
	var d *Device
	if mode == ModeRead {
		d, err = NewReader(file, f, opts...)
	} else {
		d, err = NewWriter(file, f, opts...)
	}
	if err != nil {
		_ = file.Close() //nolint:errcheck // already failing
		return nil, err
	}
	return d, nil
}

func (d *Device) log() *slog.Logger {
	if d.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.logger
}

// Open initialises the filter for mode. A closed Device may be reopened
// if its outer stream is still usable.
func (d *Device) Open(mode Mode) error {
	if d.open {
		return fmt.Errorf("%w: device already open", ErrUnsupported)
	}
	switch mode {
	case ModeRead:
		if d.r == nil {
			return fmt.Errorf("%w: outer stream is not readable", ErrUnsupported)
		}
	case ModeWrite:
		if d.w == nil {
			return fmt.Errorf("%w: outer stream is not writable", ErrUnsupported)
		}
	default:
		return fmt.Errorf("%w: mode %d", ErrUnsupported, mode)
	}

	if err := d.filter.Init(mode); err != nil {
		return err
	}
	d.mode = mode
	d.buf = make([]byte, d.bufSize)
	d.err = nil
	d.pos = 0
	d.inputEOF = false
	d.ended = false
	d.headerRead = false
	d.headerWritten = false
	if mode == ModeWrite {
		d.filter.SetOutBuffer(d.buf)
	} else if s, ok := d.r.(io.Seeker); ok {
		if off, err := s.Seek(0, io.SeekCurrent); err == nil {
			d.outerStart = off
		}
	}
	d.open = true
	d.closed = false
	d.log().Debug("filter device opened", "mode", mode.String(), "buffer", d.bufSize)
	return nil
}

// SetSkipHeaders disables codec framing. Call it before the first Read or
// Write.
func (d *Device) SetSkipHeaders() {
	d.filter.SetSkipHeaders()
}

// SetOrigFileName sets the name stored in the compressed header on write.
func (d *Device) SetOrigFileName(name string) {
	d.origName = name
}

// OrigFileName returns the file name recorded in the compressed header that
// was read, if the codec stores one.
func (d *Device) OrigFileName() string {
	if n, ok := d.filter.(interface{ OrigFileName() string }); ok {
		return n.OrigFileName()
	}
	return ""
}

// Filter returns the underlying filter.
func (d *Device) Filter() Filter {
	return d.filter
}

func (d *Device) check(mode Mode) error {
	if !d.open {
		if d.closed {
			return ErrClosed
		}
		return ErrNotOpen
	}
	if d.mode != mode {
		return fmt.Errorf("%w: device opened for %s", ErrUnsupported, d.mode)
	}
	return d.err
}

// Read decompresses into p.
func (d *Device) Read(p []byte) (int, error) {
	if err := d.check(ModeRead); err != nil {
		return 0, err
	}
	if d.ended {
		return 0, io.EOF
	}

	produced := 0
pump:
	for produced < len(p) {
		d.filter.SetOutBuffer(p[produced:])

		if d.filter.InBufferAvailable() == 0 && !d.inputEOF {
			n, err := d.r.Read(d.buf)
			if n > 0 {
				d.filter.SetInBuffer(d.buf[:n])
			}
			switch {
			case errors.Is(err, io.EOF):
				d.inputEOF = true
				d.filter.SetInputEOF()
			case err != nil:
				d.err = fmt.Errorf("read compressed stream: %w", err)
				d.pos += int64(produced)
				return produced, d.err
			case n == 0:
				// Not enough data yet.
				break pump
			}
			if !d.headerRead && n > 0 {
				d.headerRead = true
				if err := d.filter.ReadHeader(); err != nil {
					d.err = err
					return produced, err
				}
			}
		}

		before := d.filter.OutBufferAvailable()
		status := d.filter.Decompress()
		produced += before - d.filter.OutBufferAvailable()

		switch status {
		case StatusEnd:
			d.ended = true
			break pump
		case StatusError:
			d.err = d.filter.Err()
			if !errors.Is(d.err, ErrCorrupt) {
				d.err = fmt.Errorf("%w: %w", ErrCorrupt, d.err)
			}
			d.pos += int64(produced)
			return produced, d.err
		}
	}

	d.pos += int64(produced)
	if produced == 0 && d.ended {
		return 0, io.EOF
	}
	return produced, nil
}

// Write compresses p into the outer stream.
func (d *Device) Write(p []byte) (int, error) {
	if err := d.check(ModeWrite); err != nil {
		return 0, err
	}
	if err := d.writeHeader(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	d.filter.SetInBuffer(p)
	if err := d.pump(false); err != nil {
		d.err = err
		return 0, err
	}
	d.pos += int64(len(p))
	return len(p), nil
}

func (d *Device) writeHeader() error {
	if d.headerWritten {
		return nil
	}
	d.headerWritten = true
	return d.filter.WriteHeader(d.origName)
}

// pump runs Compress until the input is drained, flushing the scratch
// buffer to the outer stream whenever it fills. With finish set it runs
// until the codec reports the end of the stream.
func (d *Device) pump(finish bool) error {
	for {
		status := d.filter.Compress(finish)
		if status == StatusError {
			return fmt.Errorf("compress: %w", d.filter.Err())
		}
		full := d.filter.OutBufferAvailable() == 0
		if full || status == StatusEnd {
			if err := d.flush(); err != nil {
				return err
			}
		}
		if status == StatusEnd {
			return nil
		}
		if !finish && !full && d.filter.InBufferAvailable() == 0 {
			return nil
		}
	}
}

// flush writes the filled part of the scratch buffer and re-arms it.
func (d *Device) flush() error {
	n := len(d.buf) - d.filter.OutBufferAvailable()
	if n > 0 {
		w, err := d.w.Write(d.buf[:n])
		if err != nil {
			return fmt.Errorf("write compressed stream: %w", err)
		}
		if w < n {
			return io.ErrShortWrite
		}
	}
	d.filter.SetOutBuffer(d.buf)
	return nil
}

// Seek repositions a read Device. Seeking backwards rewinds the outer
// stream, which must then implement io.Seeker, and decompresses forward
// again. io.SeekEnd is not supported.
func (d *Device) Seek(offset int64, whence int) (int64, error) {
	if err := d.check(ModeRead); err != nil {
		return d.pos, err
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = d.pos + offset
	case io.SeekEnd:
		return d.pos, fmt.Errorf("%w: seek from end of compressed stream", ErrUnsupported)
	default:
		return d.pos, fmt.Errorf("%w: whence %d", ErrUnsupported, whence)
	}
	if target < 0 {
		return d.pos, errors.New("filter: negative position")
	}
	if target == d.pos {
		return d.pos, nil
	}
	if target < d.pos {
		if err := d.rewind(); err != nil {
			return d.pos, err
		}
	}
	if _, err := io.CopyN(io.Discard, d, target-d.pos); err != nil {
		if errors.Is(err, io.EOF) {
			return d.pos, fmt.Errorf("seek to %d: %w", target, io.ErrUnexpectedEOF)
		}
		return d.pos, err
	}
	return d.pos, nil
}

func (d *Device) rewind() error {
	s, ok := d.r.(io.Seeker)
	if !ok {
		return fmt.Errorf("%w: outer stream is not seekable", ErrUnsupported)
	}
	if _, err := s.Seek(d.outerStart, io.SeekStart); err != nil {
		return err
	}
	if err := d.filter.Reset(); err != nil {
		return err
	}
	d.pos = 0
	d.inputEOF = false
	d.ended = false
	d.headerRead = false
	return nil
}

// Close flushes pending output in ModeWrite, terminates the filter, and
// closes the outer stream when the Device owns it. Closing twice returns
// ErrClosed.
func (d *Device) Close() error {
	if !d.open {
		if d.closed {
			return ErrClosed
		}
		return ErrNotOpen
	}
	d.open = false
	d.closed = true

	var result *multierror.Error
	if d.mode == ModeWrite && d.err == nil {
		if err := d.writeHeader(); err != nil {
			result = multierror.Append(result, err)
		} else {
			d.filter.SetInBuffer(nil)
			if err := d.pump(true); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	if err := d.filter.Terminate(); err != nil {
		result = multierror.Append(result, err)
	}
	if d.owned != nil {
		if err := d.owned.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	d.buf = nil
	d.log().Debug("filter device closed", "mode", d.mode.String(), "bytes", d.pos)
	return result.ErrorOrNil()
}
