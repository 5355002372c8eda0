package filter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

// codec adapts a stream-oriented compression library to the engine.
type codec interface {
	newReader(r io.Reader) (io.Reader, error)
	newWriter(w io.Writer) (io.WriteCloser, error)
}

// event is what the decoder coroutine reports back to the pump.
type event int

const (
	evNeedInput event = iota
	evOutputFull
	evEnd
	evError
)

// decodeChunk is the size of the decoder's staging buffer.
const decodeChunk = 32 << 10

var errStopped = errors.New("filter: decoder stopped")

// engine implements the buffer-pump half of Filter on top of a codec.
//
// Decompression runs the codec's reader inside an iter.Pull coroutine. The
// reader's source yields evNeedInput whenever the in-buffer is empty, which
// suspends the decoder until the pump supplies more input. Only one side
// runs at a time, so no locking is needed.
//
// Compression writes input straight into the codec's writer; its output
// collects in pending and is drained into the out-buffer.
type engine struct {
	codec codec

	mode        Mode
	initialized bool
	err         error

	in       []byte
	inputEOF bool
	out      []byte
	outPos   int

	// Decompression.
	next func() (event, bool)
	stop func()

	// Compression.
	enc       io.WriteCloser
	pending   bytes.Buffer
	encClosed bool
}

// Init prepares the engine for mode.
func (e *engine) Init(mode Mode) error {
	if mode != ModeRead && mode != ModeWrite {
		return fmt.Errorf("%w: mode %d", ErrUnsupported, mode)
	}
	if e.initialized {
		if err := e.Terminate(); err != nil {
			return err
		}
	}
	e.mode = mode
	e.initialized = true
	e.err = nil
	e.in = nil
	e.inputEOF = false
	e.out = nil
	e.outPos = 0
	return nil
}

// Terminate releases the codec state. The decoder coroutine, if running, is
// unwound so the codec's reader is closed.
func (e *engine) Terminate() error {
	var err error
	if e.stop != nil {
		e.stop()
		e.stop, e.next = nil, nil
	}
	if e.enc != nil {
		if !e.encClosed {
			err = e.enc.Close()
		}
		e.enc = nil
	}
	e.pending.Reset()
	e.encClosed = false
	e.initialized = false
	return err
}

// Reset restarts the codec in the current mode.
func (e *engine) Reset() error {
	mode := e.mode
	if err := e.Terminate(); err != nil {
		return err
	}
	return e.Init(mode)
}

// Mode returns the mode passed to Init.
func (e *engine) Mode() Mode {
	return e.mode
}

// SetInBuffer sets the input consumed by the next Compress or Decompress.
func (e *engine) SetInBuffer(p []byte) {
	e.in = p
}

// SetOutBuffer sets the buffer output is written to.
func (e *engine) SetOutBuffer(p []byte) {
	e.out = p
	e.outPos = 0
}

// InBufferAvailable returns the number of unconsumed input bytes.
func (e *engine) InBufferAvailable() int {
	return len(e.in)
}

// OutBufferAvailable returns the free space left in the out-buffer.
func (e *engine) OutBufferAvailable() int {
	return len(e.out) - e.outPos
}

// SetInputEOF marks the end of the compressed input.
func (e *engine) SetInputEOF() {
	e.inputEOF = true
}

// ReadHeader is a no-op for codecs whose reader validates framing itself.
func (e *engine) ReadHeader() error {
	return nil
}

// WriteHeader is a no-op for codecs without named headers.
func (e *engine) WriteHeader(string) error {
	return nil
}

// SetSkipHeaders is a no-op for codecs without optional framing.
func (e *engine) SetSkipHeaders() {}

// Err returns the error behind the last StatusError.
func (e *engine) Err() error {
	return e.err
}

func (e *engine) fail(err error) Status {
	e.err = err
	return StatusError
}

// Decompress resumes the decoder until it needs input, fills the
// out-buffer, reaches the end of the stream, or fails.
func (e *engine) Decompress() Status {
	if !e.initialized {
		return e.fail(ErrNotOpen)
	}
	if e.mode != ModeRead {
		return e.fail(fmt.Errorf("%w: decompress in %s mode", ErrUnsupported, e.mode))
	}
	if e.next == nil {
		e.next, e.stop = iter.Pull(e.decode)
	}
	ev, ok := e.next()
	if !ok {
		return e.fail(ErrCorrupt)
	}
	switch ev {
	case evNeedInput, evOutputFull:
		return StatusOK
	case evEnd:
		return StatusEnd
	default:
		return StatusError
	}
}

// decode is the decoder coroutine body.
func (e *engine) decode(yield func(event) bool) {
	src := &feedReader{e: e, yield: yield}
	r, err := e.codec.newReader(src)
	if src.stopped {
		return
	}
	if err != nil {
		if errors.Is(err, io.EOF) && src.total == 0 {
			// Empty input is an empty stream.
			for yield(evEnd) {
			}
			return
		}
		e.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
		for yield(evError) {
		}
		return
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close() //nolint:errcheck // read side close only releases resources
	}

	buf := make([]byte, decodeChunk)
	for {
		n, err := r.Read(buf)
		if src.stopped {
			return
		}
		if !e.emit(buf[:n], yield) {
			return
		}
		if err == io.EOF {
			for yield(evEnd) {
			}
			return
		}
		if err != nil {
			e.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
			for yield(evError) {
			}
			return
		}
	}
}

// emit copies decoded bytes into the out-buffer, suspending whenever it is
// full. The out-buffer may be replaced while suspended.
func (e *engine) emit(b []byte, yield func(event) bool) bool {
	for len(b) > 0 {
		if e.outPos >= len(e.out) {
			if !yield(evOutputFull) {
				return false
			}
			continue
		}
		n := copy(e.out[e.outPos:], b)
		e.outPos += n
		b = b[n:]
	}
	return true
}

// feedReader is the decoder's source. It hands out the in-buffer and
// suspends the coroutine when the buffer is empty.
type feedReader struct {
	e       *engine
	yield   func(event) bool
	stopped bool
	total   int64
}

func (f *feedReader) Read(p []byte) (int, error) {
	if f.stopped {
		return 0, errStopped
	}
	for len(f.e.in) == 0 {
		if f.e.inputEOF {
			return 0, io.EOF
		}
		if !f.yield(evNeedInput) {
			f.stopped = true
			return 0, errStopped
		}
	}
	n := copy(p, f.e.in)
	f.e.in = f.e.in[n:]
	f.total += int64(n)
	return n, nil
}

// Compress feeds the in-buffer to the encoder and drains encoded output.
// With finish set the encoder is flushed and closed; StatusEnd is returned
// once all of its output has been drained.
func (e *engine) Compress(finish bool) Status {
	if !e.initialized {
		return e.fail(ErrNotOpen)
	}
	if e.mode != ModeWrite {
		return e.fail(fmt.Errorf("%w: compress in %s mode", ErrUnsupported, e.mode))
	}
	if e.enc == nil && !e.encClosed {
		w, err := e.codec.newWriter(&e.pending)
		if err != nil {
			return e.fail(err)
		}
		e.enc = w
	}

	if len(e.in) > 0 {
		if e.encClosed {
			return e.fail(fmt.Errorf("%w: input after finish", ErrUnsupported))
		}
		if _, err := e.enc.Write(e.in); err != nil {
			return e.fail(err)
		}
		e.in = nil
	}
	if finish && !e.encClosed {
		e.encClosed = true
		if err := e.enc.Close(); err != nil {
			return e.fail(err)
		}
	}

	n := copy(e.out[e.outPos:], e.pending.Bytes())
	e.pending.Next(n)
	e.outPos += n

	if e.encClosed && e.pending.Len() == 0 {
		return StatusEnd
	}
	return StatusOK
}
