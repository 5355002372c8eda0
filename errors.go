package archive

import (
	"errors"
	"fmt"
)

// Sentinel errors. Operations wrap them with context; test with errors.Is.
var (
	// ErrFormat is returned for malformed archives: bad magic, bad
	// checksums, unresolvable long names, or entries that extend past the
	// end of the stream. It is also returned for an invalid open mode.
	ErrFormat = errors.New("archive: invalid format")

	// ErrIO is returned when the underlying stream fails or is short.
	ErrIO = errors.New("archive: i/o error")

	// ErrUnsupported is returned for operations the format or stream cannot
	// perform, such as writing an ar archive.
	ErrUnsupported = errors.New("archive: unsupported operation")

	// ErrNotOpen is returned when the archive is not open.
	ErrNotOpen = errors.New("archive: not open")

	// ErrAlreadyOpen is returned by Open on an open archive.
	ErrAlreadyOpen = errors.New("archive: already open")

	// ErrWrongMode is returned when an operation does not match the mode the
	// archive was opened in.
	ErrWrongMode = errors.New("archive: wrong mode")

	// ErrWriteInProgress is returned when a write is started before the
	// previous one was finished.
	ErrWriteInProgress = errors.New("archive: write in progress")

	// ErrNoWriteInProgress is returned by WriteData and FinishWriting
	// without a preceding PrepareWriting.
	ErrNoWriteInProgress = errors.New("archive: no write in progress")

	// ErrAborted is returned once a failed write has discarded the archive.
	// Only Close may be called afterwards.
	ErrAborted = errors.New("archive: aborted")

	// ErrUnknownFormat is returned when no handler matches the archive.
	ErrUnknownFormat = errors.New("archive: unknown format")
)

func formatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

func ioError(op string, err error) error {
	if errors.Is(err, ErrIO) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
