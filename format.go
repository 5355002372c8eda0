package archive

import (
	"bytes"
	"io"
	"strings"

	"github.com/meigma/archive/filter"
)

// Format identifies an archive format.
type Format int

const (
	// FormatUnknown lets Open pick the format.
	FormatUnknown Format = iota
	// FormatTar is POSIX ustar with GNU long names, optionally compressed.
	FormatTar
	// FormatAr is the Unix ar format (static libraries, Debian packages).
	FormatAr
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatAr:
		return "ar"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format name such as "tar" or "ar" to a Format.
func ParseFormat(name string) (Format, bool) {
	switch strings.ToLower(name) {
	case "tar":
		return FormatTar, true
	case "ar", "deb":
		return FormatAr, true
	}
	return FormatUnknown, false
}

// arSuffixes are file extensions of ar archives.
var arSuffixes = []string{".a", ".ar", ".deb", ".udeb", ".ipk"}

// tarSuffixes are file extensions of tar archives, compressed or not.
var tarSuffixes = []string{
	".tar", ".tgz", ".tbz", ".tbz2", ".txz", ".tlz", ".tzst", ".tlz4",
	".gz", ".bz2", ".xz", ".lzma", ".zst", ".lz4",
}

// FormatForName guesses the format from a file name.
func FormatForName(name string) Format {
	lower := strings.ToLower(name)
	for _, s := range arSuffixes {
		if strings.HasSuffix(lower, s) {
			return FormatAr
		}
	}
	for _, s := range tarSuffixes {
		if strings.HasSuffix(lower, s) {
			return FormatTar
		}
	}
	return FormatUnknown
}

// FormatForMimeType maps a MIME type to a format and, for compressed tar
// types, the filter to use. The filter is nil for uncompressed formats.
func FormatForMimeType(mime string) (Format, filter.Filter) {
	mime = strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0]))
	switch mime {
	case "application/x-tar", "application/x-gtar", "application/x-ustar":
		return FormatTar, nil
	case "application/x-archive", "application/x-unix-archive", "application/vnd.debian.binary-package":
		return FormatAr, nil
	}
	if f := filter.ForMimeType(mime); f != nil {
		return FormatTar, f
	}
	return FormatUnknown, nil
}

// sniffLen is how much of the stream is inspected when guessing formats.
const sniffLen = 3072

// sniff guesses the format and filter from the start of rs and rewinds it.
func sniff(rs io.ReadSeeker) (Format, filter.Filter, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rs, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return FormatUnknown, nil, ioError("sniff", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, nil, ioError("rewind", err)
	}
	head = head[:n]
	if n == 0 {
		return FormatUnknown, nil, nil
	}
	if bytes.HasPrefix(head, []byte("!<arch>\n")) {
		return FormatAr, nil, nil
	}
	format, f := FormatForMimeType(filter.Detect(bytes.NewReader(head)))
	return format, f, nil
}
