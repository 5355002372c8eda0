package filter

import (
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// extensions maps file name suffixes to filter constructors. Longer
// suffixes are listed first so ".tar.gz" style names match by their final
// extension.
var extensions = []struct {
	suffix string
	new    func() Filter
}{
	{".tgz", func() Filter { return NewGzip() }},
	{".gz", func() Filter { return NewGzip() }},
	{".tbz2", func() Filter { return NewBzip2() }},
	{".tbz", func() Filter { return NewBzip2() }},
	{".bz2", func() Filter { return NewBzip2() }},
	{".txz", func() Filter { return NewXZ() }},
	{".xz", func() Filter { return NewXZ() }},
	{".tlz", func() Filter { return NewLZMA() }},
	{".lzma", func() Filter { return NewLZMA() }},
	{".tzst", func() Filter { return NewZstd() }},
	{".zst", func() Filter { return NewZstd() }},
	{".tlz4", func() Filter { return NewLZ4() }},
	{".lz4", func() Filter { return NewLZ4() }},
}

// mimeTypes maps declared MIME types to filter constructors.
var mimeTypes = map[string]func() Filter{
	"application/gzip":                   func() Filter { return NewGzip() },
	"application/x-gzip":                 func() Filter { return NewGzip() },
	"application/x-compressed-tar":       func() Filter { return NewGzip() },
	"application/x-bzip2":                func() Filter { return NewBzip2() },
	"application/x-bzip":                 func() Filter { return NewBzip2() },
	"application/x-bzip-compressed-tar":  func() Filter { return NewBzip2() },
	"application/x-bzip2-compressed-tar": func() Filter { return NewBzip2() },
	"application/x-xz":                   func() Filter { return NewXZ() },
	"application/x-xz-compressed-tar":    func() Filter { return NewXZ() },
	"application/x-lzma":                 func() Filter { return NewLZMA() },
	"application/x-lzma-compressed-tar":  func() Filter { return NewLZMA() },
	"application/zstd":                   func() Filter { return NewZstd() },
	"application/x-zstd":                 func() Filter { return NewZstd() },
	"application/x-zstd-compressed-tar":  func() Filter { return NewZstd() },
	"application/x-lz4":                  func() Filter { return NewLZ4() },
	"application/x-lz4-compressed-tar":   func() Filter { return NewLZ4() },
}

// ForExtension returns a new filter for the compression suffix of name, or
// nil if the suffix is not a known compression format.
func ForExtension(name string) Filter {
	lower := strings.ToLower(name)
	for _, e := range extensions {
		if strings.HasSuffix(lower, e.suffix) {
			return e.new()
		}
	}
	return nil
}

// ForMimeType returns a new filter for a declared MIME type, or nil if the
// type is not a known compression format.
func ForMimeType(mime string) Filter {
	mime = strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0]))
	if newFilter, ok := mimeTypes[mime]; ok {
		return newFilter()
	}
	return nil
}

// Detect sniffs the MIME type of the content in r. It returns "" when r is
// empty or unreadable. Only the head of r is consumed.
func Detect(r io.Reader) string {
	if r == nil {
		return ""
	}
	mType, err := mimetype.DetectReader(r)
	if err != nil {
		return ""
	}
	// Drop parameters such as "; charset=utf-8".
	return strings.Split(mType.String(), ";")[0]
}
