// Package arheader decodes the 60-byte member headers of GNU and BSD ar
// archives.
package arheader

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Magic is the global archive signature.
const Magic = "!<arch>\n"

// HeaderSize is the size of a member header.
const HeaderSize = 60

// BSD symbol table names, stored as "#1/NN" long names.
const (
	BSDSymbols       = "__.SYMDEF"
	BSDSymbolsSorted = "__.SYMDEF SORTED"
)

var (
	// ErrMagic is returned when the archive does not start with Magic.
	ErrMagic = errors.New("arheader: invalid archive magic")
	// ErrHeader is returned for a malformed member header.
	ErrHeader = errors.New("arheader: malformed member header")
	// ErrLongName is returned for a long-name reference that does not
	// resolve.
	ErrLongName = errors.New("arheader: invalid long name reference")
)

// Kind classifies a member by its raw name.
type Kind int

// Member kinds.
const (
	KindFile Kind = iota
	// KindLongNames is the GNU "//" long filename table.
	KindLongNames
	// KindSymbols is a symbol table ("/" in GNU, "__.SYMDEF" in BSD).
	KindSymbols
)

// Header is a decoded member header. Name is the raw name field with
// trailing spaces removed; use Resolve to obtain the member's file name.
type Header struct {
	Name    string
	ModTime int64
	UID     int64
	GID     int64
	Mode    int64
	Size    int64
}

// CheckMagic validates the global archive signature.
func CheckMagic(b []byte) error {
	if !bytes.HasPrefix(b, []byte(Magic)) {
		return ErrMagic
	}
	return nil
}

// Parse decodes a member header.
func Parse(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: short header", ErrHeader)
	}
	if b[58] != '`' || b[59] != '\n' {
		return nil, fmt.Errorf("%w: bad terminator", ErrHeader)
	}

	h := &Header{Name: strings.TrimRight(string(b[0:16]), " ")}
	var err error
	if h.ModTime, err = parseField(b[16:28], 10); err != nil {
		return nil, fmt.Errorf("mtime: %w", err)
	}
	if h.UID, err = parseField(b[28:34], 10); err != nil {
		return nil, fmt.Errorf("uid: %w", err)
	}
	if h.GID, err = parseField(b[34:40], 10); err != nil {
		return nil, fmt.Errorf("gid: %w", err)
	}
	if h.Mode, err = parseField(b[40:48], 8); err != nil {
		return nil, fmt.Errorf("mode: %w", err)
	}
	if h.Size, err = parseField(b[48:58], 10); err != nil {
		return nil, fmt.Errorf("size: %w", err)
	}
	return h, nil
}

// Kind reports what the member holds.
func (h *Header) Kind() Kind {
	switch h.Name {
	case "//":
		return KindLongNames
	case "/", "/SYM64/", BSDSymbols, BSDSymbolsSorted:
		return KindSymbols
	}
	return KindFile
}

// BSDNameLen reports the length of a BSD "#1/NN" name stored at the start of
// the member data.
func (h *Header) BSDNameLen() (int, bool) {
	rest, ok := strings.CutPrefix(h.Name, "#1/")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Resolve returns the member's file name, looking "/NNN" references up in
// the long-name table.
func (h *Header) Resolve(table Table) (string, error) {
	if len(h.Name) > 1 && h.Name[0] == '/' {
		return table.Lookup(h.Name[1:])
	}
	// GNU terminates short names with a slash.
	return strings.TrimSuffix(h.Name, "/"), nil
}

// Table is the payload of a GNU "//" long-name table.
type Table []byte

// Lookup resolves the decimal offset ref into the table. Entries end at a
// newline; GNU ar also adds a trailing slash.
func (t Table) Lookup(ref string) (string, error) {
	off, err := strconv.Atoi(strings.TrimSpace(ref))
	if err != nil || off < 0 || off >= len(t) {
		return "", fmt.Errorf("%w: /%s", ErrLongName, ref)
	}
	name := t[off:]
	if i := bytes.IndexByte(name, '\n'); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSuffix(string(name), "/"), nil
}

func parseField(b []byte, base int) (int64, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrHeader, s)
	}
	return v, nil
}
