package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/meigma/archive/internal/arheader"
	"github.com/meigma/archive/internal/sizing"
)

var errArReadOnly = fmt.Errorf("%w: ar archives are read-only", ErrUnsupported)

// arHandler reads GNU and BSD ar archives. All members live in the root
// directory.
type arHandler struct {
	a  *Archive
	rs io.ReadSeeker
}

var _ handler = (*arHandler)(nil)

func newArHandler(a *Archive) *arHandler {
	return &arHandler{a: a}
}

func (h *arHandler) createDevice(mode Mode) error {
	if mode != ModeRead {
		return errArReadOnly
	}
	h.rs = h.a.raw
	return nil
}

func (h *arHandler) openArchive(Mode) error {
	return h.readMembers()
}

func (h *arHandler) closeArchive() error {
	h.rs = nil
	return nil
}

func (h *arHandler) readStream() (io.ReadSeeker, error) {
	if h.rs == nil {
		return nil, ErrNotOpen
	}
	return h.rs, nil
}

func (h *arHandler) writeDir(string, Attrs) error              { return errArReadOnly }
func (h *arHandler) writeSymLink(string, string, Attrs) error  { return errArReadOnly }
func (h *arHandler) prepareWriting(string, Attrs, int64) error { return errArReadOnly }
func (h *arHandler) writeData([]byte) (int, error)             { return 0, errArReadOnly }
func (h *arHandler) finishWriting(int64) error                 { return errArReadOnly }

// readMembers walks the member headers and adds every regular member to
// the root directory.
func (h *arHandler) readMembers() error {
	a := h.a
	size, err := h.rs.Seek(0, io.SeekEnd)
	if err != nil {
		return ioError("seek", err)
	}
	if _, err := h.rs.Seek(0, io.SeekStart); err != nil {
		return ioError("seek", err)
	}

	magic := make([]byte, len(arheader.Magic))
	if _, err := io.ReadFull(h.rs, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return formatErrorf("missing ar signature")
		}
		return ioError("read signature", err)
	}
	if err := arheader.CheckMagic(magic); err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}

	root := a.rootDir()
	var table arheader.Table
	buf := make([]byte, arheader.HeaderSize)
	pos := int64(len(arheader.Magic))
	for {
		n, err := io.ReadFull(h.rs, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// Some writers pad the archive with a newline.
			if len(bytes.TrimSpace(buf[:n])) == 0 {
				break
			}
			return formatErrorf("truncated member header at offset %d", pos)
		}
		if err != nil {
			return ioError("read member header", err)
		}

		hdr, err := arheader.Parse(buf)
		if err != nil {
			return fmt.Errorf("%w: member at offset %d: %w", ErrFormat, pos, err)
		}
		dataStart := pos + arheader.HeaderSize
		if err := checkBounds(hdr.Name, dataStart, hdr.Size, size); err != nil {
			return err
		}

		switch hdr.Kind() {
		case arheader.KindLongNames:
			data, err := sizing.ReadAllWithLimit(io.LimitReader(h.rs, hdr.Size), maxMetaSize, errMetaTooLarge)
			if err != nil {
				if errors.Is(err, ErrFormat) {
					return err
				}
				return ioError("read long name table", err)
			}
			table = arheader.Table(data)
		case arheader.KindSymbols:
			a.log().Debug("skipping ar symbol table", "name", hdr.Name, "size", hdr.Size)
		default:
			if err := h.addMember(root, hdr, table, dataStart); err != nil {
				return err
			}
		}

		pos = dataStart + hdr.Size + sizing.Padding(hdr.Size, 2)
		if _, err := h.rs.Seek(pos, io.SeekStart); err != nil {
			return ioError("seek", err)
		}
	}
	return nil
}

// addMember resolves the member name and adds it to root.
func (h *arHandler) addMember(root *Directory, hdr *arheader.Header, table arheader.Table, dataStart int64) error {
	a := h.a
	contentStart, contentSize := dataStart, hdr.Size
	var name string
	if n, ok := hdr.BSDNameLen(); ok {
		if int64(n) > hdr.Size {
			return formatErrorf("bsd member name longer than member %q", hdr.Name)
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(h.rs, raw); err != nil {
			return ioError("read member name", err)
		}
		name = string(bytes.TrimRight(raw, "\x00"))
		contentStart += int64(n)
		contentSize -= int64(n)
		if name == arheader.BSDSymbols || name == arheader.BSDSymbolsSorted {
			a.log().Debug("skipping ar symbol table", "name", name, "size", contentSize)
			return nil
		}
	} else {
		var err error
		if name, err = hdr.Resolve(table); err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
	}

	// Members are flat; keep only the base name.
	name = path.Base(strings.TrimPrefix(path.Clean("/"+name), "/"))
	if name == "." || name == "/" || name == "" {
		return formatErrorf("empty ar member name at offset %d", dataStart-arheader.HeaderSize)
	}

	a.log().Debug("ar member", "name", name, "size", contentSize, "offset", contentStart)
	root.addEntry(&File{
		entryBase: entryBase{
			name:    name,
			mode:    unixMode(hdr.Mode),
			modTime: time.Unix(hdr.ModTime, 0),
			user:    root.user,
			group:   root.group,
			archive: a,
		},
		pos:  contentStart,
		size: contentSize,
	})
	return nil
}
