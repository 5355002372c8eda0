package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/meigma/archive/filter"
	"github.com/meigma/archive/internal/platform"
	"github.com/meigma/archive/internal/sizing"
	"github.com/meigma/archive/internal/tarheader"
)

// maxMetaSize bounds long-name and PAX payloads.
const maxMetaSize = 1 << 20

var errMetaTooLarge = fmt.Errorf("%w: metadata record too large", ErrFormat)

// tarHandler reads and writes ustar archives with GNU long names.
//
// Compressed archives are written through a filter.Device layered over the
// archive stream. They are read by decompressing into a scratch file first
// so the parser and SubStreams can seek freely.
type tarHandler struct {
	a      *Archive
	filter filter.Filter
	mode   Mode

	rs     io.ReadSeeker
	w      io.Writer
	seeker io.Seeker
	fdev   *filter.Device
	tmp    afero.File

	// pos is the write offset in the uncompressed stream.
	pos    int64
	tarEnd int64
	dirs   map[string]bool
	cur    *File
	curDir string

	// appended is set once anything has been written in this session.
	appended bool
}

var _ handler = (*tarHandler)(nil)

func newTarHandler(a *Archive, f filter.Filter) *tarHandler {
	return &tarHandler{a: a, filter: f, dirs: make(map[string]bool)}
}

func (t *tarHandler) createDevice(mode Mode) error {
	t.mode = mode
	raw := t.a.raw
	switch mode {
	case ModeRead:
		if t.filter == nil {
			t.rs = raw
			return nil
		}
		return t.decompressToTemp()

	case ModeWrite:
		w, ok := raw.(io.Writer)
		if !ok {
			return fmt.Errorf("%w: archive stream is not writable", ErrUnsupported)
		}
		if t.filter == nil {
			t.w = w
			t.rs = raw
			if t.a.seekable {
				t.seeker = raw
			}
			return nil
		}
		d, err := filter.NewWriter(w, t.filter,
			filter.WithLogger(t.a.cfg.logger),
			filter.WithOrigFileName(origFileName(t.a.fileName)))
		if err != nil {
			return ioError("create compression device", err)
		}
		t.fdev, t.w = d, d
		return nil

	case ModeReadWrite:
		if t.filter != nil {
			return fmt.Errorf("%w: compressed tar archives cannot be opened read-write", ErrUnsupported)
		}
		w, ok := raw.(io.Writer)
		if !ok {
			return fmt.Errorf("%w: archive stream is not writable", ErrUnsupported)
		}
		t.rs, t.w, t.seeker = raw, w, raw
		return nil
	}
	return formatErrorf("unsupported open mode %d", int(mode))
}

// decompressToTemp expands the compressed stream into a scratch file.
func (t *tarHandler) decompressToTemp() error {
	cfg := t.a.cfg
	tmp, err := afero.TempFile(cfg.fs, cfg.tempDir, "archive-*.tar")
	if err != nil {
		return ioError("create scratch file", err)
	}
	cleanup := func() {
		_ = tmp.Close()               //nolint:errcheck // cleanup
		_ = cfg.fs.Remove(tmp.Name()) //nolint:errcheck // cleanup
	}

	d, err := filter.NewReader(t.a.raw, t.filter, filter.WithLogger(cfg.logger))
	if err != nil {
		cleanup()
		return ioError("create decompression device", err)
	}
	n, err := io.Copy(tmp, d)
	if cerr := d.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		if errors.Is(err, filter.ErrCorrupt) {
			return fmt.Errorf("%w: decompress: %w", ErrFormat, err)
		}
		return ioError("decompress", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return ioError("rewind scratch file", err)
	}
	t.a.log().Debug("decompressed archive to scratch file", "path", tmp.Name(), "bytes", n)
	t.tmp, t.rs = tmp, tmp
	return nil
}

// origFileName derives the name stored in a gzip header from the archive
// file name: "a.tar.gz" and "a.tgz" both yield "a.tar".
func origFileName(name string) string {
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	switch strings.ToLower(ext) {
	case ".tgz", ".tbz", ".tbz2", ".txz", ".tlz", ".tzst", ".tlz4":
		return strings.TrimSuffix(base, ext) + ".tar"
	case ".gz", ".bz2", ".xz", ".lzma", ".zst", ".lz4":
		return strings.TrimSuffix(base, ext)
	}
	return base
}

func (t *tarHandler) readStream() (io.ReadSeeker, error) {
	if t.rs == nil {
		return nil, fmt.Errorf("%w: entries of a compressed archive cannot be read while writing", ErrWrongMode)
	}
	return t.rs, nil
}

func (t *tarHandler) openArchive(mode Mode) error {
	t.appended = false
	if mode == ModeWrite {
		t.pos, t.tarEnd = 0, 0
		return nil
	}
	if err := t.readTree(); err != nil {
		return err
	}
	t.pos = t.tarEnd
	return nil
}

// readTree parses every header. The listing ends at the first block that
// starts with a zero byte; its offset is where appends go.
func (t *tarHandler) readTree() error {
	size, err := t.rs.Seek(0, io.SeekEnd)
	if err != nil {
		return ioError("seek", err)
	}
	if _, err := t.rs.Seek(0, io.SeekStart); err != nil {
		return ioError("seek", err)
	}

	block := make([]byte, tarheader.BlockSize)
	var pos int64
	var longName, longLink string
	var pax map[string]string
	for {
		_, err := io.ReadFull(t.rs, block)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return formatErrorf("truncated header at offset %d", pos)
		}
		if err != nil {
			return ioError("read header", err)
		}
		if tarheader.IsEnd(block) {
			break
		}

		h, err := tarheader.Parse(block)
		if err != nil {
			return fmt.Errorf("%w: header at offset %d: %w", ErrFormat, pos, err)
		}
		dataStart := pos + tarheader.BlockSize

		switch h.Typeflag {
		case tarheader.TypeGNULongName, tarheader.TypeGNULongLink:
			data, err := t.readPayload(h, dataStart, size)
			if err != nil {
				return err
			}
			if h.Typeflag == tarheader.TypeGNULongName {
				longName = tarheader.LongLinkValue(data)
			} else {
				longLink = tarheader.LongLinkValue(data)
			}
		case tarheader.TypeXHeader:
			data, err := t.readPayload(h, dataStart, size)
			if err != nil {
				return err
			}
			if pax, err = tarheader.ParsePAX(data); err != nil {
				return fmt.Errorf("%w: header at offset %d: %w", ErrFormat, pos, err)
			}
		case tarheader.TypeXGlobal:
			// Global PAX records carry nothing the tree models.
		default:
			if longName != "" {
				h.Name, h.Prefix = longName, ""
			}
			if longLink != "" {
				h.Linkname = longLink
			}
			if pax != nil {
				if err := h.Apply(pax); err != nil {
					return fmt.Errorf("%w: header at offset %d: %w", ErrFormat, pos, err)
				}
			}
			longName, longLink, pax = "", "", nil
			if err := t.addParsed(h, dataStart, size); err != nil {
				return err
			}
		}

		pos = dataStart + sizing.RoundUp(h.Size, tarheader.BlockSize)
		if _, err := t.rs.Seek(pos, io.SeekStart); err != nil {
			return ioError("seek", err)
		}
	}
	t.tarEnd = pos
	return nil
}

// readPayload reads the content of a long-name or PAX record.
func (t *tarHandler) readPayload(h *tarheader.Header, dataStart, size int64) ([]byte, error) {
	if err := checkBounds(h.Name, dataStart, h.Size, size); err != nil {
		return nil, err
	}
	data, err := sizing.ReadAllWithLimit(io.LimitReader(t.rs, h.Size), maxMetaSize, errMetaTooLarge)
	if err != nil {
		if errors.Is(err, ErrFormat) {
			return nil, err
		}
		return nil, ioError("read "+h.Name, err)
	}
	if int64(len(data)) != h.Size {
		return nil, formatErrorf("truncated %s record", h.Name)
	}
	return data, nil
}

// checkBounds rejects content that extends past the end of the stream.
func checkBounds(name string, start, length, streamSize int64) error {
	end, ok := sizing.AddInt64(start, length)
	if !ok || end > streamSize {
		return formatErrorf("entry %q at offset %d extends past end of archive", name, start)
	}
	return nil
}

// addParsed adds a parsed header to the tree.
func (t *tarHandler) addParsed(h *tarheader.Header, dataStart, streamSize int64) error {
	a := t.a
	raw := h.FullName()
	isDir := h.Typeflag == tarheader.TypeDir ||
		h.Typeflag == tarheader.TypeGNUDumpDir ||
		strings.HasSuffix(raw, "/")
	if err := checkBounds(raw, dataStart, h.Size, streamSize); err != nil {
		return err
	}

	// Cleaning against "/" keeps ".." from climbing out of the root.
	name := strings.TrimPrefix(path.Clean("/"+raw), "/")
	perm := unixMode(h.Mode)
	modTime := time.Unix(h.ModTime, 0)
	user, group := h.Uname, h.Gname
	if user == "" {
		user = strconv.FormatInt(h.UID, 10)
	}
	if group == "" {
		group = strconv.FormatInt(h.GID, 10)
	}

	if name == "" {
		root := a.rootDir()
		root.mode = perm | fs.ModeDir
		root.modTime = modTime
		root.user, root.group = user, group
		return nil
	}

	a.log().Debug("tar entry",
		"name", name,
		"type", string(rune(h.Typeflag)),
		"size", h.Size,
		"offset", dataStart)

	dir, base := splitPath(name)
	if isDir {
		t.dirs[name] = true
		return a.insert(dir, newDirectory(a, base, perm, modTime, user, group))
	}

	f := &File{
		entryBase: entryBase{
			name:    base,
			mode:    perm,
			modTime: modTime,
			user:    user,
			group:   group,
			archive: a,
		},
		pos:  dataStart,
		size: h.Size,
	}
	switch h.Typeflag {
	case tarheader.TypeSymlink:
		f.mode |= fs.ModeSymlink
		f.symlink = h.Linkname
		f.size = 0
	case tarheader.TypeLink:
		f.symlink = strings.TrimPrefix(path.Clean("/"+h.Linkname), "/")
		f.size = 0
	}
	return a.insert(dir, f)
}

// reposition moves the stream back to the write offset. Reads through
// SubStreams share the cursor.
func (t *tarHandler) reposition() error {
	if t.seeker == nil {
		return nil
	}
	if _, err := t.seeker.Seek(t.pos, io.SeekStart); err != nil {
		return ioError("seek to end of archive", err)
	}
	return nil
}

func (t *tarHandler) write(p []byte) error {
	n, err := t.w.Write(p)
	t.pos += int64(n)
	t.appended = true
	if err != nil {
		return ioError("write", err)
	}
	if n < len(p) {
		return ioError("write", io.ErrShortWrite)
	}
	return nil
}

func (t *tarHandler) newHeader(name string, typeflag byte, size int64, attrs Attrs) *tarheader.Header {
	return &tarheader.Header{
		Name:     name,
		Mode:     modeBits(attrs.Mode),
		UID:      int64(platform.UserID(attrs.User)),
		GID:      int64(platform.GroupID(attrs.Group)),
		Size:     size,
		ModTime:  attrs.MTime.Unix(),
		Typeflag: typeflag,
		Uname:    attrs.User,
		Gname:    attrs.Group,
	}
}

// headerBlocks encodes h, preceded by long-name records when the name or
// link target does not fit. Nothing is written, so an error leaves the
// archive untouched.
func (t *tarHandler) headerBlocks(h *tarheader.Header) ([]byte, error) {
	var out []byte
	if len(h.Name) > tarheader.MaxNameLen {
		rec, err := tarheader.LongLink(tarheader.TypeGNULongName, h.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnsupported, h.Name, err)
		}
		out = append(out, rec...)
	}
	if len(h.Linkname) > tarheader.MaxNameLen {
		rec, err := tarheader.LongLink(tarheader.TypeGNULongLink, h.Linkname)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnsupported, h.Name, err)
		}
		out = append(out, rec...)
	}
	block, err := tarheader.Encode(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupported, h.Name, err)
	}
	return append(out, block...), nil
}

func (t *tarHandler) writeHeader(h *tarheader.Header) error {
	blocks, err := t.headerBlocks(h)
	if err != nil {
		return err
	}
	if err := t.reposition(); err != nil {
		return err
	}
	return t.write(blocks)
}

func (t *tarHandler) writeDir(name string, attrs Attrs) error {
	if t.dirs[name] {
		return nil
	}
	if err := t.writeHeader(t.newHeader(name+"/", tarheader.TypeDir, 0, attrs)); err != nil {
		return err
	}
	t.tarEnd = t.pos
	t.dirs[name] = true

	dir, base := splitPath(name)
	return t.a.insert(dir, newDirectory(t.a, base, attrs.Mode, attrs.MTime, attrs.User, attrs.Group))
}

func (t *tarHandler) writeSymLink(name, target string, attrs Attrs) error {
	h := t.newHeader(name, tarheader.TypeSymlink, 0, attrs)
	h.Linkname = target
	if err := t.writeHeader(h); err != nil {
		return err
	}
	t.tarEnd = t.pos

	dir, base := splitPath(name)
	return t.a.insert(dir, &File{
		entryBase: entryBase{
			name:    base,
			mode:    attrs.Mode.Perm() | fs.ModeSymlink,
			modTime: attrs.MTime,
			user:    attrs.User,
			group:   attrs.Group,
			symlink: target,
			archive: t.a,
		},
		pos: t.pos,
	})
}

func (t *tarHandler) prepareWriting(name string, attrs Attrs, size int64) error {
	if err := t.writeHeader(t.newHeader(name, tarheader.TypeReg, size, attrs)); err != nil {
		return err
	}
	dir, base := splitPath(name)
	t.curDir = dir
	t.cur = &File{
		entryBase: entryBase{
			name:    base,
			mode:    attrs.Mode,
			modTime: attrs.MTime,
			user:    attrs.User,
			group:   attrs.Group,
			archive: t.a,
		},
		pos:  t.pos,
		size: size,
	}
	return nil
}

func (t *tarHandler) writeData(p []byte) (int, error) {
	if err := t.reposition(); err != nil {
		return 0, err
	}
	start := t.pos
	err := t.write(p)
	return int(t.pos - start), err
}

func (t *tarHandler) finishWriting(size int64) error {
	if pad := tarheader.Padding(size); pad > 0 {
		if err := t.reposition(); err != nil {
			return err
		}
		if err := t.write(make([]byte, pad)); err != nil {
			return err
		}
	}
	t.tarEnd = t.pos
	f := t.cur
	t.cur = nil
	if f == nil {
		return nil
	}
	return t.a.insert(t.curDir, f)
}

// closeArchive writes the end-of-archive marker, flushes the compression
// device and removes the scratch file. After an abort it only releases.
func (t *tarHandler) closeArchive() error {
	var result *multierror.Error
	// An untouched ReadWrite archive keeps its bytes, trailer or not.
	if !t.a.aborted && (t.mode == ModeWrite || (t.mode == ModeReadWrite && t.appended)) {
		t.pos = t.tarEnd
		err := t.reposition()
		if err == nil {
			err = t.write(make([]byte, 2*tarheader.BlockSize))
		}
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	if t.fdev != nil {
		if err := t.fdev.Close(); err != nil && !t.a.aborted {
			result = multierror.Append(result, ioError("flush compressed stream", err))
		}
		t.fdev = nil
	}
	if t.tmp != nil {
		name := t.tmp.Name()
		if err := t.tmp.Close(); err != nil {
			result = multierror.Append(result, ioError("close scratch file", err))
		}
		if err := t.a.cfg.fs.Remove(name); err != nil {
			result = multierror.Append(result, ioError("remove scratch file", err))
		}
		t.tmp = nil
	}
	t.rs, t.w, t.seeker = nil, nil, nil
	return result.ErrorOrNil()
}
