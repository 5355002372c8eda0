// Package tarheader encodes and decodes 512-byte ustar header blocks,
// including the GNU long-name records and PAX extended headers.
package tarheader

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BlockSize is the tar record granularity.
const BlockSize = 512

// MaxNameLen is the longest name or link target stored inline in a header.
// Longer values are carried by a preceding long-name record.
const MaxNameLen = 99

// LongLinkName is the name of the GNU long-name pseudo entry.
const LongLinkName = "././@LongLink"

// MaxSize is the largest entry size representable in the 11-digit octal
// size field.
const MaxSize = 1<<33 - 1

// Type flags.
const (
	TypeReg         = '0'
	TypeRegA        = '\x00'
	TypeLink        = '1'
	TypeSymlink     = '2'
	TypeChar        = '3'
	TypeBlock       = '4'
	TypeDir         = '5'
	TypeFifo        = '6'
	TypeCont        = '7'
	TypeXHeader     = 'x'
	TypeXGlobal     = 'g'
	TypeGNULongName = 'L'
	TypeGNULongLink = 'K'
	TypeGNUDumpDir  = 'D'
)

// Field offsets within a header block.
const (
	offName     = 0
	offMode     = 100
	offUID      = 108
	offGID      = 116
	offSize     = 124
	offMTime    = 136
	offChecksum = 148
	offTypeflag = 156
	offLinkname = 157
	offMagic    = 257
	offVersion  = 263
	offUname    = 265
	offGname    = 297
	offDevMajor = 329
	offPrefix   = 345
)

var (
	// ErrTruncated is returned for a header block shorter than BlockSize.
	ErrTruncated = errors.New("tarheader: truncated header")
	// ErrChecksum is returned when a header has neither the ustar magic nor
	// a valid checksum.
	ErrChecksum = errors.New("tarheader: invalid checksum")
	// ErrField is returned for an unparsable numeric field.
	ErrField = errors.New("tarheader: invalid numeric field")
	// ErrRange is returned when a value does not fit its field.
	ErrRange = errors.New("tarheader: value out of field range")
	// ErrPAX is returned for a malformed PAX extended header record.
	ErrPAX = errors.New("tarheader: malformed pax record")
)

var (
	ustarMagic   = []byte("ustar\x00")
	ustarVersion = []byte("00")
)

// Header is the decoded form of one header block.
type Header struct {
	Name     string
	Mode     int64
	UID      int64
	GID      int64
	Size     int64
	ModTime  int64
	Typeflag byte
	Linkname string
	Uname    string
	Gname    string
	// Prefix is the ustar name prefix. Parse leaves it separate from Name;
	// FullName joins them.
	Prefix string
	// Ustar reports whether the block carried the ustar magic.
	Ustar bool
}

// FullName returns Name joined with the ustar prefix, if any.
func (h *Header) FullName() string {
	if h.Prefix == "" {
		return h.Name
	}
	return h.Prefix + "/" + h.Name
}

// Parse decodes a header block. Blocks without the ustar magic are accepted
// only when their checksum verifies.
func Parse(block []byte) (*Header, error) {
	if len(block) < BlockSize {
		return nil, ErrTruncated
	}
	block = block[:BlockSize]

	h := &Header{
		Name:     cstring(block[offName:offMode]),
		Typeflag: block[offTypeflag],
		Linkname: cstring(block[offLinkname:offMagic]),
		Ustar:    bytes.HasPrefix(block[offMagic:], []byte("ustar")),
	}
	if !h.Ustar && !VerifyChecksum(block) {
		return nil, ErrChecksum
	}

	var err error
	if h.Mode, err = parseNumeric(block[offMode:offUID]); err != nil {
		return nil, fmt.Errorf("mode: %w", err)
	}
	if h.UID, err = parseNumeric(block[offUID:offGID]); err != nil {
		return nil, fmt.Errorf("uid: %w", err)
	}
	if h.GID, err = parseNumeric(block[offGID:offSize]); err != nil {
		return nil, fmt.Errorf("gid: %w", err)
	}
	if h.Size, err = parseNumeric(block[offSize:offMTime]); err != nil {
		return nil, fmt.Errorf("size: %w", err)
	}
	if h.Size < 0 {
		return nil, fmt.Errorf("size: %w", ErrField)
	}
	if h.ModTime, err = parseNumeric(block[offMTime:offChecksum]); err != nil {
		return nil, fmt.Errorf("mtime: %w", err)
	}

	if h.Ustar {
		h.Uname = cstring(block[offUname:offGname])
		h.Gname = cstring(block[offGname:offDevMajor])
		// GNU tar ("ustar  \0") reuses the prefix area for other fields.
		if bytes.Equal(block[offMagic:offVersion], ustarMagic) {
			h.Prefix = cstring(block[offPrefix : offPrefix+155])
		}
	}
	return h, nil
}

// Encode serializes h into a header block with a computed checksum. Name
// and Linkname are truncated to MaxNameLen; callers emit a long-name record
// first when they are longer.
func Encode(h *Header) ([]byte, error) {
	b := make([]byte, BlockSize)

	copy(b[offName:offName+MaxNameLen], h.Name)
	if err := formatOctal(b[offMode:offUID], h.Mode); err != nil {
		return nil, fmt.Errorf("mode: %w", err)
	}
	if err := formatNumeric(b[offUID:offGID], h.UID); err != nil {
		return nil, fmt.Errorf("uid: %w", err)
	}
	if err := formatNumeric(b[offGID:offSize], h.GID); err != nil {
		return nil, fmt.Errorf("gid: %w", err)
	}
	if err := formatOctal(b[offSize:offMTime], h.Size); err != nil {
		return nil, fmt.Errorf("size: %w", err)
	}
	if err := formatNumeric(b[offMTime:offChecksum], h.ModTime); err != nil {
		return nil, fmt.Errorf("mtime: %w", err)
	}
	b[offTypeflag] = h.Typeflag
	copy(b[offLinkname:offLinkname+MaxNameLen], h.Linkname)
	copy(b[offMagic:], ustarMagic)
	copy(b[offVersion:], ustarVersion)
	copy(b[offUname:offGname-1], h.Uname)
	copy(b[offGname:offGname+31], h.Gname)

	sum := Checksum(b)
	copy(b[offChecksum:], fmt.Sprintf("%06o\x00 ", sum))
	return b, nil
}

// LongLink returns the GNU long-name record (header plus padded payload)
// carrying value for the entry that follows. typeflag is TypeGNULongName or
// TypeGNULongLink.
func LongLink(typeflag byte, value string) ([]byte, error) {
	size := int64(len(value)) + 1
	hdr, err := Encode(&Header{
		Name:     LongLinkName,
		Size:     size,
		Typeflag: typeflag,
	})
	if err != nil {
		return nil, err
	}
	out := make([]byte, BlockSize+roundUp(size))
	copy(out, hdr)
	copy(out[BlockSize:], value)
	return out, nil
}

// LongLinkValue extracts the name carried by a long-name payload.
func LongLinkValue(data []byte) string {
	return cstring(data)
}

// Checksum sums all bytes of block with the checksum field taken as spaces.
func Checksum(block []byte) int64 {
	var sum int64
	for i, c := range block[:BlockSize] {
		if i >= offChecksum && i < offChecksum+8 {
			c = ' '
		}
		sum += int64(c)
	}
	return sum
}

// VerifyChecksum reports whether the stored checksum matches the computed
// one. Historic writers padded the field differently, so the octal text is
// accepted ending at any of the three last positions of the field.
func VerifyChecksum(block []byte) bool {
	s := strconv.FormatInt(Checksum(block), 8)
	n := len(s)
	for _, end := range []int{offChecksum + 6, offChecksum + 7, offChecksum + 8} {
		if end-n < offChecksum {
			continue
		}
		if string(block[end-n:end]) == s {
			return true
		}
	}
	return false
}

// IsEnd reports whether block marks the end of the archive. Any block that
// starts with a zero byte ends the listing.
func IsEnd(block []byte) bool {
	return len(block) == 0 || block[0] == 0
}

// Padding returns the number of zero bytes that follow size bytes of
// content.
func Padding(size int64) int64 {
	return roundUp(size) - size
}

func roundUp(n int64) int64 {
	return (n + BlockSize - 1) / BlockSize * BlockSize
}

// parseNumeric decodes an octal text field or a GNU base-256 field.
func parseNumeric(b []byte) (int64, error) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		// Negative values are stored in two's complement.
		var inv byte
		if b[0]&0x40 != 0 {
			inv = 0xff
		}
		var x uint64
		for i, c := range b {
			c ^= inv
			if i == 0 {
				c &= 0x7f
			}
			if x>>56 > 0 {
				return 0, ErrField
			}
			x = x<<8 | uint64(c)
		}
		if x>>63 > 0 {
			return 0, ErrField
		}
		if inv == 0xff {
			return ^int64(x), nil
		}
		return int64(x), nil
	}

	s := strings.Trim(cstring(b), " ")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrField, s)
	}
	return v, nil
}

// formatNumeric writes v as octal when it fits and as GNU base-256
// otherwise, which covers large ids and times before 1970.
func formatNumeric(dst []byte, v int64) error {
	if err := formatOctal(dst, v); err == nil {
		return nil
	}
	if len(dst) < 9 && (v < -1<<(8*len(dst)-2) || v >= 1<<(8*len(dst)-2)) {
		return ErrRange
	}
	for i := len(dst) - 1; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
	dst[0] |= 0x80
	return nil
}

// formatOctal writes v as zero-padded octal followed by a NUL.
func formatOctal(dst []byte, v int64) error {
	width := len(dst) - 1
	if v < 0 {
		return ErrRange
	}
	s := strconv.FormatInt(v, 8)
	if len(s) > width {
		return ErrRange
	}
	copy(dst, strings.Repeat("0", width-len(s))+s)
	dst[width] = 0
	return nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
