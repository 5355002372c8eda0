package tarheader

import (
	"bytes"
	"strconv"
	"strings"
)

// PAX keys applied to the following entry.
const (
	PAXPath     = "path"
	PAXLinkpath = "linkpath"
	PAXSize     = "size"
	PAXMtime    = "mtime"
	PAXUname    = "uname"
	PAXGname    = "gname"
)

// ParsePAX decodes the records of a PAX extended header payload. Each record
// has the form "<len> <key>=<value>\n" where len counts the whole record.
func ParsePAX(data []byte) (map[string]string, error) {
	records := make(map[string]string)
	for len(data) > 0 {
		// Trailing NUL padding ends the payload.
		if data[0] == 0 {
			break
		}
		sp := bytes.IndexByte(data, ' ')
		if sp <= 0 {
			return nil, ErrPAX
		}
		n, err := strconv.Atoi(string(data[:sp]))
		if err != nil || n <= sp+1 || n > len(data) {
			return nil, ErrPAX
		}
		rec := data[sp+1 : n]
		data = data[n:]
		if len(rec) == 0 || rec[len(rec)-1] != '\n' {
			return nil, ErrPAX
		}
		rec = rec[:len(rec)-1]
		eq := bytes.IndexByte(rec, '=')
		if eq <= 0 {
			return nil, ErrPAX
		}
		records[string(rec[:eq])] = string(rec[eq+1:])
	}
	return records, nil
}

// Apply overrides header fields with the recognised PAX records.
func (h *Header) Apply(records map[string]string) error {
	for k, v := range records {
		switch k {
		case PAXPath:
			h.Name, h.Prefix = v, ""
		case PAXLinkpath:
			h.Linkname = v
		case PAXUname:
			h.Uname = v
		case PAXGname:
			h.Gname = v
		case PAXSize:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return ErrPAX
			}
			h.Size = n
		case PAXMtime:
			// Fractional seconds are dropped.
			if i := strings.IndexByte(v, '.'); i >= 0 {
				v = v[:i]
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrPAX
			}
			h.ModTime = n
		}
	}
	return nil
}
