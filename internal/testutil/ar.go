package testutil

import (
	"bytes"
	"fmt"
)

// ArMember is one member of an ar fixture.
type ArMember struct {
	Name    string
	Data    []byte
	Mode    int64
	ModTime int64
}

func (m ArMember) mode() int64 {
	if m.Mode == 0 {
		return 0o644
	}
	return m.Mode
}

// arHeader formats a 60-byte member header.
func arHeader(name string, mtime, mode int64, size int) []byte {
	h := fmt.Sprintf("%-16s%-12d%-6d%-6d%-8o%-10d`\n", name, mtime, 0, 0, mode, size)
	if len(h) != 60 {
		panic(fmt.Sprintf("testutil: ar header for %q is %d bytes", name, len(h)))
	}
	return []byte(h)
}

func appendMember(buf *bytes.Buffer, name string, mtime, mode int64, data []byte) {
	buf.Write(arHeader(name, mtime, mode, len(data)))
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte('\n')
	}
}

// GNUAr builds a GNU ar archive with a symbol table. Names longer than
// 15 bytes go through a "//" long-name table.
func GNUAr(members ...ArMember) []byte {
	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")
	appendMember(&buf, "/", 0, 0, []byte{0, 0, 0, 0})

	var table bytes.Buffer
	names := make([]string, len(members))
	for i, m := range members {
		if len(m.Name) > 15 {
			names[i] = fmt.Sprintf("/%d", table.Len())
			table.WriteString(m.Name + "/\n")
		} else {
			names[i] = m.Name + "/"
		}
	}
	if table.Len() > 0 {
		appendMember(&buf, "//", 0, 0, table.Bytes())
	}
	for i, m := range members {
		appendMember(&buf, names[i], m.ModTime, m.mode(), m.Data)
	}
	return buf.Bytes()
}

// BSDAr builds a BSD ar archive with a __.SYMDEF symbol table. Every name
// is stored in "#1/NN" form.
func BSDAr(members ...ArMember) []byte {
	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")
	symdef := append([]byte("__.SYMDEF\x00\x00\x00"), 0, 0, 0, 0)
	appendMember(&buf, "#1/12", 0, 0o644, symdef)
	for _, m := range members {
		payload := append([]byte(m.Name), m.Data...)
		appendMember(&buf, fmt.Sprintf("#1/%d", len(m.Name)), m.ModTime, m.mode(), payload)
	}
	return buf.Bytes()
}

// ArWithHeader builds an archive with a single member whose raw name field
// is name, for malformed-input tests.
func ArWithHeader(name string, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")
	appendMember(&buf, name, 0, 0o644, data)
	return buf.Bytes()
}
