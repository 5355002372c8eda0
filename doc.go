// Package archive reads and writes tar and ar archives through a virtual
// directory tree.
//
// An Archive is opened on a named file or on a caller supplied stream. In
// ModeRead the whole archive is parsed once into a tree of Entry values;
// file content is never cached and is read on demand through a bounded
// SubStream. In ModeWrite entries are appended with WriteDir,
// WriteSymLink, WriteFile or the PrepareWriting, WriteData, FinishWriting
// sequence. Named files are written atomically: the new archive replaces
// the old one only when Close succeeds.
//
// Tar archives may be compressed with any codec from the filter package.
// The codec is picked from the file extension, from WithFilter, or by
// sniffing the content when reading.
//
// An Archive is not safe for concurrent use.
package archive
