// Package filter implements buffer-pump compression filters and the Device
// that turns a filter into an ordinary byte stream.
//
// A Filter is driven by its caller: input and output buffers are handed in
// with SetInBuffer and SetOutBuffer, and each call to Compress or Decompress
// consumes input and produces output until one side runs out. Codecs:
//   - Gzip: RFC 1952 gzip, or raw deflate with SetSkipHeaders
//   - Bzip2
//   - XZ and LZMA (the legacy .lzma container)
//   - Zstd
//
// Device layers a Filter over an io.Reader or io.Writer. Reading
// decompresses, writing compresses, and Close flushes the final block.
// Devices do not start goroutines; all work happens on the calling
// goroutine.
package filter
