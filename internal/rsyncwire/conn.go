// Package rsyncwire implements the wire-level primitives shared by every
// role in the protocol: the varint codec, fixed-width integer helpers,
// multiplexed framing, and handshake negotiation. It is the lowest layer
// in the dependency graph — every other internal package depends on it,
// and it depends on nothing else in this module.
package rsyncwire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// CountingReader wraps an io.Reader and tracks the number of bytes read,
// used to produce the end-of-transfer statistics rsync reports.
type CountingReader struct {
	R         io.Reader
	BytesRead int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// CountingWriter wraps an io.Writer and tracks the number of bytes written.
type CountingWriter struct {
	W            io.Writer
	BytesWritten int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.BytesWritten += int64(n)
	return n, err
}

// CounterPair wraps r and w (which may be the same net.Conn) in a
// CountingReader/CountingWriter pair.
func CounterPair(r io.Reader, w io.Writer) (*CountingReader, *CountingWriter) {
	return &CountingReader{R: r}, &CountingWriter{W: w}
}

// ReadWriter pairs an independently sourced Reader and Writer into a
// single io.ReadWriter, for callers that wrap only one direction of a
// full-duplex connection (e.g. a rate-limited write side).
type ReadWriter struct {
	Reader io.Reader
	Writer io.Writer
}

func (rw *ReadWriter) Read(p []byte) (int, error)  { return rw.Reader.Read(p) }
func (rw *ReadWriter) Write(p []byte) (int, error) { return rw.Writer.Write(p) }

// Conn bundles the reader and writer halves of a single protocol
// connection. Reader and Writer are interfaces (not concrete types) so
// that a MultiplexReader/MultiplexWriter can be layered in after the
// initial handshake.
type Conn struct {
	Reader io.Reader
	Writer io.Writer
}

func (c *Conn) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(c.Reader, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Conn) WriteByte(b byte) error {
	_, err := c.Writer.Write([]byte{b})
	return err
}

func (c *Conn) ReadInt32() (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(c.Reader, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

func (c *Conn) WriteInt32(v int32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	_, err := c.Writer.Write(b[:])
	return err
}

func (c *Conn) ReadInt64() (int64, error) {
	// rsync encodes 64-bit values on the wire as a 32-bit value, with an
	// escape of -1 followed by 8 little-endian bytes when the value does
	// not fit in 32 bits.
	v, err := c.ReadInt32()
	if err != nil {
		return 0, err
	}
	if v != -1 {
		return int64(v), nil
	}
	var b [8]byte
	if _, err := io.ReadFull(c.Reader, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

func (c *Conn) WriteInt64(v int64) error {
	if v >= 0 && v < 0x7fffffff {
		return c.WriteInt32(int32(v))
	}
	if err := c.WriteInt32(-1); err != nil {
		return err
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	_, err := c.Writer.Write(b[:])
	return err
}

// ReadString reads a fixed-length byte string of n bytes.
func (c *Conn) ReadString(n int) (string, error) {
	if err := CheckAlloc(int64(n)); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(c.Reader, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadVarint/WriteVarint etc. are convenience wrappers bound to the
// connection's Reader/Writer.
func (c *Conn) ReadVarint() (uint32, error) { return ReadVarint(c.Reader) }
func (c *Conn) WriteVarint(v uint32) error  { return WriteVarint(c.Writer, v) }

func (c *Conn) ReadVarlong(minBytes int) (int64, error) {
	return ReadVarlong(c.Reader, minBytes)
}
func (c *Conn) WriteVarlong(v int64, minBytes int) error {
	return WriteVarlong(c.Writer, v, minBytes)
}

func (c *Conn) ReadVstring() ([]byte, error)    { return ReadVstring(c.Reader) }
func (c *Conn) WriteVstring(b []byte) error     { return WriteVstring(c.Writer, b) }

// MaxAllocBytes bounds the declared length ReadVstring and
// Conn.ReadString will honor before allocating a backing buffer,
// implementing the capacity guard described by the engine's resource
// model. Other decoders are bounded only where they call CheckAlloc
// themselves. Zero means unbounded.
var MaxAllocBytes int64 = 1 << 30 // 1 GiB default

// ErrAllocTooLarge is returned by length-checked reads when the declared
// size exceeds MaxAllocBytes.
var ErrAllocTooLarge = fmt.Errorf("rsyncwire: declared length exceeds allocation limit")

// CheckAlloc validates a declared length against MaxAllocBytes before the
// caller allocates a buffer of that size.
func CheckAlloc(n int64) error {
	if MaxAllocBytes > 0 && n > MaxAllocBytes {
		return ErrAllocTooLarge
	}
	return nil
}
