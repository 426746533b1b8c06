package signature

import (
	"encoding/binary"
	"io"

	"github.com/oferchen/rsync-sub027/internal/checksum"
	"github.com/oferchen/rsync-sub027/internal/rsyncwire"
)

// remainderLength reports the length of the final block if it is
// shorter than BlockLength, matching upstream rsync's sum_struct
// remainder field (0 when the file is an exact multiple of the block
// size, or empty).
func remainderLength(sig *FileSignature) int32 {
	if len(sig.Blocks) == 0 {
		return 0
	}
	last := sig.Blocks[len(sig.Blocks)-1]
	if last.Length == sig.BlockLength {
		return 0
	}
	return int32(last.Length)
}

// WriteTo sends a sum head followed by each block's rolling and strong
// checksums, matching upstream rsync's generator.c:send_sums wire
// layout: one rsyncwire.SumHead, then ChecksumCount pairs of
// (4-byte little-endian rolling checksum, StrongLength-byte strong
// digest).
func (sig *FileSignature) WriteTo(c *rsyncwire.Conn) error {
	sh := rsyncwire.SumHead{
		ChecksumCount:   int32(len(sig.Blocks)),
		BlockLength:     int32(sig.BlockLength),
		ChecksumLength:  int32(sig.StrongLength),
		RemainderLength: remainderLength(sig),
	}
	if err := sh.WriteTo(c); err != nil {
		return err
	}
	var rollBuf [4]byte
	for _, b := range sig.Blocks {
		binary.LittleEndian.PutUint32(rollBuf[:], uint32(b.Rolling))
		if _, err := c.Writer.Write(rollBuf[:]); err != nil {
			return err
		}
		if _, err := c.Writer.Write(b.Strong); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrom reads a sum head and its block checksums, rebuilding a
// FileSignature and its lookup Index. algorithm is the strong-checksum
// choice negotiated for the session; StrongLength and BlockLength come
// off the wire, matching what the sender originally computed.
func ReadFrom(c *rsyncwire.Conn, algorithm checksum.Algorithm) (*FileSignature, error) {
	var sh rsyncwire.SumHead
	if err := sh.ReadFrom(c); err != nil {
		return nil, err
	}
	sig := &FileSignature{
		BlockLength:  int(sh.BlockLength),
		StrongLength: int(sh.ChecksumLength),
		Algorithm:    algorithm,
	}
	sig.Blocks = make([]Block, 0, sh.ChecksumCount)

	var rollBuf [4]byte
	strongBuf := make([]byte, sh.ChecksumLength)
	var offset int64
	for i := 0; i < int(sh.ChecksumCount); i++ {
		if _, err := io.ReadFull(c.Reader, rollBuf[:]); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(c.Reader, strongBuf); err != nil {
			return nil, err
		}
		length := int(sh.BlockLength)
		if i == int(sh.ChecksumCount)-1 && sh.RemainderLength != 0 {
			length = int(sh.RemainderLength)
		}
		strong := make([]byte, len(strongBuf))
		copy(strong, strongBuf)
		sig.Blocks = append(sig.Blocks, Block{
			Index:      i,
			FileOffset: offset,
			Length:     length,
			Rolling:    checksum.Digest(binary.LittleEndian.Uint32(rollBuf[:])),
			Strong:     strong,
		})
		offset += int64(length)
	}
	return sig, nil
}
