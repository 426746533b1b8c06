// Package signature computes per-block checksums for a basis file (§4.5)
// and indexes them for fast candidate lookup during delta generation
// (§4.6).
package signature

import (
	"io"

	"github.com/oferchen/rsync-sub027/internal/checksum"
)

// Block describes one chunk of a basis file: its position, length, and
// the two checksums used to recognize it in the target stream.
type Block struct {
	Index      int
	FileOffset int64
	Length     int
	Rolling    checksum.Digest
	Strong     []byte
}

// LayoutParams controls how a basis file is chunked into blocks.
type LayoutParams struct {
	// BlockLength overrides the computed block size when non-zero
	// (spec §6 configuration input block_size).
	BlockLength int
	// StrongLength truncates the strong digest to this many bytes
	// (minimum 2); zero means the algorithm's native width.
	StrongLength int
	Algorithm    checksum.Algorithm
	Seed         int32
	SeedFix      bool
}

const (
	minBlockLength = 512
	maxBlockLength = 131072
)

// BlockLength computes B = round_up_pow2(sqrt(fileSize)) clamped to
// [512, 131072], matching upstream rsync's match_sums / the teacher's
// sumSizesSqroot, generalized to the spec §3 clamp range.
func BlockLength(fileSize int64) int {
	if fileSize <= 0 {
		return minBlockLength
	}
	b := isqrt(fileSize)
	b = roundUpPow2(b)
	if b < minBlockLength {
		b = minBlockLength
	}
	if b > maxBlockLength {
		b = maxBlockLength
	}
	return b
}

func isqrt(n int64) int64 {
	if n < 2 {
		return n
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

func roundUpPow2(n int64) int64 {
	if n <= 1 {
		return 1
	}
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// FileSignature is the ordered list of blocks describing one basis file.
type FileSignature struct {
	Blocks       []Block
	BlockLength  int
	StrongLength int
	Algorithm    checksum.Algorithm
}

// Generate reads r in aligned BlockLength-sized chunks, computing rolling
// and strong digests for each, per spec §4.5. The last chunk may be
// shorter than BlockLength.
func Generate(r io.Reader, params LayoutParams) (*FileSignature, error) {
	blockLen := params.BlockLength
	if blockLen <= 0 {
		blockLen = minBlockLength
	}
	strongLen := params.StrongLength
	if strongLen <= 0 {
		strongLen = params.Algorithm.Size()
	}
	if strongLen < 2 {
		strongLen = 2
	}

	sig := &FileSignature{
		BlockLength:  blockLen,
		StrongLength: strongLen,
		Algorithm:    params.Algorithm,
	}

	buf := make([]byte, blockLen)
	var offset int64
	idx := 0
	for {
		n, err := io.ReadFull(r, buf)
		if n == 0 {
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
		}
		chunk := buf[:n]

		var roll checksum.Rolling
		rd := roll.Full(chunk)

		strong := checksum.New(params.Algorithm, params.Seed, params.SeedFix)
		strong.Write(chunk)
		full := strong.Sum(nil)
		if len(full) > strongLen {
			full = full[:strongLen]
		}

		sig.Blocks = append(sig.Blocks, Block{
			Index:      idx,
			FileOffset: offset,
			Length:     n,
			Rolling:    rd,
			Strong:     full,
		})

		offset += int64(n)
		idx++

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if n < blockLen {
			break
		}
	}

	return sig, nil
}
