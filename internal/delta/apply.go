package delta

import (
	"bytes"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/google/renameio/v2"

	"github.com/oferchen/rsync-sub027/internal/checksum"
	"github.com/oferchen/rsync-sub027/internal/signature"
)

// TokenReader pulls one token at a time from a delta stream, mirroring
// the teacher's recvToken loop in internal/receiver/receiver.go.
type TokenReader func() (Token, error)

// ApplyOptions controls applicator behavior not implied by the token
// stream itself.
type ApplyOptions struct {
	// Sparse skips physically writing runs that are entirely zero bytes
	// when dst is an *os.File, leaving a hole instead (spec §4.8 "sparse
	// file handling"). This package has no preallocation mode, so no
	// sparse/preallocate exclusivity check is made.
	Sparse bool
}

// Apply reconstructs a target by walking tokens, copying matched blocks
// from basis and writing literal runs verbatim, per spec §4.8. If hash
// is non-nil every byte written (including bytes skipped via a sparse
// hole) is also fed to it, so callers can verify the whole-file digest
// against the sender's, matching the teacher's receiveData.
func Apply(tokens TokenReader, basis io.ReaderAt, sig *signature.FileSignature, dst io.Writer, h hash.Hash, opts ApplyOptions) error {
	write := func(data []byte) error {
		if h != nil {
			h.Write(data)
		}
		return writeChunk(dst, data, opts.Sparse)
	}

	for {
		tok, err := tokens()
		if err != nil {
			return err
		}
		switch tok.Type {
		case TokenEnd:
			return nil

		case TokenLiteral:
			if err := write(tok.Data); err != nil {
				return err
			}

		case TokenCopy:
			if sig == nil || tok.BlockIndex < 0 || tok.BlockIndex >= len(sig.Blocks) {
				return fmt.Errorf("delta: copy block index %d out of range", tok.BlockIndex)
			}
			b := sig.Blocks[tok.BlockIndex]
			buf := make([]byte, b.Length)
			if _, err := basis.ReadAt(buf, b.FileOffset); err != nil && err != io.EOF {
				return fmt.Errorf("delta: reading basis block %d at offset %d: %w", tok.BlockIndex, b.FileOffset, err)
			}
			if err := write(buf); err != nil {
				return err
			}

		default:
			return fmt.Errorf("delta: unknown token type %d", tok.Type)
		}
	}
}

// writeChunk writes data to dst, or, when sparse is set, data is all
// zeros and dst is a regular file, seeks past it instead of writing
// (spec §4.8 sparse-hole optimization). Grounded in
// SpoonOil-kitty/tools/rsync/algorithm.go's write_block zero-run check.
func writeChunk(dst io.Writer, data []byte, sparse bool) error {
	if sparse && len(data) > 0 && isAllZero(data) {
		if f, ok := dst.(*os.File); ok {
			_, err := f.Seek(int64(len(data)), io.SeekCurrent)
			return err
		}
	}
	_, err := dst.Write(data)
	return err
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// ApplyToFile applies tokens against basisPath and stages the result
// into destPath via atomic rename, matching the teacher's
// newPendingFile/out.Cleanup()/out.CloseAtomicallyReplace() pattern in
// internal/receiver/receiver.go. It verifies the reconstructed file's
// whole-file digest against expectedSum before committing the rename.
func ApplyToFile(tokens TokenReader, basisPath, destPath string, sig *signature.FileSignature, algorithm checksum.Algorithm, seed int32, seedFix bool, expectedSum []byte, opts ApplyOptions) error {
	basis, err := os.Open(basisPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delta: opening basis %s: %w", basisPath, err)
	}
	if basis != nil {
		defer basis.Close()
	}

	out, err := renameio.NewPendingFile(destPath)
	if err != nil {
		return fmt.Errorf("delta: staging %s: %w", destPath, err)
	}
	defer out.Cleanup()

	var basisReader io.ReaderAt = EmptyBasis{}
	if basis != nil {
		basisReader = basis
	}

	strong := checksum.New(algorithm, seed, seedFix)
	h := checksum.AsHash(strong)
	if err := Apply(tokens, basisReader, sig, out, h, opts); err != nil {
		return err
	}

	got := h.Sum(nil)
	if expectedSum != nil && !bytes.Equal(got, expectedSum) {
		return fmt.Errorf("delta: checksum mismatch reconstructing %s", destPath)
	}

	return out.CloseAtomicallyReplace()
}

// EmptyBasis reports io.EOF for any read, standing in for a basis file
// that does not exist yet (spec §9 "new files have no basis"). Shared
// with internal/receiver, which has the same need when a file is
// being transferred for the first time.
type EmptyBasis struct{}

func (EmptyBasis) ReadAt(p []byte, off int64) (int, error) { return 0, io.EOF }
