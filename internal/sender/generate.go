package sender

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oferchen/rsync-sub027/internal/checksum"
	"github.com/oferchen/rsync-sub027/internal/delta"
	"github.com/oferchen/rsync-sub027/internal/filelist"
	"github.com/oferchen/rsync-sub027/internal/signature"
)

// sigRequest is one (index, signature) pair the other side's generator
// issued for a file it wants resent.
type sigRequest struct {
	index int32
	sig   *signature.FileSignature
}

// recvRequests reads the generator's signature-request stream: one
// (index, signature) pair per file it wants sent, terminated by index
// -1. Counterpart to internal/receiver's single-pass GenerateFiles.
func (st *Transfer) recvRequests() ([]sigRequest, error) {
	var reqs []sigRequest
	for {
		idx, err := st.Conn.ReadInt32()
		if err != nil {
			return nil, err
		}
		if idx == -1 {
			return reqs, nil
		}
		sig, err := signature.ReadFrom(st.Conn, st.Algorithm)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, sigRequest{index: idx, sig: sig})
	}
}

// sendFiles answers each request with a delta stream and trailing
// whole-file digest. rsync's sender.c:send_files.
func (st *Transfer) sendFiles(fileList []*File, reqs []sigRequest) error {
	for _, req := range reqs {
		if req.index < 0 || int(req.index) >= len(fileList) {
			return fmt.Errorf("sender: file index %d out of range", req.index)
		}
		f := fileList[req.index]
		if err := st.Conn.WriteInt32(req.index); err != nil {
			return err
		}
		if err := st.sendFile1(f, req.sig); err != nil {
			st.IOErrors++
			st.Logger.Printf("sending %s: %v", f.Name, err)
			continue
		}
	}
	return st.Conn.WriteInt32(-1)
}

func (st *Transfer) sendFile1(f *File, sig *signature.FileSignature) error {
	if filelist.IsDir(f.Mode) || filelist.IsSymlink(f.Mode) || filelist.IsDevice(f.Mode) {
		return nil
	}

	path := filepath.Join(st.Root, f.Name)
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	idx := signature.NewIndex(sig)
	gen := delta.NewGenerator(idx, sig.BlockLength, st.Algorithm, st.Seed, st.SeedFix)

	strong := checksum.New(st.Algorithm, st.Seed, st.SeedFix)
	h := checksum.AsHash(strong)
	tee := io.TeeReader(src, h)

	emit := func(tok delta.Token) error { return delta.WriteToken(st.Conn, tok) }
	if err := gen.Generate(tee, emit); err != nil {
		return err
	}

	sum := h.Sum(nil)
	_, err = st.Conn.Writer.Write(sum)
	return err
}
