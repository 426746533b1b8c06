package receiver

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oferchen/rsync-sub027/internal/checksum"
	"github.com/oferchen/rsync-sub027/internal/delta"
	"github.com/oferchen/rsync-sub027/internal/filelist"
	"github.com/oferchen/rsync-sub027/internal/signature"
)

// RecvFiles drives the receive side of a transfer: the sender answers
// each signature request generateFile issued with one delta stream per
// index, terminated by a sentinel -1. No redo/resend phase is
// implemented, so unlike upstream rsync's receiver.c:recv_files this is
// single-pass; a generator that adds a resend phase would extend this
// loop to treat the first -1 as a phase boundary instead of the end.
func (rt *Transfer) RecvFiles(fileList []*File) error {
	for {
		idx, err := rt.Conn.ReadInt32()
		if err != nil {
			return err
		}
		if idx == -1 {
			break
		}
		if idx < 0 || int(idx) >= len(fileList) {
			return fmt.Errorf("receiver: file index %d out of range", idx)
		}
		if rt.Opts.Verbose() {
			rt.Logger.Printf("receiving file idx=%d: %+v", idx, fileList[idx])
		}
		if err := rt.recvFile1(fileList[idx]); err != nil {
			return err
		}
	}
	if rt.Opts.Verbose() {
		rt.Logger.Printf("recvFiles finished")
	}
	return nil
}

func (rt *Transfer) recvFile1(f *File) error {
	if rt.Opts.DryRun() {
		if !rt.Opts.Server() {
			fmt.Fprintln(rt.Env.Stdout, f.Name)
		}
		return rt.drainDelta()
	}
	return rt.receiveData(f)
}

// drainDelta reads and discards one file's signature request and
// delta stream without writing anything, used for --dry-run where the
// sender still sends the tokens but the receiver must not materialize
// them.
func (rt *Transfer) drainDelta() error {
	if _, err := signature.ReadFrom(rt.Conn, rt.Algorithm); err != nil {
		return err
	}
	for {
		tok, err := delta.ReadToken(rt.Conn)
		if err != nil {
			return err
		}
		if tok.Type == delta.TokenEnd {
			return nil
		}
	}
}

// receiveData applies one file's delta stream against whatever
// currently exists at f.Name, staging the result and atomically
// installing it once the whole-file digest matches the one the sender
// appends after the token stream. rsync's receiver.c:receive_data,
// rewired to internal/delta's streaming applicator instead of an
// inline MD4 accumulator.
func (rt *Transfer) receiveData(f *File) error {
	sig, err := signature.ReadFrom(rt.Conn, rt.Algorithm)
	if err != nil {
		return err
	}

	local := filepath.Join(rt.Dest, f.Name)
	rt.Logger.Printf("creating %s", local)

	basis, err := os.Open(local)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("receiver: opening basis %s: %w", local, err)
	}
	if basis != nil {
		defer basis.Close()
	}
	var basisReader io.ReaderAt = delta.EmptyBasis{}
	if basis != nil {
		basisReader = basis
	}

	out, err := rt.DestRoot.OpenWriteStaging(f.Name)
	if err != nil {
		return fmt.Errorf("receiver: staging %s: %w", local, err)
	}
	defer out.Discard()

	strong := checksum.New(rt.Algorithm, rt.Seed, rt.SeedFix)
	h := checksum.AsHash(strong)

	readToken := func() (delta.Token, error) { return delta.ReadToken(rt.Conn) }
	if err := delta.Apply(readToken, basisReader, sig, out, h, delta.ApplyOptions{}); err != nil {
		return err
	}

	localSum := h.Sum(nil)
	remoteSum := make([]byte, len(localSum))
	if _, err := io.ReadFull(rt.Conn.Reader, remoteSum); err != nil {
		return fmt.Errorf("receiver: reading final checksum for %s: %w", f.Name, err)
	}
	if !bytes.Equal(localSum, remoteSum) {
		return fmt.Errorf("file corruption in %s", f.Name)
	}
	rt.Logger.Printf("checksum %x matches!", localSum)

	if err := out.Finalize(); err != nil {
		return err
	}

	return rt.setPerms(f)
}

func isTopDir(f *filelist.Entry) bool {
	return f.Name == "."
}
