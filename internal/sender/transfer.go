// Package sender implements the sending role of a transfer: walking the
// local tree into a file list, transmitting it, then answering each
// signature request the other side's generator issues with a streamed
// delta and a trailing whole-file digest. Counterpart to
// internal/receiver, which hosts rsync's "generator" role; no teacher
// equivalent exists in the retrieved source beyond the single-file
// prototype in internal/rsyncd/rsyncd.go's sendFileList/send_files
// logic, generalized here onto internal/filelist, internal/signature
// and internal/delta instead of its inline ad hoc wire encoding.
package sender

import (
	"github.com/oferchen/rsync-sub027/internal/checksum"
	"github.com/oferchen/rsync-sub027/internal/filelist"
	"github.com/oferchen/rsync-sub027/internal/log"
	"github.com/oferchen/rsync-sub027/internal/rsyncopts"
	"github.com/oferchen/rsync-sub027/internal/rsyncwire"
	"github.com/oferchen/rsync-sub027/internal/signature"
)

// File is one file-list entry the sender walks or transmits.
type File = filelist.Entry

// Transfer holds the state one sender-side connection threads through
// file-list generation and delta transmission.
type Transfer struct {
	Conn   *rsyncwire.Conn
	Opts   *rsyncopts.Options
	Logger log.Logger

	// Root is the module path (or local source root) every requested
	// path is resolved against.
	Root string

	Seed      int32
	SeedFix   bool
	Algorithm checksum.Algorithm

	IOErrors int32
}

// New builds a Transfer for one connection.
func New(conn *rsyncwire.Conn, opts *rsyncopts.Options, root string, seed int32, seedFix bool) *Transfer {
	return &Transfer{
		Conn:      conn,
		Opts:      opts,
		Logger:    log.Discard,
		Root:      root,
		Seed:      seed,
		SeedFix:   seedFix,
		Algorithm: opts.ChecksumChoice,
	}
}

func (st *Transfer) blockLength(f *File) int {
	if st.Opts.BlockSize > 0 {
		return st.Opts.BlockSize
	}
	return signature.BlockLength(f.Size)
}
