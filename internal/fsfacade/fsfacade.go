// Package fsfacade defines the filesystem boundary the synchronization
// engine depends on (spec §6 "Filesystem boundary (facade contract)"):
// open_read, open_write_staging, stat, readdir, set_metadata, symlink,
// hardlink, mknod. These are the only OS dependencies inside the core;
// everything in internal/delta, internal/filelist and internal/signature
// takes an io.Reader/io.ReaderAt/io.Writer instead of a path, and this
// package is what supplies those handles from a real directory tree.
//
// Grounded in the teacher's *os.Root usage in internal/receiver
// (rt.DestRoot.Open, rt.DestRoot.Lstat), generalized into an interface.
// The one implementation here, OSFacade, is plain os-backed: it joins
// each path onto its Root directory and does not sandbox it with os.Root.
package fsfacade

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/sys/unix"
)

// Metadata is the subset of file metadata the engine needs to set after
// a transfer, matching spec §6's set_metadata field list.
type Metadata struct {
	Mode  fs.FileMode
	Mtime time.Time

	UID     int
	GID     int
	HaveUID bool
	HaveGID bool
}

// DirEntry is one entry returned by Readdir, mirroring fs.DirEntry but
// decoupled from it so callers don't need an *os.File-backed fs.FS.
type DirEntry struct {
	Name  string
	IsDir bool
	Mode  fs.FileMode
}

// StagingWriter is a write handle for a file under construction; Finalize
// atomically installs it at its destination path, matching spec §6's
// "open_write_staging(dest) → writer + finalize(rename)".
type StagingWriter interface {
	io.Writer
	Finalize() error
	Discard() error
}

// Facade is the filesystem boundary contract.
type Facade interface {
	OpenRead(path string) (*os.File, fs.FileInfo, error)
	OpenWriteStaging(path string) (StagingWriter, error)
	Stat(path string, followSymlinks bool) (fs.FileInfo, error)
	Readdir(path string) ([]DirEntry, error)
	Mkdir(path string, mode fs.FileMode) error
	SetMetadata(path string, md Metadata) error
	Symlink(target, path string) error
	Hardlink(src, path string) error
	Mknod(path string, mode uint32, dev uint64) error
}

// OSFacade implements Facade directly against the os package, rooted at
// Root (a directory all paths are resolved relative to).
type OSFacade struct {
	Root string
}

func (f OSFacade) resolve(path string) string {
	if f.Root == "" {
		return path
	}
	return f.Root + "/" + path
}

func (f OSFacade) OpenRead(path string) (*os.File, fs.FileInfo, error) {
	file, err := os.Open(f.resolve(path))
	if err != nil {
		return nil, nil, err
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return file, st, nil
}

func (f OSFacade) OpenWriteStaging(path string) (StagingWriter, error) {
	pf, err := renameio.NewPendingFile(f.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("fsfacade: staging %s: %w", path, err)
	}
	return pendingFileAdapter{pf}, nil
}

type pendingFileAdapter struct {
	*renameio.PendingFile
}

func (p pendingFileAdapter) Finalize() error { return p.CloseAtomicallyReplace() }
func (p pendingFileAdapter) Discard() error  { return p.Cleanup() }

func (f OSFacade) Stat(path string, followSymlinks bool) (fs.FileInfo, error) {
	if followSymlinks {
		return os.Stat(f.resolve(path))
	}
	return os.Lstat(f.resolve(path))
}

func (f OSFacade) Readdir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(f.resolve(path))
	if err != nil {
		return nil, err
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, DirEntry{Name: e.Name(), IsDir: e.IsDir(), Mode: e.Type()})
	}
	return out, nil
}

// Mkdir creates path if it does not already exist, tolerating a
// destination directory that survived from a previous transfer.
func (f OSFacade) Mkdir(path string, mode fs.FileMode) error {
	if mode == 0 {
		mode = 0755
	}
	err := os.Mkdir(f.resolve(path), mode)
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("fsfacade: mkdir %s: %w", path, err)
	}
	return nil
}

func (f OSFacade) SetMetadata(path string, md Metadata) error {
	full := f.resolve(path)
	if md.Mode != 0 {
		if err := os.Chmod(full, md.Mode); err != nil {
			return fmt.Errorf("fsfacade: chmod %s: %w", path, err)
		}
	}
	if !md.Mtime.IsZero() {
		if err := os.Chtimes(full, md.Mtime, md.Mtime); err != nil {
			return fmt.Errorf("fsfacade: chtimes %s: %w", path, err)
		}
	}
	if md.HaveUID || md.HaveGID {
		uid, gid := -1, -1
		if md.HaveUID {
			uid = md.UID
		}
		if md.HaveGID {
			gid = md.GID
		}
		if err := os.Lchown(full, uid, gid); err != nil {
			return fmt.Errorf("fsfacade: chown %s: %w", path, err)
		}
	}
	return nil
}

func (f OSFacade) Symlink(target, path string) error {
	return renameio.Symlink(target, f.resolve(path))
}

func (f OSFacade) Hardlink(src, path string) error {
	return os.Link(f.resolve(src), f.resolve(path))
}

// Mknod creates a device node, using golang.org/x/sys/unix since the
// standard library has no portable syscall.Mknod wrapper with a stable
// signature across platforms.
func (f OSFacade) Mknod(path string, mode uint32, dev uint64) error {
	return unix.Mknod(f.resolve(path), mode, int(dev))
}
