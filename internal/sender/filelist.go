//go:build linux || darwin

package sender

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/oferchen/rsync-sub027/internal/filelist"
)

// BuildFileList walks paths (relative to st.Root) and returns the
// sender's file list, rooted at ".". rsync's flist.c:send_file_list,
// generalized from the teacher's single-root filepath.Walk in
// internal/rsyncd/rsyncd.go:sendFileList onto filelist.Entry instead of
// an inline byte encoding.
func (st *Transfer) BuildFileList(paths []string) ([]*File, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var entries []*File
	seen := make(map[string]bool)

	for _, p := range paths {
		walkRoot := filepath.Join(st.Root, p)
		err := filepath.Walk(walkRoot, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				st.IOErrors++
				st.Logger.Printf("walk %s: %v", path, err)
				return nil
			}
			name := strings.TrimPrefix(path, st.Root+string(filepath.Separator))
			if path == st.Root {
				name = "."
			}
			if seen[name] {
				return nil
			}
			seen[name] = true
			entries = append(entries, st.entryFor(path, name, info))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	filelist.SortEntries(entries)
	return entries, nil
}

// entryFor builds the file list entry for a single walked path. UID/GID
// are only populated when the transfer was asked to preserve them; an
// entry with HaveUID/HaveGID false carries no ownership claim onto the
// wire, matching filelist.WriteEntry/ReadEntry's presence rules.
func (st *Transfer) entryFor(path, name string, info fs.FileInfo) *File {
	e := &File{
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
		Mode:    uint32(info.Mode().Perm()),
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		e.Mode |= 0120000
		target, err := os.Readlink(path)
		if err == nil {
			e.LinkTarget = target
		}
	case info.IsDir():
		e.Mode |= 0040000
	default:
		e.Mode |= 0100000
	}

	if st.Opts.PreserveUid() || st.Opts.PreserveGid() {
		if stt, ok := info.Sys().(*syscall.Stat_t); ok {
			if st.Opts.PreserveUid() {
				e.UID = int32(stt.Uid)
				e.HaveUID = true
			}
			if st.Opts.PreserveGid() {
				e.GID = int32(stt.Gid)
				e.HaveGID = true
			}
		}
	}
	return e
}

// SendFileList transmits fileList in full, non-incremental form.
func (st *Transfer) SendFileList(fileList []*File) error {
	return filelist.WriteList(st.Conn, fileList)
}
