//go:build linux || darwin

package receiver

import (
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/oferchen/rsync-sub027/internal/fsfacade"
)

// metadataFor builds the fsfacade.Metadata to apply for f, honoring
// which attributes Opts says to preserve.
func metadataFor(rt *Transfer, f *File) fsfacade.Metadata {
	md := fsfacade.Metadata{}
	if rt.Opts.PreservePerms() {
		md.Mode = os.FileMode(f.Mode & 0o7777)
	}
	if rt.Opts.PreserveMTimes() {
		md.Mtime = time.Unix(f.ModTime, 0)
	}
	return md
}

// setPerms applies f's mode, mtime and (when requested) ownership to
// the just-written destination file. rsync's generator.c:set_perms,
// called here from the receiver side since this module merges the
// generator and receiver roles into one Transfer.
func (rt *Transfer) setPerms(f *File) error {
	md := metadataFor(rt, f)
	if err := rt.DestRoot.SetMetadata(f.Name, md); err != nil {
		return err
	}

	if !f.HaveUID && !f.HaveGID {
		return nil
	}
	local := filepath.Join(rt.Dest, f.Name)
	st, err := rt.DestRoot.Stat(f.Name, false)
	if err != nil {
		return err
	}
	_, err = rt.setUid(f, local, st)
	return err
}

var amRoot = os.Getuid() == 0

var inGroup = func() map[uint32]bool {
	m := make(map[uint32]bool)
	u, err := user.Current()
	if err != nil {
		return m
	}
	gids, err := u.GroupIds()
	if err != nil {
		return m
	}
	for _, gidString := range gids {
		gid64, err := strconv.ParseInt(gidString, 0, 64)
		if err != nil {
			return m
		}
		m[uint32(gid64)] = true
	}
	return m
}()

// setUid applies f's UID/GID to the just-written local file, when the
// entry actually carries ownership (f.HaveUID/f.HaveGID, populated by
// the sender only under PreserveUid/PreserveGid) and the process has
// the privilege to make that change: chown requires root, chgrp
// requires root or membership in the target group. rsync's
// generator.c:set_uid_gid.
func (rt *Transfer) setUid(f *File, local string, st fs.FileInfo) (fs.FileInfo, error) {
	stt := st.Sys().(*syscall.Stat_t)

	changeUid := rt.Opts.PreserveUid() &&
		f.HaveUID &&
		amRoot &&
		stt.Uid != uint32(f.UID)

	changeGid := rt.Opts.PreserveGid() &&
		f.HaveGID &&
		(amRoot || inGroup[uint32(f.GID)]) &&
		stt.Gid != uint32(f.GID)

	if !changeUid && !changeGid {
		return st, nil
	}

	uid := stt.Uid
	if changeUid {
		uid = uint32(f.UID)
	}
	gid := stt.Gid
	if changeGid {
		gid = uint32(f.GID)
	}
	if err := os.Lchown(local, int(uid), int(gid)); err != nil {
		return nil, err
	}
	return rt.DestRoot.Stat(f.Name, false)
}
