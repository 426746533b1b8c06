// Package filelist encodes and decodes the directory-walk entry stream
// exchanged between sender and receiver (spec §4.9), including name
// prefix compression and the flags bitfield that governs which optional
// fields are present per entry. Grounded in the flag constants the
// teacher imports from github.com/kaiakz/rsync-os/rsync (re-declared
// locally in the root rsync package) and the wire shape described in
// rsync's flist.c.
package filelist

import (
	"fmt"
	"sort"

	"github.com/oferchen/rsync-sub027/internal/rsyncwire"
)

// Entry is one file, directory, symlink or device node in a file list.
type Entry struct {
	Name       string
	Mode       uint32
	Size       int64
	ModTime    int64
	UID        int32
	GID        int32
	HaveUID    bool
	HaveGID    bool
	LinkTarget string
	Rdev       uint32
	HaveRdev   bool
	HardlinkOf int // 1-based index into the list of a previous entry with the same inode; 0 means none.
}

const (
	flistTopLevel   = 1 << 0
	flistModeSame   = 1 << 1
	flistRdevSame   = 1 << 2
	flistUIDValid   = 1 << 3
	flistGIDValid   = 1 << 4
	flistNameSame   = 1 << 5
	flistNameLong   = 1 << 6
	flistTimeSame   = 1 << 7
	flistUIDSame    = 1 << 8
	flistGIDSame    = 1 << 9
	flistHlinked    = 1 << 10
	flistHlinkFirst = 1 << 11
)

const maxShortNameLen = 255

// IsSymlink/IsDevice/IsDir report the entry kind from its mode, matching
// the standard Unix S_IFMT encoding rsync's mode field carries. Exported
// so callers outside this package (internal/receiver, internal/sender)
// can branch on a wire-transmitted mode without redefining these masks.
func IsSymlink(mode uint32) bool { return mode&0170000 == 0120000 }
func IsDevice(mode uint32) bool {
	m := mode & 0170000
	return m == 0020000 || m == 0060000 // S_IFCHR, S_IFBLK
}
func IsDir(mode uint32) bool { return mode&0170000 == 0040000 }

func isSymlink(mode uint32) bool { return IsSymlink(mode) }
func isDevice(mode uint32) bool  { return IsDevice(mode) }
func isDir(mode uint32) bool     { return IsDir(mode) }

// WriteEntry encodes one entry against prev (the previously transmitted
// entry, or nil for the first), following the wire layout in spec §4.9:
// flags varint, name prefix length + suffix vstring, size varlong, mtime
// varlong (omitted when unchanged from prev), mode varint (omitted when
// unchanged), uid/gid varints when transmitted, symlink target vstring,
// rdev varint for device nodes, hardlink index varint for repeated
// inodes.
func WriteEntry(c *rsyncwire.Conn, prev *Entry, e *Entry) error {
	flags := uint32(0)
	if e.Name == "." {
		flags |= flistTopLevel
	}

	prefixLen := 0
	if prev != nil {
		prefixLen = commonPrefixLen(prev.Name, e.Name)
		if prefixLen > 0 {
			flags |= flistNameSame
		}
	}
	suffix := e.Name[prefixLen:]
	if len(suffix) > maxShortNameLen {
		flags |= flistNameLong
	}

	sameMode := prev != nil && prev.Mode == e.Mode
	if sameMode {
		flags |= flistModeSame
	}
	sameTime := prev != nil && prev.ModTime == e.ModTime
	if sameTime {
		flags |= flistTimeSame
	}
	if e.HaveUID {
		flags |= flistUIDValid
	}
	if e.HaveGID {
		flags |= flistGIDValid
	}
	sameUID := prev != nil && prev.HaveUID == e.HaveUID && prev.UID == e.UID
	if sameUID {
		flags |= flistUIDSame
	}
	sameGID := prev != nil && prev.HaveGID == e.HaveGID && prev.GID == e.GID
	if sameGID {
		flags |= flistGIDSame
	}
	sameRdev := prev != nil && isDevice(e.Mode) && prev.Rdev == e.Rdev
	if sameRdev {
		flags |= flistRdevSame
	}
	if e.HardlinkOf != 0 {
		flags |= flistHlinked
		if e.HardlinkOf == -1 {
			flags |= flistHlinkFirst
		}
	}

	if flags == 0 {
		// A genuinely all-zero flags byte collides with the
		// end-of-list sentinel in non-incremental mode (spec §4.9
		// "Termination"); rsync works around this with an extra
		// high bit when every other bit is clear.
		flags |= 1 << 12
	}

	if err := c.WriteVarint(flags); err != nil {
		return fmt.Errorf("filelist: writing flags: %w", err)
	}

	if flags&flistNameSame != 0 {
		if err := c.WriteByte(byte(prefixLen)); err != nil {
			return err
		}
	}
	if err := c.WriteVstring([]byte(suffix)); err != nil {
		return fmt.Errorf("filelist: writing name: %w", err)
	}

	if err := c.WriteVarlong(e.Size, 3); err != nil {
		return fmt.Errorf("filelist: writing size: %w", err)
	}

	if flags&flistTimeSame == 0 {
		if err := c.WriteVarlong(e.ModTime, 4); err != nil {
			return fmt.Errorf("filelist: writing mtime: %w", err)
		}
	}
	if flags&flistModeSame == 0 {
		if err := c.WriteVarint(e.Mode); err != nil {
			return fmt.Errorf("filelist: writing mode: %w", err)
		}
	}
	if flags&flistUIDSame == 0 && e.HaveUID {
		if err := c.WriteVarint(uint32(e.UID)); err != nil {
			return err
		}
	}
	if flags&flistGIDSame == 0 && e.HaveGID {
		if err := c.WriteVarint(uint32(e.GID)); err != nil {
			return err
		}
	}
	if isSymlink(e.Mode) {
		if err := c.WriteVstring([]byte(e.LinkTarget)); err != nil {
			return fmt.Errorf("filelist: writing link target: %w", err)
		}
	}
	if isDevice(e.Mode) && flags&flistRdevSame == 0 {
		if err := c.WriteVarint(e.Rdev); err != nil {
			return err
		}
	}
	if flags&flistHlinked != 0 && flags&flistHlinkFirst == 0 {
		if err := c.WriteVarint(uint32(e.HardlinkOf)); err != nil {
			return err
		}
	}

	return nil
}

// ReadEntry decodes one entry, or reports done=true at the end-of-list
// sentinel (a zero flags byte, spec §4.9 "Termination").
func ReadEntry(c *rsyncwire.Conn, prev *Entry) (e *Entry, done bool, err error) {
	flags, err := c.ReadVarint()
	if err != nil {
		return nil, false, fmt.Errorf("filelist: reading flags: %w", err)
	}
	if flags == 0 {
		return nil, true, nil
	}
	flags &^= 1 << 12 // clear the all-zero-flags escape bit, if set

	e = &Entry{}

	prefixLen := 0
	if flags&flistNameSame != 0 {
		b, err := c.ReadByte()
		if err != nil {
			return nil, false, err
		}
		prefixLen = int(b)
	}
	suffix, err := c.ReadVstring()
	if err != nil {
		return nil, false, fmt.Errorf("filelist: reading name: %w", err)
	}
	if prefixLen > 0 {
		if prev == nil || prefixLen > len(prev.Name) {
			return nil, false, fmt.Errorf("filelist: name prefix length %d exceeds previous name", prefixLen)
		}
		e.Name = prev.Name[:prefixLen] + string(suffix)
	} else {
		e.Name = string(suffix)
	}

	size, err := c.ReadVarlong(3)
	if err != nil {
		return nil, false, fmt.Errorf("filelist: reading size: %w", err)
	}
	e.Size = size

	if flags&flistTimeSame != 0 {
		if prev == nil {
			return nil, false, fmt.Errorf("filelist: TIME_SAME with no previous entry")
		}
		e.ModTime = prev.ModTime
	} else {
		t, err := c.ReadVarlong(4)
		if err != nil {
			return nil, false, fmt.Errorf("filelist: reading mtime: %w", err)
		}
		e.ModTime = t
	}

	if flags&flistModeSame != 0 {
		if prev == nil {
			return nil, false, fmt.Errorf("filelist: MODE_SAME with no previous entry")
		}
		e.Mode = prev.Mode
	} else {
		m, err := c.ReadVarint()
		if err != nil {
			return nil, false, fmt.Errorf("filelist: reading mode: %w", err)
		}
		e.Mode = m
	}

	if flags&flistUIDSame != 0 && prev != nil {
		e.UID, e.HaveUID = prev.UID, prev.HaveUID
	} else if flags&flistUIDValid != 0 {
		u, err := c.ReadVarint()
		if err != nil {
			return nil, false, err
		}
		e.UID, e.HaveUID = int32(u), true
	}
	if flags&flistGIDSame != 0 && prev != nil {
		e.GID, e.HaveGID = prev.GID, prev.HaveGID
	} else if flags&flistGIDValid != 0 {
		g, err := c.ReadVarint()
		if err != nil {
			return nil, false, err
		}
		e.GID, e.HaveGID = int32(g), true
	}

	if isSymlink(e.Mode) {
		target, err := c.ReadVstring()
		if err != nil {
			return nil, false, fmt.Errorf("filelist: reading link target: %w", err)
		}
		e.LinkTarget = string(target)
	}

	if isDevice(e.Mode) {
		if flags&flistRdevSame != 0 && prev != nil {
			e.Rdev = prev.Rdev
			e.HaveRdev = true
		} else {
			r, err := c.ReadVarint()
			if err != nil {
				return nil, false, err
			}
			e.Rdev, e.HaveRdev = r, true
		}
	}

	if flags&flistHlinked != 0 {
		if flags&flistHlinkFirst != 0 {
			e.HardlinkOf = -1
		} else {
			idx, err := c.ReadVarint()
			if err != nil {
				return nil, false, err
			}
			e.HardlinkOf = int(idx)
		}
	}

	return e, false, nil
}

// commonPrefixLen returns the length of the longest common prefix of a
// and b, capped at 255 (the wire format's single-byte prefix length).
func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n > maxShortNameLen {
		n = maxShortNameLen
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// SortEntries orders entries lexicographically by Name, matching the
// receiver-side resort spec §4.9 requires: "Entries are emitted in
// traversal order; the receiver sorts lexicographically by path after
// receipt."
func SortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
}
