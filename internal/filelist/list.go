package filelist

import (
	"fmt"

	"github.com/oferchen/rsync-sub027/internal/rsyncwire"
)

// WriteList encodes entries in full non-incremental mode: every entry
// followed by the zero-flags terminator (spec §4.9 "Termination").
// Non-incremental mode is the only one needed to exercise name prefix
// compression end to end. WriteSegment/ReadSegment below encode
// per-directory segments, but without INC_RECURSE's NDX_FLIST_OFFSET
// framing.
func WriteList(c *rsyncwire.Conn, entries []*Entry) error {
	var prev *Entry
	for _, e := range entries {
		if err := WriteEntry(c, prev, e); err != nil {
			return err
		}
		prev = e
	}
	return c.WriteVarint(0)
}

// ReadList decodes a full non-incremental file list, sorting it
// lexicographically by path as spec §4.9 requires of the receiver.
func ReadList(c *rsyncwire.Conn) ([]*Entry, error) {
	var entries []*Entry
	var prev *Entry
	for {
		e, done, err := ReadEntry(c, prev)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		entries = append(entries, e)
		prev = e
	}
	SortEntries(entries)
	return entries, nil
}

// Segment is one INC_RECURSE-style batch: the entries for a single
// directory level plus BaseIndex, their starting position in the whole
// transfer. BaseIndex is not written to the wire; no NDX_FLIST_OFFSET
// indexing is encoded by this package.
type Segment struct {
	BaseIndex int
	Entries   []*Entry
}

// WriteSegment encodes one incremental-recursion segment: its entries
// followed by the same zero-flags terminator WriteList uses. No
// rsync.NDX_FLIST_EOF sentinel is written.
func WriteSegment(c *rsyncwire.Conn, seg Segment) error {
	var prev *Entry
	for _, e := range seg.Entries {
		if err := WriteEntry(c, prev, e); err != nil {
			return err
		}
		prev = e
	}
	return c.WriteVarint(0)
}

// ReadSegment decodes one incremental-recursion segment.
func ReadSegment(c *rsyncwire.Conn, baseIndex int) (Segment, error) {
	var entries []*Entry
	var prev *Entry
	for {
		e, done, err := ReadEntry(c, prev)
		if err != nil {
			return Segment{}, err
		}
		if done {
			break
		}
		entries = append(entries, e)
		prev = e
	}
	return Segment{BaseIndex: baseIndex, Entries: entries}, nil
}

// IndexOf returns the position of name in entries, or -1. Grounded in
// the teacher's unfinished internal/receiver/do.go findInFileList stub
// (referenced there but never implemented), completed here as a plain
// linear scan since file lists are sorted and typically small enough
// that a map index would be premature.
func IndexOf(entries []*Entry, name string) int {
	for i, e := range entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks structural invariants WriteEntry/ReadEntry rely on:
// hardlink indices must refer to an earlier entry, and non-first
// entries in an incremental segment must not claim TIME_SAME/MODE_SAME
// against a nonexistent previous entry (ReadEntry already enforces the
// latter; this additionally catches out-of-range hardlink references
// that would otherwise only surface when the receiver tries to resolve
// them).
func Validate(entries []*Entry) error {
	for i, e := range entries {
		if e.HardlinkOf > 0 && e.HardlinkOf > i {
			return fmt.Errorf("filelist: entry %d (%s) references hardlink index %d after itself", i, e.Name, e.HardlinkOf)
		}
	}
	return nil
}
