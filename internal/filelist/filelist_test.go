package filelist

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/oferchen/rsync-sub027/internal/rsyncwire"
)

func roundTripList(t *testing.T, entries []*Entry) []*Entry {
	t.Helper()
	var buf bytes.Buffer
	c := &rsyncwire.Conn{Reader: &buf, Writer: &buf}

	if err := WriteList(c, entries); err != nil {
		t.Fatalf("WriteList: %v", err)
	}
	got, err := ReadList(c)
	if err != nil {
		t.Fatalf("ReadList: %v", err)
	}
	return got
}

func TestRoundTripBasic(t *testing.T) {
	entries := []*Entry{
		{Name: ".", Mode: 040755, Size: 0, ModTime: 1000},
		{Name: "a.txt", Mode: 0100644, Size: 42, ModTime: 1000, HaveUID: true, UID: 1000, HaveGID: true, GID: 1000},
		{Name: "a/b.txt", Mode: 0100644, Size: 100, ModTime: 2000, HaveUID: true, UID: 1000, HaveGID: true, GID: 1000},
		{Name: "a/c.txt", Mode: 0100644, Size: 0, ModTime: 2000, HaveUID: true, UID: 1000, HaveGID: true, GID: 1000},
	}
	got := roundTripList(t, entries)

	want := append([]*Entry{}, entries...)
	SortEntries(want)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPrefixCompression(t *testing.T) {
	entries := []*Entry{
		{Name: "dir/one.txt", Mode: 0100644, Size: 1, ModTime: 5},
		{Name: "dir/two.txt", Mode: 0100644, Size: 1, ModTime: 5},
	}
	var buf bytes.Buffer
	c := &rsyncwire.Conn{Reader: &buf, Writer: &buf}
	if err := WriteList(c, entries); err != nil {
		t.Fatal(err)
	}

	// "dir/one.txt" and "dir/two.txt" share the 4-byte prefix "dir/" (they
	// diverge at the 5th byte); make sure the wire form is shorter than
	// the same two entries with names that share no prefix, confirming
	// prefix compression is actually active.
	var plain bytes.Buffer
	pc := &rsyncwire.Conn{Reader: &plain, Writer: &plain}
	if err := WriteList(pc, []*Entry{
		{Name: "dir/one.txt", Mode: 0100644, Size: 1, ModTime: 5},
		{Name: "xyz/two.txt", Mode: 0100644, Size: 1, ModTime: 5},
	}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() >= plain.Len() {
		t.Fatalf("encoded size %d does not look prefix-compressed (no shared prefix = %d)", buf.Len(), plain.Len())
	}
}

func TestSameModeTimeOmitted(t *testing.T) {
	entries := []*Entry{
		{Name: "a", Mode: 0100644, Size: 1, ModTime: 100},
		{Name: "b", Mode: 0100644, Size: 1, ModTime: 100},
	}
	got := roundTripList(t, entries)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Mode != got[1].Mode || got[0].ModTime != got[1].ModTime {
		t.Fatal("MODE_SAME/TIME_SAME compression round trip lost the shared values")
	}
}

func TestSymlinkEntry(t *testing.T) {
	entries := []*Entry{
		{Name: "link", Mode: 0120777, Size: 0, ModTime: 1, LinkTarget: "/etc/passwd"},
	}
	got := roundTripList(t, entries)
	if len(got) != 1 || got[0].LinkTarget != "/etc/passwd" {
		t.Fatalf("symlink target not preserved: %+v", got)
	}
}

func TestHardlinkEntry(t *testing.T) {
	entries := []*Entry{
		{Name: "first", Mode: 0100644, Size: 10, ModTime: 1, HardlinkOf: -1},
		{Name: "second", Mode: 0100644, Size: 10, ModTime: 1, HardlinkOf: 1},
	}
	got := roundTripList(t, entries)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	var first, second *Entry
	for _, e := range got {
		if e.Name == "first" {
			first = e
		} else {
			second = e
		}
	}
	if first.HardlinkOf != -1 {
		t.Errorf("first.HardlinkOf = %d, want -1", first.HardlinkOf)
	}
	if second.HardlinkOf != 1 {
		t.Errorf("second.HardlinkOf = %d, want 1", second.HardlinkOf)
	}
}

func TestEmptyList(t *testing.T) {
	got := roundTripList(t, nil)
	if len(got) != 0 {
		t.Fatalf("got %d entries, want 0", len(got))
	}
}

func TestValidateRejectsForwardHardlink(t *testing.T) {
	entries := []*Entry{
		{Name: "first", HardlinkOf: 2},
		{Name: "second", HardlinkOf: -1},
	}
	if err := Validate(entries); err == nil {
		t.Fatal("expected an error for a hardlink index referencing a later entry")
	}
}

func TestIndexOf(t *testing.T) {
	entries := []*Entry{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	if IndexOf(entries, "b") != 1 {
		t.Error("IndexOf(b) should be 1")
	}
	if IndexOf(entries, "missing") != -1 {
		t.Error("IndexOf(missing) should be -1")
	}
}
