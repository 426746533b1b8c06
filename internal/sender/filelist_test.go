package sender

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/oferchen/rsync-sub027/internal/filelist"
	"github.com/oferchen/rsync-sub027/internal/rsyncopts"
	"github.com/oferchen/rsync-sub027/internal/rsyncwire"
)

func writeTree(t *testing.T, root string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "top.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("top.txt", filepath.Join(root, "link")); err != nil {
		t.Fatal(err)
	}
}

func newTransfer(root string) *Transfer {
	return New(&rsyncwire.Conn{}, rsyncopts.New(), root, 0, false)
}

func TestBuildFileListWalksTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	st := newTransfer(root)
	entries, err := st.BuildFileList([]string{"."})
	if err != nil {
		t.Fatalf("BuildFileList: %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	want := []string{".", "link", "sub", "sub/nested.txt", "top.txt"}
	sort.Strings(want)
	if len(names) != len(want) {
		t.Fatalf("got names %q, want %q", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got names %q, want %q", names, want)
		}
	}
}

func TestBuildFileListModes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	st := newTransfer(root)
	entries, err := st.BuildFileList(nil)
	if err != nil {
		t.Fatalf("BuildFileList: %v", err)
	}

	byName := make(map[string]*filelist.Entry)
	for _, e := range entries {
		byName[e.Name] = e
	}

	top, ok := byName["top.txt"]
	if !ok {
		t.Fatal("missing top.txt entry")
	}
	if top.Mode&0170000 != 0100000 {
		t.Errorf("top.txt mode = %o, want regular file bit set", top.Mode)
	}
	if top.Size != 5 {
		t.Errorf("top.txt size = %d, want 5", top.Size)
	}

	sub, ok := byName["sub"]
	if !ok {
		t.Fatal("missing sub entry")
	}
	if sub.Mode&0170000 != 0040000 {
		t.Errorf("sub mode = %o, want directory bit set", sub.Mode)
	}

	link, ok := byName["link"]
	if !ok {
		t.Fatal("missing link entry")
	}
	if link.Mode&0170000 != 0120000 {
		t.Errorf("link mode = %o, want symlink bit set", link.Mode)
	}
	if link.LinkTarget != "top.txt" {
		t.Errorf("link target = %q, want top.txt", link.LinkTarget)
	}
}

func TestSendFileListRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root)

	st := newTransfer(root)
	entries, err := st.BuildFileList([]string{"."})
	if err != nil {
		t.Fatalf("BuildFileList: %v", err)
	}

	var buf bytes.Buffer
	st.Conn = &rsyncwire.Conn{Reader: &buf, Writer: &buf}
	if err := st.SendFileList(entries); err != nil {
		t.Fatalf("SendFileList: %v", err)
	}

	got, err := filelist.ReadList(st.Conn)
	if err != nil {
		t.Fatalf("ReadList: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
}

func TestBlockLength(t *testing.T) {
	root := t.TempDir()
	st := newTransfer(root)

	f := &File{Size: 1 << 20}
	if got := st.blockLength(f); got <= 0 {
		t.Errorf("blockLength(1MiB) = %d, want > 0", got)
	}

	st.Opts.BlockSize = 4096
	if got := st.blockLength(f); got != 4096 {
		t.Errorf("blockLength with explicit BlockSize = %d, want 4096", got)
	}
}
