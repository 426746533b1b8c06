package receiver_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/oferchen/rsync-sub027/internal/fsfacade"
	"github.com/oferchen/rsync-sub027/internal/receiver"
	"github.com/oferchen/rsync-sub027/internal/rsyncopts"
	"github.com/oferchen/rsync-sub027/internal/rsyncos"
	"github.com/oferchen/rsync-sub027/internal/rsyncwire"
	"github.com/oferchen/rsync-sub027/internal/sender"
)

// TestSenderReceiverRoundTrip drives a full send/receive conversation
// over an in-memory net.Pipe, without any daemon handshake or argument
// parsing, to exercise file-list exchange, signature generation and
// delta application end to end.
func TestSenderReceiverRoundTrip(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	if err := os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("hello, world"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(srcRoot, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcRoot, "sub", "b.txt"), []byte("nested content"), 0644); err != nil {
		t.Fatal(err)
	}

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	opts := rsyncopts.New()

	errCh := make(chan error, 1)
	go func() {
		crd := &rsyncwire.CountingReader{R: serverConn}
		cwr := &rsyncwire.CountingWriter{W: serverConn}
		st := sender.New(&rsyncwire.Conn{Reader: crd, Writer: cwr}, opts, srcRoot, 0, false)
		_, err := st.Do(crd, cwr, []string{"."}, nil)
		errCh <- err
	}()

	c := &rsyncwire.Conn{Reader: clientConn, Writer: clientConn}
	rt := receiver.New(c, opts, rsyncos.Env{}, dstRoot, fsfacade.OSFacade{Root: dstRoot}, 0, false)

	fileList, err := rt.ReceiveFileList()
	if err != nil {
		t.Fatalf("ReceiveFileList: %v", err)
	}
	if _, err := rt.Do(c, fileList, false /* noReport */); err != nil {
		t.Fatalf("receiver Do: %v", err)
	}

	if err := <-errCh; err != nil {
		t.Fatalf("sender Do: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dstRoot, "a.txt"))
	if err != nil {
		t.Fatalf("reading a.txt: %v", err)
	}
	if diff := cmp.Diff("hello, world", string(got)); diff != "" {
		t.Errorf("a.txt contents (-want +got):\n%s", diff)
	}

	got, err = os.ReadFile(filepath.Join(dstRoot, "sub", "b.txt"))
	if err != nil {
		t.Fatalf("reading sub/b.txt: %v", err)
	}
	if diff := cmp.Diff("nested content", string(got)); diff != "" {
		t.Errorf("sub/b.txt contents (-want +got):\n%s", diff)
	}
}
