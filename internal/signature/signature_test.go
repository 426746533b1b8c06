package signature

import (
	"bytes"
	"testing"

	"github.com/oferchen/rsync-sub027/internal/checksum"
)

func TestGenerateBlockLengths(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 512) // 4096 bytes
	sig, err := Generate(bytes.NewReader(data), LayoutParams{
		BlockLength: 1024,
		Algorithm:   checksum.MD5,
		Seed:        0,
		SeedFix:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sig.Blocks) != 4 {
		t.Fatalf("got %d blocks, want 4", len(sig.Blocks))
	}
	for i, b := range sig.Blocks {
		if b.Length != 1024 {
			t.Errorf("block %d length = %d, want 1024", i, b.Length)
		}
		if b.FileOffset != int64(i*1024) {
			t.Errorf("block %d offset = %d, want %d", i, b.FileOffset, i*1024)
		}
	}
}

func TestGenerateShortTail(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1023) // one block length minus one byte
	sig, err := Generate(bytes.NewReader(data), LayoutParams{
		BlockLength: 1024,
		Algorithm:   checksum.MD5,
		SeedFix:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sig.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(sig.Blocks))
	}
	if sig.Blocks[0].Length != 1023 {
		t.Errorf("tail block length = %d, want 1023", sig.Blocks[0].Length)
	}
}

func TestBlockLengthClamp(t *testing.T) {
	if got := BlockLength(0); got != minBlockLength {
		t.Errorf("BlockLength(0) = %d, want %d", got, minBlockLength)
	}
	if got := BlockLength(1 << 40); got != maxBlockLength {
		t.Errorf("BlockLength(huge) = %d, want %d", got, maxBlockLength)
	}
}

func TestIndexLookup(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 512)
	sig, err := Generate(bytes.NewReader(data), LayoutParams{
		BlockLength: 1024,
		Algorithm:   checksum.MD5,
		SeedFix:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	idx := NewIndex(sig)

	window := data[1024:2048]
	var r checksum.Rolling
	d := r.Full(window)

	strongOf := func(w []byte) []byte {
		s := checksum.New(checksum.MD5, 0, true)
		s.Write(w)
		return s.Sum(nil)
	}

	match := idx.Lookup(d, window, strongOf)
	if match == nil {
		t.Fatal("expected a match for block 1's contents")
	}
	// Every block holds identical bytes, so the tie goes to the block with
	// the lowest file offset.
	if match.Index != 0 {
		t.Errorf("matched block index = %d, want 0", match.Index)
	}
}
