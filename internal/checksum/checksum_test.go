package checksum

import (
	"bytes"
	"testing"

	"github.com/hooklift/assert"
)

func TestRollingMatchesFullRecompute(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 4)
	const window = 16

	var r Rolling
	r.Full(data[:window])

	for i := 1; i+window <= len(data); i++ {
		got := r.Roll(data[i-1], data[i+window-1])

		var fresh Rolling
		want := fresh.Full(data[i : i+window])

		if got != want {
			t.Fatalf("position %d: rolling digest %d != recomputed %d", i, got, want)
		}
	}
}

func TestRollingEmptyWindow(t *testing.T) {
	var r Rolling
	got := r.Full(nil)
	assert.Cond(t, got == 0, "empty window should digest to zero")
}

func TestStrongAlgorithms(t *testing.T) {
	for _, alg := range []Algorithm{MD4, MD5, XXH64, XXH3128, SHA1, SHA256} {
		d := New(alg, 1234, true)
		if _, err := d.Write([]byte("hello world")); err != nil {
			t.Fatalf("%v: write: %v", alg, err)
		}
		sum := d.Sum(nil)
		if len(sum) != alg.Size() {
			t.Errorf("%v: digest length = %d, want %d", alg, len(sum), alg.Size())
		}
	}
}

func TestStrongSeedChangesDigest(t *testing.T) {
	a := New(MD5, 1, true)
	a.Write([]byte("block"))
	sumA := a.Sum(nil)

	b := New(MD5, 2, true)
	b.Write([]byte("block"))
	sumB := b.Sum(nil)

	if bytes.Equal(sumA, sumB) {
		t.Error("expected different seeds to produce different digests")
	}
}

func TestStrongSeedChangesDigestNativeSeeding(t *testing.T) {
	for _, alg := range []Algorithm{XXH64, XXH3128} {
		a := New(alg, 1, true)
		a.Write([]byte("block"))
		sumA := a.Sum(nil)

		b := New(alg, 2, true)
		b.Write([]byte("block"))
		sumB := b.Sum(nil)

		if bytes.Equal(sumA, sumB) {
			t.Errorf("%v: expected different seeds to produce different digests", alg)
		}
	}
}

func TestDefaultForProtocol(t *testing.T) {
	if DefaultForProtocol(29) != MD4 {
		t.Error("expected MD4 default below protocol 30")
	}
	if DefaultForProtocol(30) != MD5 {
		t.Error("expected MD5 default at protocol 30")
	}
}
