package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"hash"

	sha256simd "github.com/minio/sha256-simd"
	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/md4"
)

// Algorithm enumerates the strong-digest choices. Per spec §9, strong
// checksums are represented as a sum type with a dispatch function at the
// hot path (New), not as dynamic vtable dispatch through interfaces
// implemented ad hoc per call site.
type Algorithm byte

const (
	MD4 Algorithm = iota
	MD5
	XXH64
	XXH3128
	// SHA1 and SHA256 are enrichment algorithms recovered from
	// original_source/crates/checksums's ChecksumStrategy enumeration;
	// they are never negotiated automatically (upstream rsync peers do
	// not advertise them) but are selectable via explicit configuration.
	SHA1
	SHA256
)

func (a Algorithm) String() string {
	switch a {
	case MD4:
		return "md4"
	case MD5:
		return "md5"
	case XXH64:
		return "xxh64"
	case XXH3128:
		return "xxh3-128"
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	default:
		return fmt.Sprintf("algorithm(%d)", byte(a))
	}
}

// Size returns the native digest width in bytes for the algorithm.
func (a Algorithm) Size() int {
	switch a {
	case MD4, MD5, XXH3128:
		return 16
	case XXH64:
		return 8
	case SHA1:
		return 20
	case SHA256:
		return 32
	default:
		return 0
	}
}

// DefaultForProtocol returns the strong-checksum algorithm upstream rsync
// selects by default for the given negotiated protocol version: MD4
// before protocol 30, MD5 from 30 onward.
func DefaultForProtocol(protocolVersion int) Algorithm {
	if protocolVersion < 30 {
		return MD4
	}
	return MD5
}

// Strong is satisfied by every strong-digest implementation: update with
// bytes, finalize to a digest. It intentionally mirrors hash.Hash's
// Write/Sum shape so stdlib and third-party hash.Hash implementations can
// be adapted directly.
type Strong interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
	Size() int
}

// AsHash adapts a Strong digest to hash.Hash, for callers (such as
// internal/delta's applicator) that need the two methods Strong
// doesn't carry. A digest returned by New already satisfies Strong's
// Write/Sum/Size; AsHash only needs to supply Reset and BlockSize.
// Reset is a no-op since none of this package's callers reuse a
// digest instance after finalizing it.
func AsHash(s Strong) hash.Hash {
	return hashAdapter{s}
}

type hashAdapter struct {
	Strong
}

func (hashAdapter) Reset()         {}
func (hashAdapter) BlockSize() int { return 1 }

// New constructs a Strong digest for the given algorithm, mixing in seed
// per protocol rules: seedFix true means CHKSUM_SEED_FIX ordering (seed
// bytes written before any data, protocol >= 30); seedFix false means the
// legacy ordering used by MD4 on protocol < 30, where upstream rsync
// appends the seed after the data instead.
func New(a Algorithm, seed int32, seedFix bool) Strong {
	var h hash.Hash
	switch a {
	case MD4:
		h = md4.New()
	case MD5:
		h = md5.New()
	case XXH64:
		return &xxh64Digest{h: xxhash.NewWithSeed(uint64(uint32(seed)))}
	case XXH3128:
		return &xxh3Digest{h: xxh3.NewSeed(uint64(uint32(seed)))}
	case SHA1:
		h = sha1.New()
	case SHA256:
		h = sha256simd.New()
	default:
		panic(fmt.Sprintf("checksum: unknown algorithm %v", a))
	}

	if seedFix {
		var seedBytes [4]byte
		binary.LittleEndian.PutUint32(seedBytes[:], uint32(seed))
		h.Write(seedBytes[:])
		return h
	}
	return &seedAppendedDigest{h: h, seed: seed}
}

// seedAppendedDigest defers writing the seed until Sum is called,
// matching the legacy (protocol < 30) MD4 ordering where the seed is
// mixed in after the block data rather than before it.
type seedAppendedDigest struct {
	h    hash.Hash
	seed int32
}

func (d *seedAppendedDigest) Write(p []byte) (int, error) { return d.h.Write(p) }
func (d *seedAppendedDigest) Size() int                   { return d.h.Size() }

// Sum appends the seed after the written data and finalizes. Callers
// must call Sum at most once per digest instance: hash.Hash does not
// support cloning, so a second call would mix the seed bytes into the
// running state twice. Every caller in this module (signature
// generation, delta verification) finalizes a digest exactly once.
func (d *seedAppendedDigest) Sum(b []byte) []byte {
	var seedBytes [4]byte
	binary.LittleEndian.PutUint32(seedBytes[:], uint32(d.seed))
	d.h.Write(seedBytes[:])
	return d.h.Sum(b)
}

// xxh64Digest adapts github.com/cespare/xxhash/v2 to the Strong
// interface, mixing the seed via the algorithm's native seeding instead
// of a data-stream write (xxhash.NewWithSeed).
type xxh64Digest struct {
	h *xxhash.Digest
}

func (d *xxh64Digest) Write(p []byte) (int, error) { return d.h.Write(p) }
func (d *xxh64Digest) Size() int                   { return 8 }
func (d *xxh64Digest) Sum(b []byte) []byte {
	sum := d.h.Sum64()
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], sum)
	return append(b, out[:]...)
}

// xxh3Digest adapts github.com/zeebo/xxh3 to the Strong interface,
// producing the 128-bit variant.
type xxh3Digest struct {
	h *xxh3.Hasher
}

func (d *xxh3Digest) Write(p []byte) (int, error) { return d.h.Write(p) }
func (d *xxh3Digest) Size() int                   { return 16 }
func (d *xxh3Digest) Sum(b []byte) []byte {
	sum := d.h.Sum128()
	var out [16]byte
	binary.BigEndian.PutUint64(out[0:8], sum.Hi)
	binary.BigEndian.PutUint64(out[8:16], sum.Lo)
	return append(b, out[:]...)
}
