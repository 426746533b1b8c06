package signature

import "github.com/oferchen/rsync-sub027/internal/checksum"

// Index is a hash map from rolling checksum to the candidate blocks
// sharing that value, per spec §4.6. Collisions are disambiguated by
// strong-digest comparison at lookup time. Grounded in
// SpoonOil-kitty/tools/rsync/algorithm.go's hash_lookup map[uint32][]BlockHash.
type Index struct {
	buckets map[checksum.Digest][]*Block
}

// NewIndex builds an Index over every block of sig.
func NewIndex(sig *FileSignature) *Index {
	idx := &Index{buckets: make(map[checksum.Digest][]*Block, len(sig.Blocks))}
	for i := range sig.Blocks {
		b := &sig.Blocks[i]
		idx.buckets[b.Rolling] = append(idx.buckets[b.Rolling], b)
	}
	return idx
}

// Candidates returns the blocks sharing rolling digest d, in the order
// they were inserted (signature order), giving a stable lowest-file-
// offset tie-break when the caller picks the first strong match.
func (idx *Index) Candidates(d checksum.Digest) []*Block {
	return idx.buckets[d]
}

// Lookup finds the first candidate block whose length and strong digest
// match window exactly, per spec §4.6 step 2. strongOf computes the
// (possibly truncated) strong digest of window the same way Generate did
// for the signature being searched.
func (idx *Index) Lookup(d checksum.Digest, window []byte, strongOf func([]byte) []byte) *Block {
	candidates := idx.buckets[d]
	if len(candidates) == 0 {
		return nil
	}
	var strong []byte
	for _, c := range candidates {
		if c.Length != len(window) {
			continue
		}
		if strong == nil {
			strong = strongOf(window)
		}
		if bytesEqual(strong, c.Strong) {
			return c
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
