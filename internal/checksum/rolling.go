// Package checksum implements the rolling and strong digest primitives
// that drive block matching: a Mark Adler-style weak checksum updated in
// O(1) per byte, and a pluggable strong checksum enumerated over several
// concrete algorithms.
package checksum

const rollingMod = 1 << 16

// Rolling is the streaming state of the weak, incrementally updatable
// checksum. s1 and s2 are the two 16-bit halves described in spec §3;
// length is the current window length. The math mirrors
// SpoonOil-kitty/tools/rsync/algorithm.go's rolling_checksum, cross
// checked against c4milo-gsync/gsync.go's independent implementation of
// the same Adler-32-derived scheme. Unlike kitty's version (which caches
// the outgoing byte internally), the caller supplies both the outgoing
// and incoming byte on every Roll call, matching spec §3's literal
// roll-in/roll-out contract and letting the caller's own window buffer be
// the single source of truth for window contents.
type Rolling struct {
	s1, s2 uint32
	length uint32
}

// Digest is the 32-bit combined value s1 + mod*s2.
type Digest uint32

// Full computes the rolling checksum from scratch over data, resetting
// any previous state.
func (r *Rolling) Full(data []byte) Digest {
	var s1, s2 uint32
	l := uint32(len(data))
	for i, b := range data {
		s1 += uint32(b)
		s2 += (l - uint32(i)) * uint32(b)
	}
	r.length = l
	r.s1 = s1 % rollingMod
	r.s2 = s2 % rollingMod
	return r.Sum()
}

// Roll advances the window by one byte: outByte is the byte leaving at
// the front (window[0] before the call), inByte is the byte entering at
// the back. Window length is unchanged.
func (r *Rolling) Roll(outByte, inByte byte) Digest {
	r.s1 = (r.s1 - uint32(outByte) + uint32(inByte)) % rollingMod
	r.s2 = (r.s2 - r.length*uint32(outByte) + r.s1) % rollingMod
	return r.Sum()
}

// Sum returns the current combined digest without mutating state.
func (r *Rolling) Sum() Digest {
	return Digest(r.s1 + rollingMod*r.s2)
}

// Reset clears all state.
func (r *Rolling) Reset() {
	r.s1, r.s2, r.length = 0, 0, 0
}
