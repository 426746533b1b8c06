package delta

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hooklift/assert"

	"github.com/oferchen/rsync-sub027/internal/checksum"
	"github.com/oferchen/rsync-sub027/internal/signature"
)

const testBlockLen = 64

func sign(t *testing.T, data []byte) *signature.FileSignature {
	t.Helper()
	sig, err := signature.Generate(bytes.NewReader(data), signature.LayoutParams{
		BlockLength: testBlockLen,
		Algorithm:   checksum.MD5,
		SeedFix:     true,
	})
	assert.Ok(t, err)
	return sig
}

// roundTrip generates a delta of target against basis and applies it,
// asserting the reconstructed bytes equal target exactly (spec §8 "round
// trip invariant").
func roundTrip(t *testing.T, basis, target []byte) []byte {
	t.Helper()
	if target == nil {
		target = []byte{}
	}

	sig := sign(t, basis)
	idx := signature.NewIndex(sig)
	gen := NewGenerator(idx, testBlockLen, checksum.MD5, 0, true)

	var tokens []Token
	err := gen.Generate(bytes.NewReader(target), func(tok Token) error {
		cp := tok
		if tok.Type == TokenLiteral {
			cp.Data = append([]byte(nil), tok.Data...)
		}
		tokens = append(tokens, cp)
		return nil
	})
	assert.Ok(t, err)

	if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEnd {
		t.Fatal("token stream must end with an End token")
	}

	i := 0
	next := func() (Token, error) {
		tok := tokens[i]
		i++
		return tok, nil
	}

	var out bytes.Buffer
	err = Apply(next, bytes.NewReader(basis), sig, &out, nil, ApplyOptions{})
	assert.Ok(t, err)

	if diff := cmp.Diff(target, out.Bytes()); diff != "" {
		t.Fatalf("reconstructed mismatch (-want +got):\n%s", diff)
	}
	return tokens2types(tokens)
}

func tokens2types(tokens []Token) []byte {
	out := make([]byte, len(tokens))
	for i, tok := range tokens {
		out[i] = byte(tok.Type)
	}
	return out
}

func TestRoundTripIdentical(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 48) // 768 bytes, multiple of block len
	types := roundTrip(t, data, data)
	for _, ty := range types[:len(types)-1] {
		if TokenType(ty) != TokenCopy {
			t.Fatalf("identical basis/target should be all copies, got type %d", ty)
		}
	}
}

func TestRoundTripNoCommonBlocks(t *testing.T) {
	basis := bytes.Repeat([]byte("A"), 256)
	target := bytes.Repeat([]byte("Z"), 300)
	roundTrip(t, basis, target)
}

func TestRoundTripEmptySource(t *testing.T) {
	basis := bytes.Repeat([]byte("x"), 256)
	roundTrip(t, basis, nil)
}

func TestRoundTripEmptyBasis(t *testing.T) {
	target := bytes.Repeat([]byte("y"), 300)
	roundTrip(t, nil, target)
}

func TestRoundTripExactlyOneBlock(t *testing.T) {
	data := bytes.Repeat([]byte("q"), testBlockLen)
	roundTrip(t, data, data)
}

func TestRoundTripShortTail(t *testing.T) {
	basis := bytes.Repeat([]byte("m"), testBlockLen*3)
	target := append(append([]byte{}, basis...), []byte("extra tail bytes not in basis")...)
	roundTrip(t, basis, target)
}

func TestRoundTripInsertedBytes(t *testing.T) {
	basis := bytes.Repeat([]byte("0123456789abcdef"), 20) // 320 bytes
	target := append(append([]byte{}, basis[:100]...), append([]byte(" INSERTED "), basis[100:]...)...)
	roundTrip(t, basis, target)
}

func TestLiteralChunking(t *testing.T) {
	basis := []byte{}
	target := bytes.Repeat([]byte("z"), ChunkSize*2+10)

	sig := sign(t, basis)
	idx := signature.NewIndex(sig)
	gen := NewGenerator(idx, testBlockLen, checksum.MD5, 0, true)

	var lits [][]byte
	err := gen.Generate(bytes.NewReader(target), func(tok Token) error {
		if tok.Type == TokenLiteral {
			lits = append(lits, append([]byte(nil), tok.Data...))
		}
		return nil
	})
	assert.Ok(t, err)

	for _, l := range lits {
		if len(l) > ChunkSize {
			t.Fatalf("literal token length %d exceeds ChunkSize %d", len(l), ChunkSize)
		}
	}
}

func TestApplyRejectsOutOfRangeBlock(t *testing.T) {
	sig := sign(t, bytes.Repeat([]byte("a"), testBlockLen))

	tokens := []Token{
		{Type: TokenCopy, BlockIndex: 99},
		{Type: TokenEnd},
	}
	i := 0
	next := func() (Token, error) {
		tok := tokens[i]
		i++
		return tok, nil
	}

	var out bytes.Buffer
	err := Apply(next, bytes.NewReader(nil), sig, &out, nil, ApplyOptions{})
	assert.Cond(t, err != nil, "expected an error for an out-of-range block index")
}
