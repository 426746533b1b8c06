// Package delta implements the streaming delta generator (§4.7) and
// applicator (§4.8): the sliding-window encoder that emits copy/literal
// tokens, and the decoder that reconstructs a target file from a basis
// plus those tokens. The sliding-window engine is grounded in
// SpoonOil-kitty/tools/rsync/algorithm.go's diff/ApplyDelta, generalized
// from kitty's four-op vocabulary (OpBlock/OpBlockRange/OpData/OpHash) to
// this spec's three-token vocabulary (CopyBlock/Literal/End).
package delta

import (
	"io"

	"github.com/oferchen/rsync-sub027/internal/checksum"
	"github.com/oferchen/rsync-sub027/internal/signature"
)

// TokenType discriminates the tagged union described in spec §3.
type TokenType int

const (
	TokenCopy TokenType = iota
	TokenLiteral
	TokenEnd
)

// Token is one element of a delta script. CopyBlock tokens carry
// BlockIndex; Literal tokens carry Data (never longer than ChunkSize);
// End carries neither.
type Token struct {
	Type       TokenType
	BlockIndex int
	Data       []byte
}

// TokenWriter streams one token at a time; tokens are never materialized
// as a whole collection (spec §9 "Streaming vs materialization").
type TokenWriter func(Token) error

// ChunkSize is the maximum length of a single Literal token's payload.
const ChunkSize = 32 * 1024

// Generator drives the sliding-window match search against a
// signature.Index.
type Generator struct {
	idx       *signature.Index
	blockLen  int
	algorithm checksum.Algorithm
	seed      int32
	seedFix   bool
}

func NewGenerator(idx *signature.Index, blockLen int, algorithm checksum.Algorithm, seed int32, seedFix bool) *Generator {
	return &Generator{idx: idx, blockLen: blockLen, algorithm: algorithm, seed: seed, seedFix: seedFix}
}

func (g *Generator) strongOf(w []byte) []byte {
	s := checksum.New(g.algorithm, g.seed, g.seedFix)
	s.Write(w)
	return s.Sum(nil)
}

// window is a growable buffer holding the not-yet-discarded suffix of the
// source, fed lazily from src. base is the absolute file offset of
// buf[0]. This bounds memory to roughly one block length plus the
// current pending-literal run, rather than materializing the whole file.
type window struct {
	src  io.Reader
	buf  []byte
	base int64
	eof  bool
}

func (w *window) fill() error {
	if w.eof {
		return nil
	}
	var chunk [64 * 1024]byte
	n, err := w.src.Read(chunk[:])
	if n > 0 {
		w.buf = append(w.buf, chunk[:n]...)
	}
	if err != nil {
		if err == io.EOF {
			w.eof = true
			return nil
		}
		return err
	}
	return nil
}

// ensure grows buf until it holds at least n bytes past base, or EOF.
func (w *window) ensure(n int) error {
	for !w.eof && len(w.buf) < n {
		if err := w.fill(); err != nil {
			return err
		}
	}
	return nil
}

// discard drops buffered bytes before absolute offset off.
func (w *window) discard(off int64) {
	n := off - w.base
	if n > 0 {
		if int(n) >= len(w.buf) {
			w.buf = w.buf[:0]
		} else {
			w.buf = w.buf[n:]
		}
		w.base = off
	}
}

// Generate streams delta tokens for src against the block-match index,
// per the main loop in spec §4.7.
func (g *Generator) Generate(src io.Reader, emit TokenWriter) error {
	w := &window{src: src}
	var pending []byte
	pendingStart := int64(0)
	p := int64(0)

	flush := func() error {
		for len(pending) > 0 {
			n := len(pending)
			if n > ChunkSize {
				n = ChunkSize
			}
			if err := emit(Token{Type: TokenLiteral, Data: pending[:n]}); err != nil {
				return err
			}
			pending = pending[n:]
		}
		pendingStart = p
		return nil
	}

	var roll checksum.Rolling
	haveDigest := false

	for {
		rel := int(p - w.base)
		if err := w.ensure(rel + g.blockLen); err != nil {
			return err
		}
		avail := len(w.buf) - rel
		if avail <= 0 {
			break
		}
		winLen := g.blockLen
		if avail < winLen {
			winLen = avail
		}
		data := w.buf[rel : rel+winLen]

		if winLen < g.blockLen {
			// Short tail: no match possible (spec §4.7 step 1).
			pending = append(pending, data...)
			p += int64(winLen)
			if err := flush(); err != nil {
				return err
			}
			break
		}

		var d checksum.Digest
		if haveDigest {
			d = roll.Sum()
		} else {
			d = roll.Full(data)
			haveDigest = true
		}

		if match := g.idx.Lookup(d, data, g.strongOf); match != nil {
			if err := flush(); err != nil {
				return err
			}
			if err := emit(Token{Type: TokenCopy, BlockIndex: match.Index}); err != nil {
				return err
			}
			p += int64(winLen)
			pendingStart = p
			haveDigest = false
			w.discard(pendingStart)
			continue
		}

		// No match: accumulate one byte into the pending literal run
		// and roll the window forward by one (spec §4.7 step 4).
		outByte := data[0]
		if err := w.ensure(rel + winLen + 1); err != nil {
			return err
		}
		pending = append(pending, outByte)
		p++
		if rel+winLen < len(w.buf) {
			inByte := w.buf[rel+winLen]
			d = roll.Roll(outByte, inByte)
		} else {
			haveDigest = false
		}

		// Flush eagerly once a full chunk has accumulated, so a long
		// run with no matches never buffers more than one chunk plus
		// one block length (bounds memory, spec §9 "streaming vs
		// materialization").
		if len(pending) >= ChunkSize {
			if err := emit(Token{Type: TokenLiteral, Data: pending[:ChunkSize]}); err != nil {
				return err
			}
			pending = pending[ChunkSize:]
			pendingStart = p - int64(len(pending))
		}

		w.discard(pendingStart)
	}

	return emit(Token{Type: TokenEnd})
}
