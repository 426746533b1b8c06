package delta

import (
	"fmt"
	"io"

	"github.com/oferchen/rsync-sub027/internal/rsyncwire"
)

// WriteToken encodes one Token onto the wire using upstream rsync's
// classic token framing (generator.c:match_sums / sender.c:send_token):
// a literal run is a positive length prefix followed by that many data
// bytes, a copied block is a negative (-(index+1)) int32 with no
// payload, and End is the sentinel value 0. This is the stream
// internal/sender and internal/receiver exchange at transfer time.
func WriteToken(c *rsyncwire.Conn, tok Token) error {
	switch tok.Type {
	case TokenEnd:
		return c.WriteInt32(0)

	case TokenLiteral:
		if len(tok.Data) == 0 {
			return fmt.Errorf("delta: literal token with empty data")
		}
		if err := c.WriteInt32(int32(len(tok.Data))); err != nil {
			return err
		}
		_, err := c.Writer.Write(tok.Data)
		return err

	case TokenCopy:
		return c.WriteInt32(int32(-(tok.BlockIndex + 1)))

	default:
		return fmt.Errorf("delta: unknown token type %d", tok.Type)
	}
}

// ReadToken decodes one Token using the framing WriteToken writes.
func ReadToken(c *rsyncwire.Conn) (Token, error) {
	n, err := c.ReadInt32()
	if err != nil {
		return Token{}, err
	}
	switch {
	case n == 0:
		return Token{Type: TokenEnd}, nil

	case n > 0:
		data := make([]byte, n)
		if _, err := io.ReadFull(c.Reader, data); err != nil {
			return Token{}, err
		}
		return Token{Type: TokenLiteral, Data: data}, nil

	default:
		return Token{Type: TokenCopy, BlockIndex: int(-(n + 1))}, nil
	}
}
