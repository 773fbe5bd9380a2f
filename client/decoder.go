package client

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ChunkDecoder turns a sequence of UTF-8 byte chunks into text. A multi-byte
// character split across two chunks is held back until its remaining bytes
// arrive, so the output never depends on where the chunk boundaries fall.
// Invalid bytes decode to U+FFFD and a leading byte order mark is dropped.
type ChunkDecoder struct {
	t       transform.Transformer
	pending []byte
}

func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{t: unicode.UTF8BOM.NewDecoder()}
}

// Decode returns the text completed by chunk. Bytes of a trailing incomplete
// character are kept for the next call.
func (d *ChunkDecoder) Decode(chunk []byte) string {
	return d.decode(chunk, false)
}

// Flush returns whatever is still pending, replacing an incomplete trailing
// character with U+FFFD, and resets the decoder for reuse.
func (d *ChunkDecoder) Flush() string {
	out := d.decode(nil, true)
	d.t.Reset()
	return out
}

// buffered reports how many bytes are waiting for the rest of a character.
func (d *ChunkDecoder) buffered() int {
	return len(d.pending)
}

func (d *ChunkDecoder) decode(chunk []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(src, d.pending...)
	src = append(src, chunk...)
	d.pending = nil
	if len(src) == 0 && !atEOF {
		return ""
	}

	var out strings.Builder
	// A replacement character can take three bytes for every invalid input byte.
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]
		switch {
		case err == nil:
			return out.String()
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append(d.pending, src...)
			return out.String()
		case errors.Is(err, transform.ErrShortDst):
			dst = make([]byte, 2*len(dst))
		default:
			out.WriteRune(utf8.RuneError)
			return out.String()
		}
	}
}
