package goxmlstream

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var (
	escLT   = bs("&lt;")
	escGT   = bs("&gt;")
	escAmp  = bs("&amp;")
	escApos = bs("&apos;")
	escQuot = bs("&quot;")

	entLT   = bs("lt")
	entGT   = bs("gt")
	entAmp  = bs("amp")
	entApos = bs("apos")
	entQuot = bs("quot")
)

// writeEscapedText writes s to w with the markup characters
// '<', '>' and '&' escaped.
func writeEscapedText(w io.Writer, s []byte) error {
	return writeEscaped(w, s, 0)
}

// writeEscapedAttr writes an attribute value to w with '<', '>', '&'
// and the delimiting quote character escaped.
func writeEscapedAttr(w io.Writer, s []byte, singleQuote bool) error {
	if singleQuote {
		return writeEscaped(w, s, '\'')
	}
	return writeEscaped(w, s, '"')
}

func writeEscaped(w io.Writer, s []byte, quote byte) error {
	last := 0
	for i := 0; i < len(s); i++ {
		var esc []byte
		switch s[i] {
		case '<':
			esc = escLT
		case '>':
			esc = escGT
		case '&':
			esc = escAmp
		case '\'':
			if quote != '\'' {
				continue
			}
			esc = escApos
		case '"':
			if quote != '"' {
				continue
			}
			esc = escQuot
		default:
			continue
		}
		if _, err := w.Write(s[last:i]); err != nil {
			return err
		}
		if _, err := w.Write(esc); err != nil {
			return err
		}
		last = i + 1
	}
	_, err := w.Write(s[last:])
	return err
}

// unescape decodes the predefined entity references and numeric
// character references in b in place and returns the (possibly
// shortened) slice. Decoding only ever shrinks the data, so writing
// never overtakes reading.
func unescape(b []byte) ([]byte, error) {
	amp := bytes.IndexByte(b, '&')
	if amp < 0 {
		return b, nil
	}
	w := amp
	for r := amp; r < len(b); {
		c := b[r]
		if c != '&' {
			b[w] = c
			w++
			r++
			continue
		}
		semi := bytes.IndexByte(b[r:], ';')
		if semi < 0 {
			return nil, errors.New("invalid XML: unterminated entity reference")
		}
		ent := b[r+1 : r+semi]
		r += semi + 1
		switch {
		case bytes.Equal(ent, entLT):
			b[w] = '<'
			w++
		case bytes.Equal(ent, entGT):
			b[w] = '>'
			w++
		case bytes.Equal(ent, entAmp):
			b[w] = '&'
			w++
		case bytes.Equal(ent, entApos):
			b[w] = '\''
			w++
		case bytes.Equal(ent, entQuot):
			b[w] = '"'
			w++
		case len(ent) > 1 && ent[0] == '#':
			n, err := parseCharRef(ent[1:])
			if err != nil {
				return nil, err
			}
			w += utf8.EncodeRune(b[w:], n)
		default:
			return nil, errors.Errorf("invalid XML: unknown entity reference %q", ent)
		}
	}
	return b[:w], nil
}

// parseCharRef parses the payload of a numeric character reference,
// i.e. the "60" of "&#60;" or the "x3C" of "&#x3C;".
func parseCharRef(b []byte) (rune, error) {
	base := rune(10)
	if b[0] == 'x' || b[0] == 'X' {
		base = 16
		b = b[1:]
	}
	if len(b) == 0 {
		return 0, errors.New("invalid XML: empty character reference")
	}
	var n rune
	for _, c := range b {
		var d rune
		switch {
		case c >= '0' && c <= '9':
			d = rune(c - '0')
		case base == 16 && c >= 'a' && c <= 'f':
			d = rune(c-'a') + 10
		case base == 16 && c >= 'A' && c <= 'F':
			d = rune(c-'A') + 10
		default:
			return 0, errors.Errorf("invalid XML: malformed character reference %q", b)
		}
		n = n*base + d
		if n > utf8.MaxRune {
			return 0, errors.Errorf("invalid XML: character reference %q out of range", b)
		}
	}
	if n == 0 || !utf8.ValidRune(n) {
		return 0, errors.Errorf("invalid XML: character reference %q out of range", b)
	}
	return n, nil
}
