package goxmlstream

import (
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
	enc "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// applyEncoding swaps the decoder's input over to a reader that
// transcodes the named character encoding to UTF-8. Bytes already
// buffered but not yet consumed are replayed through the transcoder.
func (thiz *decoder) applyEncoding(label []byte) error {
	e := lookupEncoding(string(label))
	if e == nil {
		return errors.Errorf("unsupported document encoding %q", label)
	}
	if e == unicode.UTF8 {
		return nil
	}
	rest := make([]byte, thiz.w-thiz.r)
	copy(rest, thiz.rb[thiz.r:thiz.w])
	thiz.rd = transform.NewReader(
		io.MultiReader(bytes.NewReader(rest), thiz.rd),
		e.NewDecoder(),
	)
	thiz.r = 0
	thiz.w = 0
	return nil
}

// lookupEncoding maps the encoding label of an XML declaration to the
// character encoding it names, or nil if the label is unknown.
//
// UTF-16 is deliberately absent: a document whose declaration could be
// scanned byte-wise up to the encoding label cannot have been UTF-16
// encoded in the first place.
func lookupEncoding(label string) enc.Encoding {
	switch strings.ToLower(label) {
	case "utf8", "utf-8", "us-ascii", "ascii":
		return unicode.UTF8
	case "iso-8859-1", "latin1", "windows-1252":
		// iso-8859-1 is decoded as windows-1252 on purpose, the
		// same superset interpretation browsers apply
		return charmap.Windows1252
	case "iso-8859-2":
		return charmap.ISO8859_2
	case "iso-8859-3":
		return charmap.ISO8859_3
	case "iso-8859-4":
		return charmap.ISO8859_4
	case "iso-8859-5":
		return charmap.ISO8859_5
	case "iso-8859-6":
		return charmap.ISO8859_6
	case "iso-8859-7":
		return charmap.ISO8859_7
	case "iso-8859-8":
		return charmap.ISO8859_8
	case "iso-8859-10":
		return charmap.ISO8859_10
	case "iso-8859-13":
		return charmap.ISO8859_13
	case "iso-8859-14":
		return charmap.ISO8859_14
	case "iso-8859-15":
		return charmap.ISO8859_15
	case "iso-8859-16":
		return charmap.ISO8859_16
	case "windows-1250":
		return charmap.Windows1250
	case "windows-1251":
		return charmap.Windows1251
	case "koi8-r":
		return charmap.KOI8R
	case "koi8-u":
		return charmap.KOI8U
	case "shift_jis", "shift-jis", "cp932":
		return japanese.ShiftJIS
	case "euc-jp":
		return japanese.EUCJP
	case "iso-2022-jp":
		return japanese.ISO2022JP
	case "euc-kr":
		return korean.EUCKR
	case "gbk", "gb2312":
		return simplifiedchinese.GBK
	case "big5":
		return traditionalchinese.Big5
	default:
		return nil
	}
}
