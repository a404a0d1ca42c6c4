package goxmlstream

import (
	"io"

	"github.com/klauspost/cpuid/v2"
)

var canUseSSE = cpuid.CPU.Has(cpuid.SSE2)

func (thiz *decoder) skipWhitespaces(b byte) (byte, error) {
	if canUseSSE {
		return thiz.skipWhitespacesSSE(b)
	}
	return thiz.skipWhitespacesGeneric(b)
}

func (thiz *decoder) skipWhitespacesSSE(b byte) (byte, error) {
	if !isWhitespace(b) {
		return b, nil
	}
	for {
		j := thiz.r
		c := 0
		for thiz.w > thiz.r+c {
			avail := thiz.w - (j + c)
			sidx := int(onlySpaces16(thiz.rb[j+c : thiz.w]))
			if sidx < avail && sidx < 16 {
				_, err := thiz.discard(c + sidx)
				if err != nil {
					return 0, err
				}
				return thiz.readByte()
			}
			// bytes past w are stale headroom, ignore their verdict
			if avail > 16 {
				avail = 16
			}
			c += avail
		}
		thiz.discardBuffer()
		err := thiz.read0()
		if err != nil {
			return 0, err
		}
	}
}

func (thiz *decoder) decodeText(ev *Event) (bool, error) {
	if canUseSSE {
		return thiz.decodeTextSSE(ev)
	}
	return thiz.decodeTextGeneric(ev)
}

func (thiz *decoder) decodeTextSSE(ev *Event) (bool, error) {
	i := len(thiz.bb)
	onlyWhitespaces := true
	for {
		j := thiz.r
		c := 0
		for thiz.w > thiz.r+c {
			avail := thiz.w - (j + c)
			sidx := int(openAngleBracket16(thiz.rb[j+c : thiz.w]))
			space := int(onlySpaces16(thiz.rb[j+c : thiz.w]))
			if sidx < avail && sidx < 16 {
				onlyWhitespaces = onlyWhitespaces && space >= sidx
				c += sidx
				_, err := thiz.discard(c)
				if err != nil {
					return false, err
				}
				thiz.bb = append(thiz.bb, thiz.rb[j:j+c]...)
				return thiz.finishText(ev, i, onlyWhitespaces)
			}
			// bytes past w are stale headroom, ignore their verdict
			if avail > 16 {
				avail = 16
			}
			onlyWhitespaces = onlyWhitespaces && space >= avail
			c += avail
		}
		thiz.bb = append(thiz.bb, thiz.rb[j:thiz.w]...)
		thiz.discardBuffer()
		err := thiz.read0()
		if err != nil {
			if err == io.EOF && len(thiz.bb) > i {
				return thiz.finishText(ev, i, onlyWhitespaces)
			}
			return false, err
		}
	}
}
