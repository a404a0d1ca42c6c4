//go:build !amd64
// +build !amd64

package goxmlstream

func (thiz *decoder) skipWhitespaces(b byte) (byte, error) {
	return thiz.skipWhitespacesGeneric(b)
}

func (thiz *decoder) decodeText(ev *Event) (bool, error) {
	return thiz.decodeTextGeneric(ev)
}
