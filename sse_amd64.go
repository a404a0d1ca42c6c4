package goxmlstream

// The scan kernels below read 16 bytes starting at the slice base no
// matter how short the slice is. Callers must guarantee 16 bytes of
// addressable headroom behind the slice, which the decoder's read
// buffer provides. Bytes past the slice length may contain stale data;
// callers must treat kernel results pointing past the length as
// "not found in range".

// openAngleBracket16 returns the index of the first '<' within the
// first 16 bytes, or 16 if there is none.
//
//go:noescape
func openAngleBracket16(slice []uint8) uint16

// onlySpaces16 returns the index of the first non-whitespace byte
// (any byte greater than 0x20) within the first 16 bytes, or 16 if
// all of them are whitespace.
//
//go:noescape
func onlySpaces16(slice []uint8) uint16
