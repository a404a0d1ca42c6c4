package goxmlstream

import (
	"bytes"

	"github.com/pkg/errors"
)

// well-known namespaces that are bound without ever being declared
var (
	nsXML   = bs("http://www.w3.org/XML/1998/namespace")
	nsXMLNS = bs("http://www.w3.org/2000/xmlns/")

	bsXMLPrefix   = bs("xml")
	bsXMLNSPrefix = bs("xmlns")
)

// NamespaceBinding is a single prefix-to-URI mapping.
// A nil/empty prefix denotes the default namespace.
type NamespaceBinding struct {
	Prefix []byte
	URI    []byte
}

// NamespaceContext answers which namespace URI is bound to a prefix
// at the current point of a document.
//
// Bindings are layered in scopes that nest with the elements that
// introduce them: PushScope when a start element is processed,
// PopScope when the matching end element is processed. Popping a
// scope restores the parent context exactly, including any bindings
// that were shadowed by the popped scope.
type NamespaceContext struct {
	// flattened (prefix, uri) pairs of all open scopes
	pairs [][]byte

	// pair-list length at the start of each open scope
	offs []int
}

// NewNamespaceContext creates a new, empty NamespaceContext
// and returns a pointer to it.
func NewNamespaceContext() *NamespaceContext {
	return &NamespaceContext{
		pairs: make([][]byte, 0, 64),
		offs:  make([]int, 0, 16),
	}
}

// Reset resets this NamespaceContext to its initial, empty state.
func (thiz *NamespaceContext) Reset() {
	thiz.pairs = thiz.pairs[:0]
	thiz.offs = thiz.offs[:0]
}

// Depth returns the number of open scopes.
func (thiz *NamespaceContext) Depth() int {
	return len(thiz.offs)
}

// PushScope opens a new scope. Bindings added via Bind afterwards
// belong to this scope and shadow same-prefix bindings of outer
// scopes until the scope is popped again.
func (thiz *NamespaceContext) PushScope() {
	thiz.offs = append(thiz.offs, len(thiz.pairs))
}

// Bind adds a binding of prefix to uri in the innermost open scope.
// A nil prefix binds the default namespace. An empty uri removes the
// binding for the scope's duration (like xmlns="").
func (thiz *NamespaceContext) Bind(prefix, uri []byte) {
	thiz.pairs = append(thiz.pairs, prefix, uri)
}

// PopScope discards the innermost scope and all of its bindings,
// restoring the context exactly as it was before the corresponding
// PushScope.
func (thiz *NamespaceContext) PopScope() error {
	if len(thiz.offs) == 0 {
		return errors.New("namespace scope underflow")
	}
	thiz.pairs = thiz.pairs[:thiz.offs[len(thiz.offs)-1]]
	thiz.offs = thiz.offs[:len(thiz.offs)-1]
	return nil
}

// Resolve returns the URI bound to the given prefix at this point,
// innermost binding winning. A nil prefix resolves the default
// namespace. The second return value is false if the prefix is
// unbound (or was unbound again via an empty URI).
// The "xml" and "xmlns" prefixes are always bound per the
// "Namespaces in XML" recommendation.
func (thiz *NamespaceContext) Resolve(prefix []byte) ([]byte, bool) {
	for i := len(thiz.pairs)/2 - 1; i >= 0; i-- {
		if bytes.Equal(thiz.pairs[2*i], prefix) {
			uri := thiz.pairs[2*i+1]
			if len(uri) == 0 {
				return nil, false
			}
			return uri, true
		}
	}
	if bytes.Equal(prefix, bsXMLPrefix) {
		return nsXML, true
	}
	if bytes.Equal(prefix, bsXMLNSPrefix) {
		return nsXMLNS, true
	}
	return nil, false
}

// PrefixFor returns a prefix which binds the given URI at this point,
// preferring the innermost binding. This is the reverse operation of
// Resolve, so prefixes that an inner scope rebound to a different URI
// are skipped. The returned prefix may be nil with ok still true when
// the URI is bound as the default namespace.
func (thiz *NamespaceContext) PrefixFor(uri []byte) ([]byte, bool) {
	for i := len(thiz.pairs)/2 - 1; i >= 0; i-- {
		if bytes.Equal(thiz.pairs[2*i+1], uri) {
			prefix := thiz.pairs[2*i]
			if u, ok := thiz.Resolve(prefix); ok && bytes.Equal(u, uri) {
				return prefix, true
			}
		}
	}
	if bytes.Equal(uri, nsXML) {
		return bsXMLPrefix, true
	}
	if bytes.Equal(uri, nsXMLNS) {
		return bsXMLNSPrefix, true
	}
	return nil, false
}

// Snapshot returns the flattened mapping of all bindings in scope,
// one entry per distinct prefix, innermost binding winning. Prefixes
// whose binding was removed with an empty URI are omitted, as are the
// implicit "xml" and "xmlns" bindings.
func (thiz *NamespaceContext) Snapshot() []NamespaceBinding {
	var out []NamespaceBinding
	var seen [][]byte
	for i := len(thiz.pairs)/2 - 1; i >= 0; i-- {
		prefix := thiz.pairs[2*i]
		already := false
		for _, s := range seen {
			if bytes.Equal(s, prefix) {
				already = true
				break
			}
		}
		if already {
			continue
		}
		seen = append(seen, prefix)
		uri := thiz.pairs[2*i+1]
		if len(uri) == 0 {
			continue
		}
		out = append(out, NamespaceBinding{Prefix: prefix, URI: uri})
	}
	return out
}
