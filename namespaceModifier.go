package goxmlstream

import (
	"bytes"

	"github.com/pkg/errors"
)

// NamespaceModifier can be used to obtain information about the
// effective namespace of a decoded Event via NamespaceOfEvent
// and to canonicalize/minify namespace declarations.
//
// It keeps a NamespaceContext with one scope per open element, so the
// bindings visible at any point are exactly the ones the document
// declared on the element stack up to that point.
type NamespaceModifier struct {
	openNames [256]Name
	aliasOffs [256]int32

	ctx           *NamespaceContext
	prefixAliases [][]byte

	top byte

	PreserveOriginalPrefixes bool
}

// NewNamespaceModifier creates a new NamespaceModifier and returns a pointer to it.
func NewNamespaceModifier() *NamespaceModifier {
	return &NamespaceModifier{
		ctx:           NewNamespaceContext(),
		prefixAliases: make([][]byte, 0, 64),
	}
}

// Reset resets this NamespaceModifier.
func (thiz *NamespaceModifier) Reset() {
	thiz.top = 0
	thiz.ctx.Reset()
	thiz.prefixAliases = thiz.prefixAliases[:0]
}

// Context returns the namespace context reflecting all bindings
// in scope after the most recently processed event.
func (thiz *NamespaceModifier) Context() *NamespaceContext {
	return thiz.ctx
}

// EncodeEvent will be called by the Encoder before the provided Event
// is finally byte-encoded into the io.Writer.
// The Encoder will ensure that the pointed-to Event and all its
// contained field values will remain unmodified for the lexical scope
// of the XML element represented by the Event.
func (thiz *NamespaceModifier) EncodeEvent(ev *Event) error {
	if ev.Kind == EventStartElement {
		err := thiz.pushFrame()
		if err != nil {
			return err
		}
		thiz.processNamespaces(ev)
		thiz.processElementName(ev)
		thiz.openNames[thiz.top] = ev.Name
	} else if ev.Kind == EventEndElement {
		thiz.processElementName(ev)
		return thiz.popFrame()
	}
	return nil
}

func (thiz *NamespaceModifier) processElementName(ev *Event) {
	if ev.Kind == EventStartElement {
		if len(thiz.prefixAliases) > 0 {
			// check attributes for rewritten prefixes
			for i := 0; i < len(ev.Attr); i++ {
				attr := &ev.Attr[i]
				prefix := thiz.findPrefixAlias(attr.Name.Prefix)
				if prefix != nil {
					attr.Name.Prefix = prefix
				}
			}
			// Did we rewrite the element name prefix?
			prefix := thiz.findPrefixAlias(ev.Name.Prefix)
			if prefix != nil {
				ev.Name.Prefix = prefix
			}
		}
	} else if ev.Kind == EventEndElement {
		ev.Name = thiz.openNames[thiz.top]
	}
}

// findPrefixAlias finds the alias for the given prefix.
// There is an alias for a given prefix if, during encoding, the prefix
// has been replaced with a (possibly) shorter alternative.
func (thiz *NamespaceModifier) findPrefixAlias(prefix []byte) []byte {
	// scan all frames up to the top
	for i := len(thiz.prefixAliases)/2 - 1; i >= 0; i-- {
		if bytes.Equal(thiz.prefixAliases[2*i], prefix) {
			return thiz.prefixAliases[2*i+1]
		}
	}
	return nil
}

func (thiz *NamespaceModifier) pushFrame() error {
	if thiz.top >= 254 {
		return errors.New("stack overflow")
	}
	thiz.top++
	thiz.aliasOffs[thiz.top] = int32(len(thiz.prefixAliases))
	thiz.ctx.PushScope()
	return nil
}

func (thiz *NamespaceModifier) popFrame() error {
	if thiz.top <= 0 {
		return errors.New("stack underflow")
	}
	thiz.prefixAliases = thiz.prefixAliases[:thiz.aliasOffs[thiz.top]]
	thiz.top--
	return thiz.ctx.PopScope()
}

// processNamespaces scans the attributes of the given event for namespace declarations,
// either with or without a binding prefix and possibly re-assigns prefixes to other existing
// or new aliases and drops redundant namespace declarations.
func (thiz *NamespaceModifier) processNamespaces(ev *Event) {
	j := 0
	for i := 0; i < len(ev.Attr); i++ {
		attr := &ev.Attr[i]
		// check for advertized namespaces in attributes
		if bytes.Equal(attr.Name.Prefix, bsXMLNSPrefix) { // <- xmlns:prefix
			// this element introduces a new namespace that binds to a prefix
			// check if we already know this namespace by this or another prefix
			prefix, ok := thiz.ctx.PrefixFor(attr.Value)
			if ok && len(prefix) > 0 {
				if !bytes.Equal(prefix, attr.Name.Local) {
					// we don't know that particular prefix but we know that namespace
					// by another prefix, so establish a rewrite for the prefix
					thiz.addPrefixRewrite(attr.Name.Local, prefix)
				}
				// we don't need the attribute anymore because we already had a prefix
				continue
			}
			if !thiz.PreserveOriginalPrefixes &&
				len(thiz.prefixAliases) < 2*len(namespaceAliases) {
				// we don't know the prefix, but we want to rewrite it
				nextPrefixAlias := len(thiz.prefixAliases) / 2
				alias := bs(namespaceAliases[nextPrefixAlias : nextPrefixAlias+1])
				thiz.addPrefixRewrite(attr.Name.Local, alias)
				thiz.ctx.Bind(alias, attr.Value)
				attr.Name.Local = alias
			} else {
				thiz.ctx.Bind(attr.Name.Local, attr.Value)
			}
		} else if attr.Name.Prefix == nil && bytes.Equal(attr.Name.Local, bsXMLNSPrefix) {
			// check if the element is already in that namespace, in which case
			// we can simply omit the namespace.
			if uri, ok := thiz.ctx.Resolve(nil); ok && bytes.Equal(uri, attr.Value) {
				continue
			}
			// check if we already know a prefix for that namespace so that we
			// can use the prefix instead and drop the namespace declaration
			prefix, ok := thiz.ctx.PrefixFor(attr.Value)
			if ok && len(prefix) > 0 {
				// add prefix rewrite for "" -> prefix in order to remember
				// that any elements without a prefix get the new prefix now
				thiz.addPrefixRewrite(nil, prefix)
				ev.Name.Prefix = prefix
				continue
			}
			// this element uses a new namespace in which all
			// unprefixed child elements will reside
			thiz.ctx.Bind(nil, attr.Value)
		}
		if i > j {
			ev.Attr[j] = *attr
		}
		j++
	}
	ev.Attr = ev.Attr[:j]
}

func (thiz *NamespaceModifier) addPrefixRewrite(original, prefix []byte) {
	thiz.prefixAliases = append(thiz.prefixAliases, original, prefix)
}

// NamespaceOfEvent returns the effective namespace URI (as byte slice)
// of the pointed-to start or end element Event, or nil for any other
// event kind. The caller must make sure that the Event's fields/values
// will remain unmodified for the lexical scope of the XML element
// represented by that event, as per the documentation of
// EncoderMiddleware.EncodeEvent.
func (thiz *NamespaceModifier) NamespaceOfEvent(ev *Event) []byte {
	if ev.Kind != EventStartElement && ev.Kind != EventEndElement {
		return nil
	}
	prefix := ev.Name.Prefix
	if len(prefix) > 0 {
		alias := thiz.findPrefixAlias(ev.Name.Prefix)
		if len(alias) > 0 {
			prefix = alias
		}
	}
	uri, _ := thiz.ctx.Resolve(prefix)
	return uri
}
