package goxmlstream

import "bytes"

// Name is a name with a possible prefix like "xmlns:blubb"
// or simply without prefix like "a".
// The namespace URI bound to the prefix (if any) is not stored
// on the name itself, it is resolved against the NamespaceContext
// in scope at the point of use.
type Name struct {
	Local  []byte
	Prefix []byte
}

// Equal reports whether two names have the same prefix and local part.
func (n Name) Equal(other Name) bool {
	return bytes.Equal(n.Local, other.Local) && bytes.Equal(n.Prefix, other.Prefix)
}

// String renders the name as it appears in a document, like "ns:a" or "a".
func (n Name) String() string {
	if n.Prefix != nil {
		return string(n.Prefix) + ":" + string(n.Local)
	}
	return string(n.Local)
}

// Attr is an attribute of an element.
// Only events of type EventStartElement can have attributes.
// Value holds the already-unescaped semantic value.
type Attr struct {
	Name        Name
	SingleQuote bool
	Value       []byte
}

// Equal reports whether two attributes have the same name and value.
// The quote style is surface syntax and does not take part in equality.
func (a Attr) Equal(other Attr) bool {
	return a.Name.Equal(other.Name) && bytes.Equal(a.Value, other.Value)
}

// XMLVersion denotes the declared XML version of a document.
type XMLVersion byte

const (
	// XMLVersion10 is the default when no XML declaration is present.
	XMLVersion10 XMLVersion = iota
	XMLVersion11
)

// String returns the version string as it appears in an XML declaration.
func (v XMLVersion) String() string {
	if v == XMLVersion11 {
		return "1.1"
	}
	return "1.0"
}

// Standalone is the tri-state standalone flag of an XML declaration.
type Standalone byte

const (
	StandaloneUnset Standalone = iota
	StandaloneYes
	StandaloneNo
)

// constants for Event.Kind
const (
	EventStartDocument = iota
	EventEndDocument
	EventProcInst
	EventStartElement
	EventEndElement
	EventCData
	EventComment
	EventCharacters
	EventWhitespace
)

// Event represents the union of all possible event kinds
// of an XML document stream and their respective information.
//
// The set of kinds is closed. A consumer must handle every kind it
// receives; a kind it does not know is a caller error, never a no-op.
//
// Byte-slice fields are only valid for the lexical scope of the
// XML element the event belongs to. For events outside of any
// element they are valid until the next event is produced.
type Event struct {
	Kind byte

	// only for EventStartElement and EventEndElement, and the
	// target of EventProcInst
	Name Name

	// only for EventStartElement
	Attr []Attr

	// payload of EventProcInst, EventCData, EventComment,
	// EventCharacters and EventWhitespace
	ByteData []byte

	// only for EventStartDocument
	Version    XMLVersion
	Encoding   []byte
	Standalone Standalone
}

// Equal reports whether two events are structurally equal: same kind
// and same values in the fields relevant for that kind. Fields that
// do not belong to the kind are ignored, as are surface syntax details
// like the attribute quote style.
func (e *Event) Equal(other *Event) bool {
	if e.Kind != other.Kind {
		return false
	}
	switch e.Kind {
	case EventStartDocument:
		return e.Version == other.Version &&
			e.Standalone == other.Standalone &&
			bytes.Equal(e.Encoding, other.Encoding)
	case EventEndDocument:
		return true
	case EventProcInst:
		return e.Name.Equal(other.Name) && bytes.Equal(e.ByteData, other.ByteData)
	case EventStartElement:
		if !e.Name.Equal(other.Name) || len(e.Attr) != len(other.Attr) {
			return false
		}
		for i := range e.Attr {
			if !e.Attr[i].Equal(other.Attr[i]) {
				return false
			}
		}
		return true
	case EventEndElement:
		return e.Name.Equal(other.Name)
	default:
		return bytes.Equal(e.ByteData, other.ByteData)
	}
}
