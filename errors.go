package goxmlstream

import "fmt"

// StructuralError is returned when an event is delivered in a state
// in which the stream contract does not allow it, for example an end
// element with no matching open element or character content outside
// of the root element. It is fatal to the stream.
type StructuralError struct {
	// Kind of the offending event.
	Kind byte

	// State the stream was in when the event arrived.
	State byte

	// Depth is the number of open elements at that point.
	Depth int

	Reason string
}

func (e StructuralError) Error() string {
	return fmt.Sprintf(
		"illegal %s in state %s (depth %d): %s",
		eventKindName(e.Kind),
		stateName(e.State),
		e.Depth,
		e.Reason,
	)
}

// UnboundPrefixError is returned when an element or attribute name
// uses a namespace prefix that has no binding in scope. It is fatal
// to the stream.
type UnboundPrefixError struct {
	Prefix []byte
}

func (e UnboundPrefixError) Error() string {
	return "unbound namespace prefix \"" + string(e.Prefix) + "\""
}

// DuplicateAttrError is returned when a start element carries two
// attributes with the same name and duplicate checking is enabled.
type DuplicateAttrError struct {
	Name Name
}

func (e DuplicateAttrError) Error() string {
	return "duplicate attribute \"" + e.Name.String() + "\""
}

func eventKindName(kind byte) string {
	switch kind {
	case EventStartDocument:
		return "StartDocument"
	case EventEndDocument:
		return "EndDocument"
	case EventProcInst:
		return "ProcessingInstruction"
	case EventStartElement:
		return "StartElement"
	case EventEndElement:
		return "EndElement"
	case EventCData:
		return "CData"
	case EventComment:
		return "Comment"
	case EventCharacters:
		return "Characters"
	case EventWhitespace:
		return "Whitespace"
	default:
		return fmt.Sprintf("event kind %d", kind)
	}
}

func stateName(state byte) string {
	switch state {
	case stateStart:
		return "Start"
	case stateProlog:
		return "Prolog"
	case stateElement:
		return "Element"
	case stateAfterRoot:
		return "AfterRoot"
	case stateEnded:
		return "Ended"
	default:
		return fmt.Sprintf("state %d", state)
	}
}
