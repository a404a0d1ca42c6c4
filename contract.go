package goxmlstream

import (
	"bytes"
	"fmt"
)

// states of the stream contract
const (
	// before any event
	stateStart = iota

	// StartDocument seen (or implied), no root element yet
	stateProlog

	// inside one or more open elements
	stateElement

	// root element closed, only trailing misc content allowed
	stateAfterRoot

	// EndDocument seen, terminal
	stateEnded
)

// StreamValidator enforces the legal orderings of an event stream:
// document structure (at most one XML declaration, exactly one root
// element, matched element nesting), namespace scoping and, optionally,
// attribute uniqueness.
//
// A producer can feed every event it is about to hand out through
// Validate to guarantee that it never emits an illegal sequence; a
// consumer can do the same with every event it receives. The validator
// can also be plugged into an Encoder as an EncoderMiddleware.
//
// The first illegal event aborts the stream: Validate keeps returning
// the violation state and the validator must be Reset before reuse.
//
// The element-name stack relies on the event lifetime contract: the
// Name of a start element must stay valid until its matching end
// element has been validated.
type StreamValidator struct {
	open          []Name
	ns            *NamespaceContext
	err           error
	state         byte
	checkDupAttrs bool
	allowEmptyDoc bool
}

// ValidatorOption configures a StreamValidator.
type ValidatorOption func(v *StreamValidator)

// CheckDuplicateAttrs makes the validator reject start elements that
// carry two attributes with the same name. Duplicates are not checked
// by default; avoiding them is the producer's responsibility.
func CheckDuplicateAttrs() ValidatorOption {
	return func(v *StreamValidator) {
		v.checkDupAttrs = true
	}
}

// RequireRootElement makes the validator reject EndDocument before a
// root element was seen. By default the degenerate empty document is
// accepted.
func RequireRootElement() ValidatorOption {
	return func(v *StreamValidator) {
		v.allowEmptyDoc = false
	}
}

// NewStreamValidator creates a new StreamValidator and returns a
// pointer to it.
func NewStreamValidator(opts ...ValidatorOption) *StreamValidator {
	v := &StreamValidator{
		open:          make([]Name, 0, 32),
		ns:            NewNamespaceContext(),
		allowEmptyDoc: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Reset resets this StreamValidator for validating a new stream.
func (thiz *StreamValidator) Reset() {
	thiz.state = stateStart
	thiz.open = thiz.open[:0]
	thiz.err = nil
	thiz.ns.Reset()
}

// Depth returns the number of currently open elements.
func (thiz *StreamValidator) Depth() int {
	return len(thiz.open)
}

// Context returns the namespace context reflecting all bindings in
// scope after the most recently validated event.
func (thiz *StreamValidator) Context() *NamespaceContext {
	return thiz.ns
}

// EncodeEvent validates the event, which makes a StreamValidator
// usable as an EncoderMiddleware.
func (thiz *StreamValidator) EncodeEvent(ev *Event) error {
	return thiz.Validate(ev)
}

// Validate checks that ev is legal in the current state and advances
// the state machine. A non-nil return means the stream is malformed;
// the violation is fatal and not recoverable.
func (thiz *StreamValidator) Validate(ev *Event) error {
	if thiz.err != nil {
		return thiz.err
	}
	if thiz.state == stateEnded {
		return thiz.structural(ev, "document already ended")
	}
	switch ev.Kind {
	case EventStartDocument:
		if thiz.state != stateStart {
			return thiz.structural(ev, "an XML declaration must be the first event")
		}
		thiz.state = stateProlog
	case EventProcInst, EventComment:
		// legal anywhere except after EndDocument. In the initial
		// state they imply the default document declaration.
		if thiz.state == stateStart {
			thiz.state = stateProlog
		}
	case EventStartElement:
		if thiz.state == stateAfterRoot {
			return thiz.structural(ev, "a document can only have one root element")
		}
		return thiz.startElement(ev)
	case EventEndElement:
		if thiz.state != stateElement {
			return thiz.structural(ev, "no open element to close")
		}
		top := thiz.open[len(thiz.open)-1]
		if !top.Equal(ev.Name) {
			return thiz.structural(ev, fmt.Sprintf(
				"element close mismatch: expected </%s>, got </%s>", top, ev.Name))
		}
		thiz.open = thiz.open[:len(thiz.open)-1]
		if err := thiz.ns.PopScope(); err != nil {
			return thiz.fail(err)
		}
		if len(thiz.open) == 0 {
			thiz.state = stateAfterRoot
		}
	case EventWhitespace:
		for _, b := range ev.ByteData {
			if !isWhitespace(b) {
				return thiz.structural(ev, "whitespace event with non-whitespace content")
			}
		}
		fallthrough
	case EventCData, EventCharacters:
		if thiz.state != stateElement {
			return thiz.structural(ev, "character content outside of any element")
		}
	case EventEndDocument:
		if thiz.state == stateElement {
			return thiz.structural(ev, fmt.Sprintf("%d elements still open", len(thiz.open)))
		}
		if thiz.state != stateAfterRoot && !thiz.allowEmptyDoc {
			return thiz.structural(ev, "document has no root element")
		}
		thiz.state = stateEnded
	default:
		return thiz.structural(ev, "unknown event kind")
	}
	return nil
}

func (thiz *StreamValidator) startElement(ev *Event) error {
	thiz.ns.PushScope()
	for i := range ev.Attr {
		attr := &ev.Attr[i]
		if attr.Name.Prefix == nil && bytes.Equal(attr.Name.Local, bsXMLNSPrefix) {
			thiz.ns.Bind(nil, attr.Value)
		} else if bytes.Equal(attr.Name.Prefix, bsXMLNSPrefix) {
			thiz.ns.Bind(attr.Name.Local, attr.Value)
		}
	}
	if thiz.checkDupAttrs {
		for i := range ev.Attr {
			for j := 0; j < i; j++ {
				if ev.Attr[i].Name.Equal(ev.Attr[j].Name) {
					return thiz.fail(DuplicateAttrError{Name: ev.Attr[i].Name})
				}
			}
		}
	}
	if len(ev.Name.Prefix) > 0 {
		if _, ok := thiz.ns.Resolve(ev.Name.Prefix); !ok {
			return thiz.fail(UnboundPrefixError{Prefix: ev.Name.Prefix})
		}
	}
	for i := range ev.Attr {
		prefix := ev.Attr[i].Name.Prefix
		if len(prefix) == 0 || bytes.Equal(prefix, bsXMLNSPrefix) {
			continue
		}
		if _, ok := thiz.ns.Resolve(prefix); !ok {
			return thiz.fail(UnboundPrefixError{Prefix: prefix})
		}
	}
	thiz.open = append(thiz.open, ev.Name)
	thiz.state = stateElement
	return nil
}

func (thiz *StreamValidator) structural(ev *Event, reason string) error {
	return thiz.fail(StructuralError{
		Kind:   ev.Kind,
		State:  thiz.state,
		Depth:  len(thiz.open),
		Reason: reason,
	})
}

func (thiz *StreamValidator) fail(err error) error {
	thiz.err = err
	return err
}
