package goxmlstream

import (
	"bytes"
	"io"
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

const (
	// all characters used to build new namespace aliases
	namespaceAliases = "abcdefghijklmnopqrstuvwxyz"
)

// pre-allocate all constant byte slices that we write
var (
	angleOpen        = bs("<")
	angleClose       = bs(">")
	slashAngleClose  = bs("/>")
	angleOpenSlash   = bs("</")
	space            = bs(" ")
	equal            = bs("=")
	angleOpenQuest   = bs("<?")
	questAngleClose  = bs("?>")
	colon            = bs(":")
	singleQuote      = bs("'")
	doubleQuote      = bs("\"")
	xmlDeclOpen      = bs("<?xml version=")
	encodingEqual    = bs(" encoding=")
	standaloneEqual  = bs(" standalone=")
	bsStandaloneYes  = bs("yes")
	bsStandaloneNo   = bs("no")
	commentOpen      = bs("<!--")
	commentClose     = bs("-->")
	cdataOpen        = bs("<![CDATA[")
	cdataClose       = bs("]]>")
	bsDoubleDash     = bs("--")
	bsVersion10Quote = bs("1.0")
	bsVersion11Quote = bs("1.1")
)

// EncoderMiddleware allows to pre-process an Event before
// it is finally encoded/written.
type EncoderMiddleware interface {
	// EncodeEvent will be called by the Encoder before the provided
	// Event is finally byte-encoded into the io.Writer.
	// The Encoder will ensure that the pointed-to Event and all its
	// contained field values will remain unmodified for the lexical
	// scope of the XML element represented by the Event.
	// If, for example, the Event represents an EventStartElement,
	// then the Event and all of its contained fields/byte-slices will
	// contain their values until after its corresponding
	// EventEndElement is processed by the EncoderMiddleware.
	EncodeEvent(ev *Event) error

	// Reset resets the state of an EncoderMiddleware.
	// This can be used to e.g. reset all pre-allocated data structures
	// and reinitialize the EncoderMiddleware to the state before any
	// first call to EncodeEvent.
	Reset()
}

// Encoder encodes Event values to an io.Writer.
// It renders the XML-specific text: markup characters in character
// data and attribute values are escaped, CDATA and comment payloads
// are written verbatim (after checking for the "]]>" and "--"
// illegalities), and namespace declarations travel as xmlns
// attributes of their start element.
type Encoder struct {
	// The io.Writer we encode/write into.
	w io.Writer

	// Whether the last event was of type EventStartElement.
	// This is used to delay encoding the ending ">" or "/>" string
	// based on whether the element is immediately closed afterwards.
	lastStartElement bool

	// middlewares can modify encoded events before encoding.
	middlewares []EncoderMiddleware
}

// NewEncoder creates a new Encoder with the given middlewares and
// returns a pointer to it. Middlewares are called in order for every
// event; a StreamValidator placed first enforces the stream contract
// before any bytes are written.
func NewEncoder(w io.Writer, middlewares ...EncoderMiddleware) *Encoder {
	return &Encoder{
		w:           w,
		middlewares: middlewares,
	}
}

// Reset resets this Encoder to write into the provided io.Writer
// and resets all middlewares.
func (thiz *Encoder) Reset(w io.Writer) {
	thiz.w = w
	thiz.lastStartElement = false
	for _, middleware := range thiz.middlewares {
		middleware.Reset()
	}
}

// EncodeEvent first calls any EncoderMiddleware and then
// writes the byte-representation of that Event to the io.Writer
// of this Encoder.
func (thiz *Encoder) EncodeEvent(ev *Event) error {
	err := thiz.callMiddlewares(ev)
	if err != nil {
		return err
	}
	switch ev.Kind {
	case EventStartDocument:
		err = thiz.encodeStartDocument(ev)
	case EventEndDocument:
		err = thiz.endLastStartElement()
	case EventStartElement:
		err = thiz.encodeStartElement(ev)
		if err != nil {
			return err
		}
		thiz.lastStartElement = true
		return nil
	case EventEndElement:
		err = thiz.encodeEndElement(ev)
	case EventProcInst:
		err = thiz.encodeProcInst(ev)
	case EventCData:
		err = thiz.encodeCData(ev)
	case EventComment:
		err = thiz.encodeComment(ev)
	case EventCharacters:
		err = thiz.encodeCharacters(ev)
	case EventWhitespace:
		err = thiz.encodeWhitespace(ev)
	default:
		err = errors.Errorf("unknown event kind %d", ev.Kind)
	}
	thiz.lastStartElement = false
	return err
}

func (thiz *Encoder) encodeStartDocument(ev *Event) error {
	_, err := thiz.w.Write(xmlDeclOpen)
	if err != nil {
		return err
	}
	version := bsVersion10Quote
	if ev.Version == XMLVersion11 {
		version = bsVersion11Quote
	}
	err = thiz.writeString(version, false)
	if err != nil {
		return err
	}
	if ev.Encoding != nil {
		_, err = thiz.w.Write(encodingEqual)
		if err != nil {
			return err
		}
		err = thiz.writeString(ev.Encoding, false)
		if err != nil {
			return err
		}
	}
	if ev.Standalone != StandaloneUnset {
		_, err = thiz.w.Write(standaloneEqual)
		if err != nil {
			return err
		}
		value := bsStandaloneYes
		if ev.Standalone == StandaloneNo {
			value = bsStandaloneNo
		}
		err = thiz.writeString(value, false)
		if err != nil {
			return err
		}
	}
	_, err = thiz.w.Write(questAngleClose)
	return err
}

func (thiz *Encoder) encodeStartElement(ev *Event) error {
	err := thiz.endLastStartElement()
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(angleOpen)
	if err != nil {
		return err
	}

	// write element name
	err = thiz.writeName(ev.Name)
	if err != nil {
		return err
	}

	// write attributes
	for _, attr := range ev.Attr {
		_, err = thiz.w.Write(space)
		if err != nil {
			return err
		}
		err = thiz.writeName(attr.Name)
		if err != nil {
			return err
		}
		_, err = thiz.w.Write(equal)
		if err != nil {
			return err
		}
		err = thiz.writeAttrValue(attr.Value, attr.SingleQuote)
		if err != nil {
			return err
		}
	}

	// DO NOT write the ending ">" character, because the element
	// could get closed right away with the next EndElement event.

	return nil
}

func (thiz *Encoder) encodeEndElement(ev *Event) error {
	if thiz.lastStartElement {
		// the last seen event was a StartElement, so this
		// event can only be its accompanying EndElement.
		_, err := thiz.w.Write(slashAngleClose)
		return err
	}

	_, err := thiz.w.Write(angleOpenSlash)
	if err != nil {
		return err
	}
	err = thiz.writeName(ev.Name)
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(angleClose)
	return err
}

func (thiz *Encoder) callMiddlewares(ev *Event) error {
	var err error
	for _, middleware := range thiz.middlewares {
		err = middleware.EncodeEvent((*Event)(noescape(unsafe.Pointer(ev))))
		if err != nil {
			return err
		}
	}
	return nil
}

func (thiz Encoder) writeName(n Name) error {
	var err error
	if n.Prefix != nil {
		_, err = thiz.w.Write(n.Prefix)
		if err != nil {
			return err
		}
		_, err = thiz.w.Write(colon)
		if err != nil {
			return err
		}
	}
	_, err = thiz.w.Write(n.Local)
	return err
}

// writeString writes s between quotes, without any escaping.
func (thiz Encoder) writeString(s []byte, useSingleQuote bool) error {
	quote := doubleQuote
	if useSingleQuote {
		quote = singleQuote
	}
	_, err := thiz.w.Write(quote)
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(s)
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(quote)
	return err
}

// writeAttrValue writes s between quotes, escaping markup characters
// and the delimiting quote.
func (thiz Encoder) writeAttrValue(s []byte, useSingleQuote bool) error {
	quote := doubleQuote
	if useSingleQuote {
		quote = singleQuote
	}
	_, err := thiz.w.Write(quote)
	if err != nil {
		return err
	}
	err = writeEscapedAttr(thiz.w, s, useSingleQuote)
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(quote)
	return err
}

func (thiz *Encoder) encodeCharacters(ev *Event) error {
	err := thiz.endLastStartElement()
	if err != nil {
		return err
	}
	return writeEscapedText(thiz.w, ev.ByteData)
}

func (thiz *Encoder) encodeWhitespace(ev *Event) error {
	err := thiz.endLastStartElement()
	if err != nil {
		return err
	}
	// whitespace contains no markup characters, write it verbatim
	_, err = thiz.w.Write(ev.ByteData)
	return err
}

func (thiz *Encoder) encodeCData(ev *Event) error {
	if bytes.Contains(ev.ByteData, cdataClose) {
		return errors.New("\"]]>\" is not allowed inside CDATA")
	}
	err := thiz.endLastStartElement()
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(cdataOpen)
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(ev.ByteData)
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(cdataClose)
	return err
}

func (thiz *Encoder) encodeComment(ev *Event) error {
	if bytes.Contains(ev.ByteData, bsDoubleDash) ||
		bytes.HasSuffix(ev.ByteData, bs("-")) {
		return errors.New("\"--\" is not allowed inside comments")
	}
	err := thiz.endLastStartElement()
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(commentOpen)
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(ev.ByteData)
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(commentClose)
	return err
}

func (thiz *Encoder) endLastStartElement() error {
	if thiz.lastStartElement {
		// end the last StartElement with its ">"
		_, err := thiz.w.Write(angleClose)
		if err != nil {
			return err
		}
	}
	return nil
}

func (thiz *Encoder) encodeProcInst(ev *Event) error {
	err := thiz.endLastStartElement()
	if err != nil {
		return err
	}
	_, err = thiz.w.Write(angleOpenQuest)
	if err != nil {
		return err
	}
	err = thiz.writeName(ev.Name)
	if err != nil {
		return err
	}
	if len(ev.ByteData) > 0 {
		_, err = thiz.w.Write(space)
		if err != nil {
			return err
		}
		_, err = thiz.w.Write(ev.ByteData)
		if err != nil {
			return err
		}
	}
	_, err = thiz.w.Write(questAngleClose)
	return err
}

// https://stackoverflow.com/questions/59209493/how-to-use-unsafe-get-a-byte-slice-from-a-string-without-memory-copy#answer-59210739
func bs(s string) []byte {
	if s == "" {
		return []byte{}
	}
	return (*[0x7fff0000]byte)(unsafe.Pointer(
		(*reflect.StringHeader)(unsafe.Pointer(&s)).Data),
	)[:len(s):len(s)]
}

// https://go.googlesource.com/go/+/go1.17.6/src/runtime/stubs.go#164
//go:nosplit
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
