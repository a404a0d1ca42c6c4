package goxmlstream

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Decoder decodes an XML input stream into Event values.
// The sequence of events handed out always satisfies the stream
// contract: malformed input is reported as an error at the first
// illegal construct, it is never surfaced as an illegal sequence.
type Decoder interface {
	// NextEvent decodes and stores the next Event into
	// the provided Event pointer.
	// Only the fields relevant for the decoded event kind
	// are written to the Event. Other fields may have previous
	// values. The caller should thus determine the Event.Kind
	// and then only read/touch the fields relevant for that kind.
	NextEvent(ev *Event) error

	// Reset resets the Decoder to the given io.Reader.
	Reset(r io.Reader)
}

// DecoderOption configures a Decoder created with NewDecoder.
type DecoderOption func(d *decoder)

// WithIgnoreComments drops comments from the event stream
// instead of surfacing them as EventComment.
func WithIgnoreComments() DecoderOption {
	return func(d *decoder) {
		d.ignoreComments = true
	}
}

// WithIgnoreProcInst drops processing instructions from the event
// stream. The XML declaration is not a processing instruction and is
// still surfaced as EventStartDocument.
func WithIgnoreProcInst() DecoderOption {
	return func(d *decoder) {
		d.ignoreProcInst = true
	}
}

// WithCDataAsCharacters surfaces CDATA sections as EventCharacters
// instead of EventCData. The payload stays verbatim either way.
func WithCDataAsCharacters() DecoderOption {
	return func(d *decoder) {
		d.cdataAsCharacters = true
	}
}

// WithWhitespaceAsCharacters makes the decoder emit EventCharacters
// for content that consists purely of whitespace, instead of the
// EventWhitespace specialization.
func WithWhitespaceAsCharacters() DecoderOption {
	return func(d *decoder) {
		d.wsAsCharacters = true
	}
}

// WithSkipWhitespace drops element content that consists purely of
// whitespace from the event stream, unless an enclosing element
// carries xml:space="preserve".
func WithSkipWhitespace() DecoderOption {
	return func(d *decoder) {
		d.skipWhitespace = true
	}
}

// WithDuplicateAttrCheck makes the decoder reject elements
// with duplicate attribute names.
func WithDuplicateAttrCheck() DecoderOption {
	return func(d *decoder) {
		d.validator.checkDupAttrs = true
	}
}

type decoder struct {
	rb                  [2048]byte
	bbOffset            [256]int32
	numAttributes       [256]byte
	preserveWhitespaces [256]bool
	lastOpen            Name
	rd                  io.Reader
	bb                  []byte
	attrs               []Attr
	validator           *StreamValidator
	r                   int
	w                   int
	top                 byte
	lastStartElement    bool

	ignoreComments    bool
	ignoreProcInst    bool
	cdataAsCharacters bool
	wsAsCharacters    bool
	skipWhitespace    bool
}

var (
	bsxml        = []byte("xml")
	bsspace      = []byte("space")
	bspreserve   = []byte("preserve")
	bsCDATAOpen  = []byte("CDATA[")
	bsversion    = []byte("version")
	bsencoding   = []byte("encoding")
	bsstandalone = []byte("standalone")
	bsyes        = []byte("yes")
	bsno         = []byte("no")
	bs10         = []byte("1.0")
	bs11         = []byte("1.1")
)

// NewDecoder creates a new Decoder.
func NewDecoder(r io.Reader, opts ...DecoderOption) Decoder {
	d := &decoder{
		rd:        r,
		bb:        make([]byte, 0, 256),
		attrs:     make([]Attr, 0, 256),
		validator: NewStreamValidator(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func isWhitespace(b byte) bool {
	return b <= ' '
}

func (thiz *decoder) read0() error {
	if thiz.r > 0 {
		copy(thiz.rb[:], thiz.rb[thiz.r:thiz.w])
		thiz.w -= thiz.r
		thiz.r = 0
	}
	// the 16 bytes of headroom keep 16-byte-wide scans of the
	// buffer tail within the array
	n, err := thiz.rd.Read(thiz.rb[thiz.w : cap(thiz.rb)-16])
	thiz.w += n
	if n <= 0 && err != nil {
		return err
	}
	return nil
}

func (thiz *decoder) unreadByte() {
	thiz.r--
}

func (thiz *decoder) readByte() (byte, error) {
	for thiz.r == thiz.w {
		err := thiz.read0()
		if err != nil {
			return 0, err
		}
	}
	c := thiz.rb[thiz.r]
	thiz.r++
	return c, nil
}

func (thiz *decoder) discardBuffer() {
	thiz.r = thiz.w
}

func (thiz *decoder) discard(n int) (int, error) {
	for thiz.r+n > thiz.w {
		err := thiz.read0()
		if err != nil {
			return 0, err
		}
	}
	thiz.r += n
	return n, nil
}

func (thiz *decoder) Reset(r io.Reader) {
	thiz.rd = r
	thiz.r = 0
	thiz.w = 0
	thiz.attrs = thiz.attrs[:0]
	thiz.bb = thiz.bb[:0]
	thiz.top = 0
	thiz.lastStartElement = false
	thiz.lastOpen = Name{}
	thiz.validator.Reset()
}

func (thiz *decoder) skipWhitespacesGeneric(b byte) (byte, error) {
	for {
		if !isWhitespace(b) {
			return b, nil
		}
		var err error
		b, err = thiz.readByte()
		if err != nil {
			return 0, err
		}
	}
}

// check translates a bare io.EOF from the middle of a syntactic
// construct into an unexpected-EOF error.
func (thiz *decoder) check(err error) error {
	if err == io.EOF {
		return errors.Wrap(io.ErrUnexpectedEOF, "truncated document")
	}
	return err
}

func (thiz *decoder) NextEvent(ev *Event) error {
	if thiz.validator.state == stateEnded {
		return io.EOF
	}
	for {
		// read next character
		b, err := thiz.readByte()
		if err != nil {
			if err == io.EOF {
				return thiz.endDocument(ev)
			}
			return err
		}
		switch b {
		case '>':
			if thiz.lastStartElement {
				// Previous StartElement now got properly ended.
				// We just did not consume the end token earlier
				// because there could have been an implicit
				// "/>" close at the end of the start element.
				thiz.lastStartElement = false
				continue
			}
			// no start tag pending, so this is character data
			thiz.unreadByte()
			cntn, err := thiz.decodeText(ev)
			if err == io.EOF && thiz.top == 0 {
				return thiz.endDocument(ev)
			}
			if err != nil || !cntn {
				return thiz.check(err)
			}
		case '/':
			if thiz.lastStartElement {
				// Immediately closing last opened StartElement.
				// This will generate an EndElement with the same
				// name that we used in the previous StartElement.
				_, err = thiz.discard(1)
				if err != nil {
					return thiz.check(err)
				}
				thiz.lastStartElement = false
				return thiz.decodeEndElement(ev, thiz.lastOpen)
			}
			thiz.unreadByte()
			cntn, err := thiz.decodeText(ev)
			if err == io.EOF && thiz.top == 0 {
				return thiz.endDocument(ev)
			}
			if err != nil || !cntn {
				return thiz.check(err)
			}
		case '<':
			b, err = thiz.readByte()
			if err != nil {
				return thiz.check(err)
			}
			switch b {
			case '?':
				thiz.lastStartElement = false
				i := len(thiz.bb)
				err = thiz.decodeProcInst(ev)
				if err != nil {
					return thiz.check(err)
				}
				if thiz.ignoreProcInst && ev.Kind == EventProcInst {
					thiz.bb = thiz.bb[:i]
					continue
				}
				return nil
			case '!':
				// CDATA or comment
				b, err = thiz.readByte()
				if err != nil {
					return thiz.check(err)
				}
				switch b {
				case '-':
					thiz.lastStartElement = false
					i := len(thiz.bb)
					err = thiz.readComment(ev)
					if err != nil {
						return thiz.check(err)
					}
					if thiz.ignoreComments {
						thiz.bb = thiz.bb[:i]
						continue
					}
					return thiz.validator.Validate(ev)
				case '[':
					thiz.lastStartElement = false
					err = thiz.readCDATA(ev)
					if err != nil {
						return thiz.check(err)
					}
					return thiz.validator.Validate(ev)
				default:
					return errors.New("invalid XML: comment or CDATA expected")
				}
			case '/':
				var name Name
				name, _, err = thiz.readName()
				if err != nil {
					return thiz.check(err)
				}
				thiz.lastStartElement = false
				return thiz.decodeEndElement(ev, name)
			default:
				thiz.lastStartElement = true
				return thiz.check(thiz.decodeStartElement(ev))
			}
		default:
			thiz.lastStartElement = false
			thiz.unreadByte()
			cntn, err := thiz.decodeText(ev)
			if err == io.EOF && thiz.top == 0 {
				return thiz.endDocument(ev)
			}
			if err != nil || !cntn {
				return thiz.check(err)
			}
		}
	}
}

// endDocument synthesizes the EndDocument event when the input is
// exhausted. A subsequent NextEvent call returns io.EOF.
func (thiz *decoder) endDocument(ev *Event) error {
	if thiz.top > 0 {
		return errors.Wrapf(io.ErrUnexpectedEOF, "%d elements still open", thiz.top)
	}
	ev.Kind = EventEndDocument
	return thiz.validator.Validate(ev)
}

func (thiz *decoder) decodeProcInst(ev *Event) error {
	name, b, err := thiz.readName()
	if err != nil {
		return err
	}
	b, err = thiz.skipWhitespaces(b)
	if err != nil {
		return err
	}
	i := len(thiz.bb)
	j := i
	for {
		if b == '?' {
			for {
				var b2 byte
				b2, err = thiz.readByte()
				if err != nil {
					return err
				}
				if b2 == '>' {
					data := thiz.bb[i:j]
					if name.Prefix == nil && bytes.EqualFold(name.Local, bsxml) {
						if thiz.validator.state == stateStart &&
							bytes.Equal(name.Local, bsxml) {
							return thiz.decodeXMLDecl(ev, data)
						}
						// the target is reserved for the XML
						// declaration, which must come first
						return errors.New("invalid XML: reserved processing instruction target \"xml\"")
					}
					ev.Kind = EventProcInst
					ev.Name = name
					ev.ByteData = data
					return thiz.validator.Validate(ev)
				} else if b2 != '?' {
					thiz.bb = append(thiz.bb, b, b2)
					if !isWhitespace(b2) {
						j = len(thiz.bb)
					}
					break
				}
				thiz.bb = append(thiz.bb, b2)
				if !isWhitespace(b2) {
					j = len(thiz.bb)
				}
			}
		} else {
			thiz.bb = append(thiz.bb, b)
			if !isWhitespace(b) {
				j = len(thiz.bb)
			}
		}
		b, err = thiz.readByte()
		if err != nil {
			return err
		}
	}
}

// decodeXMLDecl turns the data of an "xml" processing instruction at
// the very beginning of the stream into a StartDocument event and, if
// the declaration names a character encoding other than UTF-8, swaps
// the input over to a transcoding reader.
func (thiz *decoder) decodeXMLDecl(ev *Event, data []byte) error {
	ev.Kind = EventStartDocument
	ev.Version = XMLVersion10
	ev.Encoding = nil
	ev.Standalone = StandaloneUnset
	k := 0
	sawVersion := false
	for k < len(data) {
		for k < len(data) && isWhitespace(data[k]) {
			k++
		}
		if k >= len(data) {
			break
		}
		eq := bytes.IndexByte(data[k:], '=')
		if eq < 0 {
			return errors.New("invalid XML declaration")
		}
		name := bytes.TrimRight(data[k:k+eq], " \t\r\n")
		k += eq + 1
		for k < len(data) && isWhitespace(data[k]) {
			k++
		}
		if k >= len(data) || (data[k] != '"' && data[k] != '\'') {
			return errors.New("invalid XML declaration")
		}
		quote := data[k]
		k++
		end := bytes.IndexByte(data[k:], quote)
		if end < 0 {
			return errors.New("invalid XML declaration")
		}
		value := data[k : k+end]
		k += end + 1
		switch {
		case bytes.Equal(name, bsversion):
			sawVersion = true
			switch {
			case bytes.Equal(value, bs10):
				ev.Version = XMLVersion10
			case bytes.Equal(value, bs11):
				ev.Version = XMLVersion11
			default:
				return errors.Errorf("unsupported XML version %q", value)
			}
		case bytes.Equal(name, bsencoding):
			// version comes first per the XML declaration grammar
			if !sawVersion {
				return errors.New("invalid XML declaration: missing version")
			}
			ev.Encoding = value
		case bytes.Equal(name, bsstandalone):
			if !sawVersion {
				return errors.New("invalid XML declaration: missing version")
			}
			switch {
			case bytes.Equal(value, bsyes):
				ev.Standalone = StandaloneYes
			case bytes.Equal(value, bsno):
				ev.Standalone = StandaloneNo
			default:
				return errors.Errorf("invalid standalone value %q", value)
			}
		default:
			return errors.Errorf("unexpected attribute %q in XML declaration", name)
		}
	}
	if !sawVersion {
		return errors.New("invalid XML declaration: missing version")
	}
	if err := thiz.validator.Validate(ev); err != nil {
		return err
	}
	if ev.Encoding != nil {
		return thiz.applyEncoding(ev.Encoding)
	}
	return nil
}

// readComment reads a comment after the leading "<!-" has been
// consumed and stores its payload in the event. Per the XML
// grammar "--" must not occur inside the payload.
func (thiz *decoder) readComment(ev *Event) error {
	b, err := thiz.readByte()
	if err != nil {
		return err
	}
	if b != '-' {
		return errors.New("invalid XML: comment expected")
	}
	i := len(thiz.bb)
	dashes := 0
	for {
		b, err = thiz.readByte()
		if err != nil {
			return err
		}
		if b == '-' {
			dashes++
			if dashes == 2 {
				b, err = thiz.readByte()
				if err != nil {
					return err
				}
				if b != '>' {
					return errors.New("invalid XML: '--' is not allowed inside comments")
				}
				ev.Kind = EventComment
				ev.ByteData = thiz.bb[i:len(thiz.bb)]
				return nil
			}
			continue
		}
		if dashes == 1 {
			thiz.bb = append(thiz.bb, '-')
			dashes = 0
		}
		thiz.bb = append(thiz.bb, b)
	}
}

// readCDATA reads a CDATA section after the leading "<![" has been
// consumed. The payload is passed through verbatim, no unescaping
// is performed.
func (thiz *decoder) readCDATA(ev *Event) error {
	for k := 0; k < len(bsCDATAOpen); k++ {
		b, err := thiz.readByte()
		if err != nil {
			return err
		}
		if b != bsCDATAOpen[k] {
			return errors.New("invalid XML: CDATA expected")
		}
	}
	i := len(thiz.bb)
	brackets := 0
	for {
		b, err := thiz.readByte()
		if err != nil {
			return err
		}
		switch {
		case b == ']':
			brackets++
		case b == '>' && brackets >= 2:
			// the last two brackets terminated the section, any
			// brackets before them belong to the payload
			for k := 2; k < brackets; k++ {
				thiz.bb = append(thiz.bb, ']')
			}
			if thiz.cdataAsCharacters {
				ev.Kind = EventCharacters
			} else {
				ev.Kind = EventCData
			}
			ev.ByteData = thiz.bb[i:len(thiz.bb)]
			return nil
		default:
			for k := 0; k < brackets; k++ {
				thiz.bb = append(thiz.bb, ']')
			}
			brackets = 0
			thiz.bb = append(thiz.bb, b)
		}
	}
}

func (thiz *decoder) decodeEndElement(ev *Event, name Name) error {
	ev.Kind = EventEndElement
	ev.Name = name
	if err := thiz.validator.Validate(ev); err != nil {
		return err
	}
	end := len(thiz.attrs) - int(thiz.numAttributes[thiz.top])
	thiz.attrs = thiz.attrs[:end]
	thiz.bb = thiz.bb[:thiz.bbOffset[thiz.top]]
	thiz.top--
	return nil
}

func (thiz *decoder) decodeStartElement(ev *Event) error {
	if thiz.top >= 254 {
		return errors.New("invalid XML: element nesting too deep")
	}
	thiz.top++
	thiz.numAttributes[thiz.top] = 0
	thiz.bbOffset[thiz.top] = int32(len(thiz.bb))
	thiz.preserveWhitespaces[thiz.top] = thiz.preserveWhitespaces[thiz.top-1]
	thiz.unreadByte()
	name, b, err := thiz.readName()
	if err != nil {
		return err
	}
	var attributes []Attr
	attributes, err = thiz.decodeAttributes(b)
	if err != nil {
		return err
	}
	thiz.lastOpen = name
	ev.Kind = EventStartElement
	ev.Name = name
	ev.Attr = attributes
	thiz.unreadByte()
	return thiz.validator.Validate(ev)
}

// finishText classifies and finalizes a run of character data that a
// scanning function accumulated in bb starting at offset i.
// It returns true if the run was dropped and scanning should go on.
func (thiz *decoder) finishText(ev *Event, i int, onlyWhitespaces bool) (bool, error) {
	if onlyWhitespaces && !thiz.preserveWhitespaces[thiz.top] &&
		(thiz.skipWhitespace || thiz.top == 0) {
		thiz.bb = thiz.bb[:i]
		return true, nil
	}
	text := thiz.bb[i:len(thiz.bb)]
	if !onlyWhitespaces {
		var err error
		text, err = unescape(text)
		if err != nil {
			return false, err
		}
		thiz.bb = thiz.bb[:i+len(text)]
	}
	if onlyWhitespaces && !thiz.wsAsCharacters {
		ev.Kind = EventWhitespace
	} else {
		ev.Kind = EventCharacters
	}
	ev.ByteData = text
	return false, thiz.validator.Validate(ev)
}

func (thiz *decoder) decodeTextGeneric(ev *Event) (bool, error) {
	i := len(thiz.bb)
	onlyWhitespaces := true
	for {
		j := thiz.r
		for k := j; k < thiz.w; k++ {
			b := thiz.rb[k]
			if b == '<' {
				_, err := thiz.discard(k - j)
				if err != nil {
					return false, err
				}
				thiz.bb = append(thiz.bb, thiz.rb[j:k]...)
				return thiz.finishText(ev, i, onlyWhitespaces)
			}
			onlyWhitespaces = onlyWhitespaces && isWhitespace(b)
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

func (thiz *decoder) readName() (Name, byte, error) {
	localOrPrefix, b, err := thiz.readSimpleName()
	if err != nil {
		return Name{}, 0, err
	}
	if b == ':' {
		var local []byte
		local, b, err = thiz.readSimpleName()
		if err != nil {
			return Name{}, 0, err
		}
		return Name{
			Local:  local,
			Prefix: localOrPrefix,
		}, b, nil
	}
	return Name{
		Local: localOrPrefix,
	}, b, nil
}

var seps = generateTable()

func generateTable() ['?' + 1]bool {
	var s ['?' + 1]bool
	s['\t'] = true
	s['\n'] = true
	s['\r'] = true
	s[' '] = true
	s['/'] = true
	s[':'] = true
	s['='] = true
	s['>'] = true
	s['?'] = true
	return s
}

func isSeparator(b byte) bool {
	return int(b) < len(seps) && seps[b]
}

func (thiz *decoder) readSimpleName() ([]byte, byte, error) {
	i := len(thiz.bb)
	for {
		j := thiz.r
		for k := j; k < thiz.w; k++ {
			if isSeparator(thiz.rb[k]) {
				thiz.bb = append(thiz.bb, thiz.rb[j:k]...)
				_, err := thiz.discard(k - j + 1)
				if err != nil {
					return nil, 0, err
				}
				return thiz.bb[i:len(thiz.bb)], thiz.rb[k], nil
			}
		}
		thiz.bb = append(thiz.bb, thiz.rb[j:thiz.w]...)
		thiz.discardBuffer()
		err := thiz.read0()
		if err != nil {
			return nil, 0, err
		}
	}
}

func (thiz *decoder) decodeAttributes(b byte) ([]Attr, error) {
	i := len(thiz.attrs)
	for {
		var err error
		b, err = thiz.skipWhitespaces(b)
		if err != nil {
			return nil, err
		}
		switch b {
		case '/', '>':
			return thiz.attrs[i:len(thiz.attrs)], nil
		default:
			if thiz.numAttributes[thiz.top] == 255 {
				return nil, errors.New("invalid XML: too many attributes")
			}
			thiz.attrs = append(thiz.attrs, Attr{})
			err = thiz.decodeAttribute(&thiz.attrs[len(thiz.attrs)-1])
			if err != nil {
				return nil, err
			}
			b, err = thiz.readByte()
			if err != nil {
				return nil, err
			}
			thiz.numAttributes[thiz.top]++
		}
	}
}

// decodeAttribute parses a single XML attribute.
// After this function returns, the next reader symbol
// is the byte after the closing single or double quote
// of the attribute's value.
func (thiz *decoder) decodeAttribute(attr *Attr) error {
	thiz.unreadByte()
	name, b, err := thiz.readName()
	if err != nil {
		return err
	}
	b, err = thiz.skipWhitespaces(b)
	if err != nil {
		return err
	}
	if b != '=' {
		return errors.Errorf("expected '=' character following attribute %+v", name)
	}
	b, err = thiz.readByte()
	if err != nil {
		return err
	}
	b, err = thiz.skipWhitespaces(b)
	if err != nil {
		return err
	}
	value, singleQuote, err := thiz.readString(b)
	if err != nil {
		return err
	}
	unescaped, err := unescape(value)
	if err != nil {
		return err
	}
	thiz.bb = thiz.bb[:len(thiz.bb)-(len(value)-len(unescaped))]
	// xml:space?
	if bytes.Equal(name.Prefix, bsxml) && bytes.Equal(name.Local, bsspace) {
		thiz.preserveWhitespaces[thiz.top] = bytes.Equal(unescaped, bspreserve)
	}
	attr.Name = name
	attr.SingleQuote = singleQuote
	attr.Value = unescaped
	return nil
}

// readString parses a single string (in single or double quotes)
func (thiz *decoder) readString(b byte) ([]byte, bool, error) {
	i := len(thiz.bb)
	singleQuote := b == '\''
	for {
		j := thiz.r
		k := bytes.IndexByte(thiz.rb[j:thiz.w], b)
		if k > -1 {
			thiz.bb = append(thiz.bb, thiz.rb[j:j+k]...)
			_, err := thiz.discard(k + 1)
			if err != nil {
				return nil, false, err
			}
			return thiz.bb[i:len(thiz.bb)], singleQuote, nil
		}
		thiz.bb = append(thiz.bb, thiz.rb[j:thiz.w]...)
		thiz.discardBuffer()
		err := thiz.read0()
		if err != nil {
			return nil, false, err
		}
	}
}
