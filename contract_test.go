package goxmlstream

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMinimalDocument(t *testing.T) {
	// given
	v := NewStreamValidator()
	evs := []Event{
		{Kind: EventStartDocument, Version: XMLVersion10},
		startElement("a"),
		endElement("a"),
		endDocument(),
	}

	// when / then
	for i := range evs {
		assert.Nil(t, v.Validate(&evs[i]))
	}
	assert.Equal(t, 0, v.Depth())
}

func TestValidateMismatchedEndElement(t *testing.T) {
	// given
	v := NewStreamValidator()
	start := startElement("a")
	end := endElement("b")

	// when
	assert.Nil(t, v.Validate(&start))
	err := v.Validate(&end)

	// then
	var structural StructuralError
	assert.ErrorAs(t, err, &structural)
	assert.Equal(t, byte(EventEndElement), structural.Kind)
	assert.Equal(t, 1, structural.Depth)
}

func TestValidateCharactersNeedOpenElement(t *testing.T) {
	// given
	v := NewStreamValidator()
	text := characters("free floating")

	// when
	err := v.Validate(&text)

	// then
	var structural StructuralError
	assert.ErrorAs(t, err, &structural)
	assert.Equal(t, 0, structural.Depth)
}

func TestValidateCharactersInsideElement(t *testing.T) {
	// given
	v := NewStreamValidator()
	start := startElement("a")
	text := characters("fine here")
	cd := cdata("and this")

	// when / then
	assert.Nil(t, v.Validate(&start))
	assert.Nil(t, v.Validate(&text))
	assert.Nil(t, v.Validate(&cd))
	assert.Equal(t, 1, v.Depth())
}

func TestValidateUnboundElementPrefix(t *testing.T) {
	// given
	v := NewStreamValidator()
	ev := Event{
		Kind: EventStartElement,
		Name: Name{Prefix: []byte("p"), Local: []byte("a")},
	}

	// when
	err := v.Validate(&ev)

	// then
	var unbound UnboundPrefixError
	assert.ErrorAs(t, err, &unbound)
	assert.Equal(t, []byte("p"), unbound.Prefix)
}

func TestValidateUnboundAttrPrefix(t *testing.T) {
	// given
	v := NewStreamValidator()
	ev := Event{
		Kind: EventStartElement,
		Name: Name{Local: []byte("a")},
		Attr: []Attr{{
			Name:  Name{Prefix: []byte("q"), Local: []byte("b")},
			Value: []byte("v"),
		}},
	}

	// when
	err := v.Validate(&ev)

	// then
	var unbound UnboundPrefixError
	assert.ErrorAs(t, err, &unbound)
	assert.Equal(t, []byte("q"), unbound.Prefix)
}

func TestValidateBoundPrefix(t *testing.T) {
	// given
	v := NewStreamValidator()
	ev := Event{
		Kind: EventStartElement,
		Name: Name{Prefix: []byte("p"), Local: []byte("a")},
		Attr: []Attr{{
			Name:  Name{Prefix: []byte("xmlns"), Local: []byte("p")},
			Value: []byte("https://mynamespace"),
		}},
	}

	// when
	err := v.Validate(&ev)

	// then
	assert.Nil(t, err)
	uri, ok := v.Context().Resolve([]byte("p"))
	assert.True(t, ok)
	assert.Equal(t, []byte("https://mynamespace"), uri)
}

func TestValidateBuiltinXMLPrefix(t *testing.T) {
	// given
	v := NewStreamValidator()
	ev := Event{
		Kind: EventStartElement,
		Name: Name{Local: []byte("a")},
		Attr: []Attr{{
			Name:  Name{Prefix: []byte("xml"), Local: []byte("lang")},
			Value: []byte("en"),
		}},
	}

	// when / then
	assert.Nil(t, v.Validate(&ev))
}

func TestValidateScopeRestoredAfterSubtree(t *testing.T) {
	// given
	v := NewStreamValidator()
	outer := startElement("a")
	inner := Event{
		Kind: EventStartElement,
		Name: Name{Local: []byte("b")},
		Attr: []Attr{{
			Name:  Name{Prefix: []byte("xmlns"), Local: []byte("p")},
			Value: []byte("https://inner"),
		}},
	}
	innerEnd := endElement("b")

	// when / then
	assert.Nil(t, v.Validate(&outer))
	assert.Nil(t, v.Validate(&inner))
	_, ok := v.Context().Resolve([]byte("p"))
	assert.True(t, ok)
	assert.Nil(t, v.Validate(&innerEnd))
	_, ok = v.Context().Resolve([]byte("p"))
	assert.False(t, ok)
}

func TestValidateDeepNesting(t *testing.T) {
	// given
	v := NewStreamValidator()

	// when / then
	for i := 0; i < 64; i++ {
		ev := startElement(fmt.Sprintf("e%d", i))
		assert.Nil(t, v.Validate(&ev))
		assert.Equal(t, i+1, v.Depth())
	}
	for i := 63; i >= 0; i-- {
		ev := endElement(fmt.Sprintf("e%d", i))
		assert.Nil(t, v.Validate(&ev))
		assert.Equal(t, i, v.Depth())
	}
	end := endDocument()
	assert.Nil(t, v.Validate(&end))
}

func TestValidateStartDocumentMustBeFirst(t *testing.T) {
	// given
	v := NewStreamValidator()
	pi := procInst("target", "data")
	decl := Event{Kind: EventStartDocument}

	// when
	assert.Nil(t, v.Validate(&pi))
	err := v.Validate(&decl)

	// then
	var structural StructuralError
	assert.ErrorAs(t, err, &structural)
}

func TestValidateSecondRootElement(t *testing.T) {
	// given
	v := NewStreamValidator()
	first := startElement("a")
	firstEnd := endElement("a")
	second := startElement("b")

	// when
	assert.Nil(t, v.Validate(&first))
	assert.Nil(t, v.Validate(&firstEnd))
	err := v.Validate(&second)

	// then
	var structural StructuralError
	assert.ErrorAs(t, err, &structural)
}

func TestValidateMiscAfterRoot(t *testing.T) {
	// given
	v := NewStreamValidator()
	root := startElement("a")
	rootEnd := endElement("a")
	c := comment(" trailing ")
	pi := procInst("target", "")
	end := endDocument()

	// when / then
	assert.Nil(t, v.Validate(&root))
	assert.Nil(t, v.Validate(&rootEnd))
	assert.Nil(t, v.Validate(&c))
	assert.Nil(t, v.Validate(&pi))
	assert.Nil(t, v.Validate(&end))
}

func TestValidateEventsAfterEndDocument(t *testing.T) {
	// given
	v := NewStreamValidator()
	root := startElement("a")
	rootEnd := endElement("a")
	end := endDocument()
	c := comment("too late")

	// when
	assert.Nil(t, v.Validate(&root))
	assert.Nil(t, v.Validate(&rootEnd))
	assert.Nil(t, v.Validate(&end))
	err := v.Validate(&c)

	// then
	var structural StructuralError
	assert.ErrorAs(t, err, &structural)
}

func TestValidateEndDocumentWithOpenElements(t *testing.T) {
	// given
	v := NewStreamValidator()
	root := startElement("a")
	end := endDocument()

	// when
	assert.Nil(t, v.Validate(&root))
	err := v.Validate(&end)

	// then
	var structural StructuralError
	assert.ErrorAs(t, err, &structural)
	assert.Equal(t, 1, structural.Depth)
}

func TestValidateEmptyDocumentByDefault(t *testing.T) {
	// given
	v := NewStreamValidator()
	end := endDocument()

	// when / then
	assert.Nil(t, v.Validate(&end))
}

func TestValidateRequireRootElement(t *testing.T) {
	// given
	v := NewStreamValidator(RequireRootElement())
	end := endDocument()

	// when
	err := v.Validate(&end)

	// then
	var structural StructuralError
	assert.ErrorAs(t, err, &structural)
}

func TestValidateDuplicateAttrsNotCheckedByDefault(t *testing.T) {
	// given
	v := NewStreamValidator()
	ev := Event{
		Kind: EventStartElement,
		Name: Name{Local: []byte("a")},
		Attr: []Attr{
			{Name: Name{Local: []byte("b")}, Value: []byte("1")},
			{Name: Name{Local: []byte("b")}, Value: []byte("2")},
		},
	}

	// when / then
	assert.Nil(t, v.Validate(&ev))
}

func TestValidateDuplicateAttrs(t *testing.T) {
	// given
	v := NewStreamValidator(CheckDuplicateAttrs())
	ev := Event{
		Kind: EventStartElement,
		Name: Name{Local: []byte("a")},
		Attr: []Attr{
			{Name: Name{Local: []byte("b")}, Value: []byte("1")},
			{Name: Name{Local: []byte("b")}, Value: []byte("2")},
		},
	}

	// when
	err := v.Validate(&ev)

	// then
	var dup DuplicateAttrError
	assert.ErrorAs(t, err, &dup)
	assert.Equal(t, []byte("b"), dup.Name.Local)
}

func TestValidateWhitespaceEventContent(t *testing.T) {
	// given
	v := NewStreamValidator()
	root := startElement("a")
	ws := whitespace(" \t\r\n")
	notWS := Event{Kind: EventWhitespace, ByteData: []byte(" x ")}

	// when / then
	assert.Nil(t, v.Validate(&root))
	assert.Nil(t, v.Validate(&ws))
	var structural StructuralError
	assert.ErrorAs(t, v.Validate(&notWS), &structural)
}

func TestValidateUnknownKind(t *testing.T) {
	// given
	v := NewStreamValidator()
	ev := Event{Kind: 42}

	// when
	err := v.Validate(&ev)

	// then
	var structural StructuralError
	assert.ErrorAs(t, err, &structural)
}

func TestValidateViolationIsSticky(t *testing.T) {
	// given
	v := NewStreamValidator()
	bad := endElement("a")
	good := startElement("a")

	// when
	first := v.Validate(&bad)
	second := v.Validate(&good)

	// then
	assert.NotNil(t, first)
	assert.Equal(t, first, second)
}

func TestValidateResetAllowsReuse(t *testing.T) {
	// given
	v := NewStreamValidator()
	bad := endElement("a")
	root := startElement("a")
	rootEnd := endElement("a")

	// when
	assert.NotNil(t, v.Validate(&bad))
	v.Reset()

	// then
	assert.Nil(t, v.Validate(&root))
	assert.Nil(t, v.Validate(&rootEnd))
	assert.Equal(t, 0, v.Depth())
}

func TestValidateSameSequenceTwice(t *testing.T) {
	// given
	v := NewStreamValidator()
	evs := []Event{
		startElement("a"),
		characters("x"),
		endElement("a"),
		endDocument(),
	}

	// when / then
	for i := range evs {
		assert.Nil(t, v.Validate(&evs[i]))
	}
	v.Reset()
	for i := range evs {
		assert.Nil(t, v.Validate(&evs[i]))
	}
}
