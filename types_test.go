package goxmlstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameString(t *testing.T) {
	assert.Equal(t, "a", Name{Local: []byte("a")}.String())
	assert.Equal(t, "ns:a", Name{Prefix: []byte("ns"), Local: []byte("a")}.String())
}

func TestAttrEqualIgnoresQuoteStyle(t *testing.T) {
	// given
	a := Attr{Name: Name{Local: []byte("b")}, Value: []byte("v"), SingleQuote: true}
	b := Attr{Name: Name{Local: []byte("b")}, Value: []byte("v"), SingleQuote: false}

	// when / then
	assert.True(t, a.Equal(b))
}

func TestEventEqualIgnoresIrrelevantFields(t *testing.T) {
	// given: the stale ByteData must not take part in the comparison
	a := Event{Kind: EventEndElement, Name: Name{Local: []byte("a")}, ByteData: []byte("stale")}
	b := Event{Kind: EventEndElement, Name: Name{Local: []byte("a")}}

	// when / then
	assert.True(t, a.Equal(&b))
}

func TestEventEqualDifferentKinds(t *testing.T) {
	// given
	a := Event{Kind: EventCharacters, ByteData: []byte("x")}
	b := Event{Kind: EventCData, ByteData: []byte("x")}

	// when / then
	assert.False(t, a.Equal(&b))
}

func TestEventEqualStartElement(t *testing.T) {
	// given
	a := Event{
		Kind: EventStartElement,
		Name: Name{Local: []byte("a")},
		Attr: []Attr{{Name: Name{Local: []byte("b")}, Value: []byte("1")}},
	}
	b := Event{
		Kind: EventStartElement,
		Name: Name{Local: []byte("a")},
		Attr: []Attr{{Name: Name{Local: []byte("b")}, Value: []byte("2")}},
	}

	// when / then
	assert.False(t, a.Equal(&b))
	b.Attr[0].Value = []byte("1")
	assert.True(t, a.Equal(&b))
}

func TestXMLVersionString(t *testing.T) {
	assert.Equal(t, "1.0", XMLVersion10.String())
	assert.Equal(t, "1.1", XMLVersion11.String())
}
