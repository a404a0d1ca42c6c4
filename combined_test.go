package goxmlstream

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTripSimple(t *testing.T) {
	decodeEncodeIdentity(t, "<a><b attr=\"1\">text</b></a>")
}

func TestRoundTripBodiless(t *testing.T) {
	decodeEncodeIdentity(t, "<a><b/><c/></a>")
}

func TestRoundTripCommentAndCData(t *testing.T) {
	decodeEncodeIdentity(t, "<a><!--c--><![CDATA[x<y]]></a>")
}

func TestRoundTripDeclaration(t *testing.T) {
	decodeEncodeIdentity(t, "<?xml version=\"1.0\" encoding=\"UTF-8\"?><a/>")
}

func TestRoundTripEscapedText(t *testing.T) {
	decodeEncodeIdentity(t, "<a>1 &lt; 2 &amp;&amp; 3 &gt; 2</a>")
}

func TestRoundTripEscapedAttr(t *testing.T) {
	decodeEncodeIdentity(t, "<a b=\"&quot;x&quot; &amp; y\"/>")
}

func TestRoundTripWhitespace(t *testing.T) {
	decodeEncodeIdentity(t, "<a>\n  <b/>\n</a>")
}

func TestRoundTripProcInst(t *testing.T) {
	decodeEncodeIdentity(t, "<?xml-stylesheet href=\"style.css\"?><a/>")
}

func TestNamespaceMinification(t *testing.T) {
	// given
	doc := "<ns:a xmlns:ns=\"https://mynamespace\"><b xmlns=\"https://mynamespace\"><c /></b></ns:a>"

	// when
	out := decodeEncode(t, doc, NewNamespaceModifier())

	// then
	assert.Equal(t, "<a:a xmlns:a=\"https://mynamespace\"><a:b><a:c/></a:b></a:a>", out)
}

func TestNamespaceSameURISideBySide(t *testing.T) {
	// given
	doc := "<ns1:a xmlns:ns1=\"https://ns\"><ns2:b xmlns:ns2=\"https://ns\"/></ns1:a>"

	// when
	out := decodeEncode(t, doc, NewNamespaceModifier())

	// then: the second declaration of the same URI is dropped and its
	// prefix rewritten to the alias already in scope
	assert.Equal(t, "<a:a xmlns:a=\"https://ns\"><a:b/></a:a>", out)
}

func TestNamespacePreserveOriginalPrefixes(t *testing.T) {
	// given
	doc := "<ns:a xmlns:ns=\"https://ns\"><ns:b/></ns:a>"
	modifier := NewNamespaceModifier()
	modifier.PreserveOriginalPrefixes = true

	// when
	out := decodeEncode(t, doc, modifier)

	// then
	assert.Equal(t, "<ns:a xmlns:ns=\"https://ns\"><ns:b/></ns:a>", out)
}

func TestNamespaceOfEvent(t *testing.T) {
	// given
	doc := "<ns:a xmlns:ns=\"https://ns\"><b/></ns:a>"
	dec := NewDecoder(strings.NewReader(doc))
	modifier := NewNamespaceModifier()

	// when / then
	var ev Event
	assert.Nil(t, dec.NextEvent(&ev))
	assert.Nil(t, modifier.EncodeEvent(&ev))
	assert.Equal(t, []byte("https://ns"), modifier.NamespaceOfEvent(&ev))

	var inner Event
	assert.Nil(t, dec.NextEvent(&inner))
	assert.Nil(t, modifier.EncodeEvent(&inner))
	assert.Nil(t, modifier.NamespaceOfEvent(&inner))
}

func TestRoundTripThroughValidator(t *testing.T) {
	// given
	doc := "<a><b>one</b><!--two--><c/></a>"

	// when
	out := decodeEncode(t, doc, NewStreamValidator())

	// then
	assert.Equal(t, doc, out)
}

func decodeEncodeIdentity(t *testing.T, doc string) {
	assert.Equal(t, doc, decodeEncode(t, doc))
}

func decodeEncode(t *testing.T, doc string, middlewares ...EncoderMiddleware) string {
	dec := NewDecoder(strings.NewReader(doc))
	var buf bytes.Buffer
	enc := NewEncoder(&buf, middlewares...)
	for {
		var ev Event
		err := dec.NextEvent(&ev)
		if err == io.EOF {
			return buf.String()
		}
		assert.Nil(t, err)
		assert.Nil(t, enc.EncodeEvent(&ev))
	}
}
