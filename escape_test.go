package goxmlstream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnescapePredefinedEntities(t *testing.T) {
	// given
	in := []byte("&lt;&gt;&amp;&apos;&quot;")

	// when
	out, err := unescape(in)

	// then
	assert.Nil(t, err)
	assert.Equal(t, []byte("<>&'\""), out)
}

func TestUnescapeWithoutEntities(t *testing.T) {
	// given
	in := []byte("plain text")

	// when
	out, err := unescape(in)

	// then
	assert.Nil(t, err)
	assert.Equal(t, []byte("plain text"), out)
}

func TestUnescapeCharRefs(t *testing.T) {
	// given
	in := []byte("&#65;&#x42;&#xe9;")

	// when
	out, err := unescape(in)

	// then
	assert.Nil(t, err)
	assert.Equal(t, []byte("ABé"), out)
}

func TestUnescapeUnterminated(t *testing.T) {
	// when
	_, err := unescape([]byte("a &amp b"))

	// then
	assert.NotNil(t, err)
}

func TestUnescapeUnknownEntity(t *testing.T) {
	// when
	_, err := unescape([]byte("&nbsp;"))

	// then
	assert.NotNil(t, err)
}

func TestUnescapeCharRefOutOfRange(t *testing.T) {
	// when
	_, err := unescape([]byte("&#x110000;"))

	// then
	assert.NotNil(t, err)
	_, err = unescape([]byte("&#0;"))
	assert.NotNil(t, err)
}

func TestWriteEscapedText(t *testing.T) {
	// given
	var buf bytes.Buffer

	// when
	err := writeEscapedText(&buf, []byte("a<b>c&d'e\"f"))

	// then: quotes stay untouched in character data
	assert.Nil(t, err)
	assert.Equal(t, "a&lt;b&gt;c&amp;d'e\"f", buf.String())
}

func TestWriteEscapedAttr(t *testing.T) {
	// given
	var buf bytes.Buffer

	// when
	err := writeEscapedAttr(&buf, []byte("'\"<&"), false)

	// then: only the delimiting quote style is escaped
	assert.Nil(t, err)
	assert.Equal(t, "'&quot;&lt;&amp;", buf.String())
}
