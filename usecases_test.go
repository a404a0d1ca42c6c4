package goxmlstream_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/HBTGmbH/goxmlstream"
	"github.com/stretchr/testify/assert"
)

func TestSOAPEnvelopeMinified(t *testing.T) {
	// given
	doc := "<SOAP-ENV:Envelope xmlns:SOAP-ENV=\"http://schemas.xmlsoap.org/soap/envelope/\">" +
		"<SOAP-ENV:Body>" +
		"<m:GetPrice xmlns:m=\"https://www.w3schools.com/prices\">" +
		"<m:Item>Apples</m:Item>" +
		"</m:GetPrice>" +
		"</SOAP-ENV:Body>" +
		"</SOAP-ENV:Envelope>"
	dec := goxmlstream.NewDecoder(strings.NewReader(doc))
	modifier := goxmlstream.NewNamespaceModifier()
	var buf bytes.Buffer
	enc := goxmlstream.NewEncoder(&buf, modifier)

	// when
	sawGetPrice := false
	for {
		var ev goxmlstream.Event
		err := dec.NextEvent(&ev)
		if err == io.EOF {
			break
		}
		assert.Nil(t, err)
		assert.Nil(t, enc.EncodeEvent(&ev))
		if ev.Kind == goxmlstream.EventStartElement &&
			bytes.Equal(ev.Name.Local, []byte("GetPrice")) {
			sawGetPrice = true

			// then: the effective namespace survives the prefix rewrite
			assert.Equal(t,
				[]byte("https://www.w3schools.com/prices"),
				modifier.NamespaceOfEvent(&ev))
		}
	}

	// then
	assert.True(t, sawGetPrice)
	assert.Equal(t,
		"<a:Envelope xmlns:a=\"http://schemas.xmlsoap.org/soap/envelope/\">"+
			"<a:Body>"+
			"<b:GetPrice xmlns:b=\"https://www.w3schools.com/prices\">"+
			"<b:Item>Apples</b:Item>"+
			"</b:GetPrice>"+
			"</a:Body>"+
			"</a:Envelope>",
		buf.String())
}

func TestSOAPEnvelopeResponseReusesPrefix(t *testing.T) {
	// given: response declares the same envelope namespace twice
	doc := "<env:Envelope xmlns:env=\"http://schemas.xmlsoap.org/soap/envelope/\">" +
		"<env2:Body xmlns:env2=\"http://schemas.xmlsoap.org/soap/envelope/\"/>" +
		"</env:Envelope>"
	dec := goxmlstream.NewDecoder(strings.NewReader(doc))
	var buf bytes.Buffer
	enc := goxmlstream.NewEncoder(&buf, goxmlstream.NewNamespaceModifier())

	// when
	for {
		var ev goxmlstream.Event
		err := dec.NextEvent(&ev)
		if err == io.EOF {
			break
		}
		assert.Nil(t, err)
		assert.Nil(t, enc.EncodeEvent(&ev))
	}

	// then: the second declaration collapses onto the existing alias
	assert.Equal(t,
		"<a:Envelope xmlns:a=\"http://schemas.xmlsoap.org/soap/envelope/\">"+
			"<a:Body/>"+
			"</a:Envelope>",
		buf.String())
}
