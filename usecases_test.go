package gomarkup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeHTMLPage(t *testing.T) {
	// given
	input := `<!DOCTYPE html>
<html>
<head>
<script>if (a < b && c) { run(); }</script>
</head>
<body class=main>
<!-- navigation -->
<p>Caf&eacute; &amp; more&hellip;</p>
<br />
</body>
</html>`
	tok := NewTokenizer(WithUnparsedTags(Name("script"), Name("style")))

	// when
	tokens, err := tok.TokenizeString(input)

	// then
	assert.Nil(t, err)
	assert.Equal(t, []Token{
		unparsed("!", "", "DOCTYPE html"),
		text("\n"),
		begin("html"),
		text("\n"),
		begin("head"),
		text("\n"),
		begin("script"),
		text("if (a < b && c) { run(); }"),
		end(),
		text("\n"),
		end(),
		text("\n"),
		begin("body"),
		attr("class"),
		text("main"),
		text("\n"),
		unparsed("!--", "--", " navigation "),
		text("\n"),
		begin("p"),
		text("Café & more…"),
		end(),
		text("\n"),
		void("br"),
		text("\n"),
		end(),
		text("\n"),
		end(),
	}, tokens)
}

func TestTokenizePHPTemplate(t *testing.T) {
	// given
	input := `<?php $title = "Hi"; ?><h1><?= $title ?></h1>`
	tok := NewTokenizer()

	// when
	tokens, err := tok.TokenizeString(input)

	// then
	assert.Nil(t, err)
	assert.Equal(t, []Token{
		unparsed("?", "?>", `php $title = "Hi"; `),
		begin("h1"),
		unparsed("?=", "?>", " $title "),
		end(),
	}, tokens)
}

func TestTokenizeSOAPEnvelope(t *testing.T) {
	// given
	input := `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope/" soap:encodingStyle="http://www.w3.org/2003/05/soap-encoding">
<soap:Body><m:GetPrice xmlns:m="https://www.w3schools.com/prices"><m:Item>Apples</m:Item></m:GetPrice></soap:Body>
</soap:Envelope>`
	tok := NewTokenizer()
	env := "http://www.w3.org/2003/05/soap-envelope/"
	prices := "https://www.w3schools.com/prices"

	// when
	tokens, err := tok.TokenizeString(input)

	// then
	assert.Nil(t, err)
	assert.Equal(t, []Token{
		elementBegin(NewDataName("Envelope", "soap", env)),
		attribute(NewDataName("encodingStyle", "soap", env)),
		text("http://www.w3.org/2003/05/soap-encoding"),
		text("\n"),
		elementBegin(NewDataName("Body", "soap", env)),
		elementBegin(NewDataName("GetPrice", "m", prices)),
		elementBegin(NewDataName("Item", "m", prices)),
		text("Apples"),
		end(),
		end(),
		end(),
		text("\n"),
		end(),
	}, tokens)
}

func TestTokenizeT4Template(t *testing.T) {
	// given
	input := `<#@ template language="C#" #><# foreach (var x in xs) { #><li><#= x #></li><# } #>`
	tok := NewTokenizer()

	// when
	tokens, err := tok.TokenizeString(input)

	// then
	assert.Nil(t, err)
	assert.Equal(t, []Token{
		unparsed("#@", "#>", ` template language="C#" `),
		unparsed("#", "#>", " foreach (var x in xs) { "),
		begin("li"),
		unparsed("#=", "#>", " x "),
		end(),
		unparsed("#", "#>", " } "),
	}, tokens)
}
