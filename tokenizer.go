package gomarkup

import (
	"errors"
	"io"
	"strconv"
	"strings"
)

// Tokenizer scans a TextStream into a flat sequence of Tokens.
// It is permissive in the HTML sense: input that merely violates
// strict XML is recovered by emitting literal text, tolerating
// malformed markers and (optionally) auto-balancing tags.
//
// A Tokenizer may be reused across calls, but only serially.
type Tokenizer struct {
	scopes ScopeChain
	tokens []Token

	// set while inside a raw-text element; its content is passed
	// through as literal text until the matching end tag.
	unparseBlock *QName

	// consumed '/' of a pending "/>" while scanning an unquoted
	// attribute value.
	pendingSlash bool

	autoBalanceTags        bool
	unwrapUnparsedComments bool
	unparsedTags           map[QName]bool
}

// TokenizerOption configures a Tokenizer.
type TokenizerOption func(*Tokenizer)

// WithAutoBalanceTags makes the tokenizer emit synthetic element
// ends for every scope still open at the end of the stream, and
// tolerate mismatched end tags by closing down to the matching
// scope (or dropping the stray end tag entirely).
func WithAutoBalanceTags() TokenizerOption {
	return func(t *Tokenizer) {
		t.autoBalanceTags = true
	}
}

// WithUnwrapUnparsedComments replaces comment blocks enclosed in a
// raw-text element with plain text tokens holding the comment body.
func WithUnwrapUnparsedComments() TokenizerOption {
	return func(t *Tokenizer) {
		t.unwrapUnparsedComments = true
	}
}

// WithUnparsedTags declares element names whose content is raw text
// until the matching end tag, like HTML's script and style.
func WithUnparsedTags(names ...QName) TokenizerOption {
	return func(t *Tokenizer) {
		for _, n := range names {
			t.unparsedTags[n] = true
		}
	}
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer(opts ...TokenizerOption) *Tokenizer {
	t := &Tokenizer{
		unparsedTags: make(map[QName]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tokenize scans the stream to completion and returns the token
// sequence. The stream is owned by the call: if it is an io.Closer
// it is closed before Tokenize returns.
func (thiz *Tokenizer) Tokenize(s TextStream) ([]Token, error) {
	if c, ok := s.(io.Closer); ok {
		defer c.Close()
	}
	thiz.tokens = nil
	thiz.scopes.reset()
	thiz.unparseBlock = nil
	thiz.pendingSlash = false
	err := thiz.scan(s)
	if s.Err() != nil {
		return nil, wrapDeserializationError(s, s.Err())
	}
	if err != nil {
		var derr *DeserializationError
		if !errors.As(err, &derr) {
			return nil, wrapDeserializationError(s, err)
		}
		return nil, err
	}
	return thiz.tokens, nil
}

// TokenizeString tokenizes an in-memory document.
func (thiz *Tokenizer) TokenizeString(doc string) ([]Token, error) {
	return thiz.Tokenize(NewStringStream(doc))
}

// TokenizeReader tokenizes a document read from r.
func (thiz *Tokenizer) TokenizeReader(r io.Reader) ([]Token, error) {
	return thiz.Tokenize(NewReaderStream(r))
}

func (thiz *Tokenizer) scan(s TextStream) error {
	s.BeginChunk()
	for !s.Completed() {
		switch s.Peek() {
		case '<':
			thiz.emitText(s.EndChunk())
			err := thiz.scanTag(s)
			if err != nil {
				return err
			}
			s.BeginChunk()
		case '&':
			thiz.emitText(s.EndChunk())
			text, err := thiz.scanEntity(s)
			if err != nil {
				return err
			}
			thiz.emitText(text)
			s.BeginChunk()
		default:
			s.Pop()
		}
	}
	thiz.emitText(s.EndChunk())
	if thiz.autoBalanceTags {
		for thiz.scopes.Pop() != nil {
			thiz.emit(elementEnd())
		}
	}
	return nil
}

// scanTag is entered on an element begin marker. The '<' has not
// been consumed yet.
func (thiz *Tokenizer) scanTag(s TextStream) error {
	s.Pop() // '<'
	if s.Completed() {
		thiz.emitText("<")
		return nil
	}
	tok, matched, err := thiz.scanUnparsedBlock(s)
	if err != nil {
		return err
	}
	if matched {
		switch {
		case tok.Kind == TokenKindPrimitive:
			thiz.emitText(tok.Value)
		case thiz.unparseBlock != nil && thiz.unwrapUnparsedComments && tok.Begin == "!--":
			thiz.emitText(tok.Value)
		default:
			thiz.emit(tok)
		}
		return nil
	}
	tagKind := byte(TokenKindElementBegin)
	slash := false
	if s.Peek() == '/' {
		s.Pop()
		slash = true
		tagKind = TokenKindElementEnd
	}
	q, ok, err := thiz.scanQName(s, "malformed element name")
	if err != nil {
		return err
	}
	if !ok {
		// not actually a tag
		if slash {
			thiz.emitText("</")
		} else {
			thiz.emitText("<")
		}
		return nil
	}
	if thiz.unparseBlock != nil && (q != *thiz.unparseBlock || tagKind != TokenKindElementEnd) {
		// raw text passthrough
		if slash {
			thiz.emitText("</" + q.String())
		} else {
			thiz.emitText("<" + q.String())
		}
		return nil
	}
	attrs, tagKind, err := thiz.scanAttributes(s, tagKind)
	if err != nil {
		return err
	}
	err = thiz.emitTag(s, tagKind, q, attrs)
	if err != nil {
		return err
	}
	if tagKind == TokenKindElementBegin && thiz.unparsedTags[q] {
		name := q
		thiz.unparseBlock = &name
	} else {
		thiz.unparseBlock = nil
	}
	return nil
}

// scanQName reads a run of name characters and splits it into a
// QName. It consumes nothing when the stream does not start with a
// name-start character.
func (thiz *Tokenizer) scanQName(s TextStream, errMessage string) (QName, bool, error) {
	if s.Completed() || !isNameStartChar(s.Peek()) {
		return QName{}, false, nil
	}
	s.BeginChunk()
	for !s.Completed() && isNameChar(s.Peek()) {
		s.Pop()
	}
	raw := s.EndChunk()
	q, err := ParseQName(raw)
	if err != nil {
		derr := deserializationError(s, errMessage)
		derr.Cause = err
		return QName{}, false, derr
	}
	return q, true, nil
}

// tagAttr is an attribute collected while scanning a tag. The value
// is its future output token, a Primitive or an Unparsed.
type tagAttr struct {
	name  QName
	value Token
}

func (thiz *Tokenizer) scanAttributes(s TextStream, tagKind byte) ([]tagAttr, byte, error) {
	var attrs []tagAttr
	for {
		complete, kind, err := thiz.isTagComplete(s, tagKind)
		if err != nil {
			return nil, tagKind, err
		}
		tagKind = kind
		if complete {
			return attrs, tagKind, nil
		}
		q, ok, err := thiz.scanQName(s, "malformed attribute name")
		if err != nil {
			return nil, tagKind, err
		}
		if !ok {
			return nil, tagKind, deserializationError(s, "malformed attribute name")
		}
		value, err := thiz.scanAttributeValue(s)
		if err != nil {
			return nil, tagKind, err
		}
		attrs = append(attrs, tagAttr{name: q, value: value})
	}
}

// isTagComplete checks for the closing ">" or "/>" of a tag. A "/>"
// promotes a begin tag to a void tag.
func (thiz *Tokenizer) isTagComplete(s TextStream, tagKind byte) (bool, byte, error) {
	slash := thiz.pendingSlash
	thiz.pendingSlash = false
	if !slash {
		thiz.skipWhitespaces(s)
		if s.Completed() {
			return false, tagKind, deserializationError(s, "unexpected end of stream in tag")
		}
		switch s.Peek() {
		case '/':
			s.Pop()
			slash = true
		case '>':
			s.Pop()
			return true, tagKind, nil
		default:
			return false, tagKind, nil
		}
	}
	if s.Completed() || s.Peek() != '>' {
		return false, tagKind, deserializationError(s, "malformed void tag")
	}
	if tagKind != TokenKindElementBegin {
		return false, tagKind, deserializationError(s, "malformed void tag")
	}
	s.Pop()
	return true, TokenKindElementVoid, nil
}

func (thiz *Tokenizer) scanAttributeValue(s TextStream) (Token, error) {
	thiz.skipWhitespaces(s)
	if s.Completed() || s.Peek() != '=' {
		// HTML-style empty attribute
		return primitive(""), nil
	}
	s.Pop() // '='
	thiz.skipWhitespaces(s)
	if s.Completed() {
		return Token{}, deserializationError(s, "unexpected end of stream in attribute value")
	}
	c := s.Peek()
	if c == '"' || c == '\'' {
		return thiz.scanQuotedValue(s)
	}
	return thiz.scanUnquotedValue(s)
}

func (thiz *Tokenizer) scanQuotedValue(s TextStream) (Token, error) {
	quote := s.Pop()
	if !s.Completed() && s.Peek() == '<' {
		s.BeginChunk()
		s.Pop() // '<'
		tok, matched, err := thiz.scanUnparsedBlock(s)
		if err != nil {
			return Token{}, err
		}
		if matched {
			for {
				if s.Completed() {
					return Token{}, deserializationError(s, "unexpected end of stream in attribute value")
				}
				c := s.Peek()
				if c == quote {
					s.Pop()
					return tok, nil
				}
				if isWhitespace(c) {
					return Token{}, deserializationError(s, "malformed attribute value")
				}
				s.Pop()
			}
		}
		// not a block after all; the chunk already holds the "<"
		return thiz.finishQuotedValue(s, quote)
	}
	s.BeginChunk()
	return thiz.finishQuotedValue(s, quote)
}

func (thiz *Tokenizer) finishQuotedValue(s TextStream, quote rune) (Token, error) {
	for {
		if s.Completed() {
			return Token{}, deserializationError(s, "unexpected end of stream in attribute value")
		}
		if s.Peek() == quote {
			break
		}
		s.Pop()
	}
	value := s.EndChunk()
	s.Pop() // closing quote
	return primitive(value), nil
}

func (thiz *Tokenizer) scanUnquotedValue(s TextStream) (Token, error) {
	s.BeginChunk()
	if s.Peek() == '<' {
		s.Pop()
		tok, matched, err := thiz.scanUnparsedBlock(s)
		if err != nil {
			return Token{}, err
		}
		if matched {
			return tok, nil
		}
	}
	slash := false
	for {
		if s.Completed() {
			return Token{}, deserializationError(s, "unexpected end of stream in attribute value")
		}
		c := s.Peek()
		if isWhitespace(c) || c == '>' {
			break
		}
		if c == '/' {
			s.Pop()
			if !s.Completed() && s.Peek() == '>' {
				// the '/' belongs to a closing "/>"
				slash = true
				break
			}
			continue
		}
		s.Pop()
	}
	value := s.EndChunk()
	if slash {
		value = strings.TrimSuffix(value, "/")
		thiz.pendingSlash = true
	}
	return primitive(value), nil
}

// scanUnparsedBlock recognizes SGML declarations, comments, CDATA,
// processing instructions and the ASP/JSP/PHP and T4 code block
// families. The '<' has already been consumed; when the next
// character selects none of the branches, nothing is consumed and
// the caller proceeds as with an ordinary tag.
func (thiz *Tokenizer) scanUnparsedBlock(s TextStream) (Token, bool, error) {
	if s.Completed() {
		return Token{}, false, nil
	}
	switch s.Peek() {
	case '!':
		s.Pop()
		if !s.Completed() && s.Peek() == '-' {
			err := thiz.expectMarker(s, "--")
			if err != nil {
				return Token{}, false, err
			}
			body, err := thiz.scanUnparsedBody(s, "--")
			if err != nil {
				return Token{}, false, err
			}
			return unparsed("!--", "--", body), true, nil
		}
		if !s.Completed() && s.Peek() == '[' {
			err := thiz.expectMarker(s, "[CDATA[")
			if err != nil {
				return Token{}, false, err
			}
			body, err := thiz.scanUnparsedBody(s, "]]")
			if err != nil {
				return Token{}, false, err
			}
			return primitive(body), true, nil
		}
		body, err := thiz.scanUnparsedBody(s, "")
		if err != nil {
			return Token{}, false, err
		}
		return unparsed("!", "", body), true, nil
	case '?':
		s.Pop()
		begin := "?"
		if !s.Completed() && s.Peek() == '=' {
			s.Pop()
			begin = "?="
		}
		body, err := thiz.scanUnparsedBody(s, "?")
		if err != nil {
			return Token{}, false, err
		}
		return unparsed(begin, "?>", body), true, nil
	case '%':
		s.Pop()
		if !s.Completed() && s.Peek() == '-' {
			err := thiz.expectMarker(s, "--")
			if err != nil {
				return Token{}, false, err
			}
			body, err := thiz.scanUnparsedBody(s, "--%")
			if err != nil {
				return Token{}, false, err
			}
			return unparsed("%--", "--%", body), true, nil
		}
		begin := "%"
		if !s.Completed() && strings.ContainsRune("@=!#$:", s.Peek()) {
			begin = "%" + string(s.Pop())
		}
		body, err := thiz.scanUnparsedBody(s, "%")
		if err != nil {
			return Token{}, false, err
		}
		return unparsed(begin, "%>", body), true, nil
	case '#':
		s.Pop()
		if !s.Completed() && s.Peek() == '-' {
			err := thiz.expectMarker(s, "--")
			if err != nil {
				return Token{}, false, err
			}
			body, err := thiz.scanUnparsedBody(s, "--#")
			if err != nil {
				return Token{}, false, err
			}
			return unparsed("#--", "--#", body), true, nil
		}
		begin := "#"
		if !s.Completed() && strings.ContainsRune("@=+", s.Peek()) {
			begin = "#" + string(s.Pop())
		}
		body, err := thiz.scanUnparsedBody(s, "#")
		if err != nil {
			return Token{}, false, err
		}
		return unparsed(begin, "#>", body), true, nil
	}
	return Token{}, false, nil
}

// expectMarker consumes the given marker characters.
func (thiz *Tokenizer) expectMarker(s TextStream, marker string) error {
	for _, c := range marker {
		if s.Completed() {
			return deserializationError(s, "unexpected end of stream in unparsed block")
		}
		if s.Peek() != c {
			return deserializationError(s, "invalid tag start")
		}
		s.Pop()
	}
	return nil
}

// scanUnparsedBody reads until the end marker followed by '>'. The
// marker is stripped from the returned body and the '>' is consumed.
func (thiz *Tokenizer) scanUnparsedBody(s TextStream, end string) (string, error) {
	var sb strings.Builder
	for {
		if s.Completed() {
			return "", deserializationError(s, "unexpected end of stream in unparsed block")
		}
		if s.Peek() == '>' && strings.HasSuffix(sb.String(), end) {
			s.Pop()
			body := sb.String()
			return body[:len(body)-len(end)], nil
		}
		sb.WriteRune(s.Pop())
	}
}

// scanEntity decodes one character reference. The '&' has not been
// consumed yet. Anything that does not parse as a reference is
// returned verbatim, HTML-style.
func (thiz *Tokenizer) scanEntity(s TextStream) (string, error) {
	s.Pop() // '&'
	if s.Completed() {
		return "&", nil
	}
	c := s.Peek()
	if isWhitespace(c) || c == '&' || c == '<' {
		return "&", nil
	}
	if c == '#' {
		s.Pop()
		return thiz.scanNumericEntity(s), nil
	}
	var letters strings.Builder
	for !s.Completed() && (isLetter(s.Peek()) || isDigit(s.Peek())) {
		letters.WriteRune(s.Pop())
	}
	decoded, ok := decodeNamedEntity(letters.String())
	if !ok {
		return "&" + letters.String(), nil
	}
	if !s.Completed() && s.Peek() == ';' {
		s.Pop()
	}
	return decoded, nil
}

func (thiz *Tokenizer) scanNumericEntity(s TextStream) string {
	hex := false
	if !s.Completed() && (s.Peek() == 'x' || s.Peek() == 'X') {
		// a failed "&#X" literal is normalized to lowercase "&#x"
		hex = true
		s.Pop()
	}
	var digits strings.Builder
	for !s.Completed() {
		c := s.Peek()
		if hex && !isHexDigit(c) || !hex && !isDigit(c) {
			break
		}
		digits.WriteRune(s.Pop())
	}
	literal := "&#" + digits.String()
	base := 10
	if hex {
		literal = "&#x" + digits.String()
		base = 16
	}
	if digits.Len() == 0 {
		return literal
	}
	n, err := strconv.ParseInt(digits.String(), base, 64)
	if err != nil {
		return literal
	}
	decoded, ok := utf32String(n)
	if !ok {
		return literal
	}
	if !s.Completed() && s.Peek() == ';' {
		s.Pop()
	}
	return decoded
}

// emitTag resolves the tag name against the scope chain and emits
// the element token followed by its attribute tokens.
func (thiz *Tokenizer) emitTag(s TextStream, tagKind byte, q QName, attrs []tagAttr) error {
	if tagKind == TokenKindElementEnd {
		thiz.emitEndTag(q)
		return nil
	}
	scope := NewScope()
	// namespace declarations bind on this scope and are removed
	// from the attribute list
	for i := len(attrs) - 1; i >= 0; i-- {
		a := attrs[i]
		isDefault := a.name.Prefix == "" && a.name.Local == "xmlns"
		isPrefixed := a.name.Prefix == "xmlns"
		if !isDefault && !isPrefixed {
			continue
		}
		if a.value.Kind != TokenKindPrimitive {
			return deserializationError(s, "missing value in xmlns declaration")
		}
		if isDefault {
			scope.Bind("", a.value.Value)
		} else {
			scope.Bind(a.name.Local, a.value.Value)
		}
		attrs = append(attrs[:i], attrs[i+1:]...)
	}
	thiz.scopes.Push(scope)
	if q.Prefix != "" && !thiz.scopes.ContainsPrefix(q.Prefix) && thiz.scopes.ResolveNamespace("") != "" {
		// unknown prefix under a bound default namespace
		scope.Bind(q.Prefix, "")
	}
	scope.TagName = NewDataName(q.Local, q.Prefix, thiz.scopes.ResolveNamespace(q.Prefix))
	if tagKind == TokenKindElementVoid {
		thiz.emit(elementVoid(scope.TagName))
	} else {
		thiz.emit(elementBegin(scope.TagName))
	}
	for _, a := range attrs {
		name := NewDataName(a.name.Local, a.name.Prefix, thiz.scopes.ResolveNamespace(a.name.Prefix))
		thiz.emit(attribute(name))
		thiz.emit(a.value)
	}
	if tagKind == TokenKindElementVoid {
		thiz.scopes.Pop()
	}
	return nil
}

func (thiz *Tokenizer) emitEndTag(q QName) {
	closeName := NewDataName(q.Local, q.Prefix, thiz.scopes.ResolveNamespace(q.Prefix))
	popped := thiz.scopes.Pop()
	if popped != nil && popped.TagName == closeName {
		thiz.emit(elementEnd())
		return
	}
	if !thiz.autoBalanceTags {
		if popped != nil {
			thiz.scopes.Push(popped)
		}
		thiz.emit(elementEnd())
		return
	}
	if !thiz.scopes.ContainsTag(closeName) {
		// stray end tag, silently dropped
		if popped != nil {
			thiz.scopes.Push(popped)
		}
		return
	}
	// close down to the matching scope
	thiz.emit(elementEnd())
	for {
		p := thiz.scopes.Pop()
		if p == nil {
			return
		}
		thiz.emit(elementEnd())
		if p.TagName == closeName {
			return
		}
	}
}

func (thiz *Tokenizer) skipWhitespaces(s TextStream) {
	for !s.Completed() && isWhitespace(s.Peek()) {
		s.Pop()
	}
}

func (thiz *Tokenizer) emit(t Token) {
	thiz.tokens = append(thiz.tokens, t)
}

// emitText appends a text token, coalescing it with a directly
// preceding text token that is not an attribute value.
func (thiz *Tokenizer) emitText(value string) {
	if value == "" {
		return
	}
	n := len(thiz.tokens)
	if n > 0 && thiz.tokens[n-1].Kind == TokenKindPrimitive &&
		(n < 2 || thiz.tokens[n-2].Kind != TokenKindAttribute) {
		thiz.tokens[n-1].Value += value
		return
	}
	thiz.emit(primitive(value))
}
