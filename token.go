package gomarkup

import (
	"fmt"
	"strconv"
)

// constants for Token.Kind
const (
	TokenKindInvalid = iota
	TokenKindElementBegin
	TokenKindElementEnd
	TokenKindElementVoid
	TokenKindAttribute
	TokenKindPrimitive
	TokenKindUnparsed
)

// Token represents the union of all possible token kinds
// and their respective information.
type Token struct {
	Kind byte

	// only for TokenKindElementBegin, TokenKindElementVoid
	// and TokenKindAttribute. TokenKindElementEnd carries no
	// name; end tags pair with their begin tags positionally.
	Name DataName

	// only for TokenKindPrimitive and TokenKindUnparsed
	Value string

	// only for TokenKindUnparsed: the marker characters after "<"
	// that opened the block and the marker that closed it.
	Begin string
	End   string
}

// String renders a compact, human-readable form of the token.
func (t Token) String() string {
	switch t.Kind {
	case TokenKindElementBegin:
		return "ElementBegin(" + describeName(t.Name) + ")"
	case TokenKindElementEnd:
		return "ElementEnd"
	case TokenKindElementVoid:
		return "ElementVoid(" + describeName(t.Name) + ")"
	case TokenKindAttribute:
		return "Attribute(" + describeName(t.Name) + ")"
	case TokenKindPrimitive:
		return "Primitive(" + strconv.Quote(t.Value) + ")"
	case TokenKindUnparsed:
		return fmt.Sprintf("Unparsed(%q, %q, %q)", t.Begin, t.End, t.Value)
	}
	return "Invalid"
}

func describeName(n DataName) string {
	if n.Namespace == "" {
		return n.String()
	}
	return n.String() + " ns=" + n.Namespace
}

func elementBegin(name DataName) Token {
	return Token{Kind: TokenKindElementBegin, Name: name}
}

func elementEnd() Token {
	return Token{Kind: TokenKindElementEnd}
}

func elementVoid(name DataName) Token {
	return Token{Kind: TokenKindElementVoid, Name: name}
}

func attribute(name DataName) Token {
	return Token{Kind: TokenKindAttribute, Name: name}
}

func primitive(value string) Token {
	return Token{Kind: TokenKindPrimitive, Value: value}
}

func unparsed(begin, end, value string) Token {
	return Token{Kind: TokenKindUnparsed, Begin: begin, End: end, Value: value}
}
