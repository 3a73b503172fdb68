package gomarkup

import (
	"errors"
	"io"
	"strings"
)

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;")

// Encoder writes a token sequence back out as markup text. The
// output re-tokenizes to the same token sequence: element and
// attribute names are written together with the namespace
// declarations needed to make their resolved names come out
// identical.
type Encoder struct {
	// The io.Writer we encode/write into.
	w io.Writer

	// scope chain mirroring the namespace environment of the
	// tokens written so far.
	scopes ScopeChain

	// names of open elements; ElementEnd tokens carry no name.
	openNames []DataName

	// The kind of the last element token whose tag is still open.
	// This is used to delay encoding the ending ">" or "/>" until
	// all Attribute tokens of the element have been written.
	pendingTag byte

	// Whether the last token was an Attribute, in which case the
	// next token is its value.
	pendingAttribute bool
}

// NewEncoder creates a new Encoder writing into w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Reset resets this Encoder to write into the provided io.Writer.
func (thiz *Encoder) Reset(w io.Writer) {
	thiz.w = w
	thiz.scopes.reset()
	thiz.openNames = thiz.openNames[:0]
	thiz.pendingTag = TokenKindInvalid
	thiz.pendingAttribute = false
}

// EncodeTokens writes all tokens and flushes any still-open tag.
func (thiz *Encoder) EncodeTokens(tokens []Token) error {
	for i := range tokens {
		err := thiz.EncodeToken(&tokens[i])
		if err != nil {
			return err
		}
	}
	return thiz.Flush()
}

// EncodeToken writes the byte-representation of the Token to the
// io.Writer of this Encoder.
func (thiz *Encoder) EncodeToken(t *Token) error {
	if thiz.pendingAttribute {
		return thiz.encodeAttributeValue(t)
	}
	switch t.Kind {
	case TokenKindElementBegin, TokenKindElementVoid:
		return thiz.encodeElementBegin(t)
	case TokenKindElementEnd:
		return thiz.encodeElementEnd()
	case TokenKindAttribute:
		return thiz.encodeAttribute(t)
	case TokenKindPrimitive:
		err := thiz.closePendingTag()
		if err != nil {
			return err
		}
		_, err = io.WriteString(thiz.w, textEscaper.Replace(t.Value))
		return err
	case TokenKindUnparsed:
		err := thiz.closePendingTag()
		if err != nil {
			return err
		}
		return thiz.writeUnparsed(t)
	default:
		return errors.New("cannot encode token of unknown kind")
	}
}

// Flush closes a still-open element tag. EncodeTokens calls it; it
// only needs to be called directly when feeding tokens one by one.
func (thiz *Encoder) Flush() error {
	if thiz.pendingAttribute {
		return errors.New("attribute token without a value token")
	}
	return thiz.closePendingTag()
}

func (thiz *Encoder) encodeElementBegin(t *Token) error {
	err := thiz.closePendingTag()
	if err != nil {
		return err
	}
	_, err = io.WriteString(thiz.w, "<"+t.Name.String())
	if err != nil {
		return err
	}
	thiz.scopes.Push(NewScope())
	err = thiz.writeNamespaceDecl(t.Name)
	if err != nil {
		return err
	}
	if t.Kind == TokenKindElementBegin {
		thiz.openNames = append(thiz.openNames, t.Name)
	}
	thiz.pendingTag = t.Kind
	return nil
}

// encodeElementEnd writes the explicit end tag of the innermost open
// element. An immediately closed element is NOT collapsed to "/>",
// because that would re-tokenize as a void element.
func (thiz *Encoder) encodeElementEnd() error {
	err := thiz.closePendingTag()
	if err != nil {
		return err
	}
	if len(thiz.openNames) == 0 {
		return errors.New("element end without open element")
	}
	name := thiz.openNames[len(thiz.openNames)-1]
	thiz.openNames = thiz.openNames[:len(thiz.openNames)-1]
	thiz.scopes.Pop()
	_, err = io.WriteString(thiz.w, "</"+name.String()+">")
	return err
}

func (thiz *Encoder) encodeAttribute(t *Token) error {
	if thiz.pendingTag == TokenKindInvalid {
		return errors.New("attribute token outside of an element tag")
	}
	err := thiz.writeNamespaceDecl(t.Name)
	if err != nil {
		return err
	}
	_, err = io.WriteString(thiz.w, " "+t.Name.String())
	if err != nil {
		return err
	}
	thiz.pendingAttribute = true
	return nil
}

func (thiz *Encoder) encodeAttributeValue(t *Token) error {
	thiz.pendingAttribute = false
	switch t.Kind {
	case TokenKindPrimitive:
		quote := "\""
		if strings.Contains(t.Value, "\"") {
			if strings.Contains(t.Value, "'") {
				return errors.New("attribute value not representable in either quote style")
			}
			quote = "'"
		}
		_, err := io.WriteString(thiz.w, "="+quote+t.Value+quote)
		return err
	case TokenKindUnparsed:
		_, err := io.WriteString(thiz.w, "=\"")
		if err != nil {
			return err
		}
		err = thiz.writeUnparsed(t)
		if err != nil {
			return err
		}
		_, err = io.WriteString(thiz.w, "\"")
		return err
	default:
		return errors.New("attribute token without a value token")
	}
}

// writeNamespaceDecl emits the xmlns declaration needed to make the
// given name resolve to its namespace, unless the chain already
// resolves it that way.
func (thiz *Encoder) writeNamespaceDecl(name DataName) error {
	if thiz.scopes.ResolveNamespace(name.Prefix) == name.Namespace {
		return nil
	}
	top := thiz.scopes.scopes[len(thiz.scopes.scopes)-1]
	top.Bind(name.Prefix, name.Namespace)
	decl := " xmlns"
	if name.Prefix != "" {
		decl += ":" + name.Prefix
	}
	_, err := io.WriteString(thiz.w, decl+"=\""+name.Namespace+"\"")
	return err
}

func (thiz *Encoder) writeUnparsed(t *Token) error {
	_, err := io.WriteString(thiz.w, "<"+t.Begin+t.Value+t.End)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(t.End, ">") {
		_, err = io.WriteString(thiz.w, ">")
	}
	return err
}

func (thiz *Encoder) closePendingTag() error {
	var err error
	switch thiz.pendingTag {
	case TokenKindElementBegin:
		_, err = io.WriteString(thiz.w, ">")
	case TokenKindElementVoid:
		_, err = io.WriteString(thiz.w, " />")
		thiz.scopes.Pop()
	}
	thiz.pendingTag = TokenKindInvalid
	return err
}
