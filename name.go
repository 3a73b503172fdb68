package gomarkup

import (
	"fmt"
	"strings"
)

// QName is a qualified name as written in source, like "xmlns:blubb"
// or simply without prefix like "a".
type QName struct {
	Prefix string
	Local  string
}

// ParseQName splits a raw name on its first colon.
// A name with no colon has an empty prefix. More than one
// colon, or an empty input, is a malformed name.
func ParseQName(s string) (QName, error) {
	if s == "" {
		return QName{}, fmt.Errorf("invalid name %q", s)
	}
	switch strings.Count(s, ":") {
	case 0:
		return QName{Local: s}, nil
	case 1:
		i := strings.IndexByte(s, ':')
		return QName{Prefix: s[:i], Local: s[i+1:]}, nil
	default:
		return QName{}, fmt.Errorf("invalid name %q", s)
	}
}

// Name creates a QName without a prefix.
func Name(local string) QName {
	return QName{Local: local}
}

// PrefixedName creates a QName with the given prefix.
func PrefixedName(prefix, local string) QName {
	return QName{Prefix: prefix, Local: local}
}

func (q QName) String() string {
	if q.Prefix == "" {
		return q.Local
	}
	return q.Prefix + ":" + q.Local
}

// DataName is a QName resolved against the namespace bindings
// in effect where it was emitted. An unresolvable prefix leaves
// the namespace empty.
type DataName struct {
	Local     string
	Prefix    string
	Namespace string
}

// NewDataName retains all three parts verbatim.
func NewDataName(local, prefix, namespace string) DataName {
	return DataName{Local: local, Prefix: prefix, Namespace: namespace}
}

func (n DataName) String() string {
	if n.Prefix == "" {
		return n.Local
	}
	return n.Prefix + ":" + n.Local
}
