package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is a GraphQL __TypeKind, plus Unknown for types referenced before
// probing has resolved them.
type Kind string

const (
	Scalar      Kind = "SCALAR"
	Object      Kind = "OBJECT"
	Interface   Kind = "INTERFACE"
	Union       Kind = "UNION"
	Enum        Kind = "ENUM"
	InputObject Kind = "INPUT_OBJECT"
	List        Kind = "LIST"
	NonNull     Kind = "NON_NULL"
	Unknown     Kind = "UNKNOWN"
)

// IsStructured reports whether values of the kind need a selection set.
func (k Kind) IsStructured() bool {
	return k == Object || k == Interface || k == Union
}

// IsLeaf reports whether the kind is SCALAR or ENUM.
func (k Kind) IsLeaf() bool {
	return k == Scalar || k == Enum
}

// BuiltinScalars are the scalars every GraphQL schema defines.
var BuiltinScalars = []string{"String", "Int", "Float", "Boolean", "ID"}

// IsBuiltinScalar reports whether name is one of BuiltinScalars.
func IsBuiltinScalar(name string) bool {
	for _, s := range BuiltinScalars {
		if s == name {
			return true
		}
	}
	return false
}

var typeNameRegex = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// TypeRef references a named type through zero or more LIST/NON_NULL
// wrappers. The zero value is invalid. TypeRefs are comparable with ==.
type TypeRef struct {
	name string
	// wrappers holds one byte per modifier, outermost first: 'L' for LIST,
	// 'N' for NON_NULL.
	wrappers string
}

// NamedType returns an unwrapped reference to name.
func NamedType(name string) TypeRef {
	return TypeRef{name: name}
}

// NewTypeRef builds a reference from a base name and wrappers listed
// outermost first. Kinds other than LIST and NON_NULL are ignored.
func NewTypeRef(name string, wrappers ...Kind) TypeRef {
	var b strings.Builder
	for _, w := range wrappers {
		switch w {
		case List:
			b.WriteByte('L')
		case NonNull:
			b.WriteByte('N')
		}
	}
	return TypeRef{name: name, wrappers: b.String()}
}

// ParseTypeRef parses SDL type notation such as "[String!]!".
func ParseTypeRef(s string) (TypeRef, error) {
	var wrappers strings.Builder
	rest := strings.TrimSpace(s)
	for {
		switch {
		case strings.HasSuffix(rest, "!"):
			wrappers.WriteByte('N')
			rest = strings.TrimSpace(strings.TrimSuffix(rest, "!"))
			if strings.HasSuffix(rest, "!") {
				return TypeRef{}, fmt.Errorf("invalid type reference %q: repeated non-null", s)
			}
		case strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]"):
			wrappers.WriteByte('L')
			rest = strings.TrimSpace(rest[1 : len(rest)-1])
		default:
			if !typeNameRegex.MatchString(rest) {
				return TypeRef{}, fmt.Errorf("invalid type reference %q", s)
			}
			return TypeRef{name: rest, wrappers: wrappers.String()}, nil
		}
	}
}

// MustParseTypeRef is ParseTypeRef that panics on error. Intended for tests
// and constants.
func MustParseTypeRef(s string) TypeRef {
	ref, err := ParseTypeRef(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// Name returns the base type name, e.g. "String" for "[String!]!".
func (t TypeRef) Name() string {
	return t.name
}

// IsZero reports whether t is the zero TypeRef.
func (t TypeRef) IsZero() bool {
	return t.name == ""
}

// Wrappers returns the modifiers outermost first.
func (t TypeRef) Wrappers() []Kind {
	kinds := make([]Kind, 0, len(t.wrappers))
	for i := 0; i < len(t.wrappers); i++ {
		if t.wrappers[i] == 'L' {
			kinds = append(kinds, List)
		} else {
			kinds = append(kinds, NonNull)
		}
	}
	return kinds
}

// IsNonNull reports whether the outermost wrapper is NON_NULL.
func (t TypeRef) IsNonNull() bool {
	return len(t.wrappers) > 0 && t.wrappers[0] == 'N'
}

// IsList reports whether the reference contains a LIST wrapper.
func (t TypeRef) IsList() bool {
	return strings.IndexByte(t.wrappers, 'L') >= 0
}

// Nullable returns t without its outermost NON_NULL wrapper.
func (t TypeRef) Nullable() TypeRef {
	if t.IsNonNull() {
		return TypeRef{name: t.name, wrappers: t.wrappers[1:]}
	}
	return t
}

// String renders SDL notation.
func (t TypeRef) String() string {
	return render(t.name, t.wrappers)
}

func render(name, wrappers string) string {
	if wrappers == "" {
		return name
	}
	switch wrappers[0] {
	case 'N':
		return render(name, wrappers[1:]) + "!"
	default:
		return "[" + render(name, wrappers[1:]) + "]"
	}
}
