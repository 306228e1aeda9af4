package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// UnknownDescription marks a type that was referenced but whose kind was
// never resolved. Such types are written as SCALAR so that standard tooling
// accepts the document, and read back as UNKNOWN.
const UnknownDescription = "gqlblind: kind unresolved"

type introspectionResult struct {
	Data *introspectionData `json:"data,omitempty"`
	// Schema is set when the document is a bare {"__schema": ...}.
	Schema *introspectionSchema `json:"__schema,omitempty"`
}

type introspectionData struct {
	Schema *introspectionSchema `json:"__schema"`
}

type introspectionSchema struct {
	QueryType        *introspectionName   `json:"queryType"`
	MutationType     *introspectionName   `json:"mutationType"`
	SubscriptionType *introspectionName   `json:"subscriptionType"`
	Types            []introspectionType  `json:"types"`
	Directives       []introspectionDummy `json:"directives"`
}

type introspectionName struct {
	Name string `json:"name"`
}

// introspectionDummy stands in for directive definitions, which blind probing
// never recovers.
type introspectionDummy struct {
	Name string `json:"name"`
}

type introspectionType struct {
	Kind          Kind                      `json:"kind"`
	Name          string                    `json:"name"`
	Description   *string                   `json:"description"`
	Fields        []introspectionField      `json:"fields"`
	InputFields   []introspectionInputValue `json:"inputFields"`
	Interfaces    []introspectionTypeRef    `json:"interfaces"`
	EnumValues    []introspectionEnumValue  `json:"enumValues"`
	PossibleTypes []introspectionTypeRef    `json:"possibleTypes"`
}

type introspectionField struct {
	Name              string                    `json:"name"`
	Description       *string                   `json:"description"`
	Args              []introspectionInputValue `json:"args"`
	Type              introspectionTypeRef      `json:"type"`
	IsDeprecated      bool                      `json:"isDeprecated"`
	DeprecationReason *string                   `json:"deprecationReason"`
}

type introspectionInputValue struct {
	Name         string               `json:"name"`
	Description  *string              `json:"description"`
	Type         introspectionTypeRef `json:"type"`
	DefaultValue *string              `json:"defaultValue"`
}

type introspectionEnumValue struct {
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	IsDeprecated      bool    `json:"isDeprecated"`
	DeprecationReason *string `json:"deprecationReason"`
}

type introspectionTypeRef struct {
	Kind   Kind                  `json:"kind"`
	Name   *string               `json:"name"`
	OfType *introspectionTypeRef `json:"ofType"`
}

// MarshalIntrospection renders the schema as the result of a standard
// introspection query, wrapped in {"data": ...}. Builtin scalars are always
// present.
func (s *Schema) MarshalIntrospection() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &introspectionSchema{
		QueryType:        s.rootNameLocked(OperationQuery),
		MutationType:     s.rootNameLocked(OperationMutation),
		SubscriptionType: s.rootNameLocked(OperationSubscription),
		Types:            make([]introspectionType, 0, len(s.order)+len(BuiltinScalars)),
		Directives:       []introspectionDummy{},
	}

	for _, name := range s.order {
		out.Types = append(out.Types, s.marshalTypeLocked(s.types[name]))
	}
	for _, name := range BuiltinScalars {
		if _, ok := s.types[name]; !ok {
			out.Types = append(out.Types, introspectionType{Kind: Scalar, Name: name})
		}
	}

	return json.MarshalIndent(introspectionResult{Data: &introspectionData{Schema: out}}, "", "  ")
}

func (s *Schema) rootNameLocked(op Operation) *introspectionName {
	if name, ok := s.roots[op]; ok {
		return &introspectionName{Name: name}
	}
	return nil
}

func (s *Schema) marshalTypeLocked(t *TypeDef) introspectionType {
	it := introspectionType{Kind: t.Kind, Name: t.Name}
	if t.Kind == Unknown {
		desc := UnknownDescription
		it.Kind = Scalar
		it.Description = &desc
	}

	switch it.Kind {
	case Object, Interface:
		it.Fields = make([]introspectionField, 0, len(t.Fields))
		for _, f := range t.Fields {
			field := introspectionField{
				Name: f.Name,
				Type: s.marshalTypeRefLocked(f.Type),
				Args: make([]introspectionInputValue, 0, len(f.Args)),
			}
			for _, a := range f.Args {
				field.Args = append(field.Args, introspectionInputValue{Name: a.Name, Type: s.marshalTypeRefLocked(a.Type)})
			}
			it.Fields = append(it.Fields, field)
		}
		if it.Kind == Object {
			it.Interfaces = []introspectionTypeRef{}
		}
	case InputObject:
		it.InputFields = make([]introspectionInputValue, 0, len(t.InputFields))
		for _, f := range t.InputFields {
			it.InputFields = append(it.InputFields, introspectionInputValue{Name: f.Name, Type: s.marshalTypeRefLocked(f.Type)})
		}
	case Enum:
		it.EnumValues = make([]introspectionEnumValue, 0, len(t.EnumValues))
		for _, v := range t.EnumValues {
			it.EnumValues = append(it.EnumValues, introspectionEnumValue{Name: v})
		}
	}

	if it.Kind == Interface || it.Kind == Union {
		it.PossibleTypes = make([]introspectionTypeRef, 0, len(t.PossibleTypes))
		for _, p := range t.PossibleTypes {
			it.PossibleTypes = append(it.PossibleTypes, s.marshalTypeRefLocked(NamedType(p)))
		}
	}
	return it
}

func (s *Schema) marshalTypeRefLocked(ref TypeRef) introspectionTypeRef {
	wrappers := ref.Wrappers()
	return s.marshalWrappedLocked(ref.Name(), wrappers)
}

func (s *Schema) marshalWrappedLocked(name string, wrappers []Kind) introspectionTypeRef {
	if len(wrappers) == 0 {
		kind := Scalar
		if t, ok := s.types[name]; ok && t.Kind != Unknown {
			kind = t.Kind
		}
		n := name
		return introspectionTypeRef{Kind: kind, Name: &n}
	}
	inner := s.marshalWrappedLocked(name, wrappers[1:])
	return introspectionTypeRef{Kind: wrappers[0], OfType: &inner}
}

// UnmarshalIntrospection parses an introspection result. Both the wrapped
// {"data": {"__schema": ...}} and the bare {"__schema": ...} shapes are
// accepted. Types whose name starts with "__" are skipped.
func UnmarshalIntrospection(data []byte) (*Schema, error) {
	var res introspectionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse introspection document: %w", err)
	}

	raw := res.Schema
	if res.Data != nil && res.Data.Schema != nil {
		raw = res.Data.Schema
	}
	if raw == nil {
		return nil, errors.New("failed to parse introspection document: no __schema object")
	}

	s := newEmpty()
	var facts []Fact

	for _, it := range raw.Types {
		if it.Name == "" {
			return nil, errors.New("failed to parse introspection document: type without a name")
		}
		if strings.HasPrefix(it.Name, "__") {
			continue
		}

		kind := it.Kind
		if kind == Scalar && it.Description != nil && *it.Description == UnknownDescription {
			kind = Unknown
		}
		facts = append(facts, Fact{TypeName: it.Name, Kind: kind})

		for _, f := range it.Fields {
			ref, err := unmarshalTypeRef(f.Type)
			if err != nil {
				return nil, fmt.Errorf("failed to parse field %s.%s: %w", it.Name, f.Name, err)
			}
			field := &Field{Name: f.Name, Type: ref}
			for _, a := range f.Args {
				argRef, err := unmarshalTypeRef(a.Type)
				if err != nil {
					return nil, fmt.Errorf("failed to parse argument %s.%s(%s): %w", it.Name, f.Name, a.Name, err)
				}
				field.Args = append(field.Args, &Argument{Name: a.Name, Type: argRef})
			}
			facts = append(facts, Fact{TypeName: it.Name, Field: field})
		}
		for _, f := range it.InputFields {
			ref, err := unmarshalTypeRef(f.Type)
			if err != nil {
				return nil, fmt.Errorf("failed to parse input field %s.%s: %w", it.Name, f.Name, err)
			}
			facts = append(facts, Fact{TypeName: it.Name, InputField: &Argument{Name: f.Name, Type: ref}})
		}
		for _, v := range it.EnumValues {
			facts = append(facts, Fact{TypeName: it.Name, EnumValue: v.Name})
		}
		for _, p := range it.PossibleTypes {
			if p.Name != nil {
				facts = append(facts, Fact{TypeName: it.Name, PossibleType: *p.Name})
			}
		}
	}

	// Types are created first so that first-seen order follows the document
	// rather than the order in which members reference each other. Builtin
	// scalars nothing references are the ones MarshalIntrospection pads the
	// type list with, so they are left out.
	referenced := referencedNames(facts)
	kept := facts[:0]
	for _, f := range facts {
		typeOnly := f.Field == nil && f.InputField == nil && f.EnumValue == "" && f.PossibleType == ""
		if typeOnly && f.Kind == Scalar && IsBuiltinScalar(f.TypeName) && !referenced[f.TypeName] {
			continue
		}
		if typeOnly {
			s.Merge(f)
		}
		kept = append(kept, f)
	}
	s.MergeAll(kept)

	if raw.QueryType != nil {
		s.SetRoot(OperationQuery, raw.QueryType.Name)
	}
	if raw.MutationType != nil {
		s.SetRoot(OperationMutation, raw.MutationType.Name)
	}
	if raw.SubscriptionType != nil {
		s.SetRoot(OperationSubscription, raw.SubscriptionType.Name)
	}
	return s, nil
}

func referencedNames(facts []Fact) map[string]bool {
	names := map[string]bool{}
	for _, f := range facts {
		switch {
		case f.Field != nil:
			names[f.Field.Type.Name()] = true
			for _, a := range f.Field.Args {
				names[a.Type.Name()] = true
			}
		case f.InputField != nil:
			names[f.InputField.Type.Name()] = true
		case f.PossibleType != "":
			names[f.PossibleType] = true
		}
	}
	return names
}

func unmarshalTypeRef(ref introspectionTypeRef) (TypeRef, error) {
	var wrappers []Kind
	cur := &ref
	for cur != nil {
		switch cur.Kind {
		case List, NonNull:
			wrappers = append(wrappers, cur.Kind)
			cur = cur.OfType
		default:
			if cur.Name == nil || *cur.Name == "" {
				return TypeRef{}, errors.New("named type reference without a name")
			}
			return NewTypeRef(*cur.Name, wrappers...), nil
		}
	}
	return TypeRef{}, errors.New("wrapper type reference without ofType")
}
