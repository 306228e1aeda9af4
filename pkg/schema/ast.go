package schema

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// ToAST converts the schema into a gqlparser AST for formatting and
// inspection. UNKNOWN types become scalars carrying UnknownDescription.
// Builtin scalars are flagged BuiltIn so the formatter leaves them out.
func (s *Schema) ToAST() *ast.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &ast.Schema{
		Types:         map[string]*ast.Definition{},
		Directives:    map[string]*ast.DirectiveDefinition{},
		PossibleTypes: map[string][]*ast.Definition{},
		Implements:    map[string][]*ast.Definition{},
	}

	for _, name := range s.order {
		out.Types[name] = toDefinition(s.types[name])
	}
	for _, name := range BuiltinScalars {
		if def, ok := out.Types[name]; ok {
			def.BuiltIn = true
			continue
		}
		out.Types[name] = &ast.Definition{Kind: ast.Scalar, Name: name, BuiltIn: true}
	}

	for _, name := range s.order {
		t := s.types[name]
		for _, p := range t.PossibleTypes {
			member := out.Types[p]
			out.AddPossibleType(name, member)
			if t.Kind == Interface {
				out.AddImplements(p, out.Types[name])
				if member.Kind == ast.Object && !contains(member.Interfaces, name) {
					member.Interfaces = append(member.Interfaces, name)
				}
			}
		}
		if t.Kind == Object {
			out.AddPossibleType(name, out.Types[name])
		}
	}

	out.Query = out.Types[s.roots[OperationQuery]]
	out.Mutation = out.Types[s.roots[OperationMutation]]
	out.Subscription = out.Types[s.roots[OperationSubscription]]
	return out
}

func toDefinition(t *TypeDef) *ast.Definition {
	def := &ast.Definition{Name: t.Name}
	switch t.Kind {
	case Unknown:
		def.Kind = ast.Scalar
		def.Description = UnknownDescription
	case Scalar:
		def.Kind = ast.Scalar
	case Object:
		def.Kind = ast.Object
	case Interface:
		def.Kind = ast.Interface
	case Union:
		def.Kind = ast.Union
		def.Types = append([]string(nil), t.PossibleTypes...)
	case Enum:
		def.Kind = ast.Enum
	case InputObject:
		def.Kind = ast.InputObject
	}

	for _, f := range t.Fields {
		fd := &ast.FieldDefinition{Name: f.Name, Type: toASTType(f.Type)}
		for _, a := range f.Args {
			fd.Arguments = append(fd.Arguments, &ast.ArgumentDefinition{Name: a.Name, Type: toASTType(a.Type)})
		}
		def.Fields = append(def.Fields, fd)
	}
	for _, f := range t.InputFields {
		def.Fields = append(def.Fields, &ast.FieldDefinition{Name: f.Name, Type: toASTType(f.Type)})
	}
	for _, v := range t.EnumValues {
		def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{Name: v})
	}
	return def
}

func toASTType(ref TypeRef) *ast.Type {
	return wrapASTType(ref.Name(), ref.Wrappers())
}

func wrapASTType(name string, wrappers []Kind) *ast.Type {
	if len(wrappers) == 0 {
		return ast.NamedType(name, nil)
	}
	if wrappers[0] == NonNull {
		inner := wrapASTType(name, wrappers[1:])
		inner.NonNull = true
		return inner
	}
	return ast.ListType(wrapASTType(name, wrappers[1:]), nil)
}

func fromASTType(t *ast.Type) TypeRef {
	var wrappers []Kind
	for cur := t; cur != nil; cur = cur.Elem {
		if cur.NonNull {
			wrappers = append(wrappers, NonNull)
		}
		if cur.Elem == nil {
			return NewTypeRef(cur.NamedType, wrappers...)
		}
		wrappers = append(wrappers, List)
	}
	return TypeRef{}
}

// FromAST seeds a schema from a parsed SDL schema. Types appear in source
// order with builtin and "__" types left out.
func FromAST(src *ast.Schema) *Schema {
	s := newEmpty()

	defs := make([]*ast.Definition, 0, len(src.Types))
	for _, def := range src.Types {
		if def.BuiltIn || strings.HasPrefix(def.Name, "__") {
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		pi, pj := defs[i].Position, defs[j].Position
		if pi != nil && pj != nil && pi.Start != pj.Start {
			return pi.Start < pj.Start
		}
		return defs[i].Name < defs[j].Name
	})

	if src.Query != nil {
		s.SetRoot(OperationQuery, src.Query.Name)
	}
	if src.Mutation != nil {
		s.SetRoot(OperationMutation, src.Mutation.Name)
	}
	if src.Subscription != nil {
		s.SetRoot(OperationSubscription, src.Subscription.Name)
	}

	for _, def := range defs {
		s.Merge(Fact{TypeName: def.Name, Kind: fromASTKind(def)})
	}
	for _, def := range defs {
		for _, f := range def.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			if def.Kind == ast.InputObject {
				s.Merge(Fact{TypeName: def.Name, InputField: &Argument{Name: f.Name, Type: fromASTType(f.Type)}})
				continue
			}
			field := &Field{Name: f.Name, Type: fromASTType(f.Type)}
			for _, a := range f.Arguments {
				field.Args = append(field.Args, &Argument{Name: a.Name, Type: fromASTType(a.Type)})
			}
			s.Merge(Fact{TypeName: def.Name, Field: field})
		}
		for _, v := range def.EnumValues {
			s.Merge(Fact{TypeName: def.Name, EnumValue: v.Name})
		}
		for _, member := range def.Types {
			s.Merge(Fact{TypeName: def.Name, PossibleType: member})
		}
		if def.Kind == ast.Interface {
			for _, impl := range src.GetPossibleTypes(def) {
				s.Merge(Fact{TypeName: def.Name, PossibleType: impl.Name})
			}
		}
	}
	return s
}

func fromASTKind(def *ast.Definition) Kind {
	switch def.Kind {
	case ast.Scalar:
		if def.Description == UnknownDescription {
			return Unknown
		}
		return Scalar
	case ast.Object:
		return Object
	case ast.Interface:
		return Interface
	case ast.Union:
		return Union
	case ast.Enum:
		return Enum
	case ast.InputObject:
		return InputObject
	}
	return Unknown
}
