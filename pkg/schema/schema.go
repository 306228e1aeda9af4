// Package schema is the in-memory model of a GraphQL schema recovered by
// blind probing.
//
// Types live in an arena keyed by name and reference each other by name, so
// cyclic schemas need no special handling. The only way to add knowledge is
// Merge, which is idempotent and safe for concurrent callers.
package schema

import (
	"sync"
)

// Argument is a field argument or an input-object field.
type Argument struct {
	Name string
	Type TypeRef
}

// Field is an output field of an OBJECT or INTERFACE type.
type Field struct {
	Name string
	Type TypeRef
	Args []*Argument
}

// Arg returns the argument with the given name, or nil.
func (f *Field) Arg(name string) *Argument {
	for _, a := range f.Args {
		if a.Name == name {
			return a
		}
	}
	return nil
}

func (f *Field) clone() *Field {
	c := &Field{Name: f.Name, Type: f.Type, Args: make([]*Argument, len(f.Args))}
	for i, a := range f.Args {
		arg := *a
		c.Args[i] = &arg
	}
	return c
}

// TypeDef is one named entry of the type table.
type TypeDef struct {
	Name          string
	Kind          Kind
	Fields        []*Field
	InputFields   []*Argument
	EnumValues    []string
	PossibleTypes []string
}

// Field returns the field with the given name, or nil.
func (t *TypeDef) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// InputField returns the input field with the given name, or nil.
func (t *TypeDef) InputField(name string) *Argument {
	for _, f := range t.InputFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Members returns how many fields, input fields or enum values t has.
func (t *TypeDef) Members() int {
	return len(t.Fields) + len(t.InputFields) + len(t.EnumValues)
}

// Explored reports whether t needs no further probing. OBJECT, INTERFACE and
// INPUT_OBJECT types are explored once they have a member; every other kind
// is explored on creation.
func (t *TypeDef) Explored() bool {
	switch t.Kind {
	case Object, Interface, InputObject:
		return t.Members() > 0
	default:
		return true
	}
}

func (t *TypeDef) clone() *TypeDef {
	c := &TypeDef{
		Name:          t.Name,
		Kind:          t.Kind,
		Fields:        make([]*Field, len(t.Fields)),
		InputFields:   make([]*Argument, len(t.InputFields)),
		EnumValues:    append([]string(nil), t.EnumValues...),
		PossibleTypes: append([]string(nil), t.PossibleTypes...),
	}
	for i, f := range t.Fields {
		c.Fields[i] = f.clone()
	}
	for i, f := range t.InputFields {
		arg := *f
		c.InputFields[i] = &arg
	}
	return c
}

// Fact is one piece of discovered knowledge about TypeName. Every optional
// part that is set is recorded; unset parts are ignored.
type Fact struct {
	TypeName string
	// Kind of TypeName. Empty or Unknown leaves the recorded kind alone.
	Kind Kind
	// Field to add to TypeName. Its Args are unioned into an existing field
	// of the same name.
	Field *Field
	// InputField to add to TypeName.
	InputField *Argument
	// EnumValue to add to TypeName.
	EnumValue string
	// PossibleType to add to TypeName.
	PossibleType string
}

// Operation names a root operation type.
type Operation string

const (
	OperationQuery        Operation = "query"
	OperationMutation     Operation = "mutation"
	OperationSubscription Operation = "subscription"
)

// Schema is the mutable type graph.
type Schema struct {
	mu    sync.RWMutex
	types map[string]*TypeDef
	order []string
	roots map[Operation]string
}

// New returns a schema holding only an unexplored root "Query" object.
func New() *Schema {
	return NewWithRoot("Query")
}

// NewWithRoot returns a schema holding only an unexplored query root named
// queryType.
func NewWithRoot(queryType string) *Schema {
	s := newEmpty()
	s.SetRoot(OperationQuery, queryType)
	return s
}

func newEmpty() *Schema {
	return &Schema{
		types: map[string]*TypeDef{},
		roots: map[Operation]string{},
	}
}

// SetRoot records name as the root type for op and ensures it exists as an
// OBJECT. An empty name clears the root.
func (s *Schema) SetRoot(op Operation, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		delete(s.roots, op)
		return
	}
	s.roots[op] = name
	s.mergeLocked(Fact{TypeName: name, Kind: Object})
}

// Root returns the root type name for op, or "".
func (s *Schema) Root(op Operation) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots[op]
}

// QueryType returns the query root name.
func (s *Schema) QueryType() string {
	return s.Root(OperationQuery)
}

// Merge records f. It never fails and merging the same fact twice has the
// same effect as merging it once.
func (s *Schema) Merge(f Fact) {
	if f.TypeName == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(f)
}

// MergeAll merges facts in order under a single lock acquisition.
func (s *Schema) MergeAll(facts []Fact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range facts {
		if f.TypeName != "" {
			s.mergeLocked(f)
		}
	}
}

func (s *Schema) mergeLocked(f Fact) {
	t := s.ensureLocked(f.TypeName)
	s.setKindLocked(t, f.Kind)

	if f.Field != nil && f.Field.Name != "" && !f.Field.Type.IsZero() {
		existing := t.Field(f.Field.Name)
		if existing == nil {
			existing = &Field{Name: f.Field.Name, Type: f.Field.Type}
			t.Fields = append(t.Fields, existing)
		}
		s.ensureLocked(f.Field.Type.Name())
		for _, a := range f.Field.Args {
			if a == nil || a.Name == "" || a.Type.IsZero() {
				continue
			}
			if existing.Arg(a.Name) == nil {
				existing.Args = append(existing.Args, &Argument{Name: a.Name, Type: a.Type})
			}
			s.ensureLocked(a.Type.Name())
		}
	}

	if f.InputField != nil && f.InputField.Name != "" && !f.InputField.Type.IsZero() {
		if t.InputField(f.InputField.Name) == nil {
			t.InputFields = append(t.InputFields, &Argument{Name: f.InputField.Name, Type: f.InputField.Type})
		}
		s.ensureLocked(f.InputField.Type.Name())
	}

	if f.EnumValue != "" && !contains(t.EnumValues, f.EnumValue) {
		t.EnumValues = append(t.EnumValues, f.EnumValue)
	}

	if f.PossibleType != "" {
		if !contains(t.PossibleTypes, f.PossibleType) {
			t.PossibleTypes = append(t.PossibleTypes, f.PossibleType)
		}
		s.ensureLocked(f.PossibleType)
	}
}

// ensureLocked returns the TypeDef for name, creating it on first reference.
func (s *Schema) ensureLocked(name string) *TypeDef {
	if t, ok := s.types[name]; ok {
		return t
	}
	kind := Unknown
	if IsBuiltinScalar(name) {
		kind = Scalar
	}
	t := &TypeDef{Name: name, Kind: kind}
	s.types[name] = t
	s.order = append(s.order, name)
	return t
}

// setKindLocked applies kind if it resolves or refines the current kind.
// Conflicting kinds keep the first one recorded.
func (s *Schema) setKindLocked(t *TypeDef, kind Kind) {
	if kind == "" || kind == Unknown || kind == t.Kind {
		return
	}
	switch {
	case t.Kind == Unknown:
		t.Kind = kind
	case t.Kind == Scalar && kind == Enum && !IsBuiltinScalar(t.Name):
		t.Kind = kind
	case t.Kind == Object && (kind == Interface || kind == Union):
		t.Kind = kind
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Lookup returns a copy of the named type.
func (s *Schema) Lookup(name string) (*TypeDef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[name]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// Kind returns the recorded kind of name, or Unknown.
func (s *Schema) Kind(name string) Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.types[name]; ok {
		return t.Kind
	}
	return Unknown
}

// Explored reports whether name exists and needs no further probing.
func (s *Schema) Explored(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[name]
	return ok && t.Explored()
}

// Types returns copies of every type in first-seen order.
func (s *Schema) Types() []*TypeDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TypeDef, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.types[name].clone())
	}
	return out
}

// Len returns the number of types.
func (s *Schema) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Stats summarises the schema for progress logging.
type Stats struct {
	Types      int
	Explored   int
	Fields     int
	Arguments  int
	EnumValues int
}

// Stats counts types and members.
func (s *Schema) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, name := range s.order {
		t := s.types[name]
		st.Types++
		if t.Explored() {
			st.Explored++
		}
		st.Fields += len(t.Fields) + len(t.InputFields)
		st.EnumValues += len(t.EnumValues)
		for _, f := range t.Fields {
			st.Arguments += len(f.Args)
		}
	}
	return st
}
