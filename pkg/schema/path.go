package schema

import (
	"strings"
)

// NextUnexploredType returns the first type, in first-seen order, that is an
// OBJECT, INTERFACE or INPUT_OBJECT with no members and is not in ignore.
// ok is false once every such type is explored or ignored.
func (s *Schema) NextUnexploredType(ignore map[string]bool) (name string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.order {
		if ignore[n] {
			continue
		}
		t := s.types[n]
		switch t.Kind {
		case Object, Interface, InputObject:
			if t.Members() == 0 {
				return n, true
			}
		}
	}
	return "", false
}

// StepKind says how a path step moves through the schema.
type StepKind int

const (
	// StepField selects an output field.
	StepField StepKind = iota
	// StepArgument passes an object literal to an argument of the previous
	// field step.
	StepArgument
	// StepInputField nests into a field of the enclosing object literal.
	StepInputField
	// StepFragment narrows an abstract type to one of its possible types
	// with an inline fragment.
	StepFragment
)

// Step is one edge of a Path.
type Step struct {
	Kind StepKind
	// Owner is the type (StepField, StepInputField) or field (StepArgument)
	// the member belongs to.
	Owner string
	Name  string
	// Type is the member's type reference.
	Type TypeRef
	// Structured marks a StepField whose return type needs a selection set.
	Structured bool
}

// Path leads from a root operation type to Target.
type Path struct {
	Operation Operation
	Target    string
	Steps     []Step
}

// Input reports whether the path ends inside an input-object literal.
func (p Path) Input() bool {
	if len(p.Steps) == 0 {
		return false
	}
	last := p.Steps[len(p.Steps)-1].Kind
	return last == StepArgument || last == StepInputField
}

// String renders the path as "Query.viewer -> User.posts(input) -> PostFilter".
func (p Path) String() string {
	parts := make([]string, 0, len(p.Steps)+1)
	for i := 0; i < len(p.Steps); i++ {
		step := p.Steps[i]
		if step.Kind == StepFragment {
			parts = append(parts, "... on "+step.Name)
			continue
		}
		part := step.Owner + "." + step.Name
		if i+1 < len(p.Steps) && p.Steps[i+1].Kind == StepArgument {
			i++
			part += "(" + p.Steps[i].Name + ")"
		}
		parts = append(parts, part)
	}
	parts = append(parts, p.Target)
	return strings.Join(parts, " -> ")
}

type nodeMode int

const (
	modeSelection nodeMode = iota
	modeInput
)

type node struct {
	name string
	mode nodeMode
}

// PathFromRoot finds the shortest path from a root type to target using a
// breadth-first search over fields, inline fragments, arguments and input
// fields, with ties broken by discovery order. INPUT_OBJECT targets are
// reached through arguments; every other target through field selections.
// Roots are tried in the order query, mutation, subscription.
func (s *Schema) PathFromRoot(target string) (Path, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targetDef, ok := s.types[target]
	if !ok {
		return Path{}, false
	}
	wantMode := modeSelection
	if targetDef.Kind == InputObject {
		wantMode = modeInput
	}

	for _, op := range []Operation{OperationQuery, OperationMutation, OperationSubscription} {
		root := s.roots[op]
		if root == "" {
			continue
		}
		if root == target && wantMode == modeSelection {
			return Path{Operation: op, Target: target}, true
		}
		if steps, ok := s.bfsLocked(root, target, wantMode); ok {
			return Path{Operation: op, Target: target, Steps: steps}, true
		}
	}
	return Path{}, false
}

func (s *Schema) bfsLocked(root, target string, wantMode nodeMode) ([]Step, bool) {
	type entry struct {
		at    node
		steps []Step
	}

	start := node{name: root, mode: modeSelection}
	visited := map[node]bool{start: true}
	queue := []entry{{at: start}}

	extend := func(steps []Step, more ...Step) []Step {
		out := make([]Step, 0, len(steps)+len(more))
		out = append(out, steps...)
		return append(out, more...)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		t := s.types[current.at.name]
		if t == nil {
			continue
		}

		type edge struct {
			to    node
			steps []Step
		}
		var edges []edge

		switch current.at.mode {
		case modeSelection:
			for _, f := range t.Fields {
				ret := s.types[f.Type.Name()]
				fieldStep := Step{
					Kind:       StepField,
					Owner:      t.Name,
					Name:       f.Name,
					Type:       f.Type,
					Structured: ret != nil && (ret.Kind.IsStructured() || ret.Kind == Unknown && !IsBuiltinScalar(ret.Name) && len(ret.Fields) > 0),
				}
				if ret != nil && ret.Kind != InputObject {
					edges = append(edges, edge{
						to:    node{name: ret.Name, mode: modeSelection},
						steps: []Step{fieldStep},
					})
				}
				for _, a := range f.Args {
					argType := s.types[a.Type.Name()]
					if argType == nil || argType.Kind != InputObject {
						continue
					}
					edges = append(edges, edge{
						to: node{name: argType.Name, mode: modeInput},
						steps: []Step{fieldStep, {
							Kind:  StepArgument,
							Owner: f.Name,
							Name:  a.Name,
							Type:  a.Type,
						}},
					})
				}
			}
			if t.Kind == Union || t.Kind == Interface {
				for _, p := range t.PossibleTypes {
					if s.types[p] == nil {
						continue
					}
					edges = append(edges, edge{
						to: node{name: p, mode: modeSelection},
						steps: []Step{{
							Kind:  StepFragment,
							Owner: t.Name,
							Name:  p,
						}},
					})
				}
			}
		case modeInput:
			for _, f := range t.InputFields {
				inner := s.types[f.Type.Name()]
				if inner == nil || inner.Kind != InputObject {
					continue
				}
				edges = append(edges, edge{
					to: node{name: inner.Name, mode: modeInput},
					steps: []Step{{
						Kind:  StepInputField,
						Owner: t.Name,
						Name:  f.Name,
						Type:  f.Type,
					}},
				})
			}
		}

		for _, e := range edges {
			steps := extend(current.steps, e.steps...)
			if e.to.name == target && e.to.mode == wantMode {
				return steps, true
			}
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			queue = append(queue, entry{at: e.to, steps: steps})
		}
	}
	return nil, false
}

// Document renders the path as a query document with placeholder at the
// position where candidate names are substituted. Arguments on selection
// steps are omitted.
//
// A selection path renders as
//
//	query { viewer { posts { FUZZ } } }
//
// and an input path as
//
//	query { search(filter: { range: { FUZZ: 7 } }) { __typename } }
func (p Path) Document(placeholder string) string {
	op := p.Operation
	if op == "" {
		op = OperationQuery
	}

	var open, close strings.Builder
	open.WriteString(string(op))
	open.WriteString(" { ")

	for i := 0; i < len(p.Steps); i++ {
		step := p.Steps[i]
		switch step.Kind {
		case StepField:
			open.WriteString(step.Name)
			if i+1 < len(p.Steps) && p.Steps[i+1].Kind == StepArgument {
				// The selection set of the carrying field is written after
				// the argument literal closes.
				tail := ""
				if step.Structured {
					tail = " { __typename }"
				}
				prependClose(&close, ")"+tail)
				continue
			}
			open.WriteString(" { ")
			prependClose(&close, " }")
		case StepArgument:
			open.WriteString("(")
			open.WriteString(step.Name)
			open.WriteString(": { ")
			prependClose(&close, " }")
		case StepInputField:
			open.WriteString(step.Name)
			open.WriteString(": { ")
			prependClose(&close, " }")
		case StepFragment:
			open.WriteString("... on ")
			open.WriteString(step.Name)
			open.WriteString(" { ")
			prependClose(&close, " }")
		}
	}

	if p.Input() {
		open.WriteString(placeholder)
		open.WriteString(": 7")
	} else {
		open.WriteString(placeholder)
	}
	open.WriteString(close.String())
	open.WriteString(" }")
	return open.String()
}

func prependClose(b *strings.Builder, s string) {
	rest := b.String()
	b.Reset()
	b.WriteString(s)
	b.WriteString(rest)
}
