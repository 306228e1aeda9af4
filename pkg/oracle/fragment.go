package oracle

import (
	"sort"
	"sync"

	"github.com/samwightt/gqlblind/pkg/schema"
)

// Fragment collects the facts learned by probing one target. It is safe for
// concurrent use by the bucket workers.
type Fragment struct {
	target       string
	mu           sync.Mutex
	facts        []schema.Fact
	inconclusive []string
}

// NewFragment returns an empty fragment for the probed type target.
func NewFragment(target string) *Fragment {
	return &Fragment{target: target}
}

// Target returns the probed type name.
func (f *Fragment) Target() string {
	return f.target
}

// Add records facts.
func (f *Fragment) Add(facts ...schema.Fact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facts = append(f.facts, facts...)
}

// Inconclusive records a candidate name whose validity could not be decided.
func (f *Fragment) Inconclusive(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inconclusive = append(f.inconclusive, name)
}

// Len returns the number of facts recorded.
func (f *Fragment) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.facts)
}

// InconclusiveNames returns the undecided names, sorted.
func (f *Fragment) InconclusiveNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.inconclusive...)
	sort.Strings(out)
	return out
}

// Facts returns the recorded facts in a deterministic order: the target's
// facts first, then other types by name. Within a type, kind facts come
// before fields, input fields, enum values and possible types, each sorted
// by member name. Worker scheduling therefore never changes the order in
// which a schema learns about types.
func (f *Fragment) Facts() []schema.Fact {
	f.mu.Lock()
	out := append([]schema.Fact(nil), f.facts...)
	f.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TypeName != b.TypeName {
			if a.TypeName == f.target || b.TypeName == f.target {
				return a.TypeName == f.target
			}
			return a.TypeName < b.TypeName
		}
		ca, cb := factCategory(a), factCategory(b)
		if ca != cb {
			return ca < cb
		}
		return factMember(a) < factMember(b)
	})
	return out
}

func factCategory(f schema.Fact) int {
	switch {
	case f.Field != nil:
		return 1
	case f.InputField != nil:
		return 2
	case f.EnumValue != "":
		return 3
	case f.PossibleType != "":
		return 4
	default:
		return 0
	}
}

func factMember(f schema.Fact) string {
	switch {
	case f.Field != nil:
		return f.Field.Name
	case f.InputField != nil:
		return f.InputField.Name
	case f.EnumValue != "":
		return f.EnumValue
	default:
		return f.PossibleType
	}
}
